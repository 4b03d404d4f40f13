package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/audit"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/transfer"
)

// HistoryServiceImpl implements the HistoryService interface
type HistoryServiceImpl struct {
	lookup    TransferLookup
	auditRepo audit.Repository
	logger    *slog.Logger
}

// NewHistoryService creates a new history service
func NewHistoryService(logger *slog.Logger, lookup TransferLookup, auditRepo audit.Repository) HistoryService {
	return &HistoryServiceImpl{
		lookup:    lookup,
		auditRepo: auditRepo,
		logger:    logger,
	}
}

// GetTransfer returns the transfer with id from the pending or completed queue
func (s *HistoryServiceImpl) GetTransfer(ctx context.Context, id string) (*transfer.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, ok := s.lookup.Lookup(id)
	if !ok {
		s.logger.Info("Transfer not found", "transfer_id", id)
		return nil, nil
	}
	return &r, nil
}

// GetAuditTrail returns a page of journal entries, oldest first.
// A transfer without entries yields an empty page.
func (s *HistoryServiceImpl) GetAuditTrail(ctx context.Context, id string, page, perPage int) ([]*audit.Entry, int64, error) {
	offset := (page - 1) * perPage

	entries, err := s.auditRepo.ListByTransfer(ctx, id, perPage, offset)
	if err != nil {
		if errors.Is(err, audit.ErrEntriesNotFound{}) {
			return []*audit.Entry{}, 0, nil
		}
		s.logger.Error("Failed to list audit entries", "transfer_id", id, "error", err)
		return nil, 0, err
	}

	total, err := s.auditRepo.CountByTransfer(ctx, id)
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}
