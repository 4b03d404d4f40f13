// Package postgres provides the PostgreSQL implementation of the transfer
// audit journal. Entries are append-only.
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/audit"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/shared"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/platform/persistence"
)

// AuditRepository implements the audit.Repository interface for PostgreSQL
type AuditRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewAuditRepository creates a new PostgreSQL audit repository
func NewAuditRepository(logger *slog.Logger, db *persistence.PostgresDB) audit.Repository {
	return &AuditRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// Append stores entry and fills its generated ID
func (r *AuditRepository) Append(ctx context.Context, entry *audit.Entry) error {
	query := `
		INSERT INTO transfer_audit (transfer_id, direction, action, status, amount, counterparty, ledger_signature, detail, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	err := r.querier.QueryRow(ctx, query,
		entry.TransferID,
		string(entry.Direction),
		string(entry.Action),
		string(entry.Status),
		int64(entry.Amount),
		entry.Counterparty,
		entry.LedgerSignature,
		entry.Detail,
		entry.OccurredAt,
	).Scan(&entry.ID)

	if err != nil {
		r.logger.Error("Failed to append audit entry",
			"transfer_id", entry.TransferID,
			"action", entry.Action,
			"error", err,
		)
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	return nil
}

// ListByTransfer returns the journal of one transfer, oldest first.
// Returns ErrEntriesNotFound when the transfer has no entries.
func (r *AuditRepository) ListByTransfer(ctx context.Context, transferID string, limit, offset int) ([]*audit.Entry, error) {
	query := `
		SELECT id, transfer_id, direction, action, status, amount, counterparty, ledger_signature, detail, occurred_at
		FROM transfer_audit
		WHERE transfer_id = $1
		ORDER BY occurred_at ASC, id ASC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.querier.Query(ctx, query, transferID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list audit entries", "transfer_id", transferID, "error", err)
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*audit.Entry
	for rows.Next() {
		var (
			entry                     audit.Entry
			direction, action, status string
			amount                    int64
		)
		err := rows.Scan(
			&entry.ID,
			&entry.TransferID,
			&direction,
			&action,
			&status,
			&amount,
			&entry.Counterparty,
			&entry.LedgerSignature,
			&entry.Detail,
			&entry.OccurredAt,
		)
		if err != nil {
			r.logger.Error("Failed to scan audit entry", "error", err)
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entry.Direction = shared.Direction(direction)
		entry.Action = shared.AuditAction(action)
		entry.Status = shared.TransferStatus(status)
		entry.Amount = uint64(amount)
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over audit entries", "error", err)
		return nil, fmt.Errorf("error iterating over audit entries: %w", err)
	}

	if len(entries) == 0 && offset == 0 {
		return nil, audit.ErrEntriesNotFound{TransferID: transferID}
	}

	return entries, nil
}

// CountByTransfer counts the journal entries of one transfer
func (r *AuditRepository) CountByTransfer(ctx context.Context, transferID string) (int64, error) {
	query := `SELECT COUNT(*) FROM transfer_audit WHERE transfer_id = $1`

	var count int64
	if err := r.querier.QueryRow(ctx, query, transferID).Scan(&count); err != nil {
		r.logger.Error("Failed to count audit entries", "transfer_id", transferID, "error", err)
		return 0, fmt.Errorf("failed to count audit entries: %w", err)
	}

	return count, nil
}
