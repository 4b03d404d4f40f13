// Package reconciliation owns the durable pending and completed queues and
// drives broadcast-and-confirm against the ledger.
package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/config"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/queue"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/shared"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/transfer"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/platform/ledger"
	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/singleflight"
)

// Ledger is the part of the ledger adapter the store broadcasts through
type Ledger interface {
	SubmitRaw(ctx context.Context, signedPayload []byte) (string, error)
	Confirm(ctx context.Context, signature, anchor string) (ledger.Confirmation, error)
}

// Failure pairs a transfer id with the reason its broadcast failed
type Failure struct {
	ID  string
	Err error
}

// Summary is the per-record outcome of BroadcastAll, in queue order
type Summary struct {
	Succeeded []string
	Failed    []Failure
}

// LoadResult describes what Load restored
type LoadResult struct {
	Pending   int
	Completed int
	Dropped   int
	Degraded  bool // storage was unreadable and the queues started empty
}

type Store struct {
	repo    queue.Repository
	ledger  Ledger
	pool    *ants.Pool
	flight  singleflight.Group
	logger  *slog.Logger
	timeout time.Duration
	now     func() time.Time

	// writeMu serializes persist-then-swap so no two mutations interleave
	writeMu sync.Mutex

	mu        sync.RWMutex
	pending   []transfer.Record
	completed []transfer.Record
}

func NewStore(cfg *config.BroadcastConfig, repo queue.Repository, ledger Ledger, logger *slog.Logger) (*Store, error) {
	pool, err := ants.NewPool(cfg.FanOut)
	if err != nil {
		return nil, fmt.Errorf("failed to create broadcast pool: %w", err)
	}

	return &Store{
		repo:      repo,
		ledger:    ledger,
		pool:      pool,
		logger:    logger,
		timeout:   cfg.Timeout,
		now:       time.Now,
		pending:   []transfer.Record{},
		completed: []transfer.Record{},
	}, nil
}

// Load restores both queues from storage. Missing or unreadable storage yields
// empty queues. Records that fail validation, sit in the wrong queue, or
// repeat an id already seen are dropped.
func (s *Store) Load(ctx context.Context) LoadResult {
	var result LoadResult

	snapshot, err := s.repo.Load(ctx)
	switch {
	case errors.Is(err, queue.ErrSnapshotNotFound):
		s.logger.Info("No persisted queues found, starting empty")
		snapshot = &queue.Snapshot{}
	case err != nil:
		s.logger.Warn("Failed to load persisted queues, starting empty", "error", err)
		snapshot = &queue.Snapshot{}
		result.Degraded = true
	}

	seen := make(map[string]bool)
	keep := func(records []transfer.Record, status shared.TransferStatus) []transfer.Record {
		out := make([]transfer.Record, 0, len(records))
		for _, r := range records {
			if err := r.Validate(); err != nil || r.Status != status || seen[r.ID] {
				s.logger.Warn("Dropping persisted transfer", "transfer_id", r.ID, "status", r.Status, "error", err)
				result.Dropped++
				continue
			}
			seen[r.ID] = true
			out = append(out, r)
		}
		return out
	}
	// completed first, so a record confirmed on the ledger wins over a stale pending copy
	completed := keep(snapshot.Completed, shared.TransferStatusCompleted)
	pending := keep(snapshot.Pending, shared.TransferStatusPendingBroadcast)

	s.writeMu.Lock()
	s.mu.Lock()
	s.pending, s.completed = pending, completed
	s.mu.Unlock()
	s.writeMu.Unlock()

	result.Pending, result.Completed = len(pending), len(completed)
	s.logger.Info("Reconciliation queues loaded",
		"pending", result.Pending,
		"completed", result.Completed,
		"dropped", result.Dropped,
	)
	return result
}

// EnqueuePending moves a FINALIZED transfer into the pending queue. The queue
// document is persisted before the record becomes visible.
func (s *Store) EnqueuePending(ctx context.Context, r transfer.Record) (transfer.Record, error) {
	queued, err := transfer.MarkPendingBroadcast(r)
	if err != nil {
		return transfer.Record{}, fmt.Errorf("%w: %w", ErrInvalidState, err)
	}
	if err := queued.Validate(); err != nil {
		return transfer.Record{}, fmt.Errorf("%w: %w", ErrInvalidState, err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	_, inPending := indexOf(s.pending, queued.ID)
	_, inCompleted := indexOf(s.completed, queued.ID)
	pending := append(cloneAll(s.pending), queued.Clone())
	completed := cloneAll(s.completed)
	s.mu.RUnlock()

	if inPending || inCompleted {
		return transfer.Record{}, fmt.Errorf("%w: %s", ErrDuplicateTransfer, queued.ID)
	}

	if err := s.persist(ctx, "enqueue", pending, completed); err != nil {
		return transfer.Record{}, err
	}

	s.mu.Lock()
	s.pending = pending
	s.mu.Unlock()

	s.logger.Info("Transfer queued for broadcast", "transfer_id", queued.ID, "amount", queued.Amount)
	return queued, nil
}

// BroadcastOne submits and confirms a pending transfer. Concurrent calls for
// the same id share one submission. An id already completed returns its
// ledger signature.
//
// The shared submission runs detached from any one caller and is bounded by
// the broadcast timeout. A caller whose ctx ends first gets its own timeout or
// cancellation error while the submission carries on for the others.
func (s *Store) BroadcastOne(ctx context.Context, id string) (string, error) {
	detached := context.WithoutCancel(ctx)
	ch := s.flight.DoChan(id, func() (interface{}, error) {
		return s.broadcast(detached, id)
	})

	select {
	case res := <-ch:
		if res.Shared {
			s.logger.Debug("Joined in-flight broadcast", "transfer_id", id)
		}
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		s.logger.Warn("Caller stopped waiting for broadcast", "transfer_id", id, "error", ctx.Err())
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", &BroadcastError{ID: id, Kind: BroadcastTimeout, Err: ctx.Err()}
		}
		return "", fmt.Errorf("broadcast of %s abandoned: %w", id, ctx.Err())
	}
}

func (s *Store) broadcast(ctx context.Context, id string) (string, error) {
	record, ok := s.Lookup(id)
	if !ok {
		return "", NotFoundError{ID: id}
	}
	if record.Status == shared.TransferStatusCompleted {
		return record.LedgerSignature, nil
	}

	logger := s.logger.With("transfer_id", id)
	logger.Info("Broadcasting transfer", "amount", record.Amount)

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	signature, err := s.ledger.SubmitRaw(callCtx, record.SignedPayload)
	if err != nil {
		logger.Warn("Ledger submission failed", "error", err)
		return "", classify(callCtx, id, "", err)
	}

	confirmation, err := s.ledger.Confirm(callCtx, signature, record.Anchor)
	if err != nil {
		logger.Warn("Ledger confirmation failed", "signature", signature, "error", err)
		return "", classify(callCtx, id, signature, err)
	}
	if !confirmation.Confirmed {
		reason := confirmation.Err
		if reason == nil {
			reason = errors.New("transaction not confirmed")
		}
		kind := BroadcastUnconfirmed
		if errors.Is(reason, ledger.ErrRejected) {
			kind = BroadcastRejected
		}
		logger.Warn("Transfer not confirmed", "signature", signature, "error", reason)
		return "", &BroadcastError{ID: id, Kind: kind, Signature: signature, Err: reason}
	}

	completed, err := transfer.MarkCompleted(record, signature, s.now())
	if err != nil {
		return "", err
	}
	if err := s.complete(ctx, completed); err != nil {
		logger.Error("Transfer confirmed but queues could not be persisted", "signature", signature, "error", err)
		return "", err
	}

	logger.Info("Transfer confirmed on ledger", "signature", signature)
	return signature, nil
}

// complete moves the record from pending to completed, persisting both queues together
func (s *Store) complete(ctx context.Context, completed transfer.Record) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	i, ok := indexOf(s.pending, completed.ID)
	if !ok {
		s.mu.RUnlock()
		return NotFoundError{ID: completed.ID}
	}
	pending := make([]transfer.Record, 0, len(s.pending)-1)
	pending = append(pending, cloneAll(s.pending[:i])...)
	pending = append(pending, cloneAll(s.pending[i+1:])...)
	done := append(cloneAll(s.completed), completed.Clone())
	s.mu.RUnlock()

	if err := s.persist(ctx, "broadcast", pending, done); err != nil {
		return err
	}

	s.mu.Lock()
	s.pending, s.completed = pending, done
	s.mu.Unlock()
	return nil
}

// BroadcastAll attempts every record pending at call time. Records enqueued
// during the sweep wait for the next one. One failure never aborts the rest.
func (s *Store) BroadcastAll(ctx context.Context) Summary {
	batch := s.Pending()
	if len(batch) == 0 {
		return Summary{Succeeded: []string{}, Failed: []Failure{}}
	}

	s.logger.Info("Broadcasting pending transfers", "count", len(batch), "fan_out", s.pool.Cap())

	errs := make([]error, len(batch))
	var wg sync.WaitGroup
	for i, r := range batch {
		i, id := i, r.ID
		wg.Add(1)
		err := s.pool.Submit(func() {
			defer wg.Done()
			_, errs[i] = s.BroadcastOne(ctx, id)
		})
		if err != nil {
			wg.Done()
			errs[i] = fmt.Errorf("failed to schedule broadcast: %w", err)
		}
	}
	wg.Wait()

	summary := Summary{Succeeded: []string{}, Failed: []Failure{}}
	for i, r := range batch {
		if errs[i] != nil {
			summary.Failed = append(summary.Failed, Failure{ID: r.ID, Err: errs[i]})
			continue
		}
		summary.Succeeded = append(summary.Succeeded, r.ID)
	}

	s.logger.Info("Broadcast sweep finished",
		"succeeded", len(summary.Succeeded),
		"failed", len(summary.Failed),
	)
	return summary
}

// Pending returns a copy of the pending queue in insertion order
func (s *Store) Pending() []transfer.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.pending)
}

// Completed returns a copy of the completed queue in confirmation order
func (s *Store) Completed() []transfer.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.completed)
}

// Lookup finds a record by id in either queue
func (s *Store) Lookup(id string) (transfer.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i, ok := indexOf(s.pending, id); ok {
		return s.pending[i].Clone(), true
	}
	if i, ok := indexOf(s.completed, id); ok {
		return s.completed[i].Clone(), true
	}
	return transfer.Record{}, false
}

// Seen reports whether a transfer with this id or nonce is already queued
func (s *Store) Seen(id, nonce string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, records := range [][]transfer.Record{s.pending, s.completed} {
		for _, r := range records {
			if r.ID == id || (nonce != "" && r.Nonce == nonce) {
				return true
			}
		}
	}
	return false
}

// Running returns the number of broadcasts in progress
func (s *Store) Running() int {
	return s.pool.Running()
}

// Close releases the broadcast pool
func (s *Store) Close() {
	s.logger.Info("Shutting down broadcast pool", "running_workers", s.pool.Running())
	s.pool.Release()
}

func (s *Store) persist(ctx context.Context, op string, pending, completed []transfer.Record) error {
	if err := s.repo.Save(ctx, queue.NewSnapshot(pending, completed)); err != nil {
		return &PersistenceError{Op: op, Err: err}
	}
	return nil
}

func classify(ctx context.Context, id, signature string, err error) error {
	kind := BroadcastNetwork
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		kind = BroadcastTimeout
	case errors.Is(err, ledger.ErrRejected), errors.Is(err, ledger.ErrMalformedTransaction):
		kind = BroadcastRejected
	}
	return &BroadcastError{ID: id, Kind: kind, Signature: signature, Err: err}
}

func indexOf(records []transfer.Record, id string) (int, bool) {
	for i, r := range records {
		if r.ID == id {
			return i, true
		}
	}
	return -1, false
}

func cloneAll(records []transfer.Record) []transfer.Record {
	out := make([]transfer.Record, 0, len(records))
	for _, r := range records {
		out = append(out, r.Clone())
	}
	return out
}
