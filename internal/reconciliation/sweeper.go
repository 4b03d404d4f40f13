package reconciliation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/config"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/transfer"
)

// HealthChecker reports ledger reachability
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Batch is what the sweeper drains. The coordinator implements it so that
// sweeps go through the same audit and event path as manual broadcasts.
type Batch interface {
	Pending() []transfer.Record
	BroadcastAll(ctx context.Context) (Summary, error)
}

// CheckOnline retries the health check with exponential backoff (base, 2·base,
// 4·base, ...) and returns ErrOffline once retries are exhausted.
func CheckOnline(ctx context.Context, checker HealthChecker, retries int, base time.Duration) error {
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if lastErr = checker.Health(ctx); lastErr == nil {
			return nil
		}
		if attempt == retries {
			break
		}

		wait := base << attempt
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrOffline, retries+1, lastErr)
}

// Sweeper periodically broadcasts the pending queue while the ledger is reachable
type Sweeper struct {
	batch    Batch
	checker  HealthChecker
	logger   *slog.Logger
	interval time.Duration
	retries  int
	backoff  time.Duration
}

func NewSweeper(cfg *config.BroadcastConfig, batch Batch, checker HealthChecker, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		batch:    batch,
		checker:  checker,
		logger:   logger,
		interval: cfg.SweepInterval,
		retries:  cfg.OnlineRetries,
		backoff:  cfg.OnlineBackoff,
	}
}

// Start sweeps on every tick until ctx is canceled
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("Starting broadcast sweeper",
		"interval", s.interval.String(),
		"online_retries", s.retries,
	)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Broadcast sweeper stopping due to context cancellation.")
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.Warn("Broadcast sweep skipped", "error", err)
			}
		}
	}
}

// RunOnce performs a single sweep. It is a no-op when nothing is pending.
func (s *Sweeper) RunOnce(ctx context.Context) (Summary, error) {
	if len(s.batch.Pending()) == 0 {
		s.logger.Debug("No pending transfers to broadcast")
		return Summary{Succeeded: []string{}, Failed: []Failure{}}, nil
	}

	if err := CheckOnline(ctx, s.checker, s.retries, s.backoff); err != nil {
		return Summary{}, err
	}

	summary, err := s.batch.BroadcastAll(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("broadcast sweep failed: %w", err)
	}
	for _, f := range summary.Failed {
		s.logger.Warn("Transfer left pending after sweep", "transfer_id", f.ID, "error", f.Err)
	}
	return summary, nil
}
