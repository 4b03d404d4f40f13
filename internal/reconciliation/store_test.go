package reconciliation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/config"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/queue"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/shared"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/transfer"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/platform/ledger"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) SubmitRaw(ctx context.Context, signedPayload []byte) (string, error) {
	args := m.Called(ctx, signedPayload)
	return args.String(0), args.Error(1)
}

func (m *MockLedger) Confirm(ctx context.Context, signature, anchor string) (ledger.Confirmation, error) {
	args := m.Called(ctx, signature, anchor)
	return args.Get(0).(ledger.Confirmation), args.Error(1)
}

type MockQueueRepo struct {
	mock.Mock
}

func (m *MockQueueRepo) Load(ctx context.Context) (*queue.Snapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*queue.Snapshot), args.Error(1)
}

func (m *MockQueueRepo) Save(ctx context.Context, snapshot *queue.Snapshot) error {
	args := m.Called(ctx, snapshot)
	return args.Error(0)
}

var anchor = base58.Encode(bytes.Repeat([]byte{9}, 32))

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func testConfig() *config.BroadcastConfig {
	return &config.BroadcastConfig{
		Timeout:       time.Second,
		FanOut:        4,
		SweepInterval: time.Minute,
		OnlineRetries: 2,
		OnlineBackoff: time.Millisecond,
	}
}

func newTestStore(t *testing.T) (*Store, *MockQueueRepo, *MockLedger) {
	t.Helper()
	repo, ledgerClient := &MockQueueRepo{}, &MockLedger{}
	store, err := NewStore(testConfig(), repo, ledgerClient, testLogger())
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return store, repo, ledgerClient
}

func finalized(t *testing.T, id string) transfer.Record {
	t.Helper()
	now := time.Now()
	r, err := transfer.ApplyReceived(transfer.Inbound{
		ID:            id,
		SignedPayload: []byte("signed-" + id),
		Nonce:         "nonce-" + id,
		Amount:        1000,
		Fee:           transfer.DefaultFee,
		From:          base58.Encode(bytes.Repeat([]byte{1}, 32)),
		To:            base58.Encode(bytes.Repeat([]byte{2}, 32)),
		Anchor:        anchor,
		SentAt:        now.Add(-time.Minute),
	}, now)
	require.NoError(t, err)
	r, err = transfer.Finalize(r, now)
	require.NoError(t, err)
	return r
}

func enqueue(t *testing.T, store *Store, repo *MockQueueRepo, ids ...string) {
	t.Helper()
	repo.On("Save", mock.Anything, mock.Anything).Return(nil)
	for _, id := range ids {
		_, err := store.EnqueuePending(context.Background(), finalized(t, id))
		require.NoError(t, err)
	}
}

func ids(records []transfer.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func TestStore_Load(t *testing.T) {
	t.Run("NothingPersisted", func(t *testing.T) {
		store, repo, _ := newTestStore(t)
		repo.On("Load", mock.Anything).Return(nil, queue.ErrSnapshotNotFound)

		result := store.Load(context.Background())
		assert.False(t, result.Degraded)
		assert.Empty(t, store.Pending())
		assert.Empty(t, store.Completed())
	})

	t.Run("CorruptDegradesToEmpty", func(t *testing.T) {
		store, repo, _ := newTestStore(t)
		repo.On("Load", mock.Anything).Return(nil, queue.ErrCorruptSnapshot{Key: "k", Err: errors.New("bad json")})

		result := store.Load(context.Background())
		assert.True(t, result.Degraded)
		assert.Empty(t, store.Pending())
	})

	t.Run("DropsInvalidAndDuplicateRecords", func(t *testing.T) {
		store, repo, _ := newTestStore(t)

		a, err := transfer.MarkPendingBroadcast(finalized(t, "a"))
		require.NoError(t, err)
		b, err := transfer.MarkPendingBroadcast(finalized(t, "b"))
		require.NoError(t, err)
		bDone, err := transfer.MarkCompleted(b, "sig-b", time.Now())
		require.NoError(t, err)

		broken := a.Clone()
		broken.ID = "broken"
		broken.SignedPayload = nil

		wrongQueue := finalized(t, "wrong")

		repo.On("Load", mock.Anything).Return(&queue.Snapshot{
			Version:   queue.SnapshotVersion,
			Pending:   []transfer.Record{a, b, broken, wrongQueue, a},
			Completed: []transfer.Record{bDone},
		}, nil)

		result := store.Load(context.Background())
		assert.Equal(t, 1, result.Pending)
		assert.Equal(t, 1, result.Completed)
		assert.Equal(t, 4, result.Dropped)
		assert.Equal(t, []string{"a"}, ids(store.Pending()))
		assert.Equal(t, []string{"b"}, ids(store.Completed()))
	})
}

func TestStore_EnqueuePending(t *testing.T) {
	ctx := context.Background()

	t.Run("PersistsBeforePublishing", func(t *testing.T) {
		store, repo, _ := newTestStore(t)
		repo.On("Save", mock.Anything, mock.MatchedBy(func(s *queue.Snapshot) bool {
			return len(s.Pending) == 1 && s.Pending[0].ID == "a" &&
				s.Pending[0].Status == shared.TransferStatusPendingBroadcast
		})).Return(nil).Once()

		queued, err := store.EnqueuePending(ctx, finalized(t, "a"))
		require.NoError(t, err)
		assert.Equal(t, shared.TransferStatusPendingBroadcast, queued.Status)
		assert.Equal(t, []string{"a"}, ids(store.Pending()))
		repo.AssertExpectations(t)
	})

	t.Run("RequiresFinalized", func(t *testing.T) {
		store, repo, _ := newTestStore(t)
		received := finalized(t, "a")
		received.Status = shared.TransferStatusReceived
		received.Timestamps.Finalized = nil

		_, err := store.EnqueuePending(ctx, received)
		assert.ErrorIs(t, err, ErrInvalidState)
		assert.ErrorIs(t, err, transfer.ErrInvalidTransition)
		repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("RejectsDuplicates", func(t *testing.T) {
		store, repo, _ := newTestStore(t)
		enqueue(t, store, repo, "a")

		_, err := store.EnqueuePending(ctx, finalized(t, "a"))
		assert.ErrorIs(t, err, ErrDuplicateTransfer)
		assert.Len(t, store.Pending(), 1)
	})

	t.Run("SaveFailureLeavesQueueUnchanged", func(t *testing.T) {
		store, repo, _ := newTestStore(t)
		repo.On("Save", mock.Anything, mock.Anything).Return(errors.New("disk full"))

		_, err := store.EnqueuePending(ctx, finalized(t, "a"))
		var persistErr *PersistenceError
		require.True(t, errors.As(err, &persistErr))
		assert.Equal(t, "enqueue", persistErr.Op)
		assert.Empty(t, store.Pending())
	})
}

func TestStore_BroadcastOne(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		store, repo, ledgerClient := newTestStore(t)
		enqueue(t, store, repo, "a")

		ledgerClient.On("SubmitRaw", mock.Anything, []byte("signed-a")).Return("sig-a", nil).Once()
		ledgerClient.On("Confirm", mock.Anything, "sig-a", anchor).Return(ledger.Confirmation{Confirmed: true}, nil).Once()

		sig, err := store.BroadcastOne(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "sig-a", sig)
		assert.Empty(t, store.Pending())

		completed := store.Completed()
		require.Len(t, completed, 1)
		assert.Equal(t, shared.TransferStatusCompleted, completed[0].Status)
		assert.Equal(t, "sig-a", completed[0].LedgerSignature)
		require.NotNil(t, completed[0].Timestamps.Broadcasted)

		// a later call resolves from the completed queue without resubmitting
		sig, err = store.BroadcastOne(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "sig-a", sig)
		ledgerClient.AssertNumberOfCalls(t, "SubmitRaw", 1)
	})

	t.Run("NotFound", func(t *testing.T) {
		store, _, _ := newTestStore(t)
		_, err := store.BroadcastOne(ctx, "missing")
		assert.ErrorIs(t, err, NotFoundError{})
		assert.ErrorIs(t, err, NotFoundError{ID: "missing"})
	})

	failures := []struct {
		name     string
		setup    func(l *MockLedger)
		wantKind BroadcastKind
	}{
		{
			name: "Rejected",
			setup: func(l *MockLedger) {
				l.On("SubmitRaw", mock.Anything, mock.Anything).Return("", fmt.Errorf("%w: insufficient funds", ledger.ErrRejected))
			},
			wantKind: BroadcastRejected,
		},
		{
			name: "Network",
			setup: func(l *MockLedger) {
				l.On("SubmitRaw", mock.Anything, mock.Anything).Return("", errors.New("connection refused"))
			},
			wantKind: BroadcastNetwork,
		},
		{
			name: "Timeout",
			setup: func(l *MockLedger) {
				l.On("SubmitRaw", mock.Anything, mock.Anything).Return("sig-a", nil)
				l.On("Confirm", mock.Anything, "sig-a", anchor).
					Run(func(args mock.Arguments) { <-args.Get(0).(context.Context).Done() }).
					Return(ledger.Confirmation{}, context.DeadlineExceeded)
			},
			wantKind: BroadcastTimeout,
		},
		{
			name: "Unconfirmed",
			setup: func(l *MockLedger) {
				l.On("SubmitRaw", mock.Anything, mock.Anything).Return("sig-a", nil)
				l.On("Confirm", mock.Anything, "sig-a", anchor).Return(ledger.Confirmation{Err: ledger.ErrAnchorExpired}, nil)
			},
			wantKind: BroadcastUnconfirmed,
		},
		{
			name: "FailedOnChain",
			setup: func(l *MockLedger) {
				l.On("SubmitRaw", mock.Anything, mock.Anything).Return("sig-a", nil)
				l.On("Confirm", mock.Anything, "sig-a", anchor).Return(ledger.Confirmation{Err: ledger.ErrRejected}, nil)
			},
			wantKind: BroadcastRejected,
		},
	}

	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			store, repo, ledgerClient := newTestStore(t)
			store.timeout = 20 * time.Millisecond
			enqueue(t, store, repo, "a")
			before := store.Pending()
			tt.setup(ledgerClient)

			_, err := store.BroadcastOne(ctx, "a")
			var broadcastErr *BroadcastError
			require.True(t, errors.As(err, &broadcastErr))
			assert.Equal(t, tt.wantKind, broadcastErr.Kind)
			assert.Equal(t, "a", broadcastErr.ID)

			assert.Equal(t, before, store.Pending())
			assert.Empty(t, store.Completed())
		})
	}

	t.Run("PersistFailureKeepsRecordPending", func(t *testing.T) {
		store, repo, ledgerClient := newTestStore(t)
		repo.On("Save", mock.Anything, mock.MatchedBy(func(s *queue.Snapshot) bool {
			return len(s.Completed) == 0
		})).Return(nil)
		repo.On("Save", mock.Anything, mock.MatchedBy(func(s *queue.Snapshot) bool {
			return len(s.Completed) > 0
		})).Return(errors.New("read-only filesystem"))

		_, err := store.EnqueuePending(ctx, finalized(t, "a"))
		require.NoError(t, err)

		ledgerClient.On("SubmitRaw", mock.Anything, mock.Anything).Return("sig-a", nil)
		ledgerClient.On("Confirm", mock.Anything, "sig-a", anchor).Return(ledger.Confirmation{Confirmed: true}, nil)

		_, err = store.BroadcastOne(ctx, "a")
		var persistErr *PersistenceError
		require.True(t, errors.As(err, &persistErr))
		assert.Equal(t, []string{"a"}, ids(store.Pending()))
		assert.Empty(t, store.Completed())
	})
}

func TestStore_BroadcastOne_ConcurrentCallsSubmitOnce(t *testing.T) {
	store, repo, ledgerClient := newTestStore(t)
	enqueue(t, store, repo, "a")

	release := make(chan struct{})
	ledgerClient.On("SubmitRaw", mock.Anything, []byte("signed-a")).
		Run(func(mock.Arguments) { <-release }).
		Return("sig-a", nil)
	ledgerClient.On("Confirm", mock.Anything, "sig-a", anchor).Return(ledger.Confirmation{Confirmed: true}, nil)

	var wg sync.WaitGroup
	sigs := make([]string, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sigs[i], errs[i] = store.BroadcastOne(context.Background(), "a")
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := range errs {
		require.NoError(t, errs[i])
		assert.Equal(t, "sig-a", sigs[i])
	}
	ledgerClient.AssertNumberOfCalls(t, "SubmitRaw", 1)
	assert.Equal(t, []string{"a"}, ids(store.Completed()))
	assert.Empty(t, store.Pending())
}

func TestStore_BroadcastOne_CallerContextIsolation(t *testing.T) {
	store, repo, ledgerClient := newTestStore(t)
	enqueue(t, store, repo, "a")

	started := make(chan struct{})
	release := make(chan struct{})
	submitCtxErr := make(chan error, 1)
	ledgerClient.On("SubmitRaw", mock.Anything, []byte("signed-a")).
		Run(func(args mock.Arguments) {
			close(started)
			<-release
			submitCtxErr <- args.Get(0).(context.Context).Err()
		}).
		Return("sig-a", nil).Once()
	ledgerClient.On("Confirm", mock.Anything, "sig-a", anchor).Return(ledger.Confirmation{Confirmed: true}, nil).Once()

	cancelled, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := store.BroadcastOne(cancelled, "a")
		firstErr <- err
	}()
	<-started

	type outcome struct {
		sig string
		err error
	}
	second := make(chan outcome, 1)
	go func() {
		sig, err := store.BroadcastOne(context.Background(), "a")
		second <- outcome{sig, err}
	}()

	cancel()
	err := <-firstErr
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	// the submission is still running for the live caller
	time.Sleep(10 * time.Millisecond)
	close(release)

	got := <-second
	require.NoError(t, <-submitCtxErr)
	require.NoError(t, got.err)
	assert.Equal(t, "sig-a", got.sig)
	ledgerClient.AssertNumberOfCalls(t, "SubmitRaw", 1)
	assert.Equal(t, []string{"a"}, ids(store.Completed()))
	assert.Empty(t, store.Pending())
}

func TestStore_BroadcastOne_CallerDeadline(t *testing.T) {
	store, repo, ledgerClient := newTestStore(t)
	enqueue(t, store, repo, "a")

	release := make(chan struct{})
	ledgerClient.On("SubmitRaw", mock.Anything, []byte("signed-a")).
		Run(func(mock.Arguments) { <-release }).
		Return("sig-a", nil).Once()
	ledgerClient.On("Confirm", mock.Anything, "sig-a", anchor).Return(ledger.Confirmation{Confirmed: true}, nil).Once()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := store.BroadcastOne(ctx, "a")
	var broadcastErr *BroadcastError
	require.True(t, errors.As(err, &broadcastErr))
	assert.Equal(t, BroadcastTimeout, broadcastErr.Kind)
	assert.Equal(t, []string{"a"}, ids(store.Pending()))

	close(release)
	assert.Eventually(t, func() bool {
		return len(store.Completed()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestStore_BroadcastAll_PartialFailure(t *testing.T) {
	store, repo, ledgerClient := newTestStore(t)
	enqueue(t, store, repo, "first", "second", "third")
	original, ok := store.Lookup("second")
	require.True(t, ok)

	ledgerClient.On("SubmitRaw", mock.Anything, []byte("signed-first")).Return("sig-1", nil)
	ledgerClient.On("SubmitRaw", mock.Anything, []byte("signed-second")).Return("", fmt.Errorf("%w: blockhash not found", ledger.ErrRejected))
	ledgerClient.On("SubmitRaw", mock.Anything, []byte("signed-third")).Return("sig-3", nil)
	ledgerClient.On("Confirm", mock.Anything, mock.Anything, anchor).Return(ledger.Confirmation{Confirmed: true}, nil)

	summary := store.BroadcastAll(context.Background())

	assert.Equal(t, []string{"first", "third"}, summary.Succeeded)
	require.Len(t, summary.Failed, 1)
	assert.Equal(t, "second", summary.Failed[0].ID)
	assert.ErrorIs(t, summary.Failed[0].Err, ledger.ErrRejected)

	pending := store.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, original, pending[0])
	assert.ElementsMatch(t, []string{"first", "third"}, ids(store.Completed()))

	for _, r := range store.Completed() {
		_, stillPending := indexOf(pending, r.ID)
		assert.False(t, stillPending)
	}
}

func TestStore_BroadcastAll_Empty(t *testing.T) {
	store, _, ledgerClient := newTestStore(t)

	summary := store.BroadcastAll(context.Background())
	assert.Empty(t, summary.Succeeded)
	assert.Empty(t, summary.Failed)
	ledgerClient.AssertNotCalled(t, "SubmitRaw", mock.Anything, mock.Anything)
}

func TestStore_Seen(t *testing.T) {
	store, repo, _ := newTestStore(t)
	enqueue(t, store, repo, "a")

	assert.True(t, store.Seen("a", ""))
	assert.True(t, store.Seen("other", "nonce-a"))
	assert.False(t, store.Seen("other", "nonce-other"))
	assert.False(t, store.Seen("other", ""))
}
