package coordinator

import (
	"context"

	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/audit"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/shared"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/transfer"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/platform/ledger"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/platform/nfc"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/platform/wallet"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/proximity"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/reconciliation"
	"github.com/stretchr/testify/mock"
)

type MockLedgerClient struct {
	mock.Mock
}

func (m *MockLedgerClient) GetBalance(ctx context.Context, address string) (uint64, error) {
	args := m.Called(ctx, address)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockLedgerClient) GetRecentAnchor(ctx context.Context) (ledger.Anchor, error) {
	args := m.Called(ctx)
	return args.Get(0).(ledger.Anchor), args.Error(1)
}

func (m *MockLedgerClient) BuildUnsignedTransfer(from, to string, lamports uint64, memo, anchor string) ([]byte, error) {
	args := m.Called(from, to, lamports, memo, anchor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockLedgerClient) History(ctx context.Context, address string, limit int) ([]ledger.Activity, error) {
	args := m.Called(ctx, address, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledger.Activity), args.Error(1)
}

type MockAuthorizer struct {
	mock.Mock
}

func (m *MockAuthorizer) Authorize(ctx context.Context, identity string) (wallet.Authorization, error) {
	args := m.Called(ctx, identity)
	return args.Get(0).(wallet.Authorization), args.Error(1)
}

func (m *MockAuthorizer) Deauthorize(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockAuthorizer) Sign(ctx context.Context, unsigned []byte, token string) ([]byte, error) {
	args := m.Called(ctx, unsigned, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

type MockProtocol struct {
	mock.Mock
}

func (m *MockProtocol) State() proximity.State {
	args := m.Called()
	return args.Get(0).(proximity.State)
}

func (m *MockProtocol) CheckCapability(ctx context.Context) (nfc.Capability, error) {
	args := m.Called(ctx)
	return args.Get(0).(nfc.Capability), args.Error(1)
}

func (m *MockProtocol) PromptEnable(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockProtocol) Send(ctx context.Context, r transfer.Record) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockProtocol) Listen(ctx context.Context, h proximity.Handler) error {
	args := m.Called(ctx, h)
	return args.Error(0)
}

func (m *MockProtocol) Stop() error {
	args := m.Called()
	return args.Error(0)
}

type MockStore struct {
	mock.Mock
}

func (m *MockStore) EnqueuePending(ctx context.Context, r transfer.Record) (transfer.Record, error) {
	args := m.Called(ctx, r)
	if fn, ok := args.Get(0).(func(context.Context, transfer.Record) transfer.Record); ok {
		return fn(ctx, r), args.Error(1)
	}
	return args.Get(0).(transfer.Record), args.Error(1)
}

func (m *MockStore) BroadcastOne(ctx context.Context, id string) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

func (m *MockStore) BroadcastAll(ctx context.Context) reconciliation.Summary {
	args := m.Called(ctx)
	return args.Get(0).(reconciliation.Summary)
}

func (m *MockStore) Pending() []transfer.Record {
	args := m.Called()
	return args.Get(0).([]transfer.Record)
}

func (m *MockStore) Completed() []transfer.Record {
	args := m.Called()
	return args.Get(0).([]transfer.Record)
}

func (m *MockStore) Lookup(id string) (transfer.Record, bool) {
	args := m.Called(id)
	return args.Get(0).(transfer.Record), args.Bool(1)
}

func (m *MockStore) Seen(id, nonce string) bool {
	args := m.Called(id, nonce)
	return args.Bool(0)
}

type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Append(ctx context.Context, entry *audit.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAuditRepository) ListByTransfer(ctx context.Context, transferID string, limit, offset int) ([]*audit.Entry, error) {
	args := m.Called(ctx, transferID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*audit.Entry), args.Error(1)
}

func (m *MockAuditRepository) CountByTransfer(ctx context.Context, transferID string) (int64, error) {
	args := m.Called(ctx, transferID)
	return args.Get(0).(int64), args.Error(1)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, event shared.TransferEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type MockDeadLetterPublisher struct {
	mock.Mock
}

func (m *MockDeadLetterPublisher) PublishDiscardedTag(ctx context.Context, data []byte, reason string) error {
	args := m.Called(ctx, data, reason)
	return args.Error(0)
}

// auditAction matches an audit entry by action
func auditAction(action shared.AuditAction) interface{} {
	return mock.MatchedBy(func(e *audit.Entry) bool { return e.Action == action })
}

// eventType matches a transfer event by type
func eventType(t shared.EventType) interface{} {
	return mock.MatchedBy(func(e shared.TransferEvent) bool { return e.Type == t })
}
