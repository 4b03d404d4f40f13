package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/coordinator"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/audit"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/transfer"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/platform/ledger"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/platform/nfc"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/reconciliation"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockWalletService struct {
	mock.Mock
}

func (m *MockWalletService) Login(ctx context.Context, identity string) (coordinator.Session, error) {
	args := m.Called(ctx, identity)
	return args.Get(0).(coordinator.Session), args.Error(1)
}

func (m *MockWalletService) Logout(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockWalletService) Session() (coordinator.Session, bool) {
	args := m.Called()
	return args.Get(0).(coordinator.Session), args.Bool(1)
}

func (m *MockWalletService) Balance(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockWalletService) LedgerHistory(ctx context.Context, limit int) ([]ledger.Activity, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledger.Activity), args.Error(1)
}

func (m *MockWalletService) CreateTransfer(ctx context.Context, req coordinator.CreateTransferRequest) (transfer.Record, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(transfer.Record), args.Error(1)
}

func (m *MockWalletService) SignTransfer(ctx context.Context) (transfer.Record, error) {
	args := m.Called(ctx)
	return args.Get(0).(transfer.Record), args.Error(1)
}

func (m *MockWalletService) SendTransfer(ctx context.Context) (transfer.Record, error) {
	args := m.Called(ctx)
	return args.Get(0).(transfer.Record), args.Error(1)
}

func (m *MockWalletService) Current() (transfer.Record, bool) {
	args := m.Called()
	return args.Get(0).(transfer.Record), args.Bool(1)
}

func (m *MockWalletService) ClearCurrent() error {
	return m.Called().Error(0)
}

func (m *MockWalletService) StartReceiving(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockWalletService) StopReceiving() error {
	return m.Called().Error(0)
}

func (m *MockWalletService) ReceiveStatus() coordinator.ReceiveStatus {
	return m.Called().Get(0).(coordinator.ReceiveStatus)
}

func (m *MockWalletService) FinalizeCurrent(ctx context.Context) (transfer.Record, error) {
	args := m.Called(ctx)
	return args.Get(0).(transfer.Record), args.Error(1)
}

func (m *MockWalletService) RejectCurrent(ctx context.Context, reason string) error {
	return m.Called(ctx, reason).Error(0)
}

func (m *MockWalletService) Pending() []transfer.Record {
	return m.Called().Get(0).([]transfer.Record)
}

func (m *MockWalletService) Completed() []transfer.Record {
	return m.Called().Get(0).([]transfer.Record)
}

func (m *MockWalletService) Broadcast(ctx context.Context, id string) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

func (m *MockWalletService) BroadcastAll(ctx context.Context) (reconciliation.Summary, error) {
	args := m.Called(ctx)
	return args.Get(0).(reconciliation.Summary), args.Error(1)
}

func (m *MockWalletService) Capability(ctx context.Context) (nfc.Capability, error) {
	args := m.Called(ctx)
	return args.Get(0).(nfc.Capability), args.Error(1)
}

func (m *MockWalletService) PromptEnable(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type MockHistoryService struct {
	mock.Mock
}

func (m *MockHistoryService) GetTransfer(ctx context.Context, id string) (*transfer.Record, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transfer.Record), args.Error(1)
}

func (m *MockHistoryService) GetAuditTrail(ctx context.Context, id string, page, perPage int) ([]*audit.Entry, int64, error) {
	args := m.Called(ctx, id, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*audit.Entry), args.Get(1).(int64), args.Error(2)
}

// testResponse is Response with the data left raw for per-test decoding
type testResponse struct {
	Data      json.RawMessage `json:"data"`
	Error     *ErrorInfo      `json:"error,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
	Meta      *MetaInfo       `json:"meta,omitempty"`
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func serve(t *testing.T, router *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, testResponse) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	var resp testResponse
	if rr.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	}
	return rr, resp
}
