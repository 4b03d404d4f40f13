package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/coordinator"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/platform/ledger"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/platform/wallet"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSessionHandler_Login(t *testing.T) {
	setup := func() (*MockWalletService, *SessionHandler) {
		svc := new(MockWalletService)
		h := NewSessionHandler(testLogger(), svc, "flo-default")
		return svc, h
	}

	t.Run("Success", func(t *testing.T) {
		svc, h := setup()
		router := newRouter()
		router.POST("/session", h.Login)

		expires := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		svc.On("Login", mock.Anything, "flo").Return(coordinator.Session{Account: "acct", ExpiresAt: expires}, nil)

		rr, resp := serve(t, router, http.MethodPost, "/session", LoginRequest{Identity: "flo"})
		assert.Equal(t, http.StatusCreated, rr.Code)

		var session SessionResponse
		require.NoError(t, json.Unmarshal(resp.Data, &session))
		assert.Equal(t, "acct", session.Account)
		assert.Equal(t, "2026-01-02T03:04:05Z", session.ExpiresAt)
		svc.AssertExpectations(t)
	})

	t.Run("DefaultIdentity", func(t *testing.T) {
		for _, body := range []interface{}{nil, `{}`} {
			svc, h := setup()
			router := newRouter()
			router.POST("/session", h.Login)

			svc.On("Login", mock.Anything, "flo-default").Return(coordinator.Session{Account: "acct"}, nil)

			rr, resp := serve(t, router, http.MethodPost, "/session", body)
			assert.Equal(t, http.StatusCreated, rr.Code)
			assert.JSONEq(t, `{"account":"acct"}`, string(resp.Data))
			svc.AssertExpectations(t)
		}
	})

	t.Run("InvalidBody", func(t *testing.T) {
		svc, h := setup()
		router := newRouter()
		router.POST("/session", h.Login)

		rr, resp := serve(t, router, http.MethodPost, "/session", `{"identity": 5}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "BAD_REQUEST", resp.Error.Code)
		svc.AssertNotCalled(t, "Login", mock.Anything, mock.Anything)
	})

	t.Run("Declined", func(t *testing.T) {
		svc, h := setup()
		router := newRouter()
		router.POST("/session", h.Login)

		svc.On("Login", mock.Anything, "flo").
			Return(coordinator.Session{}, &coordinator.AuthorizationError{Op: "login", Err: wallet.ErrAuthorization})

		rr, resp := serve(t, router, http.MethodPost, "/session", LoginRequest{Identity: "flo"})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "UNAUTHORIZED", resp.Error.Code)
	})
}

func TestSessionHandler_Logout(t *testing.T) {
	svc := new(MockWalletService)
	h := NewSessionHandler(testLogger(), svc, "flo-default")
	router := newRouter()
	router.DELETE("/session", h.Logout)

	svc.On("Logout", mock.Anything).Return(nil).Once()
	rr, _ := serve(t, router, http.MethodDelete, "/session", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	svc.On("Logout", mock.Anything).Return(errors.New("radio stuck")).Once()
	rr, _ = serve(t, router, http.MethodDelete, "/session", nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestSessionHandler_Balance(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		svc := new(MockWalletService)
		h := NewSessionHandler(testLogger(), svc, "flo-default")
		router := newRouter()
		router.GET("/balance", h.Balance)

		svc.On("Session").Return(coordinator.Session{Account: "acct"}, true)
		svc.On("Balance", mock.Anything).Return(uint64(2_500_000_000), nil)

		rr, resp := serve(t, router, http.MethodGet, "/balance", nil)
		assert.Equal(t, http.StatusOK, rr.Code)

		var balance BalanceResponse
		require.NoError(t, json.Unmarshal(resp.Data, &balance))
		assert.Equal(t, "acct", balance.Account)
		assert.Equal(t, uint64(2_500_000_000), balance.Lamports)
		assert.Equal(t, "2.5", balance.SOL)
	})

	t.Run("NoSession", func(t *testing.T) {
		svc := new(MockWalletService)
		h := NewSessionHandler(testLogger(), svc, "flo-default")
		router := newRouter()
		router.GET("/balance", h.Balance)

		svc.On("Session").Return(coordinator.Session{}, false)

		rr, _ := serve(t, router, http.MethodGet, "/balance", nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		svc.AssertNotCalled(t, "Balance", mock.Anything)
	})
}

func TestSessionHandler_LedgerHistory(t *testing.T) {
	setup := func() (*MockWalletService, *gin.Engine) {
		svc := new(MockWalletService)
		h := NewSessionHandler(testLogger(), svc, "flo-default")
		router := newRouter()
		router.GET("/ledger/history", h.LedgerHistory)
		return svc, router
	}

	t.Run("Success", func(t *testing.T) {
		svc, router := setup()
		at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
		svc.On("Session").Return(coordinator.Session{Account: "acct"}, true)
		svc.On("LedgerHistory", mock.Anything, 5).Return([]ledger.Activity{
			{Signature: "sig-1", Slot: 42, BlockTime: &at, Memo: "lunch", Delta: -1_500_005_000, Fee: 5000},
			{Signature: "sig-2", Slot: 40, Failed: true},
		}, nil)

		rr, resp := serve(t, router, http.MethodGet, "/ledger/history?limit=5", nil)
		assert.Equal(t, http.StatusOK, rr.Code)

		var activity []LedgerActivityResponse
		require.NoError(t, json.Unmarshal(resp.Data, &activity))
		require.Len(t, activity, 2)
		assert.Equal(t, "sig-1", activity[0].Signature)
		assert.Equal(t, "2026-05-01T12:00:00Z", activity[0].BlockTime)
		assert.Equal(t, int64(-1_500_005_000), activity[0].DeltaLamports)
		assert.True(t, activity[1].Failed)
		assert.Empty(t, activity[1].BlockTime)
	})

	t.Run("DefaultLimit", func(t *testing.T) {
		svc, router := setup()
		svc.On("Session").Return(coordinator.Session{Account: "acct"}, true)
		svc.On("LedgerHistory", mock.Anything, 0).Return(nil, nil)

		rr, resp := serve(t, router, http.MethodGet, "/ledger/history", nil)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `[]`, string(resp.Data))
	})

	t.Run("InvalidLimit", func(t *testing.T) {
		svc, router := setup()

		rr, _ := serve(t, router, http.MethodGet, "/ledger/history?limit=5000", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		svc.AssertNotCalled(t, "LedgerHistory", mock.Anything, mock.Anything)
	})

	t.Run("NoSession", func(t *testing.T) {
		svc, router := setup()
		svc.On("Session").Return(coordinator.Session{}, false)

		rr, _ := serve(t, router, http.MethodGet, "/ledger/history", nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("LedgerUnreachable", func(t *testing.T) {
		svc, router := setup()
		svc.On("Session").Return(coordinator.Session{Account: "acct"}, true)
		svc.On("LedgerHistory", mock.Anything, 0).Return(nil, errors.New("connection refused"))

		rr, _ := serve(t, router, http.MethodGet, "/ledger/history", nil)
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}
