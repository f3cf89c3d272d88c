package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"susu/internal/capabilities"
	"susu/internal/platform/middleware"
	"susu/internal/protocol/service"
	"susu/internal/protocol/store"
	"susu/pkg/domain"
)

const poolAccount = domain.Account("protocol-pool")

type fixture struct {
	router *chi.Mux
	tokens *capabilities.TokenService
	ledger *capabilities.InMemoryLedger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	ledger := capabilities.NewInMemoryLedger(poolAccount)
	svc := service.New(
		store.NewInMemoryProtocolStore(),
		ledger,
		capabilities.NewContextAuthorizer(),
		poolAccount,
	)
	tokens := capabilities.NewTokenService("test-signing-key", "susu-test")

	r := chi.NewRouter()
	r.Use(middleware.RequestMeta)
	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.RequireAuth(tokens, logger))
		New(svc, logger).Register(r)
	})
	return &fixture{router: r, tokens: tokens, ledger: ledger}
}

func (f *fixture) do(t *testing.T, method, path string, as domain.Account, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if as != "" {
		token, err := f.tokens.Issue(as, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestInitializeAndFee(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/protocol/initialize", "owner", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	p := decodeBody[ProtocolResponse](t, rec)
	assert.Equal(t, "owner", p.Admin)
	assert.Equal(t, "owner", p.Treasury)
	assert.Zero(t, p.FeeBasisPoints)

	rec = f.do(t, http.MethodPost, "/v1/protocol/fee", "owner", SetFeeRequest{
		BasisPoints: 250, Treasury: "treasury",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	p = decodeBody[ProtocolResponse](t, rec)
	assert.Equal(t, uint32(250), p.FeeBasisPoints)
	assert.Equal(t, "treasury", p.Treasury)

	rec = f.do(t, http.MethodGet, "/v1/protocol/fee", "anyone", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	fee := decodeBody[FeeResponse](t, rec)
	assert.Equal(t, uint32(250), fee.BasisPoints)
	assert.Equal(t, "treasury", fee.Treasury)

	t.Run("non-admin cannot set fee", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/v1/protocol/fee", "intruder", SetFeeRequest{
			BasisPoints: 100, Treasury: "elsewhere",
		})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		envelope := decodeBody[map[string]any](t, rec)
		assert.Equal(t, float64(1005), envelope["code"])
	})

	t.Run("fee above 100 percent is rejected", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/v1/protocol/fee", "owner", SetFeeRequest{
			BasisPoints: 10001, Treasury: "treasury",
		})
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		envelope := decodeBody[map[string]any](t, rec)
		assert.Equal(t, float64(1006), envelope["code"])
	})
}

func TestFundsOverHTTP(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/v1/protocol/initialize", "owner", nil).Code)

	f.ledger.Mint("USDC", "alice", 500)
	f.ledger.Approve("USDC", "alice", 500)

	rec := f.do(t, http.MethodPost, "/v1/protocol/funds", "alice", FundsRequest{Asset: "USDC", Amount: 200})
	require.Equal(t, http.StatusOK, rec.Code)
	bal := decodeBody[BalanceResponse](t, rec)
	assert.Equal(t, int64(200), bal.Amount)

	rec = f.do(t, http.MethodGet, "/v1/protocol/balance?account=alice&asset=USDC", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	bal = decodeBody[BalanceResponse](t, rec)
	assert.Equal(t, int64(200), bal.Amount)
	assert.Equal(t, domain.Amount(200), f.ledger.Balance("USDC", poolAccount))

	t.Run("withdraw blocked while protocol is live", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/v1/protocol/emergency-withdraw", "alice", FundsRequest{Asset: "USDC"})
		require.Equal(t, http.StatusForbidden, rec.Code)
		envelope := decodeBody[map[string]any](t, rec)
		assert.Equal(t, float64(1010), envelope["code"])
	})
}
