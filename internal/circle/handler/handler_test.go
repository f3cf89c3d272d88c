package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"susu/internal/capabilities"
	"susu/internal/circle/service"
	"susu/internal/circle/store"
	"susu/internal/events"
	"susu/internal/platform/middleware"
	"susu/pkg/domain"
	dErrors "susu/pkg/domain-errors"
)

const (
	testAsset   = "USDC"
	poolAccount = domain.Account("protocol-pool")
	signingKey  = "test-signing-key"
)

type fixture struct {
	router *chi.Mux
	tokens *capabilities.TokenService
	ledger *capabilities.InMemoryLedger
}

// staticFees keeps handler tests independent of the protocol module.
type staticFees struct{}

func (staticFees) FeeConfig(context.Context) (uint32, domain.Account, error) {
	return 0, "treasury", nil
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	ledger := capabilities.NewInMemoryLedger(poolAccount)
	svc := service.New(
		store.NewInMemoryCircleStore(),
		ledger,
		capabilities.NewContextAuthorizer(),
		capabilities.NewSeededRandSource(7),
		staticFees{},
		poolAccount,
		service.WithPublisher(events.NewMemoryPublisher()),
	)
	tokens := capabilities.NewTokenService(signingKey, "susu-test")

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

func TestAuthRequired(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/circles", "", CreateCircleRequest{
		Contribution: 100, MaxMembers: 5, Asset: testAsset,
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	envelope := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "unauthorized", envelope["error"])
	assert.Equal(t, float64(1005), envelope["code"])
}

func TestCreateAndJoinFlow(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/circles", "admin", CreateCircleRequest{
		Contribution: 100, MaxMembers: 5, Asset: testAsset,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody[CircleResponse](t, rec)
	assert.Equal(t, "admin", created.Admin)
	assert.Equal(t, "open", created.State)

	base := fmt.Sprintf("/v1/circles/%d", created.ID)
	for i := 0; i < 2; i++ {
		acct := domain.Account(fmt.Sprintf("member-%d", i))
		rec = f.do(t, http.MethodPost, base+"/join", acct, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	joined := decodeBody[CircleResponse](t, rec)
	assert.Equal(t, "active", joined.State)
	assert.Len(t, joined.Members, 2)

	// joining twice reports the frozen wire code
	rec = f.do(t, http.MethodPost, base+"/join", "member-0", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	envelope := decodeBody[map[string]any](t, rec)
	assert.Equal(t, float64(1003), envelope["code"])
}

func TestFullCycleOverHTTP(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/circles", "admin", CreateCircleRequest{
		Contribution: 100, MaxMembers: 5, Asset: testAsset,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody[CircleResponse](t, rec)
	base := fmt.Sprintf("/v1/circles/%d", created.ID)

	members := []domain.Account{"alice", "bob", "carol"}
	for _, m := range members {
		f.ledger.Mint(testAsset, m, 1000)
		f.ledger.Approve(testAsset, m, 1000)
		rec = f.do(t, http.MethodPost, base+"/join", m, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec = f.do(t, http.MethodPost, base+"/finalize", "admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(t, http.MethodPost, base+"/start-round", "admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	for _, m := range members {
		rec = f.do(t, http.MethodPost, base+"/deposit", m, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	// naming a recipient out of queue order is rejected
	rec = f.do(t, http.MethodPost, base+"/payout", "admin", ProcessPayoutRequest{Recipient: "bob"})
	require.Equal(t, http.StatusConflict, rec.Code)
	envelope := decodeBody[map[string]any](t, rec)
	assert.Equal(t, float64(dErrors.WireCode(dErrors.CodeInvalidCircleState)), envelope["code"])

	// first payout names its recipient, the rest derive it from the queue
	var payout PayoutResponse
	for i := range members {
		body := any(nil)
		if i == 0 {
			body = ProcessPayoutRequest{Recipient: members[0].String()}
		}
		rec = f.do(t, http.MethodPost, base+"/payout", "admin", body)
		require.Equal(t, http.StatusOK, rec.Code)
		payout = decodeBody[PayoutResponse](t, rec)
		assert.Equal(t, members[i].String(), payout.Recipient)
	}
	assert.True(t, payout.CycleCompleted)

	rec = f.do(t, http.MethodGet, base+"/cycle", "admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	info := decodeBody[service.CycleInfo](t, rec)
	assert.Equal(t, domain.Amount(300), info.TotalVolumeDistributed)
	assert.Equal(t, "completed", string(info.State))

	rec = f.do(t, http.MethodGet, base+"/payout-status?account=alice", "admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decodeBody[StatusResponse](t, rec)
	assert.True(t, status.Value)
}

func TestWireCodesOverHTTP(t *testing.T) {
	f := newFixture(t)

	t.Run("circle_not_found is 404 with code 1004", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/v1/circles/999", "admin", nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
		envelope := decodeBody[map[string]any](t, rec)
		assert.Equal(t, float64(1004), envelope["code"])
	})

	t.Run("queue before finalize is code 1007", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/v1/circles", "admin", CreateCircleRequest{
			Contribution: 100, MaxMembers: 5, Asset: testAsset,
		})
		require.Equal(t, http.StatusCreated, rec.Code)
		created := decodeBody[CircleResponse](t, rec)

		rec = f.do(t, http.MethodGet, fmt.Sprintf("/v1/circles/%d/queue", created.ID), "admin", nil)
		require.Equal(t, http.StatusConflict, rec.Code)
		envelope := decodeBody[map[string]any](t, rec)
		assert.Equal(t, float64(dErrors.WireCode(dErrors.CodeCircleNotFinalized)), envelope["code"])
	})

	t.Run("malformed body is bad_request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/circles", bytes.NewBufferString("{not json"))
		token, err := f.tokens.Issue("admin", time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
