package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"susu/internal/capabilities"
	"susu/internal/protocol/models"
	"susu/internal/protocol/store"
	"susu/pkg/domain"
	dErrors "susu/pkg/domain-errors"
	"susu/pkg/requestcontext"
)

const (
	testAsset   = domain.Asset("USDC")
	poolAccount = domain.Account("protocol-pool")
	adminAcct   = domain.Account("protocol-admin")
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	svc    *Service
	ledger *capabilities.InMemoryLedger
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{ledger: capabilities.NewInMemoryLedger(poolAccount)}
	h.svc = New(
		store.NewInMemoryProtocolStore(),
		h.ledger,
		capabilities.AllowAllAuthorizer{},
		poolAccount,
	)
	return h
}

func (h *harness) at(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

func (h *harness) initialized(t *testing.T) context.Context {
	t.Helper()
	ctx := h.at(testNow)
	_, err := h.svc.Initialize(ctx, adminAcct)
	require.NoError(t, err)
	return ctx
}

func TestInitialize(t *testing.T) {
	t.Run("installs admin with zero fee and admin treasury", func(t *testing.T) {
		h := newHarness(t)
		p, err := h.svc.Initialize(h.at(testNow), adminAcct)
		require.NoError(t, err)
		assert.Equal(t, adminAcct, p.Admin)
		assert.Equal(t, adminAcct, p.Treasury)
		assert.Equal(t, uint32(0), p.FeeBasisPoints)
		assert.Equal(t, testNow, p.LastActive)
	})

	t.Run("runs exactly once", func(t *testing.T) {
		h := newHarness(t)
		ctx := h.initialized(t)
		_, err := h.svc.Initialize(ctx, "someone-else")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func TestSetProtocolFee(t *testing.T) {
	t.Run("updates rate and treasury and refreshes liveness", func(t *testing.T) {
		h := newHarness(t)
		_ = h.initialized(t)

		later := testNow.Add(time.Hour)
		p, err := h.svc.SetProtocolFee(h.at(later), adminAcct, 250, "treasury")
		require.NoError(t, err)
		assert.Equal(t, uint32(250), p.FeeBasisPoints)
		assert.Equal(t, domain.Account("treasury"), p.Treasury)
		assert.Equal(t, later, p.LastActive)

		bps, treasury, err := h.svc.FeeConfig(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint32(250), bps)
		assert.Equal(t, domain.Account("treasury"), treasury)
	})

	t.Run("rejects a rate above 100 percent", func(t *testing.T) {
		h := newHarness(t)
		ctx := h.initialized(t)
		_, err := h.svc.SetProtocolFee(ctx, adminAcct, models.MaxFeeBasisPoints+1, "treasury")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidFeeConfig))
	})

	t.Run("rejects an empty treasury", func(t *testing.T) {
		h := newHarness(t)
		ctx := h.initialized(t)
		_, err := h.svc.SetProtocolFee(ctx, adminAcct, 100, "")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidFeeConfig))
	})

	t.Run("non-admin is unauthorized", func(t *testing.T) {
		h := newHarness(t)
		ctx := h.initialized(t)
		_, err := h.svc.SetProtocolFee(ctx, "intruder", 100, "treasury")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func TestDepositFunds(t *testing.T) {
	t.Run("credits the balance and moves funds to the pool", func(t *testing.T) {
		h := newHarness(t)
		ctx := h.initialized(t)
		h.ledger.Mint(testAsset, "user", 500)
		h.ledger.Approve(testAsset, "user", 500)

		_, err := h.svc.DepositFunds(ctx, "user", testAsset, 200)
		require.NoError(t, err)

		balance, err := h.svc.UserBalance(ctx, "user", testAsset)
		require.NoError(t, err)
		assert.Equal(t, domain.Amount(200), balance)
		assert.Equal(t, domain.Amount(200), h.ledger.Balance(testAsset, poolAccount))
	})

	t.Run("unapproved transfer maps to insufficient_allowance", func(t *testing.T) {
		h := newHarness(t)
		ctx := h.initialized(t)
		h.ledger.Mint(testAsset, "user", 500)

		_, err := h.svc.DepositFunds(ctx, "user", testAsset, 200)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInsufficientAllowance))

		balance, err := h.svc.UserBalance(ctx, "user", testAsset)
		require.NoError(t, err)
		assert.Equal(t, domain.Amount(0), balance, "failed transfer must not credit the balance")
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		h := newHarness(t)
		ctx := h.initialized(t)
		_, err := h.svc.DepositFunds(ctx, "user", testAsset, 0)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func TestEmergencyWithdraw(t *testing.T) {
	deposit := func(t *testing.T, h *harness, ctx context.Context, amount domain.Amount) {
		t.Helper()
		h.ledger.Mint(testAsset, "user", amount)
		h.ledger.Approve(testAsset, "user", amount)
		_, err := h.svc.DepositFunds(ctx, "user", testAsset, amount)
		require.NoError(t, err)
	}

	t.Run("blocked while the admin is active", func(t *testing.T) {
		h := newHarness(t)
		ctx := h.initialized(t)
		deposit(t, h, ctx, 200)

		// exactly at the threshold the gate still holds; inactivity must
		// strictly exceed it
		atThreshold := testNow.Add(models.EmergencyThreshold)
		_, err := h.svc.EmergencyWithdraw(h.at(atThreshold), "user", testAsset)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeEmergencyNotAvailable))
	})

	t.Run("returns the exact balance after the threshold and deletes the record", func(t *testing.T) {
		h := newHarness(t)
		ctx := h.initialized(t)
		deposit(t, h, ctx, 200)

		after := testNow.Add(models.EmergencyThreshold + time.Second)
		amount, err := h.svc.EmergencyWithdraw(h.at(after), "user", testAsset)
		require.NoError(t, err)
		assert.Equal(t, domain.Amount(200), amount)
		assert.Equal(t, domain.Amount(200), h.ledger.Balance(testAsset, "user"))

		_, err = h.svc.EmergencyWithdraw(h.at(after), "user", testAsset)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest), "record is gone, not zeroed")
	})

	t.Run("admin action resets the clock", func(t *testing.T) {
		h := newHarness(t)
		ctx := h.initialized(t)
		deposit(t, h, ctx, 200)

		nearThreshold := testNow.Add(models.EmergencyThreshold - time.Hour)
		_, err := h.svc.AdminAction(h.at(nearThreshold), adminAcct)
		require.NoError(t, err)

		pastOriginal := testNow.Add(models.EmergencyThreshold + time.Hour)
		_, err = h.svc.EmergencyWithdraw(h.at(pastOriginal), "user", testAsset)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeEmergencyNotAvailable))

		pastRefreshed := nearThreshold.Add(models.EmergencyThreshold + time.Second)
		amount, err := h.svc.EmergencyWithdraw(h.at(pastRefreshed), "user", testAsset)
		require.NoError(t, err)
		assert.Equal(t, domain.Amount(200), amount)
	})

	t.Run("withdraw with no deposit is rejected", func(t *testing.T) {
		h := newHarness(t)
		h.initialized(t)
		after := testNow.Add(models.EmergencyThreshold + time.Second)
		_, err := h.svc.EmergencyWithdraw(h.at(after), "stranger", testAsset)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}
