package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"susu/internal/protocol/models"
	"susu/pkg/domain"
	dErrors "susu/pkg/domain-errors"
	"susu/pkg/platform/httputil"
	"susu/pkg/requestcontext"
)

// Service defines the protocol operations the HTTP layer exposes.
type Service interface {
	Initialize(ctx context.Context, admin domain.Account) (*models.Protocol, error)
	SetProtocolFee(ctx context.Context, caller domain.Account, basisPoints uint32, treasury domain.Account) (*models.Protocol, error)
	AdminAction(ctx context.Context, caller domain.Account) (*models.Protocol, error)
	DepositFunds(ctx context.Context, acct domain.Account, asset domain.Asset, amount domain.Amount) (*models.Protocol, error)
	EmergencyWithdraw(ctx context.Context, acct domain.Account, asset domain.Asset) (domain.Amount, error)
	FeeConfig(ctx context.Context) (uint32, domain.Account, error)
	LastActiveTimestamp(ctx context.Context) (time.Time, error)
	UserBalance(ctx context.Context, acct domain.Account, asset domain.Asset) (domain.Amount, error)
}

// Handler wires protocol endpoints to the protocol service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a protocol handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts protocol endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/protocol", func(r chi.Router) {
		r.Post("/initialize", h.HandleInitialize)
		r.Post("/fee", h.HandleSetFee)
		r.Post("/admin-action", h.HandleAdminAction)
		r.Post("/funds", h.HandleDepositFunds)
		r.Post("/emergency-withdraw", h.HandleEmergencyWithdraw)

		r.Get("/fee", h.HandleGetFee)
		r.Get("/last-active", h.HandleLastActive)
		r.Get("/balance", h.HandleBalance)
	})
}

// SetFeeRequest is the HTTP request body for POST /protocol/fee.
type SetFeeRequest struct {
	BasisPoints uint32 `json:"basis_points"`
	Treasury    string `json:"treasury"`
}

// FundsRequest is the HTTP request body for POST /protocol/funds and
// /protocol/emergency-withdraw (amount ignored on withdrawal).
type FundsRequest struct {
	Asset  string `json:"asset"`
	Amount int64  `json:"amount"`
}

// ProtocolResponse is the HTTP representation of the protocol record.
type ProtocolResponse struct {
	Admin          string    `json:"admin"`
	Treasury       string    `json:"treasury"`
	FeeBasisPoints uint32    `json:"fee_basis_points"`
	LastActive     time.Time `json:"last_active"`
}

// FeeResponse is the fee configuration view.
type FeeResponse struct {
	BasisPoints uint32 `json:"basis_points"`
	Treasury    string `json:"treasury"`
}

// BalanceResponse reports a protocol-held user balance.
type BalanceResponse struct {
	Account string `json:"account"`
	Asset   string `json:"asset"`
	Amount  int64  `json:"amount"`
}

// AmountResponse reports a withdrawn amount.
type AmountResponse struct {
	Amount int64 `json:"amount"`
}

func fromProtocol(p *models.Protocol) *ProtocolResponse {
	return &ProtocolResponse{
		Admin:          p.Admin.String(),
		Treasury:       p.Treasury.String(),
		FeeBasisPoints: p.FeeBasisPoints,
		LastActive:     p.LastActive,
	}
}

func caller(w http.ResponseWriter, ctx context.Context) (domain.Account, bool) {
	acct := requestcontext.Caller(ctx)
	if acct.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return "", false
	}
	return acct, true
}

// HandleInitialize handles POST /protocol/initialize. The caller becomes
// the protocol admin.
func (h *Handler) HandleInitialize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	acct, ok := caller(w, ctx)
	if !ok {
		return
	}
	p, err := h.service.Initialize(ctx, acct)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, fromProtocol(p))
}

// HandleSetFee handles POST /protocol/fee.
func (h *Handler) HandleSetFee(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	acct, ok := caller(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.Decode[SetFeeRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	treasury, err := domain.ParseAccount(strings.TrimSpace(req.Treasury))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidFeeConfig, "treasury address is required"))
		return
	}

	p, err := h.service.SetProtocolFee(ctx, acct, req.BasisPoints, treasury)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromProtocol(p))
}

// HandleAdminAction handles POST /protocol/admin-action.
func (h *Handler) HandleAdminAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	acct, ok := caller(w, ctx)
	if !ok {
		return
	}
	p, err := h.service.AdminAction(ctx, acct)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromProtocol(p))
}

// HandleDepositFunds handles POST /protocol/funds.
func (h *Handler) HandleDepositFunds(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	acct, ok := caller(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.Decode[FundsRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	asset, err := domain.ParseAsset(strings.TrimSpace(req.Asset))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "asset is required"))
		return
	}

	p, err := h.service.DepositFunds(ctx, acct, asset, domain.Amount(req.Amount))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &BalanceResponse{
		Account: acct.String(),
		Asset:   asset.String(),
		Amount:  int64(p.Balance(acct, asset)),
	})
}

// HandleEmergencyWithdraw handles POST /protocol/emergency-withdraw.
func (h *Handler) HandleEmergencyWithdraw(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	acct, ok := caller(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.Decode[FundsRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	asset, err := domain.ParseAsset(strings.TrimSpace(req.Asset))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "asset is required"))
		return
	}

	amount, err := h.service.EmergencyWithdraw(ctx, acct, asset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &AmountResponse{Amount: int64(amount)})
}

// HandleGetFee handles GET /protocol/fee.
func (h *Handler) HandleGetFee(w http.ResponseWriter, r *http.Request) {
	bps, treasury, err := h.service.FeeConfig(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &FeeResponse{BasisPoints: bps, Treasury: treasury.String()})
}

// HandleLastActive handles GET /protocol/last-active.
func (h *Handler) HandleLastActive(w http.ResponseWriter, r *http.Request) {
	last, err := h.service.LastActiveTimestamp(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]time.Time{"last_active": last})
}

// HandleBalance handles GET /protocol/balance?account=X&asset=Y.
func (h *Handler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	acct, err := domain.ParseAccount(strings.TrimSpace(r.URL.Query().Get("account")))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "account query parameter is required"))
		return
	}
	asset, err := domain.ParseAsset(strings.TrimSpace(r.URL.Query().Get("asset")))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "asset query parameter is required"))
		return
	}
	amount, err := h.service.UserBalance(r.Context(), acct, asset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &BalanceResponse{
		Account: acct.String(),
		Asset:   asset.String(),
		Amount:  int64(amount),
	})
}
