package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"susu/internal/circle/models"
	"susu/internal/circle/service"
	"susu/pkg/domain"
	dErrors "susu/pkg/domain-errors"
	"susu/pkg/platform/httputil"
	"susu/pkg/requestcontext"
)

// Service defines the circle operations the HTTP layer exposes.
type Service interface {
	CreateCircle(ctx context.Context, admin domain.Account, contribution domain.Amount, maxMembers int, asset domain.Asset, isRandomQueue bool) (*models.Circle, error)
	JoinCircle(ctx context.Context, circleID domain.CircleID, acct domain.Account) (*models.Circle, error)
	StartRound(ctx context.Context, circleID domain.CircleID, caller domain.Account) (*models.Circle, error)
	Deposit(ctx context.Context, circleID domain.CircleID, acct domain.Account) (*models.Circle, error)
	FinalizeCircle(ctx context.Context, circleID domain.CircleID, caller domain.Account) (*models.Circle, error)
	ProcessPayout(ctx context.Context, circleID domain.CircleID, caller, recipient domain.Account) (*service.PayoutResult, error)
	RolloverGroup(ctx context.Context, circleID domain.CircleID, caller domain.Account) (*models.Circle, error)
	RequestExit(ctx context.Context, circleID domain.CircleID, acct domain.Account) (*models.PendingExit, error)
	FillVacancy(ctx context.Context, circleID domain.CircleID, exiting, replacement domain.Account) (*models.Circle, error)
	KickMember(ctx context.Context, circleID domain.CircleID, caller, member domain.Account, penalty domain.Amount) (*models.Circle, error)
	ProposeDissolution(ctx context.Context, circleID domain.CircleID, acct domain.Account) (*models.Circle, error)
	VoteDissolve(ctx context.Context, circleID domain.CircleID, acct domain.Account) (*models.Circle, error)
	WithdrawProRata(ctx context.Context, circleID domain.CircleID, acct domain.Account) (domain.Amount, error)

	GetCircle(ctx context.Context, circleID domain.CircleID) (*models.Circle, error)
	GetMembers(ctx context.Context, circleID domain.CircleID) ([]*models.Member, error)
	GetPayoutQueue(ctx context.Context, circleID domain.CircleID) ([]domain.Account, error)
	GetPayoutStatus(ctx context.Context, circleID domain.CircleID, acct domain.Account) (bool, error)
	GetContributionStatus(ctx context.Context, circleID domain.CircleID, acct domain.Account) (bool, error)
	GetCycleInfo(ctx context.Context, circleID domain.CircleID) (*service.CycleInfo, error)
}

// Handler wires circle endpoints to the circle service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a circle handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts circle endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/circles", h.HandleCreate)
	r.Route("/circles/{id}", func(r chi.Router) {
		r.Get("/", h.HandleGet)
		r.Get("/members", h.HandleMembers)
		r.Get("/queue", h.HandleQueue)
		r.Get("/cycle", h.HandleCycleInfo)
		r.Get("/payout-status", h.HandlePayoutStatus)
		r.Get("/contribution-status", h.HandleContributionStatus)

		r.Post("/join", h.HandleJoin)
		r.Post("/start-round", h.HandleStartRound)
		r.Post("/deposit", h.HandleDeposit)
		r.Post("/finalize", h.HandleFinalize)
		r.Post("/payout", h.HandlePayout)
		r.Post("/rollover", h.HandleRollover)
		r.Post("/exit", h.HandleRequestExit)
		r.Post("/fill-vacancy", h.HandleFillVacancy)
		r.Post("/kick", h.HandleKick)
		r.Post("/dissolution/propose", h.HandleProposeDissolution)
		r.Post("/dissolution/vote", h.HandleVoteDissolve)
		r.Post("/withdraw", h.HandleWithdraw)
	})
}

// caller extracts the authenticated account, writing Unauthorized if absent.
func caller(w http.ResponseWriter, ctx context.Context) (domain.Account, bool) {
	acct := requestcontext.Caller(ctx)
	if acct.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return "", false
	}
	return acct, true
}

// circleID parses the {id} route parameter.
func circleID(w http.ResponseWriter, r *http.Request) (domain.CircleID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid circle id"))
		return 0, false
	}
	return domain.CircleID(id), true
}

// accountParam parses the account query parameter for status queries.
func accountParam(w http.ResponseWriter, r *http.Request) (domain.Account, bool) {
	acct, err := domain.ParseAccount(strings.TrimSpace(r.URL.Query().Get("account")))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "account query parameter is required"))
		return "", false
	}
	return acct, true
}

// HandleCreate handles POST /circles.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	acct, ok := caller(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.Decode[CreateCircleRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	c, err := h.service.CreateCircle(ctx, acct, domain.Amount(req.Contribution), req.MaxMembers, req.ParsedAsset(), req.RandomQueue)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromCircle(c))
}

// circleAction runs a (circleID, caller) service call and renders the
// updated circle. Most mutating endpoints share this shape.
func (h *Handler) circleAction(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id domain.CircleID, acct domain.Account) (*models.Circle, error)) {
	ctx := r.Context()
	acct, ok := caller(w, ctx)
	if !ok {
		return
	}
	id, ok := circleID(w, r)
	if !ok {
		return
	}
	c, err := fn(ctx, id, acct)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCircle(c))
}

// HandleJoin handles POST /circles/{id}/join.
func (h *Handler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	h.circleAction(w, r, h.service.JoinCircle)
}

// HandleStartRound handles POST /circles/{id}/start-round.
func (h *Handler) HandleStartRound(w http.ResponseWriter, r *http.Request) {
	h.circleAction(w, r, h.service.StartRound)
}

// HandleDeposit handles POST /circles/{id}/deposit.
func (h *Handler) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	h.circleAction(w, r, h.service.Deposit)
}

// HandleFinalize handles POST /circles/{id}/finalize.
func (h *Handler) HandleFinalize(w http.ResponseWriter, r *http.Request) {
	h.circleAction(w, r, h.service.FinalizeCircle)
}

// HandleRollover handles POST /circles/{id}/rollover.
func (h *Handler) HandleRollover(w http.ResponseWriter, r *http.Request) {
	h.circleAction(w, r, h.service.RolloverGroup)
}

// HandleProposeDissolution handles POST /circles/{id}/dissolution/propose.
func (h *Handler) HandleProposeDissolution(w http.ResponseWriter, r *http.Request) {
	h.circleAction(w, r, h.service.ProposeDissolution)
}

// HandleVoteDissolve handles POST /circles/{id}/dissolution/vote.
func (h *Handler) HandleVoteDissolve(w http.ResponseWriter, r *http.Request) {
	h.circleAction(w, r, h.service.VoteDissolve)
}

// HandlePayout handles POST /circles/{id}/payout. The body is optional; an
// empty one pays the next unpaid slot's holder.
func (h *Handler) HandlePayout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	acct, ok := caller(w, ctx)
	if !ok {
		return
	}
	id, ok := circleID(w, r)
	if !ok {
		return
	}
	var req ProcessPayoutRequest
	if r.ContentLength != 0 {
		req, ok = httputil.Decode[ProcessPayoutRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
		if !ok {
			return
		}
		if err := req.Validate(); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	result, err := h.service.ProcessPayout(ctx, id, acct, req.ParsedRecipient())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &PayoutResponse{
		Recipient:      result.Recipient.String(),
		Gross:          int64(result.Gross),
		Fee:            int64(result.Fee),
		Net:            int64(result.Net),
		CycleCompleted: result.CycleCompleted,
	})
}

// HandleRequestExit handles POST /circles/{id}/exit.
func (h *Handler) HandleRequestExit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	acct, ok := caller(w, ctx)
	if !ok {
		return
	}
	id, ok := circleID(w, r)
	if !ok {
		return
	}
	exit, err := h.service.RequestExit(ctx, id, acct)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &ExitResponse{
		Member:     exit.Member.String(),
		QueueIndex: exit.QueueIndex,
		Refund:     int64(exit.RefundAmount),
	})
}

// HandleFillVacancy handles POST /circles/{id}/fill-vacancy. The caller is
// the replacement buying into the exiting member's slot.
func (h *Handler) HandleFillVacancy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	acct, ok := caller(w, ctx)
	if !ok {
		return
	}
	id, ok := circleID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[FillVacancyRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	c, err := h.service.FillVacancy(ctx, id, req.ParsedExiting(), acct)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCircle(c))
}

// HandleKick handles POST /circles/{id}/kick.
func (h *Handler) HandleKick(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	acct, ok := caller(w, ctx)
	if !ok {
		return
	}
	id, ok := circleID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[KickMemberRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	c, err := h.service.KickMember(ctx, id, acct, req.ParsedMember(), domain.Amount(req.Penalty))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCircle(c))
}

// HandleWithdraw handles POST /circles/{id}/withdraw.
func (h *Handler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	acct, ok := caller(w, ctx)
	if !ok {
		return
	}
	id, ok := circleID(w, r)
	if !ok {
		return
	}
	amount, err := h.service.WithdrawProRata(ctx, id, acct)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &WithdrawResponse{Amount: int64(amount)})
}

// HandleGet handles GET /circles/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := circleID(w, r)
	if !ok {
		return
	}
	c, err := h.service.GetCircle(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCircle(c))
}

// HandleMembers handles GET /circles/{id}/members.
func (h *Handler) HandleMembers(w http.ResponseWriter, r *http.Request) {
	id, ok := circleID(w, r)
	if !ok {
		return
	}
	members, err := h.service.GetMembers(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]MemberResponse, len(members))
	for i, m := range members {
		out[i] = MemberResponse{
			Account:          m.Account.String(),
			Status:           string(m.Status),
			TotalContributed: int64(m.TotalContributed),
			JoinIndex:        m.JoinIndex,
			JoinedAt:         m.JoinedAt,
		}
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// HandleQueue handles GET /circles/{id}/queue.
func (h *Handler) HandleQueue(w http.ResponseWriter, r *http.Request) {
	id, ok := circleID(w, r)
	if !ok {
		return
	}
	queue, err := h.service.GetPayoutQueue(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, accountsToStrings(queue))
}

// HandleCycleInfo handles GET /circles/{id}/cycle.
func (h *Handler) HandleCycleInfo(w http.ResponseWriter, r *http.Request) {
	id, ok := circleID(w, r)
	if !ok {
		return
	}
	info, err := h.service.GetCycleInfo(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, info)
}

// HandlePayoutStatus handles GET /circles/{id}/payout-status?account=X.
func (h *Handler) HandlePayoutStatus(w http.ResponseWriter, r *http.Request) {
	h.statusQuery(w, r, h.service.GetPayoutStatus)
}

// HandleContributionStatus handles GET /circles/{id}/contribution-status?account=X.
func (h *Handler) HandleContributionStatus(w http.ResponseWriter, r *http.Request) {
	h.statusQuery(w, r, h.service.GetContributionStatus)
}

func (h *Handler) statusQuery(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id domain.CircleID, acct domain.Account) (bool, error)) {
	id, ok := circleID(w, r)
	if !ok {
		return
	}
	acct, ok := accountParam(w, r)
	if !ok {
		return
	}
	value, err := fn(r.Context(), id, acct)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &StatusResponse{Account: acct.String(), Value: value})
}
