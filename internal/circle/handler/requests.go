package handler

import (
	"strings"

	"susu/internal/circle/models"
	"susu/pkg/domain"
	dErrors "susu/pkg/domain-errors"
)

// CreateCircleRequest is the HTTP request body for POST /circles.
type CreateCircleRequest struct {
	Contribution int64  `json:"contribution"`
	MaxMembers   int    `json:"max_members"`
	Asset        string `json:"asset"`
	RandomQueue  bool   `json:"random_queue"`

	parsedAsset domain.Asset
}

// Validate validates and parses the request.
func (r *CreateCircleRequest) Validate() error {
	if r.Contribution <= 0 {
		return dErrors.New(dErrors.CodeBadRequest, "contribution must be positive")
	}
	if r.MaxMembers < models.MinMembers || r.MaxMembers > models.MaxMembersCap {
		return dErrors.Newf(dErrors.CodeBadRequest, "max_members must be between %d and %d", models.MinMembers, models.MaxMembersCap)
	}
	asset, err := domain.ParseAsset(strings.TrimSpace(r.Asset))
	if err != nil {
		return dErrors.New(dErrors.CodeBadRequest, "asset is required")
	}
	r.parsedAsset = asset
	return nil
}

// ParsedAsset returns the validated asset.
func (r *CreateCircleRequest) ParsedAsset() domain.Asset {
	return r.parsedAsset
}

// ProcessPayoutRequest is the HTTP request body for POST /circles/{id}/payout.
// Recipient must hold the next unpaid queue slot; omitting it (or the whole
// body) pays whoever holds that slot.
type ProcessPayoutRequest struct {
	Recipient string `json:"recipient"`

	parsedRecipient domain.Account
}

func (r *ProcessPayoutRequest) Validate() error {
	recipient := strings.TrimSpace(r.Recipient)
	if recipient == "" {
		return nil
	}
	parsed, err := domain.ParseAccount(recipient)
	if err != nil {
		return dErrors.New(dErrors.CodeBadRequest, "recipient account is invalid")
	}
	r.parsedRecipient = parsed
	return nil
}

// ParsedRecipient returns the validated recipient, or the zero account when
// the request did not name one.
func (r *ProcessPayoutRequest) ParsedRecipient() domain.Account {
	return r.parsedRecipient
}

// FillVacancyRequest is the HTTP request body for POST /circles/{id}/fill-vacancy.
// The caller is the replacement; the body names the exiting member.
type FillVacancyRequest struct {
	Exiting string `json:"exiting"`

	parsedExiting domain.Account
}

func (r *FillVacancyRequest) Validate() error {
	exiting, err := domain.ParseAccount(strings.TrimSpace(r.Exiting))
	if err != nil {
		return dErrors.New(dErrors.CodeBadRequest, "exiting account is required")
	}
	r.parsedExiting = exiting
	return nil
}

// ParsedExiting returns the validated exiting account.
func (r *FillVacancyRequest) ParsedExiting() domain.Account {
	return r.parsedExiting
}

// KickMemberRequest is the HTTP request body for POST /circles/{id}/kick.
type KickMemberRequest struct {
	Member  string `json:"member"`
	Penalty int64  `json:"penalty"`

	parsedMember domain.Account
}

func (r *KickMemberRequest) Validate() error {
	member, err := domain.ParseAccount(strings.TrimSpace(r.Member))
	if err != nil {
		return dErrors.New(dErrors.CodeBadRequest, "member account is required")
	}
	if r.Penalty < 0 {
		return dErrors.New(dErrors.CodeBadRequest, "penalty cannot be negative")
	}
	r.parsedMember = member
	return nil
}

// ParsedMember returns the validated member account.
func (r *KickMemberRequest) ParsedMember() domain.Account {
	return r.parsedMember
}
