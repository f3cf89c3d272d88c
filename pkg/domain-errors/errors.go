// Package derrors defines code-tagged domain errors. Services and models
// return these so transports can render precise, code-driven responses.
// Stores return sentinel errors (pkg/platform/sentinel); services translate.
//
// Every code carries a stable numeric wire code. The 1001–1007 range is a
// frozen compatibility surface for external callers; codes above it extend
// the taxonomy without renumbering.
package derrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a category of domain failure.
type Code string

const (
	// Frozen wire contract.
	CodeCycleNotComplete      Code = "cycle_not_complete"
	CodeInsufficientAllowance Code = "insufficient_allowance"
	CodeAlreadyJoined         Code = "already_joined"
	CodeCircleNotFound        Code = "circle_not_found"
	CodeUnauthorized          Code = "unauthorized"
	CodeInvalidFeeConfig      Code = "invalid_fee_config"
	CodeCircleNotFinalized    Code = "circle_not_finalized"

	// Extended taxonomy.
	CodeMaxMembersReached          Code = "max_members_reached"
	CodePayoutAlreadyReceived      Code = "payout_already_received"
	CodeEmergencyNotAvailable      Code = "emergency_not_available"
	CodeMemberNotFound             Code = "member_not_found"
	CodeInvalidCircleState         Code = "invalid_circle_state"
	CodeMemberAlreadyExists        Code = "member_already_exists"
	CodeContributionsIncomplete    Code = "contributions_incomplete"
	CodeExitNotPending             Code = "exit_not_pending"
	CodeAlreadyDissolved           Code = "already_dissolved"
	CodeNotDissolved               Code = "not_dissolved"
	CodeAlreadyVoted               Code = "already_voted"
	CodePenaltyExceedsContribution Code = "penalty_exceeds_contribution"
	CodeRateLimited                Code = "rate_limited"
	CodeBadRequest                 Code = "bad_request"
	CodeConflict                   Code = "conflict"
	CodeInternal                   Code = "internal_error"
)

// wireCodes maps each Code to its stable numeric identifier.
var wireCodes = map[Code]int{
	CodeCycleNotComplete:      1001,
	CodeInsufficientAllowance: 1002,
	CodeAlreadyJoined:         1003,
	CodeCircleNotFound:        1004,
	CodeUnauthorized:          1005,
	CodeInvalidFeeConfig:      1006,
	CodeCircleNotFinalized:    1007,

	CodeMaxMembersReached:          1008,
	CodePayoutAlreadyReceived:      1009,
	CodeEmergencyNotAvailable:      1010,
	CodeMemberNotFound:             1011,
	CodeInvalidCircleState:         1012,
	CodeMemberAlreadyExists:        1013,
	CodeContributionsIncomplete:    1014,
	CodeExitNotPending:             1015,
	CodeAlreadyDissolved:           1016,
	CodeNotDissolved:               1017,
	CodeAlreadyVoted:               1018,
	CodePenaltyExceedsContribution: 1019,
	CodeRateLimited:                1023,
	CodeBadRequest:                 1020,
	CodeConflict:                   1021,
	CodeInternal:                   1022,
}

// httpStatus maps each Code to the status the HTTP transport should use.
var httpStatus = map[Code]int{
	CodeCycleNotComplete:      http.StatusConflict,
	CodeInsufficientAllowance: http.StatusPaymentRequired,
	CodeAlreadyJoined:         http.StatusConflict,
	CodeCircleNotFound:        http.StatusNotFound,
	CodeUnauthorized:          http.StatusUnauthorized,
	CodeInvalidFeeConfig:      http.StatusUnprocessableEntity,
	CodeCircleNotFinalized:    http.StatusConflict,

	CodeMaxMembersReached:          http.StatusConflict,
	CodePayoutAlreadyReceived:      http.StatusConflict,
	CodeEmergencyNotAvailable:      http.StatusForbidden,
	CodeMemberNotFound:             http.StatusNotFound,
	CodeInvalidCircleState:         http.StatusConflict,
	CodeMemberAlreadyExists:        http.StatusConflict,
	CodeContributionsIncomplete:    http.StatusConflict,
	CodeExitNotPending:             http.StatusConflict,
	CodeAlreadyDissolved:           http.StatusConflict,
	CodeNotDissolved:               http.StatusConflict,
	CodeAlreadyVoted:               http.StatusConflict,
	CodePenaltyExceedsContribution: http.StatusUnprocessableEntity,
	CodeRateLimited:                http.StatusTooManyRequests,
	CodeBadRequest:                 http.StatusBadRequest,
	CodeConflict:                   http.StatusConflict,
	CodeInternal:                   http.StatusInternalServerError,
}

// Error is a domain error with a stable code and a human-readable message.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a domain error with the given code and message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether err (or any error it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf returns the code carried by err, or CodeInternal if err is not a
// domain error.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// WireCode returns the stable numeric identifier for a code. Unknown codes
// report as internal.
func WireCode(code Code) int {
	if n, ok := wireCodes[code]; ok {
		return n
	}
	return wireCodes[CodeInternal]
}

// ToHTTPStatus maps a code to its HTTP status.
func ToHTTPStatus(code Code) int {
	if s, ok := httpStatus[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}
