package service

import (
	"errors"

	"susu/internal/capabilities"
	dErrors "susu/pkg/domain-errors"
)

// translateLedgerErr maps capability transfer failures to wire codes.
func translateLedgerErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, capabilities.ErrInsufficientAllowance) {
		return dErrors.Wrap(err, dErrors.CodeInsufficientAllowance, "transfer allowance is insufficient")
	}
	if errors.Is(err, capabilities.ErrInsufficientBalance) {
		return dErrors.Wrap(err, dErrors.CodeConflict, "account balance is insufficient")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "asset transfer failed")
}
