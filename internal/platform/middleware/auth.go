package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"susu/pkg/domain"
	dErrors "susu/pkg/domain-errors"
	"susu/pkg/platform/httputil"
	"susu/pkg/requestcontext"
)

// TokenValidator validates a bearer token and returns the account it binds
// to. capabilities.TokenService is the production implementation.
type TokenValidator interface {
	Validate(tokenString string) (domain.Account, error)
}

// RequireAuth rejects requests without a valid bearer token and binds the
// token's account to the request context as the caller.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logWarn(ctx, logger, "missing bearer token")
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			acct, err := validator.Validate(token)
			if err != nil {
				logWarn(ctx, logger, "token rejected", "error", err)
				httputil.WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithCaller(ctx, acct)))
		})
	}
}

func logWarn(ctx context.Context, logger *slog.Logger, msg string, attributes ...any) {
	if logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	logger.WarnContext(ctx, msg, attributes...)
}
