package capabilities

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"susu/pkg/domain"
	dErrors "susu/pkg/domain-errors"
	"susu/pkg/requestcontext"
)

// ContextAuthorizer verifies that the caller bound to the request context by
// the authentication middleware matches the account an operation acts for.
// This is the production Authorizer: the JWT middleware has already proven
// possession of the account's credential by the time a service runs.
type ContextAuthorizer struct{}

// NewContextAuthorizer returns the production Authorizer.
func NewContextAuthorizer() *ContextAuthorizer {
	return &ContextAuthorizer{}
}

// Verify fails with Unauthorized unless the context caller is account.
func (a *ContextAuthorizer) Verify(ctx context.Context, account domain.Account) error {
	caller := requestcontext.Caller(ctx)
	if caller.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "request is not authenticated")
	}
	if caller != account {
		return dErrors.Newf(dErrors.CodeUnauthorized, "caller is not authorized to act for %s", account)
	}
	return nil
}

// AllowAllAuthorizer accepts every caller. Test fake.
type AllowAllAuthorizer struct{}

// Verify always succeeds.
func (AllowAllAuthorizer) Verify(context.Context, domain.Account) error { return nil }

// accountClaims are the JWT claims binding a token to an account.
type accountClaims struct {
	Account string `json:"account"`
	jwt.RegisteredClaims
}

// TokenService issues and validates the bearer tokens the HTTP layer uses
// to establish the caller account.
type TokenService struct {
	signingKey []byte
	issuer     string
}

// NewTokenService creates a token service with an HMAC signing key.
func NewTokenService(signingKey, issuer string) *TokenService {
	return &TokenService{signingKey: []byte(signingKey), issuer: issuer}
}

// Issue signs a token binding the bearer to an account.
func (s *TokenService) Issue(account domain.Account, expiresIn time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, accountClaims{
		Account: account.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
		},
	})
	return token.SignedString(s.signingKey)
}

// Validate parses a token and returns the account it binds to.
func (s *TokenService) Validate(tokenString string) (domain.Account, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &accountClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*accountClaims)
	if !ok || !parsed.Valid {
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	acct, err := domain.ParseAccount(claims.Account)
	if err != nil {
		return "", dErrors.New(dErrors.CodeUnauthorized, "token has no account binding")
	}
	return acct, nil
}
