package admin

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/wh1teend/paygate-liqpay/internal/common"
)

// TokenValidator checks bearer tokens presented to the admin API.
type TokenValidator struct {
	Secret    []byte
	Issuer    string
	Audience  string
	ClockSkew time.Duration
}

// Validate parses and verifies the token string against the shared
// secret, issuer, audience and expiry.
func (v TokenValidator) Validate(raw string) error {
	if len(v.Secret) == 0 {
		return errors.New("admin: token secret not configured")
	}
	tok, err := jwt.ParseString(raw, jwt.WithKey(jwa.HS256, v.Secret), jwt.WithValidate(false))
	if err != nil {
		return err
	}
	options := []jwt.ValidateOption{}
	if v.ClockSkew > 0 {
		options = append(options, jwt.WithAcceptableSkew(v.ClockSkew))
	}
	if v.Issuer != "" {
		options = append(options, jwt.WithIssuer(v.Issuer))
	}
	if v.Audience != "" {
		options = append(options, jwt.WithAudience(v.Audience))
	}
	return jwt.Validate(tok, options...)
}

// Middleware rejects requests without a valid bearer token.
func (v TokenValidator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "bearer token required", nil)
			return
		}
		if err := v.Validate(strings.TrimPrefix(header, "Bearer ")); err != nil {
			common.JSONError(w, http.StatusUnauthorized, "INVALID_TOKEN", "token rejected", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
