package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/claimgate/internal/common"
	"github.com/dmitrijs2005/claimgate/internal/logging"
	"github.com/dmitrijs2005/claimgate/internal/server/auth"
	"github.com/go-chi/chi/v5/middleware"
)

type contextKey string

const principalKey contextKey = "principal"

// Principal is the verified phone number behind a request and the id of the
// token it presented.
type Principal struct {
	PhoneNumber string
	TokenID     string
}

// PrincipalFrom returns the principal stored by BearerAuth.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// RequestLogger logs one line per request with status and latency.
func RequestLogger(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				logger.Info(r.Context(), "http request",
					"request_id", middleware.GetReqID(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// BearerAuth requires a claim authorization token minted by a successful
// OTP verification. It checks signature and expiry only; whether the token
// is still unspent is decided when it is consumed.
func BearerAuth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeMessage(w, http.StatusUnauthorized, "Missing or malformed authorization header")
				return
			}

			phone, tokenID, err := auth.ParseToken(token, secret)
			if err != nil {
				msg := "Invalid authorization token"
				if errors.Is(err, common.ErrTokenExpired) {
					msg = "Authorization token expired"
				}
				writeMessage(w, http.StatusUnauthorized, msg)
				return
			}

			ctx := context.WithValue(r.Context(), principalKey, Principal{PhoneNumber: phone, TokenID: tokenID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
