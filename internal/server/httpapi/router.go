// Package httpapi exposes the OTP and claim services over HTTP using chi.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/claimgate/internal/logging"
	"github.com/dmitrijs2005/claimgate/internal/server/models"
	"github.com/dmitrijs2005/claimgate/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// OTPIssuer is the part of services.OTPService the handlers use.
type OTPIssuer interface {
	RequestOTP(ctx context.Context, phoneNumber, nickname string) error
	VerifyOTP(ctx context.Context, phoneNumber, code string) (string, error)
}

// ClaimAuthorizer is the part of services.ClaimService the handlers use.
type ClaimAuthorizer interface {
	SubmitClaim(ctx context.Context, phoneNumber, tokenID string, req services.ClaimRequest) (*models.Claim, services.SubmitOutcome, error)
	GetClaim(ctx context.Context, id string) (*models.Claim, error)
	FinalizeClaim(ctx context.Context, id string) (*models.Claim, error)
}

// Options configures the router.
type Options struct {
	SecretKey      []byte
	AllowedOrigins []string
	RequestTimeout time.Duration
}

type Handler struct {
	otps   OTPIssuer
	claims ClaimAuthorizer
	logger logging.Logger
}

// NewRouter builds the HTTP surface: public OTP routes and bearer-protected
// claim routes.
func NewRouter(otps OTPIssuer, claims ClaimAuthorizer, logger logging.Logger, opts Options) http.Handler {
	h := &Handler{otps: otps, claims: claims, logger: logger}

	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(opts.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)
	r.Post("/get_otp", h.GetOTP)
	r.Post("/verify_otp", h.VerifyOTP)

	r.Route("/claims", func(r chi.Router) {
		r.Use(BearerAuth(opts.SecretKey))
		r.Post("/", h.SubmitClaim)
		r.Get("/{id}", h.GetClaim)
		r.Post("/{id}/finalize", h.FinalizeClaim)
	})

	return r
}
