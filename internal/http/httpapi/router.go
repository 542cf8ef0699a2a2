package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"kiranalogo/internal/http/handlers"
	"kiranalogo/internal/infra"
	"kiranalogo/internal/metrics"
	"kiranalogo/internal/middleware"
)

type Options struct {
	Logger         infra.Logger
	Tokens         middleware.TokenVerifier
	Metrics        *metrics.Metrics
	CountryLookup  middleware.CountryLookup
	AllowedOrigins []string
	RateLimit      int
	RequestTimeout time.Duration
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID(opts.Logger),
		chimw.RealIP,
		chimw.Recoverer,
		middleware.AccessLog,
		middleware.CORS(opts.AllowedOrigins),
		middleware.I18N("en", opts.CountryLookup),
	)
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Instrument)
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	r.Get("/v1/healthz", app.Health)

	// Provider callbacks authenticate with signatures or shared secrets, not sessions.
	r.Post("/webhooks/replicate", app.ReplicateWebhook)
	r.Post("/webhooks/purchases", app.PurchaseWebhook)

	limiter := middleware.NewRateLimiter(opts.RateLimit)
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r.Group(func(r chi.Router) {
		r.Use(limiter.Handler)
		r.Post("/auth/register", app.Register)
		r.Post("/auth/login", app.Login)
	})
	r.Get("/credits/packages", app.Packages)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(opts.Tokens), chimw.Timeout(timeout))

		r.With(limiter.Handler).Post("/predictions", app.CreatePrediction)
		r.With(limiter.Handler).Post("/predictions/remove-background", app.RemoveBackground)
		r.Get("/predictions/{id}", app.GetPrediction)
		r.Get("/predictions/{id}/logo", app.PredictionLogo)

		r.Post("/logos/save", app.SaveLogo)
		r.Get("/logos", app.ListLogos)
		r.Get("/logos/archive", app.ArchiveLogos)
		r.Delete("/logos/{id}", app.DeleteLogo)

		r.Get("/user/credits", app.Credits)
		r.Get("/user/profile", app.Profile)
		r.Delete("/user", app.DeleteAccount)

		r.Post("/credits/checkout", app.Checkout)
		r.Get("/billing/purchases", app.PurchaseHistory)
		r.Get("/billing/usage", app.Usage)
		r.Get("/billing/history", app.CreditHistory)
	})

	return r
}
