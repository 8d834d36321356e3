package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/powerbackus/powerback-sub000/internal/http/handlers"
	"github.com/powerbackus/powerback-sub000/internal/middleware"
)

// Options tune the cross-cutting middleware. Zero values disable the
// corresponding layer, which is what the tests want.
type Options struct {
	RateLimitPerMin int
	AllowedOrigins  []string
}

// NewRouter assembles the API surface.
func NewRouter(app *handlers.App, logger zerolog.Logger, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(logger),
	)
	if len(opts.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(opts.AllowedOrigins))
	}
	if opts.RateLimitPerMin > 0 {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
	}

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/celebrations", func(r chi.Router) {
		r.Post("/", app.CelebrationsCreate)
		r.Get("/{id}", app.CelebrationsGet)
		r.Get("/{id}/history", app.CelebrationsHistory)
		r.Post("/{id}/transitions", app.CelebrationsTransition)
	})

	r.Post("/v1/settlements", app.SettlementsIntake)

	r.Get("/v1/contributors/{id}/remaining", app.ContributorRemaining)

	return r
}
