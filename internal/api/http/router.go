package http

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"
	"github.com/snaplink/snaplink/internal/admission"
	"github.com/snaplink/snaplink/internal/models"
	"github.com/snaplink/snaplink/internal/service"

	httpSwagger "github.com/swaggo/http-swagger"
)

// Resolver defines the interface for the link resolution gate.
type Resolver interface {
	// Peek resolves a slug without consuming a click.
	Peek(ctx context.Context, slug string, now time.Time) (service.Outcome, error)

	// Consume resolves a slug for an actual redirect, consuming a click.
	Consume(ctx context.Context, slug string, now time.Time) (service.Outcome, error)
}

// LinkService defines the interface for link management business logic.
type LinkService interface {
	// CreateLink stores a new link after scoring its destination.
	CreateLink(ctx context.Context, params service.CreateLinkParams) (*models.Link, error)

	// GetLinkStats retrieves a link without mutating it.
	GetLinkStats(ctx context.Context, slug string) (*models.Link, error)

	// VerifyPassword compares a supplied password against the link's.
	VerifyPassword(ctx context.Context, slug, password string) (*models.Link, bool, error)

	// RescanSafety re-runs the safety scorer over stored links.
	RescanSafety(ctx context.Context, onlyMissing bool) (int, error)
}

// IPOverrides defines the manual ban surface of the reputation tracker.
type IPOverrides interface {
	Block(ip, reason string)
	Unblock(ip string)
}

// SettingsReloader defines the explicit settings-changed signal.
type SettingsReloader interface {
	Reload(ctx context.Context) bool
}

// getValidate initializes a new validator instance for validating incoming request payloads.
// It customizes tag name extraction from struct fields to match JSON tags.
func getValidate() *validator.Validate {
	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return validate
}

// NewRouter initializes and returns a new HTTP router with all routes and middleware configured.
// The admission chain runs before any handler: the IP reputation filter first,
// then the route-specific quota.
func NewRouter(
	logger *httplog.Logger,
	gate Resolver,
	linkSvc LinkService,
	tracker *admission.ReputationTracker,
	quotas *admission.Quotas,
	provider SettingsReloader,
) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*"},
		AllowedMethods:   []string{"POST", "GET", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Accept"},
		AllowCredentials: false,
		MaxAge:           84600,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(admission.IPFilter(tracker))

	redirectLimit := admission.RateLimit(quotas.Redirect,
		"Too many redirects from your IP. Please try again later.")

	r.With(redirectLimit).Get("/r/{slug}", handleRedirect(gate))
	r.With(redirectLimit).Get("/{slug:[a-zA-Z0-9_-]+}", handleRedirect(gate))

	r.Get("/swagger/*", httpSwagger.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(admission.RateLimit(quotas.General,
			"Too many requests from your IP. Please try again later."))

		validate := getValidate()

		r.Get("/ping", handlePing)

		r.Route("/links", func(r chi.Router) {
			r.With(admission.RateLimit(quotas.LinkCreation,
				"Too many links created from your IP. Please try again later.")).
				Post("/", handleCreateLink(linkSvc, validate))

			r.Route("/{slug}", func(r chi.Router) {
				r.Get("/", handlePeek(gate))
				r.Get("/stats", handleLinkStats(linkSvc))

				r.With(admission.AuthRateLimit(quotas.Auth,
					"Too many failed attempts from your IP. Please try again later.")).
					Post("/unlock", handleUnlock(linkSvc, validate))
			})
		})

		r.Post("/security/scan-url", handleScanURL(validate))

		r.Route("/admin", func(r chi.Router) {
			r.Post("/links/rescan-safety", handleRescanSafety(linkSvc))
			r.Post("/ips/{ip}/block", handleBlockIP(tracker))
			r.Delete("/ips/{ip}/block", handleUnblockIP(tracker))
			r.Post("/settings/reload", handleReloadSettings(provider))
		})
	})

	return r
}
