package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/pharmaflow/pharmaflow/internal/auth"
	"github.com/pharmaflow/pharmaflow/internal/catalog/categories"
	"github.com/pharmaflow/pharmaflow/internal/catalog/medications"
	"github.com/pharmaflow/pharmaflow/internal/dashboard"
	"github.com/pharmaflow/pharmaflow/internal/observability"
	"github.com/pharmaflow/pharmaflow/internal/sales"
	"github.com/pharmaflow/pharmaflow/internal/sales/customers"
	"github.com/pharmaflow/pharmaflow/internal/sales/prescriptions"
	"github.com/pharmaflow/pharmaflow/internal/shared"
	"github.com/pharmaflow/pharmaflow/internal/view"
	"github.com/pharmaflow/pharmaflow/jobs"
	"github.com/pharmaflow/pharmaflow/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger               *slog.Logger
	Config               *Config
	Templates            *view.Engine
	SessionManager       *shared.SessionManager
	CSRFManager          *shared.CSRFManager
	AuthHandler          *auth.Handler
	DashboardHandler     *dashboard.Handler
	CategoryHandler      *categories.Handler
	MedicationHandler    *medications.Handler
	CustomerHandler      *customers.Handler
	PrescriptionHandler  *prescriptions.Handler
	SalesHandler         *sales.Handler
	JobHandler           *jobs.Handler
	Metrics              *observability.Metrics
}

// NewRouter constructs the chi.Router with PharmaFlow defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Landing page for unauthenticated visitors.
	r.Get("/welcome", func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		csrfToken, _ := params.CSRFManager.EnsureToken(r.Context(), sess)
		var flash *shared.FlashMessage
		if sess != nil {
			flash = sess.PopFlash()
		}
		data := view.TemplateData{
			Title:     "PharmaFlow",
			CSRFToken: csrfToken,
			Flash:     flash,
		}
		if err := params.Templates.Render(w, "pages/landing.html", data); err != nil {
			params.Logger.Error("render landing", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	})

	// The dashboard is the home page for signed-in staff.
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil || sess.User() == "" {
			http.Redirect(w, r, "/welcome", http.StatusSeeOther)
			return
		}
		params.DashboardHandler.Show(w, r)
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Route("/catalog", func(r chi.Router) {
		r.Use(shared.RequireLogin)
		r.Route("/categories", params.CategoryHandler.MountRoutes)
		r.Route("/medications", params.MedicationHandler.MountRoutes)
	})

	r.Route("/sales", func(r chi.Router) {
		r.Route("/api", func(r chi.Router) {
			r.Use(shared.RequireLoginJSON)
			r.Get("/medications/search", params.SalesHandler.SearchMedications)
			r.Post("/sales", params.SalesHandler.CreateSale)
		})
		r.Group(func(r chi.Router) {
			r.Use(shared.RequireLogin)
			r.Get("/", params.SalesHandler.List)
			r.Get("/pos", params.SalesHandler.POSPage)
			r.Get("/{id}", params.SalesHandler.Show)
			r.Get("/{id}/invoice", params.SalesHandler.Invoice)
			r.Route("/customers", func(r chi.Router) {
				params.CustomerHandler.MountRoutes(r)
				params.PrescriptionHandler.MountRoutes(r)
			})
		})
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// staticCacheHandler wraps a file server with Cache-Control headers so
// browsers keep assets for an hour.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
