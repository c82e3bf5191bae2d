// internal/handlers/api.go
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jason-s-yu/mapveto/internal/audit"
	"github.com/jason-s-yu/mapveto/internal/events"
	"github.com/jason-s-yu/mapveto/internal/metrics"
	"github.com/jason-s-yu/mapveto/internal/middleware"
	"github.com/jason-s-yu/mapveto/internal/store"
	"github.com/jason-s-yu/mapveto/internal/veto"
	"github.com/jason-s-yu/mapveto/internal/view"
	"github.com/sirupsen/logrus"
)

// API serves the veto HTTP and websocket endpoints.
type API struct {
	Service *veto.Service
	Auditor *audit.Auditor
	Seeder  store.Seeder
	Bus     events.Subscriber
	Metrics *metrics.Recorder
	Logger  *logrus.Logger

	// Sync tunes the per-connection snapshot syncer behind the websocket.
	Sync           view.SyncOptions
	AllowedOrigins []string
}

// Router builds the chi router for the API.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.LogMiddleware(a.log()))
	r.Use(chimw.Recoverer)

	r.Use(chimw.Heartbeat("/ping"))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.origins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	if a.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", a.Metrics.Handler())
	}

	r.Route("/veto", func(r chi.Router) {
		// the stream authenticates after the upgrade so it can close with a specific code
		r.Get("/ws/{matchID}", a.VetoWSHandler)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate)

			r.Get("/matches/{matchID}", a.GetMatchHandler)
			r.Post("/matches/{matchID}/session", a.InitSessionHandler)
			r.Get("/sessions/{sessionID}", a.GetSessionHandler)
			r.Post("/sessions/{sessionID}/roll", a.RollHandler)
			r.Post("/sessions/{sessionID}/actions", a.RecordActionHandler)

			r.Get("/audit/sessions/{sessionID}", a.AuditSessionHandler)
			r.Get("/audit/system", a.AuditSystemHandler)

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireAdmin)
				r.Post("/remediate", a.RemediateHandler)
				r.Post("/matches", a.PutMatchHandler)
				r.Put("/pools/{tournamentID}", a.PutMapPoolHandler)
			})
		})
	})
	return r
}

func (a *API) origins() []string {
	if len(a.AllowedOrigins) == 0 {
		return []string{"https://*", "http://*"}
	}
	return a.AllowedOrigins
}

func (a *API) log() *logrus.Logger {
	if a.Logger == nil {
		return logrus.StandardLogger()
	}
	return a.Logger
}
