/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:       Unique ID per request for tracing
  2. RequestLogger:   zerolog request logging (logger/)
  3. Recoverer:       Panic recovery (500 instead of crash)
  4. CORS:            Cross-origin requests for the spreadsheet frontend
  5. ActorMiddleware: X-Actor-Role / X-Actor-Entity into the context

ROUTE GROUPS:
  /api/session/*         LIVE / archive view switching
  /api/{role}/*          reports, cells, metrics, salaries per role
  /api/marketing/*       synced daily view and funnel
  /api/roster/*          roster CRUD and promotion
  /api/archives/*        month close and history
  /api/decomposition/*   monthly plan decomposition
  /api/scenarios/*       demo data

  Static routes are registered as flat paths so that chi can fall back
  to the {role} routes for paths like /api/marketing/reports.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/sales-payroll/logger"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(logger.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", HeaderActorRole, HeaderActorEntity},
	}))
	r.Use(ActorMiddleware)

	r.Route("/api", func(r chi.Router) {
		// Session
		r.Get("/session", h.GetSession)
		r.Post("/session/month", h.SelectMonth)
		r.Post("/session/archive/{id}", h.OpenArchive)
		r.Post("/session/open", h.OpenByLabel)
		r.Post("/session/exit", h.ExitArchive)

		// Marketing
		r.Get("/marketing/daily/{date}", h.GetDailyView)
		r.Get("/marketing/funnel", h.GetFunnel)

		// Roster
		r.Get("/roster/{role}", h.ListRoster)
		r.Post("/roster/{role}", h.AddEntity)
		r.Put("/roster/{role}/{id}", h.UpdateEntity)
		r.Delete("/roster/{role}/{id}", h.DeleteEntity)
		r.Post("/roster/managers/{id}/promote", h.PromoteManager)

		// Archives
		r.Get("/archives", h.ListArchives)
		r.Get("/archives/{id}", h.GetArchive)
		r.Post("/archives/close", h.CloseMonth)
		r.Delete("/archives/{id}", h.DeleteArchive)

		// Decomposition
		r.Get("/decomposition/{label}", h.GetDecomposition)
		r.Put("/decomposition/{label}", h.SaveDecomposition)

		// Scenarios
		r.Get("/scenarios", h.ListScenarios)
		r.Post("/scenarios/load", h.LoadScenario)

		// Per role
		r.Get("/{role}/reports", h.ListReports)
		r.Put("/{role}/cells", h.UpsertCell)
		r.Get("/{role}/metrics", h.ListMetrics)
		r.Get("/{role}/metrics/{id}", h.GetEntityMetrics)
		r.Get("/{role}/salary", h.ListSalaries)
	})

	return r
}
