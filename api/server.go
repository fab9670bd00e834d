/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/employees/*        Personnel records, eligibility, step ledger
  /api/eligibility/*      Batch eligibility
  /api/allocation/*       Cycle runs and rankings
  /api/recommendations/*  Approval workflow
  /api/salary             Salary table admin
  /api/vacancies          Slot configuration admin
  /api/admin/*            Batch operations, demo seed

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: handler implementations
  - cmd/server/main.go: server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		// Employee routes
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.SaveEmployee)
			r.Get("/{id}", h.GetEmployee)
			r.Get("/{id}/eligibility", h.CheckEligibility)
			r.Get("/{id}/step-recommendation", h.RecommendStep)
			r.Post("/{id}/increment", h.IncrementStep)
			r.Get("/{id}/increments", h.GetIncrementHistory)
		})

		// Batch eligibility routes
		r.Route("/eligibility", func(r chi.Router) {
			r.Get("/summary", h.EligibilitySummary)
			r.Get("/candidates", h.EligibleCandidates)
		})

		// Allocation routes
		r.Route("/allocation", func(r chi.Router) {
			r.Post("/run", h.RunAllocation)
			r.Get("/{cycle}/grades/{grade}", h.GetRankings)
		})

		// Recommendation approval routes
		r.Route("/recommendations", func(r chi.Router) {
			r.Get("/{id}", h.GetRecommendation)
			r.Post("/{id}/approve", h.ApproveRecommendation)
			r.Post("/{id}/reject", h.RejectRecommendation)
		})

		// Salary table routes
		r.Route("/salary", func(r chi.Router) {
			r.Get("/", h.ListSalary)
			r.Post("/", h.SaveSalary)
		})

		// Vacancy configuration routes
		r.Route("/vacancies", func(r chi.Router) {
			r.Get("/", h.ListVacancies)
			r.Post("/", h.SaveVacancy)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/increments/run", h.RunIncrements)
			r.Post("/seed", h.SeedDemo)
		})
	})

	return r
}
