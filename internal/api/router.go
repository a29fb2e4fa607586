package api

import (
	"fleet-sequencing-service/internal/api/handlers"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(routes *handlers.RouteHandler, health *handlers.HealthHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/health", health.Health)

	r.Get("/drivers", routes.ListDrivers)
	r.Route("/drivers/{driverID}", func(r chi.Router) {
		r.Get("/timeline", routes.Timeline)
		r.Post("/orders/{orderID}/move", routes.MoveOrder)
		r.Post("/stops/move", routes.MoveStop)
		r.Post("/stops/normalize", routes.NormalizeAnchors)
		r.Post("/optimization", routes.ProposeDriver)
		r.Post("/optimization/apply", routes.ApplyOptimization)
	})

	r.Post("/stops", routes.CreateStop)
	r.Patch("/stops/{stopID}", routes.UpdateStop)
	r.Delete("/stops/{stopID}", routes.DeleteStop)

	r.Post("/reassignments", routes.Reassign)
	r.Post("/optimizations", routes.ProposeAll)
	r.Post("/refresh", routes.Refresh)

	return r
}
