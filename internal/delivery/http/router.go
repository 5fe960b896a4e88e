package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/smartcity/signalctl/internal/service"
)

// SetupRoutes configures all HTTP routes
func SetupRoutes(app *fiber.App, control *service.ControlService, dashboard *service.DashboardService, journal *service.EventJournal) {
	handler := NewHandler(control, dashboard, journal)

	// Health check
	app.Get("/health", handler.HealthCheck)

	// API v1 routes
	api := app.Group("/api/v1")
	{
		api.Get("/dashboard", handler.GetDashboard)
		api.Get("/events", handler.GetEvents)

		// Signals; static segments before :id
		api.Get("/signals", handler.ListSignals)
		api.Post("/signals", handler.CreateSignal)
		api.Get("/signals/area", handler.SignalsInArea)
		api.Get("/signals/:id", handler.GetSignal)
		api.Delete("/signals/:id", handler.DeleteSignal)
		api.Put("/signals/:id/phase", handler.SetPhase)
		api.Put("/signals/:id/confine", handler.SetConfined)
		api.Put("/signals/:id/online", handler.SetOnline)

		api.Get("/junctions/:prefix/signals", handler.SignalsAtJunction)
		api.Post("/junctions/:prefix/optimize", handler.OptimizeJunction)

		// Green waves
		api.Get("/greenwaves", handler.ListGreenWaves)
		api.Post("/greenwaves", handler.ActivateGreenWave)
		api.Get("/greenwaves/:id", handler.GetGreenWave)
		api.Delete("/greenwaves/:id", handler.DeactivateGreenWave)

		// Incidents
		api.Get("/incidents", handler.ListIncidents)
		api.Post("/incidents", handler.ReportIncident)
		api.Get("/incidents/stats", handler.IncidentStatistics)
		api.Get("/incidents/near", handler.IncidentsNear)
		api.Get("/incidents/:id", handler.GetIncident)
		api.Put("/incidents/:id/status", handler.TransitionIncident)
	}
}

// ErrorHandler renders every error as {"error": true, "message": ...}
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
