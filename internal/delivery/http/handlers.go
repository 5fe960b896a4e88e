package http

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberutils "github.com/gofiber/fiber/v2/utils"
	"github.com/sirupsen/logrus"

	"github.com/smartcity/signalctl/internal/domain"
	"github.com/smartcity/signalctl/internal/service"
	"github.com/smartcity/signalctl/pkg/utils"
)

var log = logrus.WithField("module", "http")

// Handler contains all HTTP handlers
type Handler struct {
	control   *service.ControlService
	dashboard *service.DashboardService
	journal   *service.EventJournal
}

// NewHandler creates a new handler
func NewHandler(control *service.ControlService, dashboard *service.DashboardService, journal *service.EventJournal) *Handler {
	return &Handler{
		control:   control,
		dashboard: dashboard,
		journal:   journal,
	}
}

// errorStatus maps domain failures to HTTP codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrLocked):
		return fiber.StatusLocked
	case errors.Is(err, domain.ErrInvalidDuration),
		errors.Is(err, domain.ErrInvalidPhase),
		errors.Is(err, domain.ErrEmptyRoute),
		errors.Is(err, domain.ErrInvalidRoute),
		errors.Is(err, domain.ErrInvalidSpeed),
		errors.Is(err, domain.ErrInvalidSeverity),
		errors.Is(err, domain.ErrInvalidIncidentType),
		errors.Is(err, domain.ErrInvalidArgument):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrRouteConflict),
		errors.Is(err, domain.ErrAlreadyActive),
		errors.Is(err, domain.ErrSignalInRoute),
		errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrVersionConflict),
		errors.Is(err, domain.ErrInvalidTransition):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

func failure(err error) error {
	code := errorStatus(err)
	if code == fiber.StatusInternalServerError {
		log.Errorf("request failed: %v", err)
		return fiber.NewError(code, "Internal Server Error")
	}
	return fiber.NewError(code, err.Error())
}

// param copies a route parameter out of the request buffer. IDs end up in
// stored entities and queued events, which outlive the request.
func param(c *fiber.Ctx, key string) string {
	return fiberutils.CopyString(c.Params(key))
}

func ok(c *fiber.Ctx, data interface{}) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": "signalctl",
		"version": "1.0.0",
		"signals": len(h.control.ListSignals()),
	})
}

// GetDashboard returns the operator overview
func (h *Handler) GetDashboard(c *fiber.Ctx) error {
	return ok(c, h.dashboard.GetDashboard(c.Context()))
}

// --- signals ---

// ListSignals returns every signal with its derived status
func (h *Handler) ListSignals(c *fiber.Ctx) error {
	data := h.control.ListSignals()
	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
		"count":   len(data),
	})
}

// CreateSignal provisions a signal
func (h *Handler) CreateSignal(c *fiber.Ctx) error {
	var req createSignalRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	v, err := h.control.CreateSignal(req.ID, domain.GeoPoint{X: *req.X, Y: *req.Y})
	if err != nil {
		return failure(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": v})
}

// GetSignal returns one signal
func (h *Handler) GetSignal(c *fiber.Ctx) error {
	v, err := h.control.GetSignal(param(c, "id"))
	if err != nil {
		return failure(err)
	}
	return ok(c, v)
}

// DeleteSignal removes a signal
func (h *Handler) DeleteSignal(c *fiber.Ctx) error {
	if err := h.control.DeleteSignal(param(c, "id")); err != nil {
		return failure(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// SetPhase is the manual phase override
func (h *Handler) SetPhase(c *fiber.Ctx) error {
	var req setPhaseRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	phase, err := domain.ParsePhase(req.Phase)
	if err != nil {
		return failure(err)
	}

	var v domain.SignalView
	if req.ExpectedVersion != nil {
		v, err = h.control.SetPhaseIfVersion(param(c, "id"), phase, *req.Duration, *req.ExpectedVersion)
	} else {
		v, err = h.control.SetPhase(param(c, "id"), phase, *req.Duration)
	}
	if err != nil {
		return failure(err)
	}
	return ok(c, v)
}

// SetConfined toggles the maintenance lock
func (h *Handler) SetConfined(c *fiber.Ctx) error {
	var req confineRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	v, err := h.control.Confine(param(c, "id"), *req.Confined)
	if err != nil {
		return failure(err)
	}
	return ok(c, v)
}

// SetOnline records connectivity
func (h *Handler) SetOnline(c *fiber.Ctx) error {
	var req onlineRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	v, err := h.control.SetOnline(param(c, "id"), *req.Online)
	if err != nil {
		return failure(err)
	}
	return ok(c, v)
}

// SignalsInArea lists signals within a radius
func (h *Handler) SignalsInArea(c *fiber.Ctx) error {
	q, err := parseArea(c)
	if err != nil {
		return err
	}
	data := h.control.SignalsInArea(domain.GeoPoint{X: q.X, Y: q.Y}, q.Radius)
	return c.JSON(fiber.Map{"success": true, "data": data, "count": len(data)})
}

// SignalsAtJunction lists the members of a junction
func (h *Handler) SignalsAtJunction(c *fiber.Ctx) error {
	data := h.control.SignalsAtJunction(param(c, "prefix"))
	return c.JSON(fiber.Map{"success": true, "data": data, "count": len(data)})
}

// OptimizeJunction runs the time-of-day rule on a junction
func (h *Handler) OptimizeJunction(c *fiber.Ctx) error {
	applied, err := h.control.OptimizeJunction(param(c, "prefix"))
	if err != nil {
		return failure(err)
	}
	return ok(c, applied)
}

// --- green waves ---

// ListGreenWaves returns every known route
func (h *Handler) ListGreenWaves(c *fiber.Ctx) error {
	return ok(c, h.control.GreenWaves())
}

// GetGreenWave returns one route
func (h *Handler) GetGreenWave(c *fiber.Ctx) error {
	r, err := h.control.GreenWave().Route(param(c, "id"))
	if err != nil {
		return failure(err)
	}
	return ok(c, r)
}

// ActivateGreenWave reserves and schedules a route
func (h *Handler) ActivateGreenWave(c *fiber.Ctx) error {
	var req activateRouteRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	r, err := h.control.ActivateGreenWave(req.ID, req.SignalIDs, req.TargetSpeed)
	if err != nil {
		return failure(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": r})
}

// DeactivateGreenWave cancels a route
func (h *Handler) DeactivateGreenWave(c *fiber.Ctx) error {
	if err := h.control.DeactivateGreenWave(param(c, "id")); err != nil {
		return failure(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// --- incidents ---

// ReportIncident records a new incident
func (h *Handler) ReportIncident(c *fiber.Ctx) error {
	var req reportIncidentRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	typ, err := domain.ParseIncidentType(req.Type)
	if err != nil {
		return failure(err)
	}
	v, err := h.control.ReportIncident(typ, domain.GeoPoint{X: *req.X, Y: *req.Y}, req.Severity)
	if err != nil {
		return failure(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": v})
}

// ListIncidents returns all incidents, or only active ones with ?active=true
func (h *Handler) ListIncidents(c *fiber.Ctx) error {
	data := h.control.ListIncidents(c.QueryBool("active", false))
	return c.JSON(fiber.Map{"success": true, "data": data, "count": len(data)})
}

// GetIncident returns one incident
func (h *Handler) GetIncident(c *fiber.Ctx) error {
	v, err := h.control.GetIncident(param(c, "id"))
	if err != nil {
		return failure(err)
	}
	return ok(c, v)
}

// IncidentsNear lists incidents within a radius
func (h *Handler) IncidentsNear(c *fiber.Ctx) error {
	q, err := parseArea(c)
	if err != nil {
		return err
	}
	data := h.control.IncidentsNear(domain.GeoPoint{X: q.X, Y: q.Y}, q.Radius)
	return c.JSON(fiber.Map{"success": true, "data": data, "count": len(data)})
}

// IncidentStatistics summarises incidents
func (h *Handler) IncidentStatistics(c *fiber.Ctx) error {
	return ok(c, h.control.IncidentStatistics())
}

// TransitionIncident moves an incident along its lifecycle
func (h *Handler) TransitionIncident(c *fiber.Ctx) error {
	var req transitionRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	status, err := domain.ParseIncidentStatus(req.Status)
	if err != nil {
		return failure(err)
	}
	v, err := h.control.TransitionIncident(param(c, "id"), status)
	if err != nil {
		return failure(err)
	}
	return ok(c, v)
}

// --- journal ---

// GetEvents returns journaled events of the last N hours
func (h *Handler) GetEvents(c *fiber.Ctx) error {
	hours := utils.Clamp(c.QueryInt("hours", 24), 1, 720) // max 30 days

	to := time.Now()
	from := to.Add(-time.Duration(hours) * time.Hour)

	data, err := h.journal.History(c.Context(), from, to)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch event history")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
		"count":   len(data),
	})
}
