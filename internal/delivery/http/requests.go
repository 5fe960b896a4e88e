package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

type validator interface {
	validate() error
}

// parse decodes the body and validates it at the boundary
func parse(c *fiber.Ctx, req validator) error {
	if err := c.BodyParser(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	return req.validate()
}

func missing(field string) error {
	return fiber.NewError(fiber.StatusBadRequest, "missing field: "+field)
}

type createSignalRequest struct {
	ID string   `json:"id"`
	X  *float64 `json:"x"`
	Y  *float64 `json:"y"`
}

func (r *createSignalRequest) validate() error {
	switch {
	case strings.TrimSpace(r.ID) == "":
		return missing("id")
	case r.X == nil:
		return missing("x")
	case r.Y == nil:
		return missing("y")
	}
	return nil
}

type setPhaseRequest struct {
	Phase           string  `json:"phase"`
	Duration        *int    `json:"duration"`
	ExpectedVersion *uint64 `json:"expected_version"`
}

func (r *setPhaseRequest) validate() error {
	switch {
	case r.Phase == "":
		return missing("phase")
	case r.Duration == nil:
		return missing("duration")
	}
	return nil
}

type confineRequest struct {
	Confined *bool `json:"confined"`
}

func (r *confineRequest) validate() error {
	if r.Confined == nil {
		return missing("confined")
	}
	return nil
}

type onlineRequest struct {
	Online *bool `json:"online"`
}

func (r *onlineRequest) validate() error {
	if r.Online == nil {
		return missing("online")
	}
	return nil
}

type activateRouteRequest struct {
	ID          string   `json:"id"`
	SignalIDs   []string `json:"signal_ids"`
	TargetSpeed float64  `json:"target_speed"`
}

// route rules (empty list, duplicates, speed) are checked by the coordinator
func (r *activateRouteRequest) validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return missing("id")
	}
	return nil
}

type reportIncidentRequest struct {
	Type     string   `json:"type"`
	X        *float64 `json:"x"`
	Y        *float64 `json:"y"`
	Severity int      `json:"severity"`
}

func (r *reportIncidentRequest) validate() error {
	switch {
	case r.Type == "":
		return missing("type")
	case r.X == nil:
		return missing("x")
	case r.Y == nil:
		return missing("y")
	}
	return nil
}

type transitionRequest struct {
	Status string `json:"status"`
}

func (r *transitionRequest) validate() error {
	if r.Status == "" {
		return missing("status")
	}
	return nil
}

type areaQuery struct {
	X      float64 `query:"x"`
	Y      float64 `query:"y"`
	Radius float64 `query:"radius"`
}

func parseArea(c *fiber.Ctx) (areaQuery, error) {
	var q areaQuery
	if err := c.QueryParser(&q); err != nil {
		return q, fiber.NewError(fiber.StatusBadRequest, "Invalid query")
	}
	if q.Radius <= 0 {
		return q, fiber.NewError(fiber.StatusBadRequest, "radius must be positive")
	}
	return q, nil
}
