package service

import (
	"github.com/smartcity/signalctl/internal/domain"
)

// EventRepository is re-exported from domain for convenience
type EventRepository = domain.EventRepository
