package api

import (
	"strconv"
	"strings"
	"sync"
	"unicode"

	"tesla-sdk/internal/apperr"
)

// Vehicle is one car of the account. State and Command share the vehicle's
// base URL and credentials.
type Vehicle struct {
	Summary VehicleSummary
	State   *StateAPI
	Command *CommandAPI

	mu           sync.Mutex
	licencePlate string
}

// NewVehicle creates the wrapper for the vehicle described by summary.
func NewVehicle(cfg Config, summary VehicleSummary, pins PINs) *Vehicle {
	ep := cfg.sub("vehicles/" + strconv.FormatInt(summary.ID, 10))
	state := &StateAPI{req: cfg.Requester, ep: ep}
	return &Vehicle{
		Summary: summary,
		State:   state,
		Command: &CommandAPI{req: cfg.Requester, ep: ep, state: state, pins: pins},
	}
}

// Name returns the display name the owner gave the car.
func (v *Vehicle) Name() string { return v.Summary.DisplayName }

// BaseURL returns the vehicle's endpoint root.
func (v *Vehicle) BaseURL() string { return v.State.ep.BaseURL() }

// SetLicencePlate records the licence plate, upper-cased. It must be alphanumeric.
func (v *Vehicle) SetLicencePlate(plate string) error {
	if plate == "" || strings.IndexFunc(plate, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) >= 0 {
		return apperr.Configuration("set licence plate", "licence plate must be alphanumeric")
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.licencePlate = strings.ToUpper(plate)
	return nil
}

// LicencePlate returns the recorded licence plate, if any.
func (v *Vehicle) LicencePlate() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.licencePlate
}
