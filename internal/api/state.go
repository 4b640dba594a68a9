package api

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"tesla-sdk/internal/apperr"
)

// StateAPI reads the state of one vehicle. Reading state does not wake the car.
type StateAPI struct {
	req Requester
	ep  endpoint
}

// DataRequests are the per-area state endpoints below data_request/.
var DataRequests = []string{
	"charge_state",
	"climate_state",
	"drive_state",
	"gui_settings",
	"vehicle_state",
	"vehicle_config",
}

// VehicleData is a rollup of every data request plus the vehicle configuration.
func (s *StateAPI) VehicleData(ctx context.Context) (json.RawMessage, error) {
	return s.req.Get(ctx, s.ep, "vehicle_data", nil)
}

// LatestVehicleData is the data the car last pushed, on sleep, wake and around updates.
func (s *StateAPI) LatestVehicleData(ctx context.Context) (json.RawMessage, error) {
	return s.req.Get(ctx, s.ep, "latest_vehicle_data", nil)
}

func (s *StateAPI) ChargeState(ctx context.Context) (json.RawMessage, error) {
	return s.DataRequest(ctx, "charge_state")
}

func (s *StateAPI) ClimateState(ctx context.Context) (json.RawMessage, error) {
	return s.DataRequest(ctx, "climate_state")
}

// DriveState returns location, heading and speed.
func (s *StateAPI) DriveState(ctx context.Context) (*DriveState, error) {
	raw, err := s.DataRequest(ctx, "drive_state")
	ds, err := decode[DriveState]("data_request/drive_state", raw, err)
	if err != nil {
		return nil, err
	}
	return &ds, nil
}

func (s *StateAPI) GUISettings(ctx context.Context) (json.RawMessage, error) {
	return s.DataRequest(ctx, "gui_settings")
}

// VehicleState returns the physical state, such as which doors are open.
func (s *StateAPI) VehicleState(ctx context.Context) (json.RawMessage, error) {
	return s.DataRequest(ctx, "vehicle_state")
}

// VehicleConfig returns model, color, badging and wheels.
func (s *StateAPI) VehicleConfig(ctx context.Context) (json.RawMessage, error) {
	return s.DataRequest(ctx, "vehicle_config")
}

// DataRequest reads one of DataRequests.
func (s *StateAPI) DataRequest(ctx context.Context, kind string) (json.RawMessage, error) {
	return s.req.Get(ctx, s.ep, "data_request/"+kind, nil)
}

// MobileEnabled reports whether mobile access is enabled in the car.
func (s *StateAPI) MobileEnabled(ctx context.Context) (bool, error) {
	raw, err := s.req.Get(ctx, s.ep, "mobile_enabled", nil)
	return decode[bool]("mobile_enabled", raw, err)
}

func (s *StateAPI) NearbyChargingSites(ctx context.Context) (json.RawMessage, error) {
	return s.req.Get(ctx, s.ep, "nearby_charging_sites", nil)
}

func (s *StateAPI) ServiceData(ctx context.Context) (json.RawMessage, error) {
	return s.req.Get(ctx, s.ep, "service_data", nil)
}

// Get reads state by name: any of DataRequests, or vehicle_data,
// latest_vehicle_data, mobile_enabled, nearby_charging_sites, service_data.
func (s *StateAPI) Get(ctx context.Context, kind string) (json.RawMessage, error) {
	switch kind {
	case "vehicle_data", "latest_vehicle_data", "mobile_enabled", "nearby_charging_sites", "service_data":
		return s.req.Get(ctx, s.ep, kind, nil)
	}
	for _, k := range DataRequests {
		if k == kind {
			return s.DataRequest(ctx, kind)
		}
	}
	return nil, apperr.Configuration("state", fmt.Sprintf("unknown state %q, want one of %v", kind, StateKinds()))
}

// StateKinds lists the names Get accepts.
func StateKinds() []string {
	kinds := append([]string{"vehicle_data", "latest_vehicle_data", "mobile_enabled", "nearby_charging_sites", "service_data"}, DataRequests...)
	sort.Strings(kinds)
	return kinds
}

// DriveState is the subset of drive_state the SDK relies on.
type DriveState struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Heading    int     `json:"heading"`
	Speed      *int    `json:"speed"`
	ShiftState *string `json:"shift_state"`
	Timestamp  int64   `json:"timestamp"`
}
