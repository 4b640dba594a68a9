package api

import (
	"context"
	"encoding/json"
)

// User is the signed-in owner.
type User struct {
	Email           string `json:"email"`
	FullName        string `json:"full_name"`
	ProfileImageURL string `json:"profile_image_url"`
	VaultUUID       string `json:"vault_uuid"`
}

// VehicleSummary is one entry of the vehicle list.
type VehicleSummary struct {
	ID          int64    `json:"id"`
	IDS         string   `json:"id_s"`
	VehicleID   int64    `json:"vehicle_id"`
	VIN         string   `json:"vin"`
	DisplayName string   `json:"display_name"`
	State       string   `json:"state"`
	InService   bool     `json:"in_service"`
	Tokens      []string `json:"tokens,omitempty"`
}

// AccountAPI reads account-level data.
type AccountAPI struct {
	req Requester
	ep  endpoint
}

// NewAccountAPI creates the account wrapper rooted at the API base URL.
func NewAccountAPI(cfg Config) *AccountAPI {
	return &AccountAPI{req: cfg.Requester, ep: cfg.sub("")}
}

func (a *AccountAPI) Me(ctx context.Context) (*User, error) {
	raw, err := a.req.Get(ctx, a.ep, "users/me", nil)
	u, err := decode[User]("users/me", raw, err)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// FeatureConfig returns the mobile app feature configuration.
func (a *AccountAPI) FeatureConfig(ctx context.Context) (json.RawMessage, error) {
	return a.req.Get(ctx, a.ep, "users/feature_config", nil)
}

func (a *AccountAPI) NotificationPreferences(ctx context.Context) (json.RawMessage, error) {
	return a.req.Get(ctx, a.ep, "notification_preferences", nil)
}

// Products lists every vehicle and energy product of the account.
func (a *AccountAPI) Products(ctx context.Context) ([]json.RawMessage, error) {
	raw, err := a.req.Get(ctx, a.ep, "products", nil)
	return decode[[]json.RawMessage]("products", raw, err)
}

func (a *AccountAPI) Subscriptions(ctx context.Context) (json.RawMessage, error) {
	return a.req.Get(ctx, a.ep, "vehicle_subscriptions", nil)
}

func (a *AccountAPI) VaultProfile(ctx context.Context) (json.RawMessage, error) {
	return a.req.Get(ctx, a.ep, "users/vault_profile", nil)
}

// Vehicles lists the vehicles of the account.
func (a *AccountAPI) Vehicles(ctx context.Context) ([]VehicleSummary, error) {
	raw, err := a.req.Get(ctx, a.ep, "vehicles", nil)
	return decode[[]VehicleSummary]("vehicles", raw, err)
}
