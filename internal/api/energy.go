package api

import (
	"context"
	"encoding/json"
	"net/url"
	"time"
)

// EnergyAPI reads Powerwall and solar data of one energy site.
type EnergyAPI struct {
	req    Requester
	siteID string
	ep     endpoint
	root   endpoint
}

// NewEnergyAPI creates the wrapper for the energy site siteID.
func NewEnergyAPI(cfg Config, siteID string) *EnergyAPI {
	return &EnergyAPI{
		req:    cfg.Requester,
		siteID: siteID,
		ep:     cfg.sub("energy_sites/" + url.PathEscape(siteID)),
		root:   cfg.sub(""),
	}
}

// SiteID returns the energy site id.
func (e *EnergyAPI) SiteID() string { return e.siteID }

// CalendarHistory returns power (kind "power") or energy (kind "energy")
// statistics up to endDate. period is one of day, week, month or year.
func (e *EnergyAPI) CalendarHistory(ctx context.Context, kind string, endDate time.Time, interval, period string) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("kind", kind)
	params.Set("end_date", endDate.Format(time.RFC3339))
	if interval != "" {
		params.Set("interval", interval)
	}
	if period != "" {
		params.Set("period", period)
	}
	return e.req.Get(ctx, e.ep, "calendar_history", params)
}

// BackupTimeRemaining returns how long the battery would last off grid.
func (e *EnergyAPI) BackupTimeRemaining(ctx context.Context) (json.RawMessage, error) {
	return e.req.Get(ctx, e.ep, "backup_time_remaining", nil)
}

func (e *EnergyAPI) LiveStatus(ctx context.Context) (json.RawMessage, error) {
	return e.req.Get(ctx, e.ep, "live_status", nil)
}

func (e *EnergyAPI) Programs(ctx context.Context) (json.RawMessage, error) {
	return e.req.Get(ctx, e.ep, "programs", nil)
}

// RateTariffs is account wide; it is not scoped to the site.
func (e *EnergyAPI) RateTariffs(ctx context.Context) (json.RawMessage, error) {
	return e.req.Get(ctx, e.root, "energy_sites/rate_tariffs", nil)
}

func (e *EnergyAPI) SiteInfo(ctx context.Context) (json.RawMessage, error) {
	return e.req.Get(ctx, e.ep, "site_info", nil)
}

func (e *EnergyAPI) SiteStatus(ctx context.Context) (json.RawMessage, error) {
	return e.req.Get(ctx, e.ep, "site_status", nil)
}

// TariffRate returns the utility rate plan used for time-based control.
func (e *EnergyAPI) TariffRate(ctx context.Context) (json.RawMessage, error) {
	return e.req.Get(ctx, e.ep, "tariff_rate", nil)
}

func (e *EnergyAPI) History(ctx context.Context, kind, period string) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("kind", kind)
	if period != "" {
		params.Set("period", period)
	}
	return e.req.Get(ctx, e.ep, "history", params)
}
