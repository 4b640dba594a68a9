package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"tesla-sdk/internal/apperr"
)

type commandHandler func(ctx context.Context, c *CommandAPI, p commandParams) (*CommandResult, error)

// checkedCommands routes Send to the typed method of a command, parsing its
// arguments from the query values.
var checkedCommands = map[string]commandHandler{
	"trigger_homelink": func(ctx context.Context, c *CommandAPI, p commandParams) (*CommandResult, error) {
		at, err := p.coordinates()
		if err != nil {
			return nil, err
		}
		if at == nil {
			return nil, p.errorf("lat and lon are required")
		}
		return c.TriggerHomelink(ctx, *at)
	},
	"speed_limit_set_limit": func(ctx context.Context, c *CommandAPI, p commandParams) (*CommandResult, error) {
		limit, err := p.integer("limit_mph")
		if err != nil {
			return nil, err
		}
		return c.SpeedLimitSetLimit(ctx, limit)
	},
	"speed_limit_activate":   speedLimitCommand,
	"speed_limit_deactivate": speedLimitCommand,
	"speed_limit_clear_pin":  speedLimitCommand,
	"set_valet_mode": func(ctx context.Context, c *CommandAPI, p commandParams) (*CommandResult, error) {
		on, err := p.boolean("on")
		if err != nil {
			return nil, err
		}
		return c.SetValetMode(ctx, on, p.v.Get("password"))
	},
	"set_sentry_mode": func(ctx context.Context, c *CommandAPI, p commandParams) (*CommandResult, error) {
		on, err := p.boolean("on")
		if err != nil {
			return nil, err
		}
		return c.SetSentryMode(ctx, on)
	},
	"actuate_trunk": func(ctx context.Context, c *CommandAPI, p commandParams) (*CommandResult, error) {
		return c.ActuateTrunk(ctx, p.v.Get("which_trunk"))
	},
	"window_control": func(ctx context.Context, c *CommandAPI, p commandParams) (*CommandResult, error) {
		at, err := p.coordinates()
		if err != nil {
			return nil, err
		}
		return c.WindowControl(ctx, p.v.Get("command"), at)
	},
	"sun_roof_control": func(ctx context.Context, c *CommandAPI, p commandParams) (*CommandResult, error) {
		return c.SunRoofControl(ctx, p.v.Get("state"))
	},
	"set_charge_limit": func(ctx context.Context, c *CommandAPI, p commandParams) (*CommandResult, error) {
		percent, err := p.integer("percent")
		if err != nil {
			return nil, err
		}
		return c.SetChargeLimit(ctx, percent)
	},
	"set_charging_amps": func(ctx context.Context, c *CommandAPI, p commandParams) (*CommandResult, error) {
		amps, err := p.integer("charging_amps")
		if err != nil {
			return nil, err
		}
		return c.SetChargingAmps(ctx, amps)
	},
	"set_scheduled_charging": func(ctx context.Context, c *CommandAPI, p commandParams) (*CommandResult, error) {
		enable, err := p.boolean("enable")
		if err != nil {
			return nil, err
		}
		minutes, err := p.integer("time")
		if err != nil {
			return nil, err
		}
		return c.SetScheduledCharging(ctx, enable, minutes)
	},
	"set_temps": func(ctx context.Context, c *CommandAPI, p commandParams) (*CommandResult, error) {
		driver, err := p.float("driver_temp")
		if err != nil {
			return nil, err
		}
		var passenger *float64
		if p.v.Has("passenger_temp") {
			v, err := p.float("passenger_temp")
			if err != nil {
				return nil, err
			}
			passenger = &v
		}
		return c.SetTemps(ctx, driver, passenger)
	},
	"set_preconditioning_max": func(ctx context.Context, c *CommandAPI, p commandParams) (*CommandResult, error) {
		on, err := p.boolean("on")
		if err != nil {
			return nil, err
		}
		return c.SetPreconditioningMax(ctx, on)
	},
	"remote_seat_heater_request": func(ctx context.Context, c *CommandAPI, p commandParams) (*CommandResult, error) {
		heater, err := p.integer("heater")
		if err != nil {
			return nil, err
		}
		level, err := p.integer("level")
		if err != nil {
			return nil, err
		}
		return c.RemoteSeatHeaterRequest(ctx, heater, level)
	},
}

// speedLimitCommand uses the pin parameter, or the configured speed limit PIN.
func speedLimitCommand(ctx context.Context, c *CommandAPI, p commandParams) (*CommandResult, error) {
	pin := p.v.Get("pin")
	if pin == "" {
		pin = c.pins.SpeedLimit
	}
	return c.speedLimitWith(ctx, p.name, pin)
}

type commandParams struct {
	name string
	v    url.Values
}

func (p commandParams) errorf(format string, args ...any) error {
	return apperr.Configuration("command/"+p.name, fmt.Sprintf(format, args...))
}

func (p commandParams) required(key string) (string, error) {
	s := p.v.Get(key)
	if s == "" {
		return "", p.errorf("%s is required", key)
	}
	return s, nil
}

func (p commandParams) integer(key string) (int, error) {
	s, err := p.required(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, p.errorf("%s must be an integer, got %q", key, s)
	}
	return n, nil
}

func (p commandParams) float(key string) (float64, error) {
	s, err := p.required(key)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, p.errorf("%s must be a number, got %q", key, s)
	}
	return f, nil
}

func (p commandParams) boolean(key string) (bool, error) {
	s, err := p.required(key)
	if err != nil {
		return false, err
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, p.errorf("%s must be true or false, got %q", key, s)
	}
	return b, nil
}

// coordinates returns nil when neither lat nor lon is given.
func (p commandParams) coordinates() (*Coordinates, error) {
	if !p.v.Has("lat") && !p.v.Has("lon") {
		return nil, nil
	}
	lat, err := p.float("lat")
	if err != nil {
		return nil, err
	}
	lon, err := p.float("lon")
	if err != nil {
		return nil, err
	}
	return &Coordinates{Latitude: lat, Longitude: lon}, nil
}
