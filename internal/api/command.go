package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"tesla-sdk/internal/apperr"
)

// CommandResult is the payload of every vehicle command.
type CommandResult struct {
	Result bool   `json:"result"`
	Reason string `json:"reason"`
}

// PINs are the vehicle PINs some commands require.
type PINs struct {
	SpeedLimit string
	Valet      string
}

// Coordinates is a position in decimal degrees.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// ScheduledDeparture configures set_scheduled_departure.
type ScheduledDeparture struct {
	Enable                      bool
	PreconditioningEnabled      bool
	PreconditioningWeekdaysOnly bool
	OffPeakChargingEnabled      bool
	OffPeakChargingWeekdaysOnly bool
	EndOffPeakTime              int // minutes after local midnight
}

// CommandAPI sends commands to one vehicle. The car must be awake.
type CommandAPI struct {
	req   Requester
	ep    endpoint
	state *StateAPI
	pins  PINs
}

// WakeUp wakes the car and returns its summary; state becomes online once it is awake.
func (c *CommandAPI) WakeUp(ctx context.Context) (*VehicleSummary, error) {
	raw, err := c.req.Post(ctx, c.ep, "wake_up", nil, nil)
	v, err := decode[VehicleSummary]("wake_up", raw, err)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Send posts command/name with params. It is the generic form of the methods
// below: commands that have one are routed through it, so their arguments are
// checked and configured PINs fill in a missing pin or password.
func (c *CommandAPI) Send(ctx context.Context, name string, params url.Values) (*CommandResult, error) {
	if name == "" || strings.ContainsAny(name, "/?#") {
		return nil, apperr.Configuration("command", fmt.Sprintf("invalid command name %q", name))
	}
	if h, ok := checkedCommands[name]; ok {
		if params == nil {
			params = url.Values{}
		}
		return h(ctx, c, commandParams{name: name, v: params})
	}
	return c.send(ctx, name, params)
}

func (c *CommandAPI) send(ctx context.Context, name string, params url.Values) (*CommandResult, error) {
	op := "command/" + name
	raw, err := c.req.Post(ctx, c.ep, op, params, nil)
	res, err := decode[CommandResult](op, raw, err)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *CommandAPI) HonkHorn(ctx context.Context) (*CommandResult, error) {
	return c.send(ctx, "honk_horn", nil)
}

func (c *CommandAPI) FlashLights(ctx context.Context) (*CommandResult, error) {
	return c.send(ctx, "flash_lights", nil)
}

// RemoteStartDrive enables keyless driving for two minutes.
func (c *CommandAPI) RemoteStartDrive(ctx context.Context) (*CommandResult, error) {
	return c.send(ctx, "remote_start_drive", nil)
}

// TriggerHomelink opens or closes the primary Homelink device stored near at.
func (c *CommandAPI) TriggerHomelink(ctx context.Context, at Coordinates) (*CommandResult, error) {
	return c.send(ctx, "trigger_homelink", coordinates(url.Values{}, at))
}

// SpeedLimitSetLimit sets the Speed Limit Mode maximum, 50 to 90 mph.
func (c *CommandAPI) SpeedLimitSetLimit(ctx context.Context, limitMPH int) (*CommandResult, error) {
	if limitMPH < 50 || limitMPH > 90 {
		return nil, apperr.Configuration("command/speed_limit_set_limit", "limit_mph must be between 50 and 90")
	}
	return c.send(ctx, "speed_limit_set_limit", url.Values{"limit_mph": {strconv.Itoa(limitMPH)}})
}

func (c *CommandAPI) SpeedLimitActivate(ctx context.Context) (*CommandResult, error) {
	return c.speedLimitPIN(ctx, "speed_limit_activate")
}

func (c *CommandAPI) SpeedLimitDeactivate(ctx context.Context) (*CommandResult, error) {
	return c.speedLimitPIN(ctx, "speed_limit_deactivate")
}

func (c *CommandAPI) SpeedLimitClearPIN(ctx context.Context) (*CommandResult, error) {
	return c.speedLimitPIN(ctx, "speed_limit_clear_pin")
}

func (c *CommandAPI) speedLimitPIN(ctx context.Context, name string) (*CommandResult, error) {
	return c.speedLimitWith(ctx, name, c.pins.SpeedLimit)
}

func (c *CommandAPI) speedLimitWith(ctx context.Context, name, pin string) (*CommandResult, error) {
	if pin == "" {
		return nil, apperr.Configuration("command/"+name, "speed limit PIN is not set")
	}
	return c.send(ctx, name, url.Values{"pin": {pin}})
}

// SetValetMode turns Valet Mode on or off. An empty pin uses the configured valet PIN.
func (c *CommandAPI) SetValetMode(ctx context.Context, on bool, pin string) (*CommandResult, error) {
	if pin == "" {
		pin = c.pins.Valet
	}
	if pin == "" {
		return nil, apperr.Configuration("command/set_valet_mode", "valet PIN is not set")
	}
	if n, err := strconv.Atoi(pin); err == nil && n >= 0 && n < 10000 {
		pin = fmt.Sprintf("%04d", n)
	} else {
		return nil, apperr.Configuration("command/set_valet_mode", "valet PIN must be 4 digits")
	}
	return c.send(ctx, "set_valet_mode", url.Values{
		"on":       {strconv.FormatBool(on)},
		"password": {pin},
	})
}

// ResetValetPIN clears the Valet Mode PIN; a new one is set from the car screen.
func (c *CommandAPI) ResetValetPIN(ctx context.Context) (*CommandResult, error) {
	return c.send(ctx, "reset_valet_pin", nil)
}

func (c *CommandAPI) SetSentryMode(ctx context.Context, on bool) (*CommandResult, error) {
	return c.send(ctx, "set_sentry_mode", url.Values{"on": {strconv.FormatBool(on)}})
}

func (c *CommandAPI) DoorUnlock(ctx context.Context) (*CommandResult, error) {
	return c.send(ctx, "door_unlock", nil)
}

func (c *CommandAPI) DoorLock(ctx context.Context) (*CommandResult, error) {
	return c.send(ctx, "door_lock", nil)
}

// ActuateTrunk opens the front or rear trunk. On S and X it also closes the rear trunk.
func (c *CommandAPI) ActuateTrunk(ctx context.Context, whichTrunk string) (*CommandResult, error) {
	if whichTrunk != "front" && whichTrunk != "rear" {
		return nil, apperr.Configuration("command/actuate_trunk", "which_trunk must be front or rear")
	}
	return c.send(ctx, "actuate_trunk", url.Values{"which_trunk": {whichTrunk}})
}

// WindowControl vents or closes all windows. A nil position uses the car's
// current location from drive_state.
func (c *CommandAPI) WindowControl(ctx context.Context, command string, at *Coordinates) (*CommandResult, error) {
	if command != "vent" && command != "close" {
		return nil, apperr.Configuration("command/window_control", "command must be vent or close")
	}
	if at == nil {
		ds, err := c.state.DriveState(ctx)
		if err != nil {
			return nil, err
		}
		at = &Coordinates{Latitude: ds.Latitude, Longitude: ds.Longitude}
	}
	return c.send(ctx, "window_control", coordinates(url.Values{"command": {command}}, *at))
}

// SunRoofControl vents or closes the panoramic sunroof.
func (c *CommandAPI) SunRoofControl(ctx context.Context, state string) (*CommandResult, error) {
	if state != "vent" && state != "close" {
		return nil, apperr.Configuration("command/sun_roof_control", "state must be vent or close")
	}
	return c.send(ctx, "sun_roof_control", url.Values{"state": {state}})
}

// ChargePortDoorOpen opens the charge port or unlocks the cable.
func (c *CommandAPI) ChargePortDoorOpen(ctx context.Context) (*CommandResult, error) {
	return c.send(ctx, "charge_port_door_open", nil)
}

func (c *CommandAPI) ChargePortDoorClose(ctx context.Context) (*CommandResult, error) {
	return c.send(ctx, "charge_port_door_close", nil)
}

func (c *CommandAPI) ChargeStart(ctx context.Context) (*CommandResult, error) {
	return c.send(ctx, "charge_start", nil)
}

func (c *CommandAPI) ChargeStop(ctx context.Context) (*CommandResult, error) {
	return c.send(ctx, "charge_stop", nil)
}

// ChargeStandard sets the charge limit to standard, about 90%.
func (c *CommandAPI) ChargeStandard(ctx context.Context) (*CommandResult, error) {
	return c.send(ctx, "charge_standard", nil)
}

func (c *CommandAPI) ChargeMaxRange(ctx context.Context) (*CommandResult, error) {
	return c.send(ctx, "charge_max_range", nil)
}

func (c *CommandAPI) SetChargeLimit(ctx context.Context, percent int) (*CommandResult, error) {
	if percent < 0 || percent > 100 {
		return nil, apperr.Configuration("command/set_charge_limit", "percent must be between 0 and 100")
	}
	return c.send(ctx, "set_charge_limit", url.Values{"percent": {strconv.Itoa(percent)}})
}

func (c *CommandAPI) SetChargingAmps(ctx context.Context, amps int) (*CommandResult, error) {
	if amps <= 0 {
		return nil, apperr.Configuration("command/set_charging_amps", "charging_amps must be positive")
	}
	return c.send(ctx, "set_charging_amps", url.Values{"charging_amps": {strconv.Itoa(amps)}})
}

// SetScheduledCharging enables or disables charging at minutes after local midnight.
func (c *CommandAPI) SetScheduledCharging(ctx context.Context, enable bool, minutes int) (*CommandResult, error) {
	if minutes < 0 || minutes >= 24*60 {
		return nil, apperr.Configuration("command/set_scheduled_charging", "time must be minutes after midnight")
	}
	return c.send(ctx, "set_scheduled_charging", url.Values{
		"enable": {strconv.FormatBool(enable)},
		"time":   {strconv.Itoa(minutes)},
	})
}

// SetScheduledDeparture configures departure preconditioning and off-peak charging.
func (c *CommandAPI) SetScheduledDeparture(ctx context.Context, d ScheduledDeparture) (*CommandResult, error) {
	departure := d.PreconditioningEnabled || d.OffPeakChargingEnabled
	// TODO: confirm against the provider whether off_peak_charging_enabled
	// should carry OffPeakChargingEnabled instead of the weekdays-only flag.
	return c.send(ctx, "set_scheduled_departure", url.Values{
		"enable":                        {strconv.FormatBool(d.Enable)},
		"departure_time":                {strconv.FormatBool(departure)},
		"preconditioning_enabled":       {strconv.FormatBool(d.PreconditioningEnabled)},
		"preconditioning_weekdays_only": {strconv.FormatBool(d.PreconditioningWeekdaysOnly)},
		"off_peak_charging_enabled":     {strconv.FormatBool(d.OffPeakChargingWeekdaysOnly)},
		"end_off_peak_time":             {strconv.Itoa(d.EndOffPeakTime)},
	})
}

// AutoConditioningStart starts the HVAC system, heating or cooling to the set temperature.
func (c *CommandAPI) AutoConditioningStart(ctx context.Context) (*CommandResult, error) {
	return c.send(ctx, "auto_conditioning_start", nil)
}

func (c *CommandAPI) AutoConditioningStop(ctx context.Context) (*CommandResult, error) {
	return c.send(ctx, "auto_conditioning_stop", nil)
}

// SetTemps sets the target temperatures in Celsius. A nil passenger
// temperature uses the driver's. The passenger value only applies with split
// climate controls.
func (c *CommandAPI) SetTemps(ctx context.Context, driver float64, passenger *float64) (*CommandResult, error) {
	p := driver
	if passenger != nil {
		p = *passenger
	}
	return c.send(ctx, "set_temps", url.Values{
		"driver_temp":    {strconv.FormatFloat(driver, 'f', -1, 64)},
		"passenger_temp": {strconv.FormatFloat(p, 'f', -1, 64)},
	})
}

// SetPreconditioningMax toggles Max Defrost.
func (c *CommandAPI) SetPreconditioningMax(ctx context.Context, on bool) (*CommandResult, error) {
	return c.send(ctx, "set_preconditioning_max", url.Values{"on": {strconv.FormatBool(on)}})
}

// RemoteSeatHeaterRequest sets a seat heater level (0-3). Heaters: 0 front
// left, 1 front right, 2 rear left, 4 rear center, 5 rear right.
func (c *CommandAPI) RemoteSeatHeaterRequest(ctx context.Context, heater, level int) (*CommandResult, error) {
	if heater < 0 || heater > 5 || heater == 3 {
		return nil, apperr.Configuration("command/remote_seat_heater_request", "unknown heater")
	}
	if level < 0 || level > 3 {
		return nil, apperr.Configuration("command/remote_seat_heater_request", "level must be between 0 and 3")
	}
	return c.send(ctx, "remote_seat_heater_request", url.Values{
		"heater": {strconv.Itoa(heater)},
		"level":  {strconv.Itoa(level)},
	})
}

func coordinates(v url.Values, at Coordinates) url.Values {
	v.Set("lat", strconv.FormatFloat(at.Latitude, 'f', -1, 64))
	v.Set("lon", strconv.FormatFloat(at.Longitude, 'f', -1, 64))
	return v
}
