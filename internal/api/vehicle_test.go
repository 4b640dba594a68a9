package api

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tesla-sdk/internal/apperr"
)

func newTestVehicle(t *testing.T, pins PINs) (*Vehicle, *fakeOwnerAPI) {
	t.Helper()
	f := newFakeOwnerAPI(t)
	v := NewVehicle(newTestConfig(f, &fakeCredentials{token: "abc"}), VehicleSummary{ID: 42, DisplayName: "Red"}, pins)
	return v, f
}

func TestVehicle_Basics(t *testing.T) {
	v, f := newTestVehicle(t, PINs{})
	assert.Equal(t, "Red", v.Name())
	assert.Equal(t, f.srv.URL+"/api/1/vehicles/42/", v.BaseURL())
	assert.Same(t, v.State, v.Command.state)
}

func TestVehicle_SetLicencePlate(t *testing.T) {
	v, _ := newTestVehicle(t, PINs{})

	require.NoError(t, v.SetLicencePlate("abc123"))
	assert.Equal(t, "ABC123", v.LicencePlate())

	for _, bad := range []string{"", "AB-123", "AB 123", "ab!"} {
		err := v.SetLicencePlate(bad)
		assert.ErrorIs(t, err, apperr.ErrConfiguration, bad)
	}
	assert.Equal(t, "ABC123", v.LicencePlate())
}

func TestStateAPI(t *testing.T) {
	v, f := newTestVehicle(t, PINs{})
	ctx := context.Background()

	calls := map[string]func(context.Context) error{
		"vehicle_data":               func(ctx context.Context) error { _, err := v.State.VehicleData(ctx); return err },
		"latest_vehicle_data":        func(ctx context.Context) error { _, err := v.State.LatestVehicleData(ctx); return err },
		"data_request/charge_state":  func(ctx context.Context) error { _, err := v.State.ChargeState(ctx); return err },
		"data_request/climate_state": func(ctx context.Context) error { _, err := v.State.ClimateState(ctx); return err },
		"data_request/gui_settings":  func(ctx context.Context) error { _, err := v.State.GUISettings(ctx); return err },
		"data_request/vehicle_state": func(ctx context.Context) error { _, err := v.State.VehicleState(ctx); return err },
		"nearby_charging_sites":      func(ctx context.Context) error { _, err := v.State.NearbyChargingSites(ctx); return err },
		"service_data":               func(ctx context.Context) error { _, err := v.State.ServiceData(ctx); return err },
	}
	for path, call := range calls {
		require.NoError(t, call(ctx), path)
		req := f.last()
		assert.Equal(t, http.MethodGet, req.Method)
		assert.Equal(t, "/api/1/vehicles/42/"+path, req.Path)
	}

	f.respond("/api/1/vehicles/42/data_request/vehicle_config", `{"car_type":"model3","exterior_color":"Red"}`)
	raw, err := v.State.Get(ctx, "vehicle_config")
	require.NoError(t, err)
	assert.JSONEq(t, `{"car_type":"model3","exterior_color":"Red"}`, string(raw))

	f.respond("/api/1/vehicles/42/mobile_enabled", `true`)
	enabled, err := v.State.MobileEnabled(ctx)
	require.NoError(t, err)
	assert.True(t, enabled)

	_, err = v.State.Get(ctx, "tyre_pressure")
	assert.ErrorIs(t, err, apperr.ErrConfiguration)
}

func TestStateAPI_DriveState(t *testing.T) {
	v, f := newTestVehicle(t, PINs{})
	f.respond("/api/1/vehicles/42/data_request/drive_state", `{"latitude":37.4925,"longitude":-121.9447,"heading":90,"speed":null,"shift_state":"P","timestamp":1700000000000}`)

	ds, err := v.State.DriveState(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 37.4925, ds.Latitude, 1e-9)
	assert.InDelta(t, -121.9447, ds.Longitude, 1e-9)
	assert.Nil(t, ds.Speed)
	require.NotNil(t, ds.ShiftState)
	assert.Equal(t, "P", *ds.ShiftState)
}

func TestStateKinds(t *testing.T) {
	kinds := StateKinds()
	assert.Contains(t, kinds, "vehicle_data")
	assert.Contains(t, kinds, "drive_state")
	assert.Len(t, kinds, 11)
	assert.IsNonDecreasing(t, kinds)
}

func TestCommandAPI_Endpoints(t *testing.T) {
	v, f := newTestVehicle(t, PINs{})
	c := v.Command
	ctx := context.Background()

	passenger := 21.0
	tests := []struct {
		path  string
		call  func() (*CommandResult, error)
		query url.Values
	}{
		{"honk_horn", func() (*CommandResult, error) { return c.HonkHorn(ctx) }, url.Values{}},
		{"flash_lights", func() (*CommandResult, error) { return c.FlashLights(ctx) }, url.Values{}},
		{"remote_start_drive", func() (*CommandResult, error) { return c.RemoteStartDrive(ctx) }, url.Values{}},
		{"trigger_homelink", func() (*CommandResult, error) {
			return c.TriggerHomelink(ctx, Coordinates{Latitude: 52.52, Longitude: 13.405})
		}, url.Values{"lat": {"52.52"}, "lon": {"13.405"}}},
		{"speed_limit_set_limit", func() (*CommandResult, error) { return c.SpeedLimitSetLimit(ctx, 65) }, url.Values{"limit_mph": {"65"}}},
		{"reset_valet_pin", func() (*CommandResult, error) { return c.ResetValetPIN(ctx) }, url.Values{}},
		{"set_sentry_mode", func() (*CommandResult, error) { return c.SetSentryMode(ctx, true) }, url.Values{"on": {"true"}}},
		{"door_unlock", func() (*CommandResult, error) { return c.DoorUnlock(ctx) }, url.Values{}},
		{"door_lock", func() (*CommandResult, error) { return c.DoorLock(ctx) }, url.Values{}},
		{"actuate_trunk", func() (*CommandResult, error) { return c.ActuateTrunk(ctx, "front") }, url.Values{"which_trunk": {"front"}}},
		{"sun_roof_control", func() (*CommandResult, error) { return c.SunRoofControl(ctx, "vent") }, url.Values{"state": {"vent"}}},
		{"charge_port_door_open", func() (*CommandResult, error) { return c.ChargePortDoorOpen(ctx) }, url.Values{}},
		{"charge_port_door_close", func() (*CommandResult, error) { return c.ChargePortDoorClose(ctx) }, url.Values{}},
		{"charge_start", func() (*CommandResult, error) { return c.ChargeStart(ctx) }, url.Values{}},
		{"charge_stop", func() (*CommandResult, error) { return c.ChargeStop(ctx) }, url.Values{}},
		{"charge_standard", func() (*CommandResult, error) { return c.ChargeStandard(ctx) }, url.Values{}},
		{"charge_max_range", func() (*CommandResult, error) { return c.ChargeMaxRange(ctx) }, url.Values{}},
		{"set_charge_limit", func() (*CommandResult, error) { return c.SetChargeLimit(ctx, 80) }, url.Values{"percent": {"80"}}},
		{"set_charging_amps", func() (*CommandResult, error) { return c.SetChargingAmps(ctx, 16) }, url.Values{"charging_amps": {"16"}}},
		{"set_scheduled_charging", func() (*CommandResult, error) { return c.SetScheduledCharging(ctx, true, 120) }, url.Values{"enable": {"true"}, "time": {"120"}}},
		{"auto_conditioning_start", func() (*CommandResult, error) { return c.AutoConditioningStart(ctx) }, url.Values{}},
		{"auto_conditioning_stop", func() (*CommandResult, error) { return c.AutoConditioningStop(ctx) }, url.Values{}},
		{"set_temps", func() (*CommandResult, error) { return c.SetTemps(ctx, 20.5, &passenger) }, url.Values{"driver_temp": {"20.5"}, "passenger_temp": {"21"}}},
		{"set_preconditioning_max", func() (*CommandResult, error) { return c.SetPreconditioningMax(ctx, false) }, url.Values{"on": {"false"}}},
		{"remote_seat_heater_request", func() (*CommandResult, error) { return c.RemoteSeatHeaterRequest(ctx, 4, 2) }, url.Values{"heater": {"4"}, "level": {"2"}}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			res, err := tt.call()
			require.NoError(t, err)
			assert.True(t, res.Result)

			req := f.last()
			assert.Equal(t, http.MethodPost, req.Method)
			assert.Equal(t, "/api/1/vehicles/42/command/"+tt.path, req.Path)
			assert.Equal(t, tt.query, req.Query)
			assert.Equal(t, "Bearer abc", req.Header.Get("Authorization"))
		})
	}
}

func TestCommandAPI_WakeUp(t *testing.T) {
	v, f := newTestVehicle(t, PINs{})
	f.respond("/api/1/vehicles/42/wake_up", `{"id":42,"display_name":"Red","state":"online"}`)

	got, err := v.Command.WakeUp(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "online", got.State)
	assert.Equal(t, "/api/1/vehicles/42/wake_up", f.last().Path)
}

func TestCommandAPI_FailedResultIsReturned(t *testing.T) {
	v, f := newTestVehicle(t, PINs{})
	f.respond("/api/1/vehicles/42/command/door_lock", `{"result":false,"reason":"vehicle unavailable"}`)

	res, err := v.Command.DoorLock(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Result)
	assert.Equal(t, "vehicle unavailable", res.Reason)
}

func TestCommandAPI_PINs(t *testing.T) {
	ctx := context.Background()

	v, f := newTestVehicle(t, PINs{})
	before := f.count()
	_, err := v.Command.SpeedLimitActivate(ctx)
	assert.ErrorIs(t, err, apperr.ErrConfiguration)
	_, err = v.Command.SetValetMode(ctx, true, "")
	assert.ErrorIs(t, err, apperr.ErrConfiguration)
	assert.Equal(t, before, f.count(), "no request without a PIN")

	v, f = newTestVehicle(t, PINs{SpeedLimit: "1234", Valet: "42"})
	for _, call := range []func(context.Context) (*CommandResult, error){
		v.Command.SpeedLimitActivate,
		v.Command.SpeedLimitDeactivate,
		v.Command.SpeedLimitClearPIN,
	} {
		_, err := call(ctx)
		require.NoError(t, err)
		assert.Equal(t, "1234", f.last().Query.Get("pin"))
	}

	_, err = v.Command.SetValetMode(ctx, true, "")
	require.NoError(t, err)
	assert.Equal(t, url.Values{"on": {"true"}, "password": {"0042"}}, f.last().Query)

	_, err = v.Command.SetValetMode(ctx, false, "7")
	require.NoError(t, err)
	assert.Equal(t, url.Values{"on": {"false"}, "password": {"0007"}}, f.last().Query)

	_, err = v.Command.SetValetMode(ctx, true, "12345")
	assert.ErrorIs(t, err, apperr.ErrConfiguration)
}

func TestCommandAPI_WindowControlUsesDriveState(t *testing.T) {
	v, f := newTestVehicle(t, PINs{})
	f.respond("/api/1/vehicles/42/data_request/drive_state", `{"latitude":37.5,"longitude":-122.25}`)
	ctx := context.Background()

	_, err := v.Command.WindowControl(ctx, "vent", nil)
	require.NoError(t, err)
	req := f.last()
	assert.Equal(t, "/api/1/vehicles/42/command/window_control", req.Path)
	assert.Equal(t, url.Values{"command": {"vent"}, "lat": {"37.5"}, "lon": {"-122.25"}}, req.Query)
	assert.Equal(t, 2, f.count())

	_, err = v.Command.WindowControl(ctx, "close", &Coordinates{Latitude: 1, Longitude: 2})
	require.NoError(t, err)
	assert.Equal(t, url.Values{"command": {"close"}, "lat": {"1"}, "lon": {"2"}}, f.last().Query)
	assert.Equal(t, 3, f.count())
}

func TestCommandAPI_ScheduledDeparture(t *testing.T) {
	v, f := newTestVehicle(t, PINs{})

	_, err := v.Command.SetScheduledDeparture(context.Background(), ScheduledDeparture{
		Enable:                      true,
		PreconditioningEnabled:      false,
		OffPeakChargingEnabled:      true,
		OffPeakChargingWeekdaysOnly: false,
		EndOffPeakTime:              360,
	})
	require.NoError(t, err)

	q := f.last().Query
	assert.Equal(t, "true", q.Get("enable"))
	assert.Equal(t, "true", q.Get("departure_time"))
	assert.Equal(t, "false", q.Get("preconditioning_enabled"))
	assert.Equal(t, "false", q.Get("off_peak_charging_enabled"))
	assert.Equal(t, "360", q.Get("end_off_peak_time"))
}

func TestCommandAPI_ArgumentValidation(t *testing.T) {
	v, f := newTestVehicle(t, PINs{})
	c := v.Command
	ctx := context.Background()

	calls := map[string]func() (*CommandResult, error){
		"speed limit":  func() (*CommandResult, error) { return c.SpeedLimitSetLimit(ctx, 120) },
		"trunk":        func() (*CommandResult, error) { return c.ActuateTrunk(ctx, "side") },
		"window":       func() (*CommandResult, error) { return c.WindowControl(ctx, "open", nil) },
		"sunroof":      func() (*CommandResult, error) { return c.SunRoofControl(ctx, "open") },
		"charge limit": func() (*CommandResult, error) { return c.SetChargeLimit(ctx, 101) },
		"amps":         func() (*CommandResult, error) { return c.SetChargingAmps(ctx, 0) },
		"schedule":     func() (*CommandResult, error) { return c.SetScheduledCharging(ctx, true, 1440) },
		"heater":       func() (*CommandResult, error) { return c.RemoteSeatHeaterRequest(ctx, 3, 1) },
		"heat level":   func() (*CommandResult, error) { return c.RemoteSeatHeaterRequest(ctx, 0, 4) },
		"send name":    func() (*CommandResult, error) { return c.Send(ctx, "../users/me", nil) },
	}
	for name, call := range calls {
		_, err := call()
		assert.ErrorIs(t, err, apperr.ErrConfiguration, name)
	}
	assert.Zero(t, f.count())
}

func TestCommandAPI_SendChecksArguments(t *testing.T) {
	ctx := context.Background()

	v, f := newTestVehicle(t, PINs{})
	for name, params := range map[string]url.Values{
		"speed_limit_activate":       nil,
		"set_valet_mode":             {"on": {"true"}},
		"set_charge_limit":           {"percent": {"150"}},
		"set_charging_amps":          {"charging_amps": {"many"}},
		"set_sentry_mode":            {},
		"trigger_homelink":           {"lat": {"52.5"}},
		"remote_seat_heater_request": {"heater": {"3"}, "level": {"1"}},
	} {
		_, err := v.Command.Send(ctx, name, params)
		assert.ErrorIs(t, err, apperr.ErrConfiguration, name)
	}
	assert.Zero(t, f.count())

	v, f = newTestVehicle(t, PINs{SpeedLimit: "1234", Valet: "42"})
	f.respond("/api/1/vehicles/42/data_request/drive_state", `{"latitude":37.5,"longitude":-122.25}`)

	tests := []struct {
		name   string
		params url.Values
		want   url.Values
	}{
		{"speed_limit_activate", nil, url.Values{"pin": {"1234"}}},
		{"speed_limit_clear_pin", url.Values{"pin": {"9999"}}, url.Values{"pin": {"9999"}}},
		{"set_valet_mode", url.Values{"on": {"true"}}, url.Values{"on": {"true"}, "password": {"0042"}}},
		{"set_charge_limit", url.Values{"percent": {"80"}}, url.Values{"percent": {"80"}}},
		{"set_temps", url.Values{"driver_temp": {"21.5"}}, url.Values{"driver_temp": {"21.5"}, "passenger_temp": {"21.5"}}},
		{"window_control", url.Values{"command": {"vent"}}, url.Values{"command": {"vent"}, "lat": {"37.5"}, "lon": {"-122.25"}}},
		{"honk_horn", nil, url.Values{}},
		{"set_scheduled_departure", url.Values{"enable": {"false"}}, url.Values{"enable": {"false"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := v.Command.Send(ctx, tt.name, tt.params)
			require.NoError(t, err)
			assert.True(t, res.Result)

			req := f.last()
			assert.Equal(t, "/api/1/vehicles/42/command/"+tt.name, req.Path)
			assert.Equal(t, tt.want, req.Query)
		})
	}
}
