package biz

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/spf13/afero"

	"tesla-sdk/internal/api"
	"tesla-sdk/internal/apperr"
	"tesla-sdk/internal/auth"
	"tesla-sdk/internal/conf"
	"tesla-sdk/internal/data"
)

// Client is the SDK entry point. It owns the session of one account and the
// wrappers of its vehicles.
type Client struct {
	cfg     *conf.Config
	logger  *slog.Logger
	cache   *data.FileCache
	session *auth.Session
	apiCfg  api.Config
	account *api.AccountAPI

	mu       sync.Mutex
	vehicles map[string]*api.Vehicle
}

type options struct {
	httpClient  *http.Client
	fs          afero.Fs
	sessionOpts []auth.Option
}

// Option configures a Client.
type Option func(*options)

// WithHTTPClient replaces the HTTP client built from the config.
func WithHTTPClient(c *http.Client) Option { return func(o *options) { o.httpClient = c } }

// WithFs sets the filesystem holding the token cache.
func WithFs(fs afero.Fs) Option { return func(o *options) { o.fs = fs } }

// WithSessionOptions passes extra options to the auth session.
func WithSessionOptions(opts ...auth.Option) Option {
	return func(o *options) { o.sessionOpts = append(o.sessionOpts, opts...) }
}

// NewClient wires a client from cfg. Nothing is sent until Login.
func NewClient(cfg *conf.Config, logger *slog.Logger, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, apperr.Configuration("new client", "config is not set")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	o := options{fs: afero.NewOsFs()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = newHTTPClient(cfg.HTTP)
	}

	c := &Client{
		cfg:      cfg,
		logger:   logger,
		cache:    data.NewFileCache(o.fs, cfg.CachePath(), logger),
		vehicles: make(map[string]*api.Vehicle),
	}

	authClient := auth.NewClient(auth.ClientConfig{
		RedirectURL: cfg.SSO.RedirectURL,
		Scopes:      cfg.SSO.Scopes,
		HTTPClient:  o.httpClient,
	})
	sessionOpts := append([]auth.Option{
		auth.WithClient(authClient),
		auth.WithCache(c.cache),
		auth.WithSSOBaseURL(cfg.SSO.BaseURL),
		auth.WithLogger(logger),
		auth.WithAuthorizedHook(func(ctx context.Context, _ auth.Token) error {
			return c.populate(ctx)
		}),
	}, o.sessionOpts...)
	session, err := auth.NewSession(cfg.Email, sessionOpts...)
	if err != nil {
		return nil, err
	}
	c.session = session

	c.apiCfg = api.Config{
		Requester:   data.NewClient(o.httpClient, logger),
		Credentials: session,
		BaseURL:     cfg.API.BaseURL,
		Headers:     api.DefaultHeaders(cfg.API.UserAgent, cfg.API.AppUserAgent),
	}
	c.account = api.NewAccountAPI(c.apiCfg)
	return c, nil
}

func newHTTPClient(cfg conf.HTTP) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	return &http.Client{Timeout: cfg.Timeout, Transport: transport}
}

// Session returns the auth session.
func (c *Client) Session() *auth.Session { return c.session }

// Account returns the account-level endpoints.
func (c *Client) Account() *api.AccountAPI { return c.account }

// CachePath returns the token cache file.
func (c *Client) CachePath() string { return c.cache.Path() }

// Login signs in from the cache, refreshing an expired token. Without a usable
// cached token it runs the authorization flow through a. On success the
// vehicle list is loaded.
func (c *Client) Login(ctx context.Context, a auth.Authenticator) error {
	if err := c.session.Login(ctx); err != nil {
		return err
	}

	if c.session.State() == auth.StateAuthorizing {
		if a == nil {
			return apperr.Configuration("login", "authorization required and no authenticator set")
		}
		redirectURL, err := c.session.Authenticate(ctx, a)
		if err != nil {
			return err
		}
		// the authorized hook loads the vehicles
		_, err = c.session.FetchToken(ctx, redirectURL)
		return err
	}
	return c.populate(ctx)
}

// Refresh forces a token refresh.
func (c *Client) Refresh(ctx context.Context) (auth.Token, error) {
	return c.session.RefreshToken(ctx, "")
}

// Logout signs out and forgets the vehicles. See auth.Session.Logout.
func (c *Client) Logout(ctx context.Context, signOut bool) (string, error) {
	c.mu.Lock()
	c.vehicles = make(map[string]*api.Vehicle)
	c.mu.Unlock()
	return c.session.Logout(ctx, signOut)
}

// Vehicles returns the account's vehicles ordered by name.
func (c *Client) Vehicles() []*api.Vehicle {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*api.Vehicle, 0, len(c.vehicles))
	for _, v := range c.vehicles {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Vehicle looks a vehicle up by display name, falling back to its id.
func (c *Client) Vehicle(name string) (*api.Vehicle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.vehicles[name]; ok {
		return v, nil
	}
	for _, v := range c.vehicles {
		if v.Summary.IDS == name || v.Summary.VIN == name {
			return v, nil
		}
	}
	return nil, apperr.Configuration("vehicle", fmt.Sprintf("no vehicle named %q", name))
}

// Energy returns the endpoints of one energy site.
func (c *Client) Energy(siteID string) *api.EnergyAPI {
	return api.NewEnergyAPI(c.apiCfg, siteID)
}

// populate reloads the vehicle list.
func (c *Client) populate(ctx context.Context) error {
	summaries, err := c.account.Vehicles(ctx)
	if err != nil {
		return err
	}

	pins := api.PINs{SpeedLimit: c.cfg.Vehicle.SpeedLimitPIN, Valet: c.cfg.Vehicle.ValetPIN}
	vehicles := make(map[string]*api.Vehicle, len(summaries))
	for _, s := range summaries {
		name := s.DisplayName
		if name == "" {
			name = s.IDS
		}
		if _, dup := vehicles[name]; dup {
			c.logger.Warn("duplicate vehicle name, keeping the first", "name", name, "id", s.IDS)
			continue
		}
		vehicles[name] = api.NewVehicle(c.apiCfg, s, pins)
	}

	c.mu.Lock()
	c.vehicles = vehicles
	c.mu.Unlock()
	c.logger.Debug("vehicles loaded", "count", len(vehicles))
	return nil
}
