package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"linkup/internal/bridge"
	"linkup/internal/cache"
	"linkup/internal/client"
	"linkup/internal/config"
	"linkup/internal/domain"
	"linkup/internal/inventory"
)

// Session is the assembled client runtime: config, API client, the
// shared query cache, and the mutation bridge on top of it.
type Session struct {
	Config *config.Config
	Client *client.Client
	Cache  *cache.Memory
	Bridge *bridge.Bridge
	Me     domain.User
}

// Options override config values from flags or environment.
type Options struct {
	Workspace string
	BaseURL   string
	Token     string
	Logger    *slog.Logger
	Notify    func(bridge.Notice)
}

// NewSession loads config, authenticates against the API, and wires the
// cache and bridge for the current user.
func NewSession(ctx context.Context, opts Options) (*Session, error) {
	cfg, err := config.LoadOptional(opts.Workspace)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if opts.BaseURL != "" {
		cfg.API.BaseURL = opts.BaseURL
	}
	if opts.Token != "" {
		cfg.API.Token = opts.Token
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.API.Token == "" {
		return nil, fmt.Errorf("no API token configured; run lk login first")
	}

	c := client.New(cfg.API.BaseURL)
	c.BearerToken = cfg.API.Token
	if cfg.API.TimeoutSeconds > 0 {
		c.Timeout = time.Duration(cfg.API.TimeoutSeconds) * time.Second
	}
	me, err := c.Me(ctx)
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	mem := cache.NewMemory()
	br := bridge.New(bridge.Config{
		API:           c,
		Cache:         mem,
		Logger:        opts.Logger,
		Notify:        opts.Notify,
		CurrentUserID: me.ID,
	})
	return &Session{
		Config: cfg,
		Client: c,
		Cache:  mem,
		Bridge: br,
		Me:     me,
	}, nil
}

// RefreshCatalogs primes the catalog cache from the API.
func (s *Session) RefreshCatalogs(ctx context.Context) (domain.Catalogs, error) {
	if cat, ok := cache.Lookup[domain.Catalogs](s.Cache, cache.KeyCatalogs); ok {
		return cat, nil
	}
	events, err := s.Client.Events(ctx)
	if err != nil {
		return domain.Catalogs{}, err
	}
	cases, err := s.Client.Cases(ctx)
	if err != nil {
		return domain.Catalogs{}, err
	}
	cat := domain.Catalogs{Events: events, Cases: cases}
	s.Cache.Set(cache.KeyCatalogs, cat)
	return cat, nil
}

// Inventory fetches a user's inventory through the cache.
func (s *Session) Inventory(ctx context.Context, userID int64) ([]domain.InventoryEntry, error) {
	key := cache.InventoryKey(userID)
	if entries, ok := cache.Lookup[[]domain.InventoryEntry](s.Cache, key); ok {
		return entries, nil
	}
	entries, err := s.Client.UserInventory(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.Cache.Set(key, entries)
	return entries, nil
}

// GroupedInventory returns a user's inventory stacked for display.
func (s *Session) GroupedInventory(ctx context.Context, userID int64) ([]domain.GroupedItem, error) {
	entries, err := s.Inventory(ctx, userID)
	if err != nil {
		return nil, err
	}
	return inventory.Group(entries), nil
}

// Users fetches the user directory through the cache.
func (s *Session) Users(ctx context.Context) ([]domain.User, error) {
	if users, ok := cache.Lookup[[]domain.User](s.Cache, cache.KeyUsers); ok {
		return users, nil
	}
	users, err := s.Client.Users(ctx)
	if err != nil {
		return nil, err
	}
	s.Cache.Set(cache.KeyUsers, users)
	return users, nil
}

// Friends fetches the current user's friends through the cache.
func (s *Session) Friends(ctx context.Context) ([]domain.User, error) {
	if friends, ok := cache.Lookup[[]domain.User](s.Cache, cache.KeyFriends); ok {
		return friends, nil
	}
	friends, err := s.Client.Friends(ctx)
	if err != nil {
		return nil, err
	}
	s.Cache.Set(cache.KeyFriends, friends)
	return friends, nil
}

// Meetings fetches the meeting list through the cache.
func (s *Session) Meetings(ctx context.Context) ([]domain.Meeting, error) {
	if meets, ok := cache.Lookup[[]domain.Meeting](s.Cache, cache.KeyMeetings); ok {
		return meets, nil
	}
	meets, err := s.Client.Meetings(ctx)
	if err != nil {
		return nil, err
	}
	s.Cache.Set(cache.KeyMeetings, meets)
	return meets, nil
}

// Requests fetches pending requests and invites through the cache.
func (s *Session) Requests(ctx context.Context) ([]domain.RequestItem, error) {
	if reqs, ok := cache.Lookup[[]domain.RequestItem](s.Cache, cache.KeyRequests); ok {
		return reqs, nil
	}
	reqs, err := s.Client.Requests(ctx)
	if err != nil {
		return nil, err
	}
	s.Cache.Set(cache.KeyRequests, reqs)
	return reqs, nil
}

// Trades fetches the current user's trades through the cache.
func (s *Session) Trades(ctx context.Context) ([]domain.Trade, error) {
	if trades, ok := cache.Lookup[[]domain.Trade](s.Cache, cache.KeyMyTrades); ok {
		return trades, nil
	}
	trades, err := s.Client.MyTrades(ctx)
	if err != nil {
		return nil, err
	}
	s.Cache.Set(cache.KeyMyTrades, trades)
	return trades, nil
}

// Close flushes in-flight mutations before the process exits.
func (s *Session) Close() {
	s.Bridge.Flush()
}
