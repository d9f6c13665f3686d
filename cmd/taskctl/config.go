package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"github.com/ytakahashi/taskboard/internal/client"
	"github.com/ytakahashi/taskboard/internal/filter"
	"github.com/ytakahashi/taskboard/internal/session"
	"github.com/ytakahashi/taskboard/internal/store"
)

const (
	keyServer     = "server"
	keyToken      = "token"
	keySession    = "session"
	keySessionDir = "session-dir"
	keyRedis      = "redis"
)

const listingKey = "last_listing"

// app carries the settings shared by every command.
type app struct {
	v          *viper.Viper
	configPath string
}

func newApp() *app {
	v := viper.New()
	v.SetDefault(keyServer, "http://localhost:8080")
	// One guest session per terminal: the shell that launched us.
	v.SetDefault(keySession, strconv.Itoa(os.Getppid()))
	v.SetDefault(keySessionDir, filepath.Join(os.TempDir(), "taskctl"))
	v.SetEnvPrefix("TASKCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return &app{v: v}
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".taskctl.yaml")
}

// loadConfig merges the YAML config file, if there is one, under the
// environment and flags.
func (a *app) loadConfig() error {
	if a.configPath == "" {
		a.configPath = defaultConfigPath()
	}
	if a.configPath == "" {
		return nil
	}
	if _, err := os.Stat(a.configPath); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	a.v.SetConfigFile(a.configPath)
	a.v.SetConfigType("yaml")
	if err := a.v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config %s: %w", a.configPath, err)
	}
	return nil
}

// saveToken writes the token into the config file, keeping whatever else the
// file already holds.
func (a *app) saveToken(token string) error {
	if a.configPath == "" {
		return errors.New("no config file location; set --config")
	}

	w := viper.New()
	w.SetConfigFile(a.configPath)
	w.SetConfigType("yaml")
	if _, err := os.Stat(a.configPath); err == nil {
		if err := w.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", a.configPath, err)
		}
	}
	w.Set(keyToken, token)
	if err := w.WriteConfigAs(a.configPath); err != nil {
		return fmt.Errorf("failed to write config %s: %w", a.configPath, err)
	}
	a.v.Set(keyToken, token)
	return nil
}

func (a *app) client() *client.Client {
	return client.New(a.v.GetString(keyServer), client.WithToken(a.v.GetString(keyToken)))
}

// guestStorage opens the storage backing a guest session: Redis when an
// address is configured, a per-session directory otherwise.
func (a *app) guestStorage(ctx context.Context) (session.Storage, func(), error) {
	sessionID := a.v.GetString(keySession)

	if addr := a.v.GetString(keyRedis); addr != "" {
		cfg := session.DefaultRedisConfig()
		cfg.Addr = addr
		rs := session.NewRedisStorage(redis.NewClient(&redis.Options{Addr: cfg.Addr}), cfg.Prefix, sessionID, cfg.TTL)
		if err := rs.Ping(ctx); err != nil {
			rs.Close()
			return nil, nil, fmt.Errorf("failed to reach redis at %s: %w", addr, err)
		}
		return rs, func() { rs.Close() }, nil
	}

	fs, err := session.NewFileStorage(a.v.GetString(keySessionDir), sessionID)
	if err != nil {
		return nil, nil, err
	}
	return fs, func() {}, nil
}

// terminal is one invocation's view of the task collection.
type terminal struct {
	store   *store.Store
	storage session.Storage
	close   func()
}

// openTerminal builds and loads the store for the configured identity. The
// session storage is opened in both modes; it also remembers the last listing.
func (a *app) openTerminal(ctx context.Context) (*terminal, error) {
	storage, closeFn, err := a.guestStorage(ctx)
	if err != nil {
		return nil, err
	}

	c := a.client()
	s := store.New(store.ForIdentity(c, session.NewGuestAdapter(storage)))
	if err := s.Load(ctx); err != nil {
		closeFn()
		if errors.Is(err, client.ErrUnauthorized) {
			return nil, errors.New("session expired, run `taskctl login` again")
		}
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}
	return &terminal{store: s, storage: storage, close: closeFn}, nil
}

// rememberListing records the filter of the list just printed, so numbers
// given to later commands refer to the same rows.
func (term *terminal) rememberListing(ctx context.Context, f filter.Filter) error {
	if f.IsZero() {
		return term.storage.RemoveItem(ctx, listingKey)
	}
	return term.storage.SetItem(ctx, listingKey, f.Query().Encode())
}

// listing returns the filter of the last printed list, or the zero filter.
func (term *terminal) listing(ctx context.Context) (filter.Filter, error) {
	raw, ok, err := term.storage.GetItem(ctx, listingKey)
	if err != nil || !ok {
		return filter.Filter{}, err
	}
	q, err := url.ParseQuery(raw)
	if err != nil {
		return filter.Filter{}, nil
	}
	f, err := filter.ParseQuery(q)
	if err != nil {
		return filter.Filter{}, nil
	}
	return f, nil
}
