package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreFirestore = "firestore"
	StoreSQLite    = "sqlite"
)

// Config is the server configuration, read from the environment.
type Config struct {
	Port            string
	Store           string
	ProjectID       string
	SQLitePath      string
	JWTSecret       string
	JWTIssuer       string
	TokenTTL        time.Duration
	DevSignIn       bool
	LineSecret      string
	LineToken       string
	ShutdownTimeout time.Duration
}

// LineEnabled reports whether the chat webhook has credentials.
func (c Config) LineEnabled() bool {
	return c.LineSecret != "" && c.LineToken != ""
}

// Load reads a .env file when present and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Port:       withDefault(getenv("PORT"), "8080"),
		Store:      withDefault(getenv("TASK_STORE"), StoreSQLite),
		ProjectID:  getenv("GOOGLE_CLOUD_PROJECT"),
		SQLitePath: withDefault(getenv("SQLITE_PATH"), "tasks.db"),
		JWTSecret:  getenv("JWT_SECRET"),
		JWTIssuer:  withDefault(getenv("JWT_ISSUER"), "taskboard"),
		LineSecret: getenv("LINE_CHANNEL_SECRET"),
		LineToken:  getenv("LINE_CHANNEL_TOKEN"),
	}

	var err error
	if cfg.TokenTTL, err = parseDuration(getenv("JWT_TTL"), 24*time.Hour); err != nil {
		return Config{}, fmt.Errorf("JWT_TTL: %w", err)
	}
	if cfg.ShutdownTimeout, err = parseDuration(getenv("SHUTDOWN_TIMEOUT"), 10*time.Second); err != nil {
		return Config{}, fmt.Errorf("SHUTDOWN_TIMEOUT: %w", err)
	}
	if v := getenv("DEV_SIGNIN"); v != "" {
		if cfg.DevSignIn, err = strconv.ParseBool(v); err != nil {
			return Config{}, fmt.Errorf("DEV_SIGNIN: %w", err)
		}
	}

	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET environment variable is required")
	}
	switch cfg.Store {
	case StoreFirestore:
		if cfg.ProjectID == "" {
			return Config{}, errors.New("GOOGLE_CLOUD_PROJECT environment variable is required for the firestore store")
		}
	case StoreSQLite:
	default:
		return Config{}, fmt.Errorf("TASK_STORE must be %q or %q, got %q", StoreFirestore, StoreSQLite, cfg.Store)
	}

	return cfg, nil
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func parseDuration(v string, def time.Duration) (time.Duration, error) {
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, errors.New("must be positive")
	}
	return d, nil
}
