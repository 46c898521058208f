// Package config loads runtime configuration from the environment. A .env
// file in the working directory is read first when present.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the core runtime settings. Feature-specific settings live in
// their own structs (CacheConfig, RateLimitConfig, CalendarConfig, ...).
type Config struct {
	Env            string // APP_ENV: dev, test or prod
	Port           string // APP_PORT
	DBUser         string
	DBPass         string // may be empty
	DBHost         string
	DBPort         string
	DBName         string
	DBMigrate      bool   // run schema migrations at startup
	JWTSecret      string // signs access tokens and OAuth state
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int
	AMQPURL        string   // empty disables the RabbitMQ bridge
	EventQueue     string   // durable queue receiving reservation events
	ActivityLog    string   // file the event consumer appends to
	CORSOrigins    []string // allowed browser origins
}

// LoadDotEnv reads .env into the process environment. Variables already set
// win over the file. A missing file is not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// Load reads the core settings. Every missing or malformed required
// variable is reported in the returned error.
func Load() (Config, error) {
	r := &reader{}
	cfg := Config{
		Env:            envStr("APP_ENV", "dev"),
		Port:           envStr("APP_PORT", "8080"),
		DBUser:         r.must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         r.must("DB_HOST"),
		DBPort:         envStr("DB_PORT", "3306"),
		DBName:         r.must("DB_NAME"),
		DBMigrate:      envBool("DB_MIGRATE", false),
		JWTSecret:      r.must("JWT_SECRET"),
		AccessTTLMin:   r.mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: r.mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     envInt("BCRYPT_COST", 12),
		AMQPURL:        firstEnv("RABBITMQ_URL", "AMQP_URL"),
		EventQueue:     envStr("EVENT_QUEUE", "reservation.events"),
		ActivityLog:    envStr("ACTIVITY_LOG", "logs/activity.log"),
		CORSOrigins:    splitList(envStr("CORS_ORIGINS", "*")),
	}
	if err := errors.Join(r.errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsDev reports whether the service runs in a development environment.
func (c Config) IsDev() bool {
	return c.Env == "dev" || c.Env == "development" || c.Env == "local"
}

type reader struct {
	errs []error
}

// must retrieves a required variable, recording an error when it is unset.
func (r *reader) must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		r.errs = append(r.errs, fmt.Errorf("missing required env var: %s", key))
	}
	return v
}

// mustInt is like must but also requires an integer value.
func (r *reader) mustInt(key string) int {
	s := r.must(key)
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid int for %s: %q", key, s))
	}
	return n
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
