// Package config reads process configuration from the environment.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/ovaphlow/pitchfork/service-audit-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-audit-go/pkg/utilities"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Env             string
	HTTPAddr        string
	Prefix          string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MetricsEnabled  bool
	StorageDriver   string
	BcryptCost      int
	NodeID          int64

	JWTSecret []byte
	JWTIssuer string
	JWTTTL    time.Duration

	// EphemeralSecret is set when no JWT_SECRET was given in development and
	// one was generated; tokens will not survive a restart.
	EphemeralSecret bool
}

// FromEnv reads HTTP_*, STORAGE_DRIVER, JWT_* and friends. JWT_SECRET is
// mandatory unless APP_ENV=development.
func FromEnv() (Config, error) {
	c := Config{
		Env:             utilities.String("APP_ENV", "production"),
		HTTPAddr:        utilities.String("HTTP_ADDR", "0.0.0.0:8431"),
		Prefix:          NormalizePrefix(utilities.String("HTTP_PREFIX", "/api")),
		ReadTimeout:     utilities.Duration("HTTP_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:    utilities.Duration("HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     utilities.Duration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: utilities.Duration("HTTP_SHUTDOWN_TIMEOUT", 5*time.Second),
		MetricsEnabled:  utilities.Bool("METRICS_ENABLED", true),
		StorageDriver:   strings.ToLower(utilities.String("STORAGE_DRIVER", DriverPostgres)),
		BcryptCost:      utilities.Int("BCRYPT_COST", 12),
		NodeID:          int64(utilities.Int("SNOWFLAKE_NODE", 1)),
		JWTSecret:       []byte(utilities.String("JWT_SECRET", "")),
		JWTIssuer:       utilities.String("JWT_ISSUER", "service-audit-go"),
		JWTTTL:          utilities.Duration("JWT_TTL", auth.DefaultTTL),
	}
	if len(c.JWTSecret) == 0 && c.Env == "development" {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return Config{}, err
		}
		c.JWTSecret = []byte(hex.EncodeToString(b))
		c.EphemeralSecret = true
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.HTTPAddr, validation.Required),
		validation.Field(&c.StorageDriver, validation.Required, validation.In(DriverPostgres, DriverMemory)),
		validation.Field(&c.JWTSecret, validation.Required.Error("JWT_SECRET is required outside development")),
		validation.Field(&c.JWTIssuer, validation.Required),
		validation.Field(&c.JWTTTL, validation.Min(time.Second)),
		validation.Field(&c.BcryptCost, validation.Min(4), validation.Max(31)),
		validation.Field(&c.NodeID, validation.Min(int64(0)), validation.Max(int64(1023))),
		validation.Field(&c.Prefix, validation.By(func(v interface{}) error {
			if p, _ := v.(string); p != "" && !strings.HasPrefix(p, "/") {
				return errors.New("must start with /")
			}
			return nil
		})),
	)
}

// NormalizePrefix strips surrounding whitespace and trailing slashes; "/"
// becomes the empty prefix.
func NormalizePrefix(p string) string {
	return strings.TrimRight(strings.TrimSpace(p), "/")
}
