// Package config loads agent configuration from a YAML file, an optional
// .env file and TRIP_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	apperrors "github.com/kimhsiao/tripplanner/backend/internal/errors"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Cache   CacheConfig   `yaml:"cache"`
	Sync    SyncConfig    `yaml:"sync"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type ServerConfig struct {
	// Local address the agent listens on
	ListenAddr string `yaml:"listen_addr" env:"TRIP_LISTEN_ADDR" validate:"required"`
	// Trip planner server origin
	Origin string `yaml:"origin" env:"TRIP_ORIGIN" validate:"required,url"`
	// Bearer token sent with sync requests
	APIToken   string        `yaml:"api_token" env:"TRIP_API_TOKEN"`
	APITimeout time.Duration `yaml:"api_timeout" env:"TRIP_API_TIMEOUT" validate:"gt=0"`
}

type StorageConfig struct {
	Driver        string `yaml:"driver" env:"TRIP_STORAGE_DRIVER" validate:"oneof=sqlite redis memory"`
	DataDir       string `yaml:"data_dir" env:"TRIP_DATA_DIR" validate:"required_if=Driver sqlite"`
	RedisHost     string `yaml:"redis_host" env:"TRIP_REDIS_HOST" validate:"required_if=Driver redis"`
	RedisPort     int    `yaml:"redis_port" env:"TRIP_REDIS_PORT" validate:"gte=0,lte=65535"`
	RedisPassword string `yaml:"redis_password" env:"TRIP_REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" env:"TRIP_REDIS_DB" validate:"gte=0"`
}

type CacheConfig struct {
	Prefix        string   `yaml:"prefix" env:"TRIP_CACHE_PREFIX" validate:"required"`
	Version       string   `yaml:"version" env:"TRIP_CACHE_VERSION" validate:"required"`
	ShellManifest []string `yaml:"shell_manifest" env:"TRIP_CACHE_SHELL_MANIFEST" validate:"dive,startswith=/"`
	AuthPrefix    string   `yaml:"auth_prefix" env:"TRIP_AUTH_PREFIX" validate:"startswith=/"`
	HomePath      string   `yaml:"home_path" env:"TRIP_HOME_PATH" validate:"startswith=/"`
	OfflinePath   string   `yaml:"offline_path" env:"TRIP_OFFLINE_PATH" validate:"startswith=/"`
}

// Name returns the versioned cache namespace, e.g. trip-planner-cache-v1.
func (c CacheConfig) Name() string {
	return c.Prefix + "-" + c.Version
}

type SyncConfig struct {
	// Periodic drain interval while online; 0 disables periodic drains
	Interval time.Duration `yaml:"interval" env:"TRIP_SYNC_INTERVAL" validate:"gte=0"`
	// Connectivity probe interval; 0 disables probing
	ProbeInterval time.Duration `yaml:"probe_interval" env:"TRIP_SYNC_PROBE_INTERVAL" validate:"gte=0"`
	// Attempts before a change is parked; 0 retries forever
	MaxAttempts int `yaml:"max_attempts" env:"TRIP_SYNC_MAX_ATTEMPTS" validate:"gte=0"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"TRIP_LOG_LEVEL" validate:"oneof=debug info warn error DEBUG INFO WARN ERROR"`
	Pretty bool   `yaml:"pretty" env:"TRIP_LOG_PRETTY"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"TRIP_METRICS_ENABLED"`
	Path    string `yaml:"path" env:"TRIP_METRICS_PATH" validate:"startswith=/"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: "127.0.0.1:8090",
			Origin:     "http://localhost:3000",
			APITimeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			Driver:    "sqlite",
			DataDir:   "./data",
			RedisPort: 6379,
		},
		Cache: CacheConfig{
			Prefix:        "trip-planner-cache",
			Version:       "v1",
			ShellManifest: []string{"/", "/offline.html", "/styles.css", "/app.js", "/icon.png", "/manifest.json"},
			AuthPrefix:    "/api/auth",
			HomePath:      "/api/home",
			OfflinePath:   "/offline.html",
		},
		Sync: SyncConfig{
			Interval:      15 * time.Minute,
			ProbeInterval: 30 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load builds the configuration. path may be empty to skip the YAML file.
// envFiles are loaded with godotenv; missing files are ignored and
// variables already set in the environment win.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInvalid, fmt.Sprintf("failed to read config %s", path), err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInvalid, fmt.Sprintf("failed to parse config %s", path), err)
		}
	}

	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.Wrap(apperrors.ErrInvalid, fmt.Sprintf("failed to load env file %s", f), err)
		}
	}

	if err := applyEnv(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return apperrors.Wrap(apperrors.ErrValidation, "invalid configuration", err)
	}
	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// applyEnv overrides fields carrying an env tag from the process environment.
func applyEnv(v reflect.Value) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fv := v.Field(i)

		if field.Type.Kind() == reflect.Struct {
			if err := applyEnv(fv); err != nil {
				return err
			}
			continue
		}

		name := field.Tag.Get("env")
		if name == "" {
			continue
		}
		raw, ok := os.LookupEnv(name)
		if !ok {
			continue
		}
		if err := setField(fv, raw); err != nil {
			return apperrors.Wrap(apperrors.ErrInvalid, fmt.Sprintf("invalid value for %s", name), err)
		}
	}
	return nil
}

func setField(fv reflect.Value, raw string) error {
	if fv.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		fv.SetInt(int64(d))
		return nil
	}

	switch fv.Kind() {
	case reflect.String:
		fv.SetString(raw)
	case reflect.Int:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return err
		}
		fv.SetInt(int64(n))
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		fv.SetBool(b)
	case reflect.Slice:
		var items []string
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				items = append(items, s)
			}
		}
		fv.Set(reflect.ValueOf(items))
	default:
		return fmt.Errorf("unsupported field kind %s", fv.Kind())
	}
	return nil
}
