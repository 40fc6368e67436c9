// Package config loads the sdh-server configuration: a YAML file, then
// SDH_* environment overrides, then command-line flags, validated once all
// three have been applied.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/sdh-provisioner/internal/logging"
	"github.com/signalsfoundry/sdh-provisioner/internal/observability"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete server configuration.
type Config struct {
	Server    ServerConfig                `yaml:"server"`
	Log       logging.Config              `yaml:"log"`
	Tracing   observability.TracingConfig `yaml:"tracing"`
	Store     StoreConfig                 `yaml:"store"`
	Inventory InventoryConfig             `yaml:"inventory"`
}

// ServerConfig holds the listen addresses.
type ServerConfig struct {
	GRPCAddr string `yaml:"grpc_addr" validate:"required,hostname_port"`
	// MetricsAddr serves /metrics; empty disables it.
	MetricsAddr     string        `yaml:"metrics_addr" validate:"omitempty,hostname_port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`
}

// StoreConfig locates the SQLite journal. An empty path keeps the
// inventory in memory only.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// InventoryConfig controls bootstrap and route search.
type InventoryConfig struct {
	SeedFile     string `yaml:"seed_file"`
	MaxRouteHops int    `yaml:"max_route_hops" validate:"gte=0,lte=64"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server: ServerConfig{
			GRPCAddr:        ":50051",
			MetricsAddr:     ":9090",
			ShutdownTimeout: 5 * time.Second,
		},
		Log:     logging.Config{Level: "info", Format: "text"},
		Tracing: observability.DefaultTracingConfig(),
		Inventory: InventoryConfig{
			MaxRouteHops: 8,
		},
	}
}

// Load reads path over the defaults and applies the environment. An empty
// path skips the file. The result is not validated yet so flags can still
// be applied; call Validate afterwards.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config file %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes a YAML document over the defaults and validates it.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := decode(data, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from SDH_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"SDH_GRPC_ADDR":            &c.Server.GRPCAddr,
		"SDH_METRICS_ADDR":         &c.Server.MetricsAddr,
		"SDH_STORE_PATH":           &c.Store.Path,
		"SDH_SEED_FILE":            &c.Inventory.SeedFile,
		"SDH_LOG_LEVEL":            &c.Log.Level,
		"SDH_LOG_FORMAT":           &c.Log.Format,
		"SDH_TRACING_EXPORTER":     &c.Tracing.Exporter,
		"SDH_TRACING_ENDPOINT":     &c.Tracing.Endpoint,
		"SDH_TRACING_SERVICE_NAME": &c.Tracing.ServiceName,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	if v, ok := lookup("SDH_TRACING_ENABLED"); ok {
		enabled, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: SDH_TRACING_ENABLED=%q", ErrInvalid, v)
		}
		c.Tracing.Enabled = enabled
	}
	if v, ok := lookup("SDH_TRACING_SAMPLE_RATIO"); ok {
		ratio, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("%w: SDH_TRACING_SAMPLE_RATIO=%q", ErrInvalid, v)
		}
		c.Tracing.SampleRatio = ratio
	}
	if v, ok := lookup("SDH_MAX_ROUTE_HOPS"); ok {
		hops, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: SDH_MAX_ROUTE_HOPS=%q", ErrInvalid, v)
		}
		c.Inventory.MaxRouteHops = hops
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the struct tags of every section.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, formatValidationError(err))
	}
	return nil
}

// formatValidationError reports the first failing field by its namespace,
// e.g. "Config.Server.GRPCAddr".
func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	e := verrs[0]
	switch e.Tag() {
	case "required", "required_if":
		return fmt.Errorf("%s is required", e.Namespace())
	case "oneof":
		return fmt.Errorf("%s must be one of [%s], got %v", e.Namespace(), e.Param(), e.Value())
	case "hostname_port":
		return fmt.Errorf("%s must be host:port, got %q", e.Namespace(), e.Value())
	default:
		return fmt.Errorf("%s failed %s=%s (got %v)", e.Namespace(), e.Tag(), e.Param(), e.Value())
	}
}
