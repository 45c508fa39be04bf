// Package config assembles service settings from defaults, an optional HCL
// file and LIGHTGRID_* environment variables. Command-line flags are applied
// on top by the binary.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Config holds every tunable of the service.
type Config struct {
	Addr           string
	DBPath         string
	LevelsDir      string
	TimeLimit      time.Duration // overrides every layout clock when > 0
	Retention      time.Duration
	SweepInterval  time.Duration
	AutoplayBudget int
	RequestTimeout time.Duration
	AllowedOrigins []string
	KeyringService string
	TokenFile      string
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Addr:           "127.0.0.1:8080",
		DBPath:         "lightgrid.db",
		Retention:      10 * time.Minute,
		SweepInterval:  time.Minute,
		AutoplayBudget: 200,
		RequestTimeout: 30 * time.Second,
		AllowedOrigins: []string{"*"},
		KeyringService: "lightgrid",
	}
}

// fileConfig mirrors Config for HCL decoding. Durations are in seconds and
// absent attributes leave the current value alone.
type fileConfig struct {
	Addr           *string  `hcl:"addr,optional"`
	DBPath         *string  `hcl:"db,optional"`
	LevelsDir      *string  `hcl:"levels_dir,optional"`
	TimeLimit      *int     `hcl:"time_limit,optional"`
	Retention      *int     `hcl:"retention,optional"`
	SweepInterval  *int     `hcl:"sweep_interval,optional"`
	AutoplayBudget *int     `hcl:"autoplay_budget,optional"`
	RequestTimeout *int     `hcl:"request_timeout,optional"`
	AllowedOrigins []string `hcl:"allowed_origins,optional"`
	KeyringService *string  `hcl:"keyring_service,optional"`
	TokenFile      *string  `hcl:"token_file,optional"`
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// LoadFile applies the HCL file at path on top of c.
func (c *Config) LoadFile(path string) error {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse config file %s: %s", path, diags.Error())
	}
	return c.decode(file.Body, path)
}

// LoadBytes is LoadFile for in-memory source.
func (c *Config) LoadBytes(src []byte, filename string) error {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse config file %s: %s", filename, diags.Error())
	}
	return c.decode(file.Body, filename)
}

func (c *Config) decode(body hcl.Body, filename string) error {
	var fc fileConfig
	if diags := gohcl.DecodeBody(body, nil, &fc); diags.HasErrors() {
		return fmt.Errorf("failed to decode config file %s: %s", filename, diags.Error())
	}

	if fc.Addr != nil {
		c.Addr = *fc.Addr
	}
	if fc.DBPath != nil {
		c.DBPath = *fc.DBPath
	}
	if fc.LevelsDir != nil {
		c.LevelsDir = *fc.LevelsDir
	}
	if fc.TimeLimit != nil {
		c.TimeLimit = seconds(*fc.TimeLimit)
	}
	if fc.Retention != nil {
		c.Retention = seconds(*fc.Retention)
	}
	if fc.SweepInterval != nil {
		c.SweepInterval = seconds(*fc.SweepInterval)
	}
	if fc.AutoplayBudget != nil {
		c.AutoplayBudget = *fc.AutoplayBudget
	}
	if fc.RequestTimeout != nil {
		c.RequestTimeout = seconds(*fc.RequestTimeout)
	}
	if fc.AllowedOrigins != nil {
		c.AllowedOrigins = fc.AllowedOrigins
	}
	if fc.KeyringService != nil {
		c.KeyringService = *fc.KeyringService
	}
	if fc.TokenFile != nil {
		c.TokenFile = *fc.TokenFile
	}
	return nil
}

// ApplyEnv overlays LIGHTGRID_* variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	str := func(k string, dst *string) {
		if v := strings.TrimSpace(getenv(k)); v != "" {
			*dst = v
		}
	}
	secs := func(k string, dst *time.Duration) {
		if v := envInt(getenv, k, -1); v >= 0 {
			*dst = seconds(v)
		}
	}

	str("LIGHTGRID_ADDR", &c.Addr)
	str("LIGHTGRID_DB", &c.DBPath)
	str("LIGHTGRID_LEVELS", &c.LevelsDir)
	str("LIGHTGRID_KEYRING_SERVICE", &c.KeyringService)
	str("LIGHTGRID_TOKEN_FILE", &c.TokenFile)
	secs("LIGHTGRID_TIME_LIMIT", &c.TimeLimit)
	secs("LIGHTGRID_RETENTION", &c.Retention)
	secs("LIGHTGRID_SWEEP_INTERVAL", &c.SweepInterval)
	secs("LIGHTGRID_REQUEST_TIMEOUT", &c.RequestTimeout)
	c.AutoplayBudget = envInt(getenv, "LIGHTGRID_AUTOPLAY_BUDGET", c.AutoplayBudget)

	if v := strings.TrimSpace(getenv("LIGHTGRID_CORS_ORIGINS")); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.AllowedOrigins = origins
	}
}

func envInt(getenv func(string) string, k string, def int) int {
	if s := getenv(k); s != "" {
		var v int
		if _, err := fmt.Sscanf(s, "%d", &v); err == nil {
			return v
		}
	}
	return def
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Addr) == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if strings.TrimSpace(c.DBPath) == "" {
		errs = append(errs, errors.New("db path is required"))
	}
	if c.TimeLimit < 0 {
		errs = append(errs, fmt.Errorf("time limit %s is negative", c.TimeLimit))
	}
	if c.Retention <= 0 {
		errs = append(errs, fmt.Errorf("retention must be positive, got %s", c.Retention))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("sweep interval must be positive, got %s", c.SweepInterval))
	}
	if c.AutoplayBudget <= 0 {
		errs = append(errs, fmt.Errorf("autoplay budget must be positive, got %d", c.AutoplayBudget))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout))
	}
	if c.LevelsDir != "" {
		if info, err := os.Stat(c.LevelsDir); err != nil {
			errs = append(errs, fmt.Errorf("levels dir: %w", err))
		} else if !info.IsDir() {
			errs = append(errs, fmt.Errorf("levels dir %s is not a directory", c.LevelsDir))
		}
	}
	return errors.Join(errs...)
}
