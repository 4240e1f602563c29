// Package config loads and validates the engine configuration schema
// described in §6.4-§6.6: top-level engine settings, sink group
// definitions, and rate/speed profile parameters.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/wp-labs/wp-motor/internal/xerrors"
	"gopkg.in/yaml.v2"
)

// Config is the live-engine-relevant subset of the top-level schema named
// by §6.4 ("others exist for tooling and are ignored here").
type Config struct {
	Version     string      `yaml:"version"`
	Robust      string      `yaml:"robust"`
	Models      Models      `yaml:"models"`
	Topology    Topology    `yaml:"topology"`
	Performance Performance `yaml:"performance"`
	Rescue      Rescue      `yaml:"rescue"`
	Stat        Stat        `yaml:"stat"`
	Metrics     Metrics     `yaml:"metrics"`
	SkipParse   bool        `yaml:"skip_parse"`
	SkipSink    bool        `yaml:"skip_sink"`

	Groups []GroupConfig `yaml:"group"`
	Fixed  []GroupConfig `yaml:"fixed"`

	SpeedProfile ProfileConfig `yaml:"speed_profile"`
}

type Models struct {
	WPL string `yaml:"wpl"`
	OML string `yaml:"oml"`
}

type Topology struct {
	Sources []SourceConfig `yaml:"sources"`
	Sinks   []string       `yaml:"sinks"`
}

type SourceConfig struct {
	Name   string            `yaml:"name"`
	Kind   string            `yaml:"kind"`
	Params map[string]string `yaml:"params"`
}

type Performance struct {
	RateLimitRPS float64 `yaml:"rate_limit_rps"`
	ParseWorkers int     `yaml:"parse_workers"`
}

type Rescue struct {
	Path string `yaml:"path"`
}

type Stat struct {
	FlushIntervalSeconds int      `yaml:"flush_interval_seconds"`
	Keys                 []string `yaml:"keys"`
}

// Metrics configures the Prometheus HTTP endpoint (§4.9's ambient
// observability surface). An empty Addr disables the server.
type Metrics struct {
	Addr string `yaml:"addr"`
}

// RobustMode parses Config.Robust into the xerrors policy enum, defaulting
// to Normal when unset.
func (c *Config) RobustMode() xerrors.RobustMode {
	switch strings.ToLower(c.Robust) {
	case "tolerant":
		return xerrors.RobustTolerant
	case "throw":
		return xerrors.RobustThrow
	case "ignore":
		return xerrors.RobustIgnore
	case "terminate":
		return xerrors.RobustTerminate
	case "normal", "":
		return xerrors.RobustNormal
	default:
		return xerrors.RobustNormal
	}
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// interpolateEnv resolves `${VAR}` references in s against the process
// environment. An unresolved variable is left as-is (§6.4).
func interpolateEnv(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(m string) string {
		name := envVarPattern.FindStringSubmatch(m)[1]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return m
	})
}

// interpolatePathFields applies interpolateEnv to every path-like field
// named in §6.4.
func (c *Config) interpolatePathFields() {
	c.Rescue.Path = interpolateEnv(c.Rescue.Path)
	c.Models.WPL = interpolateEnv(c.Models.WPL)
	c.Models.OML = interpolateEnv(c.Models.OML)
	for i := range c.Topology.Sources {
		for k, v := range c.Topology.Sources[i].Params {
			c.Topology.Sources[i].Params[k] = interpolateEnv(v)
		}
	}
}

// Load reads and validates configFile, applying defaults and `${VAR}`
// path interpolation before returning.
func Load(configFile string) (*Config, error) {
	raw, err := os.ReadFile(configFile)
	if err != nil {
		return nil, xerrors.New(xerrors.CodeConfigInvalid, "config", "Load", "read config file").
			Wrap(err).WithSeverity(xerrors.SeverityCritical)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, xerrors.New(xerrors.CodeConfigInvalid, "config", "Load", "parse config yaml").
			Wrap(err).WithSeverity(xerrors.SeverityCritical)
	}
	applyDefaults(cfg)
	cfg.interpolatePathFields()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(c *Config) {
	if c.Version == "" {
		c.Version = "1"
	}
	if c.Robust == "" {
		c.Robust = "normal"
	}
	if c.Performance.ParseWorkers <= 0 {
		c.Performance.ParseWorkers = 4
	}
	if c.Stat.FlushIntervalSeconds <= 0 {
		c.Stat.FlushIntervalSeconds = 5
	}
	if c.Rescue.Path == "" {
		c.Rescue.Path = "./rescue"
	}
	for i := range c.Groups {
		if c.Groups[i].Parallel <= 0 {
			c.Groups[i].Parallel = 1
		}
	}
}

// Validate rejects a malformed config at load time — "Configuration
// errors: rejected at load; engine refuses to start" (§7).
func Validate(c *Config) error {
	switch strings.ToLower(c.Robust) {
	case "normal", "tolerant", "throw", "ignore", "terminate":
	default:
		return configErr(fmt.Sprintf("robust: unrecognized mode %q", c.Robust))
	}
	if c.Performance.ParseWorkers < 1 {
		return configErr("performance.parse_workers must be >= 1")
	}
	for _, g := range c.Groups {
		if err := validateGroup(g); err != nil {
			return err
		}
	}
	if c.SpeedProfile.Type != "" {
		if err := validateProfile(c.SpeedProfile); err != nil {
			return err
		}
	}
	return nil
}

func configErr(msg string) error {
	return xerrors.New(xerrors.CodeConfigInvalid, "config", "Validate", msg).
		WithSeverity(xerrors.SeverityCritical)
}
