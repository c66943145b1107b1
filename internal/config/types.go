// Package config provides layered configuration loading for the Vrypt
// reactor server.
//
// Configuration is loaded with the following priority (highest to lowest):
//  1. Command-line flags (not handled here, see cmd/vrypt/main.go)
//  2. Environment variables (VRYPT_* prefix)
//  3. YAML config file (if specified with --config)
//  4. Hardcoded defaults
//
// Environment variables are mapped from VRYPT_CATEGORY_SETTING format,
// e.g., VRYPT_SERVER_PORT maps to server.port in YAML.
package config

import "strconv"

// WorkersMode specifies how worker count is determined.
type WorkersMode int

const (
	// WorkersAuto sizes the worker pool to runtime.NumCPU().
	WorkersAuto WorkersMode = iota
	// WorkersFixed clamps the worker pool to a specific count (never above
	// runtime.NumCPU()).
	WorkersFixed
)

// WorkerSetting represents the workers configuration.
type WorkerSetting struct {
	Mode  WorkersMode
	Value int
}

// String returns the string representation of the worker setting.
func (w WorkerSetting) String() string {
	if w.Mode == WorkersAuto {
		return "auto"
	}
	return strconv.Itoa(w.Value)
}

// ServerConfig contains listener-related settings.
type ServerConfig struct {
	Host       string        `yaml:"host"        mapstructure:"host"`
	Port       int           `yaml:"port"        mapstructure:"port"`
	Workers    WorkerSetting `yaml:"-"           mapstructure:"-"`
	WorkersRaw string        `yaml:"workers"     mapstructure:"workers"`
}

// PoolConfig contains the fixed-capacity admission-control knobs.
//
// These knobs are exposed so load tests can shrink them to exercise
// exhaustion behavior without recompiling.
type PoolConfig struct {
	BufSize         int `yaml:"buf_size"          mapstructure:"buf_size"`
	MaxConns        int `yaml:"max_conns"         mapstructure:"max_conns"`
	MaxRecycledBufs int `yaml:"max_recycled_bufs" mapstructure:"max_recycled_bufs"`
	MaxRequestSize  int `yaml:"max_request_size"  mapstructure:"max_request_size"`
}

// TimeoutConfig contains the reactor's wall-clock bounds.
type TimeoutConfig struct {
	ConnTimeoutSeconds int `yaml:"conn_timeout_seconds" mapstructure:"conn_timeout_seconds"`
	PollTimeoutMillis  int `yaml:"poll_timeout_millis"  mapstructure:"poll_timeout_millis"`
}

// StatsConfig contains the UDP stats pusher settings.
type StatsConfig struct {
	IntervalSeconds int    `yaml:"interval_seconds" mapstructure:"interval_seconds"`
	Target          string `yaml:"target"           mapstructure:"target"`
	Metric          string `yaml:"metric"           mapstructure:"metric"`
}

// LoggingConfig contains logging settings, handed to internal/logging.Configure.
type LoggingConfig struct {
	Level            string            `yaml:"level"             mapstructure:"level"`
	Structured       bool              `yaml:"structured"        mapstructure:"structured"`
	StructuredFormat string            `yaml:"structured_format" mapstructure:"structured_format"`
	IncludePID       bool              `yaml:"include_pid"       mapstructure:"include_pid"`
	ExtraFields      map[string]string `yaml:"extra_fields"      mapstructure:"extra_fields"`
}

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig  `yaml:"server"   mapstructure:"server"`
	Pool     PoolConfig    `yaml:"pool"     mapstructure:"pool"`
	Timeouts TimeoutConfig `yaml:"timeouts" mapstructure:"timeouts"`
	Stats    StatsConfig   `yaml:"stats"    mapstructure:"stats"`
	Logging  LoggingConfig `yaml:"logging"  mapstructure:"logging"`
}
