package config

import (
	"errors"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/vrypt/vrypt-server/internal/helpers"
)

// initConfig sets up the config loader with defaults, env binding, and config file.
func initConfig(configPath string) (*viper.Viper, error) {
	v := viper.New()

	setDefaults(v)

	// VRYPT_SERVER_PORT -> server.port, etc.
	v.SetEnvPrefix("VRYPT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.New("failed to read config file: " + err.Error())
		}
	}

	return v, nil
}

// setDefaults configures all default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.workers", "auto")

	v.SetDefault("pool.buf_size", 64*1024)
	v.SetDefault("pool.max_conns", 65536)
	v.SetDefault("pool.max_recycled_bufs", 256)
	v.SetDefault("pool.max_request_size", 64*1024)

	v.SetDefault("timeouts.conn_timeout_seconds", 30)
	v.SetDefault("timeouts.poll_timeout_millis", 5000)

	v.SetDefault("stats.interval_seconds", 1)
	v.SetDefault("stats.target", "127.0.0.1:8125")
	v.SetDefault("stats.metric", "vrypt.rps")

	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.structured", false)
	v.SetDefault("logging.structured_format", "json")
	v.SetDefault("logging.include_pid", false)
	v.SetDefault("logging.extra_fields", map[string]string{})
}

// Load loads configuration from an optional YAML file with environment
// variable and default-value fallbacks. CLI flags are applied by the caller
// (see cmd/vrypt/main.go applyCLIOverrides) after Load returns, so they take
// final precedence.
func Load(path string) (*Config, error) {
	v, err := initConfig(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	loadServerConfig(v, cfg)
	loadPoolConfig(v, cfg)
	loadTimeoutConfig(v, cfg)
	loadStatsConfig(v, cfg)
	loadLoggingConfig(v, cfg)

	if err := normalizeConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadServerConfig(v *viper.Viper, cfg *Config) {
	cfg.Server.Host = v.GetString("server.host")
	cfg.Server.Port = v.GetInt("server.port")
	cfg.Server.WorkersRaw = v.GetString("server.workers")
	cfg.Server.Workers = parseWorkers(cfg.Server.WorkersRaw)
}

func loadPoolConfig(v *viper.Viper, cfg *Config) {
	cfg.Pool.BufSize = v.GetInt("pool.buf_size")
	cfg.Pool.MaxConns = v.GetInt("pool.max_conns")
	cfg.Pool.MaxRecycledBufs = v.GetInt("pool.max_recycled_bufs")
	cfg.Pool.MaxRequestSize = v.GetInt("pool.max_request_size")
}

func loadTimeoutConfig(v *viper.Viper, cfg *Config) {
	cfg.Timeouts.ConnTimeoutSeconds = v.GetInt("timeouts.conn_timeout_seconds")
	cfg.Timeouts.PollTimeoutMillis = v.GetInt("timeouts.poll_timeout_millis")
}

func loadStatsConfig(v *viper.Viper, cfg *Config) {
	cfg.Stats.IntervalSeconds = v.GetInt("stats.interval_seconds")
	cfg.Stats.Target = v.GetString("stats.target")
	cfg.Stats.Metric = v.GetString("stats.metric")
}

func loadLoggingConfig(v *viper.Viper, cfg *Config) {
	cfg.Logging.Level = strings.ToUpper(v.GetString("logging.level"))
	cfg.Logging.Structured = v.GetBool("logging.structured")
	cfg.Logging.StructuredFormat = v.GetString("logging.structured_format")
	cfg.Logging.IncludePID = v.GetBool("logging.include_pid")
	cfg.Logging.ExtraFields = v.GetStringMapString("logging.extra_fields")
}

// parseWorkers converts the workers string to WorkerSetting.
func parseWorkers(raw string) WorkerSetting {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" || raw == "auto" {
		return WorkerSetting{Mode: WorkersAuto}
	}
	if n, err := strconv.Atoi(raw); err == nil && n > 0 {
		return WorkerSetting{Mode: WorkersFixed, Value: n}
	}
	return WorkerSetting{Mode: WorkersAuto}
}

// normalizeConfig validates and clamps the configuration. Invalid or
// missing values fall back to sane defaults rather than failing startup,
// except for an out-of-range port, which is rejected outright.
func normalizeConfig(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return errors.New("server.port must be 1..65535")
	}

	// The request-completeness scan never reads past a single buffer, so
	// the maximum request size can never exceed the buffer size.
	cfg.Pool.BufSize = helpers.ClampInt(cfg.Pool.BufSize, 4096, 16*1024*1024)
	cfg.Pool.MaxRequestSize = helpers.ClampInt(cfg.Pool.MaxRequestSize, 1, cfg.Pool.BufSize)
	cfg.Pool.MaxConns = helpers.ClampInt(cfg.Pool.MaxConns, 1, 1<<20)
	cfg.Pool.MaxRecycledBufs = helpers.ClampInt(cfg.Pool.MaxRecycledBufs, 0, cfg.Pool.MaxConns)

	if cfg.Timeouts.ConnTimeoutSeconds <= 0 {
		cfg.Timeouts.ConnTimeoutSeconds = 30
	}
	if cfg.Timeouts.PollTimeoutMillis <= 0 {
		cfg.Timeouts.PollTimeoutMillis = 5000
	}
	if cfg.Stats.IntervalSeconds <= 0 {
		cfg.Stats.IntervalSeconds = 1
	}
	if cfg.Stats.Metric == "" {
		cfg.Stats.Metric = "vrypt.rps"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	if cfg.Logging.StructuredFormat == "" {
		cfg.Logging.StructuredFormat = "json"
	}
	if cfg.Logging.ExtraFields == nil {
		cfg.Logging.ExtraFields = map[string]string{}
	}

	return nil
}
