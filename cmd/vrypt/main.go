package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/vrypt/vrypt-server/internal/config"
	"github.com/vrypt/vrypt-server/internal/logging"
	"github.com/vrypt/vrypt-server/internal/reactor"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

// cliFlags holds parsed command-line flag values. The invocation forms
// `bin`, `bin <port>`, `bin -p <port>`, and `bin --port <port>` are all
// supported: a bare positional argument is treated the same as -p/--port.
type cliFlags struct {
	port       int
	portSet    bool
	configPath string
	workers    int
	jsonLogs   bool
	logLevel   string
}

// parseFlags parses command-line flags and the optional bare positional
// port argument. Port parse failures are reported to the caller rather
// than fatally exiting, so run() can warn and fall back to the configured
// default instead.
func parseFlags(args []string) (cliFlags, error) {
	var f cliFlags
	fs := flag.NewFlagSet("vrypt", flag.ContinueOnError)
	fs.IntVar(&f.port, "p", 0, "Port to listen on")
	fs.IntVar(&f.port, "port", 0, "Port to listen on")
	fs.StringVar(&f.configPath, "config", "", "Path to an optional YAML config file")
	fs.IntVar(&f.workers, "workers", -1, "Clamp worker count (can only reduce NumCPU; -1 means auto)")
	fs.BoolVar(&f.jsonLogs, "json-logs", false, "Enable JSON structured logging")
	fs.StringVar(&f.logLevel, "log-level", "", "Override log level (DEBUG, INFO, WARN, ERROR)")
	if err := fs.Parse(args); err != nil {
		return f, err
	}

	if f.port != 0 {
		f.portSet = true
	}

	// A single bare positional argument is an alternate port form: `bin <port>`.
	if rest := fs.Args(); len(rest) == 1 && !f.portSet {
		p, err := strconv.ParseUint(rest[0], 10, 16)
		if err != nil {
			return f, fmt.Errorf("invalid port %q: %w", rest[0], err)
		}
		f.port = int(p)
		f.portSet = true
	}

	return f, nil
}

// applyCLIOverrides applies command-line overrides to the config. CLI
// flags take final precedence over file, environment, and defaults.
func applyCLIOverrides(cfg *config.Config, f cliFlags) {
	if f.portSet {
		cfg.Server.Port = f.port
	}
	if f.workers >= 0 {
		cfg.Server.Workers = config.WorkerSetting{Mode: config.WorkersFixed, Value: f.workers}
	}
	if f.jsonLogs {
		cfg.Logging.Structured = true
		cfg.Logging.StructuredFormat = "json"
	}
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}
}

func run() error {
	flags, parseErr := parseFlags(os.Args[1:])

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// A malformed port falls back to the configured default after a
	// warning rather than a fatal exit.
	if parseErr != nil {
		fmt.Fprintf(os.Stderr, "warning: %v; falling back to port %d\n", parseErr, cfg.Server.Port)
	} else {
		applyCLIOverrides(cfg, flags)
	}

	logger := logging.Configure(logging.Config{
		Level:            cfg.Logging.Level,
		Structured:       cfg.Logging.Structured,
		StructuredFormat: cfg.Logging.StructuredFormat,
		IncludePID:       cfg.Logging.IncludePID,
		ExtraFields:      cfg.Logging.ExtraFields,
	})

	logger.Info("vrypt starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"workers", cfg.Server.Workers.String(),
		"buf_size", cfg.Pool.BufSize,
		"max_conns", cfg.Pool.MaxConns,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	runner := reactor.NewRunner(logger)
	if err := runner.Run(cfg, ctx.Done()); err != nil {
		return fmt.Errorf("server exited with error: %w", err)
	}
	return nil
}
