package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrypt/vrypt-server/internal/config"
)

func TestParseFlagsBarePort(t *testing.T) {
	f, err := parseFlags([]string{"9090"})
	require.NoError(t, err)
	assert.True(t, f.portSet)
	assert.Equal(t, 9090, f.port)
}

func TestParseFlagsShortFlag(t *testing.T) {
	f, err := parseFlags([]string{"-p", "9090"})
	require.NoError(t, err)
	assert.True(t, f.portSet)
	assert.Equal(t, 9090, f.port)
}

func TestParseFlagsLongFlag(t *testing.T) {
	f, err := parseFlags([]string{"--port", "9090"})
	require.NoError(t, err)
	assert.True(t, f.portSet)
	assert.Equal(t, 9090, f.port)
}

func TestParseFlagsNoArgs(t *testing.T) {
	f, err := parseFlags(nil)
	require.NoError(t, err)
	assert.False(t, f.portSet)
}

func TestParseFlagsInvalidBarePort(t *testing.T) {
	_, err := parseFlags([]string{"not-a-port"})
	assert.Error(t, err)
}

func TestApplyCLIOverridesPort(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.Port = 8080

	applyCLIOverrides(cfg, cliFlags{port: 9999, portSet: true})
	assert.Equal(t, 9999, cfg.Server.Port)
}

func TestApplyCLIOverridesWorkers(t *testing.T) {
	cfg := &config.Config{}
	applyCLIOverrides(cfg, cliFlags{workers: 2})
	assert.Equal(t, config.WorkersFixed, cfg.Server.Workers.Mode)
	assert.Equal(t, 2, cfg.Server.Workers.Value)
}

func TestApplyCLIOverridesWorkersAutoWhenNegative(t *testing.T) {
	cfg := &config.Config{}
	applyCLIOverrides(cfg, cliFlags{workers: -1})
	assert.Equal(t, config.WorkersMode(0), cfg.Server.Workers.Mode)
}

func TestApplyCLIOverridesJSONLogs(t *testing.T) {
	cfg := &config.Config{}
	applyCLIOverrides(cfg, cliFlags{jsonLogs: true})
	assert.True(t, cfg.Logging.Structured)
	assert.Equal(t, "json", cfg.Logging.StructuredFormat)
}

func TestApplyCLIOverridesLogLevel(t *testing.T) {
	cfg := &config.Config{}
	applyCLIOverrides(cfg, cliFlags{logLevel: "DEBUG"})
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
}
