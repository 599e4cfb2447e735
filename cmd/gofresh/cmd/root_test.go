package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRootCommandStructure(t *testing.T) {
	assert.Equal(t, "gofresh", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.Equal(t, Version, rootCmd.Version)
}

func TestRootPersistentFlags(t *testing.T) {
	flags := []string{"config", "log-level", "log-format", "parallel", "no-cache"}
	for _, name := range flags {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), "missing persistent flag %s", name)
	}
}

func TestConfigFlagDefault(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("config")
	assert.Equal(t, "gofresh.yaml", flag.DefValue)
}

func TestGetCLIOverrides(t *testing.T) {
	origLevel, origFormat := logLevel, logFormat
	origParallel, origNoCache := maxParallel, noCache
	defer func() {
		logLevel, logFormat = origLevel, origFormat
		maxParallel, noCache = origParallel, origNoCache
	}()

	logLevel = "debug"
	logFormat = "json"
	maxParallel = 6
	noCache = true

	overrides := GetCLIOverrides()
	assert.Equal(t, "debug", overrides.LogLevel)
	assert.Equal(t, "json", overrides.LogFormat)
	assert.Equal(t, 6, overrides.MaxParallel)
	assert.True(t, overrides.NoCache)
}

func TestAllSubcommandsRegistered(t *testing.T) {
	expected := []string{"fresh", "plan", "backup", "restore", "version"}
	registered := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		registered[c.Name()] = true
	}
	for _, name := range expected {
		assert.True(t, registered[name], "%s command should be added to root command", name)
	}
}
