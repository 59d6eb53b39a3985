package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/storesense/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	c := &config.Config{}
	c.Detection.SearchRadiusMeters = 1000
	c.Detection.PositionTimeoutSecs = 1
	c.Detection.RadioTimeoutSecs = 1
	c.Directory.Driver = "sqlite"
	c.Directory.DatabaseURL = filepath.Join(dir, "directory.db")
	c.Memory.Path = filepath.Join(dir, "memory.db")
	c.Server.Port = 8080
	c.Server.AllowedOrigins = []string{"*"}
	return c
}

func TestParseFix(t *testing.T) {
	fix, err := parseFix("45.5231,-122.6765")
	require.NoError(t, err)
	assert.InDelta(t, 45.5231, fix.Point.Lat, 1e-9)
	assert.InDelta(t, -122.6765, fix.Point.Lng, 1e-9)
	assert.False(t, fix.ObservedAt.IsZero())
}

func TestParseFix_Invalid(t *testing.T) {
	for _, s := range []string{"", "45.5", "45.5,-122.6,3", "abc,-122.6", "45.5,xyz", "91,0", "0,181"} {
		_, err := parseFix(s)
		assert.Error(t, err, "input %q", s)
	}
}

func TestBuildProviders_FixFlag(t *testing.T) {
	cfg = testConfig(t)
	cfg.Providers.NmcliPath = ""

	position, radio, err := buildProviders(providerFlags{fixArg: "45.5,-122.6"})
	require.NoError(t, err)
	assert.NotNil(t, position)
	assert.Nil(t, radio)
}

func TestBuildProviders_ScanFixture(t *testing.T) {
	cfg = testConfig(t)
	cfg.Providers.NmcliPath = ""

	path := filepath.Join(t.TempDir(), "scan.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"fix": {"point": {"lat": 45.5, "lng": -122.6}},
		"snapshot": [
			{"signature": {"bssid": "aa:bb:cc:dd:ee:ff"}, "signal_dbm": -58}
		]
	}`), 0644))

	position, radio, err := buildProviders(providerFlags{scanPath: path})
	require.NoError(t, err)
	assert.NotNil(t, position)
	assert.NotNil(t, radio)
}

func TestBuildProviders_NoSource(t *testing.T) {
	cfg = testConfig(t)
	cfg.Providers.NmcliPath = ""

	_, _, err := buildProviders(providerFlags{})
	assert.Error(t, err)
}

func TestInitDetection_WiresSQLite(t *testing.T) {
	cfg = testConfig(t)
	cfg.Providers.NmcliPath = ""

	env, err := initDetection(context.Background(), providerFlags{fixArg: "45.5,-122.6"})
	require.NoError(t, err)
	defer env.Close()

	assert.NotNil(t, env.dir)
	assert.NotNil(t, env.memory)
	assert.NotNil(t, env.orch)
}

func TestRootCommandRegistration(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"detect", "watch", "stores", "confirm", "favorites", "serve"} {
		assert.True(t, names[want], "command %s not registered", want)
	}
}
