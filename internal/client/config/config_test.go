package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withArgs(t *testing.T, args ...string) {
	t.Helper()
	orig := os.Args
	os.Args = append([]string{"testbin"}, args...)
	t.Cleanup(func() { os.Args = orig })
}

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "http://127.0.0.1:8080", c.ServerURL)
	assert.Equal(t, "session.db", c.SessionDB)
	assert.Equal(t, 10*time.Second, c.RequestTimeout)
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	withArgs(t)
	cfg := LoadConfig()

	require.NotNil(t, cfg)
	assert.Equal(t, "http://127.0.0.1:8080", cfg.ServerURL)
}

func TestLoadConfig_FlagsOverrideJson(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.json")
	raw, err := json.Marshal(map[string]any{
		"server_url":      "http://json:1",
		"session_db":      "/tmp/json.db",
		"request_timeout": "3s",
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	withArgs(t, "-c", path, "-a", "http://flag:2")
	got := LoadConfig()

	want := &Config{ServerURL: "http://flag:2", SessionDB: "/tmp/json.db", RequestTimeout: 3 * time.Second}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestParseJson_MissingFilePanics(t *testing.T) {
	withArgs(t, "-config", filepath.Join(t.TempDir(), "absent.json"))
	assert.Panics(t, func() { parseJson(&Config{}) })
}

func TestParseFlags_Timeout(t *testing.T) {
	withArgs(t, "-t", "7", "-s", "x.db", "-unknown", "v")
	cfg := &Config{}
	cfg.LoadDefaults()
	parseFlags(cfg)

	assert.Equal(t, 7*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "x.db", cfg.SessionDB)
}
