package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 100*time.Second, cfg.TimeoutDuration())
	assert.True(t, cfg.GetFollowRedirects())
	assert.True(t, cfg.GetValidateSSL())
	assert.False(t, cfg.GetParallel())
	assert.False(t, cfg.GetFailFast())
	assert.False(t, cfg.GetStrictAll())
	assert.Equal(t, "console", cfg.Output)
	assert.NoError(t, cfg.Validate())
}

func TestFindAndLoadConfig(t *testing.T) {
	dir := t.TempDir()
	content := `{
		"timeout": 5000,
		"strictAll": true,
		"rate": 2.5,
		"targets": {"dogs": "http://localhost:8080/api"}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".apicheck.json"), []byte(content), 0644))

	cfg, err := FindAndLoadConfig(dir)

	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.TimeoutDuration())
	assert.True(t, cfg.GetStrictAll())
	assert.Equal(t, 2.5, cfg.Rate)
	assert.True(t, cfg.GetFollowRedirects(), "defaults survive for unset keys")
	u, ok := cfg.TargetURL("dogs")
	assert.True(t, ok)
	assert.Equal(t, "http://localhost:8080/api", u)
	_, ok = cfg.TargetURL("brewery")
	assert.False(t, ok)
}

func TestFindAndLoadConfig_NoFile(t *testing.T) {
	cfg, err := FindAndLoadConfig(t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")

	require.NoError(t, os.WriteFile(path, []byte(`{"output": "pdf"}`), 0644))
	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "unknown output format")

	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0644))
	_, err = LoadConfig(path)
	assert.ErrorContains(t, err, "parsing config")
}

func TestMerge(t *testing.T) {
	base := DefaultConfig()
	base.Headers = map[string]string{"Accept": "application/json"}
	base.Targets = map[string]string{"dogs": "https://dog.ceo/api"}

	merged := base.Merge(&Config{
		Timeout:  2000,
		Parallel: BoolPtr(true),
		Headers:  map[string]string{"X-Trace": "1"},
		Targets:  map[string]string{"dogs": "http://127.0.0.1:9000"},
	})

	assert.Equal(t, 2000, merged.Timeout)
	assert.True(t, merged.GetParallel())
	assert.False(t, merged.GetFailFast())
	assert.Equal(t, map[string]string{"Accept": "application/json", "X-Trace": "1"}, merged.Headers)
	assert.Equal(t, "http://127.0.0.1:9000", merged.Targets["dogs"])
	assert.Equal(t, "https://dog.ceo/api", base.Targets["dogs"], "base is not mutated")
	assert.Same(t, base, base.Merge(nil))
}

func TestSaveConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apicheck.config.json")
	cfg := DefaultConfig()
	cfg.History = "runs.db"

	require.NoError(t, cfg.SaveConfig(path))
	loaded, err := LoadConfig(path)

	require.NoError(t, err)
	assert.Equal(t, "runs.db", loaded.History)
}
