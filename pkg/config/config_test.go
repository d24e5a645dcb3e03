package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 100, cfg.Reddit.PostLimit)
	assert.Equal(t, 60*time.Second, cfg.Download.RetryInterval)
	assert.Equal(t, "{REDDITOR}_{TITLE}_{POSTID}", cfg.Output.FileScheme)
	assert.Equal(t, "json", cfg.Archive.Format)
}

func TestLoadFromFile(t *testing.T) {
	content := `
reddit:
  client_id: file-id
  post_limit: 25
download:
  no_duplicates: true
  excluded_extensions:
    - .mp4
output:
  base_directory: /tmp/out
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "file-id", cfg.Reddit.ClientID)
	assert.Equal(t, 25, cfg.Reddit.PostLimit)
	assert.True(t, cfg.Download.NoDuplicates)
	assert.Equal(t, []string{".mp4"}, cfg.Download.ExcludedExtensions)
	assert.Equal(t, "/tmp/out", cfg.Output.BaseDirectory)
	// Untouched sections keep their defaults.
	assert.Equal(t, "{SUBREDDIT}", cfg.Output.FolderScheme)
}

func TestLoadFromFileMissingIsNotAnError(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml")))

	// An empty path with no file in the standard locations is fine.
	t.Setenv("HOME", t.TempDir())
	cwd, err := os.Getwd()
	require.NoError(t, err)
	defer os.Chdir(cwd)
	require.NoError(t, os.Chdir(t.TempDir()))
	assert.NoError(t, cfg.LoadFromFile(""))
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("REDGRAB_CLIENT_ID", "env-id")
	t.Setenv("REDGRAB_OUTPUT_DIR", "/env/out")
	t.Setenv("REDGRAB_MAX_WAIT_TIME", "90s")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "env-id", cfg.Reddit.ClientID)
	assert.Equal(t, "/env/out", cfg.Output.BaseDirectory)
	assert.Equal(t, 90*time.Second, cfg.Download.MaxWaitTime)
}

func TestLoadFromEnvRejectsBadValues(t *testing.T) {
	t.Setenv("REDGRAB_MAX_WAIT_TIME", "not-a-duration")
	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromEnv())

	t.Setenv("REDGRAB_MAX_WAIT_TIME", "")
	t.Setenv("REDGRAB_SCAN_WORKERS", "zero")
	cfg = DefaultConfig()
	assert.Error(t, cfg.LoadFromEnv())
}

func TestApplyFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.applyFlags(map[string]interface{}{
		"output":        "/flag/out",
		"hard-link":     true,
		"max-wait-time": 30 * time.Second,
		"skip-domain":   []string{"imgur.com"},
	})

	assert.Equal(t, "/flag/out", cfg.Output.BaseDirectory)
	assert.True(t, cfg.Download.HardLink)
	assert.Equal(t, 30*time.Second, cfg.Download.MaxWaitTime)
	assert.Equal(t, []string{"imgur.com"}, cfg.Download.ExcludedDomains)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing output dir", func(c *Config) { c.Output.BaseDirectory = "" }, "output directory"},
		{"missing file scheme", func(c *Config) { c.Output.FileScheme = "" }, "file name scheme"},
		{"non-positive wait", func(c *Config) { c.Download.MaxWaitTime = 0 }, "max wait time"},
		{"conflicting dedup policies", func(c *Config) {
			c.Download.NoDuplicates = true
			c.Download.HardLink = true
		}, "mutually exclusive"},
		{"bad archive format", func(c *Config) { c.Archive.Format = "xml" }, "archive format"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
