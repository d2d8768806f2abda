package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()

	assert.Equal(t, ModeHTTP, c.Mode)
	assert.Equal(t, 30000, c.Timeout)
	assert.True(t, c.GetFollowRedirects())
	assert.True(t, c.GetValidateSSL())
	assert.False(t, c.GetVerbose())
	assert.NoError(t, c.Validate())
}

func TestParse(t *testing.T) {
	t.Setenv("TESTCLIENT_TOKEN", "secret")

	c, err := Parse([]byte(`
mode: kernel
baseURL: http://app.test
timeout: 500
followRedirects: false
headers:
  Authorization: Bearer ${TESTCLIENT_TOKEN}
fixtures:
  - routes.yaml
`))
	require.NoError(t, err)

	assert.Equal(t, ModeKernel, c.Mode)
	assert.Equal(t, "http://app.test", c.BaseURL)
	assert.Equal(t, 500, c.Timeout)
	assert.False(t, c.GetFollowRedirects())
	assert.True(t, c.GetValidateSSL())
	assert.Equal(t, "Bearer secret", c.Headers["Authorization"])
	assert.Equal(t, []string{"routes.yaml"}, c.Fixtures)
	assert.Equal(t, int64(500), c.TimeoutDuration().Milliseconds())
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("mode: [unterminated"))
	assert.Error(t, err)
}

func TestFindAndLoadConfig(t *testing.T) {
	t.Run("no file returns defaults", func(t *testing.T) {
		c, err := FindAndLoadConfig(t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), c)
	})

	t.Run("fixtures resolved relative to config", func(t *testing.T) {
		dir := t.TempDir()
		content := "mode: kernel\nfixtures:\n  - fixtures/app.yaml\n  - /abs/app.yaml\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".testclient.yaml"), []byte(content), 0644))

		c, err := FindAndLoadConfig(dir)
		require.NoError(t, err)
		assert.Equal(t, []string{filepath.Join(dir, "fixtures/app.yaml"), "/abs/app.yaml"}, c.Fixtures)
	})
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr string
	}{
		{
			name:    "unknown mode",
			config:  &Config{Mode: "grpc"},
			wantErr: "unknown mode",
		},
		{
			name:    "kernel without fixtures",
			config:  &Config{Mode: ModeKernel},
			wantErr: "requires at least one fixtures file",
		},
		{
			name:    "negative timeout",
			config:  &Config{Mode: ModeHTTP, Timeout: -1},
			wantErr: "timeout",
		},
		{
			name:   "kernel with fixtures",
			config: &Config{Mode: ModeKernel, Fixtures: []string{"a.yaml"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMerge(t *testing.T) {
	base := DefaultConfig()
	base.Headers = map[string]string{"X-Base": "1", "X-Shared": "base"}

	merged := base.Merge(&Config{
		Mode:            ModeKernel,
		FollowRedirects: BoolPtr(false),
		Headers:         map[string]string{"X-Shared": "other"},
	})

	assert.Equal(t, ModeKernel, merged.Mode)
	assert.False(t, merged.GetFollowRedirects())
	assert.Equal(t, 30000, merged.Timeout)
	assert.Equal(t, map[string]string{"X-Base": "1", "X-Shared": "other"}, merged.Headers)
	assert.Equal(t, "base", base.Headers["X-Shared"], "merge must not mutate the receiver")

	assert.Same(t, base, base.Merge(nil))
}

func TestSaveConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "testclient.yaml")
	c := DefaultConfig()
	c.BaseURL = "http://saved.test"

	require.NoError(t, c.SaveConfig(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://saved.test", loaded.BaseURL)
	assert.Equal(t, c.Mode, loaded.Mode)
}
