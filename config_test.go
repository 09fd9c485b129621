package ember

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestLoadConfigFile(t *testing.T) {
	for _, tc := range []struct {
		name    string
		content string
	}{
		{
			"config.json",
			`{
				"host": "127.0.0.1",
				"minifier_enabled": true,
				"read_timeout": "5s"
			}`,
		},
		{
			"config.toml",
			"host = \"127.0.0.1\"\n" +
				"minifier_enabled = true\n" +
				"read_timeout = \"5s\"\n",
		},
		{
			"config.yaml",
			"host: 127.0.0.1\n" +
				"minifier_enabled: true\n" +
				"read_timeout: 5s\n",
		},
		{
			"config.ini",
			"host = 127.0.0.1\n" +
				"minifier_enabled = true\n" +
				"read_timeout = 5s\n",
		},
	} {
		s := New()
		s.ConfigFile = writeConfigFile(t, tc.name, tc.content)

		require.NoError(t, s.loadConfigFile(), tc.name)
		assert.Equal(t, "127.0.0.1", s.Host, tc.name)
		assert.True(t, s.MinifierEnabled, tc.name)
		assert.Equal(t, 5*time.Second, s.ReadTimeout, tc.name)
	}
}

func TestLoadConfigFileErrors(t *testing.T) {
	s := New()
	s.ConfigFile = filepath.Join(t.TempDir(), "missing.toml")
	assert.Error(t, s.loadConfigFile())

	s = New()
	s.ConfigFile = writeConfigFile(t, "config.conf", "whatever")
	err := s.loadConfigFile()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported configuration file")

	s = New()
	s.ConfigFile = writeConfigFile(t, "config.json", "{broken")
	assert.Error(t, s.loadConfigFile())
}

func TestLoadConfigFileEmpty(t *testing.T) {
	s := New()
	require.NoError(t, s.loadConfigFile())
	assert.Equal(t, "localhost", s.Host)
}

func TestStartAppliesConfigFile(t *testing.T) {
	s := New()
	s.Logger = newTestLogger()
	s.ConfigFile = writeConfigFile(
		t,
		"config.toml",
		"host = \"127.0.0.1\"\n",
	)

	port, err := s.Start(0)
	require.NoError(t, err)
	assert.NotZero(t, port)
	assert.Equal(t, "127.0.0.1", s.Host)
	require.NoError(t, s.Stop())
}
