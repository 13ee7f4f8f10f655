package testutil

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTestDBConfig(t *testing.T) {
	t.Run("defaults to local test database port 55432", func(t *testing.T) {
		for _, key := range []string{"TEST_DB_HOST", "TEST_DB_PORT", "TEST_DB_USER", "TEST_DB_PASSWORD", "TEST_DB_NAME", "DB_SSL_MODE"} {
			t.Setenv(key, "")
		}
		assert.Equal(t, TestDBConfig{
			Host:     "localhost",
			Port:     "55432",
			User:     "renderjobs",
			Password: "renderjobs",
			DBName:   "renderjobs",
			SSLMode:  "disable",
		}, DefaultTestDBConfig())
	})

	t.Run("respects TEST_DB environment variables", func(t *testing.T) {
		t.Setenv("TEST_DB_HOST", "postgres")
		t.Setenv("TEST_DB_PORT", "5432")
		cfg := DefaultTestDBConfig()
		assert.Equal(t, "postgres", cfg.Host)
		assert.Equal(t, "5432", cfg.Port)
	})
}

func TestTestDBConfig_DSN(t *testing.T) {
	cfg := TestDBConfig{Host: "db", Port: "5432", User: "u", Password: "p@ss/word", DBName: "render", SSLMode: "disable"}

	u, err := url.Parse(cfg.DSN(""))
	require.NoError(t, err)
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss/word", pw)
	assert.Equal(t, "db:5432", u.Host)
	assert.Equal(t, "/render", u.Path)
	assert.Empty(t, u.Query().Get("search_path"))

	u, err = url.Parse(cfg.DSN("t_abcd1234"))
	require.NoError(t, err)
	assert.Equal(t, "t_abcd1234,public", u.Query().Get("search_path"))
}

func TestNewSchemaName(t *testing.T) {
	name := newSchemaName()
	assert.Regexp(t, `^t_[0-9a-f]+$`, name)
	assert.NotEqual(t, name, newSchemaName())
}

func TestEnvBool(t *testing.T) {
	for value, want := range map[string]bool{"1": true, "TRUE": true, "y": true, "no": false, "": false} {
		t.Setenv("TESTUTIL_FLAG", value)
		assert.Equal(t, want, envBool("TESTUTIL_FLAG"), "value %q", value)
	}
}
