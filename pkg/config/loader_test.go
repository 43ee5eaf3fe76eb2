package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribehub/subscriptionkit/pkg/config"
)

type serverConfig struct {
	Host string `env:"TEST_SERVER_HOST" envDefault:"localhost"`
	Port int    `env:"TEST_SERVER_PORT" envDefault:"8080"`
}

type strictConfig struct {
	Token string `env:"TEST_STRICT_TOKEN,required"`
}

func TestLoad(t *testing.T) {
	t.Run("defaults applied", func(t *testing.T) {
		config.Reset()

		var cfg serverConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, "localhost", cfg.Host)
		assert.Equal(t, 8080, cfg.Port)
	})

	t.Run("reads environment", func(t *testing.T) {
		config.Reset()
		t.Setenv("TEST_SERVER_HOST", "db.internal")
		t.Setenv("TEST_SERVER_PORT", "9090")

		var cfg serverConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, "db.internal", cfg.Host)
		assert.Equal(t, 9090, cfg.Port)
	})

	t.Run("cached per type", func(t *testing.T) {
		config.Reset()
		t.Setenv("TEST_SERVER_HOST", "first")

		var cfg serverConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, "first", cfg.Host)

		t.Setenv("TEST_SERVER_HOST", "second")

		var again serverConfig
		require.NoError(t, config.Load(&again))
		assert.Equal(t, "first", again.Host)
	})

	t.Run("missing required variable", func(t *testing.T) {
		config.Reset()

		var cfg strictConfig
		err := config.Load(&cfg)
		require.Error(t, err)
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})

	t.Run("nil pointer", func(t *testing.T) {
		err := config.Load[serverConfig](nil)
		assert.ErrorIs(t, err, config.ErrNilPointer)
	})
}

func TestMustLoad(t *testing.T) {
	config.Reset()

	assert.Panics(t, func() {
		var cfg strictConfig
		config.MustLoad(&cfg)
	})
}
