package producer

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"batchpub/internal/pub"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "batch size one", mutate: func(c *Config) { c.BatchSize = 1 }},
		{name: "zero batch size", mutate: func(c *Config) { c.BatchSize = 0 }, wantErr: true},
		{name: "negative capacity", mutate: func(c *Config) { c.QueueCapacity = -1 }, wantErr: true},
		{name: "negative flush timeout", mutate: func(c *Config) { c.FlushTimeout = -time.Second }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(&c)

			err := c.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, pub.ErrInvalidConfig)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestConfig_FromEnv(t *testing.T) {
	t.Setenv("PRODUCER_BATCH_SIZE", "25")
	t.Setenv("PRODUCER_QUEUE_CAPACITY", "1000")
	t.Setenv("PRODUCER_FLUSH_TIMEOUT", "2s")

	var c Config
	require.NoError(t, env.Parse(&c))

	assert.Equal(t, 25, c.BatchSize)
	assert.Equal(t, 1000, c.QueueCapacity)
	assert.Equal(t, 2*time.Second, c.FlushTimeout)
	assert.Equal(t, 10*time.Second, c.ErrorLogWindow)
	assert.Equal(t, 3, c.ErrorLogBurst)
	require.NoError(t, c.Validate())
}

func TestConfig_EnvDefaultsMatchDefaultConfig(t *testing.T) {
	var c Config
	require.NoError(t, env.Parse(&c))
	assert.Equal(t, DefaultConfig(), c)
}
