package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, path, err := Load()
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:5173", "http://127.0.0.1:5173"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 15*time.Minute, cfg.Holds.TTL)
	assert.Equal(t, 10*time.Minute, cfg.Waitlist.OfferWindow)
	assert.Equal(t, 1, cfg.Waitlist.MaxMissedOffers)
	assert.Equal(t, "skip", cfg.Waitlist.Fairness)
	assert.Empty(t, cfg.Database.URL)
}

func TestLoad_EnvFileDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PORT=9090\nOFFER_WINDOW=2m\n"), 0o600))
	nested := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	t.Chdir(nested)
	t.Setenv("OFFER_WINDOW", "30s")
	// godotenv sets PORT in the process; register it so it is restored.
	t.Setenv("PORT", "")
	require.NoError(t, os.Unsetenv("PORT"))

	cfg, path, err := Load()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ".env"), path)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Waitlist.OfferWindow)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := Config{
		Server:   ServerConfig{Port: "8080"},
		Holds:    HoldsConfig{TTL: time.Minute, MaxTTL: time.Hour},
		Waitlist: WaitlistConfig{OfferWindow: time.Minute, MaxMissedOffers: 1},
		Reaper:   ReaperConfig{Interval: time.Second, Batch: 10},
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero ttl", func(c *Config) { c.Holds.TTL = 0 }},
		{"max below ttl", func(c *Config) { c.Holds.MaxTTL = time.Second }},
		{"zero offer window", func(c *Config) { c.Waitlist.OfferWindow = 0 }},
		{"no missed offers allowed", func(c *Config) { c.Waitlist.MaxMissedOffers = 0 }},
		{"zero reaper batch", func(c *Config) { c.Reaper.Batch = 0 }},
		{"negative rps", func(c *Config) { c.Limits.RPS = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
