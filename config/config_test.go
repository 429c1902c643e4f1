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
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, 30*time.Second, cfg.CascadeCollectionTimeout)
	assert.Equal(t, 100*time.Millisecond, cfg.BulkRepairDelay)
	assert.Equal(t, 0, cfg.SearchMaxResults)

	targets, err := cfg.CascadeTargets()
	require.NoError(t, err)
	require.Len(t, targets, 5)
	assert.Equal(t, "rewards", targets[0].Name)
	assert.Equal(t, []string{"guestPhone", "guestPhoneNumber"}, targets[0].ForeignKeys)
}

func TestLoad_EnvFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "test.env")
	content := "CASCADE_COLLECTIONS=rewards,receipts\n" +
		"CASCADE_FOREIGN_KEYS=receipts=guestPhoneNumber\n" +
		"BULK_REPAIR_DELAY=250ms\n" +
		"STRICT_IDENTITY_CREATE=true\n"
	require.NoError(t, os.WriteFile(file, []byte(content), 0o600))
	for _, key := range []string{"CASCADE_COLLECTIONS", "CASCADE_FOREIGN_KEYS", "BULK_REPAIR_DELAY", "STRICT_IDENTITY_CREATE"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	cfg, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.BulkRepairDelay)
	assert.True(t, cfg.StrictIdentityCreate)

	targets, err := cfg.CascadeTargets()
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, []string{"guestPhoneNumber"}, targets[1].ForeignKeys)
}

func TestConfig_Validate(t *testing.T) {
	base := func() Config {
		return Config{StoreDriver: "memory", CascadeCollections: []string{"rewards"}}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "unknown driver", mutate: func(c *Config) { c.StoreDriver = "sqlite" }, wantErr: true},
		{name: "postgres without host", mutate: func(c *Config) { c.StoreDriver = "postgres" }, wantErr: true},
		{name: "auth without issuer", mutate: func(c *Config) { c.AuthEnabled = true }, wantErr: true},
		{name: "bad foreign keys", mutate: func(c *Config) { c.CascadeForeignKeys = "receipts" }, wantErr: true},
		{name: "no collections", mutate: func(c *Config) { c.CascadeCollections = []string{" "} }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
