package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HIVE_API", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DEBUG", "")
	t.Setenv("LOG_LEVEL", "")

	cfg := Load()
	assert.Equal(t, DefaultHiveAPI, cfg.HiveAPI)
	assert.Equal(t, DefaultNetID, cfg.NetID)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.DBDialect)
	assert.Equal(t, DefaultHiveAPI+"/hafah-api", cfg.HafahURL())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HIVE_API", "http://hafah.local:3000/")
	t.Setenv("NET_ID", "vsc-testnet")
	t.Setenv("HTTP_TIMEOUT", "5s")
	t.Setenv("ELECTION_CACHE_SIZE", "16")
	t.Setenv("DEBUG", "1")
	t.Setenv("TUI", "yes")
	t.Setenv("STATUS_ADDR", "")
	t.Setenv("DATABASE_URL", "postgresql://indexer:secret@db:5432/vsc")

	cfg := Load()
	assert.Equal(t, "http://hafah.local:3000", cfg.HiveAPI)
	assert.Equal(t, "vsc-testnet", cfg.NetID)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 16, cfg.ElectionCacheSize)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.TUI)
	assert.Empty(t, cfg.StatusAddr)
	require.Equal(t, DatabaseSchemePostgres, cfg.DBDialect)
	assert.Equal(t, "postgresql://indexer:secret@db:5432/vsc", cfg.DBDsn)
}

func TestLoadRejectsUnknownScheme(t *testing.T) {
	t.Setenv("DATABASE_URL", "mongodb://localhost:27017")
	cfg := Load()
	assert.Empty(t, cfg.DBDialect)
	assert.Empty(t, cfg.DBDsn)
}

func TestLoadRejectsMissingHost(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres:///vsc")
	assert.Empty(t, Load().DBDsn)

	t.Setenv("DATABASE_URL", "postgres:///vsc?host=/var/run/postgresql")
	assert.Equal(t, "postgres:///vsc?host=/var/run/postgresql", Load().DBDsn)
}

func TestGetenvBool(t *testing.T) {
	for in, want := range map[string]bool{"1": true, "TRUE": true, "on": true, "yes": true, "0": false, "off": false, "no": false} {
		t.Setenv("TUI", in)
		assert.Equal(t, want, getenvBool("TUI", !want), "input %q", in)
	}
	t.Setenv("TUI", "maybe")
	assert.True(t, getenvBool("TUI", true))
}

func TestDebugStringMasksPassword(t *testing.T) {
	cfg := Config{DBDialect: DatabaseSchemePostgres, DBDsn: "postgres://indexer:secret@db:5432/vsc"}
	s := cfg.DebugString()
	assert.NotContains(t, s, "secret")
	assert.Contains(t, s, "indexer:xxxxx@db:5432/vsc")

	cfg.DBDsn = "host=db user=indexer password=secret dbname=vsc"
	assert.NotContains(t, cfg.DebugString(), "secret")
}
