package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DatabaseSchemePostgres is the postgres database scheme identifier
	DatabaseSchemePostgres = "postgres"

	DefaultHiveAPI = "https://techcoderx.com"
	DefaultNetID   = "vsc-mainnet"
)

type Config struct {
	HiveAPI           string        // chain-history API base URL, without the /hafah-api suffix
	NetID             string        // network id expected in election payloads
	HTTPTimeout       time.Duration // per-request timeout for the chain-history API
	DBDialect         string        // postgres only
	DBDsn             string        // DSN string passed to GORM driver
	StatusAddr        string        // listen address for /healthz, /status and /metrics; empty disables
	ElectionCacheSize int           // elections kept in the by-epoch LRU
	LogLevel          string
	LogEncoding       string
	TUI               bool // if true: progress dashboard on the terminal, logs go to indexer.log
	Debug             bool
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// getenvBool accepts strconv.ParseBool spellings plus yes/no and on/off.
func getenvBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "":
		return def
	case "yes", "on":
		return true
	case "no", "off":
		return false
	default:
		v, err := strconv.ParseBool(os.Getenv(key))
		if err != nil {
			return def
		}
		return v
	}
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}

// parsePostgresURL validates DATABASE_URL. Only URL-form postgres DSNs are
// accepted; the server comes from the authority or a host query parameter
// (unix sockets).
func parsePostgresURL(databaseURL string) (string, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case DatabaseSchemePostgres, "postgresql":
	default:
		return "", fmt.Errorf("unsupported DATABASE_URL scheme %q", u.Scheme)
	}
	if u.Host == "" && u.Query().Get("host") == "" {
		return "", errors.New("DATABASE_URL has no host")
	}
	return databaseURL, nil
}

func Load() Config {
	cfg := Config{
		HiveAPI:           strings.TrimSuffix(getenv("HIVE_API", DefaultHiveAPI), "/"),
		NetID:             getenv("NET_ID", DefaultNetID),
		HTTPTimeout:       getenvDuration("HTTP_TIMEOUT", 30*time.Second),
		StatusAddr:        getenv("STATUS_ADDR", ":9100"),
		ElectionCacheSize: getenvInt("ELECTION_CACHE_SIZE", 256),
		LogLevel:          getenv("LOG_LEVEL", "info"),
		LogEncoding:       getenv("LOG_ENCODING", "json"),
		TUI:               getenvBool("TUI", false),
		Debug:             getenvBool("DEBUG", false),
	}
	if v, ok := os.LookupEnv("STATUS_ADDR"); ok && strings.TrimSpace(v) == "" {
		cfg.StatusAddr = ""
	}
	if cfg.Debug {
		cfg.LogLevel = "debug"
	}

	if dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL")); dbURL != "" {
		if dsn, err := parsePostgresURL(dbURL); err == nil {
			cfg.DBDialect = DatabaseSchemePostgres
			cfg.DBDsn = dsn
		} else {
			fmt.Fprintf(os.Stderr, "warning: invalid DATABASE_URL: %v\n", err)
		}
	}

	return cfg
}

// HafahURL is the base of the chain-history REST API.
func (c Config) HafahURL() string {
	return c.HiveAPI + "/hafah-api"
}

func (c Config) String() string {
	return fmt.Sprintf("hive=%s net=%s db=%s", c.HiveAPI, c.NetID, c.DBDialect)
}

// DebugString returns a human-friendly configuration string with masked secrets.
func (c Config) DebugString() string {
	return fmt.Sprintf(
		"hive=%s net=%s timeout=%s db=%s dsn=%s status=%s tui=%t",
		c.HiveAPI,
		c.NetID,
		c.HTTPTimeout,
		c.DBDialect,
		maskDSN(c.DBDsn),
		c.StatusAddr,
		c.TUI,
	)
}

// maskDSN hides the password of a URL DSN. Anything unparsable is hidden
// entirely.
func maskDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		return "***"
	}
	return u.Redacted()
}
