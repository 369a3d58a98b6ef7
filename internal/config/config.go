package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMongo  = "mongo"
	StoreSQLite = "sqlite"
)

type Config struct {
	Addr          string
	Store         string
	MongoURI      string
	MongoDatabase string
	SQLitePath    string
	StoreTimeout  time.Duration
	AuditJoins    bool
	LogLevel      string
	LogFormat     string
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first when present.
func Load() Config {
	_ = godotenv.Load()

	addr := envString("ECOTRAC_ADDR", "")
	if addr == "" {
		addr = ":" + envString("PORT", "3000")
	}

	cfg := Config{
		Addr:          addr,
		Store:         strings.ToLower(envString("ECOTRAC_STORE", StoreMongo)),
		MongoURI:      envString("MONGODB_URI", ""),
		MongoDatabase: envString("MONGODB_DATABASE", "ecoTracdb"),
		SQLitePath:    envString("ECOTRAC_SQLITE_PATH", "ecotrac.db"),
		StoreTimeout:  envDuration("ECOTRAC_STORE_TIMEOUT", 10*time.Second),
		AuditJoins:    envBool("ECOTRAC_AUDIT_JOINS", true),
		LogLevel:      envString("LOG_LEVEL", "info"),
		LogFormat:     envString("LOG_FORMAT", "json"),
	}
	if cfg.MongoURI == "" {
		cfg.MongoURI = mongoURI(
			os.Getenv("DB_USER"),
			os.Getenv("DB_PASS"),
			envString("MONGODB_HOST", "cluster0.xhgpsyg.mongodb.net"),
		)
	}
	return cfg
}

func (c Config) Validate() error {
	switch c.Store {
	case StoreMongo:
		if c.MongoURI == "" {
			return errors.New("config: DB_USER and DB_PASS (or MONGODB_URI) are required for the mongo store")
		}
		if c.MongoDatabase == "" {
			return errors.New("config: MONGODB_DATABASE must not be empty")
		}
	case StoreSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return errors.New("config: ECOTRAC_SQLITE_PATH must not be empty")
		}
	default:
		return fmt.Errorf("config: unknown ECOTRAC_STORE %q (want %s or %s)", c.Store, StoreMongo, StoreSQLite)
	}
	return nil
}

// MongoURIRedacted returns the connection string with the password masked.
func (c Config) MongoURIRedacted() string {
	u, err := url.Parse(c.MongoURI)
	if err != nil {
		return "<unparseable>"
	}
	return u.Redacted()
}

func mongoURI(user, pass, host string) string {
	if user == "" || pass == "" {
		return ""
	}
	u := url.URL{
		Scheme:   "mongodb+srv",
		User:     url.UserPassword(user, pass),
		Host:     host,
		Path:     "/",
		RawQuery: "appName=Cluster0",
	}
	return u.String()
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
