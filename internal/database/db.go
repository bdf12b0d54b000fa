package database

import (
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"
)

// Config contains database connection options.
type Config struct {
	Driver   string            // sqlite (default), postgres or mysql
	Path     string            // SQLite database path when Driver == sqlite
	DSN      string            // Optional DSN override
	Host     string            // Server host for postgres and mysql
	Port     int               // Server port for postgres and mysql
	Name     string            // Database name for postgres and mysql
	User     string            // Database user for postgres and mysql
	Password string            // Database password for postgres and mysql
	Options  map[string]string // Extra driver-specific DSN options
}

// Open initialises a gorm.DB using the provided configuration.
func Open(cfg Config) (*gorm.DB, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = "sqlite"
	}

	switch driver {
	case "sqlite":
		return openSQLite(cfg)
	case "postgres":
		return openPostgres(cfg)
	case "mysql":
		return openMySQL(cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func sortedOptionKeys(options map[string]string) []string {
	keys := make([]string, 0, len(options))
	for key := range options {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
