// Save as: internal/config/environment.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port         int
	DBPath       string
	SyncInterval time.Duration
}

func GetConfig() Config {
	config := Config{
		Port:         8080, // default port
		DBPath:       "data/memcal.db",
		SyncInterval: 5 * time.Minute,
	}

	// Override with environment variables if present
	if port := os.Getenv("MEMCAL_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Port = p
		}
	}

	if dbPath := os.Getenv("MEMCAL_DB_PATH"); dbPath != "" {
		config.DBPath = dbPath
	}

	// Sweep interval in seconds, matching the SYNC_INTERVAL convention
	if interval := os.Getenv("MEMCAL_SYNC_INTERVAL"); interval != "" {
		if secs, err := strconv.Atoi(interval); err == nil && secs > 0 {
			config.SyncInterval = time.Duration(secs) * time.Second
		}
	}

	return config
}

func (c Config) GetAddress() string {
	return fmt.Sprintf(":%d", c.Port)
}
