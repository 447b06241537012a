package config

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

const (
	StorageFile     = "file"
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

func (cfg *Config) Validate() error {
	switch cfg.Storage.Driver {
	case StorageFile, StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	if cfg.Billing.DefaultRate < 0 {
		return fmt.Errorf("billing.default_rate must not be negative")
	}
	for k, v := range cfg.Billing.Rates {
		if v < 0 {
			return fmt.Errorf("billing.rates.%s must not be negative", k)
		}
	}
	if _, err := cfg.Location(); err != nil {
		return err
	}
	return nil
}

func (cfg *Config) Addr() string {
	return ":" + cfg.Server.Port
}

func (cfg *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
}

func (cfg *NATSConfig) URL() string {
	return "nats://" + net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
}

// Location is the time zone daily reports are cut in.
func (cfg *Config) Location() (*time.Location, error) {
	tz := cfg.Billing.Timezone
	if tz == "" || tz == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("billing.timezone: %w", err)
	}
	return loc, nil
}
