package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type NATSConfig struct {
	Enabled       bool         `mapstructure:"enabled"`
	Host          string       `mapstructure:"host"`
	Port          int          `mapstructure:"port"`
	SubjectPrefix string       `mapstructure:"subject_prefix"`
	Stream        StreamConfig `mapstructure:"stream"`
}

type StreamConfig struct {
	Name     string   `mapstructure:"name"`
	Subjects []string `mapstructure:"subjects"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StorageConfig selects where the key/value documents live: "file",
// "postgres" or "memory".
type StorageConfig struct {
	Driver        string        `mapstructure:"driver"`
	Dir           string        `mapstructure:"dir"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
}

type TemporalConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	HostPort  string `mapstructure:"hostport"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// BillingConfig holds the fallback hourly rates, keyed by station kind or
// table kind, and the time zone the daily reports are cut in.
type BillingConfig struct {
	DefaultRate int64            `mapstructure:"default_rate"`
	Rates       map[string]int64 `mapstructure:"rates"`
	Timezone    string           `mapstructure:"timezone"`
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Temporal TemporalConfig `mapstructure:"temporal"`
	Log      LogConfig      `mapstructure:"log"`
	Billing  BillingConfig  `mapstructure:"billing"`
}

func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.allowed_origins", []string{"*"})
	viper.SetDefault("server.shutdown_timeout", 10*time.Second)

	viper.SetDefault("storage.driver", "file")
	viper.SetDefault("storage.dir", "data")
	viper.SetDefault("storage.retry_interval", 2*time.Second)

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.sslmode", "disable")

	viper.SetDefault("nats.enabled", false)
	viper.SetDefault("nats.host", "localhost")
	viper.SetDefault("nats.port", 4222)
	viper.SetDefault("nats.subject_prefix", "gamecenter.events")
	viper.SetDefault("nats.stream.name", "GAMECENTER")
	viper.SetDefault("nats.stream.subjects", []string{"gamecenter.events.>"})

	viper.SetDefault("temporal.enabled", false)
	viper.SetDefault("temporal.hostport", "localhost:7233")
	viper.SetDefault("temporal.namespace", "default")
	viper.SetDefault("temporal.task_queue", "gamecenter-tournaments")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.pretty", false)

	viper.SetDefault("billing.default_rate", 0)
	viper.SetDefault("billing.timezone", "Local")
}

// LoadConfig reads config.yaml from the working directory, ./config or
// /etc/gamecenter and overlays GAMECENTER_* environment variables. A missing
// file is not an error; defaults apply.
func LoadConfig() (*Config, error) {
	setDefaults()
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/gamecenter")
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("gamecenter")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
