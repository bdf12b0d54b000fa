package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/karousn/sftpbridge/pkg/validator"
)

// Config represents the runtime configuration for the sftpbridge agent.
type Config struct {
	Agent       AgentConfig       `mapstructure:"agent"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Vault       VaultConfig       `mapstructure:"vault"`
	Transport   TransportConfig   `mapstructure:"transport"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Jobs        []JobConfig       `mapstructure:"jobs" validate:"dive"`
}

// AgentConfig controls logging and how transfer jobs are scheduled.
type AgentConfig struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	// Schedule is a cron specification; empty means run the configured
	// jobs once and exit.
	Schedule string `mapstructure:"schedule"`
	// FailOnInvalidCredentials aborts a job whose credential set fails
	// shape validation instead of attempting the connection anyway.
	FailOnInvalidCredentials bool `mapstructure:"fail_on_invalid_credentials"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
	MySQL    DBAuthConfig `mapstructure:"mysql"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// VaultConfig documents encryption requirements for stored account secrets.
type VaultConfig struct {
	EncryptionKey string `mapstructure:"encryption_key"`
	Algorithm     string `mapstructure:"algorithm"`
}

// TransportConfig tunes the SSH transport used for every session.
type TransportConfig struct {
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	DefaultPort int           `mapstructure:"default_port" validate:"omitempty,min=1,max=65535"`
	MaxPacket   int           `mapstructure:"max_packet"`
	// KnownHostsFile enforces host key verification when set; without it
	// the remote key is accepted unverified.
	KnownHostsFile string `mapstructure:"known_hosts_file"`
}

// MaintenanceConfig controls retention cleanup of the error log.
type MaintenanceConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	RetentionDays int    `mapstructure:"retention_days" validate:"omitempty,min=1"`
	Schedule      string `mapstructure:"schedule"`
}

// JobConfig describes one remote account and the transfer steps to run
// against it.
type JobConfig struct {
	Name    string        `mapstructure:"name" validate:"required"`
	Account AccountConfig `mapstructure:"account"`
	Steps   []StepConfig  `mapstructure:"steps" validate:"min=1,dive"`
}

// AccountConfig carries the remote account fields a job connects with.
// Host may be "name" or "name:port"; a bare name gets the transport's
// default port.
type AccountConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Username string `mapstructure:"username" validate:"required"`
	Password string `mapstructure:"password"`
	Options  string `mapstructure:"options"`
	// Encrypted marks Password as a vault ciphertext to decrypt before
	// connecting.
	Encrypted        bool   `mapstructure:"encrypted"`
	Secure           bool   `mapstructure:"secure"`
	DefaultDirectory string `mapstructure:"default_directory"`
}

// StepConfig is one operation within a job.
type StepConfig struct {
	Action string `mapstructure:"action" validate:"required,oneof=upload upload_string download download_string mkdir remove rmdir touch chmod rename list"`
	Remote string `mapstructure:"remote"`
	Local  string `mapstructure:"local"`
	// Content is the payload of an upload_string step.
	Content string `mapstructure:"content"`
	// Target is the destination path of a rename step.
	Target string `mapstructure:"target"`
	// Mode is the octal permission string of a chmod step.
	Mode      string `mapstructure:"mode"`
	Recursive bool   `mapstructure:"recursive"`
}

// LoadConfig initialises agent configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("SFTPBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := validator.ValidateStruct(&config); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("agent.log_level", "info")
	v.SetDefault("agent.log_format", "json")
	v.SetDefault("agent.schedule", "")
	v.SetDefault("agent.fail_on_invalid_credentials", false)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/sftpbridge.sqlite")

	v.SetDefault("vault.algorithm", "aes-256-gcm")

	v.SetDefault("transport.dial_timeout", "10s")
	v.SetDefault("transport.default_port", 22)

	v.SetDefault("maintenance.enabled", true)
	v.SetDefault("maintenance.retention_days", 90)
	v.SetDefault("maintenance.schedule", "@daily")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
