package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"omnidesk/internal/constants"
	"omnidesk/internal/models"
)

var (
	ErrMissingDBPath      = models.ConfigError{Message: "missing database path"}
	ErrMissingTokenSecret = models.ConfigError{Message: "missing auth token secret"}
	ErrNoChannels         = models.ConfigError{Message: "channels array is required and must contain at least one channel"}
)

// LoadConfig reads, validates, and applies environment overrides to the
// configuration file at path.
func LoadConfig(path string) (*models.Config, error) {
	file, err := os.ReadFile(path) // #nosec G304 - operator-supplied config path
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	applyDefaults(&config)

	return &config, nil
}

func validate(c *models.Config) error {
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}
	if c.Auth.TokenSecret == "" {
		return ErrMissingTokenSecret
	}
	if len(c.Channels) == 0 {
		return ErrNoChannels
	}

	names := make(map[string]bool)
	for i, channel := range c.Channels {
		if channel.Name == "" {
			return models.ConfigError{Message: fmt.Sprintf("empty channel name in channel %d", i)}
		}
		if names[channel.Name] {
			return models.ConfigError{Message: fmt.Sprintf("duplicate channel name: %s", channel.Name)}
		}
		names[channel.Name] = true
	}

	return nil
}

func applyDefaults(c *models.Config) {
	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = constants.DefaultServerReadTimeoutSec
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = constants.DefaultServerWriteTimeoutSec
	}
	if c.Server.IdleTimeoutSec <= 0 {
		c.Server.IdleTimeoutSec = constants.DefaultServerIdleTimeoutSec
	}
	if c.Server.SweepIntervalSec <= 0 {
		c.Server.SweepIntervalSec = constants.DefaultSweepIntervalSec
	}
	if c.Realtime.AuthGraceSec <= 0 {
		c.Realtime.AuthGraceSec = constants.DefaultAuthGraceSec
	}
	if c.Realtime.HeartbeatSec <= 0 {
		c.Realtime.HeartbeatSec = constants.DefaultHeartbeatSec
	}
	if c.Realtime.SendBuffer <= 0 {
		c.Realtime.SendBuffer = constants.DefaultSendBufferSize
	}
	if c.Realtime.ReadLimit <= 0 {
		c.Realtime.ReadLimit = constants.DefaultReadLimitBytes
	}
	if c.Realtime.WriteTimeoutSec <= 0 {
		c.Realtime.WriteTimeoutSec = constants.DefaultWriteTimeoutSec
	}
	if c.Idempotency.TTLHours <= 0 {
		c.Idempotency.TTLHours = constants.DefaultIdempotencyTTLHours
	}
	if c.Presence.StaleAfterSec <= 0 {
		c.Presence.StaleAfterSec = constants.DefaultPresenceStaleSec
	}
	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultRetryBackoffMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultMaxBackoffMs
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultDatabaseRetryAttempts
	}
}

// applyEnvironmentOverrides lets deployment environments override file values
// without editing the config file. Secrets in particular are expected to come
// from the environment.
func applyEnvironmentOverrides(c *models.Config) {
	if v := os.Getenv("OMNIDESK_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("OMNIDESK_TOKEN_SECRET"); v != "" {
		c.Auth.TokenSecret = v
	}
	if v := os.Getenv("OMNIDESK_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("OMNIDESK_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Server.Port = port
		}
	}
	for i := range c.Channels {
		prefix := "OMNIDESK_CHANNEL_" + envName(c.Channels[i].Name)
		if v := os.Getenv(prefix + "_VERIFY_TOKEN"); v != "" {
			c.Channels[i].VerifyToken = v
		}
		if v := os.Getenv(prefix + "_WEBHOOK_SECRET"); v != "" {
			c.Channels[i].WebhookSecret = v
		}
	}
}

func envName(channel string) string {
	out := make([]byte, len(channel))
	for i := 0; i < len(channel); i++ {
		ch := channel[i]
		switch {
		case ch >= 'a' && ch <= 'z':
			out[i] = ch - 'a' + 'A'
		case ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
			out[i] = ch
		default:
			out[i] = '_'
		}
	}
	return string(out)
}
