package models

// Config holds the application configuration
type Config struct {
	Server      ServerConfig      `json:"server"`
	Database    DatabaseConfig    `json:"database"`
	Channels    []ChannelConfig   `json:"channels"`
	Realtime    RealtimeConfig    `json:"realtime"`
	Idempotency IdempotencyConfig `json:"idempotency"`
	Presence    PresenceConfig    `json:"presence"`
	Auth        AuthConfig        `json:"auth"`
	Retry       RetryConfig       `json:"retry"`
	Tracing     TracingConfig     `json:"tracing"`
	LogLevel    string            `json:"log_level"`
}

// ServerConfig holds HTTP server related configurations
type ServerConfig struct {
	Port             int `json:"port"`
	ReadTimeoutSec   int `json:"readTimeoutSec"`
	WriteTimeoutSec  int `json:"writeTimeoutSec"`
	IdleTimeoutSec   int `json:"idleTimeoutSec"`
	SweepIntervalSec int `json:"sweepIntervalSec"`
}

// DatabaseConfig holds database related configurations
type DatabaseConfig struct {
	Path string `json:"path"`
}

// ChannelConfig binds one provider channel to its webhook secrets.
type ChannelConfig struct {
	Name          string `json:"name"`
	VerifyToken   string `json:"verify_token"`
	WebhookSecret string `json:"webhook_secret"`
}

// RealtimeConfig holds realtime gateway configurations
type RealtimeConfig struct {
	AuthGraceSec    int `json:"authGraceSec"`
	HeartbeatSec    int `json:"heartbeatSec"`
	SendBuffer      int `json:"sendBuffer"`
	ReadLimit       int `json:"readLimitBytes"`
	WriteTimeoutSec int `json:"writeTimeoutSec"`
}

// IdempotencyConfig holds idempotency guard configurations
type IdempotencyConfig struct {
	TTLHours int `json:"ttlHours"`
}

// PresenceConfig holds presence registry configurations
type PresenceConfig struct {
	StaleAfterSec int `json:"staleAfterSec"`
}

// AuthConfig holds token verification configurations. Tokens are issued
// elsewhere; only the shared secret for verification lives here.
type AuthConfig struct {
	TokenSecret string `json:"token_secret"`
}

// RetryConfig holds retry related configurations
type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs"`
	MaxBackoffMs     int `json:"maxBackoffMs"`
	MaxAttempts      int `json:"maxAttempts"`
}

// TracingConfig holds OpenTelemetry configurations
type TracingConfig struct {
	ServiceName    string  `json:"service_name"`
	ServiceVersion string  `json:"service_version"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlp_endpoint"`
	SampleRate     float64 `json:"sample_rate"`
	Enabled        bool    `json:"enabled"`
	UseStdout      bool    `json:"use_stdout"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
