package constants

// Default server configuration values
const (
	DefaultServerPort            = 8084
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
	DefaultGracefulShutdownSec   = 30
	ServerErrorChannelSize       = 1
)

// Default database configuration values
const (
	DefaultDatabaseRetryAttempts = 3
	DefaultRetryBackoffMs        = 1000
	DefaultMaxBackoffMs          = 60000
)

// Default realtime gateway values
const (
	DefaultAuthGraceSec    = 10
	DefaultHeartbeatSec    = 30
	DefaultSendBufferSize  = 64
	DefaultReadLimitBytes  = 32 * 1024
	DefaultWriteTimeoutSec = 10
)

// Default sweep configuration values
const (
	DefaultSweepIntervalSec    = 60
	DefaultPresenceStaleSec    = 120
	DefaultIdempotencyTTLHours = 24
)

// Ingestion limits
const (
	DefaultMaxWebhookBodyBytes = 1 << 20
)
