// Package constants defines application-wide constants for timeouts, limits, and durations.
package constants

import "time"

// Time-related constants
const (
	// DefaultTimeout is the default timeout for most operations
	DefaultTimeout = 30 * time.Second

	// WebSocketPingInterval is the interval for WebSocket ping/pong
	WebSocketPingInterval = 60 * time.Second

	// WebSocketWriteTimeout bounds a single frame write
	WebSocketWriteTimeout = 10 * time.Second

	// GracefulShutdownTimeout is the timeout for graceful server shutdown
	GracefulShutdownTimeout = 30 * time.Second
)

// JWT-related constants
const (
	// AccessTokenExpiry is the default access token lifetime
	AccessTokenExpiry = 15 * time.Minute

	// RefreshTokenExpiry is the default refresh token lifetime
	RefreshTokenExpiry = 30 * 24 * time.Hour
)

// Database connection constants
const (
	// MaxConnLifetime is the maximum lifetime of a database connection
	MaxConnLifetime = 1 * time.Hour

	// MaxConnIdleTime is the maximum idle time for a database connection
	MaxConnIdleTime = 30 * time.Minute

	// HealthCheckPeriod is the interval between database health checks
	HealthCheckPeriod = 1 * time.Minute
)

// Meeting-related constants
const (
	// MaxMeetingDuration is the longest schedulable meeting
	MaxMeetingDuration = 24 * time.Hour

	// MinMeetingDurationMinutes is the shortest schedulable meeting
	MinMeetingDurationMinutes = 5

	// MaxMeetingTitleLength is the maximum allowed title length
	MaxMeetingTitleLength = 200

	// MaxChatMessageLength is the maximum allowed in-room chat line length
	MaxChatMessageLength = 2000
)

// Lifecycle outbox constants
const (
	// LifecycleOutboxSize is the buffer of pending signaling-to-persistence intents
	LifecycleOutboxSize = 256
)
