package constants

import (
	"time"
)

// Credential redaction
const (
	// SensitiveSentinel - placeholder the data API stores and returns in place of a secret
	// option value. A configuration key holding this value is backed by a stored secret.
	SensitiveSentinel = "<sensitive>"

	// ProviderOptionName - the synthetic schema option that enumerates providers
	ProviderOptionName = "provider"

	// TypeOptionName - configuration key holding the schema prefix
	TypeOptionName = "type"
)

// Wizard steps
const (
	// TotalWizardSteps - number of guided steps (type/provider, options, final details).
	// The advanced raw-config step (0) is an alternate entry path, not counted.
	TotalWizardSteps = 3
)

// Event bus buffering
const (
	// EventBusDefaultBuffer - default buffer size for event channels (256)
	// A wizard session emits a handful of events per user action.
	EventBusDefaultBuffer = 256

	// EventBusMaxBuffer - maximum buffer size for event channels (2000)
	EventBusMaxBuffer = 2000
)

// API throttling
const (
	// DefaultRequestsPerSecond - client-side ceiling for data API calls (5 req/sec)
	DefaultRequestsPerSecond = 5.0

	// DefaultRequestBurst - token bucket capacity for bursts of API calls
	DefaultRequestBurst = 10
)

// API retry configuration. Only idempotent GETs are ever retried, and only when
// max_retries is raised above the default.
const (
	// DefaultMaxRetries - retries for GET requests (0 = no automatic retry)
	DefaultMaxRetries = 0

	// RetryWaitMin - minimum backoff between GET retries
	RetryWaitMin = 1 * time.Second

	// RetryWaitMax - maximum backoff between GET retries
	RetryWaitMax = 10 * time.Second
)

// HTTP Client Timeouts
const (
	// HTTPIdleConnTimeout - how long to keep idle connections open (90 seconds)
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for TLS handshake (30 seconds)
	HTTPTLSHandshakeTimeout = 30 * time.Second

	// HTTPExpectContinueTimeout - timeout for 100-continue response (1 second)
	HTTPExpectContinueTimeout = 1 * time.Second

	// HTTPDialTimeout - timeout for establishing connection (30 seconds)
	HTTPDialTimeout = 30 * time.Second

	// HTTPDialKeepAlive - keep-alive period for dialer (30 seconds)
	HTTPDialKeepAlive = 30 * time.Second

	// HTTPClientTimeout - overall timeout for one API request (120 seconds)
	HTTPClientTimeout = 120 * time.Second

	// ProxyWarmupTimeout - timeout for the optional proxy warmup request
	ProxyWarmupTimeout = 15 * time.Second
)

// CLI timeouts
const (
	// ConfigTestTimeout - timeout for 'config test'
	ConfigTestTimeout = 10 * time.Second

	// ProbeTimeout - timeout for a local storage reachability probe
	ProbeTimeout = 30 * time.Second
)

// Default platform settings
const (
	// DefaultAPIBaseURL - data API base URL used when nothing else is configured
	DefaultAPIBaseURL = "https://renkulab.io"

	// DefaultProxyPort - proxy port used when a proxy host is set without a port
	DefaultProxyPort = 8080
)

// Log file rotation (lumberjack)
const (
	LogFileMaxSizeMB  = 10
	LogFileMaxBackups = 3
	LogFileMaxAgeDays = 28
)
