// Package config loads the runtime's environment-based configuration,
// following the control plane's flat env-var-with-defaults style rather
// than a config file.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the environment-tunable knobs the client needs to start.
type Config struct {
	// Namespace prefixes every topic this runtime publishes or subscribes
	// to. Defaults to "iotea" to match the platform's own default deployment.
	Namespace string

	// IngestionTopic is the single topic events, calls, and replies are all
	// published to; the client also subscribes to it to receive that
	// traffic.
	IngestionTopic string

	// DiscoveryTopic is the topic the platform publishes discovery probes
	// on, and PlatformEventsTopic the topic it publishes lifecycle
	// notifications on.
	DiscoveryTopic     string
	PlatformEventsTopic string

	// TickerPeriod is how often the client sweeps the reply correlator for
	// expired gatherers.
	TickerPeriod time.Duration

	// DefaultCallTimeout is a convenience default talents may pass to
	// EventContext.Call/CallContext.Call instead of hand-rolling a timeout;
	// the call machinery itself treats a non-positive timeoutMs as a usage
	// error (see rtcontext.ErrInvalidTimeout), not something to default.
	DefaultCallTimeout time.Duration
}

// Default returns the configuration used when no environment overrides are
// present.
func Default() Config {
	return Config{
		Namespace:           "iotea",
		IngestionTopic:      "iotea/ingestion/events",
		DiscoveryTopic:      "iotea/configManager/talents/discover",
		PlatformEventsTopic: "iotea/platform/$events",
		TickerPeriod:        time.Second,
		DefaultCallTimeout:  10 * time.Second,
	}
}

// FromEnv builds a Config starting from Default and applying any of the
// IOTEA_NAMESPACE, IOTEA_TICKER_PERIOD_MS, IOTEA_DEFAULT_CALL_TIMEOUT_MS
// environment variables that are set. Topics are derived from Namespace
// unless IOTEA_NAMESPACE is unset, in which case the defaults' literal
// topics stand as-is.
func FromEnv() Config {
	cfg := Default()

	if ns := os.Getenv("IOTEA_NAMESPACE"); ns != "" {
		cfg.Namespace = ns
		cfg.IngestionTopic = ns + "/ingestion/events"
		cfg.DiscoveryTopic = ns + "/configManager/talents/discover"
		cfg.PlatformEventsTopic = ns + "/platform/$events"
	}
	if v := os.Getenv("IOTEA_TICKER_PERIOD_MS"); v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil && ms > 0 {
			cfg.TickerPeriod = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("IOTEA_DEFAULT_CALL_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil && ms > 0 {
			cfg.DefaultCallTimeout = time.Duration(ms) * time.Millisecond
		}
	}

	return cfg
}
