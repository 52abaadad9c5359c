// Package gateway implements the Transport Gateway: an ordered set of
// pub/sub adapters fanned out behind a single Publish/Subscribe surface.
// It mirrors the lifecycle-orchestration style of the control plane's
// process manager (one Start/Stop per backend, tracked uniformly) applied
// to transport adapters instead of agent runtimes.
package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// ConfigErrorCode tags the fatal, init-time configuration failures the gateway
// can raise. These mirror the taxonomy used by the upstream protocol
// gateway's JSON config loader.
type ConfigErrorCode string

const (
	ErrInvalidConfiguration ConfigErrorCode = "INVALID_CONFIGURATION"
	ErrPluginLoadFailure    ConfigErrorCode = "PLUGIN_LOAD_FAILURE"
	ErrPluginSymNotFound    ConfigErrorCode = "PLUGIN_SYM_NOT_FOUND"
)

// ConfigError is returned by New when the adapter configuration is invalid
// or an adapter factory could not be resolved/loaded.
type ConfigError struct {
	Code    ConfigErrorCode
	Message string
}

func (e *ConfigError) Error() string { return string(e.Code) + ": " + e.Message }

// OnMessage is invoked by an adapter for every inbound frame it receives.
type OnMessage func(topic string, payload []byte, adapterID string)

// Adapter is the transport-abstraction contract external pub/sub
// integrations (MQTT, a message bus, an in-memory bus for tests) must
// implement. The gateway treats every adapter identically regardless of
// the wire protocol underneath.
type Adapter interface {
	// Name returns the adapter's unique identifier within the gateway.
	Name() string
	// IsPlatformProto reports whether this adapter carries the platform's
	// own control-plane traffic (discovery, platform events). At most one
	// configured adapter may answer true.
	IsPlatformProto() bool

	Start(ctx context.Context) error
	Stop(ctx context.Context) error

	Publish(ctx context.Context, topic string, payload []byte, opts PublishOptions) error
	Subscribe(ctx context.Context, topic string, onMsg OnMessage, opts SubscribeOptions) error
	SubscribeShared(ctx context.Context, group, topic string, onMsg OnMessage, opts SubscribeOptions) error
}

// PublishOptions narrows which adapters a publish reaches and carries
// transport hints. Retain/Stash are passed through to the adapter
// uninterpreted by the gateway.
type PublishOptions struct {
	PlatformProtoOnly bool
	AdapterID         string
	Retain            bool
	Stash             bool
}

// SubscribeOptions narrows which adapters a subscription is installed on.
type SubscribeOptions struct {
	PlatformProtoOnly bool
	AdapterID         string
}

// AdapterFactory builds an Adapter from its raw JSON config. Gateway
// configurations name an adapter by module identifier; Register binds that
// identifier to a factory so New can resolve it.
type AdapterFactory func(rawConfig []byte) (Adapter, error)

// accepts reports whether opts route to this adapter, per the gateway's
// fan-out predicate: platform-only publishes/subscribes only reach the
// platform adapter, and an explicit adapter id narrows to that one adapter.
func accepts(platformProtoOnly bool, adapterID string, a Adapter) bool {
	if platformProtoOnly && !a.IsPlatformProto() {
		return false
	}
	if adapterID != "" && adapterID != a.Name() {
		return false
	}
	return true
}

// Gateway fans Publish/Subscribe operations across its configured adapters
// in registration order. It is inert between construction and Start;
// calling Publish/Subscribe before Start is undefined, matching the
// upstream protocol gateway's contract.
type Gateway struct {
	mu       sync.RWMutex
	adapters []Adapter
	started  bool
}

// New validates a raw adapter list descriptor and constructs adapters via
// the registered factories, returning *ConfigError on any validation
// failure. platformOnly mirrors the gateway-level "platform-proto-only"
// flag: if set, the gateway requires exactly one platform adapter to be
// present even though the descriptor doesn't repeat that constraint itself.
func New(descriptors []AdapterDescriptor, factories map[string]AdapterFactory, platformOnly bool) (*Gateway, error) {
	if len(descriptors) == 0 {
		return nil, &ConfigError{Code: ErrInvalidConfiguration, Message: "adapters list missing or empty"}
	}

	platformCount := 0
	gw := &Gateway{}
	for _, d := range descriptors {
		if d.Platform {
			platformCount++
		}
	}
	if platformCount > 1 {
		return nil, &ConfigError{Code: ErrInvalidConfiguration, Message: "more than one adapter marked platform"}
	}
	if platformOnly && platformCount == 0 {
		return nil, &ConfigError{Code: ErrInvalidConfiguration, Message: "gateway is platform-only but no platform adapter configured"}
	}

	for _, d := range descriptors {
		factory, ok := factories[d.Module]
		if !ok {
			return nil, &ConfigError{Code: ErrPluginSymNotFound, Message: fmt.Sprintf("no adapter factory registered for module %q", d.Module)}
		}
		adapter, err := factory(d.Config)
		if err != nil {
			return nil, &ConfigError{Code: ErrPluginLoadFailure, Message: fmt.Sprintf("loading adapter %q: %s", d.Module, err)}
		}
		gw.adapters = append(gw.adapters, adapter)
	}
	return gw, nil
}

// AdapterDescriptor is the parsed form of one entry in the gateway's JSON
// adapter configuration (§6 of the gateway configuration schema).
type AdapterDescriptor struct {
	Platform bool
	Module   string
	Config   []byte
}

// NewWithAdapters builds a Gateway directly from already-constructed
// adapters, bypassing descriptor/factory resolution. Used by callers (and
// tests) that assemble adapters programmatically rather than from JSON
// config.
func NewWithAdapters(adapters ...Adapter) (*Gateway, error) {
	platformCount := 0
	for _, a := range adapters {
		if a.IsPlatformProto() {
			platformCount++
		}
	}
	if platformCount > 1 {
		return nil, &ConfigError{Code: ErrInvalidConfiguration, Message: "more than one adapter marked platform"}
	}
	return &Gateway{adapters: adapters}, nil
}

// Start starts every adapter in registration order.
func (gw *Gateway) Start(ctx context.Context) error {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	for _, a := range gw.adapters {
		if err := a.Start(ctx); err != nil {
			return fmt.Errorf("starting adapter %q: %w", a.Name(), err)
		}
		log.Info().Str("adapter", a.Name()).Msg("transport adapter started")
	}
	gw.started = true
	return nil
}

// Stop stops every adapter in registration order, continuing past
// individual failures so a slow/broken adapter doesn't strand the rest.
func (gw *Gateway) Stop(ctx context.Context) error {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	var firstErr error
	for _, a := range gw.adapters {
		if err := a.Stop(ctx); err != nil {
			log.Warn().Str("adapter", a.Name()).Err(err).Msg("adapter stop failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	gw.started = false
	return firstErr
}

// Publish forwards to every adapter that accepts opts, in registration
// order.
func (gw *Gateway) Publish(ctx context.Context, topic string, payload []byte, opts PublishOptions) error {
	gw.mu.RLock()
	defer gw.mu.RUnlock()
	var firstErr error
	matched := 0
	for _, a := range gw.adapters {
		if !accepts(opts.PlatformProtoOnly, opts.AdapterID, a) {
			continue
		}
		matched++
		if err := a.Publish(ctx, topic, payload, opts); err != nil {
			log.Warn().Str("adapter", a.Name()).Str("topic", topic).Err(err).Msg("publish failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if matched == 0 {
		log.Warn().Str("topic", topic).Msg("publish matched no adapter")
	}
	return firstErr
}

// Subscribe installs onMsg on every adapter that accepts opts.
func (gw *Gateway) Subscribe(ctx context.Context, topic string, onMsg OnMessage, opts SubscribeOptions) error {
	gw.mu.RLock()
	defer gw.mu.RUnlock()
	for _, a := range gw.adapters {
		if !accepts(opts.PlatformProtoOnly, opts.AdapterID, a) {
			continue
		}
		if err := a.Subscribe(ctx, topic, onMsg, opts); err != nil {
			return fmt.Errorf("subscribing on adapter %q: %w", a.Name(), err)
		}
	}
	return nil
}

// SubscribeShared installs a shared-group subscription on every adapter
// that accepts opts.
func (gw *Gateway) SubscribeShared(ctx context.Context, group, topic string, onMsg OnMessage, opts SubscribeOptions) error {
	gw.mu.RLock()
	defer gw.mu.RUnlock()
	for _, a := range gw.adapters {
		if !accepts(opts.PlatformProtoOnly, opts.AdapterID, a) {
			continue
		}
		if err := a.SubscribeShared(ctx, group, topic, onMsg, opts); err != nil {
			return fmt.Errorf("shared-subscribing on adapter %q: %w", a.Name(), err)
		}
	}
	return nil
}

// Adapters returns the configured adapters in registration order. Intended
// for tests/introspection; callers must not mutate the returned slice.
func (gw *Gateway) Adapters() []Adapter {
	gw.mu.RLock()
	defer gw.mu.RUnlock()
	out := make([]Adapter, len(gw.adapters))
	copy(out, gw.adapters)
	return out
}
