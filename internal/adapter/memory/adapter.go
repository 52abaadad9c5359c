// Package memory implements an in-process gateway.Adapter that delivers
// publishes synchronously to subscriber callbacks, for tests, local
// development, and the example binary. It is
// grounded on the control plane's in-memory store: a mutex-guarded map
// standing in for a real backend, sized for correctness over throughput.
package memory

import (
	"context"
	"sync"

	"github.com/covesa/iotea-go-sdk/internal/gateway"
)

// Adapter is a shared in-memory bus: every Adapter instance created via
// Bus.NewAdapter from the same *Bus observes every other's Publish calls,
// letting tests wire up several "talents" in one process without a real
// broker.
type Adapter struct {
	name       string
	platform   bool
	bus        *Bus
	mu         sync.RWMutex
	subs       []subscription
	started    bool
}

type subscription struct {
	topic string
	onMsg gateway.OnMessage
}

// Bus is the shared delivery fabric several Adapters can be attached to.
type Bus struct {
	mu       sync.RWMutex
	adapters []*Adapter
}

// NewBus constructs an empty shared bus.
func NewBus() *Bus { return &Bus{} }

// NewAdapter attaches a new named Adapter to bus. platform marks this
// adapter as the gateway's platform-protocol adapter.
func (bus *Bus) NewAdapter(name string, platform bool) *Adapter {
	a := &Adapter{name: name, platform: platform, bus: bus}
	bus.mu.Lock()
	bus.adapters = append(bus.adapters, a)
	bus.mu.Unlock()
	return a
}

// Name implements gateway.Adapter.
func (a *Adapter) Name() string { return a.name }

// IsPlatformProto implements gateway.Adapter.
func (a *Adapter) IsPlatformProto() bool { return a.platform }

// Start implements gateway.Adapter. The in-memory bus has no connection to
// establish, so Start only sets the started flag; Publish does not consult
// it.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	a.started = true
	a.mu.Unlock()
	return nil
}

// Stop implements gateway.Adapter.
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	a.started = false
	a.subs = nil
	a.mu.Unlock()
	return nil
}

// Publish delivers payload to every subscription on every adapter attached
// to the same bus whose topic matches, including this adapter's own
// subscriptions (a talent on the same process can subscribe and publish on
// the same adapter).
func (a *Adapter) Publish(ctx context.Context, topic string, payload []byte, opts gateway.PublishOptions) error {
	a.bus.mu.RLock()
	targets := append([]*Adapter(nil), a.bus.adapters...)
	a.bus.mu.RUnlock()

	for _, t := range targets {
		t.mu.RLock()
		subs := append([]subscription(nil), t.subs...)
		t.mu.RUnlock()
		for _, s := range subs {
			if s.topic == topic {
				s.onMsg(topic, payload, t.name)
			}
		}
	}
	return nil
}

// Subscribe implements gateway.Adapter.
func (a *Adapter) Subscribe(ctx context.Context, topic string, onMsg gateway.OnMessage, opts gateway.SubscribeOptions) error {
	a.mu.Lock()
	a.subs = append(a.subs, subscription{topic: topic, onMsg: onMsg})
	a.mu.Unlock()
	return nil
}

// SubscribeShared implements gateway.Adapter. The in-memory bus has no
// notion of consumer groups, so this delivers to every subscriber exactly
// like Subscribe — acceptable for tests, where shared-subscription load
// balancing is not under test.
func (a *Adapter) SubscribeShared(ctx context.Context, group, topic string, onMsg gateway.OnMessage, opts gateway.SubscribeOptions) error {
	return a.Subscribe(ctx, topic, onMsg, opts)
}
