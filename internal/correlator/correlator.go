package correlator

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/metric"

	"github.com/covesa/iotea-go-sdk/pkg/model"
)

// ReplyCorrelator owns every outstanding Gatherer, keyed by the channel ID
// the calls it's waiting on were issued under. It is the single place that
// knows which inbound reply belongs to which pending call.
type ReplyCorrelator struct {
	mu        sync.Mutex
	gatherers map[string]*Gatherer // channelID -> gatherer

	completed metric.Int64Counter
	timedOut  metric.Int64Counter
	pending   metric.Int64ObservableGauge
}

// New constructs an empty correlator with no metrics instrumentation.
func New() *ReplyCorrelator {
	return &ReplyCorrelator{gatherers: make(map[string]*Gatherer)}
}

// WithMeter registers gatherer-lifecycle instruments (completed count,
// timed-out count, pending gauge) against meter, returning the correlator
// for chaining. Safe to skip; a correlator built via New alone simply
// records nothing.
func (c *ReplyCorrelator) WithMeter(meter metric.Meter) (*ReplyCorrelator, error) {
	completed, err := meter.Int64Counter("iotea.correlator.gatherers.completed",
		metric.WithDescription("call gatherers that received every expected reply"))
	if err != nil {
		return c, err
	}
	timedOut, err := meter.Int64Counter("iotea.correlator.gatherers.timed_out",
		metric.WithDescription("call gatherers reaped past their deadline with replies still outstanding"))
	if err != nil {
		return c, err
	}
	pending, err := meter.Int64ObservableGauge("iotea.correlator.gatherers.pending",
		metric.WithDescription("call gatherers currently awaiting a reply"))
	if err != nil {
		return c, err
	}
	if _, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(pending, int64(c.Pending()))
		return nil
	}, pending); err != nil {
		return c, err
	}

	c.completed = completed
	c.timedOut = timedOut
	c.pending = pending
	return c, nil
}

// NewChannelID generates a fresh, unique channel identifier for a call or
// call group.
func NewChannelID() string {
	return uuid.NewString()
}

// NewCallID generates a fresh, unique call identifier for one outbound call
// within a channel.
func NewCallID() string {
	return uuid.NewString()
}

// Add registers a gatherer under its channel ID, replacing any previous
// gatherer already registered on that channel (callers are expected to
// generate a fresh channel ID per call group, so collisions only happen on
// reuse bugs — last write wins rather than erroring, matching the
// permissive registration style of the correlator's upstream counterpart).
func (c *ReplyCorrelator) Add(g *Gatherer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gatherers[g.ChannelID] = g
}

// Extract looks up the gatherer expecting a reply on (channelID, callID),
// and if it completes as a result, removes and returns it. A gatherer that
// is still waiting on other callees is left registered and nil is returned.
func (c *ReplyCorrelator) Extract(channelID, callID string, value interface{}) *Gatherer {
	c.mu.Lock()
	g, ok := c.gatherers[channelID]
	c.mu.Unlock()
	if !ok || !g.Wants(callID) {
		return nil
	}
	if !g.Gather(callID, value) {
		return nil
	}
	c.mu.Lock()
	delete(c.gatherers, channelID)
	c.mu.Unlock()
	if c.completed != nil {
		c.completed.Add(context.Background(), 1)
	}
	g.fireOnComplete()
	return g
}

// ExtractExpired removes and returns every gatherer that is not yet done and
// whose deadline has passed as of nowMs (see Gatherer.Expired). Called periodically
// by the client's timeout-sweep ticker.
func (c *ReplyCorrelator) ExtractExpired(nowMs int64) []*Gatherer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var expired []*Gatherer
	for id, g := range c.gatherers {
		if g.Expired(nowMs) {
			g.TimeOut()
			expired = append(expired, g)
			delete(c.gatherers, id)
			log.Debug().Str("channel", id).Msg("reply gatherer timed out")
		}
	}
	if c.timedOut != nil && len(expired) > 0 {
		c.timedOut.Add(context.Background(), int64(len(expired)))
	}
	for _, g := range expired {
		g.fireOnComplete()
	}
	return expired
}

// Pending reports how many gatherers are currently outstanding. Intended
// for tests and introspection.
func (c *ReplyCorrelator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.gatherers)
}

// ForwardReplies reports, for a just-completed or just-expired gatherer,
// the set of replies keyed by the callee that produced them rather than by
// raw call ID — the shape CallContext.CallAll's combine callback receives.
func ForwardReplies(g *Gatherer) map[model.Callee]interface{} {
	callees := g.Callees()
	replies := g.GetReplies()
	out := make(map[model.Callee]interface{}, len(replies))
	for callID, value := range replies {
		if callee, ok := callees[callID]; ok {
			out[callee] = value
		}
	}
	return out
}
