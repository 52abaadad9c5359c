// Package correlator tracks outstanding calls and assembles their replies.
// It is grounded on the retention janitor's ticker-driven sweep pattern,
// applied here to reply timeouts instead of record expiry.
package correlator

import (
	"sync"

	"github.com/covesa/iotea-go-sdk/pkg/model"
)

// Gatherer accumulates replies for one outstanding call (or fan-out call
// group sharing a channel) until either every expected callee has replied
// or DeadlineAtMs passes. DeadlineAtMs is an absolute Unix-millis timestamp
// — whoever creates the gatherer converts each CallToken's relative Timeout
// into this absolute form (see NewGatherer), so reaping never needs the
// call's origin time again.
type Gatherer struct {
	mu           sync.Mutex
	ChannelID    string
	DeadlineAtMs int64
	want         map[string]model.Callee // callID -> callee
	replies      map[string]interface{}  // callID -> reply value
	done         bool
	onComplete   func(replies map[string]interface{})
}

// SetOnComplete registers a callback invoked exactly once, either when
// every expected callee has replied or when the gatherer is reaped past
// its deadline. EventContext.Gather sets it on the gatherer it builds for
// each token, and CallContext.CallAll sets it to publish a combined reply,
// so neither caller has to poll.
func (g *Gatherer) SetOnComplete(fn func(replies map[string]interface{})) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onComplete = fn
}

// NewGatherer creates a gatherer for the given callees, keyed by the call
// IDs assigned to each. deadlineAtMs is an absolute timestamp, not a
// duration — callers are responsible for adding the relative CallToken
// timeout to "now" before calling this constructor.
func NewGatherer(channelID string, deadlineAtMs int64, callIDs map[string]model.Callee) *Gatherer {
	want := make(map[string]model.Callee, len(callIDs))
	for id, callee := range callIDs {
		want[id] = callee
	}
	return &Gatherer{
		ChannelID:    channelID,
		DeadlineAtMs: deadlineAtMs,
		want:         want,
		replies:      make(map[string]interface{}, len(callIDs)),
	}
}

// Wants reports whether this gatherer is still waiting on callID.
func (g *Gatherer) Wants(callID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.want[callID]
	return ok && !g.done
}

// Gather records a reply for callID. It returns true once every expected
// callee has replied, at which point the gatherer is marked done and
// GetReplies returns the final result, keyed by call ID.
func (g *Gatherer) Gather(callID string, value interface{}) (complete bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done {
		return true
	}
	if _, ok := g.want[callID]; !ok {
		return false
	}
	g.replies[callID] = value
	if len(g.replies) >= len(g.want) {
		g.done = true
		return true
	}
	return false
}

// GetReplies returns the gathered replies keyed by callID. Missing entries
// (callees that never replied, present only after a timeout reap) are
// simply absent from the map.
func (g *Gatherer) GetReplies() map[string]interface{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]interface{}, len(g.replies))
	for id, v := range g.replies {
		out[id] = v
	}
	return out
}

// Callees returns the callees this gatherer was constructed to wait on,
// keyed by call ID.
func (g *Gatherer) Callees() map[string]model.Callee {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]model.Callee, len(g.want))
	for id, c := range g.want {
		out[id] = c
	}
	return out
}

// Expired reports whether nowMs is at or past this gatherer's deadline and
// the gatherer is not already done.
func (g *Gatherer) Expired(nowMs int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.done && nowMs >= g.DeadlineAtMs
}

// IsDone reports whether every expected callee has already replied or the
// gatherer has been timed out.
func (g *Gatherer) IsDone() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.done
}

// TimeOut forcibly marks the gatherer done, as happens when the correlator
// reaps it past its deadline with replies still outstanding.
func (g *Gatherer) TimeOut() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.done = true
}

// fireOnComplete invokes the registered completion callback, if any, with
// a snapshot of whatever replies were gathered. Safe to call more than
// once; only the first call after completion has any effect.
func (g *Gatherer) fireOnComplete() {
	g.mu.Lock()
	fn := g.onComplete
	g.onComplete = nil
	g.mu.Unlock()
	if fn != nil {
		fn(g.GetReplies())
	}
}
