// Package rtcontext provides the per-event handles a talent uses to emit
// events, place calls, and gather replies while reacting to one inbound
// trigger. It is grounded on the workflow engine's per-step execution
// context, which bundles a single dependency set (store, clock, emitter)
// behind a narrow struct passed down into step handlers rather than threaded
// as individual parameters.
package rtcontext

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/covesa/iotea-go-sdk/internal/codec"
	"github.com/covesa/iotea-go-sdk/internal/correlator"
	"github.com/covesa/iotea-go-sdk/internal/gateway"
	"github.com/covesa/iotea-go-sdk/pkg/model"
)

// ErrInvalidTimeout is returned by Call when timeoutMs is not positive, per
// the "invalid-argument" usage error spec.md §7 requires for this case.
var ErrInvalidTimeout = errors.New("rtcontext: call timeout must be positive")

// EventContext is the handle a talent's OnEvent/OnPlatformEvent callback
// receives for the single inbound event it is reacting to. It can emit
// plain events and place calls; it cannot reply, since the triggering event
// was not itself a call (see CallContext for that).
type EventContext struct {
	TalentID       string
	Subject        string
	IngestionTopic string
	ReturnTopic    string

	gw  *gateway.Gateway
	rc  *correlator.ReplyCorrelator
	now func() int64
}

// New builds an EventContext bound to the gateway/correlator the owning
// client was constructed with.
func New(talentID, subject, ingestionTopic, returnTopic string, gw *gateway.Gateway, rc *correlator.ReplyCorrelator) *EventContext {
	return &EventContext{
		TalentID:       talentID,
		Subject:        subject,
		IngestionTopic: ingestionTopic,
		ReturnTopic:    returnTopic,
		gw:             gw,
		rc:             rc,
		now:            func() int64 { return time.Now().UnixMilli() },
	}
}

// Emit publishes a plain output event for the given feature, tagged with
// typeSelector (the "type" field of the wire form, §4.C) and instance.
func (ec *EventContext) Emit(feature string, value interface{}, typeSelector, instance string) error {
	ev := model.Event{
		Subject:      ec.Subject,
		Feature:      model.OutOf(ec.TalentID, feature),
		Value:        value,
		TypeSelector: typeSelector,
		Instance:     instance,
		WhenMs:       ec.now(),
	}
	payload, err := codec.EncodeEvent(ev)
	if err != nil {
		return err
	}
	return ec.gw.Publish(context.Background(), ec.IngestionTopic, payload, gateway.PublishOptions{})
}

// Call places a single outbound call to callee and returns a CallToken
// identifying it. Call itself does not wait for, or even register interest
// in, the reply — pass the returned token to Gather (or, from a
// CallContext, GatherAndReply) to have it correlated and delivered to a
// callback. timeoutMs is a relative duration from now. A SentinelToken is
// returned (with a nil error) if callee is not registered (Registered ==
// false) — the caller is expected to check IsSentinel before gathering.
// timeoutMs <= 0 is a usage error: it returns ErrInvalidTimeout rather than
// placing any call.
func (ec *EventContext) Call(callee model.Callee, args []interface{}, timeoutMs int64) (model.CallToken, error) {
	if timeoutMs <= 0 {
		return model.SentinelToken, ErrInvalidTimeout
	}
	if !callee.Registered {
		log.Warn().Str("callee", callee.String()).Msg("call to unregistered callee ignored")
		return model.SentinelToken, nil
	}

	channelID := ec.TalentID + "." + correlator.NewChannelID()
	callID := correlator.NewCallID()
	nowMs := ec.now()

	oc := model.OutgoingCall{
		Callee:      callee,
		Args:        args,
		CallID:      callID,
		ChannelID:   channelID,
		Subject:     ec.Subject,
		TimeoutAtMs: nowMs + timeoutMs,
		EmittedAtMs: nowMs,
	}
	payload, err := codec.EncodeCall(oc)
	if err != nil {
		log.Error().Err(err).Msg("encoding outbound call")
		return model.SentinelToken, nil
	}

	if err := ec.gw.Publish(context.Background(), ec.IngestionTopic, payload, gateway.PublishOptions{}); err != nil {
		log.Error().Err(err).Msg("publishing outbound call")
		return model.SentinelToken, nil
	}

	return model.CallToken{CallID: callID, ChannelID: channelID, Timeout: timeoutMs}, nil
}

// Gather constructs a sink gatherer over tokens — each one previously
// returned by Call — and hands it to the correlator. sinkFn runs exactly
// once, with the gathered replies in the same order as tokens (a nil entry
// for any call that timed out before replying), once every call has either
// replied or been reaped by the client's sweep ticker. If any call times
// out without a reply and timeoutFn is non-nil, timeoutFn runs instead of
// sinkFn. Tokens that are the unregistered-callee sentinel are dropped
// silently, since no call was ever placed for them.
func (ec *EventContext) Gather(sinkFn func(replies []interface{}), timeoutFn func(), tokens ...model.CallToken) {
	active := make([]model.CallToken, 0, len(tokens))
	for _, tok := range tokens {
		if !tok.IsSentinel() {
			active = append(active, tok)
		}
	}
	if len(active) == 0 {
		if sinkFn != nil {
			sinkFn(nil)
		}
		return
	}

	var (
		mu       sync.Mutex
		replies  = make([]interface{}, len(active))
		pending  = len(active)
		timedOut bool
		fired    bool
	)
	finish := func() {
		if fired {
			return
		}
		fired = true
		if timedOut && timeoutFn != nil {
			timeoutFn()
			return
		}
		if sinkFn != nil {
			sinkFn(replies)
		}
	}

	nowMs := ec.now()
	for i, tok := range active {
		i, tok := i, tok
		g := correlator.NewGatherer(tok.ChannelID, nowMs+tok.Timeout, map[string]model.Callee{tok.CallID: {}})
		g.SetOnComplete(func(raw map[string]interface{}) {
			mu.Lock()
			defer mu.Unlock()
			if v, ok := raw[tok.CallID]; ok {
				replies[i] = v
			} else {
				timedOut = true
			}
			pending--
			if pending == 0 {
				finish()
			}
		})
		ec.rc.Add(g)
	}
}

