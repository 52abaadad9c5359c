package rtcontext

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/covesa/iotea-go-sdk/internal/codec"
	"github.com/covesa/iotea-go-sdk/internal/correlator"
	"github.com/covesa/iotea-go-sdk/internal/gateway"
	"github.com/covesa/iotea-go-sdk/pkg/model"
)

// CallContext is the handle a function talent's invocation handler
// receives. It extends EventContext with Reply and a deadline-aware Call
// override: any nested call a function handler places is clamped to the
// remaining time on the inbound call it is answering, so a chain of
// function calls can never outlive its root caller's patience.
type CallContext struct {
	*EventContext

	reply        model.PreparedReply
	deadlineAtMs int64
}

// NewCallContext builds a CallContext for one inbound function invocation.
// deadlineAtMs is the absolute expiry of the inbound call being answered —
// taken by the client from the inbound call envelope's timeoutAtMs field,
// which on the wire is already an absolute Unix-millis timestamp (see
// codec.EncodeCall).
func NewCallContext(ec *EventContext, reply model.PreparedReply, deadlineAtMs int64) *CallContext {
	return &CallContext{EventContext: ec, reply: reply, deadlineAtMs: deadlineAtMs}
}

// Call overrides EventContext.Call to clamp the nested call's timeout to
// whatever remains before this context's own deadline. If the deadline has
// already passed, no call is placed; instead a token with Timeout 0 is
// returned (no error), so that passing it to Gather registers a gatherer
// whose deadline is already in the past and is reaped on the correlator's
// very next sweep.
func (cc *CallContext) Call(callee model.Callee, args []interface{}, timeoutMs int64) (model.CallToken, error) {
	remaining := cc.deadlineAtMs - cc.now()
	if remaining <= 0 {
		log.Warn().Str("callee", callee.String()).Msg("call context deadline already elapsed, call suppressed")
		return model.CallToken{CallID: correlator.NewCallID(), ChannelID: correlator.NewChannelID(), Timeout: 0}, nil
	}
	if timeoutMs > remaining {
		timeoutMs = remaining
	}
	return cc.EventContext.Call(callee, args, timeoutMs)
}

// GatherAndReply constructs a reply gatherer over tokens — each previously
// returned by Call — and hands it to the correlator. reducerFn runs once
// every call has replied or timed out, and its return value is published as
// this context's reply; if any call times out and timeoutFn is non-nil,
// timeoutFn runs instead and no reply is published.
func (cc *CallContext) GatherAndReply(reducerFn func(replies []interface{}) interface{}, timeoutFn func(), tokens ...model.CallToken) {
	cc.Gather(func(replies []interface{}) {
		if err := cc.Reply(reducerFn(replies)); err != nil {
			log.Error().Err(err).Msg("publishing gathered reply")
		}
	}, timeoutFn, tokens...)
}

// Reply publishes value as the reply to the call this context was created
// to answer.
func (cc *CallContext) Reply(value interface{}) error {
	payload, err := codec.EncodeReply(cc.reply, value, cc.now())
	if err != nil {
		return err
	}
	return cc.gw.Publish(context.Background(), cc.IngestionTopic, payload, gateway.PublishOptions{})
}

// CallAll places one call to each callee (clamped to this context's
// remaining deadline, same as Call) sharing a single reply channel, and
// registers combine to run once every callee has answered or the shared
// deadline passes — whichever comes first — publishing its result as this
// context's reply. combine receives whatever subset of replies arrived in
// time; a callee that never answers is simply absent from its map.
func (cc *CallContext) CallAll(callees []model.Callee, args []interface{}, timeoutMs int64, combine func(replies map[model.Callee]interface{}) interface{}) model.CallToken {
	remaining := cc.deadlineAtMs - cc.now()
	if remaining <= 0 {
		log.Warn().Msg("call context deadline already elapsed, call-all suppressed")
		return model.SentinelToken
	}
	if timeoutMs > remaining {
		timeoutMs = remaining
	}

	channelID := cc.TalentID + "." + correlator.NewChannelID()
	nowMs := cc.now()
	deadlineAtMs := nowMs + timeoutMs

	callIDs := make(map[string]model.Callee, len(callees))
	for _, callee := range callees {
		if !callee.Registered {
			continue
		}
		callIDs[correlator.NewCallID()] = callee
	}
	if len(callIDs) == 0 {
		return model.SentinelToken
	}

	g := correlator.NewGatherer(channelID, deadlineAtMs, callIDs)
	g.SetOnComplete(func(_ map[string]interface{}) {
		if err := cc.Reply(combine(correlator.ForwardReplies(g))); err != nil {
			log.Error().Err(err).Msg("publishing scatter-gather reply")
		}
	})
	cc.rc.Add(g)

	for callID, callee := range callIDs {
		oc := model.OutgoingCall{
			Callee:      callee,
			Args:        args,
			CallID:      callID,
			ChannelID:   channelID,
			Subject:     cc.Subject,
			TimeoutAtMs: deadlineAtMs,
			EmittedAtMs: nowMs,
		}
		payload, err := codec.EncodeCall(oc)
		if err != nil {
			log.Error().Err(err).Msg("encoding scatter-gather call")
			continue
		}
		if err := cc.gw.Publish(context.Background(), cc.IngestionTopic, payload, gateway.PublishOptions{}); err != nil {
			log.Error().Err(err).Msg("publishing scatter-gather call")
		}
	}

	return model.CallToken{CallID: channelID, ChannelID: channelID, Timeout: timeoutMs}
}

// DeadlineAtMs returns the absolute expiry of the call this context answers.
func (cc *CallContext) DeadlineAtMs() int64 { return cc.deadlineAtMs }

// Remaining returns the time left before DeadlineAtMs, as a duration.
func (cc *CallContext) Remaining() time.Duration {
	ms := cc.deadlineAtMs - cc.now()
	if ms < 0 {
		ms = 0
	}
	return time.Duration(ms) * time.Millisecond
}
