package codec

import (
	"encoding/json"
	"strings"

	"github.com/covesa/iotea-go-sdk/pkg/model"
)

// outboundEvent is the wire shape of a plain emitted event.
type outboundEvent struct {
	Subject      string      `json:"subject"`
	Feature      string      `json:"feature"`
	Value        interface{} `json:"value"`
	TypeSelector string      `json:"type"`
	Instance     string      `json:"instance"`
	WhenMs       int64       `json:"whenMs"`
}

// EncodeEvent renders a plain event to its wire form.
func EncodeEvent(e model.Event) ([]byte, error) {
	return json.Marshal(outboundEvent{
		Subject:      e.Subject,
		Feature:      e.Feature,
		Value:        e.Value,
		TypeSelector: e.TypeSelector,
		Instance:     e.Instance,
		WhenMs:       e.WhenMs,
	})
}

// CallEnvelope is the nested "value" object of a call frame, shared by
// EncodeCall (outbound) and DecodeCallEnvelope (inbound).
type CallEnvelope struct {
	Func        string        `json:"func"`
	Args        []interface{} `json:"args"`
	Call        string        `json:"call"`
	Chnl        string        `json:"chnl"`
	TimeoutAtMs int64         `json:"timeoutAtMs"`
}

type outboundCall struct {
	Subject      string       `json:"subject"`
	Feature      string       `json:"feature"`
	TypeSelector string       `json:"type"`
	Value        CallEnvelope `json:"value"`
	WhenMs       int64        `json:"whenMs"`
}

// EncodeCall renders an outgoing call to its wire form: the feature names
// the callee's input, and the value carries the call envelope (func/args/
// call/chnl/timeoutAtMs) the callee's function talent dispatches on.
func EncodeCall(c model.OutgoingCall) ([]byte, error) {
	args := c.Args
	if args == nil {
		args = []interface{}{}
	}
	return json.Marshal(outboundCall{
		Subject:      c.Subject,
		Feature:      model.InOf(c.Callee.TalentID, c.Callee.Func),
		TypeSelector: c.Callee.TypeSelector,
		Value: CallEnvelope{
			Func:        c.Callee.Func,
			Args:        args,
			Call:        c.CallID,
			Chnl:        c.ChannelID,
			TimeoutAtMs: c.TimeoutAtMs,
		},
		WhenMs: c.EmittedAtMs,
	})
}

// ReplyEnvelope is the nested "value" object of a reply frame: a tsuffix
// routing key back to the caller's channel/call, a vpath of "value", and
// the actual reply payload. Shared by EncodeReply (outbound) and
// DecodeReplyEnvelope (inbound).
type ReplyEnvelope struct {
	Tsuffix string      `json:"$tsuffix"`
	Vpath   string      `json:"$vpath"`
	Value   interface{} `json:"value"`
}

type outboundReply struct {
	Subject      string        `json:"subject"`
	Feature      string        `json:"feature"`
	TypeSelector string        `json:"type"`
	Instance     string        `json:"instance"`
	Value        ReplyEnvelope `json:"value"`
	WhenMs       int64         `json:"whenMs"`
}

// EncodeReply renders a call-context reply to its wire form, using a
// PreparedReply record captured at call time so the original inbound
// payload need not be retained.
func EncodeReply(p model.PreparedReply, value interface{}, nowMs int64) ([]byte, error) {
	return json.Marshal(outboundReply{
		Subject:      p.Subject,
		Feature:      model.OutOf(p.SelfTalentID, p.OutFeature),
		TypeSelector: p.TypeSelector,
		Instance:     p.Instance,
		Value: ReplyEnvelope{
			Tsuffix: "/" + p.CallerChannel + "/" + p.CallerCallID,
			Vpath:   "value",
			Value:   value,
		},
		WhenMs: nowMs,
	})
}

// EncodeSchema renders a talent schema document for discovery responses.
func EncodeSchema(s model.TalentSchema) ([]byte, error) {
	return json.Marshal(s)
}

// DecodeCallEnvelope re-decodes an inbound event's generic Value into a
// CallEnvelope. Used by the client when an inbound event's feature matches
// one of a registered function talent's call-input features.
func DecodeCallEnvelope(value interface{}) (CallEnvelope, error) {
	var env CallEnvelope
	raw, err := json.Marshal(value)
	if err != nil {
		return env, err
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, err
	}
	return env, nil
}

// DecodeReplyEnvelope re-decodes an inbound event's generic Value into a
// ReplyEnvelope. Used by the client on every inbound event that is not a
// call, to tell call replies (non-empty $tsuffix) from trigger events.
func DecodeReplyEnvelope(value interface{}) (ReplyEnvelope, error) {
	var env ReplyEnvelope
	raw, err := json.Marshal(value)
	if err != nil {
		return env, err
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, err
	}
	return env, nil
}

// SplitTsuffix parses a ReplyEnvelope's "$tsuffix" field ("/chnl/callId")
// into its channel and call ID components.
func SplitTsuffix(tsuffix string) (channelID, callID string, ok bool) {
	parts := strings.Split(strings.TrimPrefix(tsuffix, "/"), "/")
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}
