// Package model defines the core data types shared across the IoT Event
// Analytics talent runtime: feature names, rule/constraint trees, talent
// schemas, callees, call tokens, and events.
package model

import "fmt"

// Feature name suffixes, per the wire format: an input feature is produced
// for consumption (`-in`), an output feature is produced by a talent (`-out`).
const (
	suffixIn  = "-in"
	suffixOut = "-out"
)

// In returns the input-feature name for a bare feature name.
func In(feature string) string { return feature + suffixIn }

// Out returns the output-feature name for a bare feature name.
func Out(feature string) string { return feature + suffixOut }

// InOf returns the fully-qualified input feature name "<talentID>.<feature>-in".
func InOf(talentID, feature string) string {
	return talentID + "." + In(feature)
}

// OutOf returns the fully-qualified output feature name "<talentID>.<feature>-out".
func OutOf(talentID, feature string) string {
	return talentID + "." + Out(feature)
}

// TypedInOf returns "<type>.<talentID>.<feature>-in".
func TypedInOf(typeSelector, talentID, feature string) string {
	return typeSelector + "." + InOf(talentID, feature)
}

// TypedOutOf returns "<type>.<talentID>.<feature>-out".
func TypedOutOf(typeSelector, talentID, feature string) string {
	return typeSelector + "." + OutOf(talentID, feature)
}

// Callee names a remote function a talent intends to invoke. Equality
// (see Equal) deliberately ignores Registered, which only tracks whether
// a RegisterCallee call has completed schema bookkeeping for this entry.
type Callee struct {
	TalentID     string
	Func         string
	TypeSelector string
	Registered   bool
}

// Equal compares two callees ignoring the Registered flag.
func (c Callee) Equal(o Callee) bool {
	return c.TalentID == o.TalentID && c.Func == o.Func && c.TypeSelector == o.TypeSelector
}

// InFeature returns the fully-qualified input feature this callee answers on.
func (c Callee) InFeature() string { return InOf(c.TalentID, c.Func) }

// OutFeature returns the fully-qualified output feature this callee replies on.
func (c Callee) OutFeature() string { return OutOf(c.TalentID, c.Func) }

// String renders the callee for logging.
func (c Callee) String() string {
	return fmt.Sprintf("%s.%s(%s)", c.TalentID, c.Func, c.TypeSelector)
}

// CallToken identifies one outstanding outbound call. Timeout is a relative
// duration in milliseconds as recorded at construction time; it is the
// caller's responsibility to turn it into an absolute deadline when
// building a Gatherer (see internal/correlator). ChannelID is the channel
// the call was (or would have been) published under — EventContext.Gather
// needs it to locate the right gatherer slot, since replies are correlated
// by (channel-id, call-id), not call-id alone. CallID is empty and Timeout
// is -1 for the sentinel token returned when a call could not be issued at
// all (unregistered callee).
type CallToken struct {
	CallID    string
	ChannelID string
	Timeout   int64
}

// SentinelToken is returned by EventContext.Call when a call could not be
// placed on the wire because the callee is unregistered.
var SentinelToken = CallToken{CallID: "", Timeout: -1}

// IsSentinel reports whether t is the no-call sentinel.
func (t CallToken) IsSentinel() bool { return t.CallID == "" && t.Timeout == -1 }

// Event is the normalized form of an inbound or outbound feature event.
type Event struct {
	Subject      string
	Feature      string
	Value        interface{}
	TypeSelector string
	Instance     string
	ReturnTopic  string
	WhenMs       int64
}

// OutgoingCall describes a call about to be placed on the wire.
type OutgoingCall struct {
	Callee      Callee
	Args        []interface{}
	CallID      string
	ChannelID   string
	Subject     string
	TimeoutAtMs int64
	EmittedAtMs int64
}

// PreparedReply captures everything needed to publish a reply to a caller
// without retaining the original inbound event payload.
type PreparedReply struct {
	SelfTalentID  string
	OutFeature    string
	Subject       string
	CallerChannel string
	CallerCallID  string
	TypeSelector  string
	Instance      string
	ReturnTopic   string
}
