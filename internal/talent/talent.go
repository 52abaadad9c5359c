// Package talent provides the base Talent type applications embed to
// participate in the runtime: rule-based triggering, callee registration,
// and discovery-schema assembly. It is grounded on the provider-driver
// registry's embed-and-override pattern, where a concrete driver embeds a
// base struct supplying bookkeeping and overrides only its domain hooks.
package talent

import (
	"fmt"
	"sync"

	"github.com/covesa/iotea-go-sdk/internal/rtcontext"
	"github.com/covesa/iotea-go-sdk/internal/schema"
	"github.com/covesa/iotea-go-sdk/pkg/model"
)

// EventHandler reacts to one inbound trigger event.
type EventHandler func(ec *rtcontext.EventContext, ev model.Event) error

// PlatformEventHandler reacts to a platform lifecycle notification.
type PlatformEventHandler func(ec *rtcontext.EventContext, ev model.Event) error

// ErrorHandler reacts to a protocol-level error frame addressed to this talent.
type ErrorHandler func(code int, message string)

// Talent is the base capability every participant in the runtime embeds.
// Concrete talents set OnEvent (and optionally OnPlatformEvent/OnError) and
// call AddOutput/RegisterCallee/SetTriggerRule during construction; GetSchema
// assembles the discovery document the client publishes on its behalf.
type Talent struct {
	ID string

	mu          sync.RWMutex
	outputs     map[string]model.OutputSpec
	callees     map[string]model.Callee // keyed by "<talentID>.<func>"
	triggerRule *model.RuleNode
	skipCycle   []string

	OnEvent         EventHandler
	OnPlatformEvent PlatformEventHandler
	OnError         ErrorHandler
}

// New constructs an empty talent with the given ID.
func New(id string) *Talent {
	return &Talent{
		ID:      id,
		outputs: make(map[string]model.OutputSpec),
		callees: make(map[string]model.Callee),
	}
}

// AddOutput registers an output feature this talent may emit, along with
// the JSON Schema metadata describing its values.
func (t *Talent) AddOutput(feature string, spec model.OutputSpec) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.outputs[feature] = spec
}

// SetTriggerRule sets the rule tree that determines which events cause this
// talent's OnEvent to fire. Nil clears it — a talent with no trigger rule
// and no registered callees is never invoked directly (only as a callee).
func (t *Talent) SetTriggerRule(rule *model.RuleNode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.triggerRule = rule
}

// SkipCycleCheckFor marks output features exempt from the platform's
// dependency-cycle detection, for talents whose own output legitimately
// feeds back into one of their trigger features.
func (t *Talent) SkipCycleCheckFor(features ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.skipCycle = append(t.skipCycle, features...)
}

// RegisterCallee records a remote function this talent intends to call and
// returns the Callee handle (now Registered) to pass to EventContext.Call.
// Registering a callee implicitly extends this talent's discovery rule so
// the platform routes that callee's replies back to it.
func (t *Talent) RegisterCallee(talentID, function, typeSelector string) model.Callee {
	t.mu.Lock()
	defer t.mu.Unlock()
	c := model.Callee{TalentID: talentID, Func: function, TypeSelector: typeSelector, Registered: true}
	t.callees[c.String()] = c
	return c
}

// Callees returns every callee this talent has registered.
func (t *Talent) Callees() []model.Callee {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]model.Callee, 0, len(t.callees))
	for _, c := range t.callees {
		out = append(out, c)
	}
	return out
}

// calleeRule builds the auto-generated "or" rule over every registered
// callee's reply-output feature, which is how the platform knows to route
// call replies back to this talent even absent an explicit trigger on them.
// Each arm is a RegexMatch on the reply envelope's "$tsuffix" path, matching
// only replies addressed back to this talent's own channel prefix
// ("/<talentID>.<uuid>/..."), not merely "this feature was set".
func (t *Talent) calleeRule() *model.RuleNode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.callees) == 0 {
		return nil
	}
	pattern := fmt.Sprintf(`^\/%s\.[^\/]+\/.*`, t.ID)
	rules := make([]*model.RuleNode, 0, len(t.callees))
	for _, c := range t.callees {
		leaf := schema.RegexMatch(c.OutFeature(), pattern)
		leaf.Leaf.Path = "/$tsuffix"
		rules = append(rules, leaf)
	}
	return schema.Wrap(schema.Or(rules...), "or")
}

// calleeOutFeatures returns the reply-output feature names of every
// registered callee, used to exclude them from the trigger branch of the
// assembled rule so a talent doesn't re-trigger itself on its own call replies.
func (t *Talent) calleeOutFeatures() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.callees))
	for _, c := range t.callees {
		out = append(out, c.OutFeature())
	}
	return out
}

// GetRules assembles this talent's full discovery rule tree: its declared
// trigger rule combined with the auto-generated callee-reply rule, per the
// four-case assembly in schema.AssembleTalentRule.
func (t *Talent) GetRules() *model.RuleNode {
	t.mu.RLock()
	trigger := t.triggerRule
	t.mu.RUnlock()
	return schema.AssembleTalentRule(trigger, t.calleeRule(), t.calleeOutFeatures())
}

// outputFeatureNames returns the (unqualified) names of every output feature
// this talent has declared via AddOutput.
func (t *Talent) outputFeatureNames() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.outputs))
	for f := range t.outputs {
		out = append(out, f)
	}
	return out
}

// GetSchema assembles the discovery document this talent publishes.
func (t *Talent) GetSchema() model.TalentSchema {
	t.mu.RLock()
	outputs := make(map[string]model.OutputSpec, len(t.outputs))
	for k, v := range t.outputs {
		outputs[k] = v
	}
	skip := append([]string(nil), t.skipCycle...)
	t.mu.RUnlock()

	return model.TalentSchema{
		ID:             t.ID,
		Outputs:        outputs,
		SkipCycleCheck: skip,
		Rules:          t.GetRules(),
	}
}

// WatchedFeatures returns every feature name this talent's assembled rule
// tree references — its trigger features plus its registered callees'
// reply-output features. The client uses this to decide which inbound
// events to route to this talent.
func (t *Talent) WatchedFeatures() []string {
	return schema.FeaturesOf(t.GetRules())
}

// HandleError invokes OnError if set; talents that don't care about
// protocol errors addressed to them may leave it nil.
func (t *Talent) HandleError(code int, message string) {
	if t.OnError != nil {
		t.OnError(code, message)
	}
}
