package talent

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/covesa/iotea-go-sdk/internal/rtcontext"
	"github.com/covesa/iotea-go-sdk/internal/schema"
	"github.com/covesa/iotea-go-sdk/pkg/model"
)

// Function is the handler a FunctionTalent invokes when called. It receives
// a CallContext (so it can Reply) and the decoded argument list.
type Function func(cc *rtcontext.CallContext, args []interface{}) (interface{}, error)

// registeredFunction pairs a function's handler with its advertised input
// and return value schemas.
type registeredFunction struct {
	handler    Function
	returnSpec schema.ValueSchema
}

// FunctionTalent extends Talent with callable functions: each registered
// function gets its own call-input feature (named "<func>-in" by
// model.In) and return-value schema, and
// the talent auto-triggers whenever any of them is invoked.
type FunctionTalent struct {
	*Talent

	mu        sync.RWMutex
	functions map[string]registeredFunction
}

// NewFunctionTalent constructs an empty function talent with the given ID.
func NewFunctionTalent(id string) *FunctionTalent {
	return &FunctionTalent{
		Talent:    New(id),
		functions: make(map[string]registeredFunction),
	}
}

// RegisterFunction registers fn under name, advertising returnSchema as the
// shape of the value fn replies with and the fixed func/args/chnl/call/
// timeoutAtMs envelope from FunctionSignatureSchema as the shape callers must
// send on the call-input feature. The call-input feature is
// exempted from the platform's dependency-cycle check, and is folded into
// this talent's discovery rule tree by GetSchema rather than mutating the
// user-declared trigger rule directly.
func (ft *FunctionTalent) RegisterFunction(name string, fn Function, returnSchema schema.ValueSchema) {
	ft.mu.Lock()
	ft.functions[name] = registeredFunction{handler: fn, returnSpec: returnSchema}
	ft.mu.Unlock()

	ft.AddOutput(model.Out(name), model.OutputSpec{
		Description: fmt.Sprintf("return value of function %q", name),
		Encoding:    mustEncode(returnSchema),
	})

	inputEncoding := schema.FunctionSignatureSchema(name)
	inFeature := model.In(name)
	ft.AddOutput(inFeature, model.OutputSpec{
		Description: fmt.Sprintf("call envelope for function %q", name),
		Encoding:    mustEncode(inputEncoding),
	})

	ft.SkipCycleCheckFor(model.InOf(ft.ID, name))
}

// Dispatch invokes the registered function named name with args via a
// CallContext built around reply. It returns an error if no function with
// that name was registered; the caller (the client's call-routing path) is
// expected to have already resolved which function a call-input feature
// maps to before calling Dispatch.
func (ft *FunctionTalent) Dispatch(name string, cc *rtcontext.CallContext, args []interface{}) (interface{}, error) {
	ft.mu.RLock()
	fn, ok := ft.functions[name]
	ft.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("talent: no function %q registered", name)
	}
	return fn.handler(cc, args)
}

// Functions returns the names of every registered function.
func (ft *FunctionTalent) Functions() []string {
	ft.mu.RLock()
	defer ft.mu.RUnlock()
	out := make([]string, 0, len(ft.functions))
	for name := range ft.functions {
		out = append(out, name)
	}
	return out
}

// GetSchema assembles this function talent's discovery document. Beyond the
// base Talent assembly (trigger rule + callee-reply rule), it folds in a
// call-input-rules branch: an "or" of one schema constraint per registered
// function matching that function's call envelope. Mutual exclusion lists
// keep a talent from re-triggering on its own call inputs or outputs:
//   - if no functions are registered, this is identical to Talent.GetSchema.
//   - if neither a trigger rule nor callee rules exist, call-input-rules is
//     the schema root outright.
//   - otherwise the root is the callee rule (or call-input rules, if there
//     is no callee rule) with the call-input branch and the wrapped trigger
//     branch appended as additional children. The call-input branch is
//     excluded on this talent's own output features; the trigger branch is
//     excluded on this talent's call-input features and, when callees are
//     registered, on their reply-output features.
func (ft *FunctionTalent) GetSchema() model.TalentSchema {
	ft.mu.RLock()
	names := make([]string, 0, len(ft.functions))
	for name := range ft.functions {
		names = append(names, name)
	}
	ft.mu.RUnlock()

	if len(names) == 0 {
		return ft.Talent.GetSchema()
	}

	ft.Talent.mu.RLock()
	trigger := ft.Talent.triggerRule
	outputs := make(map[string]model.OutputSpec, len(ft.Talent.outputs))
	for k, v := range ft.Talent.outputs {
		outputs[k] = v
	}
	skip := append([]string(nil), ft.Talent.skipCycle...)
	ft.Talent.mu.RUnlock()

	callee := ft.Talent.calleeRule()
	calleeOutFeatures := ft.Talent.calleeOutFeatures()
	ownOutputs := ft.outputFeatureNames()

	callInputFeatures := make([]string, 0, len(names))
	arms := make([]*model.RuleNode, 0, len(names))
	for _, name := range names {
		inFeature := model.InOf(ft.ID, name)
		callInputFeatures = append(callInputFeatures, inFeature)
		arms = append(arms, schema.Schema(inFeature, schema.FunctionSignatureSchema(name).ValueSchema))
	}
	callInputRules := schema.Wrap(schema.Or(arms...), "or")

	var root *model.RuleNode
	switch {
	case trigger == nil && callee == nil:
		root = callInputRules
	case callee == nil:
		schema.ExcludeOn(callInputRules, ownOutputs...)
		root = callInputRules
	default:
		schema.ExcludeOn(callInputRules, ownOutputs...)
		root = schema.AddChild(callee, callInputRules)
	}

	if trigger != nil {
		wrappedTrigger := schema.Wrap(trigger, "or")
		schema.ExcludeOn(wrappedTrigger, callInputFeatures...)
		if callee != nil {
			schema.ExcludeOn(wrappedTrigger, calleeOutFeatures...)
		}
		root = schema.AddChild(root, wrappedTrigger)
	}

	return model.TalentSchema{
		ID:             ft.ID,
		Outputs:        outputs,
		SkipCycleCheck: skip,
		Rules:          root,
	}
}

func mustEncode(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("talent: function schema does not serialize: %v", err))
	}
	return b
}
