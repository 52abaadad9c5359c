package talent_test

import (
	"testing"

	"github.com/covesa/iotea-go-sdk/internal/rtcontext"
	"github.com/covesa/iotea-go-sdk/internal/schema"
	"github.com/covesa/iotea-go-sdk/internal/talent"
	"github.com/covesa/iotea-go-sdk/pkg/model"
)

func TestGetRules_OnlyTriggerRule(t *testing.T) {
	tl := talent.New("t1")
	tl.SetTriggerRule(schema.IsSet("room.temperature"))

	rules := tl.GetRules()
	if !rules.IsCombinator() || rules.Combinator != "or" {
		t.Fatalf("GetRules() = %+v, want a wrapped or-node", rules)
	}
}

func TestGetRules_OnlyCalleeRule(t *testing.T) {
	tl := talent.New("t1")
	tl.RegisterCallee("other", "func", "default")

	rules := tl.GetRules()
	if !rules.IsCombinator() || rules.Combinator != "or" {
		t.Fatalf("GetRules() = %+v, want an or-node over callee replies", rules)
	}
	if len(rules.Children) != 1 {
		t.Fatalf("GetRules().Children = %d, want 1", len(rules.Children))
	}
}

func TestGetRules_Neither(t *testing.T) {
	tl := talent.New("t1")
	if got := tl.GetRules(); got != nil {
		t.Errorf("GetRules() = %+v, want nil", got)
	}
}

func TestRegisterCallee_IsIdempotentByIdentity(t *testing.T) {
	tl := talent.New("t1")
	c1 := tl.RegisterCallee("other", "func", "default")
	c2 := tl.RegisterCallee("other", "func", "default")
	if !c1.Equal(c2) {
		t.Errorf("RegisterCallee() twice produced unequal callees: %v vs %v", c1, c2)
	}
	if len(tl.Callees()) != 1 {
		t.Errorf("Callees() = %d, want 1 (re-registration should not duplicate)", len(tl.Callees()))
	}
}

func TestWatchedFeatures_IncludesCalleeOutputAndTrigger(t *testing.T) {
	tl := talent.New("t1")
	tl.SetTriggerRule(schema.IsSet("room.temperature"))
	tl.RegisterCallee("other", "func", "default")

	watched := tl.WatchedFeatures()
	want := map[string]bool{"room.temperature": false, "other.func-out": false}
	for _, f := range watched {
		if _, ok := want[f]; ok {
			want[f] = true
		}
	}
	for f, found := range want {
		if !found {
			t.Errorf("WatchedFeatures() = %v, missing %q", watched, f)
		}
	}
}

func TestGetSchema_IncludesOutputs(t *testing.T) {
	tl := talent.New("t1")
	tl.AddOutput("alert", model.OutputSpec{Description: "an alert"})

	s := tl.GetSchema()
	if s.ID != "t1" {
		t.Errorf("Schema.ID = %q, want \"t1\"", s.ID)
	}
	if _, ok := s.Outputs["alert"]; !ok {
		t.Errorf("Schema.Outputs = %+v, missing \"alert\"", s.Outputs)
	}
}

func TestFunctionTalent_RegisterFunctionAddsInputAndOutputFeatures(t *testing.T) {
	ft := talent.NewFunctionTalent("greeter")
	ft.RegisterFunction("greet", func(cc *rtcontext.CallContext, args []interface{}) (interface{}, error) {
		return "hi", nil
	}, schema.String().ValueSchema)

	s := ft.GetSchema()
	if _, ok := s.Outputs[model.In("greet")]; !ok {
		t.Errorf("Outputs = %+v, missing input feature for \"greet\"", s.Outputs)
	}
	if _, ok := s.Outputs[model.Out("greet")]; !ok {
		t.Errorf("Outputs = %+v, missing output feature for \"greet\"", s.Outputs)
	}
}

func TestFunctionTalent_DispatchInvokesRegisteredHandler(t *testing.T) {
	ft := talent.NewFunctionTalent("greeter")
	ft.RegisterFunction("greet", func(cc *rtcontext.CallContext, args []interface{}) (interface{}, error) {
		return "hi " + args[0].(string), nil
	}, schema.String().ValueSchema)

	got, err := ft.Dispatch("greet", nil, []interface{}{"world"})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if got != "hi world" {
		t.Errorf("Dispatch() = %v, want \"hi world\"", got)
	}
}

func TestFunctionTalent_DispatchUnknownFunction(t *testing.T) {
	ft := talent.NewFunctionTalent("greeter")
	if _, err := ft.Dispatch("missing", nil, nil); err == nil {
		t.Error("Dispatch(missing) error = nil, want an error")
	}
}
