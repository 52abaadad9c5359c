package schema_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/covesa/iotea-go-sdk/internal/schema"
	"github.com/covesa/iotea-go-sdk/pkg/model"
)

// ─── Constraint wire shape ───────────────────────────────────

func TestGreaterThanOrEqualTo_EmitsMisspelledKey(t *testing.T) {
	rule := schema.GreaterThanOrEqualTo("room.temperature", 20)

	b, err := json.Marshal(rule)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.Contains(string(b), `"minumum":20`) {
		t.Errorf("Marshal() = %s, want it to contain the wire-compatible \"minumum\" key", b)
	}
	if strings.Contains(string(b), `"minimum"`) {
		t.Errorf("Marshal() = %s, must never emit the correctly-spelled \"minimum\" key", b)
	}
}

func TestGreaterThan_UsesExclusiveMinimum(t *testing.T) {
	rule := schema.GreaterThan("room.temperature", 20)
	b, _ := json.Marshal(rule)
	if !strings.Contains(string(b), `"exclusiveMinimum":20`) {
		t.Errorf("Marshal() = %s, want exclusiveMinimum", b)
	}
}

func TestChange_HasNilValue(t *testing.T) {
	rule := schema.Change("room.temperature")
	if rule.Leaf.Op != model.OpChange {
		t.Errorf("Leaf.Op = %v, want OpChange", rule.Leaf.Op)
	}
}

func TestNelsonRules_EncodeSelectorIndex(t *testing.T) {
	cases := []struct {
		name string
		rule *model.RuleNode
		want model.NelsonRule
	}{
		{"Out1Se", schema.Out1Se("f"), model.NelsonOut1Se},
		{"Trend", schema.Trend("f"), model.NelsonTrend},
		{"HighDev", schema.HighDev("f"), model.NelsonHighDev},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.rule.Leaf.Op != model.OpNelson {
				t.Fatalf("Leaf.Op = %v, want OpNelson", tc.rule.Leaf.Op)
			}
			var got int
			if err := json.Unmarshal(tc.rule.Leaf.Value, &got); err != nil {
				t.Fatalf("Unmarshal(Value) error = %v", err)
			}
			if model.NelsonRule(got) != tc.want {
				t.Errorf("selector = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestWithType_SetsTypeSelectorOnLeaf(t *testing.T) {
	rule := schema.WithType(schema.IsSet("temp"), "fridge")
	if rule.Leaf.TypeSelector != "fridge" {
		t.Errorf("TypeSelector = %q, want %q", rule.Leaf.TypeSelector, "fridge")
	}
}

func TestWithInstance_SetsInstanceFilterOnLeaf(t *testing.T) {
	rule := schema.WithInstance(schema.IsSet("temp"), "fridge-1")
	if rule.Leaf.InstanceIDFilter != "fridge-1" {
		t.Errorf("InstanceIDFilter = %q, want %q", rule.Leaf.InstanceIDFilter, "fridge-1")
	}
}
