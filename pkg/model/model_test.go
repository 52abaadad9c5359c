package model_test

import (
	"testing"

	"github.com/covesa/iotea-go-sdk/pkg/model"
)

func TestFeatureNameHelpers(t *testing.T) {
	if got := model.In("temp"); got != "temp-in" {
		t.Errorf("In(\"temp\") = %q, want \"temp-in\"", got)
	}
	if got := model.Out("temp"); got != "temp-out" {
		t.Errorf("Out(\"temp\") = %q, want \"temp-out\"", got)
	}
	if got := model.InOf("t1", "temp"); got != "t1.temp-in" {
		t.Errorf("InOf() = %q, want \"t1.temp-in\"", got)
	}
	if got := model.OutOf("t1", "temp"); got != "t1.temp-out" {
		t.Errorf("OutOf() = %q, want \"t1.temp-out\"", got)
	}
	if got := model.TypedInOf("default", "t1", "temp"); got != "default.t1.temp-in" {
		t.Errorf("TypedInOf() = %q, want \"default.t1.temp-in\"", got)
	}
}

func TestCallee_EqualIgnoresRegistered(t *testing.T) {
	a := model.Callee{TalentID: "t", Func: "f", TypeSelector: "default", Registered: true}
	b := model.Callee{TalentID: "t", Func: "f", TypeSelector: "default", Registered: false}
	if !a.Equal(b) {
		t.Error("Equal() = false, want true (Registered should not affect equality)")
	}
}

func TestCallee_InOutFeature(t *testing.T) {
	c := model.Callee{TalentID: "t1", Func: "greet"}
	if got := c.InFeature(); got != "t1.greet-in" {
		t.Errorf("InFeature() = %q, want \"t1.greet-in\"", got)
	}
	if got := c.OutFeature(); got != "t1.greet-out" {
		t.Errorf("OutFeature() = %q, want \"t1.greet-out\"", got)
	}
}

func TestSentinelToken_IsSentinel(t *testing.T) {
	if !model.SentinelToken.IsSentinel() {
		t.Error("SentinelToken.IsSentinel() = false, want true")
	}
	real := model.CallToken{CallID: "abc", Timeout: 5000}
	if real.IsSentinel() {
		t.Error("real token IsSentinel() = true, want false")
	}
}
