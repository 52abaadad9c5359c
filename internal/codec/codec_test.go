package codec_test

import (
	"encoding/json"
	"testing"

	"github.com/covesa/iotea-go-sdk/internal/codec"
	"github.com/covesa/iotea-go-sdk/pkg/model"
)

// ─── Inbound classification ──────────────────────────────────

func TestParseInbound_Event(t *testing.T) {
	raw := []byte(`{"msgType":1,"subject":"s","feature":"f","value":42,"type":"default","instance":"i","whenMs":100}`)

	in, err := codec.ParseInbound(raw)
	if err != nil {
		t.Fatalf("ParseInbound() error = %v", err)
	}
	if in.Kind != codec.KindEvent {
		t.Fatalf("Kind = %v, want KindEvent", in.Kind)
	}
	if in.Event.Feature != "f" {
		t.Errorf("Event.Feature = %q, want \"f\"", in.Event.Feature)
	}
	if v, ok := in.Event.Value.(float64); !ok || v != 42 {
		t.Errorf("Event.Value = %v, want 42", in.Event.Value)
	}
}

func TestParseInbound_Discover_DefaultsVersion(t *testing.T) {
	raw := []byte(`{"msgType":2,"returnTopic":"back/topic"}`)

	in, err := codec.ParseInbound(raw)
	if err != nil {
		t.Fatalf("ParseInbound() error = %v", err)
	}
	if in.Kind != codec.KindDiscover {
		t.Fatalf("Kind = %v, want KindDiscover", in.Kind)
	}
	if in.Discover.Version != "0.0.0" {
		t.Errorf("Discover.Version = %q, want \"0.0.0\"", in.Discover.Version)
	}
	if in.Discover.ReturnTopic != "back/topic" {
		t.Errorf("Discover.ReturnTopic = %q, want \"back/topic\"", in.Discover.ReturnTopic)
	}
}

func TestParseInbound_Error_MapsKnownCode(t *testing.T) {
	raw := []byte(`{"msgType":4,"code":4001}`)

	in, err := codec.ParseInbound(raw)
	if err != nil {
		t.Fatalf("ParseInbound() error = %v", err)
	}
	want := "feature dependency loop found"
	if in.Error.Message != want {
		t.Errorf("Error.Message = %q, want %q", in.Error.Message, want)
	}
}

func TestParseInbound_Error_UnknownCodeFallsBack(t *testing.T) {
	raw := []byte(`{"msgType":4,"code":9999}`)
	in, err := codec.ParseInbound(raw)
	if err != nil {
		t.Fatalf("ParseInbound() error = %v", err)
	}
	if in.Error.Message != "unknown error" {
		t.Errorf("Error.Message = %q, want \"unknown error\"", in.Error.Message)
	}
}

func TestParseInbound_MissingMsgType(t *testing.T) {
	if _, err := codec.ParseInbound([]byte(`{"subject":"s"}`)); err == nil {
		t.Fatal("ParseInbound() error = nil, want error for missing msgType")
	}
}

func TestParseInbound_MalformedJSON(t *testing.T) {
	if _, err := codec.ParseInbound([]byte(`not json`)); err == nil {
		t.Fatal("ParseInbound() error = nil, want error for malformed JSON")
	}
}

func TestParseInbound_UnknownMsgType(t *testing.T) {
	if _, err := codec.ParseInbound([]byte(`{"msgType":99}`)); err == nil {
		t.Fatal("ParseInbound() error = nil, want error for unknown msgType")
	}
}

// ─── Platform events ─────────────────────────────────────────

func TestParsePlatformEvent_TalentRulesSet(t *testing.T) {
	raw := []byte(`{"type":"platform.talent.config.set","data":{"id":"t1"},"timestamp":123}`)
	pe, err := codec.ParsePlatformEvent(raw)
	if err != nil {
		t.Fatalf("ParsePlatformEvent() error = %v", err)
	}
	if pe.Kind != codec.PlatformTalentRulesSet {
		t.Errorf("Kind = %v, want PlatformTalentRulesSet", pe.Kind)
	}
	if pe.Timestamp != 123 {
		t.Errorf("Timestamp = %d, want 123", pe.Timestamp)
	}
}

func TestParsePlatformEvent_UnknownTypeIsUndef(t *testing.T) {
	raw := []byte(`{"type":"something.else","timestamp":1}`)
	pe, err := codec.ParsePlatformEvent(raw)
	if err != nil {
		t.Fatalf("ParsePlatformEvent() error = %v", err)
	}
	if pe.Kind != codec.PlatformUndef {
		t.Errorf("Kind = %v, want PlatformUndef", pe.Kind)
	}
}

// ─── Outbound encoding ────────────────────────────────────────

func TestEncodeEvent(t *testing.T) {
	b, err := codec.EncodeEvent(model.Event{
		Subject: "s", Feature: "talent.feature-out", Value: 1, Instance: "i", WhenMs: 5,
	})
	if err != nil {
		t.Fatalf("EncodeEvent() error = %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded["feature"] != "talent.feature-out" {
		t.Errorf("feature = %v, want talent.feature-out", decoded["feature"])
	}
}

func TestEncodeCall_FeatureNamesCalleeInput(t *testing.T) {
	oc := model.OutgoingCall{
		Callee:      model.Callee{TalentID: "callee", Func: "doit", Registered: true},
		Args:        []interface{}{1, 2},
		CallID:      "c1",
		ChannelID:   "ch1",
		Subject:     "s",
		TimeoutAtMs: 999,
		EmittedAtMs: 1,
	}
	b, err := codec.EncodeCall(oc)
	if err != nil {
		t.Fatalf("EncodeCall() error = %v", err)
	}
	var decoded map[string]interface{}
	json.Unmarshal(b, &decoded)
	if decoded["feature"] != "callee.doit-in" {
		t.Errorf("feature = %v, want callee.doit-in", decoded["feature"])
	}
	value := decoded["value"].(map[string]interface{})
	if value["call"] != "c1" || value["chnl"] != "ch1" {
		t.Errorf("value = %+v, want call=c1 chnl=ch1", value)
	}
}

func TestEncodeCall_NilArgsBecomeEmptyArray(t *testing.T) {
	oc := model.OutgoingCall{Callee: model.Callee{TalentID: "c", Func: "f", Registered: true}}
	b, _ := codec.EncodeCall(oc)
	var decoded map[string]interface{}
	json.Unmarshal(b, &decoded)
	value := decoded["value"].(map[string]interface{})
	args, ok := value["args"].([]interface{})
	if !ok {
		t.Fatalf("args = %v (%T), want an empty array", value["args"], value["args"])
	}
	if len(args) != 0 {
		t.Errorf("args = %v, want empty", args)
	}
}

func TestEncodeReply_BuildsTsuffixFromCallerChannelAndCallID(t *testing.T) {
	p := model.PreparedReply{
		SelfTalentID:  "callee",
		OutFeature:    "doit",
		Subject:       "s",
		CallerChannel: "ch1",
		CallerCallID:  "c1",
	}
	b, err := codec.EncodeReply(p, "result", 10)
	if err != nil {
		t.Fatalf("EncodeReply() error = %v", err)
	}
	var decoded map[string]interface{}
	json.Unmarshal(b, &decoded)
	if decoded["feature"] != "callee.doit-out" {
		t.Errorf("feature = %v, want callee.doit-out", decoded["feature"])
	}
	value := decoded["value"].(map[string]interface{})
	if value["$tsuffix"] != "/ch1/c1" {
		t.Errorf("$tsuffix = %v, want /ch1/c1", value["$tsuffix"])
	}
	if value["value"] != "result" {
		t.Errorf("value.value = %v, want result", value["value"])
	}
}

func TestDecodeCallEnvelope_RoundTrip(t *testing.T) {
	oc := model.OutgoingCall{
		Callee: model.Callee{TalentID: "c", Func: "f", Registered: true},
		Args:   []interface{}{"x"},
		CallID: "call-1", ChannelID: "chan-1", TimeoutAtMs: 50,
	}
	b, _ := codec.EncodeCall(oc)

	in, err := codec.ParseInbound(prependMsgType(b))
	if err != nil {
		t.Fatalf("ParseInbound() error = %v", err)
	}
	env, err := codec.DecodeCallEnvelope(in.Event.Value)
	if err != nil {
		t.Fatalf("DecodeCallEnvelope() error = %v", err)
	}
	if env.Call != "call-1" || env.Chnl != "chan-1" {
		t.Errorf("env = %+v, want Call=call-1 Chnl=chan-1", env)
	}
}

func TestSplitTsuffix(t *testing.T) {
	channelID, callID, ok := codec.SplitTsuffix("/ch1/c1")
	if !ok {
		t.Fatal("SplitTsuffix() ok = false, want true")
	}
	if channelID != "ch1" || callID != "c1" {
		t.Errorf("got (%q, %q), want (ch1, c1)", channelID, callID)
	}
}

func TestSplitTsuffix_Malformed(t *testing.T) {
	if _, _, ok := codec.SplitTsuffix("garbage"); ok {
		t.Error("SplitTsuffix(\"garbage\") ok = true, want false")
	}
}

// prependMsgType re-wraps an already-encoded event/call payload with a
// msgType field, simulating what an adapter delivers on the wire for an
// event-shaped frame (EncodeCall's output is itself a full frame already
// carrying subject/feature/value/whenMs, only msgType is added by the
// platform for classification).
func prependMsgType(payload []byte) []byte {
	var m map[string]interface{}
	json.Unmarshal(payload, &m)
	m["msgType"] = 1
	b, _ := json.Marshal(m)
	return b
}
