package client_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/covesa/iotea-go-sdk/internal/adapter/memory"
	"github.com/covesa/iotea-go-sdk/internal/client"
	"github.com/covesa/iotea-go-sdk/internal/codec"
	"github.com/covesa/iotea-go-sdk/internal/config"
	"github.com/covesa/iotea-go-sdk/internal/gateway"
	"github.com/covesa/iotea-go-sdk/internal/rtcontext"
	"github.com/covesa/iotea-go-sdk/internal/schema"
	"github.com/covesa/iotea-go-sdk/internal/talent"
)

func newTestClient(t *testing.T) (*client.Client, *memory.Bus) {
	t.Helper()
	cfg := config.Default()
	cfg.TickerPeriod = 10 * time.Millisecond

	bus := memory.NewBus()
	adapter := bus.NewAdapter("platform", true)
	gw, err := gateway.NewWithAdapters(adapter)
	if err != nil {
		t.Fatalf("NewWithAdapters() error = %v", err)
	}

	c := client.New(cfg, gw)
	t.Cleanup(func() { c.Stop(context.Background()) })
	return c, bus
}

// ─── S1: discovery echo ──────────────────────────────────────

func TestClient_RespondsToDiscoveryWithEveryTalentSchema(t *testing.T) {
	c, bus := newTestClient(t)

	tl := talent.New("room-monitor")
	tl.SetTriggerRule(schema.GreaterThan("room.temperature-out", 30))
	c.RegisterTalent(tl)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	probe := bus.NewAdapter("probe", false)
	received := make(chan []byte, 1)
	probe.Subscribe(context.Background(), "return/topic", func(topic string, payload []byte, adapterID string) {
		received <- payload
	}, gateway.SubscribeOptions{})

	discoverFrame, _ := json.Marshal(map[string]interface{}{"msgType": 2, "returnTopic": "return/topic"})
	probe.Publish(context.Background(), config.Default().DiscoveryTopic, discoverFrame, gateway.PublishOptions{PlatformProtoOnly: true})

	select {
	case payload := <-received:
		var raw map[string]interface{}
		if err := json.Unmarshal(payload, &raw); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		if raw["id"] != "room-monitor" {
			t.Errorf("schema id = %v, want \"room-monitor\"", raw["id"])
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for discovery response")
	}
}

// ─── S2: function call round trip ────────────────────────────

func TestClient_FunctionCallRoundTrip(t *testing.T) {
	c, bus := newTestClient(t)

	ft := talent.NewFunctionTalent("greeter")
	ft.RegisterFunction("greet", func(cc *rtcontext.CallContext, args []interface{}) (interface{}, error) {
		return "hello " + args[0].(string), nil
	}, schema.String().ValueSchema)
	c.RegisterFunctionTalent(ft)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	caller := bus.NewAdapter("caller", false)
	received := make(chan map[string]interface{}, 1)
	caller.Subscribe(context.Background(), config.Default().IngestionTopic, func(topic string, payload []byte, adapterID string) {
		var frame map[string]interface{}
		json.Unmarshal(payload, &frame)
		if frame["feature"] == "greeter.greet-out" {
			received <- frame
		}
	}, gateway.SubscribeOptions{})

	callFrame, _ := json.Marshal(map[string]interface{}{
		"msgType": 1,
		"subject": "s",
		"feature": "greeter.greet-in",
		"type":    "default",
		"value": map[string]interface{}{
			"func": "greet", "args": []interface{}{"world"},
			"call": "call-1", "chnl": "chan-1", "timeoutAtMs": time.Now().Add(time.Minute).UnixMilli(),
		},
	})
	caller.Publish(context.Background(), config.Default().IngestionTopic, callFrame, gateway.PublishOptions{})

	select {
	case frame := <-received:
		value := frame["value"].(map[string]interface{})
		if value["$tsuffix"] != "/chan-1/call-1" {
			t.Errorf("$tsuffix = %v, want /chan-1/call-1", value["$tsuffix"])
		}
		if value["value"] != "hello world" {
			t.Errorf("reply value = %v, want \"hello world\"", value["value"])
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for function reply")
	}
}

// ─── Reaper ticker lifecycle ─────────────────────────────────

func TestClient_TickerStopsCleanlyWithoutDeadlock(t *testing.T) {
	c, _ := newTestClient(t)
	c.RegisterTalent(talent.New("caller"))

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
}
