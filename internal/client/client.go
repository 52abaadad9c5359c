// Package client implements the Client/Router: the runtime component that
// wires a set of talents to a transport gateway, answers discovery probes
// on their behalf, routes inbound events to the right talent, and reaps
// expired call gatherers on a ticker. It is grounded on the control plane's
// MCP gateway dispatch loop (inbound JSON-RPC frame -> classify -> route to
// the right registered backend) and the retention janitor's ticker-driven
// sweep, applied here to reply timeouts instead of record expiry.
//
// The client does not reimplement the platform's JSON-Schema rule
// evaluator: routing an inbound event to a talent is decided by matching
// ev.Feature against the feature names that talent's assembled rule tree
// references (see talent.WatchedFeatures), not by evaluating SCHEMA/CHANGE/
// NELSON constraints client-side. Full constraint evaluation belongs to the
// platform the client talks to; the SDK's job is to get payloads to the
// subset of talents a human reading their schema would expect to see them,
// and to build correctly-shaped wire frames.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/metric"

	"github.com/covesa/iotea-go-sdk/internal/codec"
	"github.com/covesa/iotea-go-sdk/internal/config"
	"github.com/covesa/iotea-go-sdk/internal/correlator"
	"github.com/covesa/iotea-go-sdk/internal/gateway"
	"github.com/covesa/iotea-go-sdk/internal/rtcontext"
	"github.com/covesa/iotea-go-sdk/internal/talent"
	"github.com/covesa/iotea-go-sdk/pkg/model"
)

// participant bundles a registered talent with its function-talent facet,
// if it has one.
type participant struct {
	base *talent.Talent
	fn   *talent.FunctionTalent
}

// Client owns the transport gateway and reply correlator, and routes
// inbound traffic to the talents registered with it.
type Client struct {
	cfg config.Config
	gw  *gateway.Gateway
	rc  *correlator.ReplyCorrelator

	mu   sync.Mutex
	byID map[string]*participant

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	now      func() int64
}

// New constructs a Client bound to gw, using cfg for topic names and the
// reaper ticker period.
func New(cfg config.Config, gw *gateway.Gateway) *Client {
	return &Client{
		cfg:  cfg,
		gw:   gw,
		rc:   correlator.New(),
		byID: make(map[string]*participant),
		now:  func() int64 { return time.Now().UnixMilli() },
	}
}

// WithMeter wires the client's reply correlator up to meter, registering
// gatherer-lifecycle instruments (completed/timed-out counts, a pending
// gauge). Call before Start; harmless but pointless after, since the
// callback it registers only samples Pending() going forward.
func (c *Client) WithMeter(meter metric.Meter) error {
	_, err := c.rc.WithMeter(meter)
	return err
}

// RegisterTalent adds a plain talent to the client.
func (c *Client) RegisterTalent(t *talent.Talent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[t.ID] = &participant{base: t}
}

// RegisterFunctionTalent adds a function talent to the client.
func (c *Client) RegisterFunctionTalent(ft *talent.FunctionTalent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[ft.ID] = &participant{base: ft.Talent, fn: ft}
}

// Schemas returns the discovery schema of every registered talent, in no
// particular order. Exposed for introspection (see internal/debugserver)
// rather than anything on the wire path.
func (c *Client) Schemas() []model.TalentSchema {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.TalentSchema, 0, len(c.byID))
	for _, p := range c.byID {
		if p.fn != nil {
			out = append(out, p.fn.GetSchema())
			continue
		}
		out = append(out, p.base.GetSchema())
	}
	return out
}

// Start starts the gateway, subscribes to the ingestion, discovery, and
// platform-events topics, and begins the reaper ticker. Start must be
// called after every talent this client will ever serve has been
// registered — the subscriptions below route against byID as it stands at
// subscribe time within each callback invocation, so later registrations
// are picked up on the next message, but discovery responses published
// before a late registration won't include it.
func (c *Client) Start(ctx context.Context) error {
	if err := c.gw.Start(ctx); err != nil {
		return fmt.Errorf("client: starting gateway: %w", err)
	}

	if err := c.gw.Subscribe(ctx, c.cfg.IngestionTopic, c.handleIngestion, gateway.SubscribeOptions{}); err != nil {
		return fmt.Errorf("client: subscribing ingestion topic: %w", err)
	}
	if err := c.gw.Subscribe(ctx, c.cfg.DiscoveryTopic, c.handleDiscover, gateway.SubscribeOptions{PlatformProtoOnly: true}); err != nil {
		return fmt.Errorf("client: subscribing discovery topic: %w", err)
	}
	if err := c.gw.Subscribe(ctx, c.cfg.PlatformEventsTopic, c.handlePlatformEvents, gateway.SubscribeOptions{PlatformProtoOnly: true}); err != nil {
		return fmt.Errorf("client: subscribing platform events topic: %w", err)
	}

	c.stopCh = make(chan struct{})
	c.wg.Add(1)
	go c.reapLoop()

	log.Info().Int("talents", len(c.byID)).Msg("client started")
	return nil
}

// Stop stops the reaper ticker and every adapter. Safe to call more than
// once; only the first call has any effect.
func (c *Client) Stop(ctx context.Context) error {
	c.stopOnce.Do(func() {
		if c.stopCh != nil {
			close(c.stopCh)
			c.wg.Wait()
		}
	})
	return c.gw.Stop(ctx)
}

func (c *Client) reapLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.TickerPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			expired := c.rc.ExtractExpired(c.now())
			if len(expired) > 0 {
				log.Debug().Int("count", len(expired)).Msg("reaped expired gatherers")
			}
		}
	}
}

// handleDiscover responds to a discovery probe by publishing every
// registered talent's schema document to the probe's return topic.
func (c *Client) handleDiscover(topic string, payload []byte, adapterID string) {
	inbound, err := codec.ParseInbound(payload)
	if err != nil || inbound.Kind != codec.KindDiscover {
		log.Warn().Err(err).Msg("malformed discovery probe")
		return
	}

	c.mu.Lock()
	schemas := make([]model.TalentSchema, 0, len(c.byID))
	for _, p := range c.byID {
		if p.fn != nil {
			schemas = append(schemas, p.fn.GetSchema())
			continue
		}
		schemas = append(schemas, p.base.GetSchema())
	}
	c.mu.Unlock()

	for _, s := range schemas {
		payload, err := codec.EncodeSchema(s)
		if err != nil {
			log.Error().Err(err).Str("talent", s.ID).Msg("encoding discovery schema")
			continue
		}
		opts := gateway.PublishOptions{PlatformProtoOnly: true, AdapterID: adapterID}
		if err := c.gw.Publish(context.Background(), inbound.Discover.ReturnTopic, payload, opts); err != nil {
			log.Error().Err(err).Str("talent", s.ID).Msg("publishing discovery schema")
		}
	}
}

// handlePlatformEvents dispatches a platform lifecycle notification to
// every talent that declared an OnPlatformEvent handler.
func (c *Client) handlePlatformEvents(topic string, payload []byte, adapterID string) {
	pe, err := codec.ParsePlatformEvent(payload)
	if err != nil {
		log.Warn().Err(err).Msg("malformed platform event")
		return
	}

	var typeSelector string
	switch pe.Kind {
	case codec.PlatformTalentRulesSet:
		typeSelector = "platform.talent.config.set"
	case codec.PlatformTalentRulesUnset:
		typeSelector = "platform.talent.config.unset"
	default:
		typeSelector = "platform.undef"
	}

	var data interface{}
	if len(pe.Data) > 0 {
		_ = json.Unmarshal(pe.Data, &data)
	}

	c.mu.Lock()
	participants := make([]*participant, 0, len(c.byID))
	for _, p := range c.byID {
		participants = append(participants, p)
	}
	c.mu.Unlock()

	for _, p := range participants {
		if p.base.OnPlatformEvent == nil {
			continue
		}
		ev := model.Event{Feature: "$platform", Value: data, TypeSelector: typeSelector, WhenMs: pe.Timestamp}
		ec := rtcontext.New(p.base.ID, "", c.cfg.IngestionTopic, "", c.gw, c.rc)
		go func(p *participant, ev model.Event) {
			if err := p.base.OnPlatformEvent(ec, ev); err != nil {
				log.Error().Err(err).Str("talent", p.base.ID).Msg("platform event handler failed")
			}
		}(p, ev)
	}
}

// handleIngestion is the single entry point for every event, call, and
// reply frame published on the shared ingestion topic.
func (c *Client) handleIngestion(topic string, payload []byte, adapterID string) {
	inbound, err := codec.ParseInbound(payload)
	if err != nil {
		log.Debug().Err(err).Msg("dropping malformed ingestion frame")
		return
	}

	switch inbound.Kind {
	case codec.KindEvent:
		c.routeEvent(*inbound.Event)
	case codec.KindError:
		c.broadcastError(inbound.Error.Code, inbound.Error.Message)
	}
}

func (c *Client) broadcastError(code int, message string) {
	c.mu.Lock()
	participants := make([]*participant, 0, len(c.byID))
	for _, p := range c.byID {
		participants = append(participants, p)
	}
	c.mu.Unlock()
	for _, p := range participants {
		p.base.HandleError(code, message)
	}
}

func (c *Client) routeEvent(ev model.Event) {
	c.mu.Lock()
	participants := make([]*participant, 0, len(c.byID))
	for _, p := range c.byID {
		participants = append(participants, p)
	}
	c.mu.Unlock()

	for _, p := range participants {
		if p.fn != nil && c.routeCall(p, ev) {
			continue
		}
		c.routeReplyOrEvent(p, ev)
	}
}

// routeCall checks whether ev targets one of p's registered functions'
// call-input features, and if so dispatches it. Returns true if ev was a
// call targeting this participant (whether or not dispatch succeeded), so
// the caller knows not to also treat it as a plain trigger event.
func (c *Client) routeCall(p *participant, ev model.Event) bool {
	for _, name := range p.fn.Functions() {
		if ev.Feature != model.InOf(p.base.ID, name) {
			continue
		}
		env, err := codec.DecodeCallEnvelope(ev.Value)
		if err != nil {
			log.Warn().Err(err).Str("talent", p.base.ID).Str("func", name).Msg("malformed call envelope")
			return true
		}

		reply := model.PreparedReply{
			SelfTalentID:  p.base.ID,
			OutFeature:    name,
			Subject:       ev.Subject,
			CallerChannel: env.Chnl,
			CallerCallID:  env.Call,
			TypeSelector:  ev.TypeSelector,
			Instance:      ev.Instance,
			ReturnTopic:   ev.ReturnTopic,
		}
		ec := rtcontext.New(p.base.ID, ev.Subject, c.cfg.IngestionTopic, ev.ReturnTopic, c.gw, c.rc)
		cc := rtcontext.NewCallContext(ec, reply, env.TimeoutAtMs)

		go func(name string, args []interface{}) {
			result, err := p.fn.Dispatch(name, cc, args)
			if err != nil {
				log.Error().Err(err).Str("talent", p.base.ID).Str("func", name).Msg("function dispatch failed")
				return
			}
			if err := cc.Reply(result); err != nil {
				log.Error().Err(err).Str("talent", p.base.ID).Str("func", name).Msg("publishing function reply")
			}
		}(name, env.Args)
		return true
	}
	return false
}

// routeReplyOrEvent handles ev as either a call reply p is waiting on (via
// the correlator) or an ordinary trigger event, never both: a frame that
// decodes as a reply envelope is by construction never also a plain trigger
// event, so it is never passed on to OnEvent.
func (c *Client) routeReplyOrEvent(p *participant, ev model.Event) {
	if env, err := codec.DecodeReplyEnvelope(ev.Value); err == nil && env.Tsuffix != "" {
		channelID, callID, ok := codec.SplitTsuffix(env.Tsuffix)
		if !ok {
			log.Warn().Str("tsuffix", env.Tsuffix).Msg("malformed reply $tsuffix")
			return
		}
		if c.rc.Extract(channelID, callID, env.Value) == nil {
			log.Debug().Str("channel", channelID).Str("call", callID).Msg("reply arrived for an unknown or already-reaped call")
		}
		return
	}

	if p.base.OnEvent == nil {
		return
	}
	watched := p.base.WatchedFeatures()
	for _, f := range watched {
		if f == ev.Feature {
			ec := rtcontext.New(p.base.ID, ev.Subject, c.cfg.IngestionTopic, ev.ReturnTopic, c.gw, c.rc)
			go func(p *participant, ev model.Event) {
				if err := p.base.OnEvent(ec, ev); err != nil {
					log.Error().Err(err).Str("talent", p.base.ID).Msg("event handler failed")
				}
			}(p, ev)
			return
		}
	}
}
