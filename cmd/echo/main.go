// Command echo is a minimal example binary: it wires one plain talent and
// one function talent together over the in-memory adapter, so the wiring
// pattern a real deployment follows (config -> gateway -> client ->
// register talents -> start) can be read start to finish in one file. It is
// grounded on the control plane's main.go: load config, build the
// dependency graph, start, wait for a termination signal, shut down.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"

	"github.com/covesa/iotea-go-sdk/internal/adapter/memory"
	"github.com/covesa/iotea-go-sdk/internal/client"
	"github.com/covesa/iotea-go-sdk/internal/config"
	"github.com/covesa/iotea-go-sdk/internal/debugserver"
	"github.com/covesa/iotea-go-sdk/internal/gateway"
	"github.com/covesa/iotea-go-sdk/internal/rtcontext"
	"github.com/covesa/iotea-go-sdk/internal/schema"
	"github.com/covesa/iotea-go-sdk/internal/talent"
	"github.com/covesa/iotea-go-sdk/pkg/model"
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	cfg := config.FromEnv()

	bus := memory.NewBus()
	platformAdapter := bus.NewAdapter("platform", true)

	gw, err := gateway.NewWithAdapters(platformAdapter)
	if err != nil {
		log.Fatal().Err(err).Msg("constructing gateway")
	}

	c := client.New(cfg, gw)
	if err := c.WithMeter(otel.GetMeterProvider().Meter("iotea-echo")); err != nil {
		log.Warn().Err(err).Msg("registering correlator metrics")
	}

	echoTalent := buildEchoTalent()
	greeter := buildGreeterFunctionTalent()

	c.RegisterTalent(echoTalent)
	c.RegisterFunctionTalent(greeter)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := c.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("starting client")
	}

	debugSrv := &http.Server{Addr: ":8080", Handler: debugserver.New(c)}
	go func() {
		if err := debugSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("debug server stopped")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	log.Info().Msg("echo example running, press ctrl-c to stop")
	<-sigCh

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := debugSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("stopping debug server")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := c.Stop(stopCtx); err != nil {
		log.Error().Err(err).Msg("stopping client")
	}
}

// buildEchoTalent reacts to "room.temperature-out" readings above 30 degrees
// by emitting an "alert" output event (published as "echo.alert-out").
func buildEchoTalent() *talent.Talent {
	t := talent.New("echo")
	t.AddOutput("alert", model.OutputSpec{Description: "high temperature alert"})
	t.SetTriggerRule(schema.GreaterThan("room.temperature-out", 30))

	t.OnEvent = func(ec *rtcontext.EventContext, ev model.Event) error {
		log.Info().Str("feature", ev.Feature).Interface("value", ev.Value).Msg("echo: trigger received")
		return ec.Emit("alert", fmt.Sprintf("temperature above threshold: %v", ev.Value), "default", ev.Instance)
	}
	return t
}

// buildGreeterFunctionTalent registers a single callable "greet" function
// that echoes back a greeting built from its argument.
func buildGreeterFunctionTalent() *talent.FunctionTalent {
	ft := talent.NewFunctionTalent("greeter")
	ft.RegisterFunction("greet", func(cc *rtcontext.CallContext, args []interface{}) (interface{}, error) {
		name := "world"
		if len(args) > 0 {
			if s, ok := args[0].(string); ok {
				name = s
			}
		}
		return fmt.Sprintf("hello, %s", name), nil
	}, schema.String().ValueSchema)
	return ft
}
