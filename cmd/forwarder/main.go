// Command forwarder runs the bidirectional gateway between the overlay
// messaging network and a local OpenTopoData-compatible elevation
// service: it supervises the Node.js sidecar, dispatches inbound overlay
// messages to the elevation backend, and exposes /forward, /healthz, and
// /metrics over HTTP.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/robit-man/overlay-elevation-gateway/internal/cache/redisstore"
	"github.com/robit-man/overlay-elevation-gateway/internal/core/config"
	"github.com/robit-man/overlay-elevation-gateway/internal/core/observability"
	"github.com/robit-man/overlay-elevation-gateway/internal/core/router"
	"github.com/robit-man/overlay-elevation-gateway/internal/core/server"
	"github.com/robit-man/overlay-elevation-gateway/internal/dispatch"
	"github.com/robit-man/overlay-elevation-gateway/internal/elevation"
	"github.com/robit-man/overlay-elevation-gateway/internal/errs"
	"github.com/robit-man/overlay-elevation-gateway/internal/identity"
	"github.com/robit-man/overlay-elevation-gateway/internal/logger"
	"github.com/robit-man/overlay-elevation-gateway/internal/pending"
	"github.com/robit-man/overlay-elevation-gateway/internal/ratelimit"
	"github.com/robit-man/overlay-elevation-gateway/internal/sidecar"
	"github.com/robit-man/overlay-elevation-gateway/internal/tlsutil"
)

func main() {
	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{Level: cfg.LogLevel, Console: true, Component: "forwarder"}, os.Stdout)
	sl := logger.NewSlog(&zl)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		zl.Info().Msg("shutdown signal received")
		cancel()
	}()

	seed, err := identity.Resolve(ctx, cfg.NKNSeed, cfg.NKNSeedFile)
	if err != nil {
		zl.Error().Err(err).Msg("resolving nkn seed")
		os.Exit(1)
	}

	var mirror *redisstore.Client
	if cfg.RedisAddr != "" {
		m, err := redisstore.New(ctx, cfg.RedisAddr)
		if err != nil {
			zl.Warn().Err(err).Msg("redis mirror unavailable, continuing in-memory only")
		} else {
			mirror = m
			defer mirror.Close()
		}
	}

	sup := sidecar.New(sidecar.Options{
		ScriptPath: "sidecar/sidecar.js",
		Env: []string{
			"NKN_SEED=" + seed,
			"NKN_IDENTIFIER=" + cfg.NKNIdentifier,
			"NKN_SUBCLIENTS=" + strconv.Itoa(cfg.NKNSubclients),
		},
		Logger:       &zl,
		SendQueueMax: cfg.NKNSendQueueMax,
		SendDelay:    time.Duration(cfg.NKNSendDelayMS) * time.Millisecond,
	})

	if err := sup.Start(ctx); err != nil {
		if errors.Is(err, errs.ErrFatal) {
			zl.Error().Err(err).Msg("sidecar failed to start")
			os.Exit(1)
		}
		zl.Error().Err(err).Msg("sidecar start error")
		os.Exit(1)
	}

	pendingRegistry := pending.New()
	if mirror != nil {
		pendingRegistry = pendingRegistry.WithMirror(mirror, cfg.RedisPrefix+"pending_in_flight")
	}

	elevClient := elevation.NewClient(cfg.ElevBase, cfg.ForwardConcurrency)

	disp := dispatch.New(sup, pendingRegistry, elevClient, cfg, &zl)
	go disp.Run(ctx)

	var limiterOpts []ratelimit.Option
	if mirror != nil {
		limiterOpts = append(limiterOpts, ratelimit.WithMirror(mirror, cfg.RedisPrefix))
	}
	limiter := ratelimit.New(cfg.ForwardRateRPS, cfg.ForwardRateBurst, limiterOpts...)

	forwarder := &router.Forwarder{
		Pending:     pendingRegistry,
		Pipeline:    sup.Pipeline(),
		Dataset:     cfg.ElevDataset,
		ElevTimeout: time.Duration(cfg.ElevTimeoutMS) * time.Millisecond,
		Log:         &zl,
	}

	if cfg.ForwardSSL {
		if err := tlsutil.EnsureSelfSigned(cfg.ForwardSSLCert, cfg.ForwardSSLKey, cfg.ForwardSSLRefresh); err != nil {
			zl.Error().Err(err).Msg("generating self-signed tls material")
			os.Exit(1)
		}
	}

	observability.Init(prometheus.DefaultRegisterer, true)

	deps := server.Deps{AddrReporter: sup, Forwarder: forwarder, Limiter: limiter}
	if err := server.Run(ctx, cfg, sl, deps, sup.Close); err != nil {
		zl.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}
}
