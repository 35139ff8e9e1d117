package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/linguacast/linguacast/pkg/relay/config"
	"github.com/linguacast/linguacast/pkg/relay/delivery"
	"github.com/linguacast/linguacast/pkg/relay/dispatch"
	"github.com/linguacast/linguacast/pkg/relay/drain"
	"github.com/linguacast/linguacast/pkg/relay/heartbeat"
	"github.com/linguacast/linguacast/pkg/relay/protocol"
	"github.com/linguacast/linguacast/pkg/relay/registry"
	"github.com/linguacast/linguacast/pkg/relay/server"
	"github.com/linguacast/linguacast/pkg/relay/sessions"
	"github.com/linguacast/linguacast/pkg/relay/store"
)

type serveDeps struct {
	loadConfig   func(path string) (config.Config, error)
	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)
}

func defaultServeDeps() serveDeps {
	return serveDeps{
		loadConfig: config.Load,
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			signal.Notify(c, sig...)
		},
		signalStop: signal.Stop,
	}
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the relay server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), *configPath, cmd.ErrOrStderr(), defaultServeDeps())
		},
	}
}

func runServe(ctx context.Context, configPath string, stderr io.Writer, deps serveDeps) error {
	if deps.loadConfig == nil {
		return errors.New("missing loadConfig dependency")
	}
	if deps.signalNotify == nil || deps.signalStop == nil {
		return errors.New("missing signal dependency")
	}

	cfg, err := deps.loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(stderr, cfg.LogLevel)

	orch, err := buildPipeline(cfg, logger)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	reg := registry.New(logger)
	mem := store.NewMemory(cfg.StoreCapacity)

	dispatcher := dispatch.NewDispatcher(logger)
	dispatcher.Register(
		dispatch.NewRegisterHandler(logger),
		dispatch.NewRelayHandler(reg, delivery.NewService(orch, mem, logger), cfg.DefaultSourceLanguage, logger),
		dispatch.NewTTSHandler(orch, logger),
		dispatch.NewPingHandler(),
	)

	lc := sessions.NewLifecycle(reg, mem, sessions.Config{
		SweepInterval:          cfg.SweepInterval,
		SpeakerAbsentTimeout:   cfg.SpeakerAbsentTimeout,
		ListenersAbsentTimeout: cfg.ListenersAbsentTimeout,
		StaleTimeout:           cfg.StaleTimeout,
		CodeCooldown:           cfg.CodeCooldown,
	}, logger)
	monitor := heartbeat.NewMonitor(reg, heartbeat.Config{
		Interval:       cfg.HeartbeatInterval,
		LivenessWindow: cfg.LivenessWindow,
		WriteTimeout:   cfg.WriteTimeout,
	}, logger)
	dr := &drain.State{}

	srv := server.New(cfg, server.Deps{
		Registry:   reg,
		Dispatcher: dispatcher,
		Sessions:   lc,
		Pipeline:   orch,
		Drain:      dr,
	}, logger)

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go lc.Run(runCtx)
	go monitor.Run(runCtx)

	logger.Info("starting relay", "addr", cfg.Addr, "default_tier", cfg.DefaultSynthesisTier)

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	deps.signalNotify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer deps.signalStop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	dr.SetDraining(true)
	lc.EndAll(sessions.ReasonShutdown)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	// Upgraded connections are hijacked, so Shutdown does not wait for them.
	// Anything that connected between the drain flag and EndAll is settled
	// here.
	if reg.Count() > 0 {
		if payload, err := json.Marshal(protocol.SessionEnding{
			Type:    protocol.TypeSessionEnding,
			Reason:  sessions.ReasonShutdown,
			Message: "the server is shutting down",
		}); err == nil {
			reg.WarnAll(payload)
		}
		reg.CloseAll()
	}

	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("relay stopped")
	return nil
}
