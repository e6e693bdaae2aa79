package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"audioinput/internal/audio"
	"audioinput/internal/bridge"
	"audioinput/internal/config"
	applog "audioinput/internal/log"
	"audioinput/internal/permission"
	"audioinput/internal/store"
	"audioinput/internal/transport"
	"audioinput/internal/transport/udp"
)

// serve runs the bridge until a termination signal arrives or, in stdio
// mode, until stdin is exhausted.
func serve(cfg *config.Config) error {
	// ==================== CONCURRENT PHASE (Hot Path) ====================

	if cfg.Audio.Backend == config.BackendPortAudio {
		if err := audio.Initialize(); err != nil {
			return err
		}
		defer audio.Terminate()
	}

	backend, err := audio.NewBackend(cfg.Audio.Backend)
	if err != nil {
		return err
	}
	defer backend.Close()

	prompter, err := permission.NewPrompter(cfg.Permission, backend, audio.StreamParams{
		DeviceID:   cfg.Audio.InputDevice,
		SampleRate: cfg.Audio.SampleRate,
		Channels:   cfg.Audio.Channels,
		BufferSize: cfg.Audio.BufferSize,
		LowLatency: cfg.Audio.LowLatency,
	})
	if err != nil {
		return err
	}

	opts := bridge.Options{
		Backend:    backend,
		Permission: permission.NewManager(prompter),
		Config:     cfg,
	}

	if cfg.Store.Path != "" {
		db, err := store.NewDB(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer db.Close()
		opts.Catalog = db
	}

	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewUDPSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			return err
		}
		publisher, err := udp.NewUDPPublisher(sender, 0)
		if err != nil {
			sender.Close()
			return err
		}
		publisher.Start()
		defer publisher.Close()
		opts.Mirror = publisher
	}

	b, err := bridge.New(opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			applog.Errorf("closing bridge: %v", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Server.Stdio {
		applog.Infof("serving on stdio (backend %s)", backend.Name())
		srv := transport.NewStdioServer(os.Stdin, os.Stdout, b)
		defer srv.Close()

		// A blocked stdin read does not observe ctx.
		served := make(chan error, 1)
		go func() { served <- srv.Serve(ctx) }()
		select {
		case err := <-served:
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		case <-ctx.Done():
			applog.Infof("shutting down")
			b.Reset()
			return nil
		}
	}

	ws := transport.NewWebSocketServer(cfg.Server.Listen, cfg.Server.Path, b)
	if err := ws.Start(); err != nil {
		return err
	}
	applog.Infof("capture backend %s", backend.Name())

	// Block until termination signal is received
	<-ctx.Done()

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	applog.Infof("shutting down")
	if err := ws.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		applog.Errorf("closing websocket server: %v", err)
	}
	return nil
}
