// Package bootstrap wires the station link, the session server and the
// scancode source into one running bridge.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rectcircle/kbdbridge/internal/config"
	"github.com/rectcircle/kbdbridge/internal/observability"
	"github.com/rectcircle/kbdbridge/internal/scancode"
	"github.com/rectcircle/kbdbridge/internal/server"
	"github.com/rectcircle/kbdbridge/internal/wifi"
)

// ErrLinkFailed - the link failed and wifi.on_failure is halt
var ErrLinkFailed = errors.New("bootstrap: wireless link failed")

// Bridge - one configured bridge instance
type Bridge struct {
	cfg    config.Config
	log    *zerolog.Logger
	driver wifi.Driver
	source scancode.Source
	server *server.Server
	ready  chan struct{}
}

// Run - New then Bridge.Run
func Run(ctx context.Context, cfg config.Config, logger *zerolog.Logger) error {
	bridge, err := New(cfg, logger)
	if err != nil {
		return err
	}
	return bridge.Run(ctx)
}

// New - build the driver, source and server described by cfg
func New(cfg config.Config, logger *zerolog.Logger) (*Bridge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger = observability.OrDefault(logger)
	b := &Bridge{cfg: cfg, log: logger, ready: make(chan struct{})}

	switch cfg.WiFi.Driver {
	case config.DriverStatic:
		b.driver = &wifi.Static{Interface: cfg.WiFi.Interface}
	default:
		b.driver = &wifi.WPASupplicant{Interface: cfg.WiFi.Interface, CtrlDir: cfg.WiFi.CtrlDir, Logger: logger}
	}

	switch cfg.Source.Kind {
	case config.SourceCommand:
		b.source = &scancode.Command{Command: cfg.Source.Command, Logger: logger}
	case config.SourceNone:
		b.source = scancode.None{}
	default:
		b.source = &scancode.Terminal{Input: os.Stdin, ExitByte: cfg.Source.ExitByte, Logger: logger}
	}

	mode, err := server.ParseMode(cfg.Server.Mode)
	if err != nil {
		return nil, err
	}
	b.server = server.New(server.Options{
		Addr:       cfg.ServerAddr(),
		Mode:       mode,
		OnPeerByte: b.handlePeerByte,
		Logger:     logger,
	})
	return b, nil
}

// Ready - closed once the server is listening
func (b *Bridge) Ready() <-chan struct{} {
	return b.ready
}

// Addr - server address, nil before Ready
func (b *Bridge) Addr() net.Addr {
	return b.server.Addr()
}

// Run - bring the link up, then serve until ctx is done, the server fails
// or the source fails. A source that ends cleanly (exit byte, end of input)
// leaves the server running.
func (b *Bridge) Run(ctx context.Context) error {
	observability.RegisterMetrics()

	manager := wifi.NewManager(b.driver, wifi.Options{MaxRetry: b.cfg.WiFi.MaxRetry, Logger: b.log})
	defer manager.Close()

	creds, err := b.credentials()
	if err != nil {
		return err
	}
	outcome, err := manager.ConnectAndWait(ctx, creds)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	if outcome == wifi.OutcomeFailed {
		if b.cfg.WiFi.OnFailure == config.OnFailureHalt {
			return ErrLinkFailed
		}
		b.log.Warn().Msg("wireless link failed, serving without it")
	}

	if err := b.server.Listen(); err != nil {
		return err
	}
	close(b.ready)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var wg sync.WaitGroup
	errs := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		errs <- b.server.Serve(ctx)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := b.runSource(ctx); err != nil {
			errs <- err
		}
	}()
	if addr := b.cfg.Metrics.Addr; addr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := observability.ServeMetrics(ctx, addr, b.log); err != nil {
				b.log.Error().Err(err).Msg("metrics endpoint stopped")
			}
		}()
	}

	var first error
	select {
	case <-ctx.Done():
	case first = <-errs:
	}
	cancel()
	wg.Wait()
	return first
}

func (b *Bridge) runSource(ctx context.Context) error {
	err := b.source.Run(ctx, b.server.HandleByte)
	switch {
	case err == nil:
		if ctx.Err() == nil {
			b.log.Info().Msg("source stopped, still serving")
		}
		return nil
	case errors.Is(err, scancode.ErrExit), errors.Is(err, io.EOF):
		b.log.Info().Err(err).Msg("source stopped, still serving")
		return nil
	default:
		return fmt.Errorf("source: %w", err)
	}
}

// handlePeerByte - host bytes go to the source when it takes them
func (b *Bridge) handlePeerByte(c byte) {
	if sink, ok := b.source.(scancode.HostSink); ok {
		sink.HandleHostByte(c)
		return
	}
	b.log.Debug().Uint8("byte", c).Msg("peer byte ignored")
}

// credentials - the static driver has no network, only a name for the logs
func (b *Bridge) credentials() (wifi.Credentials, error) {
	if b.cfg.WiFi.Driver == config.DriverStatic {
		name := b.cfg.WiFi.Interface
		if name == "" {
			name = config.DriverStatic
		}
		return wifi.Credentials{SSID: name, Policy: wifi.AuthPolicy{Threshold: wifi.AuthOpen}}, nil
	}
	return b.cfg.Credentials()
}
