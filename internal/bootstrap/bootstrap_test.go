package bootstrap

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rectcircle/kbdbridge/internal/config"
	"github.com/rectcircle/kbdbridge/internal/scancode"
	"github.com/rectcircle/kbdbridge/internal/server"
	"github.com/rectcircle/kbdbridge/internal/wifi"
)

// scriptedDriver - answers every Connect with ok ? GotIP : Disconnected
type scriptedDriver struct {
	ok     bool
	events chan wifi.Event
	once   sync.Once
}

func (d *scriptedDriver) Start(wifi.Credentials) (<-chan wifi.Event, error) {
	d.events = make(chan wifi.Event, 64)
	d.events <- wifi.Event{Kind: wifi.EventStationStarted}
	return d.events, nil
}

func (d *scriptedDriver) Connect() error {
	if d.ok {
		d.events <- wifi.Event{Kind: wifi.EventGotIP, IP: net.IPv4(192, 0, 2, 1)}
	} else {
		d.events <- wifi.Event{Kind: wifi.EventDisconnected, Reason: "201"}
	}
	return nil
}

func (d *scriptedDriver) Close() error {
	if d.events != nil {
		d.once.Do(func() { close(d.events) })
	}
	return nil
}

// keySource - emits the bytes sent on keys, records host bytes
type keySource struct {
	keys  chan byte
	err   error
	ended chan struct{}

	mu   sync.Mutex
	host []byte
}

func newKeySource() *keySource {
	return &keySource{keys: make(chan byte, 16), ended: make(chan struct{})}
}

func (s *keySource) Run(ctx context.Context, handle scancode.Handler) error {
	defer close(s.ended)
	for {
		select {
		case <-ctx.Done():
			return nil
		case b, ok := <-s.keys:
			if !ok {
				return s.err
			}
			handle(b)
		}
	}
}

func (s *keySource) HandleHostByte(b byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.host = append(s.host, b)
}

func (s *keySource) hostBytes() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.host)
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.WiFi.Driver = config.DriverStatic
	cfg.WiFi.MaxRetry = 2
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Source.Kind = config.SourceNone
	return cfg
}

func newTestBridge(t *testing.T, cfg config.Config, driver wifi.Driver, source scancode.Source) *Bridge {
	t.Helper()
	nop := zerolog.Nop()
	b, err := New(cfg, &nop)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	b.driver = driver
	if source != nil {
		b.source = source
	}
	return b
}

func start(b *Bridge) (context.CancelFunc, <-chan error) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()
	return cancel, done
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("Run() did not return")
		return nil
	}
}

func waitReady(t *testing.T, b *Bridge) {
	t.Helper()
	select {
	case <-b.Ready():
	case <-time.After(3 * time.Second):
		t.Fatal("bridge not ready")
	}
}

func TestBridgeForwardsBothWays(t *testing.T) {
	source := newKeySource()
	b := newTestBridge(t, testConfig(), &scriptedDriver{ok: true}, source)
	cancel, done := start(b)
	waitReady(t, b)

	conn, err := net.Dial("tcp", b.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	deadline := time.Now().Add(3 * time.Second)
	for !b.server.Active() {
		if time.Now().After(deadline) {
			t.Fatal("no session")
		}
		time.Sleep(5 * time.Millisecond)
	}

	source.keys <- 0x1c
	source.keys <- 0xf0
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	got := make([]byte, 2)
	if _, err := io.ReadFull(conn, got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got[0] != 0x1c || got[1] != 0xf0 {
		t.Errorf("peer got % x, want 1c f0", got)
	}

	conn.Write([]byte{0xed, 0x02})
	for source.hostBytes() != "\xed\x02" {
		if time.Now().After(deadline) {
			t.Fatalf("host bytes = %q", source.hostBytes())
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := waitDone(t, done); err != nil {
		t.Errorf("Run() error = %v", err)
	}
}

func TestBridgeLinkFailure(t *testing.T) {
	tests := []struct {
		name      string
		onFailure string
		wantErr   error
		wantReady bool
	}{
		{"halt", config.OnFailureHalt, ErrLinkFailed, false},
		{"continue", config.OnFailureContinue, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.WiFi.OnFailure = tt.onFailure
			b := newTestBridge(t, cfg, &scriptedDriver{ok: false}, nil)
			cancel, done := start(b)
			defer cancel()

			if tt.wantReady {
				waitReady(t, b)
				cancel()
			}
			if err := waitDone(t, done); !errors.Is(err, tt.wantErr) {
				t.Errorf("Run() error = %v, want %v", err, tt.wantErr)
			}
			select {
			case <-b.Ready():
				if !tt.wantReady {
					t.Errorf("bridge became ready after a halted link")
				}
			default:
				if tt.wantReady {
					t.Errorf("bridge never became ready")
				}
			}
		})
	}
}

// expectServing - Run is still going and the server still takes a peer
func expectServing(t *testing.T, b *Bridge, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		t.Fatalf("Run() returned %v while the server should keep serving", err)
	case <-time.After(50 * time.Millisecond):
	}
	conn, err := net.Dial("tcp", b.Addr().String())
	if err != nil {
		t.Fatalf("dial after the source ended: %v", err)
	}
	defer conn.Close()
	deadline := time.Now().Add(3 * time.Second)
	for !b.server.Active() {
		if time.Now().After(deadline) {
			t.Fatal("no session after the source ended")
		}
		time.Sleep(5 * time.Millisecond)
	}
	// bytes are dropped, not an error
	b.server.HandleByte(0x1c)
}

func TestBridgeSourceEnds(t *testing.T) {
	boom := errors.New("decoder crashed")
	tests := []struct {
		name        string
		err         error
		keepServing bool
	}{
		{"exit byte", scancode.ErrExit, true},
		{"end of input", io.EOF, true},
		{"clean return", nil, true},
		{"failure", boom, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := newKeySource()
			source.err = tt.err
			b := newTestBridge(t, testConfig(), &scriptedDriver{ok: true}, source)
			cancel, done := start(b)
			defer cancel()
			waitReady(t, b)

			close(source.keys)
			<-source.ended
			if !tt.keepServing {
				if err := waitDone(t, done); !errors.Is(err, tt.err) {
					t.Errorf("Run() error = %v, want %v", err, tt.err)
				}
				return
			}
			expectServing(t, b, done)
			cancel()
			if err := waitDone(t, done); err != nil {
				t.Errorf("Run() error = %v, want nil", err)
			}
		})
	}
}

func TestBridgeServesWithClosedStdin(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	w.Close()

	nop := zerolog.Nop()
	source := &scancode.Terminal{Input: r, ExitByte: 0x1d, Logger: &nop}
	b := newTestBridge(t, testConfig(), &scriptedDriver{ok: true}, source)
	cancel, done := start(b)
	defer cancel()
	waitReady(t, b)

	time.Sleep(50 * time.Millisecond)
	expectServing(t, b, done)
	cancel()
	if err := waitDone(t, done); err != nil {
		t.Errorf("Run() error = %v", err)
	}
}

func TestBridgePortInUse(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer taken.Close()

	cfg := testConfig()
	cfg.Server.Port = uint16(taken.Addr().(*net.TCPAddr).Port)
	b := newTestBridge(t, cfg, &scriptedDriver{ok: true}, nil)
	_, done := start(b)
	var setupErr *server.SetupError
	if err := waitDone(t, done); !errors.As(err, &setupErr) {
		t.Errorf("Run() error = %v, want *server.SetupError", err)
	}
}

func TestNew(t *testing.T) {
	nop := zerolog.Nop()
	t.Run("invalid config", func(t *testing.T) {
		cfg := testConfig()
		cfg.Server.Mode = "relay"
		if _, err := New(cfg, &nop); err == nil {
			t.Errorf("New() accepted an invalid config")
		}
	})
	t.Run("sources", func(t *testing.T) {
		tests := []struct {
			kind    string
			command string
			check   func(scancode.Source) bool
		}{
			{config.SourceNone, "", func(s scancode.Source) bool { _, ok := s.(scancode.None); return ok }},
			{config.SourceTerminal, "", func(s scancode.Source) bool { _, ok := s.(*scancode.Terminal); return ok }},
			{config.SourceCommand, "cat", func(s scancode.Source) bool { _, ok := s.(*scancode.Command); return ok }},
		}
		for _, tt := range tests {
			cfg := testConfig()
			cfg.Source.Kind, cfg.Source.Command = tt.kind, tt.command
			b, err := New(cfg, &nop)
			if err != nil {
				t.Fatalf("%s: New() error = %v", tt.kind, err)
			}
			if !tt.check(b.source) {
				t.Errorf("%s: source = %T", tt.kind, b.source)
			}
		}
	})
	t.Run("drivers", func(t *testing.T) {
		cfg := testConfig()
		b, _ := New(cfg, &nop)
		if _, ok := b.driver.(*wifi.Static); !ok {
			t.Errorf("driver = %T, want *wifi.Static", b.driver)
		}
		cfg.WiFi.Driver = config.DriverWPASupplicant
		cfg.WiFi.SSID, cfg.WiFi.Passphrase = "home", "secret123"
		b, err := New(cfg, &nop)
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := b.driver.(*wifi.WPASupplicant); !ok {
			t.Errorf("driver = %T, want *wifi.WPASupplicant", b.driver)
		}
	})
}
