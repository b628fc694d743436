package peer

import (
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// bridgeStub - accepts one peer, sends payload, returns whatever it read
func bridgeStub(t *testing.T, payload []byte, expect int, closeAfter bool) (string, <-chan []byte) {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { listener.Close() })
	received := make(chan []byte, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write(payload)
		got := make([]byte, expect)
		if expect > 0 {
			conn.SetReadDeadline(time.Now().Add(3 * time.Second))
			io.ReadFull(conn, got)
		}
		received <- got
		if !closeAfter {
			time.Sleep(3 * time.Second)
		}
	}()
	return listener.Addr().String(), received
}

func TestRun(t *testing.T) {
	nop := zerolog.Nop()
	tests := []struct {
		name   string
		format Format
		want   string
	}{
		{"hex", FormatHex, "1c f0 1c\n"},
		{"raw", FormatRaw, "\x1c\xf0\x1c"},
		{"dump", FormatDump, "00000000  1c f0 1c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, _ := bridgeStub(t, []byte{0x1c, 0xf0, 0x1c}, 0, true)
			out := &syncBuffer{}
			err := Run(context.Background(), Options{Addr: addr, Format: tt.format, Output: out, Logger: &nop})
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if got := out.String(); !strings.HasPrefix(got, tt.want) {
				t.Errorf("output = %q, want prefix %q", got, tt.want)
			}
		})
	}
}

func TestRunSendsInput(t *testing.T) {
	nop := zerolog.Nop()
	addr, received := bridgeStub(t, nil, 2, true)
	err := Run(context.Background(), Options{
		Addr:   addr,
		Input:  strings.NewReader("\xed\x07"),
		Output: io.Discard,
		Logger: &nop,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := <-received; !bytes.Equal(got, []byte{0xed, 0x07}) {
		t.Errorf("bridge received % x", got)
	}
}

func TestRunCancel(t *testing.T) {
	nop := zerolog.Nop()
	addr, _ := bridgeStub(t, nil, 0, false)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, Options{Addr: addr, Output: io.Discard, Logger: &nop}) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return")
	}
}

func TestRunDialError(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := listener.Addr().String()
	listener.Close()
	if err := Run(context.Background(), Options{Addr: addr, Output: io.Discard}); err == nil {
		t.Errorf("Run() succeeded against a closed port")
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		raw     string
		want    Format
		wantErr bool
	}{
		{"", FormatHex, false},
		{"raw", FormatRaw, false},
		{"DUMP", FormatDump, false},
		{"base64", FormatHex, true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.raw)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %v, %v", tt.raw, got, err)
		}
	}
}
