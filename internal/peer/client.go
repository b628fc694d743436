// Package peer is the host side of the bridge: it connects to the session
// server and prints what the device sends.
package peer

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rectcircle/kbdbridge/internal/observability"
	"github.com/rectcircle/kbdbridge/tools"
)

// Format - how received bytes are printed
type Format int

const (
	// FormatHex - one line of space separated hex per read
	FormatHex Format = iota
	// FormatRaw - bytes are copied unchanged
	FormatRaw
	// FormatDump - hex.Dumper output
	FormatDump
)

// ParseFormat - parse a flag value
func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(raw) {
	case "", "hex":
		return FormatHex, nil
	case "raw":
		return FormatRaw, nil
	case "dump":
		return FormatDump, nil
	}
	return FormatHex, fmt.Errorf("unknown output format %q", raw)
}

// Options - client configuration
type Options struct {
	Addr   string
	Format Format
	// Input - bytes sent to the device, nil sends nothing
	Input  io.Reader
	Output io.Writer
	Logger *zerolog.Logger
}

// Run - connect to the bridge and print received bytes until the bridge
// closes the session (nil) or ctx is done (nil)
func Run(ctx context.Context, opts Options) error {
	logger := observability.OrDefault(opts.Logger)
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", opts.Addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	logger.Info().Str("addr", conn.RemoteAddr().String()).Msg("connected")

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	if opts.Input != nil {
		go func() {
			for chunk := range tools.ReaderToChannel(opts.Input) {
				if _, err := conn.Write(chunk); err != nil {
					return
				}
			}
		}()
	}

	out := opts.Output
	if opts.Format == FormatDump {
		dumper := hex.Dumper(out)
		defer dumper.Close()
		out = dumper
	}

	buffer := make([]byte, 4096)
	for {
		n, err := conn.Read(buffer)
		if n > 0 {
			if werr := write(out, opts.Format, buffer[:n]); werr != nil {
				return werr
			}
		}
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, io.EOF) || tools.IsExpectedCloseError(err) {
			logger.Info().Msg("server closed the session")
			return nil
		}
		return err
	}
}

func write(out io.Writer, format Format, p []byte) error {
	if format == FormatHex {
		_, err := fmt.Fprintf(out, "% x\n", p)
		return err
	}
	_, err := out.Write(p)
	return err
}
