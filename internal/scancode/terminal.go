package scancode

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/rectcircle/kbdbridge/internal/observability"
	"github.com/rectcircle/kbdbridge/tools"
)

// Terminal - every byte typed on Input is a scancode
type Terminal struct {
	// Input - default os.Stdin, switched to raw mode when it is a terminal
	Input *os.File
	// ExitByte - stops Run with ErrExit, 0 disables
	ExitByte byte
	Logger   *zerolog.Logger
}

// Run - read Input until ctx is done, the exit byte or end of input (io.EOF)
func (t *Terminal) Run(ctx context.Context, handle Handler) error {
	input := t.Input
	if input == nil {
		input = os.Stdin
	}
	logger := observability.OrDefault(t.Logger)

	fd := int(input.Fd())
	if term.IsTerminal(fd) {
		oldState, err := term.MakeRaw(fd)
		if err != nil {
			return err
		}
		defer term.Restore(fd, oldState)
		logger.Info().Str("input", input.Name()).Msg("terminal in raw mode")
	}

	chunks := tools.ReaderToChannel(input)
	defer drain(chunks)
	for {
		select {
		case <-ctx.Done():
			return nil
		case chunk, ok := <-chunks:
			if !ok {
				return io.EOF
			}
			for _, b := range chunk {
				if t.ExitByte != 0 && b == t.ExitByte {
					return ErrExit
				}
				handle(b)
			}
		}
	}
}
