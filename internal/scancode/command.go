package scancode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/rectcircle/kbdbridge/internal/observability"
	"github.com/rectcircle/kbdbridge/tools"
)

// Command - an external decoder under a pseudo terminal.
// Its output is the scancode stream, host bytes are written to its input.
type Command struct {
	// Command - run with `$SHELL -c`
	Command string
	Logger  *zerolog.Logger

	mu   sync.Mutex
	ptmx *os.File
}

// Run - start the command and forward its output until it exits or ctx is done
func (c *Command) Run(ctx context.Context, handle Handler) error {
	if c.Command == "" {
		return errors.New("command source: empty command")
	}
	logger := observability.OrDefault(c.Logger).With().Str("command", c.Command).Logger()

	cmd := exec.CommandContext(ctx, tools.GetUnixUserShell(), "-c", c.Command)
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return fmt.Errorf("command source: %w", err)
	}
	defer ptmx.Close()
	// no echo, no line editing and no CR/LF rewriting in either direction
	if _, err := term.MakeRaw(int(ptmx.Fd())); err != nil {
		logger.Warn().Err(err).Msg("unable to set pty raw mode")
	}
	c.setPty(ptmx)
	defer c.setPty(nil)
	logger.Info().Int("pid", cmd.Process.Pid).Msg("command started")

	for chunk := range tools.ReaderToChannel(ptmx) {
		for _, b := range chunk {
			handle(b)
		}
	}
	err = cmd.Wait()
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("command source: %w", err)
	}
	logger.Info().Msg("command exited")
	return nil
}

// HandleHostByte - write b to the command input, dropped when it is not running
func (c *Command) HandleHostByte(b byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ptmx == nil {
		return
	}
	if _, err := c.ptmx.Write([]byte{b}); err != nil {
		observability.OrDefault(c.Logger).Debug().Err(err).Msg("host byte dropped")
	}
}

func (c *Command) setPty(ptmx *os.File) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ptmx = ptmx
}
