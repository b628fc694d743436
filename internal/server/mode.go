package server

import (
	"fmt"
	"strings"
)

// ByteHandler - consumer of a single byte
type ByteHandler func(b byte)

// Mode - session policy
type Mode int

const (
	// ModeForward - producer bytes are forwarded to the peer
	ModeForward Mode = iota
	// ModeEcho - peer bytes are echoed back
	ModeEcho
)

func (m Mode) String() string {
	switch m {
	case ModeForward:
		return "forward"
	case ModeEcho:
		return "echo"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode - parse a config value, empty means forward
func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "forward":
		return ModeForward, nil
	case "echo":
		return ModeEcho, nil
	}
	return ModeForward, fmt.Errorf("unknown server mode %q", raw)
}
