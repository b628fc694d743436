package server

import (
	"fmt"

	"github.com/rectcircle/kbdbridge/tools"
)

// SetupError - the listening socket could not be created
type SetupError struct {
	// Op - resolve, socket, setsockopt, bind or listen
	Op   string
	Addr string
	Err  error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("server: %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// Errno - errno of the failed call, 0 when not a syscall failure
func (e *SetupError) Errno() int {
	return tools.Errno(e.Err)
}
