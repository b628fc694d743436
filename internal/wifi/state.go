package wifi

import (
	"net"
	"strconv"
)

// LinkState - station link state
type LinkState int

const (
	// Idle - nothing started yet
	Idle LinkState = iota
	// Connecting - a connect request is outstanding
	Connecting
	// Connected - associated and holding an address
	Connected
	// Failed - retry cap exceeded, terminal
	Failed
)

func (s LinkState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	default:
		return "unknown(" + strconv.Itoa(int(s)) + ")"
	}
}

// Outcome - result of ConnectAndWait
type Outcome int

const (
	// OutcomeConnected - an address was acquired
	OutcomeConnected Outcome = iota
	// OutcomeFailed - the retry cap was exceeded
	OutcomeFailed
)

func (o Outcome) String() string {
	if o == OutcomeConnected {
		return "connected"
	}
	return "failed"
}

// EventKind - kind of link lifecycle event raised by a Driver
type EventKind int

const (
	// EventStationStarted - the interface is up in station mode
	EventStationStarted EventKind = iota + 1
	// EventDisconnected - association lost or attempt failed
	EventDisconnected
	// EventGotIP - an address was acquired on the interface
	EventGotIP
)

func (k EventKind) String() string {
	switch k {
	case EventStationStarted:
		return "station-started"
	case EventDisconnected:
		return "disconnected"
	case EventGotIP:
		return "got-ip"
	default:
		return "unknown(" + strconv.Itoa(int(k)) + ")"
	}
}

// Event - a link lifecycle event
type Event struct {
	Kind EventKind
	// IP - set for EventGotIP
	IP net.IP
	// Reason - driver specific detail for EventDisconnected
	Reason string
}
