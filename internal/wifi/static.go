package wifi

import (
	"errors"
	"net"
)

// Static - a driver for hosts whose network is managed elsewhere.
// Connect succeeds as soon as the interface holds an IPv4 address.
type Static struct {
	// Interface - interface to watch, empty for any non-loopback interface
	Interface string

	lookup func(iface string) (net.IP, error)
	out    *emitter
}

// Start - raise EventStationStarted
func (s *Static) Start(Credentials) (<-chan Event, error) {
	if s.out != nil {
		return nil, errors.New("static: already started")
	}
	s.out = newEmitter()
	s.out.emit(Event{Kind: EventStationStarted})
	return s.out.events, nil
}

// Connect - report the current address, or a disconnect when there is none
func (s *Static) Connect() error {
	lookup := s.lookup
	if lookup == nil {
		lookup = InterfaceIPv4
	}
	ip, err := lookup(s.Interface)
	if err != nil {
		s.out.emit(Event{Kind: EventDisconnected, Reason: err.Error()})
		return nil
	}
	s.out.emit(Event{Kind: EventGotIP, IP: ip})
	return nil
}

// Close - close the event channel
func (s *Static) Close() error {
	if s.out != nil {
		s.out.close()
	}
	return nil
}

// ErrNoAddress - the interface holds no usable IPv4 address
var ErrNoAddress = errors.New("no ipv4 address")

// InterfaceIPv4 - first global IPv4 address of iface, or of any up
// non-loopback interface when iface is empty
func InterfaceIPv4(iface string) (net.IP, error) {
	var ifaces []net.Interface
	if iface != "" {
		i, err := net.InterfaceByName(iface)
		if err != nil {
			return nil, err
		}
		ifaces = []net.Interface{*i}
	} else {
		all, err := net.Interfaces()
		if err != nil {
			return nil, err
		}
		ifaces = all
	}
	for _, i := range ifaces {
		if i.Flags&net.FlagUp == 0 || i.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := i.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			if ip4 := ipNet.IP.To4(); ip4 != nil && !ip4.IsLinkLocalUnicast() {
				return ip4, nil
			}
		}
	}
	return nil, ErrNoAddress
}
