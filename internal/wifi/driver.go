package wifi

// Driver - the station radio.
//
// Start initialises the network stack, registers for link events and
// requests interface start; EventStationStarted is raised once the
// interface is up. The driver owns the returned channel and closes it
// from Close after its goroutines have stopped.
type Driver interface {
	Start(creds Credentials) (<-chan Event, error)
	// Connect - request association, the result arrives as an Event.
	// It is called from the event loop and must not block on event delivery.
	Connect() error
	Close() error
}
