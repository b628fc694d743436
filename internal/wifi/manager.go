package wifi

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rectcircle/kbdbridge/internal/observability"
	"github.com/rectcircle/kbdbridge/internal/variable"
)

// Options - Manager tuning
type Options struct {
	// MaxRetry - reconnects issued before the link is failed.
	// 0 fails on the first disconnect, negative selects variable.MaxRetry.
	MaxRetry int
	Logger   *zerolog.Logger
}

// Manager - owns the station link lifecycle
type Manager struct {
	driver   Driver
	maxRetry int
	log      *zerolog.Logger
	group    *eventGroup

	mu      sync.Mutex
	state   LinkState
	retries int
	started bool
	loop    sync.WaitGroup
}

// NewManager - create a Manager driving `driver`
func NewManager(driver Driver, opts Options) *Manager {
	maxRetry := opts.MaxRetry
	if maxRetry < 0 {
		maxRetry = variable.MaxRetry
	}
	logger := observability.OrDefault(opts.Logger).With().Str("component", "wifi").Logger()
	return &Manager{
		driver:   driver,
		maxRetry: maxRetry,
		log:      &logger,
		group:    newEventGroup(),
	}
}

// ConnectAndWait - start the station and block until it is connected or failed.
//
// There is no timeout besides the retry cap; ctx only aborts the wait.
// Reconnection keeps running in the background after a Connected outcome.
func (m *Manager) ConnectAndWait(ctx context.Context, creds Credentials) (Outcome, error) {
	if err := creds.Validate(); err != nil {
		return OutcomeFailed, err
	}

	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return OutcomeFailed, fmt.Errorf("wifi: manager already started")
	}
	m.started = true
	m.mu.Unlock()

	events, err := m.driver.Start(creds)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("wifi: start station: %w", err)
	}
	m.setState(Idle)
	m.log.Info().Str("ssid", creds.SSID).Str("auth", creds.Policy.Threshold.String()).Msg("station initialized")

	m.loop.Add(1)
	go func() {
		defer m.loop.Done()
		for ev := range events {
			m.handleEvent(ev)
		}
	}()

	bits, err := m.group.wait(ctx, bitConnected|bitFailed)
	if err != nil {
		return OutcomeFailed, err
	}
	if bits&bitFailed != 0 {
		m.log.Warn().Str("ssid", creds.SSID).Msg("failed to connect to access point")
		return OutcomeFailed, nil
	}
	m.log.Info().Str("ssid", creds.SSID).Msg("connected to access point")
	return OutcomeConnected, nil
}

// handleEvent - the station state machine
func (m *Manager) handleEvent(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Failed {
		m.log.Debug().Stringer("event", ev.Kind).Msg("link failed, event ignored")
		return
	}

	switch ev.Kind {
	case EventStationStarted:
		m.setStateLocked(Connecting)
		m.connectLocked()
	case EventDisconnected:
		if m.retries < m.maxRetry {
			m.retries++
			m.setStateLocked(Connecting)
			observability.RecordLinkRetry()
			m.log.Info().
				Int("attempt", m.retries).
				Int("max", m.maxRetry).
				Str("reason", ev.Reason).
				Msg("retrying connection to the access point")
			m.connectLocked()
			return
		}
		m.setStateLocked(Failed)
		observability.RecordLinkFailure()
		m.log.Warn().Str("reason", ev.Reason).Int("retries", m.retries).Msg("retry limit reached")
		m.group.set(bitFailed)
	case EventGotIP:
		m.log.Info().Stringer("ip", ev.IP).Msg("got ip")
		m.retries = 0
		m.setStateLocked(Connected)
		m.group.set(bitConnected)
	default:
		m.log.Debug().Stringer("event", ev.Kind).Msg("unhandled link event")
	}
}

func (m *Manager) connectLocked() {
	if err := m.driver.Connect(); err != nil {
		m.log.Error().Err(err).Msg("connect request failed")
	}
}

func (m *Manager) setState(s LinkState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setStateLocked(s)
}

func (m *Manager) setStateLocked(s LinkState) {
	m.state = s
	observability.RecordLinkState(s.String())
}

// State - current link state
func (m *Manager) State() LinkState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Retries - current value of the retry counter
func (m *Manager) Retries() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retries
}

// Close - stop the driver and wait for the event loop to drain
func (m *Manager) Close() error {
	err := m.driver.Close()
	m.loop.Wait()
	return err
}
