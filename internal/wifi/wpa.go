package wifi

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/rectcircle/kbdbridge/internal/observability"
	"github.com/rectcircle/kbdbridge/internal/variable"
)

const ctrlTimeout = 3 * time.Second

// events which end a connection attempt
var disconnectEvents = map[string]bool{
	"CTRL-EVENT-DISCONNECTED":      true,
	"CTRL-EVENT-ASSOC-REJECT":      true,
	"CTRL-EVENT-NETWORK-NOT-FOUND": true,
	"CTRL-EVENT-TERMINATING":       true,
}

// WPASupplicant - station driver speaking the wpa_supplicant control interface.
// Address assignment (DHCP) is left to the system; the driver polls the
// interface after association and raises EventGotIP once an address appears.
type WPASupplicant struct {
	// Interface - wireless interface, e.g. wlan0
	Interface string
	// CtrlDir - control socket directory, default variable.WPACtrlDir
	CtrlDir string
	// PollInterval - address poll period after association
	PollInterval time.Duration
	Logger       *zerolog.Logger

	lookup    func(iface string) (net.IP, error)
	command   *ctrlConn
	monitor   *ctrlConn
	networkID string
	out       *emitter
	wg        sync.WaitGroup

	mu       sync.Mutex
	stopPoll context.CancelFunc
}

// Start - attach to wpa_supplicant and configure the network block
func (w *WPASupplicant) Start(creds Credentials) (<-chan Event, error) {
	if w.out != nil {
		return nil, errors.New("wpa_supplicant: already started")
	}
	if w.Interface == "" {
		return nil, errors.New("wpa_supplicant: interface is required")
	}
	dir := w.CtrlDir
	if dir == "" {
		dir = variable.WPACtrlDir
	}
	path := filepath.Join(dir, w.Interface)

	command, err := dialCtrl(path)
	if err != nil {
		return nil, err
	}
	monitor, err := dialCtrl(path)
	if err != nil {
		command.Close()
		return nil, err
	}
	if err := monitor.expectOK("ATTACH"); err != nil {
		command.Close()
		monitor.Close()
		return nil, err
	}
	w.command, w.monitor = command, monitor

	if err := w.configure(creds); err != nil {
		command.Close()
		monitor.Close()
		return nil, err
	}

	w.out = newEmitter()
	w.wg.Add(1)
	go w.watch()
	w.out.emit(Event{Kind: EventStationStarted})
	return w.out.events, nil
}

func (w *WPASupplicant) configure(creds Credentials) error {
	id, err := w.command.request("ADD_NETWORK")
	if err != nil {
		return err
	}
	if _, err := strconv.Atoi(id); err != nil {
		return fmt.Errorf("wpa_supplicant: ADD_NETWORK: unexpected reply %q", id)
	}
	w.networkID = id

	for _, kv := range networkSettings(creds) {
		if err := w.command.expectOK("SET_NETWORK " + id + " " + kv[0] + " " + kv[1]); err != nil {
			return err
		}
	}
	if creds.Policy.Threshold != AuthOpen {
		if err := w.command.expectOK("SET sae_pwe " + strconv.Itoa(int(creds.Policy.SAEPWE))); err != nil {
			w.logger().Warn().Err(err).Msg("sae_pwe not supported, using supplicant default")
		}
	}
	return nil
}

// networkSettings - SET_NETWORK key/value pairs for creds
func networkSettings(creds Credentials) [][2]string {
	settings := [][2]string{
		{"ssid", hex.EncodeToString([]byte(creds.SSID))},
		{"scan_ssid", "1"},
		{"key_mgmt", creds.Policy.KeyMgmt()},
	}
	if creds.Policy.Threshold == AuthOpen {
		return settings
	}
	rawPSK := len(creds.Passphrase) == 64 && isHex(creds.Passphrase)
	if creds.Policy.Threshold == AuthWPA2PSK {
		settings = append(settings, [2]string{"psk", creds.PSK()})
	}
	if !rawPSK {
		settings = append(settings, [2]string{"sae_password", `"` + creds.Passphrase + `"`})
	}
	settings = append(settings, [2]string{"ieee80211w", strconv.Itoa(creds.Policy.PMF())})
	return settings
}

// Connect - select the configured network
func (w *WPASupplicant) Connect() error {
	if w.command == nil {
		return errors.New("wpa_supplicant: not started")
	}
	return w.command.expectOK("SELECT_NETWORK " + w.networkID)
}

func (w *WPASupplicant) watch() {
	defer w.wg.Done()
	for {
		msg, err := w.monitor.read()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				w.logger().Error().Err(err).Msg("control monitor read failed")
			}
			return
		}
		name, fields := parseEvent(msg)
		w.logger().Debug().Str("event", name).Msg("supplicant event")
		switch {
		case name == "CTRL-EVENT-CONNECTED":
			w.startPoll()
		case disconnectEvents[name]:
			w.cancelPoll()
			reason := fields["reason"]
			if reason == "" {
				reason = name
			}
			w.out.emit(Event{Kind: EventDisconnected, Reason: reason})
			if name == "CTRL-EVENT-TERMINATING" {
				return
			}
		}
	}
}

func (w *WPASupplicant) startPoll() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopPoll != nil {
		w.stopPoll()
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.stopPoll = cancel

	lookup := w.lookup
	if lookup == nil {
		lookup = InterfaceIPv4
	}
	interval := w.PollInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			if ip, err := lookup(w.Interface); err == nil {
				w.out.emit(Event{Kind: EventGotIP, IP: ip})
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (w *WPASupplicant) cancelPoll() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopPoll != nil {
		w.stopPoll()
		w.stopPoll = nil
	}
}

// Close - drop the network block, detach and close the event channel
func (w *WPASupplicant) Close() error {
	if w.out == nil {
		return nil
	}
	var err error
	if w.networkID != "" {
		err = w.command.expectOK("REMOVE_NETWORK " + w.networkID)
	}
	w.cancelPoll()
	w.monitor.Close()
	w.command.Close()
	w.wg.Wait()
	w.out.close()
	return err
}

func (w *WPASupplicant) logger() *zerolog.Logger {
	return observability.OrDefault(w.Logger)
}

// parseEvent - split "<3>CTRL-EVENT-X k=v k=v" into its name and fields
func parseEvent(msg string) (string, map[string]string) {
	msg = strings.TrimSpace(msg)
	if strings.HasPrefix(msg, "<") {
		if i := strings.IndexByte(msg, '>'); i >= 0 {
			msg = msg[i+1:]
		}
	}
	parts := strings.Fields(msg)
	if len(parts) == 0 {
		return "", nil
	}
	fields := make(map[string]string)
	for _, part := range parts[1:] {
		if k, v, ok := strings.Cut(part, "="); ok {
			fields[k] = v
		}
	}
	return parts[0], fields
}

var ctrlSeq atomic.Int64

// ctrlConn - one datagram socket bound to a private path and connected to
// the supplicant's control socket
type ctrlConn struct {
	conn  *net.UnixConn
	local string
	mu    sync.Mutex
}

func dialCtrl(path string) (*ctrlConn, error) {
	local := filepath.Join(os.TempDir(), fmt.Sprintf("kbdbridge-wpa-%d-%d", os.Getpid(), ctrlSeq.Add(1)))
	os.Remove(local)
	conn, err := net.DialUnix("unixgram",
		&net.UnixAddr{Name: local, Net: "unixgram"},
		&net.UnixAddr{Name: path, Net: "unixgram"},
	)
	if err != nil {
		return nil, fmt.Errorf("wpa_supplicant: dial %s: %w", path, err)
	}
	return &ctrlConn{conn: conn, local: local}, nil
}

func (c *ctrlConn) request(cmd string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetDeadline(time.Now().Add(ctrlTimeout))
	defer c.conn.SetDeadline(time.Time{})

	if _, err := c.conn.Write([]byte(cmd)); err != nil {
		return "", fmt.Errorf("wpa_supplicant: %s: %w", commandName(cmd), err)
	}
	buffer := make([]byte, 4096)
	for {
		n, err := c.conn.Read(buffer)
		if err != nil {
			return "", fmt.Errorf("wpa_supplicant: %s: %w", commandName(cmd), err)
		}
		reply := string(buffer[:n])
		// unsolicited event
		if strings.HasPrefix(reply, "<") {
			continue
		}
		return strings.TrimRight(reply, "\n"), nil
	}
}

func (c *ctrlConn) expectOK(cmd string) error {
	reply, err := c.request(cmd)
	if err != nil {
		return err
	}
	if reply != "OK" {
		return fmt.Errorf("wpa_supplicant: %s: %s", commandName(cmd), reply)
	}
	return nil
}

func (c *ctrlConn) read() (string, error) {
	buffer := make([]byte, 4096)
	n, err := c.conn.Read(buffer)
	if err != nil {
		return "", err
	}
	return string(buffer[:n]), nil
}

func (c *ctrlConn) Close() error {
	err := c.conn.Close()
	os.Remove(c.local)
	return err
}

// commandName - the command without secret values, for errors and logs
func commandName(cmd string) string {
	parts := strings.Fields(cmd)
	if len(parts) >= 3 && parts[0] == "SET_NETWORK" {
		return strings.Join(parts[:3], " ")
	}
	if len(parts) >= 2 && parts[0] == "SET" {
		return strings.Join(parts[:2], " ")
	}
	if len(parts) > 0 {
		return parts[0]
	}
	return cmd
}
