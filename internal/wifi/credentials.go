package wifi

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// ErrInvalidCredentials - credentials rejected before touching the radio
var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthMode - weakest authentication the station accepts
type AuthMode int

const (
	// AuthOpen - no authentication
	AuthOpen AuthMode = iota
	// AuthWPA2PSK - WPA2 personal
	AuthWPA2PSK
	// AuthWPA3SAE - WPA3 personal only
	AuthWPA3SAE
)

func (m AuthMode) String() string {
	switch m {
	case AuthOpen:
		return "open"
	case AuthWPA2PSK:
		return "wpa2-psk"
	case AuthWPA3SAE:
		return "wpa3-sae"
	default:
		return fmt.Sprintf("auth(%d)", int(m))
	}
}

// ParseAuthMode - parse a config value
func ParseAuthMode(raw string) (AuthMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "open":
		return AuthOpen, nil
	case "", "wpa2-psk", "wpa2":
		return AuthWPA2PSK, nil
	case "wpa3-sae", "wpa3", "sae":
		return AuthWPA3SAE, nil
	}
	return AuthOpen, fmt.Errorf("unknown auth mode %q", raw)
}

// SAEPWE - SAE password element derivation, values match wpa_supplicant sae_pwe
type SAEPWE int

const (
	// SAEHuntAndPeck - legacy looping derivation
	SAEHuntAndPeck SAEPWE = 0
	// SAEHashToElement - H2E only
	SAEHashToElement SAEPWE = 1
	// SAEBoth - whichever the AP offers
	SAEBoth SAEPWE = 2
)

// ParseSAEPWE - parse a config value
func ParseSAEPWE(raw string) (SAEPWE, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "both":
		return SAEBoth, nil
	case "hunt-and-peck", "hnp":
		return SAEHuntAndPeck, nil
	case "h2e", "hash-to-element":
		return SAEHashToElement, nil
	}
	return SAEBoth, fmt.Errorf("unknown sae_pwe %q", raw)
}

// AuthPolicy - threshold plus opportunistic WPA3
type AuthPolicy struct {
	Threshold AuthMode
	SAEPWE    SAEPWE
}

// DefaultAuthPolicy - minimum WPA2-PSK, SAE used when the AP offers it
func DefaultAuthPolicy() AuthPolicy {
	return AuthPolicy{Threshold: AuthWPA2PSK, SAEPWE: SAEBoth}
}

// KeyMgmt - wpa_supplicant key_mgmt value for the policy
func (p AuthPolicy) KeyMgmt() string {
	switch p.Threshold {
	case AuthOpen:
		return "NONE"
	case AuthWPA3SAE:
		return "SAE"
	default:
		return "WPA-PSK WPA-PSK-SHA256 SAE"
	}
}

// PMF - wpa_supplicant ieee80211w value, SAE requires management frame protection
func (p AuthPolicy) PMF() int {
	if p.Threshold == AuthWPA3SAE {
		return 2
	}
	return 1
}

// Credentials - network name, passphrase and auth policy
type Credentials struct {
	SSID       string
	Passphrase string
	Policy     AuthPolicy
}

// Validate - check lengths against 802.11 limits
func (c Credentials) Validate() error {
	if n := len(c.SSID); n == 0 || n > 32 {
		return fmt.Errorf("%w: ssid must be 1..32 bytes, got %d", ErrInvalidCredentials, n)
	}
	if c.Policy.Threshold == AuthOpen {
		return nil
	}
	n := len(c.Passphrase)
	if n == 64 && isHex(c.Passphrase) {
		if c.Policy.Threshold == AuthWPA3SAE {
			return fmt.Errorf("%w: sae needs a passphrase, not a raw psk", ErrInvalidCredentials)
		}
		return nil
	}
	if n < 8 || n > 63 {
		return fmt.Errorf("%w: passphrase must be 8..63 characters, got %d", ErrInvalidCredentials, n)
	}
	for _, r := range c.Passphrase {
		if r < 0x20 || r > 0x7e {
			return fmt.Errorf("%w: passphrase must be printable ascii", ErrInvalidCredentials)
		}
	}
	return nil
}

// PSK - 256-bit pre-shared key in hex, PBKDF2-SHA1(passphrase, ssid, 4096)
func (c Credentials) PSK() string {
	if len(c.Passphrase) == 64 && isHex(c.Passphrase) {
		return strings.ToLower(c.Passphrase)
	}
	key := pbkdf2.Key([]byte(c.Passphrase), []byte(c.SSID), 4096, 32, sha1.New)
	return hex.EncodeToString(key)
}

// String - never reveals the passphrase
func (c Credentials) String() string {
	return fmt.Sprintf("ssid=%q auth>=%s passphrase=%s", c.SSID, c.Policy.Threshold, strings.Repeat("*", len(c.Passphrase)))
}

func isHex(s string) bool {
	_, err := hex.DecodeString(s)
	return err == nil
}
