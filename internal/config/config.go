// Package config loads the bridge configuration from TOML or YAML.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/rectcircle/kbdbridge/internal/server"
	"github.com/rectcircle/kbdbridge/internal/variable"
	"github.com/rectcircle/kbdbridge/internal/wifi"
	"github.com/rectcircle/kbdbridge/tools"
)

// Wireless driver names
const (
	DriverWPASupplicant = "wpa_supplicant"
	DriverStatic        = "static"
)

// Behaviour once the link failed
const (
	OnFailureContinue = "continue"
	OnFailureHalt     = "halt"
)

// Source kinds
const (
	SourceTerminal = "terminal"
	SourceCommand  = "command"
	SourceNone     = "none"
)

// Config - the whole bridge configuration
type Config struct {
	WiFi    WiFiConfig    `toml:"wifi" yaml:"wifi"`
	Server  ServerConfig  `toml:"server" yaml:"server"`
	Source  SourceConfig  `toml:"source" yaml:"source"`
	Log     LogConfig     `toml:"log" yaml:"log"`
	Metrics MetricsConfig `toml:"metrics" yaml:"metrics"`
}

// WiFiConfig - station driver, credentials and retry policy
type WiFiConfig struct {
	Driver     string `toml:"driver" yaml:"driver"`
	Interface  string `toml:"interface" yaml:"interface"`
	CtrlDir    string `toml:"ctrl_dir" yaml:"ctrl_dir"`
	SSID       string `toml:"ssid" yaml:"ssid"`
	Passphrase string `toml:"passphrase" yaml:"passphrase"`
	Auth       string `toml:"auth" yaml:"auth"`
	SAEPWE     string `toml:"sae_pwe" yaml:"sae_pwe"`
	// MaxRetry - reconnects before the link is failed, 0 disables retrying
	MaxRetry  int    `toml:"max_retry" yaml:"max_retry"`
	OnFailure string `toml:"on_failure" yaml:"on_failure"`
}

// ServerConfig - session server address and mode
type ServerConfig struct {
	Host string `toml:"host" yaml:"host"`
	Port uint16 `toml:"port" yaml:"port"`
	Mode string `toml:"mode" yaml:"mode"`
}

// SourceConfig - the scancode source
type SourceConfig struct {
	Kind    string `toml:"kind" yaml:"kind"`
	Command string `toml:"command" yaml:"command"`
	// ExitByte - terminal source only, 0 disables
	ExitByte uint8 `toml:"exit_byte" yaml:"exit_byte"`
}

// LogConfig - process logger
type LogConfig struct {
	Level   string `toml:"level" yaml:"level"`
	NoColor bool   `toml:"no_color" yaml:"no_color"`
	JSON    bool   `toml:"json" yaml:"json"`
}

// MetricsConfig - prometheus endpoint
type MetricsConfig struct {
	// Addr - /metrics listen address, empty disables the endpoint
	Addr string `toml:"addr" yaml:"addr"`
}

// Default - configuration used for missing keys and for a fresh config file
func Default() Config {
	return Config{
		WiFi: WiFiConfig{
			Driver:    DriverWPASupplicant,
			Interface: "wlan0",
			CtrlDir:   variable.WPACtrlDir,
			Auth:      wifi.AuthWPA2PSK.String(),
			SAEPWE:    "both",
			MaxRetry:  variable.MaxRetry,
			OnFailure: OnFailureContinue,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: variable.ServerPort,
			Mode: server.ModeForward.String(),
		},
		Source: SourceConfig{
			Kind:     SourceTerminal,
			ExitByte: variable.ExitByte,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultPath - ~/.kbdbridge/config.toml
func DefaultPath() string {
	return filepath.Join(variable.ConfigBaseDir, variable.ConfigFileName)
}

// Load - read path, `.yaml`/`.yml` as YAML and anything else as TOML
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	return parse(path, data)
}

// LoadOrCreate - Load, writing Default to path first when it does not exist
func LoadOrCreate(path string) (Config, error) {
	data, err := tools.ReadOrCreateFile(path, func() ([]byte, error) {
		return Encode(Default())
	})
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	return parse(path, data)
}

// Encode - TOML form of cfg
func Encode(cfg Config) ([]byte, error) {
	var buffer bytes.Buffer
	if err := toml.NewEncoder(&buffer).Encode(cfg); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

func parse(path string, data []byte) (Config, error) {
	cfg := Default()
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		_, err = toml.Decode(string(data), &cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

// Validate - check every enumerated value and the credentials shape
func (c Config) Validate() error {
	switch c.WiFi.Driver {
	case DriverWPASupplicant:
		if c.WiFi.Interface == "" {
			return fmt.Errorf("wifi.interface is required for the %s driver", DriverWPASupplicant)
		}
	case DriverStatic:
	default:
		return fmt.Errorf("wifi.driver must be %q or %q, got %q", DriverWPASupplicant, DriverStatic, c.WiFi.Driver)
	}
	if c.WiFi.MaxRetry < 0 {
		return fmt.Errorf("wifi.max_retry must not be negative")
	}
	if c.WiFi.OnFailure != OnFailureContinue && c.WiFi.OnFailure != OnFailureHalt {
		return fmt.Errorf("wifi.on_failure must be %q or %q, got %q", OnFailureContinue, OnFailureHalt, c.WiFi.OnFailure)
	}
	if c.WiFi.Driver == DriverWPASupplicant {
		creds, err := c.Credentials()
		if err != nil {
			return err
		}
		if err := creds.Validate(); err != nil {
			return err
		}
	}
	if _, err := server.ParseMode(c.Server.Mode); err != nil {
		return fmt.Errorf("server.mode: %w", err)
	}
	switch c.Source.Kind {
	case SourceTerminal, SourceNone:
	case SourceCommand:
		if strings.TrimSpace(c.Source.Command) == "" {
			return fmt.Errorf("source.command is required for the %s source", SourceCommand)
		}
	default:
		return fmt.Errorf("source.kind must be %q, %q or %q, got %q", SourceTerminal, SourceCommand, SourceNone, c.Source.Kind)
	}
	return nil
}

// Credentials - station credentials and auth policy from the wifi section
func (c Config) Credentials() (wifi.Credentials, error) {
	threshold, err := wifi.ParseAuthMode(c.WiFi.Auth)
	if err != nil {
		return wifi.Credentials{}, fmt.Errorf("wifi.auth: %w", err)
	}
	pwe, err := wifi.ParseSAEPWE(c.WiFi.SAEPWE)
	if err != nil {
		return wifi.Credentials{}, fmt.Errorf("wifi.sae_pwe: %w", err)
	}
	return wifi.Credentials{
		SSID:       c.WiFi.SSID,
		Passphrase: c.WiFi.Passphrase,
		Policy:     wifi.AuthPolicy{Threshold: threshold, SAEPWE: pwe},
	}, nil
}

// ServerAddr - host:port of the session server
func (c Config) ServerAddr() string {
	return tools.ToAddressString(c.Server.Host, c.Server.Port)
}
