package variable

import (
	"os"
	"os/user"
	"path"
	"time"
)

const (
	// ServerPort - the well-known bridge port (0xCAFE)
	ServerPort uint16 = 0xCAFE
	// ServerBacklog - only one fully established peer may wait for accept()
	ServerBacklog = 1
	// KeepAliveIdle - idle time before the first keep-alive probe
	KeepAliveIdle = 5 * time.Second
	// KeepAliveInterval - time between keep-alive probes
	KeepAliveInterval = 5 * time.Second
	// KeepAliveCount - unanswered probes before the peer is considered dead
	KeepAliveCount = 3
	// EchoBufferSize - bytes read per receive in echo mode
	EchoBufferSize = 127
	// ForwardBufferSize - bytes read per receive in forward mode
	ForwardBufferSize = 128
	// MaxRetry - consecutive disconnects tolerated before the link is failed
	MaxRetry = 5
	// ExitByte - Ctrl-], stops the terminal source
	ExitByte byte = 0x1d
)

var (
	// Version - overridden at link time
	Version = "dev"
	// ConfigBaseDir - the project config dir
	ConfigBaseDir string
	// ConfigFileName - default config file name inside ConfigBaseDir
	ConfigFileName = "config.toml"
	// WPACtrlDir - default wpa_supplicant control socket directory
	WPACtrlDir = "/var/run/wpa_supplicant"
)

func init() {
	home := os.TempDir()
	if u, err := user.Current(); err == nil && u.HomeDir != "" {
		home = u.HomeDir
	}
	ConfigBaseDir = path.Join(home, ".kbdbridge")
}
