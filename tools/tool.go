package tools

import (
	"io"
	"net"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// ToAddressString - return "$host:$port"
func ToAddressString(host string, port uint16) string {
	return net.JoinHostPort(host, strconv.FormatInt(int64(port), 10))
}

func getUserShellByPasswd(passwd string, username string) string {
	shell := ""
	for _, line := range strings.Split(passwd, "\n") {
		items := strings.Split(line, ":")
		if len(items) < 7 {
			continue
		}
		if items[0] == username {
			shell = items[6]
			break
		}
	}
	return shell
}

func getLinuxUserShell() string {
	bytes, err := os.ReadFile("/etc/passwd")
	if err != nil {
		return ""
	}
	u, err2 := user.Current()
	if err2 != nil {
		return ""
	}
	return getUserShellByPasswd(string(bytes), u.Username)
}

func getDarwinUserShell() string {
	u, err2 := user.Current()
	if err2 != nil {
		return ""
	}
	output, err := exec.Command("/usr/bin/dscl", ".", "-read", u.HomeDir, "UserShell").Output()
	if err != nil {
		return ""
	}
	parts := strings.SplitN(string(output), ":", 2)
	if len(parts) < 2 {
		return ""
	}
	return strings.Trim(parts[1], " \t\n\r")
}

// GetUnixUserShell - get current user default shell, falls back to `sh`
func GetUnixUserShell() string {
	var shell string
	switch runtime.GOOS {
	case "darwin":
		shell = getDarwinUserShell()
	case "linux":
		shell = getLinuxUserShell()
	}
	if shell == "" || strings.HasSuffix(shell, "nologin") || strings.HasSuffix(shell, "false") {
		return "sh"
	}
	return shell
}

// PathExist - return whether exist of path
func PathExist(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ReadOrCreateFile - read from config file, and return the file content
// if path not exist, will create the path and call `f()` to write to the file.
func ReadOrCreateFile(path string, f func() ([]byte, error)) ([]byte, error) {
	if PathExist(path) {
		return os.ReadFile(path)
	}
	content, err := f()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	// 0600: the file carries the network passphrase
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if _, err := file.Write(content); err != nil {
		return nil, err
	}
	return content, nil
}

// LogAndExitIfErr - will log and exit if err != nil
func LogAndExitIfErr(err error) {
	if err != nil {
		log.Error().Err(err).Msg("fatal")
		os.Exit(1)
	}
}

// ReaderToChannel - pump `reader` into a channel of owned chunks,
// the channel is closed once reader returns an error (including EOF)
func ReaderToChannel(reader io.Reader) <-chan []byte {
	channel := make(chan []byte)
	go func() {
		defer close(channel)
		buffer := make([]byte, 4096)
		for {
			n, err := reader.Read(buffer)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buffer[:n])
				channel <- chunk
			}
			if err != nil {
				return
			}
		}
	}()
	return channel
}
