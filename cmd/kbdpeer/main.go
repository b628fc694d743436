package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/rectcircle/kbdbridge/internal/observability"
	"github.com/rectcircle/kbdbridge/internal/peer"
	"github.com/rectcircle/kbdbridge/internal/variable"
	"github.com/rectcircle/kbdbridge/tools"
)

const description = "Connect to a kbdbridge and print the scancodes it sends"

type args struct {
	host   string
	port   uint16
	format string
	send   bool
	help   bool
}

func parseArgs(argv []string) (args, *pflag.FlagSet, error) {
	var a args
	flagSet := pflag.NewFlagSet("kbdpeer", pflag.ContinueOnError)
	flagSet.StringVarP(&a.host, "host", "H", "127.0.0.1", "bridge host")
	flagSet.Uint16VarP(&a.port, "port", "p", variable.ServerPort, "bridge port")
	flagSet.StringVarP(&a.format, "format", "f", "hex", "output format: hex, raw or dump")
	flagSet.BoolVarP(&a.send, "send", "s", false, "send stdin to the bridge")
	flagSet.BoolVarP(&a.help, "help", "h", false, "output this help")
	flagSet.Usage = func() {
		fmt.Fprintf(flagSet.Output(), "%s\nUsage of %s:\n", description, flagSet.Name())
		flagSet.PrintDefaults()
	}
	err := flagSet.Parse(argv)
	return a, flagSet, err
}

func main() {
	a, flagSet, err := parseArgs(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	if a.help {
		flagSet.Usage()
		return
	}
	format, err := peer.ParseFormat(a.format)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}

	logger := observability.InitLogger("kbdpeer", observability.LogConfig{})
	var input io.Reader
	if a.send {
		input = os.Stdin
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = peer.Run(ctx, peer.Options{
		Addr:   tools.ToAddressString(a.host, a.port),
		Format: format,
		Input:  input,
		Output: os.Stdout,
		Logger: &logger,
	})
	stop()
	tools.LogAndExitIfErr(err)
}
