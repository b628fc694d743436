package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/rectcircle/kbdbridge/internal/bootstrap"
	"github.com/rectcircle/kbdbridge/internal/config"
	"github.com/rectcircle/kbdbridge/internal/observability"
	"github.com/rectcircle/kbdbridge/internal/variable"
	"github.com/rectcircle/kbdbridge/tools"
)

const description = "Bring the wireless link up and serve the scancode stream on TCP port 51966"

type args struct {
	configPath string
	version    bool
	help       bool
}

func parseArgs(argv []string) (args, *pflag.FlagSet, error) {
	var a args
	flagSet := pflag.NewFlagSet("kbdbridge", pflag.ContinueOnError)
	flagSet.StringVarP(&a.configPath, "config", "c", config.DefaultPath(), "config file (.toml, .yaml), created with defaults when missing")
	flagSet.BoolVar(&a.version, "version", false, "print the version")
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
	if a.version {
		fmt.Println(variable.Version)
		return
	}

	observability.InitLogger("kbdbridge", observability.LogConfig{})
	cfg, err := config.LoadOrCreate(a.configPath)
	tools.LogAndExitIfErr(err)
	logger := observability.InitLogger("kbdbridge", observability.LogConfig{
		Level:   cfg.Log.Level,
		NoColor: cfg.Log.NoColor,
		JSON:    cfg.Log.JSON,
	})
	logger.Info().Str("config", a.configPath).Str("version", variable.Version).Msg("starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = bootstrap.Run(ctx, cfg, &logger)
	stop()
	tools.LogAndExitIfErr(err)
}
