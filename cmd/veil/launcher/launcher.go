package launcher

import (
	"fmt"
	"os"
	"sort"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/veilcash/go-veil/monitoring"
	"github.com/veilcash/go-veil/version"
)

const (
	// clientIdentifier used in logs and the config dump header.
	clientIdentifier = "go-veil"
)

var (
	app = &cli.App{
		Name:    clientIdentifier,
		Usage:   "the go-veil command line interface",
		Version: version.AsString(),
	}

	nodeFlags    []cli.Flag
	metricsFlags []cli.Flag
)

func initFlags() {
	nodeFlags = []cli.Flag{
		configFileFlag,
		DataDirFlag,
		verbosityFlag,
	}
	metricsFlags = []cli.Flag{
		EnableMonitorFlag,
		PrometheusMonitoringPortFlag,
	}
}

func initApp() {
	initFlags()

	// Command flag lists reference nodeFlags, which is only populated
	// here, so they are assigned after initFlags.
	dumpConfigCommand.Flags = nodeFlags
	checkConfigCommand.Flags = nodeFlags
	simulateCommand.Flags = append([]cli.Flag{simRoundsFlag, simSetFlag}, nodeFlags...)

	app.Flags = append(app.Flags, nodeFlags...)
	app.Flags = append(app.Flags, metricsFlags...)
	app.Commands = []*cli.Command{
		simulateCommand,
		dumpConfigCommand,
		checkConfigCommand,
	}
	sort.Sort(cli.CommandsByName(app.Commands))

	app.Before = before
}

func before(ctx *cli.Context) error {
	glogger := log.NewGlogHandler(log.NewTerminalHandler(os.Stderr, false))
	glogger.Verbosity(log.FromLegacyLevel(ctx.Int(verbosityFlag.Name)))
	log.SetDefault(log.NewLogger(glogger))

	if ctx.Bool(EnableMonitorFlag.Name) {
		endpoint := fmt.Sprintf("%s:%d", monitoring.DefaultConfig.HTTP, ctx.Int(PrometheusMonitoringPortFlag.Name))
		monitoring.SetupPrometheus(endpoint)
	}
	return nil
}

// Run starts the application.
func Run() error {
	initApp()
	return app.Run(os.Args)
}
