package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/plantdata/finsbridge/internal/config"
	"github.com/plantdata/finsbridge/internal/dashboard"
	"github.com/plantdata/finsbridge/internal/daemon"
	"github.com/plantdata/finsbridge/internal/logging"
	"github.com/plantdata/finsbridge/internal/metrics"
	"github.com/plantdata/finsbridge/internal/shutdown"
	"github.com/plantdata/finsbridge/internal/statusserver"
	"github.com/plantdata/finsbridge/internal/supervisor"
	"github.com/plantdata/finsbridge/pkg/banner"
)

var (
	configPath         string
	csvFlag            bool
	reloadFlag         bool
	daemonFlag         bool
	httpAddr           string
	dashboardFlag      bool
	logLevelFlag       string
	nodeDescriptorPath string

	console  zerolog.Logger
	logLevel zerolog.Level
	plcs     []config.PLCConfig
)

var rootCmd = &cobra.Command{
	Use:   "finsbridge",
	Short: "FINS/OPC UA PLC data acquisition bridge",
	Long: `finsbridge reads tag values off one or more OMRON PLCs over FINS/UDP
and writes them to an OPC UA server, falling back to a local CSV file
whenever the OPC UA link is unavailable.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := zerolog.ParseLevel(logLevelFlag)
		if err != nil {
			level = zerolog.InfoLevel
		}
		logLevel = level

		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		plcs = loaded
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if daemonFlag && !daemon.IsDaemonProcess() {
			pid, err := daemon.Background(os.Args[1:])
			if err != nil {
				return fmt.Errorf("start daemon: %w", err)
			}
			fmt.Printf("finsbridge started in background, pid %d\n", pid)
			return nil
		}
		if daemon.IsDaemonProcess() {
			_ = daemon.WritePID()
			defer daemon.RemovePID()
		}

		collector := metrics.NewCollector(logging.NewConsole(logLevel))
		defer collector.Close()

		if dashboardFlag {
			console = zerolog.New(metrics.NewLogWriter(collector)).Level(logLevel).With().Timestamp().Logger()
		} else {
			console = logging.NewConsole(logLevel)
			fmt.Fprint(os.Stderr, banner.Startup(plcs, csvFlag))
		}

		ctx, coord := shutdown.New(cmd.Context(), console)

		if httpAddr != "" {
			statusserver.New(collector, console).StartBackground(ctx, httpAddr)
		}
		if dashboardFlag {
			go func() {
				if err := dashboard.Run(collector); err != nil {
					console.Error().Err(err).Msg("dashboard exited")
				}
				coord.Cancel()
			}()
		}

		sup := supervisor.New(console, collector, csvFlag, nodeDescriptorPath, newLiveClients)

		done := make(chan struct{})
		var exitCode int
		go func() {
			exitCode = sup.Run(ctx, plcs)
			close(done)
		}()

		coord.Watch(done)
		<-done

		if !dashboardFlag {
			fmt.Fprint(os.Stderr, banner.Shutdown(sup.Reports()))
		}
		os.Exit(finalExitCode(exitCode, coord.Interrupted()))
		return nil
	},
}

// finalExitCode applies the operator-interrupt override: a signal always
// produces ExitInterrupted, even when every loop happened to drain with a
// reason that would otherwise map to ExitOK.
func finalExitCode(supervisorExit int, interrupted bool) int {
	if interrupted {
		return shutdown.ExitInterrupted
	}
	return supervisorExit
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVarP(&configPath, "config", "c", "plc_data.json", "Path to the PLC configuration file")
	f.BoolVar(&csvFlag, "csv", false, "Always write a CSV file alongside OPC UA, instead of only on fallback")
	f.BoolVar(&reloadFlag, "reload", false, "Accepted for compatibility; the bridge never re-reads its configuration mid-run")
	f.BoolVar(&daemonFlag, "daemon", false, "Run detached from the current terminal, logging to ~/.finsbridge/finsbridge.log")
	f.StringVar(&httpAddr, "http", "", "Serve GET /status and GET /ws on this address (e.g. :8080); disabled if empty")
	f.BoolVar(&dashboardFlag, "dashboard", false, "Show a live terminal dashboard instead of plain log output")
	f.StringVar(&logLevelFlag, "log-level", "info", "Log level (debug, info, warn, error)")
	f.StringVar(&nodeDescriptorPath, "node-descriptor", "opcua_json_files/nodes.json", "Path to the OPC UA tag-to-node-ID descriptor")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
