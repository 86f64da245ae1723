package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/jfcamacho/cajasync/internal/daemon"
	"github.com/jfcamacho/cajasync/internal/dashboard"
	"github.com/jfcamacho/cajasync/internal/ui"
)

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "sync",
	Short:   "Run the background sync daemon",
	Long: `Run the sync daemon in the foreground.

The daemon watches the local database for mutations, debounces bursts,
and drains the sync queue whenever the remote is reachable. It also
runs a periodic safety-net pass and probes connectivity so queued work
flushes as soon as the machine comes back online.

With --dashboard, a WebSocket dashboard server broadcasts queue depth
and sync pass results to connected clients.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, _, eng, err := newServices()
		if err != nil {
			return err
		}
		defer st.Close()
		if eng == nil {
			return errNoRemote
		}

		config := daemon.DefaultConfig()
		config.PollInterval = viper.GetDuration("daemon.poll_interval")
		config.OnlineProbeInterval = viper.GetDuration("daemon.probe_interval")
		config.DebounceInterval = viper.GetDuration("daemon.debounce")
		config.Logger = daemonLogger()

		var server *dashboard.Server
		if withDashboard, _ := cmd.Flags().GetBool("dashboard"); withDashboard {
			server = dashboard.NewServer(&dashboard.Config{
				Addr:   viper.GetString("dashboard.addr"),
				Logger: log.New(os.Stderr, "[dashboard] ", log.LstdFlags),
			})
			if err := server.Start(); err != nil {
				return fmt.Errorf("starting dashboard: %w", err)
			}
			defer server.Stop()

			handler := dashboard.NewHandler(server, config.Logger)
			config.OnPass = handler.OnPass
			fmt.Printf("%s Dashboard listening on %s\n", ui.RenderAccent("●"), server.GetAddr())
		}

		d, err := daemon.New(eng, newOracle(), st.Path(), config)
		if err != nil {
			return err
		}

		fmt.Printf("%s Sync daemon running (db: %s). Ctrl-C to stop.\n",
			ui.RenderPass("✓"), st.Path())

		// Start blocks until the context is cancelled and stops the
		// daemon itself on the way out.
		return d.Start(cmd.Context())
	},
}

// daemonLogger writes to a rotated log file when log.file is
// configured, otherwise to stderr.
func daemonLogger() *log.Logger {
	path := viper.GetString("log.file")
	if path == "" {
		return log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}
	return log.New(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}, "[daemon] ", log.LstdFlags)
}

func init() {
	daemonCmd.Flags().Bool("dashboard", false, "serve the WebSocket dashboard")
	rootCmd.AddCommand(daemonCmd)
}
