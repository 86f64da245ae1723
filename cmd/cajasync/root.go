package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jfcamacho/cajasync/internal/ledger"
	"github.com/jfcamacho/cajasync/internal/remote"
	"github.com/jfcamacho/cajasync/internal/store"
	"github.com/jfcamacho/cajasync/internal/syncer"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "cajasync",
	Short: "Offline-first cash management for multi-company cash boxes",
	Long: `cajasync keeps cash boxes, transactions, and debt ledgers in a local
SQLite database, works fully offline, and reconciles with the remote
datastore when connectivity allows.

Every local mutation is applied to the ledger immediately and appended to
a durable sync queue; the sync engine drains the queue against the remote
whenever triggered (mutation, reconnect, timer, or 'cajasync sync').`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./cajasync.yaml)")
	rootCmd.PersistentFlags().String("db", "", "database file (default .cajasync/cajasync.db)")
	rootCmd.PersistentFlags().Bool("offline", false, "treat the remote as unreachable")

	_ = viper.BindPFlag("db.path", rootCmd.PersistentFlags().Lookup("db"))
	_ = viper.BindPFlag("offline", rootCmd.PersistentFlags().Lookup("offline"))

	rootCmd.AddGroup(
		&cobra.Group{ID: "data", Title: "Data commands:"},
		&cobra.Group{ID: "sync", Title: "Sync commands:"},
	)
}

// initConfig reads the config file and environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("cajasync")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.config/cajasync")
	}

	viper.SetDefault("db.path", ".cajasync/cajasync.db")
	viper.SetDefault("remote.timeout", 10*time.Second)
	viper.SetDefault("daemon.poll_interval", 30*time.Second)
	viper.SetDefault("daemon.probe_interval", 5*time.Second)
	viper.SetDefault("daemon.debounce", 250*time.Millisecond)
	viper.SetDefault("dashboard.addr", ":8090")

	viper.SetEnvPrefix("CAJASYNC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "Warning: failed to read config: %v\n", err)
		}
	}
}

// openStore opens and migrates the configured database.
func openStore() (*store.Store, error) {
	st, err := store.Open(viper.GetString("db.path"))
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// errNoRemote refuses sync operations when no real remote exists. Queued
// mutations must never be confirmed against anything but the datastore.
var errNoRemote = fmt.Errorf("no remote configured: set remote.url (or CAJASYNC_REMOTE_URL); queued mutations stay local until then")

// remoteConfigured reports whether a real remote datastore is reachable by
// configuration. --offline deliberately counts as not configured.
func remoteConfigured() bool {
	return !viper.GetBool("offline") && viper.GetString("remote.url") != ""
}

// newRemote builds the HTTP transport to the configured remote.
func newRemote() (remote.Remote, error) {
	if !remoteConfigured() {
		return nil, errNoRemote
	}
	return remote.NewHTTP(remote.HTTPConfig{
		BaseURL: viper.GetString("remote.url"),
		APIKey:  viper.GetString("remote.api_key"),
		Timeout: viper.GetDuration("remote.timeout"),
	})
}

// newOracle builds the connectivity oracle matching the remote choice.
func newOracle() remote.Oracle {
	if viper.GetBool("offline") {
		return remote.StaticOracle(false)
	}
	url := viper.GetString("remote.url")
	if url == "" {
		return remote.StaticOracle(false)
	}
	return remote.NewHTTPOracle(url+"/health", 3*time.Second)
}

// newServices wires the shared store, ledger, and sync engine. The caller
// owns the returned store and must Close it. Without a configured remote
// the engine is nil: local mutations still work and stay queued, but
// nothing may confirm or drop queue entries.
func newServices() (*store.Store, *ledger.Service, *syncer.Engine, error) {
	st, err := openStore()
	if err != nil {
		return nil, nil, nil, err
	}

	led := ledger.New(st, log.New(os.Stderr, "[ledger] ", log.LstdFlags))
	if !remoteConfigured() {
		return st, led, nil, nil
	}

	rm, err := newRemote()
	if err != nil {
		_ = st.Close()
		return nil, nil, nil, err
	}
	eng := syncer.New(st, rm, log.New(os.Stderr, "[sync] ", log.LstdFlags))
	return st, led, eng, nil
}

// maybeSync runs a best-effort sync pass after a mutation when a remote is
// configured and currently reachable. Failures stay queued; they are not
// fatal here.
func maybeSync(cmd *cobra.Command, eng *syncer.Engine) {
	if eng == nil {
		return
	}
	ctx := cmd.Context()
	if !newOracle().Online(ctx) {
		return
	}
	if _, err := eng.ProcessQueue(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: sync pass failed: %v\n", err)
	}
}
