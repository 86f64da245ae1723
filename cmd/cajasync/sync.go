package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jfcamacho/cajasync/internal/store"
	"github.com/jfcamacho/cajasync/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Push pending mutations to the remote datastore",
	Long: `Drain the sync queue against the remote datastore.

Each queued entry is projected onto its table's outbound field set and
dispatched oldest-first. Entries the remote confirms (or reports as
already applied) are removed; everything else stays queued for the next
attempt. One failing entry never aborts the batch.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, _, eng, err := newServices()
		if err != nil {
			return err
		}
		defer st.Close()
		if eng == nil {
			return errNoRemote
		}

		start := time.Now()
		summary, err := eng.ProcessQueue(cmd.Context())
		if err != nil {
			return err
		}

		elapsed := time.Since(start).Round(time.Millisecond)
		if summary.Success {
			fmt.Printf("%s Synced %d entries in %v\n", ui.RenderPass("✓"), summary.SyncedCount, elapsed)
		} else {
			fmt.Printf("%s Synced %d entries, %d left queued (%v)\n",
				ui.RenderFail("✗"), summary.SyncedCount, len(summary.Errors), elapsed)
			for _, e := range summary.Errors {
				fmt.Fprintf(os.Stderr, "   %v\n", e)
			}
		}
		return nil
	},
}

var pullCmd = &cobra.Command{
	Use:     "pull",
	GroupID: "sync",
	Short:   "Replace the local dataset from the remote source of truth",
	Long: `Fetch every mirrored table from the remote datastore and replace the
local copies wholesale. Pending sync queue entries survive the pull and
are pushed afterwards.

Run this once at startup, or whenever the local dataset should be reset
to the authoritative remote state.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, _, eng, err := newServices()
		if err != nil {
			return err
		}
		defer st.Close()
		if eng == nil {
			return errNoRemote
		}

		fmt.Printf("%s Pulling from remote...\n", ui.RenderAccent("⇣"))
		if err := eng.PullAll(cmd.Context()); err != nil {
			return err
		}

		fmt.Printf("%s Pull complete\n", ui.RenderPass("✓"))
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "sync",
	Short:   "Show store and sync queue status",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		version, err := st.Version()
		if err != nil {
			return err
		}
		depth, err := store.QueueDepth(cmd.Context(), st.DB())
		if err != nil {
			return err
		}

		fmt.Printf("Database: %s (schema v%d)\n", st.Path(), version)
		if depth == 0 {
			fmt.Printf("Pending sync: %s\n", ui.RenderPass("0 entries"))
		} else {
			fmt.Printf("Pending sync: %s\n", ui.RenderFail(fmt.Sprintf("%d entries", depth)))
		}

		boxes, err := store.ListBoxes(cmd.Context(), st.DB())
		if err != nil {
			return err
		}
		for _, b := range boxes {
			fmt.Printf("  %s %s: %s\n", ui.RenderAccent("▸"), b.Name, b.Balance)
		}
		return nil
	},
}

var queueCmd = &cobra.Command{
	Use:     "queue",
	GroupID: "sync",
	Short:   "Inspect and manage the sync queue",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending sync queue entries oldest-first",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		entries, err := store.PendingQueueEntries(cmd.Context(), st.DB())
		if err != nil {
			return err
		}

		if len(entries) == 0 {
			fmt.Printf("%s Queue is empty\n", ui.RenderPass("✓"))
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%6d  %-7s %-16s %s\n", e.ID, e.Operation, e.Table,
				ui.RenderDim(e.Timestamp.Format(time.RFC3339)))
		}
		return nil
	},
}

var queueDiscardCmd = &cobra.Command{
	Use:   "discard <entry-id>",
	Short: "Discard a queue entry without pushing it",
	Long: `Remove a sync queue entry permanently.

The local mutation it carried stays applied; it will simply never reach
the remote. Use this only for entries that can never succeed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid entry id %q: %w", args[0], err)
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		if err := store.DeleteQueueEntry(cmd.Context(), st.DB(), id); err != nil {
			return err
		}
		fmt.Printf("%s Discarded entry %d\n", ui.RenderPass("✓"), id)
		return nil
	},
}

var recalcCmd = &cobra.Command{
	Use:     "recalc",
	GroupID: "data",
	Short:   "Rebuild every cash box balance from its transactions",
	Long: `Zero every box balance and fold every transaction's effect back in.

This is the integrity-repair tool: box balances are derived state, and
recalc makes them match the transaction history exactly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, led, _, err := newServices()
		if err != nil {
			return err
		}
		defer st.Close()

		if err := led.Recalc(cmd.Context()); err != nil {
			return err
		}
		fmt.Printf("%s Balances recalculated\n", ui.RenderPass("✓"))
		return nil
	},
}

func init() {
	queueCmd.AddCommand(queueListCmd, queueDiscardCmd)
	rootCmd.AddCommand(syncCmd, pullCmd, statusCmd, queueCmd, recalcCmd)
}
