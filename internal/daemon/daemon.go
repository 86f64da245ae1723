// Package daemon provides the background worker that drains the sync
// queue.
//
// The daemon owns sync TRIGGERING, which the engine deliberately does not:
// it coalesces repeated trigger signals into a single in-flight pass,
// fires a pass when connectivity returns, runs a periodic safety-net pass,
// and watches the database file so mutations made by another process wake
// it up. It shuts down gracefully.
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jfcamacho/cajasync/internal/remote"
	"github.com/jfcamacho/cajasync/internal/syncer"
)

// Config holds configuration for the daemon.
type Config struct {
	// PollInterval is how often to run a safety-net sync pass even
	// without a trigger.
	PollInterval time.Duration

	// OnlineProbeInterval is how often to consult the connectivity
	// oracle. An offline→online transition triggers a pass.
	OnlineProbeInterval time.Duration

	// DebounceInterval is how long to wait after a trigger before
	// draining, batching rapid mutation bursts into one pass.
	DebounceInterval time.Duration

	// OnPass, if set, is invoked after every sync pass with the pass
	// summary and the remaining queue depth. Used by the dashboard.
	OnPass func(summary *syncer.Summary, depth int)

	// Logger for daemon activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		PollInterval:        30 * time.Second,
		OnlineProbeInterval: 5 * time.Second,
		DebounceInterval:    250 * time.Millisecond,
		Logger:              log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon orchestrates sync triggering around a shared engine.
type Daemon struct {
	engine *syncer.Engine
	oracle remote.Oracle
	dbPath string
	config *Config

	// trigger has capacity 1: a send while a signal is already pending
	// is dropped, folding redundant triggers into the next pass.
	trigger chan struct{}

	watcher *fsnotify.Watcher

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a daemon around a sync engine.
//
// dbPath is the SQLite database file; its directory is watched so writes
// from other processes (their WAL activity) also wake the daemon.
func New(engine *syncer.Engine, oracle remote.Oracle, dbPath string, config *Config) (*Daemon, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if oracle == nil {
		return nil, fmt.Errorf("oracle cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		engine:  engine,
		oracle:  oracle,
		dbPath:  dbPath,
		config:  config,
		trigger: make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Notify requests a sync pass. It never blocks: if a trigger is already
// pending, the request is coalesced into it.
func (d *Daemon) Notify() {
	select {
	case d.trigger <- struct{}{}:
	default:
	}
}

// Start begins the daemon's operation.
//
// The daemon will:
//  1. Run an initial pass if currently online
//  2. Drain the queue on every trigger, debounced
//  3. Probe connectivity and fire on the offline→online transition
//  4. Run a periodic safety-net pass
//
// This blocks until ctx is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting sync daemon")

	if d.dbPath != "" {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		if err := watcher.Add(filepath.Dir(d.dbPath)); err != nil {
			_ = watcher.Close()
			return fmt.Errorf("failed to watch database directory: %w", err)
		}
		d.watcher = watcher
		d.config.Logger.Printf("Watching %s", filepath.Dir(d.dbPath))
	}

	if d.oracle.Online(d.ctx) {
		d.Notify()
	}

	d.wg.Add(2)
	go d.runLoop()
	go d.probeOnline()
	if d.watcher != nil {
		d.wg.Add(1)
		go d.watchDatabase()
	}

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon. The in-flight pass, if any,
// completes entry-by-entry.
func (d *Daemon) Stop() error {
	d.config.Logger.Println("Stopping sync daemon")

	d.cancel()

	if d.watcher != nil {
		if err := d.watcher.Close(); err != nil {
			d.config.Logger.Printf("Error closing watcher: %v", err)
		}
	}

	d.wg.Wait()

	d.config.Logger.Println("Sync daemon stopped")
	return nil
}

// runLoop drains the queue on triggers and on the periodic ticker.
func (d *Daemon) runLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-d.trigger:
			// Debounce: let a burst of mutations settle into one
			// pass, absorbing triggers that arrive meanwhile.
			timer := time.NewTimer(d.config.DebounceInterval)
			select {
			case <-d.ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			d.runPass()

		case <-ticker.C:
			d.runPass()
		}
	}
}

// runPass executes one sync pass and reports it.
func (d *Daemon) runPass() {
	summary, err := d.engine.ProcessQueue(d.ctx)
	if err != nil {
		d.config.Logger.Printf("Sync pass failed: %v", err)
		return
	}

	depth, err := d.engine.QueueDepth(d.ctx)
	if err != nil {
		d.config.Logger.Printf("Failed to read queue depth: %v", err)
		depth = -1
	}

	if d.config.OnPass != nil {
		d.config.OnPass(summary, depth)
	}
}

// probeOnline polls the connectivity oracle and triggers a pass on the
// offline→online transition.
func (d *Daemon) probeOnline() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.OnlineProbeInterval)
	defer ticker.Stop()

	online := d.oracle.Online(d.ctx)
	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			now := d.oracle.Online(d.ctx)
			if now && !online {
				d.config.Logger.Println("Connectivity restored, triggering sync")
				d.Notify()
			}
			online = now
		}
	}
}

// watchDatabase turns database file activity into triggers, so mutations
// committed by another process get pushed without waiting for the ticker.
func (d *Daemon) watchDatabase() {
	defer d.wg.Done()

	base := filepath.Base(d.dbPath)
	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			// The WAL and the db file itself both count as activity.
			if !strings.HasPrefix(filepath.Base(event.Name), base) {
				continue
			}
			d.Notify()

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}
