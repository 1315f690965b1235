// Package app provides the composition root for jobdeck: it loads
// configuration and preferences, opens the log file and last-good cache,
// builds the sync engine, and runs the dashboard until the context is
// cancelled.
package app

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/jobdeck/jobdeck/internal/cache"
	"github.com/jobdeck/jobdeck/internal/cluster"
	"github.com/jobdeck/jobdeck/internal/config"
	"github.com/jobdeck/jobdeck/internal/engine"
	"github.com/jobdeck/jobdeck/internal/logging"
	"github.com/jobdeck/jobdeck/internal/prefs"
	"github.com/jobdeck/jobdeck/internal/store"
	"github.com/jobdeck/jobdeck/internal/ui"
)

// Options configure the jobdeck application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/jobdeck/prefs.toml
	PollEvery  int    // seconds; zero uses config/prefs value
}

// Run boots the jobdeck TUI until the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if len(cfg.Hosts) == 0 {
		return fmt.Errorf("no hosts configured; add hosts = [...] to the config")
	}

	userPrefs, _ := prefs.Load(opts.PrefsPath)

	log, logCloser, err := logging.Open(cfg.LogPath())
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer func() { _ = logCloser.Close() }()

	client, err := cluster.NewClient(cfg.APIBind)
	if err != nil {
		return fmt.Errorf("init cluster client: %w", err)
	}

	activePoll := cfg.ActivePoll
	if opts.PollEvery > 0 {
		activePoll = time.Duration(opts.PollEvery) * time.Second
	} else if userPrefs.RefreshSeconds > 0 {
		activePoll = time.Duration(userPrefs.RefreshSeconds) * time.Second
	}

	jobs := store.NewJobs()
	hostStates := store.NewHosts(cfg.Hosts)

	engineOpts := engine.Options{
		Config: engine.Config{
			Hosts:          cfg.Hosts,
			PushURL:        cfg.PushURL,
			LivenessWindow: cfg.LivenessWindow,
			ActivePoll:     activePoll,
			BackgroundPoll: cfg.BackgroundPoll,
		},
		Fetcher: client,
		Jobs:    jobs,
		Hosts:   hostStates,
		Logger:  logging.Component(log, "engine"),
	}

	// The cache is best-effort: a broken cache file costs the optimistic
	// first paint, nothing else.
	lastGood, cacheErr := cache.Open(cfg.CachePath())
	if cacheErr != nil {
		log.Warn().Err(cacheErr).Msg("last-good cache unavailable")
	} else {
		defer func() { _ = lastGood.Close() }()
		engineOpts.Persist = func(u engine.Update) error {
			return lastGood.SaveHost(u.Hostname, u.Jobs, u.Received)
		}
		engineOpts.Forget = lastGood.DeleteHost
	}

	orch := engine.New(engineOpts)
	defer orch.Destroy()

	if cacheErr == nil {
		seedFromCache(orch, lastGood, cfg.Hosts)
	}

	if !userPrefs.AutoRefresh {
		orch.SetPaused(true)
	}
	orch.Connect()

	log.Info().
		Strs("hosts", cfg.Hosts).
		Bool("push", cfg.PushURL != "").
		Dur("active_poll", activePoll).
		Msg("jobdeck starting")

	return ui.Run(ctx, ui.Options{
		Engine:    orch,
		ThemeName: userPrefs.Theme,
	})
}

// seedFromCache paints cached last-good job lists for configured hosts
// and drops rows for hosts that left the configuration.
func seedFromCache(orch *engine.Orchestrator, lastGood *cache.Store, hosts []string) {
	entries, err := lastGood.LoadAll()
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !slices.Contains(hosts, entry.Host) {
			_ = lastGood.DeleteHost(entry.Host)
			continue
		}
		orch.Seed(entry.Host, entry.Jobs)
	}
}
