package engine

import (
	"context"
	"iter"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jobdeck/jobdeck/internal/cluster"
	"github.com/jobdeck/jobdeck/internal/store"
)

// Source identifies where the data currently on screen comes from.
type Source string

const (
	SourceWebsocket Source = "websocket"
	SourceAPI       Source = "api"
	SourceCache     Source = "cache"
	SourceNone      Source = "none"
)

// ConnectionStatus is the connectivity summary exposed to the view layer.
// Healthy is derived from push-channel liveness, never set directly.
type ConnectionStatus struct {
	Source    Source
	Connected bool
	Healthy   bool
	Attempts  int
}

// ManagerState is the engine-wide state exposed to the view layer.
type ManagerState struct {
	Paused         bool
	TabActive      bool
	LastActivity   time.Time
	PendingUpdates int
	Processing     bool
}

// Config holds the orchestrator's tunables. Zero values take defaults.
type Config struct {
	Hosts          []string
	PushURL        string
	LivenessWindow time.Duration
	ActivePoll     time.Duration
	BackgroundPoll time.Duration
	FetchTimeout   time.Duration
	CoalesceWindow time.Duration
}

const (
	defaultActivePoll     = 30 * time.Second
	defaultBackgroundPoll = 2 * time.Minute
	defaultFetchTimeout   = 10 * time.Second
)

// Options wires an Orchestrator to its collaborators. Persist and Forget
// are optional hooks into the last-good cache; they run on the drain path
// and their errors are isolated per update.
type Options struct {
	Config  Config
	Fetcher cluster.JobFetcher
	Jobs    *store.Jobs
	Hosts   *store.Hosts
	Persist func(Update) error
	Forget  func(host string) error
	Logger  zerolog.Logger
}

// Orchestrator is the engine's top-level coordinator. It picks the
// transport (push-only, push with polling backstop, poll-only, paused),
// fans fetched and pushed payloads into the batcher, enforces the
// one-fetch-per-host rule, and exposes the read surface the view layer
// consumes. All job data reaches the store only through the batcher's
// drain path.
type Orchestrator struct {
	cfg     Config
	fetcher cluster.JobFetcher
	jobs    *store.Jobs
	hosts   *store.Hosts
	batcher *Batcher
	sup     *Supervisor
	persist func(Update) error
	forget  func(host string) error
	log     zerolog.Logger

	// epoch invalidates in-flight fetches: a result captured under an
	// older epoch is discarded instead of applied.
	epoch atomic.Int64

	mu           sync.Mutex
	started      bool
	destroyed    bool
	paused       bool
	tabActive    bool
	seeded       bool
	liveSynced   bool
	lastActivity time.Time
	lastConn     ConnEvent
	pollTimer    *time.Timer
}

// New builds an Orchestrator. When Config.PushURL is empty the engine
// runs poll-only and the connection status never reports a websocket
// source.
func New(opts Options) *Orchestrator {
	cfg := opts.Config
	if cfg.ActivePoll <= 0 {
		cfg.ActivePoll = defaultActivePoll
	}
	if cfg.BackgroundPoll <= 0 {
		cfg.BackgroundPoll = defaultBackgroundPoll
	}
	if cfg.BackgroundPoll < cfg.ActivePoll {
		cfg.BackgroundPoll = cfg.ActivePoll
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}

	o := &Orchestrator{
		cfg:       cfg,
		fetcher:   opts.Fetcher,
		jobs:      opts.Jobs,
		hosts:     opts.Hosts,
		persist:   opts.Persist,
		forget:    opts.Forget,
		log:       opts.Logger,
		tabActive: true,
	}
	o.batcher = NewBatcher(cfg.CoalesceWindow, opts.Logger)
	o.batcher.OnApply(o.applyUpdate)

	if cfg.PushURL != "" {
		o.sup = NewSupervisor(SupervisorConfig{
			URL:            cfg.PushURL,
			LivenessWindow: cfg.LivenessWindow,
			OnEvent:        o.handleConnEvent,
			OnJobs:         o.handlePush,
			Logger:         opts.Logger,
		})
	}
	return o
}

// Seed loads a cached last-good job list for optimistic first paint. It
// routes through the batcher like live data but records no sync time and
// never writes back to the cache. Call before Connect.
func (o *Orchestrator) Seed(host string, jobs []cluster.Job) {
	o.batcher.Enqueue(Update{
		Hostname: host,
		Jobs:     jobs,
		Origin:   OriginSeed,
		Received: time.Now(),
	})
	o.batcher.Drain()
}

// Connect starts the engine: the push channel begins dialing and an
// initial full poll seeds the store, since push delivers incremental
// truth only after the connection settles. Idempotent.
func (o *Orchestrator) Connect() {
	o.mu.Lock()
	// A paused engine stays unstarted; SetPaused(false) completes the
	// startup instead.
	if o.destroyed || o.started || o.paused {
		o.mu.Unlock()
		return
	}
	o.started = true
	o.mu.Unlock()

	if o.sup != nil {
		o.sup.Connect()
	}
	go o.SyncAllHosts()
	o.reschedulePoll()
}

// SyncAllHosts fetches the authoritative job list for every configured
// host, one independent fetch per host. A host whose previous fetch is
// still in flight is skipped, not queued twice. Successful payloads go
// through the batcher; failures are recorded per host and never block
// sibling hosts.
func (o *Orchestrator) SyncAllHosts() {
	o.mu.Lock()
	if o.destroyed {
		o.mu.Unlock()
		return
	}
	hosts := slices.Clone(o.cfg.Hosts)
	o.mu.Unlock()

	epoch := o.epoch.Load()
	cycle := uuid.NewString()
	for _, host := range hosts {
		if err := o.hosts.BeginFetch(host); err != nil {
			// Already loading: the in-flight fetch owns this host.
			continue
		}
		go o.fetchHost(epoch, cycle, host)
	}
}

// Refresh forces a full sync regardless of the current transport mode.
func (o *Orchestrator) Refresh() {
	o.SyncAllHosts()
}

func (o *Orchestrator) fetchHost(epoch int64, cycle, host string) {
	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.FetchTimeout)
	defer cancel()

	start := time.Now()
	resp, err := o.fetcher.FetchJobs(ctx, host)

	if o.epoch.Load() != epoch {
		// Paused or destroyed while in flight: discard the result.
		o.hosts.AbortFetch(host)
		return
	}
	if err != nil {
		o.hosts.CompleteFetch(host, err)
		o.log.Warn().
			Err(err).
			Str("host", host).
			Str("cycle", cycle).
			Bool("timeout", cluster.IsTimeout(err)).
			Msg("host fetch failed")
		return
	}
	o.hosts.CompleteFetch(host, nil)
	o.log.Debug().
		Str("host", host).
		Str("cycle", cycle).
		Int("jobs", len(resp.Jobs)).
		Dur("took", time.Since(start)).
		Msg("host fetch ok")
	o.batcher.Enqueue(Update{
		Hostname: host,
		Jobs:     resp.Jobs,
		Origin:   OriginPoll,
		Received: time.Now(),
	})
}

// handlePush receives one host's payload from the push channel.
func (o *Orchestrator) handlePush(resp cluster.JobsResponse) {
	o.mu.Lock()
	dead := o.destroyed || o.paused
	o.mu.Unlock()
	if dead || resp.Hostname == "" {
		return
	}
	o.batcher.Enqueue(Update{
		Hostname: resp.Hostname,
		Jobs:     resp.Jobs,
		Origin:   OriginPush,
		Received: time.Now(),
	})
}

// applyUpdate is the single writer into the job store. Registered as the
// batcher's applier; runs only on the drain path.
func (o *Orchestrator) applyUpdate(u Update) error {
	o.jobs.ReplaceHost(u.Hostname, u.Jobs)

	o.mu.Lock()
	o.lastActivity = u.Received
	if u.Origin == OriginSeed {
		o.seeded = true
	} else {
		o.liveSynced = true
	}
	o.mu.Unlock()

	if u.Origin == OriginSeed {
		return nil
	}
	o.hosts.MarkSynced(u.Hostname)
	if o.persist != nil {
		return o.persist(u)
	}
	return nil
}

// handleConnEvent reacts to every supervisor transition: it re-evaluates
// the transport policy and, when push recovers from a degraded state,
// refreshes immediately to catch deltas missed while degraded.
func (o *Orchestrator) handleConnEvent(ev ConnEvent) {
	o.mu.Lock()
	prev := o.lastConn.State
	o.lastConn = ev
	destroyed := o.destroyed
	o.mu.Unlock()
	if destroyed {
		return
	}

	o.log.Debug().
		Stringer("state", ev.State).
		Bool("connected", ev.Connected).
		Int("attempts", ev.Attempts).
		Msg("push channel transition")

	o.reschedulePoll()
	recovered := ev.State == StateConnectedHealthy &&
		(prev == StateBackingOff || prev == StateConnectedUnhealthy)
	if recovered {
		o.Refresh()
	}
}

// SetPaused suspends or resumes all network activity. Pausing tears the
// push channel down, cancels the polling timer synchronously, and
// invalidates in-flight fetches; resuming fires an immediate refresh and
// restores normal scheduling.
func (o *Orchestrator) SetPaused(paused bool) {
	o.mu.Lock()
	if o.destroyed || o.paused == paused {
		o.mu.Unlock()
		return
	}
	o.paused = paused
	started := o.started
	o.mu.Unlock()

	if paused {
		o.epoch.Add(1)
		if o.sup != nil {
			o.sup.Pause()
		}
		o.stopPollTimer()
		o.log.Info().Msg("sync paused")
		return
	}

	o.log.Info().Msg("sync resumed")
	if !started {
		o.Connect()
		return
	}
	if o.sup != nil {
		o.sup.Resume()
	}
	o.Refresh()
	o.reschedulePoll()
}

// SetTabActive records terminal focus. Regaining focus after a
// backgrounded stretch refreshes immediately (the data may be stale) and
// tightens the polling cadence; losing focus widens it without touching
// the push channel.
func (o *Orchestrator) SetTabActive(active bool) {
	o.mu.Lock()
	if o.destroyed || o.tabActive == active {
		o.mu.Unlock()
		return
	}
	wasActive := o.tabActive
	o.tabActive = active
	paused := o.paused
	started := o.started
	o.mu.Unlock()

	if paused || !started {
		return
	}
	if active && !wasActive {
		o.Refresh()
	}
	o.reschedulePoll()
}

// RemoveHost drops a host that left the configuration: its job subset,
// sync state, and cache row all go.
func (o *Orchestrator) RemoveHost(host string) {
	o.mu.Lock()
	o.cfg.Hosts = slices.DeleteFunc(slices.Clone(o.cfg.Hosts), func(h string) bool { return h == host })
	o.mu.Unlock()

	o.jobs.RemoveHost(host)
	o.hosts.Remove(host)
	if o.forget != nil {
		if err := o.forget(host); err != nil {
			o.log.Warn().Err(err).Str("host", host).Msg("drop cached host failed")
		}
	}
}

// Destroy tears the engine down: all timers cancelled synchronously, the
// push channel closed, the pending queue discarded, and any in-flight
// fetch result discarded on arrival. No side effects occur afterwards.
func (o *Orchestrator) Destroy() {
	o.mu.Lock()
	if o.destroyed {
		o.mu.Unlock()
		return
	}
	o.destroyed = true
	if o.pollTimer != nil {
		o.pollTimer.Stop()
		o.pollTimer = nil
	}
	o.mu.Unlock()

	o.epoch.Add(1)
	if o.sup != nil {
		o.sup.Close()
	}
	o.batcher.Close()
	o.log.Info().Msg("sync engine destroyed")
}

// reschedulePoll applies the transport policy: no polling while push is
// healthy or the engine is paused; otherwise a backstop timer armed at
// the active or background interval depending on focus.
func (o *Orchestrator) reschedulePoll() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.pollTimer != nil {
		o.pollTimer.Stop()
		o.pollTimer = nil
	}
	if o.destroyed || o.paused || !o.started {
		return
	}
	if o.sup != nil && o.lastConn.State == StateConnectedHealthy {
		return
	}
	interval := o.cfg.ActivePoll
	if !o.tabActive {
		interval = o.cfg.BackgroundPoll
	}
	o.pollTimer = time.AfterFunc(interval, o.pollTick)
}

func (o *Orchestrator) pollTick() {
	o.mu.Lock()
	dead := o.paused || o.destroyed
	o.mu.Unlock()
	// The timer can fire in the instant before a pause stops it; the
	// tick must not sync after the pause has completed.
	if dead {
		return
	}
	o.SyncAllHosts()
	o.reschedulePoll()
}

func (o *Orchestrator) stopPollTimer() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pollTimer != nil {
		o.pollTimer.Stop()
		o.pollTimer = nil
	}
}

// ConnectionStatus reports the current transport and its health.
func (o *Orchestrator) ConnectionStatus() ConnectionStatus {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch {
	case o.destroyed:
		return ConnectionStatus{Source: SourceNone}
	case o.paused:
		return ConnectionStatus{Source: SourceCache, Attempts: o.lastConn.Attempts}
	case !o.started:
		if o.seeded {
			return ConnectionStatus{Source: SourceCache}
		}
		return ConnectionStatus{Source: SourceNone}
	}

	if o.sup != nil {
		switch o.lastConn.State {
		case StateConnectedHealthy:
			return ConnectionStatus{Source: SourceWebsocket, Connected: true, Healthy: true}
		case StateConnectedUnhealthy:
			// Still attempting push; polling backstop is armed.
			return ConnectionStatus{Source: SourceWebsocket, Connected: true, Attempts: o.lastConn.Attempts}
		}
	}
	if o.liveSynced || o.fetching() {
		return ConnectionStatus{Source: SourceAPI, Attempts: o.lastConn.Attempts}
	}
	if o.seeded {
		return ConnectionStatus{Source: SourceCache, Attempts: o.lastConn.Attempts}
	}
	return ConnectionStatus{Source: SourceNone, Attempts: o.lastConn.Attempts}
}

// fetching reports whether any host fetch is in flight. Caller holds o.mu.
func (o *Orchestrator) fetching() bool {
	for _, st := range o.hosts.States() {
		if st.Loading {
			return true
		}
	}
	return false
}

// ManagerState reports engine-wide state for the view layer.
func (o *Orchestrator) ManagerState() ManagerState {
	bs := o.batcher.Status()
	o.mu.Lock()
	defer o.mu.Unlock()
	return ManagerState{
		Paused:         o.paused,
		TabActive:      o.tabActive,
		LastActivity:   o.lastActivity,
		PendingUpdates: bs.QueueLen,
		Processing:     bs.Draining,
	}
}

// Jobs returns a fresh, restartable view over every known job.
func (o *Orchestrator) Jobs() iter.Seq[cluster.Job] {
	return o.jobs.AllJobs()
}

// HostStates returns per-host sync bookkeeping keyed by host name.
func (o *Orchestrator) HostStates() map[string]store.HostState {
	return o.hosts.States()
}
