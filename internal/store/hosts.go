package store

import (
	"errors"
	"sync"
	"time"

	"github.com/jobdeck/jobdeck/internal/cluster"
)

// ErrFetchInFlight is returned by BeginFetch while a fetch for the same
// host is still outstanding. Callers skip the host; they never queue.
var ErrFetchInFlight = errors.New("fetch already in flight for host")

// SyncStatus classifies a host's most recent sync outcome.
type SyncStatus string

const (
	StatusIdle    SyncStatus = "idle"
	StatusLoading SyncStatus = "loading"
	StatusOK      SyncStatus = "ok"
	StatusError   SyncStatus = "error"
)

// HostState is the per-host sync bookkeeping exposed to the view layer.
// Loading=true always implies Status=loading.
type HostState struct {
	Loading    bool
	LastError  string
	IsTimeout  bool
	LastSyncAt time.Time
	Status     SyncStatus
}

// Hosts tracks sync state for every configured host and enforces the
// at-most-one-fetch-in-flight-per-host invariant. Retry policy does not
// live here; the orchestrator decides when to try again.
type Hosts struct {
	mu     sync.Mutex
	states map[string]*HostState
	now    func() time.Time
}

// NewHosts returns a tracker with every host in the idle state.
func NewHosts(hosts []string) *Hosts {
	h := &Hosts{
		states: make(map[string]*HostState, len(hosts)),
		now:    time.Now,
	}
	for _, name := range hosts {
		h.states[name] = &HostState{Status: StatusIdle}
	}
	return h
}

// BeginFetch marks a fetch as started for host. It fails with
// ErrFetchInFlight when one is already outstanding; the previous error is
// cleared otherwise. Unknown hosts are registered on first use.
func (h *Hosts) BeginFetch(host string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	st := h.state(host)
	if st.Loading {
		return ErrFetchInFlight
	}
	st.Loading = true
	st.Status = StatusLoading
	st.LastError = ""
	st.IsTimeout = false
	return nil
}

// CompleteFetch records the outcome of a fetch started with BeginFetch.
// A nil err marks the host ok and stamps LastSyncAt; otherwise the error
// text is kept and IsTimeout is set only for timeout-kind failures.
func (h *Hosts) CompleteFetch(host string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	st := h.state(host)
	st.Loading = false
	if err == nil {
		st.Status = StatusOK
		st.LastError = ""
		st.IsTimeout = false
		st.LastSyncAt = h.now()
		return
	}
	st.Status = StatusError
	st.LastError = err.Error()
	st.IsTimeout = cluster.IsTimeout(err)
}

// AbortFetch clears the loading flag without recording an outcome. Used
// when a fetch resolves after the engine was paused or destroyed and its
// result must be discarded rather than applied.
func (h *Hosts) AbortFetch(host string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	st, ok := h.states[host]
	if !ok {
		return
	}
	st.Loading = false
	if st.Status == StatusLoading {
		st.Status = StatusIdle
	}
}

// MarkSynced stamps a successful sync that arrived outside the fetch path
// (a push delta). It never touches the Loading flag.
func (h *Hosts) MarkSynced(host string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	st := h.state(host)
	st.LastSyncAt = h.now()
	if !st.Loading {
		st.Status = StatusOK
		st.LastError = ""
		st.IsTimeout = false
	}
}

// Remove forgets a host that left the configuration.
func (h *Hosts) Remove(host string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.states, host)
}

// State returns a copy of one host's bookkeeping.
func (h *Hosts) State(host string) (HostState, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	st, ok := h.states[host]
	if !ok {
		return HostState{}, false
	}
	return *st, true
}

// States returns a copy of every host's bookkeeping keyed by host name.
func (h *Hosts) States() map[string]HostState {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]HostState, len(h.states))
	for name, st := range h.states {
		out[name] = *st
	}
	return out
}

func (h *Hosts) state(host string) *HostState {
	st, ok := h.states[host]
	if !ok {
		st = &HostState{Status: StatusIdle}
		h.states[host] = st
	}
	return st
}
