package engine

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/jobdeck/jobdeck/internal/cluster"
)

// ConnState is the supervisor's position in the push-channel lifecycle.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnectedHealthy
	StateConnectedUnhealthy
	StateBackingOff
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnectedHealthy:
		return "connected-healthy"
	case StateConnectedUnhealthy:
		return "connected-unhealthy"
	case StateBackingOff:
		return "backing-off"
	}
	return "unknown"
}

// ConnEvent is emitted on every state transition. Connected tracks the
// socket itself: a stale connection is unhealthy yet still connected.
type ConnEvent struct {
	State     ConnState
	Connected bool
	Attempts  int
	Err       error
}

// PushMessage is the envelope delivered over the push channel. Heartbeats
// carry no updates; job messages carry the same payload shape as the HTTP
// endpoint, scoped to one or all hosts.
type PushMessage struct {
	Type    string                 `json:"type"` // "heartbeat" or "jobs"
	Updates []cluster.JobsResponse `json:"updates,omitempty"`
}

// SupervisorConfig wires a Supervisor to its collaborators.
type SupervisorConfig struct {
	URL            string
	LivenessWindow time.Duration
	OnEvent        func(ConnEvent)
	OnJobs         func(cluster.JobsResponse)
	Logger         zerolog.Logger
}

const (
	defaultLivenessWindow = 15 * time.Second
	dialTimeout           = 10 * time.Second
	pingWriteWait         = 5 * time.Second
)

// Supervisor owns the push-channel lifecycle: dialing, liveness
// detection, reconnect with capped backoff, and pause/resume. It reports
// every transition through OnEvent and hands job payloads to OnJobs; it
// never touches job data itself. Errors drive transitions and are never
// returned to callers.
type Supervisor struct {
	url            string
	livenessWindow time.Duration
	onEvent        func(ConnEvent)
	onJobs         func(cluster.JobsResponse)
	log            zerolog.Logger
	limiter        *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      ConnState
	conn       *websocket.Conn
	attempts   int
	lastSeen   time.Time
	paused     bool
	closed     bool
	gen        int
	retryTimer *time.Timer
}

// NewSupervisor returns a disconnected Supervisor. Connect starts it.
func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	if cfg.LivenessWindow <= 0 {
		cfg.LivenessWindow = defaultLivenessWindow
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		url:            cfg.URL,
		livenessWindow: cfg.LivenessWindow,
		onEvent:        cfg.OnEvent,
		onJobs:         cfg.OnJobs,
		log:            cfg.Logger,
		limiter:        rate.NewLimiter(rate.Every(10*time.Millisecond), 100),
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Connect begins dialing unless already connected, paused, or closed.
func (s *Supervisor) Connect() {
	s.mu.Lock()
	if s.closed || s.paused || s.state == StateConnecting ||
		s.state == StateConnectedHealthy || s.state == StateConnectedUnhealthy {
		s.mu.Unlock()
		return
	}
	s.gen++
	gen := s.gen
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
	s.state = StateConnecting
	ev := s.eventLocked(nil)
	s.mu.Unlock()

	s.emit(ev)
	go s.dialAndRun(gen)
}

// Pause forces a deliberate disconnect that is not auto-retried.
func (s *Supervisor) Pause() {
	s.mu.Lock()
	if s.closed || s.paused {
		s.mu.Unlock()
		return
	}
	s.paused = true
	ev := s.teardownLocked()
	s.mu.Unlock()
	s.emit(ev)
}

// Resume re-enters the connecting state after a Pause.
func (s *Supervisor) Resume() {
	s.mu.Lock()
	if s.closed || !s.paused {
		s.mu.Unlock()
		return
	}
	s.paused = false
	s.mu.Unlock()
	s.Connect()
}

// Close tears the supervisor down permanently.
func (s *Supervisor) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	ev := s.teardownLocked()
	s.mu.Unlock()
	s.cancel()
	s.emit(ev)
}

// Status reports the current state, socket presence, and attempt count.
func (s *Supervisor) Status() ConnEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eventLocked(nil)
}

// teardownLocked stops retries, closes the socket, and moves to
// disconnected. Caller holds s.mu and emits the returned event.
func (s *Supervisor) teardownLocked() ConnEvent {
	s.gen++
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.state = StateDisconnected
	return s.eventLocked(nil)
}

func (s *Supervisor) dialAndRun(gen int) {
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, resp, err := dialer.DialContext(s.ctx, s.url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		s.connFailed(gen, nil, err)
		return
	}

	s.mu.Lock()
	if s.closed || s.paused || gen != s.gen {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.conn = conn
	s.lastSeen = time.Now()
	s.mu.Unlock()

	conn.SetPongHandler(func(string) error {
		s.touch(gen)
		return nil
	})

	go s.pingLoop(gen, conn)
	go s.staleLoop(gen)
	s.readLoop(gen, conn)
}

func (s *Supervisor) readLoop(gen int, conn *websocket.Conn) {
	for {
		if err := s.limiter.Wait(s.ctx); err != nil {
			return
		}
		var msg PushMessage
		if err := conn.ReadJSON(&msg); err != nil {
			s.connFailed(gen, conn, err)
			return
		}
		// Any inbound frame counts as liveness, heartbeats included.
		s.touch(gen)
		if s.onJobs == nil {
			continue
		}
		for _, upd := range msg.Updates {
			for i := range upd.Jobs {
				upd.Jobs[i].Hostname = upd.Hostname
				upd.Jobs[i].State = cluster.ParseState(string(upd.Jobs[i].State))
			}
			s.onJobs(upd)
		}
	}
}

// pingLoop keeps an idle channel alive; pongs refresh the liveness clock.
func (s *Supervisor) pingLoop(gen int, conn *websocket.Conn) {
	ticker := time.NewTicker(s.livenessWindow / 2)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			stale := gen != s.gen
			s.mu.Unlock()
			if stale {
				return
			}
			deadline := time.Now().Add(pingWriteWait)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

// staleLoop flips a healthy connection to unhealthy when no frame has
// arrived within the liveness window. The socket stays open: staleness is
// a soft failure that arms the polling backstop, not a closure.
func (s *Supervisor) staleLoop(gen int) {
	interval := s.livenessWindow / 2
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			if gen != s.gen || s.closed {
				s.mu.Unlock()
				return
			}
			if s.state == StateConnectedHealthy && time.Since(s.lastSeen) > s.livenessWindow {
				s.state = StateConnectedUnhealthy
				ev := s.eventLocked(nil)
				s.mu.Unlock()
				s.log.Warn().
					Dur("liveness_window", s.livenessWindow).
					Msg("push channel stale, marking unhealthy")
				s.emit(ev)
				continue
			}
			s.mu.Unlock()
		}
	}
}

// touch records a liveness signal and promotes the connection to healthy.
// The first signal after dialing completes the connecting transition; a
// signal on a stale connection recovers it. Attempts reset on health.
func (s *Supervisor) touch(gen int) {
	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		return
	}
	s.lastSeen = time.Now()
	if s.state == StateConnectedHealthy {
		s.mu.Unlock()
		return
	}
	s.state = StateConnectedHealthy
	s.attempts = 0
	ev := s.eventLocked(nil)
	s.mu.Unlock()
	s.emit(ev)
}

// connFailed handles transport close and error: close the socket, move to
// backing-off, and arm the reconnect timer with the computed delay.
func (s *Supervisor) connFailed(gen int, conn *websocket.Conn, err error) {
	if conn != nil {
		_ = conn.Close()
	}
	s.mu.Lock()
	if gen != s.gen || s.closed || s.paused {
		s.mu.Unlock()
		return
	}
	s.gen++
	next := s.gen
	s.conn = nil
	s.attempts++
	s.state = StateBackingOff
	delay := calculateBackoff(s.attempts)
	s.retryTimer = time.AfterFunc(delay, func() { s.retry(next) })
	ev := s.eventLocked(err)
	s.mu.Unlock()

	s.log.Warn().
		Err(err).
		Int("attempts", ev.Attempts).
		Dur("retry_in", delay).
		Msg("push channel down, backing off")
	s.emit(ev)
}

// retry fires from the backoff timer and re-enters connecting unless the
// supervisor was paused or closed in the meantime.
func (s *Supervisor) retry(gen int) {
	s.mu.Lock()
	if gen != s.gen || s.closed || s.paused || s.state != StateBackingOff {
		s.mu.Unlock()
		return
	}
	s.retryTimer = nil
	s.gen++
	next := s.gen
	s.state = StateConnecting
	ev := s.eventLocked(nil)
	s.mu.Unlock()

	s.emit(ev)
	go s.dialAndRun(next)
}

func (s *Supervisor) eventLocked(err error) ConnEvent {
	return ConnEvent{
		State:     s.state,
		Connected: s.conn != nil,
		Attempts:  s.attempts,
		Err:       err,
	}
}

func (s *Supervisor) emit(ev ConnEvent) {
	if s.onEvent != nil {
		s.onEvent(ev)
	}
}
