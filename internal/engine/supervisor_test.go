package engine

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobdeck/jobdeck/internal/cluster"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// eventRecorder collects supervisor transitions so tests can wait for a
// specific state without racing the goroutines that produce it.
type eventRecorder struct {
	ch chan ConnEvent
}

func newEventRecorder() *eventRecorder {
	return &eventRecorder{ch: make(chan ConnEvent, 64)}
}

func (r *eventRecorder) record(ev ConnEvent) {
	r.ch <- ev
}

func (r *eventRecorder) waitFor(t *testing.T, state ConnState) ConnEvent {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-r.ch:
			if ev.State == state {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %v", state)
		}
	}
}

func (r *eventRecorder) expectQuiet(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case ev := <-r.ch:
		t.Fatalf("unexpected transition to %v", ev.State)
	case <-time.After(d):
	}
}

// pushServer serves the push endpoint. The handler deliberately never
// reads from the socket, so client pings go unanswered and liveness
// depends entirely on frames the test chooses to send.
func pushServer(t *testing.T, handler func(*websocket.Conn)) (*httptest.Server, string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		handler(conn)
	}))
	t.Cleanup(srv.Close)
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSupervisorHeartbeatPromotesHealthy(t *testing.T) {
	_, url := pushServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteJSON(PushMessage{Type: "heartbeat"})
		select {} // hold the socket open
	})

	rec := newEventRecorder()
	sup := NewSupervisor(SupervisorConfig{
		URL:     url,
		OnEvent: rec.record,
		Logger:  zerolog.Nop(),
	})
	defer sup.Close()

	sup.Connect()

	ev := rec.waitFor(t, StateConnecting)
	assert.False(t, ev.Connected)

	ev = rec.waitFor(t, StateConnectedHealthy)
	assert.True(t, ev.Connected)
	assert.Zero(t, ev.Attempts)
}

func TestSupervisorStaleChannelUnhealthyWhileConnected(t *testing.T) {
	frames := make(chan PushMessage)
	_, url := pushServer(t, func(conn *websocket.Conn) {
		for msg := range frames {
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	})

	rec := newEventRecorder()
	sup := NewSupervisor(SupervisorConfig{
		URL:            url,
		LivenessWindow: 150 * time.Millisecond,
		OnEvent:        rec.record,
		Logger:         zerolog.Nop(),
	})
	defer sup.Close()

	sup.Connect()
	frames <- PushMessage{Type: "heartbeat"}
	rec.waitFor(t, StateConnectedHealthy)

	// Silence past the liveness window: the channel degrades but the
	// socket itself stays up.
	ev := rec.waitFor(t, StateConnectedUnhealthy)
	assert.True(t, ev.Connected)

	// A late frame recovers health on the same socket.
	frames <- PushMessage{Type: "heartbeat"}
	ev = rec.waitFor(t, StateConnectedHealthy)
	assert.True(t, ev.Connected)
	assert.Zero(t, ev.Attempts)
}

func TestSupervisorDeliversJobUpdates(t *testing.T) {
	_, url := pushServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteJSON(PushMessage{
			Type: "jobs",
			Updates: []cluster.JobsResponse{
				{
					Hostname: "cascade",
					Jobs: []cluster.Job{
						{ID: "9001", State: "R"},
						{ID: "9002", State: "PD"},
					},
				},
			},
		})
		select {}
	})

	got := make(chan cluster.JobsResponse, 4)
	sup := NewSupervisor(SupervisorConfig{
		URL:    url,
		OnJobs: func(upd cluster.JobsResponse) { got <- upd },
		Logger: zerolog.Nop(),
	})
	defer sup.Close()

	sup.Connect()

	select {
	case upd := <-got:
		require.Len(t, upd.Jobs, 2)
		assert.Equal(t, "cascade", upd.Jobs[0].Hostname)
		assert.Equal(t, cluster.StateRunning, upd.Jobs[0].State)
		assert.Equal(t, cluster.StatePending, upd.Jobs[1].State)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for job update")
	}
}

func TestSupervisorReconnectsAfterDrop(t *testing.T) {
	var dials atomic.Int32
	_, url := pushServer(t, func(conn *websocket.Conn) {
		n := dials.Add(1)
		_ = conn.WriteJSON(PushMessage{Type: "heartbeat"})
		if n == 1 {
			_ = conn.Close() // first connection drops right away
			return
		}
		select {}
	})

	rec := newEventRecorder()
	sup := NewSupervisor(SupervisorConfig{
		URL:     url,
		OnEvent: rec.record,
		Logger:  zerolog.Nop(),
	})
	defer sup.Close()

	sup.Connect()
	rec.waitFor(t, StateConnectedHealthy)

	ev := rec.waitFor(t, StateBackingOff)
	assert.False(t, ev.Connected)
	assert.Equal(t, 1, ev.Attempts)

	rec.waitFor(t, StateConnecting)
	ev = rec.waitFor(t, StateConnectedHealthy)
	assert.True(t, ev.Connected)
	assert.Zero(t, ev.Attempts, "attempt count resets once healthy")
	assert.Equal(t, int32(2), dials.Load())
}

func TestSupervisorDialFailureBacksOff(t *testing.T) {
	srv, url := pushServer(t, func(conn *websocket.Conn) {})
	srv.Close() // nothing listening

	rec := newEventRecorder()
	sup := NewSupervisor(SupervisorConfig{
		URL:     url,
		OnEvent: rec.record,
		Logger:  zerolog.Nop(),
	})
	defer sup.Close()

	sup.Connect()
	rec.waitFor(t, StateConnecting)

	ev := rec.waitFor(t, StateBackingOff)
	assert.False(t, ev.Connected)
	assert.Equal(t, 1, ev.Attempts)
	assert.Error(t, ev.Err)
}

func TestSupervisorPauseStopsRetryResumeReconnects(t *testing.T) {
	_, url := pushServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteJSON(PushMessage{Type: "heartbeat"})
		select {}
	})

	rec := newEventRecorder()
	sup := NewSupervisor(SupervisorConfig{
		URL:     url,
		OnEvent: rec.record,
		Logger:  zerolog.Nop(),
	})
	defer sup.Close()

	sup.Connect()
	rec.waitFor(t, StateConnectedHealthy)

	sup.Pause()
	ev := rec.waitFor(t, StateDisconnected)
	assert.False(t, ev.Connected)

	// A paused supervisor never dials on its own, even well past the
	// first backoff interval.
	rec.expectQuiet(t, 800*time.Millisecond)

	sup.Resume()
	rec.waitFor(t, StateConnecting)
	ev = rec.waitFor(t, StateConnectedHealthy)
	assert.True(t, ev.Connected)
}

func TestSupervisorConnectIsIdempotentWhileActive(t *testing.T) {
	_, url := pushServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteJSON(PushMessage{Type: "heartbeat"})
		select {}
	})

	rec := newEventRecorder()
	sup := NewSupervisor(SupervisorConfig{
		URL:     url,
		OnEvent: rec.record,
		Logger:  zerolog.Nop(),
	})
	defer sup.Close()

	sup.Connect()
	rec.waitFor(t, StateConnectedHealthy)

	sup.Connect()
	rec.expectQuiet(t, 200*time.Millisecond)

	st := sup.Status()
	assert.Equal(t, StateConnectedHealthy, st.State)
	assert.True(t, st.Connected)
}
