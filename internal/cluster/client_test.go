package cluster

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestParseBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		apiBind string
		want    string
	}{
		{"host and port", "127.0.0.1:8642", "http://127.0.0.1:8642"},
		{"empty uses default", "", "http://127.0.0.1:8642"},
		{"whitespace uses default", "   ", "http://127.0.0.1:8642"},
		{"explicit scheme kept", "https://deck.example.com:9000", "https://deck.example.com:9000"},
		{"path stripped", "http://deck.example.com/api/", "http://deck.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseBaseURL(tt.apiBind)
			if err != nil {
				t.Fatalf("parseBaseURL(%q) error: %v", tt.apiBind, err)
			}
			if got.String() != tt.want {
				t.Errorf("parseBaseURL(%q) = %q, want %q", tt.apiBind, got.String(), tt.want)
			}
		})
	}
}

func TestFetchJobs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/jobs" {
			t.Errorf("path = %q, want /api/v1/jobs", r.URL.Path)
		}
		if got := r.URL.Query().Get("host"); got != "cascade" {
			t.Errorf("host query = %q, want cascade", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"hostname": "cascade",
			"jobs": [
				{"job_id": "1001", "name": "train", "state": "R", "cpus": 64},
				{"job_id": "1002", "name": "eval", "state": "PD"},
				{"job_id": "1003", "name": "old", "state": "COMPLETED"}
			],
			"query_time": 0.12
		}`))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	resp, err := client.FetchJobs(context.Background(), "cascade")
	if err != nil {
		t.Fatalf("FetchJobs: %v", err)
	}
	if resp.Hostname != "cascade" {
		t.Errorf("Hostname = %q, want cascade", resp.Hostname)
	}
	if len(resp.Jobs) != 3 {
		t.Fatalf("len(Jobs) = %d, want 3", len(resp.Jobs))
	}

	// Short wire codes normalize and every job gets the host stamped.
	wantStates := []JobState{StateRunning, StatePending, StateCompleted}
	for i, job := range resp.Jobs {
		if job.State != wantStates[i] {
			t.Errorf("Jobs[%d].State = %q, want %q", i, job.State, wantStates[i])
		}
		if job.Hostname != "cascade" {
			t.Errorf("Jobs[%d].Hostname = %q, want cascade", i, job.Hostname)
		}
	}
}

func TestFetchJobsStampsHostWhenResponseOmitsIt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"jobs": [{"job_id": "1", "state": "R"}]}`))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	resp, err := client.FetchJobs(context.Background(), "quiet")
	if err != nil {
		t.Fatalf("FetchJobs: %v", err)
	}
	if resp.Hostname != "quiet" {
		t.Errorf("Hostname = %q, want quiet", resp.Hostname)
	}
	if resp.Jobs[0].Hostname != "quiet" {
		t.Errorf("Jobs[0].Hostname = %q, want quiet", resp.Jobs[0].Hostname)
	}
}

func TestFetchJobsHTTPErrorIsNotTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "scheduler unreachable", http.StatusBadGateway)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = client.FetchJobs(context.Background(), "cascade")
	if err == nil {
		t.Fatal("expected error for 502 response")
	}
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("error type = %T, want *FetchError", err)
	}
	if fe.Host != "cascade" {
		t.Errorf("Host = %q, want cascade", fe.Host)
	}
	if fe.Timeout {
		t.Error("HTTP status failure must not classify as timeout")
	}
	if IsTimeout(err) {
		t.Error("IsTimeout = true, want false")
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("error %q missing status code", err.Error())
	}
}

func TestFetchJobsDeadlineIsTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	client, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = client.FetchJobs(ctx, "cascade")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !IsTimeout(err) {
		t.Errorf("IsTimeout = false for deadline expiry: %v", err)
	}
}

func TestFetchJobsBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"jobs": [`))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := client.FetchJobs(context.Background(), "cascade"); err == nil {
		t.Fatal("expected decode error")
	}
}
