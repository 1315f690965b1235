package cluster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// FetchError is the typed failure returned by Client. Timeout
// distinguishes deadline expiry from other network or HTTP failures so
// callers can record the two kinds separately.
type FetchError struct {
	Host    string
	Timeout bool
	Err     error
}

func (e *FetchError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("fetch %s: timed out: %v", e.Host, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Host, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsTimeout reports whether err is a fetch failure caused by a timeout.
func IsTimeout(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Timeout
}

// JobFetcher is the surface the sync engine consumes. Implemented by
// *Client; tests substitute fakes.
type JobFetcher interface {
	FetchJobs(ctx context.Context, host string) (*JobsResponse, error)
}

// Ensure Client implements JobFetcher at compile time.
var _ JobFetcher = (*Client)(nil)

// Client talks to the jobdeck aggregator's HTTP API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
}

const (
	defaultAPIBind   = "127.0.0.1:8642"
	defaultUserAgent = "jobdeck/0.1"
	requestTimeout   = 10 * time.Second
)

// NewClient builds a Client using the provided apiBind host:port value.
func NewClient(apiBind string) (*Client, error) {
	base, err := parseBaseURL(apiBind)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: requestTimeout,
		},
		userAgent: defaultUserAgent,
	}, nil
}

// FetchJobs retrieves the authoritative job list for one host. Failures
// come back as *FetchError with the timeout kind already classified.
func (c *Client) FetchJobs(ctx context.Context, host string) (*JobsResponse, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	values := url.Values{}
	values.Set("host", host)
	rel := &url.URL{Path: "/api/v1/jobs", RawQuery: values.Encode()}

	var payload JobsResponse
	if err := c.doURL(ctx, http.MethodGet, rel, &payload); err != nil {
		return nil, &FetchError{Host: host, Timeout: isTimeout(err), Err: err}
	}
	if payload.Hostname == "" {
		payload.Hostname = host
	}
	for i := range payload.Jobs {
		payload.Jobs[i].Hostname = payload.Hostname
		payload.Jobs[i].State = ParseState(string(payload.Jobs[i].State))
	}
	return &payload, nil
}

func (c *Client) doURL(ctx context.Context, method string, rel *url.URL, dest any) error {
	reqURL := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("api %s returned status %d", rel.String(), resp.StatusCode)
	}
	if dest == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return os.IsTimeout(err)
}

func parseBaseURL(apiBind string) (*url.URL, error) {
	trimmed := strings.TrimSpace(apiBind)
	if trimmed == "" {
		trimmed = defaultAPIBind
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api_bind %q: %w", apiBind, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
