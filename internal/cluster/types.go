package cluster

import "time"

// JobState enumerates the scheduler states jobdeck understands.
type JobState string

const (
	StatePending    JobState = "PENDING"
	StateRunning    JobState = "RUNNING"
	StateCompleting JobState = "COMPLETING"
	StateCompleted  JobState = "COMPLETED"
	StateFailed     JobState = "FAILED"
	StateCancelled  JobState = "CANCELLED"
	StateTimeout    JobState = "TIMEOUT"
	StateUnknown    JobState = "UNKNOWN"
)

// stateCodes maps the scheduler's short wire codes to canonical states.
var stateCodes = map[string]JobState{
	"PD": StatePending,
	"R":  StateRunning,
	"CG": StateCompleting,
	"CD": StateCompleted,
	"F":  StateFailed,
	"CA": StateCancelled,
	"TO": StateTimeout,
}

// ParseState normalizes a state string from the API. Both the short codes
// ("PD", "R") and the long forms ("PENDING", "RUNNING") are accepted.
func ParseState(raw string) JobState {
	if s, ok := stateCodes[raw]; ok {
		return s
	}
	switch JobState(raw) {
	case StatePending, StateRunning, StateCompleting, StateCompleted,
		StateFailed, StateCancelled, StateTimeout:
		return JobState(raw)
	}
	return StateUnknown
}

// Terminal reports whether a job in this state will not change again.
func (s JobState) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled, StateTimeout:
		return true
	}
	return false
}

// Job describes a single batch job as reported by a cluster. Identity is
// the (Hostname, ID) pair; two clusters may reuse the same job ID.
type Job struct {
	ID         string    `json:"job_id"`
	Hostname   string    `json:"hostname"`
	Name       string    `json:"name"`
	State      JobState  `json:"state"`
	SubmitTime time.Time `json:"submit_time"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	CPUs       int       `json:"cpus"`
	Memory     string    `json:"memory"`
	Nodes      int       `json:"nodes"`
	Reason     string    `json:"reason"`
}

// JobsResponse mirrors the job-status endpoint payload. The same shape is
// delivered over the push channel, scoped to one host per message.
type JobsResponse struct {
	Hostname  string    `json:"hostname"`
	Jobs      []Job     `json:"jobs"`
	Timestamp time.Time `json:"timestamp"`
	QueryTime float64   `json:"query_time"`
}
