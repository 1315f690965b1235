package store

import (
	"iter"
	"sync"

	"github.com/jobdeck/jobdeck/internal/cluster"
)

// Jobs is the canonical job table across all hosts. A host's job subset
// is replaced wholesale on each successful sync; there is no per-field
// merging, so a job's attributes can never mix two payloads.
type Jobs struct {
	mu    sync.RWMutex
	hosts map[string][]cluster.Job
}

// NewJobs returns an empty job table.
func NewJobs() *Jobs {
	return &Jobs{hosts: make(map[string][]cluster.Job)}
}

// ReplaceHost atomically swaps the job subset belonging to host. Jobs from
// other hosts are untouched. Insertion order within the host is preserved.
func (j *Jobs) ReplaceHost(host string, jobs []cluster.Job) {
	dup := make([]cluster.Job, len(jobs))
	copy(dup, jobs)
	for i := range dup {
		dup[i].Hostname = host
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	j.hosts[host] = dup
}

// RemoveHost clears a host's job subset. Used when a host is removed from
// configuration.
func (j *Jobs) RemoveHost(host string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.hosts, host)
}

// HostJobs returns a copy of one host's jobs in insertion order.
func (j *Jobs) HostJobs(host string) []cluster.Job {
	j.mu.RLock()
	defer j.mu.RUnlock()
	jobs := j.hosts[host]
	if len(jobs) == 0 {
		return nil
	}
	dup := make([]cluster.Job, len(jobs))
	copy(dup, jobs)
	return dup
}

// AllJobs returns a fresh, restartable sequence over every job. Each call
// iterates an independent snapshot taken at call time, so two consumers
// never share a cursor and a concurrent ReplaceHost cannot tear a read.
// Hosts have no global order; consumers sort as needed.
func (j *Jobs) AllJobs() iter.Seq[cluster.Job] {
	j.mu.RLock()
	snapshot := make([][]cluster.Job, 0, len(j.hosts))
	for _, jobs := range j.hosts {
		dup := make([]cluster.Job, len(jobs))
		copy(dup, jobs)
		snapshot = append(snapshot, dup)
	}
	j.mu.RUnlock()

	return func(yield func(cluster.Job) bool) {
		for _, jobs := range snapshot {
			for _, job := range jobs {
				if !yield(job) {
					return
				}
			}
		}
	}
}

// Len reports the total number of jobs across all hosts.
func (j *Jobs) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	n := 0
	for _, jobs := range j.hosts {
		n += len(jobs)
	}
	return n
}

// Hosts returns the host names currently holding at least one sync result.
func (j *Jobs) Hosts() []string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	names := make([]string, 0, len(j.hosts))
	for host := range j.hosts {
		names = append(names, host)
	}
	return names
}
