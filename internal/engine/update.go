package engine

import (
	"time"

	"github.com/jobdeck/jobdeck/internal/cluster"
)

// Origin identifies which transport produced an update.
type Origin string

const (
	OriginPush Origin = "push"
	OriginPoll Origin = "poll"
	OriginSeed Origin = "seed"
)

// Update is one host's authoritative job list waiting to be applied to
// the canonical store. Updates are applied in enqueue order within a
// drain; they are never merged or deduplicated by content.
type Update struct {
	Hostname string
	Jobs     []cluster.Job
	Origin   Origin
	Received time.Time
}
