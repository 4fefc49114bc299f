package pipeline

import (
	"sync"

	"github.com/lodestar-data/lodestar/pkg/domain"
)

// RunReport accumulates operator-facing counts over one pipeline run.
// Asynchronous transport callbacks write to it concurrently.
type RunReport struct {
	mu sync.Mutex

	RunID               string
	WorkUnitsProduced   int
	RecordsEmitted      int
	Warnings            []string
	Failures            []string
	StaleEntitiesURNs   []domain.URN
	CheckpointCommitted bool
}

func (r *RunReport) reportWorkUnit() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.WorkUnitsProduced++
}

func (r *RunReport) reportEmitted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.RecordsEmitted++
}

func (r *RunReport) reportWarning(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Warnings = append(r.Warnings, msg)
}

func (r *RunReport) reportFailure(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failures = append(r.Failures, msg)
}

func (r *RunReport) reportStaleEntity(urn domain.URN) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.StaleEntitiesURNs = append(r.StaleEntitiesURNs, urn)
}

// Failed reports whether any non-warning failure occurred.
func (r *RunReport) Failed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Failures) > 0
}
