// Package ingestion defines the unit of work a source produces and the
// extractor that validates it into emittable records.
package ingestion

import (
	"errors"
	"fmt"

	"github.com/lodestar-data/lodestar/pkg/domain"
	"github.com/lodestar-data/lodestar/pkg/emitter"
)

// ErrPayloadVariant is returned when a work unit is constructed with zero
// or more than one payload variant. Always a programming error, raised at
// construction and never deferred.
var ErrPayloadVariant = errors.New("exactly one of snapshot, proposal, or raw proposal must be provided")

// Snapshot is the legacy full-entity form: many aspects bundled under one
// entity urn. A snapshot must carry at least one aspect.
type Snapshot struct {
	URN            domain.URN
	Aspects        []domain.Aspect
	SystemMetadata *domain.SystemMetadata
}

// Validate reports whether every bundled aspect validates.
func (s *Snapshot) Validate() bool {
	if s.URN == "" {
		return false
	}
	for _, a := range s.Aspects {
		if !a.Validate() {
			return false
		}
	}
	return true
}

// WorkUnit wraps exactly one unit of emittable work. The payload variant is
// fixed at construction.
type WorkUnit struct {
	// ID correlates this unit through reports, retries and envelope
	// metadata.
	ID string

	Snapshot    *Snapshot
	Proposal    *emitter.ChangeProposal
	RawProposal *emitter.WireProposal

	// TreatErrorsAsWarnings lets the run orchestrator downgrade this
	// unit's failures instead of aborting the run.
	TreatErrorsAsWarnings bool
}

func newWorkUnit(id string, snapshot *Snapshot, proposal *emitter.ChangeProposal, raw *emitter.WireProposal) (*WorkUnit, error) {
	populated := 0
	if snapshot != nil {
		populated++
	}
	if proposal != nil {
		populated++
	}
	if raw != nil {
		populated++
	}
	if populated != 1 {
		return nil, fmt.Errorf("work unit %q: %w", id, ErrPayloadVariant)
	}
	return &WorkUnit{ID: id, Snapshot: snapshot, Proposal: proposal, RawProposal: raw}, nil
}

// NewSnapshotWorkUnit wraps a legacy full-entity snapshot.
func NewSnapshotWorkUnit(id string, snapshot *Snapshot) (*WorkUnit, error) {
	return newWorkUnit(id, snapshot, nil, nil)
}

// NewProposalWorkUnit wraps a single change proposal.
func NewProposalWorkUnit(id string, proposal *emitter.ChangeProposal) (*WorkUnit, error) {
	return newWorkUnit(id, nil, proposal, nil)
}

// NewRawWorkUnit wraps a pre-serialized proposal, forwarded as-is.
func NewRawWorkUnit(id string, raw *emitter.WireProposal) (*WorkUnit, error) {
	return newWorkUnit(id, nil, nil, raw)
}

// EntityURN returns the urn the unit addresses, if known.
func (w *WorkUnit) EntityURN() domain.URN {
	switch {
	case w.Snapshot != nil:
		return w.Snapshot.URN
	case w.Proposal != nil:
		if w.Proposal.EntityURN != "" {
			return w.Proposal.EntityURN
		}
		if w.Proposal.EntityKeyAspect != nil {
			return w.Proposal.EntityKeyAspect.URN()
		}
	case w.RawProposal != nil:
		return domain.URN(w.RawProposal.EntityURN)
	}
	return ""
}
