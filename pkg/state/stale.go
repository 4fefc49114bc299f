package state

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/lodestar-data/lodestar/pkg/domain"
	"github.com/lodestar-data/lodestar/pkg/emitter"
	"github.com/lodestar-data/lodestar/pkg/ingestion"
)

// StaleDiffer compares the previous checkpoint's observed-entity set
// against the current run's set and yields soft-delete work units for
// entities no longer observed. The retraction is logical: the entity
// remains queryable but its status aspect marks it removed.
type StaleDiffer struct {
	enabled bool
	logger  *zap.Logger
}

// NewStaleDiffer creates a differ. Stateful diffing must be explicitly
// enabled per job; a disabled differ yields nothing.
func NewStaleDiffer(enabled bool, logger *zap.Logger) *StaleDiffer {
	return &StaleDiffer{enabled: enabled, logger: logger}
}

// WorkUnits returns one soft-delete unit per stale urn, sorted by urn. If
// diffing is disabled, no previous checkpoint exists, the previous state is
// empty, or there is no current checkpoint, it yields nothing: that is the
// normal case for first-ever runs, not an error.
func (d *StaleDiffer) WorkUnits(previous, current *Checkpoint) ([]*ingestion.WorkUnit, error) {
	if !d.enabled ||
		previous == nil || previous.State == nil || previous.State.Size() == 0 ||
		current == nil || current.State == nil {
		return nil, nil
	}

	stale := previous.State.URNsNotIn(current.State)
	if len(stale) == 0 {
		return nil, nil
	}
	d.logger.Info("retracting stale entities", zap.Int("count", len(stale)))

	units := make([]*ingestion.WorkUnit, 0, len(stale))
	for _, urn := range stale {
		d.logger.Debug("soft-deleting stale entity", zap.String("urn", urn.String()))
		proposal := &emitter.ChangeProposal{
			EntityType: urn.EntityType(),
			EntityURN:  urn,
			ChangeType: domain.ChangeTypeUpsert,
			AspectName: (&domain.Status{}).AspectName(),
			Aspect:     &domain.Status{Removed: true},
		}
		unit, err := ingestion.NewProposalWorkUnit(fmt.Sprintf("soft-delete-%s", urn), proposal)
		if err != nil {
			return nil, err
		}
		units = append(units, unit)
	}
	return units, nil
}
