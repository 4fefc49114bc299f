package ingestion

import (
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lodestar-data/lodestar/pkg/domain"
)

// MetadataKeyWorkUnitID is the envelope metadata key carrying the
// originating work unit id, used downstream for dedupe, retries and
// progress reporting.
const MetadataKeyWorkUnitID = "workunit_id"

// RecordEnvelope pairs a validated payload with correlation metadata.
type RecordEnvelope struct {
	Record   interface{}
	Metadata map[string]string
}

// ExtractionError is raised when a work unit's payload fails validation. It
// carries enough identity for the orchestrator to apply the unit's error
// tolerance policy.
type ExtractionError struct {
	UnitID    string
	EntityURN domain.URN
	Detail    string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("work unit %s (entity %s): %s", e.UnitID, e.EntityURN, e.Detail)
}

// Extractor pulls records out of work units, stamping system metadata and
// validating before handoff.
type Extractor struct {
	runID  string
	now    func() time.Time
	logger *zap.Logger
}

// NewExtractor creates an extractor stamping records with the given run id.
func NewExtractor(runID string, logger *zap.Logger) *Extractor {
	return &Extractor{runID: runID, now: time.Now, logger: logger}
}

// Extract validates one work unit and returns its record envelopes.
// Snapshots and proposals are stamped with system metadata exactly once,
// here, with the current wall-clock time and the run id. Raw proposals are
// forwarded untouched.
func (x *Extractor) Extract(unit *WorkUnit) ([]RecordEnvelope, error) {
	stamp := &domain.SystemMetadata{
		LastObserved: x.now().UnixMilli(),
		RunID:        x.runID,
	}

	switch {
	case unit.Proposal != nil:
		unit.Proposal.SystemMetadata = stamp
		if !unit.Proposal.Validate() {
			return nil, &ExtractionError{
				UnitID:    unit.ID,
				EntityURN: unit.EntityURN(),
				Detail:    "source produced an invalid change proposal: " + unit.Proposal.Render(),
			}
		}
		return x.envelope(unit, unit.Proposal), nil

	case unit.Snapshot != nil:
		unit.Snapshot.SystemMetadata = stamp
		if len(unit.Snapshot.Aspects) == 0 {
			return nil, &ExtractionError{
				UnitID:    unit.ID,
				EntityURN: unit.Snapshot.URN,
				Detail:    "every snapshot must have at least one aspect",
			}
		}
		if !unit.Snapshot.Validate() {
			return nil, &ExtractionError{
				UnitID:    unit.ID,
				EntityURN: unit.Snapshot.URN,
				Detail:    "source produced an invalid snapshot: " + renderSnapshot(unit.Snapshot),
			}
		}
		return x.envelope(unit, unit.Snapshot), nil

	case unit.RawProposal != nil:
		return x.envelope(unit, unit.RawProposal), nil
	}

	// Unreachable for units built through the factories.
	return nil, &ExtractionError{UnitID: unit.ID, Detail: "work unit carries no payload"}
}

func (x *Extractor) envelope(unit *WorkUnit, record interface{}) []RecordEnvelope {
	x.logger.Debug("extracted work unit", zap.String("workunit_id", unit.ID))
	return []RecordEnvelope{{
		Record:   record,
		Metadata: map[string]string{MetadataKeyWorkUnitID: unit.ID},
	}}
}

// renderSnapshot pretty-prints a snapshot for failure messages.
// Best-effort.
func renderSnapshot(s *Snapshot) string {
	obj := map[string]interface{}{"urn": s.URN.String()}
	aspects := make([]interface{}, 0, len(s.Aspects))
	for _, a := range s.Aspects {
		aspects = append(aspects, map[string]interface{}{a.AspectName(): a.ToObject()})
	}
	obj["aspects"] = aspects
	pretty, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", *s)
	}
	return string(pretty)
}
