// Package state tracks per-job checkpoints across ingestion runs and diffs
// them to retract metadata for entities that disappeared from the source.
package state

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/lodestar-data/lodestar/pkg/domain"
)

const (
	// StateFormatVersion versions the checkpoint state payload layout.
	StateFormatVersion = "1.0"

	// StateSerde names the payload encoding.
	StateSerde = "utf-8-json"
)

// CheckpointState accumulates the entity urns observed during one run. It
// is exclusively owned by the single job instance for the duration of the
// run; no concurrent mutation is supported.
type CheckpointState struct {
	urns map[domain.URN]struct{}
}

// NewCheckpointState returns an empty state.
func NewCheckpointState() *CheckpointState {
	return &CheckpointState{urns: make(map[domain.URN]struct{})}
}

// Observe registers an entity urn seen during the current run. Implements
// the observer contract sources write to.
func (s *CheckpointState) Observe(urn domain.URN) {
	s.urns[urn] = struct{}{}
}

// Contains reports whether the urn was observed.
func (s *CheckpointState) Contains(urn domain.URN) bool {
	_, ok := s.urns[urn]
	return ok
}

// Size returns the number of observed urns.
func (s *CheckpointState) Size() int {
	return len(s.urns)
}

// URNs returns the observed urns, sorted.
func (s *CheckpointState) URNs() []domain.URN {
	out := make([]domain.URN, 0, len(s.urns))
	for u := range s.urns {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// URNsNotIn returns the urns present in this state but absent from other,
// sorted for deterministic retraction order.
func (s *CheckpointState) URNsNotIn(other *CheckpointState) []domain.URN {
	var out []domain.URN
	for u := range s.urns {
		if !other.Contains(u) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type statePayload struct {
	URNs []string `json:"urns"`
}

// MarshalPayload encodes the state as the checkpoint blob payload.
func (s *CheckpointState) MarshalPayload() ([]byte, error) {
	payload := statePayload{URNs: make([]string, 0, len(s.urns))}
	for _, u := range s.URNs() {
		payload.URNs = append(payload.URNs, u.String())
	}
	return json.Marshal(payload)
}

// UnmarshalCheckpointState decodes a checkpoint blob payload.
func UnmarshalCheckpointState(data []byte) (*CheckpointState, error) {
	var payload statePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode checkpoint state: %w", err)
	}
	state := NewCheckpointState()
	for _, raw := range payload.URNs {
		urn, err := domain.ParseURN(raw)
		if err != nil {
			return nil, fmt.Errorf("checkpoint state: %w", err)
		}
		state.Observe(urn)
	}
	return state, nil
}
