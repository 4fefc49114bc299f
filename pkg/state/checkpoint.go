package state

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lodestar-data/lodestar/pkg/domain"
)

// Orchestrator names the flow owner in derived job urns.
const Orchestrator = "lodestar"

// JobKey is the identity key a checkpoint is looked up and stored under.
type JobKey struct {
	PipelineName       string
	PlatformInstanceID string
	JobName            string
}

// Validate reports whether every key component is present.
func (k JobKey) Validate() error {
	if k.PipelineName == "" || k.PlatformInstanceID == "" || k.JobName == "" {
		return fmt.Errorf("job key requires pipeline name, platform instance id and job name, got %+v", k)
	}
	return nil
}

// URN derives the synthetic dataJob entity the checkpoint aspect is
// attached to. The derivation is deterministic in the key.
func (k JobKey) URN() domain.URN {
	flow := domain.MakeDataFlowURN(Orchestrator, k.PipelineName, k.PlatformInstanceID)
	return domain.MakeDataJobURN(flow, k.JobName)
}

// Checkpoint is one job's persisted state snapshot. One checkpoint is
// created empty at the start of a run, filled by the source as it discovers
// entities, and persisted at the end of a successful run. A previous run's
// checkpoint, once loaded, is read-only.
type Checkpoint struct {
	Key    JobKey
	RunID  string
	Config string
	State  *CheckpointState
}

// NewCheckpoint creates an empty checkpoint for the current run.
func NewCheckpoint(key JobKey, runID, config string) *Checkpoint {
	return &Checkpoint{Key: key, RunID: runID, Config: config, State: NewCheckpointState()}
}

// ToAspect renders the checkpoint as the versioned, timestamped aspect it
// round-trips through the catalog as.
func (c *Checkpoint) ToAspect(now time.Time) (*domain.IngestionCheckpoint, error) {
	payload, err := c.State.MarshalPayload()
	if err != nil {
		return nil, fmt.Errorf("serialize checkpoint state: %w", err)
	}
	return &domain.IngestionCheckpoint{
		TimestampMillis:    now.UnixMilli(),
		PipelineName:       c.Key.PipelineName,
		PlatformInstanceID: c.Key.PlatformInstanceID,
		RunID:              c.RunID,
		Config:             c.Config,
		State: domain.CheckpointStateBlob{
			FormatVersion: StateFormatVersion,
			Serde:         StateSerde,
			Payload:       payload,
		},
	}, nil
}

// CheckpointFromObject rebuilds a checkpoint from the decoded structural
// form of its aspect.
func CheckpointFromObject(key JobKey, obj map[string]interface{}) (*Checkpoint, error) {
	var aspect struct {
		PipelineName       string `json:"pipelineName"`
		PlatformInstanceID string `json:"platformInstanceId"`
		RunID              string `json:"runId"`
		Config             string `json:"config"`
		State              struct {
			FormatVersion string `json:"formatVersion"`
			Serde         string `json:"serde"`
			Payload       string `json:"payload"`
		} `json:"state"`
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("re-encode checkpoint aspect: %w", err)
	}
	if err := json.Unmarshal(raw, &aspect); err != nil {
		return nil, fmt.Errorf("decode checkpoint aspect: %w", err)
	}

	if aspect.State.FormatVersion != StateFormatVersion {
		return nil, fmt.Errorf("unsupported checkpoint state version %q", aspect.State.FormatVersion)
	}
	if aspect.State.Serde != StateSerde {
		return nil, fmt.Errorf("unsupported checkpoint state serde %q", aspect.State.Serde)
	}
	cpState, err := UnmarshalCheckpointState([]byte(aspect.State.Payload))
	if err != nil {
		return nil, err
	}

	return &Checkpoint{
		Key:    key,
		RunID:  aspect.RunID,
		Config: aspect.Config,
		State:  cpState,
	}, nil
}
