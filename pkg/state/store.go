package state

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lodestar-data/lodestar/pkg/codec"
	"github.com/lodestar-data/lodestar/pkg/domain"
	"github.com/lodestar-data/lodestar/pkg/emitter"
)

// GraphReader is the slice of the catalog graph client the store needs.
type GraphReader interface {
	GetLatestTimeseriesValue(ctx context.Context, urn domain.URN, aspectName string, filters map[string]string) (*codec.GenericAspect, error)
}

// Store loads the most recent checkpoint for a job key and persists a new
// one at run completion through the normal aspect-emission pathway.
//
// Committing the same checkpoint twice is safe: the checkpoint aspect is a
// last-write-wins versioned upsert, and each job owns exactly one
// checkpoint key with at most one live process per run.
type Store struct {
	graph      GraphReader
	dispatcher *emitter.Dispatcher
	logger     *zap.Logger
	now        func() time.Time

	committed bool
}

// NewStore creates a checkpoint store backed by the catalog graph client
// for reads and the emission dispatcher for writes.
func NewStore(graph GraphReader, dispatcher *emitter.Dispatcher, logger *zap.Logger) *Store {
	return &Store{graph: graph, dispatcher: dispatcher, logger: logger, now: time.Now}
}

// Load fetches the latest committed checkpoint for the key. A never-
// committed checkpoint or an unreachable aspect is not an error: Load
// returns nil and the caller treats it as "no prior state".
func (s *Store) Load(ctx context.Context, key JobKey) (*Checkpoint, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	aspect, err := s.graph.GetLatestTimeseriesValue(ctx, key.URN(),
		(&domain.IngestionCheckpoint{}).AspectName(),
		map[string]string{
			"pipelineName":       key.PipelineName,
			"platformInstanceId": key.PlatformInstanceID,
		})
	if err != nil {
		return nil, fmt.Errorf("load checkpoint for %s: %w", key.JobName, err)
	}
	if aspect == nil {
		s.logger.Debug("no previous checkpoint",
			zap.String("pipeline", key.PipelineName),
			zap.String("job", key.JobName))
		return nil, nil
	}

	obj, err := codec.DecodeObject(aspect.Value)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint for %s: %w", key.JobName, err)
	}
	return CheckpointFromObject(key, obj)
}

// Commit persists the checkpoint as an upsert of its aspect on the derived
// job urn, blocking until the transport has accepted the write.
func (s *Store) Commit(ctx context.Context, cp *Checkpoint) error {
	if err := cp.Key.Validate(); err != nil {
		return err
	}
	aspect, err := cp.ToAspect(s.now())
	if err != nil {
		return err
	}
	proposal := &emitter.ChangeProposal{
		EntityType: "dataJob",
		EntityURN:  cp.Key.URN(),
		ChangeType: domain.ChangeTypeUpsert,
		AspectName: aspect.AspectName(),
		Aspect:     aspect,
	}

	result := make(chan error, 1)
	if err := s.dispatcher.Dispatch(ctx, proposal, func(err error, _ string) {
		result <- err
	}); err != nil {
		return fmt.Errorf("commit checkpoint for %s: %w", cp.Key.JobName, err)
	}
	select {
	case err := <-result:
		if err != nil {
			return fmt.Errorf("commit checkpoint for %s: %w", cp.Key.JobName, err)
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	s.committed = true
	s.logger.Info("checkpoint committed",
		zap.String("pipeline", cp.Key.PipelineName),
		zap.String("job", cp.Key.JobName),
		zap.Int("observed_urns", cp.State.Size()))
	return nil
}

// Committed reports whether a commit has succeeded on this store.
func (s *Store) Committed() bool {
	return s.committed
}
