// Package pipeline orchestrates one ingestion run: it drives the source's
// work unit stream through extraction and emission, runs the stale-entity
// pass, and commits the job checkpoint.
package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lodestar-data/lodestar/pkg/domain"
	"github.com/lodestar-data/lodestar/pkg/emitter"
	"github.com/lodestar-data/lodestar/pkg/ingestion"
	"github.com/lodestar-data/lodestar/pkg/metrics"
	"github.com/lodestar-data/lodestar/pkg/state"
)

// StatefulConfig controls cross-run state tracking for a job.
type StatefulConfig struct {
	Enabled             bool `yaml:"enabled" json:"enabled"`
	RemoveStaleMetadata bool `yaml:"remove_stale_metadata" json:"remove_stale_metadata"`
}

// Config identifies one pipeline run.
type Config struct {
	PipelineName       string
	PlatformInstanceID string
	JobName            string
	RunID              string
	ConfigSnapshot     string
	Stateful           StatefulConfig
}

// Pipeline executes one job's run. A pipeline instance is single use: one
// job's work unit stream is produced and consumed in strict order by one
// logical worker. Independent jobs may run concurrently, each with its own
// pipeline.
type Pipeline struct {
	config     Config
	source     ingestion.Source
	dispatcher *emitter.Dispatcher
	store      *state.Store
	differ     *state.StaleDiffer
	extractor  *ingestion.Extractor
	metrics    *metrics.Ingestion
	logger     *zap.Logger

	report  *RunReport
	current *state.Checkpoint
}

// New wires a pipeline. The store may be nil for stateless jobs; stateful
// ingestion requires it, plus a platform instance id to disambiguate
// multiple instances of the same source platform.
func New(config Config, source ingestion.Source, dispatcher *emitter.Dispatcher, store *state.Store, m *metrics.Ingestion, logger *zap.Logger) (*Pipeline, error) {
	if config.PipelineName == "" {
		return nil, fmt.Errorf("pipeline requires a name")
	}
	if config.JobName == "" {
		config.JobName = fmt.Sprintf("ingest_%s", source.Name())
	}
	if config.RunID == "" {
		config.RunID = uuid.NewString()
	}
	if config.Stateful.Enabled {
		if store == nil {
			return nil, fmt.Errorf("stateful ingestion requires a checkpoint store")
		}
		if config.PlatformInstanceID == "" {
			return nil, fmt.Errorf("stateful ingestion requires a platform instance id")
		}
	}
	if m == nil {
		m = metrics.NewIngestion()
	}
	return &Pipeline{
		config:     config,
		source:     source,
		dispatcher: dispatcher,
		store:      store,
		differ:     state.NewStaleDiffer(config.Stateful.Enabled && config.Stateful.RemoveStaleMetadata, logger),
		extractor:  ingestion.NewExtractor(config.RunID, logger),
		metrics:    m,
		logger:     logger,
		report:     &RunReport{RunID: config.RunID},
	}, nil
}

func (p *Pipeline) key() state.JobKey {
	return state.JobKey{
		PipelineName:       p.config.PipelineName,
		PlatformInstanceID: p.config.PlatformInstanceID,
		JobName:            p.config.JobName,
	}
}

// Run drives the source to completion, retracts stale entities, drains the
// transport, and commits the new checkpoint. The report is returned even
// when the run fails.
func (p *Pipeline) Run(ctx context.Context) (*RunReport, error) {
	p.logger.Info("starting ingestion run",
		zap.String("pipeline", p.config.PipelineName),
		zap.String("run_id", p.config.RunID),
		zap.String("source", p.source.Name()))

	var observer ingestion.URNObserver = ingestion.NopObserver{}
	if p.config.Stateful.Enabled {
		p.current = state.NewCheckpoint(p.key(), p.config.RunID, p.config.ConfigSnapshot)
		observer = p.current.State
	}

	if err := p.source.WorkUnits(ctx, observer, func(unit *ingestion.WorkUnit) error {
		return p.processUnit(ctx, unit)
	}); err != nil {
		return p.report, fmt.Errorf("source %s: %w", p.source.Name(), err)
	}

	if err := p.removeStaleEntities(ctx); err != nil {
		return p.report, err
	}

	// All prior writes must be accepted before the checkpoint may be
	// committed: the new checkpoint asserts they happened.
	if err := p.dispatcher.Drain(ctx); err != nil {
		p.report.reportFailure(fmt.Sprintf("drain: %v", err))
		return p.report, fmt.Errorf("drain outstanding emissions: %w", err)
	}

	if p.report.Failed() {
		return p.report, fmt.Errorf("run %s finished with %d failures", p.config.RunID, len(p.report.Failures))
	}

	if p.config.Stateful.Enabled {
		if err := p.store.Commit(ctx, p.current); err != nil {
			p.report.reportFailure(fmt.Sprintf("checkpoint commit: %v", err))
			return p.report, err
		}
		p.metrics.CheckpointCommits.Inc()
		p.report.CheckpointCommitted = true
	}

	p.logger.Info("ingestion run complete",
		zap.String("run_id", p.config.RunID),
		zap.Int("workunits", p.report.WorkUnitsProduced),
		zap.Int("emitted", p.report.RecordsEmitted),
		zap.Int("warnings", len(p.report.Warnings)))
	return p.report, nil
}

func (p *Pipeline) removeStaleEntities(ctx context.Context) error {
	if !p.config.Stateful.Enabled || !p.config.Stateful.RemoveStaleMetadata {
		return nil
	}

	previous, err := p.store.Load(ctx, p.key())
	if err != nil {
		// No prior state is the normal case for first-ever runs; an
		// unreachable catalog only costs this run's diff.
		p.report.reportWarning(fmt.Sprintf("previous checkpoint unavailable: %v", err))
		p.logger.Warn("previous checkpoint unavailable, skipping stale entity removal", zap.Error(err))
		return nil
	}

	units, err := p.differ.WorkUnits(previous, p.current)
	if err != nil {
		return err
	}
	for _, unit := range units {
		urn := unit.EntityURN()
		if err := p.processUnit(ctx, unit); err != nil {
			return err
		}
		p.report.reportStaleEntity(urn)
		p.metrics.StaleEntitiesRemoved.Inc()
	}
	return nil
}

func (p *Pipeline) processUnit(ctx context.Context, unit *ingestion.WorkUnit) error {
	p.report.reportWorkUnit()
	p.metrics.WorkUnitsProduced.Inc()

	envelopes, err := p.extractor.Extract(unit)
	if err != nil {
		return p.tolerate(unit, err)
	}
	for _, env := range envelopes {
		if err := p.dispatchRecord(ctx, unit, env); err != nil {
			if terr := p.tolerate(unit, err); terr != nil {
				return terr
			}
		}
	}
	return nil
}

// tolerate applies the unit's error policy: warnings-tolerant units log and
// continue, everything else fails the run.
func (p *Pipeline) tolerate(unit *ingestion.WorkUnit, err error) error {
	if unit.TreatErrorsAsWarnings {
		p.metrics.ValidationWarnings.Inc()
		p.report.reportWarning(err.Error())
		p.logger.Warn("work unit failed, continuing",
			zap.String("workunit_id", unit.ID), zap.Error(err))
		return nil
	}
	p.report.reportFailure(err.Error())
	return err
}

func (p *Pipeline) dispatchRecord(ctx context.Context, unit *ingestion.WorkUnit, env ingestion.RecordEnvelope) error {
	switch record := env.Record.(type) {
	case *emitter.ChangeProposal:
		return p.dispatch(unit, func(cb emitter.Callback) error {
			return p.dispatcher.Dispatch(ctx, record, cb)
		})

	case *ingestion.Snapshot:
		// Legacy full snapshots decompose into one proposal per aspect,
		// in the snapshot's aspect order.
		for _, aspect := range record.Aspects {
			proposal := &emitter.ChangeProposal{
				EntityType:     record.URN.EntityType(),
				EntityURN:      record.URN,
				ChangeType:     domain.ChangeTypeUpsert,
				AspectName:     aspect.AspectName(),
				Aspect:         aspect,
				SystemMetadata: record.SystemMetadata,
			}
			if err := p.dispatch(unit, func(cb emitter.Callback) error {
				return p.dispatcher.Dispatch(ctx, proposal, cb)
			}); err != nil {
				return err
			}
		}
		return nil

	case *emitter.WireProposal:
		return p.dispatch(unit, func(cb emitter.Callback) error {
			return p.dispatcher.DispatchRaw(ctx, record, cb)
		})

	default:
		return &ingestion.ExtractionError{
			UnitID: unit.ID,
			Detail: fmt.Sprintf("unknown record type %T", env.Record),
		}
	}
}

// dispatch runs one delivery, routing the outcome through the report.
// Synchronous failures surface through send's return value and the caller's
// tolerance policy; asynchronous failures arrive later through the callback
// and are recorded there, since nothing else will see them.
func (p *Pipeline) dispatch(unit *ingestion.WorkUnit, send func(emitter.Callback) error) error {
	async := p.dispatcher.Async()
	cb := func(err error, message string) {
		if err != nil {
			if async {
				p.metrics.EmissionFailures.Inc()
				if unit.TreatErrorsAsWarnings {
					p.report.reportWarning(fmt.Sprintf("unit %s: %v", unit.ID, err))
				} else {
					p.report.reportFailure(fmt.Sprintf("unit %s: %v", unit.ID, err))
				}
			}
			return
		}
		p.report.reportEmitted()
		p.metrics.RecordsEmitted.Inc()
	}

	if err := send(cb); err != nil {
		p.metrics.EmissionFailures.Inc()
		return err
	}
	return nil
}
