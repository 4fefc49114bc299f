package ingestion

import (
	"context"

	"github.com/lodestar-data/lodestar/pkg/domain"
)

// URNObserver accumulates entity urns observed during the current run.
// The active checkpoint state implements it; sources that do not
// participate in stateful ingestion receive a no-op observer.
type URNObserver interface {
	Observe(urn domain.URN)
}

// NopObserver discards observations.
type NopObserver struct{}

func (NopObserver) Observe(domain.URN) {}

// Source produces an ordered sequence of work units. A source pushes each
// unit through emit in the order it wants them delivered, and registers the
// urns it observed with the active checkpoint state.
type Source interface {
	// Name identifies the source in logs and reports.
	Name() string

	// WorkUnits drives one extraction pass. Returning an error aborts
	// the run; per-unit failures are signalled by the orchestrator's
	// handling of emit's return value.
	WorkUnits(ctx context.Context, observer URNObserver, emit func(*WorkUnit) error) error
}
