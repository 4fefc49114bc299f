package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodestar-data/lodestar/pkg/domain"
	"github.com/lodestar-data/lodestar/pkg/emitter"
)

func TestWorkUnitFactories(t *testing.T) {
	urn := domain.MakeDatasetURN("postgres", "public.orders", domain.EnvProd)

	t.Run("snapshot unit", func(t *testing.T) {
		unit, err := NewSnapshotWorkUnit("u1", &Snapshot{
			URN:     urn,
			Aspects: []domain.Aspect{&domain.Status{}},
		})
		require.NoError(t, err)
		assert.Equal(t, urn, unit.EntityURN())
	})

	t.Run("proposal unit", func(t *testing.T) {
		unit, err := NewProposalWorkUnit("u2", &emitter.ChangeProposal{
			EntityType: "dataset",
			EntityURN:  urn,
			ChangeType: domain.ChangeTypeUpsert,
		})
		require.NoError(t, err)
		assert.Equal(t, urn, unit.EntityURN())
	})

	t.Run("key addressed proposal resolves its urn", func(t *testing.T) {
		unit, err := NewProposalWorkUnit("u3", &emitter.ChangeProposal{
			EntityType: "dataset",
			EntityKeyAspect: &domain.DatasetKey{
				Platform: "postgres",
				Name:     "public.orders",
				Origin:   domain.EnvProd,
			},
			ChangeType: domain.ChangeTypeUpsert,
		})
		require.NoError(t, err)
		assert.Equal(t, urn, unit.EntityURN())
	})

	t.Run("raw unit", func(t *testing.T) {
		unit, err := NewRawWorkUnit("u4", &emitter.WireProposal{
			EntityType: "dataset",
			EntityURN:  urn.String(),
			ChangeType: "UPSERT",
		})
		require.NoError(t, err)
		assert.Equal(t, urn, unit.EntityURN())
	})

	t.Run("empty unit is rejected at construction", func(t *testing.T) {
		_, err := newWorkUnit("u5", nil, nil, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrPayloadVariant)
	})

	t.Run("two variants are rejected at construction", func(t *testing.T) {
		_, err := newWorkUnit("u6",
			&Snapshot{URN: urn},
			&emitter.ChangeProposal{EntityURN: urn},
			nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrPayloadVariant)
	})
}
