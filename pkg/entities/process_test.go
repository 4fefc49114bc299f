package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodestar-data/lodestar/pkg/domain"
)

func TestProcessInstanceProposalOrder(t *testing.T) {
	template := domain.MakeDataJobURN(
		domain.MakeDataFlowURN("airflow", "daily_etl", "prod"), "load_orders")
	in := domain.MakeDatasetURN("postgres", "public.orders_raw", domain.EnvProd)
	out := domain.MakeDatasetURN("postgres", "public.orders", domain.EnvProd)

	instance := &ProcessInstance{
		ID:         "daily_etl_2024_06_01",
		Template:   template,
		Inlets:     []domain.URN{in},
		Outlets:    []domain.URN{out},
		Properties: map[string]string{"attempt": "1"},
	}

	proposals := instance.GenerateProposals(time.UnixMilli(1700000000000))

	names := make([]string, 0, len(proposals))
	for _, p := range proposals {
		assert.True(t, p.Validate(), "proposal %s must validate", p.AspectName)
		names = append(names, p.AspectName)
	}
	assert.Equal(t, []string{
		"status", // template materialization
		"dataProcessInstanceProperties",
		"dataProcessInstanceRelationships",
		"dataProcessInstanceInput",
		"dataProcessInstanceOutput",
		"status", // inlet materialization
		"status", // outlet materialization
	}, names)

	assert.Equal(t, template, proposals[0].EntityURN)
	assert.Equal(t, instance.URN(), proposals[1].EntityURN)
	assert.Equal(t, in, proposals[5].EntityURN)
	assert.Equal(t, out, proposals[6].EntityURN)
}

func TestProcessInstanceWithoutTemplate(t *testing.T) {
	instance := &ProcessInstance{ID: "adhoc_run"}
	proposals := instance.GenerateProposals(time.UnixMilli(1700000000000))

	require.Len(t, proposals, 1, "no template, upstreams or iolets: properties only")
	assert.Equal(t, "dataProcessInstanceProperties", proposals[0].AspectName)
	assert.Equal(t, "dataProcessInstance", proposals[0].EntityType)
}

func TestProcessInstanceUpstreamsImplyRelationships(t *testing.T) {
	upstream := domain.MakeDataProcessInstanceURN("previous_run")
	instance := &ProcessInstance{
		ID:        "chained_run",
		Upstreams: []domain.URN{upstream},
	}
	proposals := instance.GenerateProposals(time.UnixMilli(1700000000000))

	require.Len(t, proposals, 2)
	assert.Equal(t, "dataProcessInstanceRelationships", proposals[1].AspectName)
}
