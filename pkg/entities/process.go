// Package entities builds the proposal sequences for composite catalog
// entities, in the emission order the catalog's indexer expects.
package entities

import (
	"time"

	"github.com/lodestar-data/lodestar/pkg/domain"
	"github.com/lodestar-data/lodestar/pkg/emitter"
)

// ProcessInstance represents one execution of a job or flow.
type ProcessInstance struct {
	ID         string
	Template   domain.URN
	Upstreams  []domain.URN
	Inlets     []domain.URN
	Outlets    []domain.URN
	Properties map[string]string
}

// URN derives the instance urn.
func (p *ProcessInstance) URN() domain.URN {
	return domain.MakeDataProcessInstanceURN(p.ID)
}

// GenerateProposals renders the instance as an ordered proposal sequence:
// parent/template materialization, then the primary property aspect, the
// relationship aspect, input/output aspects, and finally iolet
// materialization. The order is a convention for consistent eventual
// indexing, not an atomicity guarantee.
func (p *ProcessInstance) GenerateProposals(now time.Time) []*emitter.ChangeProposal {
	urn := p.URN()
	var proposals []*emitter.ChangeProposal

	if p.Template != "" {
		proposals = append(proposals, materialize(p.Template))
	}

	proposals = append(proposals, &emitter.ChangeProposal{
		EntityType: "dataProcessInstance",
		EntityURN:  urn,
		ChangeType: domain.ChangeTypeUpsert,
		AspectName: "dataProcessInstanceProperties",
		Aspect: &domain.DataProcessInstanceProperties{
			Name:             p.ID,
			CreatedAtMillis:  now.UnixMilli(),
			CustomProperties: p.Properties,
		},
	})

	if p.Template != "" || len(p.Upstreams) > 0 {
		proposals = append(proposals, &emitter.ChangeProposal{
			EntityType: "dataProcessInstance",
			EntityURN:  urn,
			ChangeType: domain.ChangeTypeUpsert,
			AspectName: "dataProcessInstanceRelationships",
			Aspect: &domain.DataProcessInstanceRelationships{
				ParentTemplate:    p.Template,
				UpstreamInstances: p.Upstreams,
			},
		})
	}

	if len(p.Inlets) > 0 {
		proposals = append(proposals, ioProposal(urn, domain.IOInput, p.Inlets))
	}
	if len(p.Outlets) > 0 {
		proposals = append(proposals, ioProposal(urn, domain.IOOutput, p.Outlets))
	}

	// Force iolet entity materialization so lineage edges resolve even
	// when the datasets were never ingested directly.
	for _, iolet := range append(append([]domain.URN{}, p.Inlets...), p.Outlets...) {
		proposals = append(proposals, materialize(iolet))
	}

	return proposals
}

func ioProposal(urn domain.URN, direction domain.IODirection, datasets []domain.URN) *emitter.ChangeProposal {
	aspect := &domain.DataProcessInstanceIO{Direction: direction, Datasets: datasets}
	return &emitter.ChangeProposal{
		EntityType: "dataProcessInstance",
		EntityURN:  urn,
		ChangeType: domain.ChangeTypeUpsert,
		AspectName: aspect.AspectName(),
		Aspect:     aspect,
	}
}

func materialize(urn domain.URN) *emitter.ChangeProposal {
	return &emitter.ChangeProposal{
		EntityType: urn.EntityType(),
		EntityURN:  urn,
		ChangeType: domain.ChangeTypeUpsert,
		AspectName: "status",
		Aspect:     &domain.Status{Removed: false},
	}
}
