// Package emitter builds well-formed metadata change proposals and delivers
// them to a transport.
package emitter

import (
	"encoding/json"
	"fmt"

	"github.com/lodestar-data/lodestar/pkg/codec"
	"github.com/lodestar-data/lodestar/pkg/domain"
)

// ChangeProposal is one atomic change statement: upsert or delete one
// aspect of one entity. Construction never fails; all well-formedness
// checks are deferred to Validate so batched construction can proceed even
// if a handful of proposals are invalid.
//
// Exactly one of EntityURN and EntityKeyAspect addresses the entity. The
// proposal is never mutated after construction except to attach
// SystemMetadata, stamped once at extraction time.
type ChangeProposal struct {
	EntityType      string
	EntityURN       domain.URN
	EntityKeyAspect domain.KeyAspect
	ChangeType      domain.ChangeType
	AspectName      string
	Aspect          domain.Aspect
	SystemMetadata  *domain.SystemMetadata
	AuditHeader     map[string]interface{}
}

// WireProposal is the serialized change proposal shape the catalog and the
// brokers consume.
type WireProposal struct {
	EntityType      string                 `json:"entityType"`
	EntityURN       string                 `json:"entityUrn,omitempty"`
	EntityKeyAspect *codec.GenericAspect   `json:"entityKeyAspect,omitempty"`
	ChangeType      string                 `json:"changeType"`
	AspectName      string                 `json:"aspectName,omitempty"`
	Aspect          *codec.GenericAspect   `json:"aspect,omitempty"`
	SystemMetadata  *domain.SystemMetadata `json:"systemMetadata,omitempty"`
	AuditHeader     map[string]interface{} `json:"auditHeader,omitempty"`
}

// Validate reports whether the proposal is well formed: the urn-xor-key
// identity invariant holds, present aspects validate, and the generic
// encoded form survives a structural self-check. Pure; no side effects.
func (p *ChangeProposal) Validate() bool {
	hasKey := p.EntityKeyAspect != nil
	hasURN := p.EntityURN != ""
	if hasKey == hasURN {
		return false
	}
	if hasKey && !p.EntityKeyAspect.Validate() {
		return false
	}
	if p.Aspect != nil && !p.Aspect.Validate() {
		return false
	}
	if p.EntityType == "" || !domain.KnownChangeType(p.ChangeType) {
		return false
	}
	if p.Aspect != nil && p.AspectName == "" {
		return false
	}
	wire, err := p.Serialize()
	if err != nil {
		return false
	}
	if wire.Aspect != nil && !json.Valid(wire.Aspect.Value) {
		return false
	}
	return true
}

// Serialize produces the generic encoded form: aspect payloads are run
// through the wire-namespace transform and encoded as content-typed JSON
// blobs.
func (p *ChangeProposal) Serialize() (*WireProposal, error) {
	wire := &WireProposal{
		EntityType:     p.EntityType,
		EntityURN:      p.EntityURN.String(),
		ChangeType:     string(p.ChangeType),
		AspectName:     p.AspectName,
		SystemMetadata: p.SystemMetadata,
		AuditHeader:    p.AuditHeader,
	}
	if p.EntityKeyAspect != nil {
		encoded, err := codec.EncodeAspect(p.EntityKeyAspect)
		if err != nil {
			return nil, fmt.Errorf("serialize key aspect: %w", err)
		}
		wire.EntityKeyAspect = encoded
	}
	if p.Aspect != nil {
		encoded, err := codec.EncodeAspect(p.Aspect)
		if err != nil {
			return nil, fmt.Errorf("serialize aspect %s: %w", p.AspectName, err)
		}
		wire.Aspect = encoded
	}
	return wire, nil
}

// Render pretty-prints the proposal for failure messages. Best-effort: it
// falls back to the raw struct rendering when marshaling fails.
func (p *ChangeProposal) Render() string {
	wire, err := p.Serialize()
	if err != nil {
		return fmt.Sprintf("%+v", *p)
	}
	pretty, err := json.MarshalIndent(wire, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", *p)
	}
	return string(pretty)
}
