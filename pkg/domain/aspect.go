package domain

// Aspect is a named, independently versioned facet of an entity's metadata.
// Concrete aspect types are plain structs; ToObject renders the structural
// form that the wire codec serializes.
type Aspect interface {
	// AspectName returns the catalog-registered name of this aspect
	// ("status", "datasetProperties", ...).
	AspectName() string

	// Validate reports whether the aspect payload is well formed. It must
	// be side-effect free.
	Validate() bool

	// ToObject renders the aspect as a generic structure of maps, slices
	// and scalars, keyed by field name.
	ToObject() map[string]interface{}
}

// KeyAspect is an aspect that deterministically derives the urn of the
// entity it addresses. A change proposal may carry a key aspect instead of
// an explicit urn.
type KeyAspect interface {
	Aspect

	// URN derives the entity urn addressed by this key.
	URN() URN
}

// SystemMetadata is stamped onto every extracted record exactly once, at
// extraction time.
type SystemMetadata struct {
	LastObserved int64  `json:"lastObserved"`
	RunID        string `json:"runId"`
}

// ToObject renders the metadata for the wire proposal.
func (m *SystemMetadata) ToObject() map[string]interface{} {
	return map[string]interface{}{
		"lastObserved": m.LastObserved,
		"runId":        m.RunID,
	}
}
