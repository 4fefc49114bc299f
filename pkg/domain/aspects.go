package domain

import "fmt"

// ChangeType enumerates the kinds of change a proposal can carry.
type ChangeType string

const (
	ChangeTypeUpsert ChangeType = "UPSERT"
	ChangeTypeCreate ChangeType = "CREATE"
	ChangeTypeDelete ChangeType = "DELETE"
	ChangeTypePatch  ChangeType = "PATCH"
)

// KnownChangeType reports whether t is one of the declared change types.
func KnownChangeType(t ChangeType) bool {
	switch t {
	case ChangeTypeUpsert, ChangeTypeCreate, ChangeTypeDelete, ChangeTypePatch:
		return true
	}
	return false
}

// Status marks an entity as active or soft-deleted. Soft-deleted entities
// remain queryable but are flagged inactive.
type Status struct {
	Removed bool
}

func (s *Status) AspectName() string { return "status" }
func (s *Status) Validate() bool     { return true }

func (s *Status) ToObject() map[string]interface{} {
	return map[string]interface{}{"removed": s.Removed}
}

// DatasetProperties carries the primary descriptive facet of a dataset.
type DatasetProperties struct {
	Name             string
	Description      string
	CustomProperties map[string]string
}

func (p *DatasetProperties) AspectName() string { return "datasetProperties" }
func (p *DatasetProperties) Validate() bool     { return true }

func (p *DatasetProperties) ToObject() map[string]interface{} {
	obj := map[string]interface{}{
		"customProperties": stringMapToObject(p.CustomProperties),
	}
	if p.Name != "" {
		obj["name"] = p.Name
	}
	if p.Description != "" {
		obj["description"] = p.Description
	}
	return obj
}

// SubTypes refines the entity type with source-specific kind names
// ("table", "topic", "feature_view").
type SubTypes struct {
	TypeNames []string
}

func (s *SubTypes) AspectName() string { return "subTypes" }
func (s *SubTypes) Validate() bool     { return len(s.TypeNames) > 0 }

func (s *SubTypes) ToObject() map[string]interface{} {
	names := make([]interface{}, 0, len(s.TypeNames))
	for _, n := range s.TypeNames {
		names = append(names, n)
	}
	return map[string]interface{}{"typeNames": names}
}

// DatasetKey addresses a dataset by its identity tuple instead of a
// pre-built urn.
type DatasetKey struct {
	Platform string
	Name     string
	Origin   Environment
}

func (k *DatasetKey) AspectName() string { return "datasetKey" }

func (k *DatasetKey) Validate() bool {
	return k.Platform != "" && k.Name != "" && k.Origin != ""
}

func (k *DatasetKey) ToObject() map[string]interface{} {
	return map[string]interface{}{
		"platform": MakeDataPlatformURN(k.Platform).String(),
		"name":     k.Name,
		"origin":   string(k.Origin),
	}
}

// URN derives the dataset urn addressed by this key.
func (k *DatasetKey) URN() URN {
	return MakeDatasetURN(k.Platform, k.Name, k.Origin)
}

// CheckpointStateBlob is the serialized per-job state carried inside an
// ingestion checkpoint aspect. Payload is opaque to the catalog.
type CheckpointStateBlob struct {
	FormatVersion string
	Serde         string
	Payload       []byte
}

// IngestionCheckpoint is the versioned, timestamped aspect a job's
// checkpoint round-trips through the catalog as.
type IngestionCheckpoint struct {
	TimestampMillis    int64
	PipelineName       string
	PlatformInstanceID string
	RunID              string
	Config             string
	State              CheckpointStateBlob
}

func (c *IngestionCheckpoint) AspectName() string { return "ingestionCheckpoint" }

func (c *IngestionCheckpoint) Validate() bool {
	return c.PipelineName != "" && c.PlatformInstanceID != "" && c.RunID != "" &&
		c.State.FormatVersion != "" && c.State.Serde != ""
}

func (c *IngestionCheckpoint) ToObject() map[string]interface{} {
	return map[string]interface{}{
		"timestampMillis":    c.TimestampMillis,
		"pipelineName":       c.PipelineName,
		"platformInstanceId": c.PlatformInstanceID,
		"runId":              c.RunID,
		"config":             c.Config,
		"state": map[string]interface{}{
			"formatVersion": c.State.FormatVersion,
			"serde":         c.State.Serde,
			"payload":       c.State.Payload,
		},
	}
}

// DataProcessInstanceProperties is the primary facet of one execution of a
// job or flow.
type DataProcessInstanceProperties struct {
	Name             string
	CreatedAtMillis  int64
	CustomProperties map[string]string
}

func (p *DataProcessInstanceProperties) AspectName() string {
	return "dataProcessInstanceProperties"
}

func (p *DataProcessInstanceProperties) Validate() bool {
	return p.Name != "" && p.CreatedAtMillis > 0
}

func (p *DataProcessInstanceProperties) ToObject() map[string]interface{} {
	return map[string]interface{}{
		"name":             p.Name,
		"created":          map[string]interface{}{"time": p.CreatedAtMillis},
		"customProperties": stringMapToObject(p.CustomProperties),
	}
}

// DataProcessInstanceRelationships links an instance to the template it was
// spawned from and to upstream instances it depends on.
type DataProcessInstanceRelationships struct {
	ParentTemplate    URN
	UpstreamInstances []URN
}

func (r *DataProcessInstanceRelationships) AspectName() string {
	return "dataProcessInstanceRelationships"
}

func (r *DataProcessInstanceRelationships) Validate() bool {
	return r.ParentTemplate != "" || len(r.UpstreamInstances) > 0
}

func (r *DataProcessInstanceRelationships) ToObject() map[string]interface{} {
	obj := map[string]interface{}{
		"upstreamInstances": urnsToObject(r.UpstreamInstances),
	}
	if r.ParentTemplate != "" {
		obj["parentTemplate"] = r.ParentTemplate.String()
	}
	return obj
}

// DataProcessInstanceIO records the datasets consumed or produced by an
// instance. Direction selects the aspect name.
type DataProcessInstanceIO struct {
	Direction IODirection
	Datasets  []URN
}

// IODirection distinguishes input from output io aspects.
type IODirection string

const (
	IOInput  IODirection = "input"
	IOOutput IODirection = "output"
)

func (io *DataProcessInstanceIO) AspectName() string {
	return fmt.Sprintf("dataProcessInstance%s", map[IODirection]string{
		IOInput:  "Input",
		IOOutput: "Output",
	}[io.Direction])
}

func (io *DataProcessInstanceIO) Validate() bool {
	return (io.Direction == IOInput || io.Direction == IOOutput) && len(io.Datasets) > 0
}

func (io *DataProcessInstanceIO) ToObject() map[string]interface{} {
	key := "inputs"
	if io.Direction == IOOutput {
		key = "outputs"
	}
	return map[string]interface{}{key: urnsToObject(io.Datasets)}
}

func stringMapToObject(m map[string]string) map[string]interface{} {
	obj := make(map[string]interface{}, len(m))
	for k, v := range m {
		obj[k] = v
	}
	return obj
}

func urnsToObject(urns []URN) []interface{} {
	out := make([]interface{}, 0, len(urns))
	for _, u := range urns {
		out = append(out, u.String())
	}
	return out
}
