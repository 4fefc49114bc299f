package domain

import (
	"fmt"
	"strings"
)

// URNPrefix is the namespace prefix every Lodestar entity identifier
// carries. URNs are opaque strings of the form
// urn:ls:<entityType>:<id-tuple-or-string>.
const URNPrefix = "urn:ls:"

// Environment identifies the fabric a dataset belongs to.
type Environment string

const (
	EnvProd Environment = "PROD"
	EnvDev  Environment = "DEV"
	EnvTest Environment = "TEST"
)

// URN is the canonical string identity of a catalog entity. Two URNs are
// equal iff their canonical string forms match.
type URN string

// ParseURN validates the canonical form of a raw urn string.
func ParseURN(raw string) (URN, error) {
	if !strings.HasPrefix(raw, URNPrefix) {
		return "", fmt.Errorf("urn %q must start with %s", raw, URNPrefix)
	}
	parts := strings.SplitN(raw, ":", 4)
	if len(parts) < 4 || parts[2] == "" || parts[3] == "" {
		return "", fmt.Errorf("urn %q is missing an entity type or id", raw)
	}
	return URN(raw), nil
}

func (u URN) String() string {
	return string(u)
}

// EntityType extracts the entity type segment of the urn. Returns an empty
// string for malformed urns.
func (u URN) EntityType() string {
	parts := strings.SplitN(string(u), ":", 4)
	if len(parts) < 4 {
		return ""
	}
	return parts[2]
}

// MakeDataPlatformURN builds the urn for a source platform (postgres, s3,
// pulsar, ...).
func MakeDataPlatformURN(platform string) URN {
	if strings.HasPrefix(platform, URNPrefix+"dataPlatform:") {
		return URN(platform)
	}
	return URN(fmt.Sprintf("%sdataPlatform:%s", URNPrefix, platform))
}

// MakeDatasetURN builds a dataset urn from its platform, name and
// environment tuple.
func MakeDatasetURN(platform, name string, env Environment) URN {
	return URN(fmt.Sprintf("%sdataset:(%s,%s,%s)", URNPrefix, MakeDataPlatformURN(platform), name, env))
}

// MakeDataFlowURN builds the urn of a flow (a pipeline definition) owned by
// an orchestrator.
func MakeDataFlowURN(orchestrator, flowID, cluster string) URN {
	return URN(fmt.Sprintf("%sdataFlow:(%s,%s,%s)", URNPrefix, orchestrator, flowID, cluster))
}

// MakeDataJobURN builds the urn of a job belonging to a flow.
func MakeDataJobURN(flow URN, jobID string) URN {
	return URN(fmt.Sprintf("%sdataJob:(%s,%s)", URNPrefix, flow, jobID))
}

// MakeDataProcessInstanceURN builds the urn of one execution of a job or
// flow.
func MakeDataProcessInstanceURN(instanceID string) URN {
	return URN(fmt.Sprintf("%sdataProcessInstance:%s", URNPrefix, instanceID))
}
