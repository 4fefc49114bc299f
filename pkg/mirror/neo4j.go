// Package mirror applies emitted change proposals to a local Neo4j graph,
// keeping an offline queryable copy of the catalog's entities.
package mirror

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/lodestar-data/lodestar/pkg/domain"
	"github.com/lodestar-data/lodestar/pkg/emitter"
)

// Config holds Neo4j connectivity.
type Config struct {
	URI      string
	Username string
	Password string
	Database string
}

// Mirror is a synchronous transport that upserts each proposal's aspect
// onto an entity node keyed by urn. Delete proposals detach the node.
type Mirror struct {
	driver neo4j.DriverWithContext
	config Config
	logger *zap.Logger
}

// New connects to Neo4j and verifies connectivity.
func New(config Config, logger *zap.Logger) (*Mirror, error) {
	driver, err := neo4j.NewDriverWithContext(
		config.URI,
		neo4j.BasicAuth(config.Username, config.Password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create driver: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("failed to verify connectivity: %w", err)
	}

	return &Mirror{driver: driver, config: config, logger: logger}, nil
}

// Emit applies one serialized proposal to the mirror graph.
func (m *Mirror) Emit(ctx context.Context, wire *emitter.WireProposal) error {
	session := m.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: m.config.Database,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		if domain.ChangeType(wire.ChangeType) == domain.ChangeTypeDelete {
			return tx.Run(ctx,
				`MATCH (e:Entity {urn: $urn}) DETACH DELETE e`,
				map[string]interface{}{"urn": wire.EntityURN})
		}

		props := map[string]interface{}{
			"entityType":   wire.EntityType,
			"lastModified": time.Now().UnixMilli(),
		}
		if wire.AspectName != "" && wire.Aspect != nil {
			props["aspect_"+wire.AspectName] = string(wire.Aspect.Value)
		}
		return tx.Run(ctx,
			`MERGE (e:Entity {urn: $urn}) SET e += $props`,
			map[string]interface{}{"urn": wire.EntityURN, "props": props})
	})
	if err != nil {
		return fmt.Errorf("mirror proposal for %s: %w", wire.EntityURN, err)
	}

	m.logger.Debug("mirrored proposal",
		zap.String("entity_urn", wire.EntityURN),
		zap.String("aspect", wire.AspectName))
	return nil
}

// Close releases the driver.
func (m *Mirror) Close(ctx context.Context) error {
	return m.driver.Close(ctx)
}
