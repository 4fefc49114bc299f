package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/lodestar-data/lodestar/pkg/domain"
	"github.com/lodestar-data/lodestar/pkg/ingestion"
	"github.com/lodestar-data/lodestar/pkg/state"
)

func writeProposals(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "proposals.ndjson")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func collect(t *testing.T, s *Source, observer ingestion.URNObserver) []*ingestion.WorkUnit {
	t.Helper()
	var units []*ingestion.WorkUnit
	require.NoError(t, s.WorkUnits(context.Background(), observer, func(u *ingestion.WorkUnit) error {
		units = append(units, u)
		return nil
	}))
	return units
}

func TestFileSourceStreamsInOrder(t *testing.T) {
	path := writeProposals(t, `
{"entityType":"dataset","entityUrn":"urn:ls:dataset:(urn:ls:dataPlatform:postgres,a,PROD)","changeType":"UPSERT"}

{"entityType":"dataset","entityUrn":"urn:ls:dataset:(urn:ls:dataPlatform:postgres,b,PROD)","changeType":"UPSERT"}
`)
	s, err := NewSource(path, zaptest.NewLogger(t))
	require.NoError(t, err)

	observed := state.NewCheckpointState()
	units := collect(t, s, observed)

	require.Len(t, units, 2, "blank lines are skipped")
	assert.Contains(t, units[0].RawProposal.EntityURN, ",a,")
	assert.Contains(t, units[1].RawProposal.EntityURN, ",b,")

	assert.Equal(t, 2, observed.Size())
	assert.True(t, observed.Contains(domain.MakeDatasetURN("postgres", "a", domain.EnvProd)))
}

func TestFileSourceRejectsMalformedLines(t *testing.T) {
	path := writeProposals(t, `{"entityType": not json}`)
	s, err := NewSource(path, zaptest.NewLogger(t))
	require.NoError(t, err)

	err = s.WorkUnits(context.Background(), ingestion.NopObserver{}, func(*ingestion.WorkUnit) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), ":1:")
}

func TestFileSourceRejectsBadURNs(t *testing.T) {
	path := writeProposals(t, `{"entityType":"dataset","entityUrn":"not-a-urn","changeType":"UPSERT"}`)
	s, err := NewSource(path, zaptest.NewLogger(t))
	require.NoError(t, err)

	err = s.WorkUnits(context.Background(), ingestion.NopObserver{}, func(*ingestion.WorkUnit) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "urn")
}

func TestFileSourceMissingFile(t *testing.T) {
	s, err := NewSource(filepath.Join(t.TempDir(), "absent.ndjson"), zaptest.NewLogger(t))
	require.NoError(t, err)
	err = s.WorkUnits(context.Background(), ingestion.NopObserver{}, func(*ingestion.WorkUnit) error { return nil })
	assert.Error(t, err)
}
