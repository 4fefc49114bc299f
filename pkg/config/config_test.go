package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRecipe(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadYAMLRecipe(t *testing.T) {
	path := writeRecipe(t, "recipe.yaml", `
pipeline_name: postgres-prod
platform_instance_id: primary
source:
  type: file
  file:
    path: ./proposals.ndjson
sink:
  type: rest
  rest:
    server: http://catalog:8080
    token: secret
stateful:
  enabled: true
  remove_stale_metadata: true
`)

	recipe, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres-prod", recipe.PipelineName)
	assert.Equal(t, "http://catalog:8080", recipe.Sink.Rest.Server)
	assert.True(t, recipe.Stateful.RemoveStaleMetadata)

	// Defaults fill the gaps.
	assert.Equal(t, 30*time.Second, recipe.Sink.Rest.Timeout)
	assert.Equal(t, "http://catalog:8080", recipe.Graph.Server, "graph server defaults to the rest sink")
	assert.Equal(t, "secret", recipe.Graph.Token)
}

func TestLoadJSONRecipe(t *testing.T) {
	path := writeRecipe(t, "recipe.json", `{
		"pipeline_name": "pulsar-prod",
		"source": {"type": "file", "file": {"path": "in.ndjson"}},
		"sink": {"type": "file", "file": {"path": "out.ndjson"}}
	}`)

	recipe, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "pulsar-prod", recipe.PipelineName)
	assert.Equal(t, "out.ndjson", recipe.Sink.File.Path)
}

func TestValidateRejectsBadRecipes(t *testing.T) {
	valid := func() *Recipe {
		r := &Recipe{
			PipelineName: "p",
			Source:       SourceConfig{Type: "file", File: FileSourceConfig{Path: "in"}},
			Sink:         SinkConfig{Type: "file", File: FileSinkConfig{Path: "out"}},
		}
		r.applyDefaults()
		return r
	}
	require.NoError(t, valid().Validate())

	t.Run("missing pipeline name", func(t *testing.T) {
		r := valid()
		r.PipelineName = ""
		assert.Error(t, r.Validate())
	})

	t.Run("unknown sink", func(t *testing.T) {
		r := valid()
		r.Sink.Type = "carrier-pigeon"
		assert.Error(t, r.Validate())
	})

	t.Run("kafka sink without brokers", func(t *testing.T) {
		r := valid()
		r.Sink.Type = "kafka"
		assert.Error(t, r.Validate())
	})

	t.Run("stateful without platform instance", func(t *testing.T) {
		r := valid()
		r.Stateful.Enabled = true
		assert.Error(t, r.Validate())
	})
}

func TestSnapshotStripsCredentials(t *testing.T) {
	r := &Recipe{
		PipelineName: "p",
		Sink: SinkConfig{
			Type: "rest",
			Rest: RestSinkConfig{Server: "http://catalog:8080", Token: "secret"},
		},
		Graph: GraphConfig{Token: "secret"},
	}
	snapshot, err := r.Snapshot()
	require.NoError(t, err)
	assert.NotContains(t, snapshot, "secret")
	assert.Contains(t, snapshot, "http://catalog:8080")
}
