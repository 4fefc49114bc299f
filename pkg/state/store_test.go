package state

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/lodestar-data/lodestar/pkg/codec"
	"github.com/lodestar-data/lodestar/pkg/domain"
	"github.com/lodestar-data/lodestar/pkg/emitter"
)

type fakeGraph struct {
	aspect  *codec.GenericAspect
	err     error
	lastURN domain.URN
	filters map[string]string
}

func (g *fakeGraph) GetLatestTimeseriesValue(_ context.Context, urn domain.URN, _ string, filters map[string]string) (*codec.GenericAspect, error) {
	g.lastURN = urn
	g.filters = filters
	return g.aspect, g.err
}

type captureTransport struct {
	emitted []*emitter.WireProposal
	err     error
}

func (c *captureTransport) Emit(_ context.Context, wire *emitter.WireProposal) error {
	c.emitted = append(c.emitted, wire)
	return c.err
}

func newTestStore(t *testing.T, graph GraphReader, transport interface{}) *Store {
	d, err := emitter.NewDispatcher(transport, zaptest.NewLogger(t))
	require.NoError(t, err)
	s := NewStore(graph, d, zaptest.NewLogger(t))
	s.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return s
}

func TestStoreLoadNoPriorCheckpoint(t *testing.T) {
	store := newTestStore(t, &fakeGraph{}, &captureTransport{})

	cp, err := store.Load(context.Background(), testJobKey())
	require.NoError(t, err)
	assert.Nil(t, cp)
}

func TestStoreLoadPropagatesGraphErrors(t *testing.T) {
	graph := &fakeGraph{err: errors.New("catalog unreachable")}
	store := newTestStore(t, graph, &captureTransport{})

	_, err := store.Load(context.Background(), testJobKey())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog unreachable")
}

func TestStoreCommitThenLoad(t *testing.T) {
	transport := &captureTransport{}
	graph := &fakeGraph{}
	store := newTestStore(t, graph, transport)

	cp := NewCheckpoint(testJobKey(), "run-9", "{}")
	cp.State.Observe(ds("a"))
	cp.State.Observe(ds("b"))
	require.NoError(t, store.Commit(context.Background(), cp))
	assert.True(t, store.Committed())

	require.Len(t, transport.emitted, 1)
	wire := transport.emitted[0]
	assert.Equal(t, "dataJob", wire.EntityType)
	assert.Equal(t, testJobKey().URN().String(), wire.EntityURN)
	assert.Equal(t, "ingestionCheckpoint", wire.AspectName)
	assert.Equal(t, "UPSERT", wire.ChangeType)

	// Feed the committed aspect back through the graph reader.
	graph.aspect = wire.Aspect
	restored, err := store.Load(context.Background(), testJobKey())
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.Equal(t, "run-9", restored.RunID)
	assert.Equal(t, cp.State.URNs(), restored.State.URNs())

	assert.Equal(t, testJobKey().URN(), graph.lastURN)
	assert.Equal(t, "postgres-prod", graph.filters["pipelineName"])
	assert.Equal(t, "primary", graph.filters["platformInstanceId"])
}

func TestStoreCommitIsIdempotent(t *testing.T) {
	transport := &captureTransport{}
	store := newTestStore(t, &fakeGraph{}, transport)

	cp := NewCheckpoint(testJobKey(), "run-9", "{}")
	cp.State.Observe(ds("a"))
	require.NoError(t, store.Commit(context.Background(), cp))
	require.NoError(t, store.Commit(context.Background(), cp))

	require.Len(t, transport.emitted, 2)
	first, err := json.Marshal(transport.emitted[0].Aspect)
	require.NoError(t, err)
	second, err := json.Marshal(transport.emitted[1].Aspect)
	require.NoError(t, err)
	assert.JSONEq(t, string(first), string(second), "recommitting writes the same aspect")
}

func TestStoreCommitTransportFailure(t *testing.T) {
	store := newTestStore(t, &fakeGraph{}, &captureTransport{err: errors.New("rejected")})

	cp := NewCheckpoint(testJobKey(), "run-9", "{}")
	err := store.Commit(context.Background(), cp)
	require.Error(t, err)
	assert.False(t, store.Committed())
}

func TestStoreCommitRejectsInvalidKey(t *testing.T) {
	store := newTestStore(t, &fakeGraph{}, &captureTransport{})
	cp := NewCheckpoint(JobKey{PipelineName: "only-name"}, "run-9", "{}")
	assert.Error(t, store.Commit(context.Background(), cp))
}
