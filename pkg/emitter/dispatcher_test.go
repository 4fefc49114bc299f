package emitter

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/lodestar-data/lodestar/pkg/domain"
)

type syncTransport struct {
	err     error
	emitted []*WireProposal
}

func (s *syncTransport) Emit(_ context.Context, wire *WireProposal) error {
	s.emitted = append(s.emitted, wire)
	return s.err
}

type asyncTransport struct {
	mu      sync.Mutex
	err     error
	pending []func()
}

func (a *asyncTransport) EmitAsync(_ context.Context, wire *WireProposal, cb Callback) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	err := a.err
	a.pending = append(a.pending, func() { cb(err, "") })
	return nil
}

// Flush fires every pending callback, the way a broker client completes its
// buffered publishes on flush.
func (a *asyncTransport) Flush(_ context.Context) error {
	a.mu.Lock()
	pending := a.pending
	a.pending = nil
	a.mu.Unlock()
	for _, fire := range pending {
		fire()
	}
	return nil
}

type dualTransport struct {
	syncTransport
	asyncCalls int
}

func (d *dualTransport) EmitAsync(_ context.Context, _ *WireProposal, _ Callback) error {
	d.asyncCalls++
	return nil
}

func testProposal() *ChangeProposal {
	return &ChangeProposal{
		EntityType: "dataset",
		EntityURN:  domain.MakeDatasetURN("postgres", "public.orders", domain.EnvProd),
		ChangeType: domain.ChangeTypeUpsert,
		AspectName: "status",
		Aspect:     &domain.Status{},
	}
}

func TestNewDispatcherRejectsIncapableTransport(t *testing.T) {
	_, err := NewDispatcher(struct{}{}, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoEmitCapability)
}

func TestDispatchSynchronous(t *testing.T) {
	transport := &syncTransport{}
	d, err := NewDispatcher(transport, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.False(t, d.Async())

	var cbErr error
	fired := 0
	err = d.Dispatch(context.Background(), testProposal(), func(e error, _ string) {
		fired++
		cbErr = e
	})
	require.NoError(t, err)
	assert.Equal(t, 1, fired, "callback fires inline on the synchronous path")
	assert.NoError(t, cbErr)
	require.Len(t, transport.emitted, 1)
	assert.Equal(t, "dataset", transport.emitted[0].EntityType)
}

func TestDispatchSynchronousWithoutCallback(t *testing.T) {
	transport := &syncTransport{}
	d, err := NewDispatcher(transport, zaptest.NewLogger(t))
	require.NoError(t, err)

	// The callback is optional when delivery is synchronous.
	require.NoError(t, d.Dispatch(context.Background(), testProposal(), nil))
	assert.Len(t, transport.emitted, 1)
}

func TestDispatchSynchronousFailure(t *testing.T) {
	transport := &syncTransport{err: errors.New("connection refused")}
	d, err := NewDispatcher(transport, zaptest.NewLogger(t))
	require.NoError(t, err)

	var cbErr error
	err = d.Dispatch(context.Background(), testProposal(), func(e error, _ string) { cbErr = e })
	require.Error(t, err)
	assert.Error(t, cbErr, "callback observes the same failure")
}

func TestDispatchAsynchronousRequiresCallback(t *testing.T) {
	transport := &asyncTransport{}
	d, err := NewDispatcher(transport, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.True(t, d.Async())

	err = d.Dispatch(context.Background(), testProposal(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingCallback)
	assert.Empty(t, transport.pending, "rejected before the transport is touched")
}

func TestDispatchAsynchronousCompletesOnDrain(t *testing.T) {
	transport := &asyncTransport{}
	d, err := NewDispatcher(transport, zaptest.NewLogger(t))
	require.NoError(t, err)

	fired := 0
	require.NoError(t, d.Dispatch(context.Background(), testProposal(), func(error, string) { fired++ }))
	assert.Equal(t, 0, fired, "completion is deferred")

	require.NoError(t, d.Drain(context.Background()))
	assert.Equal(t, 1, fired)
}

func TestDispatchAsynchronousFailureReachesCallback(t *testing.T) {
	transport := &asyncTransport{err: errors.New("broker unavailable")}
	d, err := NewDispatcher(transport, zaptest.NewLogger(t))
	require.NoError(t, err)

	var cbErr error
	require.NoError(t, d.Dispatch(context.Background(), testProposal(), func(e error, _ string) { cbErr = e }))
	require.NoError(t, d.Drain(context.Background()))
	assert.Error(t, cbErr)
}

func TestDispatcherPrefersSynchronousCapability(t *testing.T) {
	transport := &dualTransport{}
	d, err := NewDispatcher(transport, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.False(t, d.Async())

	require.NoError(t, d.Dispatch(context.Background(), testProposal(), nil))
	assert.Len(t, transport.emitted, 1)
	assert.Zero(t, transport.asyncCalls)
}

func TestDrainWithoutFlushCapability(t *testing.T) {
	d, err := NewDispatcher(&syncTransport{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.NoError(t, d.Drain(context.Background()))
}
