package emitter

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	// ErrMissingCallback is returned when asynchronous emission is
	// attempted without a completion callback. Raised before any network
	// call.
	ErrMissingCallback = errors.New("asynchronous emission requires a callback")

	// ErrNoEmitCapability is returned when the supplied transport handle
	// exposes neither the synchronous nor the asynchronous capability.
	ErrNoEmitCapability = errors.New("transport exposes no emit capability")
)

// Callback is invoked exactly once when an asynchronous emission completes
// or fails.
type Callback func(err error, message string)

// Emitter is the synchronous transport capability: Emit blocks until the
// remote has accepted or rejected the write.
type Emitter interface {
	Emit(ctx context.Context, proposal *WireProposal) error
}

// AsyncEmitter is the asynchronous transport capability: EmitAsync returns
// immediately and the callback fires exactly once on completion.
type AsyncEmitter interface {
	EmitAsync(ctx context.Context, proposal *WireProposal, cb Callback) error
}

// Flusher is the optional drain capability: Flush blocks until every
// outstanding asynchronous emission has completed.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Dispatcher routes finished change proposals to a transport, selecting
// behavior by which capability the handle exposes, resolved once at
// construction.
type Dispatcher struct {
	sync   Emitter
	async  AsyncEmitter
	flush  Flusher
	logger *zap.Logger
}

// NewDispatcher inspects the transport handle's capabilities. When a handle
// exposes both, the synchronous path wins.
func NewDispatcher(transport interface{}, logger *zap.Logger) (*Dispatcher, error) {
	d := &Dispatcher{logger: logger}
	if s, ok := transport.(Emitter); ok {
		d.sync = s
	}
	if a, ok := transport.(AsyncEmitter); ok {
		d.async = a
	}
	if f, ok := transport.(Flusher); ok {
		d.flush = f
	}
	if d.sync == nil && d.async == nil {
		return nil, fmt.Errorf("%w: %T", ErrNoEmitCapability, transport)
	}
	return d, nil
}

// Async reports whether emissions complete asynchronously.
func (d *Dispatcher) Async() bool {
	return d.sync == nil
}

// Dispatch serializes one proposal and delivers it. On a synchronous
// transport the call blocks and the optional callback is invoked with the
// outcome before returning. On an asynchronous transport the callback is
// mandatory and fires exactly once, later.
func (d *Dispatcher) Dispatch(ctx context.Context, proposal *ChangeProposal, cb Callback) error {
	wire, err := proposal.Serialize()
	if err != nil {
		return fmt.Errorf("serialize proposal for %s: %w", proposal.EntityURN, err)
	}
	return d.DispatchRaw(ctx, wire, cb)
}

// DispatchRaw delivers an already-serialized proposal.
func (d *Dispatcher) DispatchRaw(ctx context.Context, wire *WireProposal, cb Callback) error {
	if d.sync != nil {
		err := d.sync.Emit(ctx, wire)
		if cb != nil {
			if err != nil {
				cb(err, fmt.Sprintf("failed to emit %s", wire.EntityURN))
			} else {
				cb(nil, "")
			}
		}
		if err != nil {
			return fmt.Errorf("emit %s: %w", wire.EntityURN, err)
		}
		return nil
	}

	if cb == nil {
		return fmt.Errorf("%w (entity %s)", ErrMissingCallback, wire.EntityURN)
	}
	if err := d.async.EmitAsync(ctx, wire, cb); err != nil {
		return fmt.Errorf("emit %s: %w", wire.EntityURN, err)
	}
	return nil
}

// Drain blocks until all outstanding asynchronous emissions have completed.
// A transport without the drain capability has nothing outstanding.
func (d *Dispatcher) Drain(ctx context.Context) error {
	if d.flush == nil {
		return nil
	}
	d.logger.Debug("draining outstanding emissions")
	return d.flush.Flush(ctx)
}
