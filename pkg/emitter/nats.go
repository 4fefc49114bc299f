package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSConfig configures the asynchronous JetStream transport.
type NATSConfig struct {
	URL            string
	Name           string
	StreamName     string
	SubjectPrefix  string
	ConnectTimeout time.Duration
	ReconnectWait  time.Duration
	MaxReconnects  int
	MaxPending     int
}

// NATSEmitter publishes serialized proposals to a JetStream stream. Emission
// is asynchronous: EmitAsync returns immediately and the callback fires
// exactly once when the broker acks or rejects the message.
type NATSEmitter struct {
	nc     *natsgo.Conn
	js     natsgo.JetStreamContext
	config NATSConfig
	logger *zap.Logger

	wg sync.WaitGroup
}

// NewNATSEmitter connects to the broker and ensures the proposal stream
// exists.
func NewNATSEmitter(config NATSConfig, logger *zap.Logger) (*NATSEmitter, error) {
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 10 * time.Second
	}
	if config.ReconnectWait == 0 {
		config.ReconnectWait = 2 * time.Second
	}
	if config.MaxReconnects == 0 {
		config.MaxReconnects = 60
	}
	if config.MaxPending == 0 {
		config.MaxPending = 256
	}
	if config.StreamName == "" {
		config.StreamName = "LODESTAR_PROPOSALS"
	}
	if config.SubjectPrefix == "" {
		config.SubjectPrefix = "lodestar.proposals"
	}

	opts := []natsgo.Option{
		natsgo.Timeout(config.ConnectTimeout),
		natsgo.ReconnectWait(config.ReconnectWait),
		natsgo.MaxReconnects(config.MaxReconnects),
	}
	if config.Name != "" {
		opts = append(opts, natsgo.Name(config.Name))
	}

	nc, err := natsgo.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream(natsgo.PublishAsyncMaxPending(config.MaxPending))
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	if _, err := js.StreamInfo(config.StreamName); err != nil {
		_, err = js.AddStream(&natsgo.StreamConfig{
			Name:     config.StreamName,
			Subjects: []string{config.SubjectPrefix + ".>"},
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("failed to create stream %s: %w", config.StreamName, err)
		}
	}

	return &NATSEmitter{nc: nc, js: js, config: config, logger: logger}, nil
}

// EmitAsync publishes one serialized proposal. The callback fires exactly
// once from a background goroutine when the broker acknowledges or rejects
// it.
func (e *NATSEmitter) EmitAsync(_ context.Context, wire *WireProposal, cb Callback) error {
	if cb == nil {
		return ErrMissingCallback
	}
	data, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("marshal proposal: %w", err)
	}

	msg := natsgo.NewMsg(fmt.Sprintf("%s.%s", e.config.SubjectPrefix, wire.EntityType))
	msg.Data = data
	if wire.EntityURN != "" {
		msg.Header.Set("Entity-Urn", wire.EntityURN)
	}

	future, err := e.js.PublishMsgAsync(msg)
	if err != nil {
		return fmt.Errorf("publish proposal: %w", err)
	}

	urn := wire.EntityURN
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		select {
		case <-future.Ok():
			cb(nil, "")
		case err := <-future.Err():
			e.logger.Warn("broker rejected proposal",
				zap.String("entity_urn", urn), zap.Error(err))
			cb(err, fmt.Sprintf("failed to publish %s", urn))
		}
	}()
	return nil
}

// Flush blocks until every outstanding publish has been acked or rejected
// and its callback has fired.
func (e *NATSEmitter) Flush(ctx context.Context) error {
	select {
	case <-e.js.PublishAsyncComplete():
	case <-ctx.Done():
		return ctx.Err()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains the connection.
func (e *NATSEmitter) Close() error {
	e.nc.Close()
	return nil
}
