package emitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// RestConfig configures the synchronous catalog REST transport.
type RestConfig struct {
	Server       string
	Token        string
	Timeout      time.Duration
	ExtraHeaders map[string]string
}

// RestEmitter delivers proposals to the catalog's ingestProposal endpoint.
// Emit blocks until the catalog has accepted or rejected the write.
type RestEmitter struct {
	config RestConfig
	client *http.Client
	logger *zap.Logger
}

// NewRestEmitter creates a REST transport against a catalog server.
func NewRestEmitter(config RestConfig, logger *zap.Logger) (*RestEmitter, error) {
	if config.Server == "" {
		return nil, fmt.Errorf("rest emitter requires a server address")
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	return &RestEmitter{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger,
	}, nil
}

// Emit posts one serialized proposal to the catalog.
func (e *RestEmitter) Emit(ctx context.Context, wire *WireProposal) error {
	body, err := json.Marshal(map[string]interface{}{"proposal": wire})
	if err != nil {
		return fmt.Errorf("marshal proposal: %w", err)
	}

	url := fmt.Sprintf("%s/aspects?action=ingestProposal", e.config.Server)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-RestLi-Protocol-Version", "2.0.0")
	if e.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+e.config.Token)
	}
	for k, v := range e.config.ExtraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("post proposal: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("catalog rejected proposal for %s: status %d: %s",
			wire.EntityURN, resp.StatusCode, bytes.TrimSpace(detail))
	}

	e.logger.Debug("proposal accepted",
		zap.String("entity_urn", wire.EntityURN),
		zap.String("aspect", wire.AspectName))
	return nil
}

// TestConnection verifies the catalog is reachable and returns its
// capability flags.
func (e *RestEmitter) TestConnection(ctx context.Context) (map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.Server+"/config", nil)
	if err != nil {
		return nil, err
	}
	if e.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+e.config.Token)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog config endpoint returned %d", resp.StatusCode)
	}
	var config map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return config, nil
}
