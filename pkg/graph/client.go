// Package graph is the client for the catalog's read API. It is an
// explicit injected dependency of whatever component needs to read current
// catalog state, never a global.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/lodestar-data/lodestar/pkg/codec"
	"github.com/lodestar-data/lodestar/pkg/domain"
)

// Config holds connectivity to the catalog server.
type Config struct {
	Server       string
	Token        string
	Timeout      time.Duration
	ExtraHeaders map[string]string
}

// Client queries the catalog over REST.
type Client struct {
	config Config
	client *http.Client
	logger *zap.Logger
}

// NewClient creates a catalog graph client.
func NewClient(config Config, logger *zap.Logger) (*Client, error) {
	if config.Server == "" {
		return nil, fmt.Errorf("graph client requires a server address")
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	return &Client{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger,
	}, nil
}

// ServerConfig fetches the catalog's capability flags
// (statefulIngestionCapable among them).
func (c *Client) ServerConfig(ctx context.Context) (map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.Server+"/config", nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog config endpoint returned %d", resp.StatusCode)
	}
	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return out, nil
}

// GetLatestTimeseriesValue fetches the most recent value of a timeseries
// aspect on an entity, filtered by exact-match criteria. Returns nil with
// no error when the aspect has never been written.
func (c *Client) GetLatestTimeseriesValue(ctx context.Context, urn domain.URN, aspectName string, filters map[string]string) (*codec.GenericAspect, error) {
	criteria := make([]map[string]interface{}, 0, len(filters))
	fields := make([]string, 0, len(filters))
	for field := range filters {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		criteria = append(criteria, map[string]interface{}{
			"field":     field,
			"value":     filters[field],
			"condition": "EQUAL",
		})
	}

	query := map[string]interface{}{
		"urn":         urn.String(),
		"entity":      urn.EntityType(),
		"aspect":      aspectName,
		"latestValue": true,
		"filter":      map[string]interface{}{"or": []interface{}{map[string]interface{}{"and": criteria}}},
	}

	var resp struct {
		Value struct {
			Values []struct {
				Aspect *codec.GenericAspect `json:"aspect"`
			} `json:"values"`
		} `json:"value"`
	}
	found, err := c.post(ctx, "/aspects?action=getTimeseriesAspectValues", query, &resp)
	if err != nil {
		return nil, err
	}
	if !found || len(resp.Value.Values) == 0 || resp.Value.Values[0].Aspect == nil {
		return nil, nil
	}
	if n := len(resp.Value.Values); n > 1 {
		return nil, fmt.Errorf("latest-value query for %s returned %d values", aspectName, n)
	}
	return resp.Value.Values[0].Aspect, nil
}

// post issues a JSON POST. It reports found=false on a 404 instead of an
// error.
func (c *Client) post(ctx context.Context, path string, payload interface{}, out interface{}) (bool, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("marshal query: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Server+path, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("query catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return false, fmt.Errorf("catalog returned %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return true, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-RestLi-Protocol-Version", "2.0.0")
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}
	for k, v := range c.config.ExtraHeaders {
		req.Header.Set(k, v)
	}
}
