package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRestEmitterEmit(t *testing.T) {
	var received map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/aspects", r.URL.Path)
		require.Equal(t, "ingestProposal", r.URL.Query().Get("action"))
		assert.Equal(t, "2.0.0", r.Header.Get("X-RestLi-Protocol-Version"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
	}))
	defer server.Close()

	e, err := NewRestEmitter(RestConfig{Server: server.URL, Token: "secret"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	wire, err := testProposal().Serialize()
	require.NoError(t, err)
	require.NoError(t, e.Emit(context.Background(), wire))

	proposal, ok := received["proposal"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "dataset", proposal["entityType"])
	assert.Equal(t, "UPSERT", proposal["changeType"])
}

func TestRestEmitterRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "aspect schema mismatch", http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	e, err := NewRestEmitter(RestConfig{Server: server.URL}, zaptest.NewLogger(t))
	require.NoError(t, err)

	wire, err := testProposal().Serialize()
	require.NoError(t, err)
	err = e.Emit(context.Background(), wire)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.Contains(t, err.Error(), "aspect schema mismatch")
}

func TestRestEmitterTestConnection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/config", r.URL.Path)
		fmt.Fprint(w, `{"statefulIngestionCapable": true}`)
	}))
	defer server.Close()

	e, err := NewRestEmitter(RestConfig{Server: server.URL}, zaptest.NewLogger(t))
	require.NoError(t, err)

	cfg, err := e.TestConnection(context.Background())
	require.NoError(t, err)
	assert.Equal(t, true, cfg["statefulIngestionCapable"])
}
