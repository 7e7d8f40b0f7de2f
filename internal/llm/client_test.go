package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ratecatalog/internal/config"
)

// newTestServer answers every chat completion with content.
func newTestServer(t *testing.T, content string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req["model"])

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": time.Now().Unix(),
			"model":   "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(config.AIConfig{
		APIKey:         "test-key",
		BaseURL:        srv.URL + "/v1/",
		Model:          "test-model",
		RequestTimeout: time.Second,
	}, zerolog.Nop())
	require.NoError(t, err)
	return c
}

func TestCompleteJSONDecodes(t *testing.T) {
	srv := newTestServer(t, "```json\n{\"answer\": 42}\n```", http.StatusOK)

	var out struct {
		Answer int `json:"answer"`
	}
	require.NoError(t, newClient(t, srv).CompleteJSON(context.Background(), "sys", "user", &out))
	assert.Equal(t, 42, out.Answer)
}

func TestCompleteJSONMalformed(t *testing.T) {
	srv := newTestServer(t, "not json", http.StatusOK)

	var out map[string]any
	err := newClient(t, srv).CompleteJSON(context.Background(), "sys", "user", &out)
	assert.ErrorContains(t, err, "decode model output")
}

func TestCompleteJSONUpstreamError(t *testing.T) {
	srv := newTestServer(t, "", http.StatusServiceUnavailable)

	var out map[string]any
	err := newClient(t, srv).CompleteJSON(context.Background(), "sys", "user", &out)
	assert.ErrorContains(t, err, "chat completion")
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(config.AIConfig{}, zerolog.Nop())
	assert.Error(t, err)
}
