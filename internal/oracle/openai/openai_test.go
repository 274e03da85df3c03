package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-wrapped/internal/pipeline"
)

func chatServer(t *testing.T, status int, content string, got *map[string]interface{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if got != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(got))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error": {"message": "rate limited", "type": "rate_limit"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "test-model",
			"choices": []map[string]interface{}{
				{"index": 0, "message": map[string]string{"role": "assistant", "content": content}, "finish_reason": "stop"},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerate(t *testing.T) {
	var body map[string]interface{}
	srv := chatServer(t, http.StatusOK, "  {\"persona_id\": 3}\n", &body)

	o, err := New(Config{APIKey: "test-key", BaseURL: srv.URL + "/v1/", Model: "test-model"})
	require.NoError(t, err)

	got, err := o.Generate(context.Background(), pipeline.OracleRequest{
		System:    "you are a coach",
		User:      "here are my transactions",
		MaxTokens: 1024,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"persona_id": 3}`, got)

	assert.Equal(t, "test-model", body["model"])
	assert.EqualValues(t, 1024, body["max_tokens"])
	assert.EqualValues(t, 1, body["top_p"])
	assert.Less(t, body["temperature"].(float64), 1e-6)

	messages := body["messages"].([]interface{})
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]interface{})["role"])
	assert.Equal(t, "here are my transactions", messages[1].(map[string]interface{})["content"])
}

func TestGenerate_HTTPError(t *testing.T) {
	srv := chatServer(t, http.StatusTooManyRequests, "", nil)
	o, err := New(Config{APIKey: "test-key", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	_, err = o.Generate(context.Background(), pipeline.OracleRequest{User: "x"})
	assert.ErrorContains(t, err, "rate limited")
}

func TestNew_RequiresKey(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
