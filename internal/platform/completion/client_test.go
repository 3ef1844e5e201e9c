package completion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Options{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Timeout: 2 * time.Second,
	})
}

func TestCompleteReturnsAssistantContent(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]interface{}

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices": [{"message": {"content": "{\"answer\": 42}"}}]}`))
	})

	content, err := client.Complete(context.Background(), "give me an answer")
	require.NoError(t, err)
	assert.Equal(t, `{"answer": 42}`, content)

	assert.Equal(t, "/v1/chat/completions", gotPath)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "gpt-3.5-turbo", gotBody["model"])
	messages, ok := gotBody["messages"].([]interface{})
	require.True(t, ok)
	assert.Len(t, messages, 2)
	format, ok := gotBody["response_format"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "json_object", format["type"])
}

func TestCompleteServerErrorIsUnavailable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	_, err := client.Complete(context.Background(), "prompt")
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestCompleteEmptyContentIsUnavailable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	})

	_, err := client.Complete(context.Background(), "prompt")
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestCompleteInvalidJSONIsUnavailable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json at all`))
	})

	_, err := client.Complete(context.Background(), "prompt")
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestCompleteUnreachableHostIsUnavailable(t *testing.T) {
	client := NewClient(Options{
		APIKey:  "test-key",
		BaseURL: "http://127.0.0.1:1",
		Timeout: 500 * time.Millisecond,
	})

	_, err := client.Complete(context.Background(), "prompt")
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestClientWithoutKeyIsDisabled(t *testing.T) {
	client := NewClient(Options{})
	assert.False(t, client.IsAvailable())

	_, err := client.Complete(context.Background(), "prompt")
	assert.True(t, errors.Is(err, ErrUnavailable))

	placeholder := NewClient(Options{APIKey: "your_openai_api_key_here"})
	assert.False(t, placeholder.IsAvailable())
}

func TestClientWithKeyIsAvailable(t *testing.T) {
	client := NewClient(Options{APIKey: "sk-real"})
	assert.True(t, client.IsAvailable())
}
