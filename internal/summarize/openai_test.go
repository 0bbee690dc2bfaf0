package summarize

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		require.NotEmpty(t, req.Messages)

		w.WriteHeader(status)
		if status == http.StatusOK {
			body, err := json.Marshal(map[string]any{
				"id":    "chatcmpl-test",
				"model": req.Model,
				"choices": []map[string]any{
					{
						"index":         0,
						"message":       map[string]string{"role": "assistant", "content": content},
						"finish_reason": "stop",
					},
				},
			})
			require.NoError(t, err)
			_, _ = w.Write(body)
			return
		}
		_, _ = w.Write([]byte(`{"error":{"type":"server_error","message":"boom"}}`))
	}))
}

func newTestClient(url string) *OpenAIClient {
	return NewOpenAIClient("test-key", "test-model", url, 1, 5*time.Second)
}

func TestOpenAISummarize(t *testing.T) {
	srv := chatServer(t, http.StatusOK, `"Review the contract by Friday."`)
	defer srv.Close()

	got, err := newTestClient(srv.URL).Summarize(
		context.Background(), "Contract", "Please review the attached contract.",
	)
	require.NoError(t, err)

	// Wrapping quotes are stripped and the length clamped.
	assert.Equal(t, "Review the contract by Friday.", got)
	assert.LessOrEqual(t, len(got), MaxSummaryLen)
}

func TestOpenAISummarizeEmptyCompletion(t *testing.T) {
	srv := chatServer(t, http.StatusOK, "   ")
	defer srv.Close()

	_, err := newTestClient(srv.URL).Summarize(context.Background(), "s", "b")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestOpenAIClassifyNormalizes(t *testing.T) {
	srv := chatServer(t, http.StatusOK, "Marketing.")
	defer srv.Close()

	got, err := newTestClient(srv.URL).Classify(context.Background(), "Sale!", "Buy now")
	require.NoError(t, err)
	assert.Equal(t, LabelMarketing, got)
}

func TestOpenAIQuotaError(t *testing.T) {
	srv := chatServer(t, http.StatusTooManyRequests, "")
	defer srv.Close()

	_, err := newTestClient(srv.URL).Summarize(context.Background(), "s", "b")
	require.ErrorIs(t, err, ErrQuotaExceeded)
	assert.Contains(t, err.Error(), "boom")
}

func TestOpenAIServerError(t *testing.T) {
	srv := chatServer(t, http.StatusInternalServerError, "")
	defer srv.Close()

	_, err := newTestClient(srv.URL).Summarize(context.Background(), "s", "b")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestOpenAIConnectionRefused(t *testing.T) {
	srv := chatServer(t, http.StatusOK, "ok")
	srv.Close()

	err := newTestClient(srv.URL).Ping(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
}
