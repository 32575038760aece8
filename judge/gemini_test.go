package judge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"post-judge/model"
)

func geminiReply(text string) map[string]any {
	return map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]any{{"text": text}}}},
		},
	}
}

func testRequest() Request {
	return Request{
		Model:       "gemini-test",
		Prompt:      Prompt{System: "sys", User: "post"},
		Temperature: 0.7,
		MaxTokens:   256,
		APIKey:      "test-key",
	}
}

func TestGeminiComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1beta/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		var body geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "sys", body.SystemInstruction.Parts[0].Text)
		assert.Equal(t, "post", body.Contents[0].Parts[0].Text)
		assert.Equal(t, 256, body.GenerationConfig.MaxOutputTokens)

		json.NewEncoder(w).Encode(geminiReply(validVerdict))
	}))
	defer server.Close()

	p := NewGeminiProvider(server.URL, server.Client())
	text, err := p.Complete(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, validVerdict, text)
}

func TestGeminiErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    model.ErrorCode
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			want: model.ErrorProviderError,
		},
		{
			name: "bad request",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
			},
			want: model.ErrorProviderError,
		},
		{
			name: "garbage body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("<html>"))
			},
			want: model.ErrorInvalidResponse,
		},
		{
			name: "no candidates",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}})
			},
			want: model.ErrorInvalidResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			p := NewGeminiProvider(server.URL, server.Client())
			_, err := p.Complete(context.Background(), testRequest())
			require.Error(t, err)
			assert.Equal(t, tt.want, Classify(err))
		})
	}
}

func TestGeminiTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	p := NewGeminiProvider(server.URL, &http.Client{Timeout: 50 * time.Millisecond})
	_, err := p.Complete(context.Background(), testRequest())
	require.Error(t, err)
	assert.Equal(t, model.ErrorTimeout, Classify(err))
}

func TestGeminiConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	p := NewGeminiProvider(url, &http.Client{Timeout: time.Second})
	_, err := p.Complete(context.Background(), testRequest())
	require.Error(t, err)
	assert.Equal(t, model.ErrorConnectionFailed, Classify(err))
}
