package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_CreateEmbedding(t *testing.T) {
	t.Run("returns the embedding vector", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/embeddings", r.URL.Path)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			var req embeddingRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "nomic-embed-text", req.Model)
			assert.Equal(t, "How do I reset my password?", req.Prompt)

			w.Header().Set("Content-Type", "application/json")
			require.NoError(t, json.NewEncoder(w).Encode(embeddingResponse{
				Embedding: []float64{0.1, 0.2, 0.3},
			}))
		}))
		defer server.Close()

		client := NewClientWithOptions(ClientOptions{BaseURL: server.URL})

		vec, err := client.CreateEmbedding(context.Background(), "How do I reset my password?")
		require.NoError(t, err)
		require.Len(t, vec, 3)
		assert.InDelta(t, 0.2, vec[1], 1e-6)
	})

	t.Run("rejects empty input without a request", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("no request expected")
		}))
		defer server.Close()

		client := NewClientWithOptions(ClientOptions{BaseURL: server.URL})

		_, err := client.CreateEmbedding(context.Background(), "   ")
		require.ErrorIs(t, err, ErrEmptyInput)
	})

	t.Run("fails on an empty embedding", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"embedding":[]}`))
		}))
		defer server.Close()

		client := NewClientWithOptions(ClientOptions{BaseURL: server.URL})

		_, err := client.CreateEmbedding(context.Background(), "anything")
		require.ErrorIs(t, err, ErrNoEmbeddingInResponse)
	})

	t.Run("fails on a server error after retries", func(t *testing.T) {
		requests := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		client := NewClientWithOptions(ClientOptions{BaseURL: server.URL, RetryMax: 1})

		_, err := client.CreateEmbedding(context.Background(), "anything")
		require.Error(t, err)
		assert.Equal(t, 2, requests)
	})
}

func TestClient_GenerateText(t *testing.T) {
	t.Run("returns the completion text", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/generate", r.URL.Path)

			var req generateRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "llama3.1", req.Model)
			assert.False(t, req.Stream)
			assert.InDelta(t, 0.1, req.Options.Temperature, 1e-9)
			assert.Equal(t, 500, req.Options.NumPredict)

			w.Header().Set("Content-Type", "application/json")
			require.NoError(t, json.NewEncoder(w).Encode(generateResponse{
				Response: "Use the password reset link on the sign-in page.",
			}))
		}))
		defer server.Close()

		client := NewClientWithOptions(ClientOptions{BaseURL: server.URL})

		text, err := client.GenerateText(context.Background(), "Question: reset password?", 0.1, 500)
		require.NoError(t, err)
		assert.Equal(t, "Use the password reset link on the sign-in page.", text)
	})

	t.Run("rejects an empty prompt", func(t *testing.T) {
		client := NewClientWithOptions(ClientOptions{BaseURL: "http://localhost:0"})

		_, err := client.GenerateText(context.Background(), "", 0.1, 500)
		require.ErrorIs(t, err, ErrEmptyPrompt)
	})

	t.Run("uses configured models", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req generateRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "mistral", req.Model)

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"response":"ok from mistral"}`))
		}))
		defer server.Close()

		client := NewClientWithOptions(ClientOptions{
			BaseURL:         server.URL,
			GenerationModel: "mistral",
		})

		text, err := client.GenerateText(context.Background(), "hello", 0, 0)
		require.NoError(t, err)
		assert.Equal(t, "ok from mistral", text)
	})
}
