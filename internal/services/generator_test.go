package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHuggingFaceClient_Generate(t *testing.T) {
	var got hfRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gpt2", r.URL.Path)
		assert.Equal(t, "Bearer hf-token", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `[{"generated_text":"prompt and more"}]`)
	}))
	defer srv.Close()

	c := NewHuggingFaceClient(srv.URL, "gpt2", "hf-token", srv.Client(), nil)
	text, err := c.Generate(context.Background(), "prompt", GenerationParams{MaxNewTokens: 60, Temperature: 0.7, TopK: 50, DoSample: true})
	require.NoError(t, err)
	assert.Equal(t, "prompt and more", text)
	assert.Equal(t, "prompt", got.Inputs)
	assert.Equal(t, 60, got.Parameters.MaxNewTokens)
	assert.True(t, got.Options.WaitForModel)
}

func TestHuggingFaceClient_Errors(t *testing.T) {
	bodies := map[int]string{
		http.StatusServiceUnavailable: `{"error":"Model is loading"}`,
		http.StatusOK:                 `[]`,
	}
	for status, body := range bodies {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			fmt.Fprint(w, body)
		}))
		_, err := NewHuggingFaceClient(srv.URL, "gpt2", "", srv.Client(), nil).Generate(context.Background(), "p", GenerationParams{})
		srv.Close()
		assert.Error(t, err, status)
	}
}
