package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AnshRaj112/agentdesk-backend/internal/metrics"
)

// GenerationParams are the sampling parameters of a text-generation call.
type GenerationParams struct {
	MaxNewTokens int     `json:"max_new_tokens"`
	Temperature  float64 `json:"temperature"`
	TopK         int     `json:"top_k"`
	DoSample     bool    `json:"do_sample"`
}

// TextGenerator completes a prompt. The returned text may echo the prompt.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

// HuggingFaceClient calls the Hugging Face inference API text-generation task.
type HuggingFaceClient struct {
	baseURL    string
	model      string
	token      string
	httpClient *http.Client
	metrics    *metrics.Collector
}

func NewHuggingFaceClient(baseURL, model, token string, httpClient *http.Client, m *metrics.Collector) *HuggingFaceClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &HuggingFaceClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		token:      token,
		httpClient: httpClient,
		metrics:    m,
	}
}

type hfRequest struct {
	Inputs     string           `json:"inputs"`
	Parameters GenerationParams `json:"parameters"`
	Options    hfOptions        `json:"options"`
}

type hfOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}

type hfGeneration struct {
	GeneratedText string `json:"generated_text"`
}

func (c *HuggingFaceClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	start := time.Now()
	text, err := c.generate(ctx, prompt, params)
	c.metrics.RecordUpstream("text_generation", err, time.Since(start))
	return text, err
}

func (c *HuggingFaceClient) generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	payload, err := json.Marshal(hfRequest{
		Inputs:     prompt,
		Parameters: params,
		Options:    hfOptions{WaitForModel: true},
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/models/%s", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("text generation: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out []hfGeneration
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("text generation: decode response: %w", err)
	}
	if len(out) == 0 {
		return "", fmt.Errorf("text generation: empty response")
	}
	return out[0].GeneratedText, nil
}
