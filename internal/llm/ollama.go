package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaClient calls the Ollama generate API.
type OllamaClient struct {
	host       string
	model      string
	httpClient *http.Client
}

func NewOllamaClient(host, model string, timeout time.Duration) *OllamaClient {
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	return &OllamaClient{
		host:  strings.TrimRight(host, "/"),
		model: model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	System  string        `json:"system,omitempty"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

// Complete sends one non-streaming generate request.
func (c *OllamaClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	body, err := json.Marshal(ollamaRequest{
		Model:  c.model,
		System: req.System,
		Prompt: req.Prompt,
		Stream: false,
		Options: ollamaOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &TransportError{Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", &TransportError{Message: "read response: " + err.Error(), Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &TransportError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var out ollamaResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", &TransportError{StatusCode: resp.StatusCode, Message: "decode response: " + err.Error(), Err: err}
	}
	if out.Error != "" {
		return "", &TransportError{StatusCode: resp.StatusCode, Message: out.Error}
	}
	return out.Response, nil
}

// Model returns the configured model name.
func (c *OllamaClient) Model() string { return c.model }

// Close releases resources.
func (c *OllamaClient) Close() {
	c.httpClient.CloseIdleConnections()
}
