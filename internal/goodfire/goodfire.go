// Package goodfire is a small client for the Goodfire inference API. It
// covers the two calls the service needs: chat completions and feature
// inspection.
package goodfire

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"mentor-api/internal/metrics"
	"mentor-api/internal/shared"

	"go.uber.org/zap"
)

const (
	completionsPath = "/chat/completions"
	inspectPath     = "/features/inspect"

	maxErrorBody = 64 << 10
)

// ModelRef is either a bare model id or a loaded variant.
type ModelRef interface {
	ModelID() string
	ControllerJSON() json.RawMessage
}

// Model is a bare model identifier.
type Model string

func (m Model) ModelID() string { return string(m) }

func (m Model) ControllerJSON() json.RawMessage { return nil }

// FeatureActivation is one interpretable feature and how strongly it fired.
type FeatureActivation struct {
	Label      string  `json:"label"`
	Activation float64 `json:"activation"`
	UUID       string  `json:"uuid,omitempty"`
}

type Config struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Log        *zap.SugaredLogger
}

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	log        *zap.SugaredLogger
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = shared.DefaultGoodfireBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		tr := &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: 5 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: 5 * time.Second,
			MaxIdleConnsPerHost: 16,
		}
		httpClient = &http.Client{Transport: tr, Timeout: shared.DefaultHTTPTimeout}
	}
	log := cfg.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		log:        log,
	}
}

// CheckCredential reports ErrMissingCredential when no API key is configured.
func (c *Client) CheckCredential() error {
	if c.apiKey == "" {
		return shared.ErrMissingCredential
	}
	return nil
}

type completionRequest struct {
	Model               string               `json:"model"`
	Messages            []shared.ChatMessage `json:"messages"`
	MaxCompletionTokens int                  `json:"max_completion_tokens,omitempty"`
	Stream              bool                 `json:"stream"`
	Controller          json.RawMessage      `json:"controller,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type inspectRequest struct {
	Model      string               `json:"model"`
	Messages   []shared.ChatMessage `json:"messages"`
	Controller json.RawMessage      `json:"controller,omitempty"`
}

type inspectResponse struct {
	Features []FeatureActivation `json:"features"`
}

// Complete issues a non-streaming chat completion and returns the text of the
// first choice.
func (c *Client) Complete(ctx context.Context, messages []shared.ChatMessage, model ModelRef, maxTokens int) (string, error) {
	req := completionRequest{
		Model:               model.ModelID(),
		Messages:            messages,
		MaxCompletionTokens: maxTokens,
		Controller:          model.ControllerJSON(),
	}

	var res completionResponse
	if err := c.postJSON(ctx, "complete", model.ModelID(), completionsPath, req, &res); err != nil {
		return "", err
	}
	if len(res.Choices) == 0 {
		err := fmt.Errorf("%w: empty choices in completion response", shared.ErrUpstream)
		metrics.UpstreamErrors.WithLabelValues("complete", shared.ErrorKind(err)).Inc()
		return "", err
	}
	return res.Choices[0].Message.Content, nil
}

// Inspect returns the feature activations for a conversation in the order
// the API ranked them.
func (c *Client) Inspect(ctx context.Context, messages []shared.ChatMessage, model ModelRef) ([]FeatureActivation, error) {
	req := inspectRequest{
		Model:      model.ModelID(),
		Messages:   messages,
		Controller: model.ControllerJSON(),
	}

	var res inspectResponse
	if err := c.postJSON(ctx, "inspect", model.ModelID(), inspectPath, req, &res); err != nil {
		return nil, err
	}
	return res.Features, nil
}

// TopK returns at most k leading activations. The slice is not re-sorted.
func TopK(features []FeatureActivation, k int) []FeatureActivation {
	if k < 0 {
		k = 0
	}
	if len(features) <= k {
		return features
	}
	return features[:k]
}

func (c *Client) postJSON(ctx context.Context, operation, model, path string, payload any, dest any) (err error) {
	// Checked before anything touches the network
	if err := c.CheckCredential(); err != nil {
		return err
	}

	start := time.Now()
	defer func() {
		metrics.UpstreamDuration.WithLabelValues(operation, model).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.UpstreamErrors.WithLabelValues(operation, shared.ErrorKind(err)).Inc()
			c.log.Warnw("Goodfire request failed", "operation", operation, "model", model, "error", err.Error())
		}
	}()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: marshal payload: %w", shared.ErrUpstream, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %w", shared.ErrUpstream, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrUpstream, err)
	}
	defer func() {
		if closeErr := res.Body.Close(); closeErr != nil {
			c.log.Warnw("Failed to close response body", "error", closeErr)
		}
	}()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return &shared.UpstreamError{StatusCode: res.StatusCode, Message: errorMessage(raw, res.Status)}
	}

	if err := json.NewDecoder(res.Body).Decode(dest); err != nil {
		return fmt.Errorf("%w: decoding %s response: %w", shared.ErrUpstream, operation, err)
	}
	return nil
}

// errorMessage pulls the human readable part out of a vendor error body.
func errorMessage(raw []byte, status string) string {
	var body struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
		Detail  json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if msg := rawMessage(body.Error); msg != "" {
			return msg
		}
		if body.Message != "" {
			return body.Message
		}
		if msg := rawMessage(body.Detail); msg != "" {
			return msg
		}
	}
	if text := strings.TrimSpace(string(raw)); text != "" {
		return text
	}
	return status
}

// rawMessage accepts either a plain string or an object with a message field.
func rawMessage(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	return strings.TrimSpace(string(raw))
}
