package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	systemPrompt       = "You are a helpful assistant that generates concise summaries of notes."
	userPromptTemplate = "Please provide a brief summary of this note: %s"
	defaultTemperature = 0.7
	defaultMaxTokens   = 150
	maxErrorBodyBytes  = 2048
)

var (
	errMissingAPIKey  = errors.New("summary: groq api key is required")
	errMissingBaseURL = errors.New("summary: groq base url is required")
	errMissingModel   = errors.New("summary: groq model is required")
	errNoChoices      = errors.New("summary: no choices returned")
)

// GroqConfig configures the Groq chat completion client.
type GroqConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// GroqGenerator calls an OpenAI-compatible chat completions endpoint.
type GroqGenerator struct {
	apiKey     string
	endpoint   string
	model      string
	httpClient *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// UpstreamError reports a non-2xx answer from the completion endpoint.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("summary: upstream returned status %d: %s", e.StatusCode, e.Body)
}

// NewGroqGenerator validates the configuration and returns a generator.
func NewGroqGenerator(cfg GroqConfig) (*GroqGenerator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errMissingAPIKey
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errMissingBaseURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errMissingModel
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &GroqGenerator{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		endpoint:   baseURL + "/chat/completions",
		model:      strings.TrimSpace(cfg.Model),
		httpClient: httpClient,
	}, nil
}

// Summarize requests a single non-streaming completion and returns the first choice.
func (g *GroqGenerator) Summarize(ctx context.Context, content string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf(userPromptTemplate, content)},
		},
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
	})
	if err != nil {
		return "", err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Authorization", "Bearer "+g.apiKey)

	response, err := g.httpClient.Do(request)
	if err != nil {
		return "", err
	}
	defer response.Body.Close()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(response.Body, maxErrorBodyBytes))
		return "", &UpstreamError{StatusCode: response.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var decoded chatResponse
	if err := json.NewDecoder(response.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("summary: decode completion: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", errNoChoices
	}
	return strings.TrimSpace(decoded.Choices[0].Message.Content), nil
}
