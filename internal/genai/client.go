package genai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	googlegenai "google.golang.org/genai"
)

// DefaultBaseURL is the public Gemini API host.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/"

const apiVersion = "v1beta"

// ErrNoAPIKey is returned when the client has no key to send.
var ErrNoAPIKey = errors.New("genai: api key not configured")

// Client generates text with a Gemini model through the Google Gen AI SDK.
type Client struct {
	Model string
	sdk   *googlegenai.Client
}

// New creates a client with the given request timeout. With an empty apiKey it
// returns a client whose calls fail with ErrNoAPIKey.
func New(ctx context.Context, baseURL, apiKey, model string, timeout time.Duration) (*Client, error) {
	c := &Client{Model: model}
	if apiKey == "" {
		return c, nil
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	sdk, err := googlegenai.NewClient(ctx, &googlegenai.ClientConfig{
		APIKey:     apiKey,
		Backend:    googlegenai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
		HTTPOptions: googlegenai.HTTPOptions{
			BaseURL:    baseURL,
			APIVersion: apiVersion,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	c.sdk = sdk
	return c, nil
}

// GenerateText sends a single-turn prompt and returns the text of the first candidate.
// An empty string with a nil error means the model produced no text.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	if c.sdk == nil {
		return "", ErrNoAPIKey
	}
	resp, err := c.sdk.Models.GenerateContent(ctx, c.Model, googlegenai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("genai generate: %w", err)
	}
	return resp.Text(), nil
}
