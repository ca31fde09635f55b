// Package encode provides image and text embedding via the tradar encoder
// service, a local model server exposing two endpoints:
//
//   - POST {base}/encode/image  — one image, embedded into every configured
//     image space (dino, metaclip_image) in a single call
//   - POST {base}/encode/text   — a batch of texts, embedded into the
//     metaclip text space
//
// Both endpoints speak JSON. Transient failures are retried with
// exponential backoff, honoring Retry-After on rate limits.
package encode

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// ImageEncoder embeds image bytes into every configured image space.
type ImageEncoder interface {
	EncodeImage(ctx context.Context, imageBytes []byte) (map[string][]float32, error)
}

// TextEncoder embeds text into the text vector space.
type TextEncoder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedTextBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// EncodeError reports unusable encoder input (empty or malformed image
// bytes). It is a caller error, never retried.
type EncodeError struct {
	Reason string
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode: %s", e.Reason)
}

// HTTPError represents an HTTP error with additional context.
type HTTPError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Config holds encoder service configuration.
type Config struct {
	Endpoint    string // base URL of the encoder service
	APIKey      string // optional bearer token
	MaxRetries  int    // default: 3
	TimeoutSecs int    // per-request timeout (default: 60)
	dimensions  int    // text space dims, auto-detected on first call
}

// ResolveConfig resolves encoder configuration.
// Priority: CLI flag > TRADAR_ENCODER_ENDPOINT env var.
func ResolveConfig(cliEndpoint string) (*Config, error) {
	endpoint := cliEndpoint
	if endpoint == "" {
		endpoint = os.Getenv("TRADAR_ENCODER_ENDPOINT")
	}
	if endpoint == "" {
		return nil, fmt.Errorf("encoder endpoint not configured (set TRADAR_ENCODER_ENDPOINT or pass --encoder)")
	}

	config := &Config{
		Endpoint:    strings.TrimRight(endpoint, "/"),
		APIKey:      os.Getenv("TRADAR_ENCODER_API_KEY"),
		MaxRetries:  3,
		TimeoutSecs: 60,
	}
	return config, nil
}

// Validate checks if the encoder configuration is valid and complete.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.TimeoutSecs <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}

// imageRequest is the /encode/image wire format.
type imageRequest struct {
	ImageBase64 string `json:"image_base64"`
}

// imageResponse maps space name to vector.
type imageResponse struct {
	Embeddings map[string][]float32 `json:"embeddings"`
}

// textRequest is the /encode/text wire format.
type textRequest struct {
	Texts []string `json:"texts"`
}

type textResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Client implements ImageEncoder and TextEncoder against the encoder service.
type Client struct {
	config Config
	http   *http.Client
}

// NewClient creates an encoder client with the given configuration.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Client{
		config: *config,
		http: &http.Client{
			Timeout: time.Duration(config.TimeoutSecs) * time.Second,
		},
	}, nil
}

// EncodeImage embeds one image into every image space the service serves.
// Empty bytes are rejected with EncodeError before any network call.
func (c *Client) EncodeImage(ctx context.Context, imageBytes []byte) (map[string][]float32, error) {
	if len(imageBytes) == 0 {
		return nil, &EncodeError{Reason: "empty image bytes"}
	}

	req := imageRequest{ImageBase64: base64.StdEncoding.EncodeToString(imageBytes)}
	var resp imageResponse
	err := c.withRetry(ctx, func() error {
		return c.post(ctx, "/encode/image", req, &resp)
	})
	if err != nil {
		// The service rejects undecodable image data with 422.
		if httpErr, ok := err.(*HTTPError); ok && httpErr.StatusCode == 422 {
			return nil, &EncodeError{Reason: "malformed image bytes: " + httpErr.Message}
		}
		return nil, fmt.Errorf("encoding image: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("encoder returned no embeddings")
	}
	return resp.Embeddings, nil
}

// EmbedText embeds a single text. An empty or whitespace-only text returns
// a zero vector of the detected dimensionality rather than an error.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedTextBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(vecs))
	}
	return vecs[0], nil
}

// EmbedTextBatch embeds multiple texts in a single call. Empty texts are
// not sent to the service; their slots come back as zero vectors.
func (c *Client) EmbedTextBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	nonEmpty := make([]string, 0, len(texts))
	indexMap := make([]int, 0, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) != "" {
			nonEmpty = append(nonEmpty, text)
			indexMap = append(indexMap, i)
		}
	}

	result := make([][]float32, len(texts))
	if len(nonEmpty) > 0 {
		req := textRequest{Texts: nonEmpty}
		var resp textResponse
		err := c.withRetry(ctx, func() error {
			return c.post(ctx, "/encode/text", req, &resp)
		})
		if err != nil {
			return nil, fmt.Errorf("embedding %d texts: %w", len(nonEmpty), err)
		}
		if len(resp.Embeddings) != len(nonEmpty) {
			return nil, fmt.Errorf("expected %d embeddings, got %d", len(nonEmpty), len(resp.Embeddings))
		}
		for i, emb := range resp.Embeddings {
			result[indexMap[i]] = emb
			if len(emb) > 0 {
				c.config.dimensions = len(emb)
			}
		}
	}

	// Empty slots become zero vectors so callers always get a valid vector.
	for i := range result {
		if result[i] == nil {
			result[i] = make([]float32, c.config.dimensions)
		}
	}
	return result, nil
}

// Dimensions returns the text space dimensionality.
// Returns 0 if no text has been embedded yet.
func (c *Client) Dimensions() int {
	return c.config.dimensions
}

// withRetry runs attempt with exponential backoff: 1s, 2s, 4s. Rate limit
// responses honor Retry-After. Client errors other than 429 do not retry.
func (c *Client) withRetry(ctx context.Context, attempt func() error) error {
	var lastErr error
	for i := 0; i <= c.config.MaxRetries; i++ {
		err := attempt()
		if err == nil {
			return nil
		}
		lastErr = err

		if httpErr, ok := err.(*HTTPError); ok {
			if httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 && httpErr.StatusCode != 429 {
				return err
			}
		}
		if i == c.config.MaxRetries {
			break
		}

		backoff := time.Duration(1<<i) * time.Second
		if httpErr, ok := err.(*HTTPError); ok && httpErr.StatusCode == 429 && httpErr.RetryAfter > 0 {
			backoff = httpErr.RetryAfter
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

// post makes a single JSON request against the encoder service.
func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.config.Endpoint+path, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != 200 {
		var retryAfter time.Duration
		if header := resp.Header.Get("Retry-After"); header != "" {
			if seconds, err := strconv.Atoi(header); err == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return &HTTPError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
			RetryAfter: retryAfter,
		}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parsing response JSON: %w", err)
	}
	return nil
}
