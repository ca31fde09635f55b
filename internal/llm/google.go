package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// googleProvider talks to the Google AI Studio (Gemini) REST API.
type googleProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  http.Client
}

type googlePart struct {
	Text string `json:"text"`
}

type googleContent struct {
	Parts []googlePart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type googleGenConfig struct {
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type googleRequest struct {
	Contents          []googleContent  `json:"contents"`
	SystemInstruction *googleContent   `json:"systemInstruction,omitempty"`
	GenerationConfig  *googleGenConfig `json:"generationConfig,omitempty"`
}

type googleCandidate struct {
	Content googleContent `json:"content"`
}

type googleResponse struct {
	Candidates []googleCandidate `json:"candidates"`
	Error      *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (g *googleProvider) Name() string {
	return "google/" + g.model
}

func (g *googleProvider) Complete(ctx context.Context, userPrompt string, opts CompletionOpts) (string, error) {
	model := g.model
	if opts.Model != "" {
		model = opts.Model
	}

	req := googleRequest{
		Contents: []googleContent{{
			Parts: []googlePart{{Text: userPrompt}},
			Role:  "user",
		}},
		GenerationConfig: &googleGenConfig{
			MaxOutputTokens: opts.MaxTokens,
			Temperature:     opts.Temperature,
		},
	}
	if opts.System != "" {
		req.SystemInstruction = &googleContent{Parts: []googlePart{{Text: opts.System}}}
	}
	if strings.EqualFold(opts.Format, "json") {
		req.GenerationConfig.ResponseMimeType = "application/json"
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, model, g.apiKey)
	var resp googleResponse
	if err := postJSON(ctx, &g.client, url, nil, req, &resp); err != nil {
		return "", fmt.Errorf("google API: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("google API error: %s (code %d)", resp.Error.Message, resp.Error.Code)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from google API")
	}
	return strings.TrimSpace(resp.Candidates[0].Content.Parts[0].Text), nil
}
