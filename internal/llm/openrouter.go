package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// openrouterProvider talks to the OpenRouter chat-completions API,
// which is OpenAI-compatible.
type openrouterProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  http.Client
}

type orMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type orResponseFmt struct {
	Type string `json:"type"`
}

type orRequest struct {
	Model          string         `json:"model"`
	Messages       []orMessage    `json:"messages"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat *orResponseFmt `json:"response_format,omitempty"`
}

type orChoice struct {
	Message      orMessage `json:"message"`
	FinishReason string    `json:"finish_reason"`
}

type orResponse struct {
	ID      string     `json:"id"`
	Choices []orChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (o *openrouterProvider) Name() string {
	return "openrouter/" + o.model
}

func (o *openrouterProvider) Complete(ctx context.Context, userPrompt string, opts CompletionOpts) (string, error) {
	model := o.model
	if opts.Model != "" {
		model = opts.Model
	}

	messages := make([]orMessage, 0, 2)
	if opts.System != "" {
		messages = append(messages, orMessage{Role: "system", Content: opts.System})
	}
	messages = append(messages, orMessage{Role: "user", Content: userPrompt})

	req := orRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}
	if strings.EqualFold(opts.Format, "json") {
		req.ResponseFormat = &orResponseFmt{Type: "json_object"}
	}

	headers := map[string]string{
		"Authorization": "Bearer " + o.apiKey,
		"HTTP-Referer":  "https://github.com/tradarlab/tradar",
		"X-Title":       "Tradar",
	}

	var resp orResponse
	if err := postJSON(ctx, &o.client, o.baseURL+"/chat/completions", headers, req, &resp); err != nil {
		return "", fmt.Errorf("openrouter API: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("openrouter API error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from openrouter API")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
