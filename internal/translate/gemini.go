package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/oukeidos/subdeck/internal/apperrors"
	"github.com/oukeidos/subdeck/internal/httpclient"
	"google.golang.org/api/option"
)

// Model is the part of a Gemini client the filler needs.
type Model interface {
	Translate(ctx context.Context, request Request) (*Response, error)
	SetSystemInstruction(prompt string)
}

// Client talks to the Gemini API.
type Client struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

var _ Model = (*Client)(nil)

// NewClient creates a Gemini client for modelName.
func NewClient(ctx context.Context, apiKey, modelName string) (*Client, error) {
	// option.WithHTTPClient would drop the API key header genai injects, so
	// timeouts are enforced per call instead.
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	model := client.GenerativeModel(modelName)
	model.ResponseMIMEType = "application/json"
	return &Client{client: client, model: model}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// SetSystemInstruction sets the system prompt for subsequent calls.
func (c *Client) SetSystemInstruction(prompt string) {
	c.model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(prompt)},
	}
}

// Translate sends one request and decodes the model's JSON answer.
func (c *Client) Translate(ctx context.Context, request Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, httpclient.DefaultTimeout)
	defer cancel()
	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.model.GenerateContent(ctx, genai.Text(string(body)))
	if err != nil {
		return nil, classifyGeminiError(err)
	}
	text, err := extractResponseText(resp)
	if err != nil {
		return nil, apperrors.Validation(err)
	}
	out, err := decodeResponse(text)
	if err != nil {
		return nil, apperrors.Validation(err)
	}
	if resp.UsageMetadata != nil {
		out.Usage = Usage{
			PromptTokenCount:     int(resp.UsageMetadata.PromptTokenCount),
			CandidatesTokenCount: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokenCount:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out, nil
}

// decodeResponse accepts the documented object or a bare translations array.
// The raw text is never included in errors.
func decodeResponse(text string) (*Response, error) {
	var out Response
	err := json.Unmarshal([]byte(text), &out)
	if err == nil {
		return &out, nil
	}
	var arr []Translation
	if err2 := json.Unmarshal([]byte(text), &arr); err2 == nil {
		return &Response{Translations: arr}, nil
	}
	return nil, fmt.Errorf("failed to unmarshal response: %w", err)
}

func extractResponseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("no response received from Gemini")
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates returned from Gemini")
	}
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		var sb strings.Builder
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
		if sb.Len() > 0 {
			return sb.String(), nil
		}
	}
	return "", fmt.Errorf("no text parts found in Gemini response")
}
