package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// ErrEmptyResponse is returned when the model answers with no text.
var ErrEmptyResponse = errors.New("empty response from model")

// GeminiParser is the AIParser backed by Gemini.
type GeminiParser struct {
	client *genai.Client
	model  string
}

// NewGeminiParser creates a parser for the given model. An empty model name
// selects DefaultModelName. Credentials come from the environment.
func NewGeminiParser(ctx context.Context, model string) (*GeminiParser, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiParser: create genai client: %w", err)
	}
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiParser{client: client, model: model}, nil
}

// ParseStatement sends the PDF to Gemini and returns the parsed JSON output.
func (p *GeminiParser) ParseStatement(ctx context.Context, pdfBytes []byte, hint StatementHint) (map[string]any, error) {
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: buildStatementPrompt(hint)},
				{
					InlineData: &genai.Blob{
						MIMEType: statementMIMEType,
						Data:     pdfBytes,
					},
				},
			},
		},
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("ParseStatement: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("ParseStatement: %w", ErrEmptyResponse)
	}

	return decodeModelOutput(rawText)
}

// decodeModelOutput parses the model's text into {"transactions": [...]}.
func decodeModelOutput(rawText string) (map[string]any, error) {
	clean := cleanModelJSON(rawText)

	var parsed any
	if err := json.Unmarshal([]byte(clean), &parsed); err != nil {
		return nil, fmt.Errorf("decodeModelOutput: unmarshal JSON: %w\nraw response: %s", err, rawText)
	}

	// Some answers come back already wrapped.
	if obj, ok := parsed.(map[string]any); ok {
		if _, has := obj["transactions"]; has {
			return obj, nil
		}
	}

	return map[string]any{
		"transactions": parsed,
	}, nil
}

func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	// Keep only the outermost array when there is still text around it.
	if strings.HasPrefix(s, "{") {
		return s
	}
	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
