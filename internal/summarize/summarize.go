// Package summarize produces short natural-language summaries of text.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Summarizer turns text into a one or two sentence summary.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Defaults for the Gemini summarizer.
const (
	DefaultModel       = "gemini-2.5-flash"
	DefaultTemperature = float32(0.5)

	systemInstruction = "You are a helpful assistant that provides concise summaries of file content."
)

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("summarize: empty model response")

// contentGenerator is the part of *genai.Models used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini summarizes through the Gemini API.
type Gemini struct {
	models      contentGenerator
	model       string
	temperature float32
}

var _ Summarizer = (*Gemini)(nil)

// NewGemini creates a Gemini summarizer. An empty model selects DefaultModel.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return newGemini(client.Models, model), nil
}

func newGemini(models contentGenerator, model string) *Gemini {
	if model == "" {
		model = DefaultModel
	}
	return &Gemini{models: models, model: model, temperature: DefaultTemperature}
}

// Summarize asks the model for a short summary of text.
func (g *Gemini) Summarize(ctx context.Context, text string) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(g.temperature),
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(systemInstruction)},
		},
	}
	contents := genai.Text(Prompt(text))

	resp, err := g.models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini api error: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	summary := strings.TrimSpace(b.String())
	if summary == "" {
		return "", ErrEmptyResponse
	}
	return summary, nil
}

// Prompt builds the user prompt for text.
func Prompt(text string) string {
	return fmt.Sprintf("Summarize the following text in one or two sentences: %q", text)
}

// Mock returns a labelled placeholder summary and is used when no API key is configured.
type Mock struct{}

var _ Summarizer = Mock{}

// MockPrefix starts every mock summary.
const MockPrefix = "[mock summary] "

const mockExcerptLen = 120

// Summarize returns the leading excerpt of text prefixed with MockPrefix.
func (Mock) Summarize(_ context.Context, text string) (string, error) {
	excerpt := strings.Join(strings.Fields(text), " ")
	if r := []rune(excerpt); len(r) > mockExcerptLen {
		excerpt = string(r[:mockExcerptLen]) + "..."
	}
	return MockPrefix + excerpt, nil
}
