package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"chat-backend/internal/prompt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const perplexityBaseURL = "https://api.perplexity.ai"

// Perplexity speaks the OpenAI chat-completions wire format. Citations come
// back in a non-standard top-level "citations" field.
type Perplexity struct {
	client openai.Client
	model  string
}

var _ Gateway = (*Perplexity)(nil)

func NewPerplexity(apiKey, model string) *Perplexity {
	return &Perplexity{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(perplexityBaseURL),
		),
		model: model,
	}
}

func (p *Perplexity) Name() string { return "perplexity" }

func (p *Perplexity) SupportsAttachments() bool { return false }

func (p *Perplexity) Generate(ctx context.Context, pr prompt.Prompt) (Response, error) {
	if pr.Attachment != nil {
		return Response{}, ErrAttachmentsUnsupported
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(pr.History)+2)
	messages = append(messages, openai.SystemMessage(pr.System))
	for _, turn := range pr.History {
		if turn.Role == "assistant" {
			messages = append(messages, openai.AssistantMessage(turn.Content))
		} else {
			messages = append(messages, openai.UserMessage(turn.Content))
		}
	}
	messages = append(messages, openai.UserMessage(pr.UserMessage))

	chatOpts := openai.ChatCompletionNewParams{
		Messages:    messages,
		Model:       p.model,
		Temperature: openai.Float(0.7),
		MaxTokens:   openai.Int(2048),
	}

	res, err := p.client.Chat.Completions.New(ctx, chatOpts)
	if err != nil {
		return Response{}, fmt.Errorf("perplexity generation failed: %w", err)
	}

	if len(res.Choices) == 0 {
		return Response{}, fmt.Errorf("perplexity returned no choices")
	}

	return Response{
		Text:    res.Choices[0].Message.Content,
		Sources: parseCitations(res),
	}, nil
}

func parseCitations(res *openai.ChatCompletion) []Source {
	field, ok := res.JSON.ExtraFields["citations"]
	if !ok {
		return nil
	}
	raw := field.Raw()
	if raw == "" || raw == "null" {
		return nil
	}

	var urls []string
	if err := json.Unmarshal([]byte(raw), &urls); err != nil {
		slog.Warn("could not parse perplexity citations", "error", err)
		return nil
	}

	sources := make([]Source, 0, len(urls))
	for _, url := range urls {
		// Perplexity returns bare URLs, so the URL doubles as the title.
		sources = append(sources, Source{Title: url, Uri: url})
	}
	return sources
}
