package gateway

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"chat-backend/internal/prompt"

	"github.com/go-resty/resty/v2"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com"

type Gemini struct {
	client *resty.Client
	model  string
	apiKey string
}

var _ Gateway = (*Gemini)(nil)

func NewGemini(apiKey, model string) *Gemini {
	return &Gemini{
		client: resty.New().SetBaseURL(geminiBaseURL),
		model:  model,
		apiKey: apiKey,
	}
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) SupportsAttachments() bool { return true }

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent         `json:"system_instruction,omitempty"`
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (g *Gemini) Generate(ctx context.Context, p prompt.Prompt) (Response, error) {
	contents := make([]geminiContent, 0, len(p.History)+1)
	for _, turn := range p.History {
		role := "user"
		if turn.Role == "assistant" {
			role = "model"
		}
		contents = append(contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: turn.Content}},
		})
	}

	userParts := []geminiPart{{Text: p.UserMessage}}
	if p.Attachment != nil {
		userParts = append(userParts, geminiPart{
			InlineData: &geminiInlineData{
				MimeType: p.Attachment.MimeType,
				Data:     base64.StdEncoding.EncodeToString(p.Attachment.Data),
			},
		})
	}
	contents = append(contents, geminiContent{Role: "user", Parts: userParts})

	body := geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: p.System}}},
		Contents:          contents,
		GenerationConfig: geminiGenerationConfig{
			Temperature:     0.7,
			MaxOutputTokens: 2048,
		},
	}

	var parsed geminiResponse
	res, err := g.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetQueryParam("key", g.apiKey).
		SetBody(body).
		SetResult(&parsed).
		Post(fmt.Sprintf("/v1beta/models/%s:generateContent", g.model))
	if err != nil {
		return Response{}, fmt.Errorf("gemini request failed: %w", err)
	}

	if !res.IsSuccess() {
		slog.Error("gemini returned error", "status_code", res.StatusCode(), "body", res.String())
		return Response{}, fmt.Errorf("gemini returned status %d", res.StatusCode())
	}

	var b strings.Builder
	if len(parsed.Candidates) > 0 {
		for _, part := range parsed.Candidates[0].Content.Parts {
			b.WriteString(part.Text)
		}
	}

	return Response{Text: b.String()}, nil
}
