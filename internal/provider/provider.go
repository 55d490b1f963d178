// Package provider selects and adapts an AI backend behind a single
// text-in/text-out call. Three protocols are supported; anything the
// configuration doesn't recognize falls back to the OpenAI-compatible one.
package provider

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/vpat-cli/internal/config"
	"github.com/sells-group/vpat-cli/pkg/anthropic"
	"github.com/sells-group/vpat-cli/pkg/gemini"
	"github.com/sells-group/vpat-cli/pkg/openai"
)

// Provider is the single operation the pipelines need from an AI backend.
// A non-nil error is fatal for the batch that issued the call, never for
// the whole pipeline.
type Provider interface {
	Complete(ctx context.Context, systemPrompt, userMessage string) (string, error)
	Name() string
}

// New builds a Provider from configuration. The API key must be non-empty;
// that is a configuration error surfaced before any remote call.
func New(cfg config.AIConfig) (Provider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, eris.New("provider: missing API key")
	}

	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch name {
	case "gemini":
		var opts []gemini.Option
		if cfg.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(cfg.BaseURL))
		}
		if cfg.Model != "" {
			opts = append(opts, gemini.WithModel(cfg.Model))
		}
		return &geminiProvider{client: gemini.NewClient(cfg.APIKey, opts...), maxTokens: cfg.MaxTokens}, nil

	case "anthropic":
		return &anthropicProvider{
			client:    anthropic.NewClient(cfg.APIKey, anthropic.WithModel(cfg.Model)),
			maxTokens: cfg.MaxTokens,
		}, nil

	case "openai":
		return newOpenAI(cfg), nil

	default:
		if name != "" {
			zap.L().Warn("provider: unrecognized provider, defaulting to openai-compatible",
				zap.String("provider", cfg.Provider),
			)
		}
		return newOpenAI(cfg), nil
	}
}

func newOpenAI(cfg config.AIConfig) Provider {
	var opts []openai.Option
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Model != "" {
		opts = append(opts, openai.WithModel(cfg.Model))
	}
	return &openaiProvider{client: openai.NewClient(cfg.APIKey, opts...), maxTokens: cfg.MaxTokens}
}

type openaiProvider struct {
	client    openai.Client
	maxTokens int
}

func (p *openaiProvider) Name() string { return "openai" }

func (p *openaiProvider) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	req := openai.ChatCompletionRequest{
		Messages: []openai.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userMessage},
		},
	}
	if p.maxTokens > 0 {
		req.MaxTokens = &p.maxTokens
	}

	resp, err := p.client.ChatCompletion(ctx, req)
	if err != nil {
		return "", eris.Wrap(err, "provider: openai complete")
	}
	if len(resp.Choices) == 0 {
		return "", eris.New("provider: openai reply carried no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

type geminiProvider struct {
	client    gemini.Client
	maxTokens int
}

func (p *geminiProvider) Name() string { return "gemini" }

func (p *geminiProvider) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	req := gemini.GenerateContentRequest{
		Contents: []gemini.Content{
			{Role: "user", Parts: []gemini.Part{{Text: userMessage}}},
		},
	}
	if systemPrompt != "" {
		req.SystemInstruction = &gemini.Content{Parts: []gemini.Part{{Text: systemPrompt}}}
	}
	if p.maxTokens > 0 {
		req.GenerationConfig = &gemini.GenerationConfig{MaxOutputTokens: &p.maxTokens}
	}

	resp, err := p.client.GenerateContent(ctx, req)
	if err != nil {
		return "", eris.Wrap(err, "provider: gemini complete")
	}
	text := resp.Text()
	if text == "" {
		return "", eris.New("provider: gemini reply carried no candidates")
	}
	return text, nil
}

type anthropicProvider struct {
	client    anthropic.Client
	maxTokens int
}

func (p *anthropicProvider) Name() string { return "anthropic" }

func (p *anthropicProvider) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	maxTokens := int64(p.maxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	resp, err := p.client.CreateMessage(ctx, anthropic.MessageRequest{
		MaxTokens: maxTokens,
		System:    systemPrompt,
		Messages:  []anthropic.Message{{Role: "user", Content: userMessage}},
	})
	if err != nil {
		return "", eris.Wrap(err, "provider: anthropic complete")
	}
	return resp.Text(), nil
}
