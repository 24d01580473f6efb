package main

import (
	"context"
	"log"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ChatGenerator asks an OpenAI-compatible chat completion endpoint (xAI Grok by
// default) for a short message. Any failure yields the fallback text.
type ChatGenerator struct {
	client       openai.Client
	model        string
	systemPrompt string
	userPrompt   string
	maxTokens    int64
	temperature  float64
	fallback     string
}

func NewChatGenerator(cfg GeneratorConfig) *ChatGenerator {
	return &ChatGenerator{
		client: openai.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithBaseURL(normalizeBaseURL(cfg.BaseURL)),
			option.WithMaxRetries(0),
		),
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
		userPrompt:   cfg.UserPrompt,
		maxTokens:    int64(cfg.MaxTokens),
		temperature:  cfg.Temperature,
		fallback:     cfg.Fallback,
	}
}

func (g *ChatGenerator) Generate(ctx context.Context, ev ChatEvent) string {
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(g.systemPrompt),
			openai.UserMessage(g.userPrompt),
		},
		MaxTokens:   openai.Int(g.maxTokens),
		Temperature: openai.Float(g.temperature),
	})
	if err != nil {
		log.Printf("generate content for event %d: %v", ev.ID, err)
		return g.fallback
	}
	if len(resp.Choices) == 0 {
		return g.fallback
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return g.fallback
	}
	return text
}

// staticGenerator always returns the same text; used when no API key is configured.
type staticGenerator struct {
	text string
}

func (g staticGenerator) Generate(context.Context, ChatEvent) string { return g.text }
