package llmservice

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"document-qa/internal/config"
	"document-qa/internal/models"
)

var thinkTag = regexp.MustCompile(models.ThinkTag)

// Generator completes a prompt with a chat model.
type Generator struct {
	llm         llms.Model
	temperature float64
	maxTokens   int
}

func NewGenerator(llm llms.Model, temperature float64, maxTokens int) *Generator {
	return &Generator{llm: llm, temperature: temperature, maxTokens: maxTokens}
}

// New builds the langchaingo model selected by cfg.Provider.
func New(cfg *config.LLMConfig) (*Generator, error) {
	log.Debug().Interface("config", map[string]string{
		"provider":        cfg.Provider,
		"base_url":        cfg.BaseURL,
		"inference_model": cfg.Model,
	}).Msg("Initializing generator")

	var (
		llm llms.Model
		err error
	)
	switch cfg.Provider {
	case "openai":
		llm, err = openai.New(
			openai.WithBaseURL(cfg.BaseURL),
			openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
			openai.WithModel(cfg.Model),
		)
	case "ollama":
		llm, err = ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
	default:
		return nil, fmt.Errorf("unknown inference provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s model: %w", cfg.Provider, err)
	}
	return NewGenerator(llm, cfg.Temperature, cfg.MaxTokens), nil
}

// Complete sends prompt as the user turn and returns the trimmed reply with
// any reasoning block removed.
func (g *Generator) Complete(ctx context.Context, prompt string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, models.SystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	var opts []llms.CallOption
	if g.temperature > 0 {
		opts = append(opts, llms.WithTemperature(g.temperature))
	}
	if g.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(g.maxTokens))
	}

	res, err := g.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return "", err
	}
	if len(res.Choices) == 0 {
		return "", errors.New("model returned no choices")
	}
	return strings.TrimSpace(thinkTag.ReplaceAllString(res.Choices[0].Content, "")), nil
}
