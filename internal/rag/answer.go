package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"document-qa/internal/config"
	"document-qa/internal/models"
)

// Answerer answers questions from the committed document only.
type Answerer struct {
	retriever *Retriever
	generator Generator
	cfg       config.RAGConfig
}

func NewAnswerer(retriever *Retriever, generator Generator, cfg config.RAGConfig) *Answerer {
	return &Answerer{retriever: retriever, generator: generator, cfg: cfg}
}

// Answer declines without calling the generator when retrieval finds nothing
// usable. Only collaborator failures are returned as errors.
func (a *Answerer) Answer(ctx context.Context, question string) (*models.PromptResponse, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, models.ErrEmptyQuestion
	}
	log.Info().Str("question", question).Msg("Answering question")

	matches, err := a.retriever.Search(ctx, question, a.cfg.TopK)
	if err != nil {
		return nil, err
	}

	resp := &models.PromptResponse{Query: question, Matches: matches}
	if len(matches) == 0 {
		log.Warn().Msg("No matches, declining")
		resp.Content = models.NoMatchMessage
		return resp, nil
	}
	if !a.confident(matches) {
		log.Warn().Float32("best", matches[0].Score).Float32("min_score", a.cfg.MinScore).Msg("Low confidence, declining")
		resp.Content = models.LowConfidenceMessage
		return resp, nil
	}

	genCtx, cancel := withTimeout(ctx, a.cfg.UpstreamTimeout)
	defer cancel()
	answer, err := a.generator.Complete(genCtx, BuildPrompt(question, matches))
	if err != nil {
		return nil, models.Upstream("generate answer", err)
	}

	resp.Content = strings.TrimSpace(answer)
	resp.Source = matches[0].DocumentName
	resp.Grounded = true
	log.Info().Int("matches", len(matches)).Msg("Answer generated")
	return resp, nil
}

// confident reports whether any match reaches MinScore. A zero MinScore
// accepts any match.
func (a *Answerer) confident(matches []models.Match) bool {
	if a.cfg.MinScore <= 0 {
		return true
	}
	for _, m := range matches {
		if m.Score >= a.cfg.MinScore {
			return true
		}
	}
	return false
}

// BuildPrompt joins match texts in the order given into the answer prompt.
func BuildPrompt(question string, matches []models.Match) string {
	texts := make([]string, len(matches))
	for i, m := range matches {
		texts[i] = m.Text
	}
	return fmt.Sprintf(models.AnswerPromptTemplate, strings.Join(texts, models.ContextSeparator), question)
}
