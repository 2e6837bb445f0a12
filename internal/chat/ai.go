package chat

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"m10support/backend/internal/completion"
)

// KnowledgeSearcher returns documents relevant to a question.
type KnowledgeSearcher interface {
	Search(ctx context.Context, query string) ([]Source, error)
}

const maxKnowledgeHits = 3

type AIResponder struct {
	client    completion.Client
	model     string
	fallback  KeywordTable
	knowledge KnowledgeSearcher
	logger    *zap.Logger
}

// NewAIResponder builds the completion-backed responder. knowledge may be nil.
func NewAIResponder(client completion.Client, model string, fallback KeywordTable, knowledge KnowledgeSearcher, logger *zap.Logger) *AIResponder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AIResponder{
		client:    client,
		model:     model,
		fallback:  fallback,
		knowledge: knowledge,
		logger:    logger,
	}
}

func (r *AIResponder) Respond(ctx context.Context, req Request) (Answer, error) {
	sources := []Source{SupportPortalSource}
	userPrompt := req.Text

	if hits := r.searchKnowledge(ctx, req); len(hits) > 0 {
		sources = hits
		userPrompt = buildKnowledgePrompt(hits, req.Text)
	}

	resp, err := r.client.Complete(ctx, completion.Request{
		Model:        r.model,
		SystemPrompt: SystemPrompt(req.Language),
		UserPrompt:   userPrompt,
	})
	if err != nil {
		r.logger.Warn("completion failed, using keyword fallback",
			zap.String("session_id", req.SessionID),
			zap.Error(err),
		)
		return Answer{
			Text:       r.fallback.Match(req.Text),
			Confidence: 0.5,
		}, nil
	}

	return Answer{
		Text:       resp.Answer,
		Sources:    sources,
		Model:      resp.Model,
		Confidence: 0.95,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}

func (r *AIResponder) searchKnowledge(ctx context.Context, req Request) []Source {
	if r.knowledge == nil {
		return nil
	}
	hits, err := r.knowledge.Search(ctx, req.Text)
	if err != nil {
		r.logger.Warn("knowledge search failed",
			zap.String("session_id", req.SessionID),
			zap.Error(err),
		)
		return nil
	}
	if len(hits) > maxKnowledgeHits {
		hits = hits[:maxKnowledgeHits]
	}
	return hits
}

func buildKnowledgePrompt(hits []Source, question string) string {
	blocks := make([]string, 0, len(hits))
	for _, hit := range hits {
		blocks = append(blocks, fmt.Sprintf("📄 %s\n%s", hit.Title, hit.Excerpt))
	}
	return fmt.Sprintf(knowledgePromptTemplate, strings.Join(blocks, "\n\n"), question)
}
