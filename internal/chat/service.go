package chat

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service relays client messages to the configured Responder and records
// both sides of the exchange. Concurrent sends on one session may interleave
// their pairs; each pair is appended atomically.
type Service struct {
	store     Store
	responder Responder
	language  LanguagePolicy
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(store Store, responder Responder, language LanguagePolicy, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		responder: responder,
		language:  language,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) CreateSession(ctx context.Context, platform string) (string, error) {
	platform = strings.TrimSpace(platform)
	if platform == "" {
		platform = DefaultPlatform
	}
	session, err := s.store.CreateSession(ctx, platform)
	if err != nil {
		return "", err
	}
	s.logger.Info("session created", zap.String("session_id", session.ID), zap.String("platform", platform))
	return session.ID, nil
}

func (s *Service) SendMessage(ctx context.Context, req SendRequest) (Reply, error) {
	if _, err := s.store.GetSession(ctx, req.SessionID); err != nil {
		return Reply{}, err
	}

	now := s.now()
	sentAt := req.Timestamp
	if sentAt.IsZero() {
		sentAt = now
	}
	language := s.language.Tag(req.Text)

	answer, err := s.responder.Respond(ctx, Request{
		SessionID: req.SessionID,
		Text:      req.Text,
		Language:  language,
		Device:    req.Device,
		Timestamp: sentAt,
	})
	if err != nil {
		return Reply{}, err
	}

	userMessage := Message{
		ID:        uuid.NewString(),
		Text:      req.Text,
		Role:      RoleUser,
		Timestamp: sentAt,
		Device:    req.Device,
	}
	assistantMessage := Message{
		ID:        uuid.NewString(),
		Text:      answer.Text,
		Role:      RoleAssistant,
		Timestamp: now,
		Sources:   answer.Sources,
	}
	if err := s.store.AppendMessages(ctx, req.SessionID, userMessage, assistantMessage); err != nil {
		if answer.OperatorReply {
			s.requeueOperatorReply(ctx, req.SessionID, answer.Text)
		}
		return Reply{}, err
	}

	s.logger.Info("message relayed",
		zap.String("session_id", req.SessionID),
		zap.String("language", language),
		zap.String("model", answer.Model),
		zap.Float64("confidence", answer.Confidence),
	)

	sources := answer.Sources
	if sources == nil {
		sources = []Source{}
	}
	return Reply{
		SessionID: req.SessionID,
		MessageID: assistantMessage.ID,
		Answer:    answer.Text,
		Language:  language,
		Sources:   sources,
		Timestamp: now,
		Metadata: Metadata{
			TokensUsed: answer.TokensUsed,
			Model:      answer.Model,
			Confidence: answer.Confidence,
		},
	}, nil
}

// requeueOperatorReply puts back a reply that was taken but never recorded.
// It rejoins the queue behind any replies that arrived meanwhile.
func (s *Service) requeueOperatorReply(ctx context.Context, sessionID, text string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.store.EnqueueReply(ctx, sessionID, text); err != nil {
		s.logger.Error("operator reply lost after failed append",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		return
	}
	s.logger.Warn("operator reply requeued after failed append", zap.String("session_id", sessionID))
}

func (s *Service) History(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	return s.store.History(ctx, sessionID, limit)
}

// EnqueueOperatorReply stores operator text to be surfaced by the next send
// on the session.
func (s *Service) EnqueueOperatorReply(ctx context.Context, sessionID, text string) error {
	if err := s.store.EnqueueReply(ctx, sessionID, text); err != nil {
		return err
	}
	s.logger.Info("operator reply queued", zap.String("session_id", sessionID))
	return nil
}
