package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/giglink/chat-service/internal/domain"
)

type MessageService struct {
	msgRepo  MessageRepo
	convRepo ConversationRepo

	maxMessageLen int
}

func NewMessageService(msgRepo MessageRepo, convRepo ConversationRepo) *MessageService {
	return &MessageService{
		msgRepo:       msgRepo,
		convRepo:      convRepo,
		maxMessageLen: 4000,
	}
}

func (s *MessageService) SetMaxMessageLen(n int) {
	if n > 0 {
		s.maxMessageLen = n
	}
}

func (s *MessageService) Send(ctx context.Context, conversationID string, senderID int64, text string) (*domain.Message, error) {
	if err := s.requireParticipant(ctx, conversationID, senderID); err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.ErrEmptyMessage
	}
	if len(text) > s.maxMessageLen {
		return nil, domain.ErrMessageTooLong
	}

	msg, err := s.msgRepo.Save(ctx, conversationID, senderID, text)
	if err != nil {
		return nil, err
	}

	// денормализованный last_message_at для листинга; best-effort
	if err := s.convRepo.TouchLastMessage(ctx, conversationID, msg.CreatedAt); err != nil {
		slog.Debug("touch last_message_at failed",
			"conversation", conversationID, "err", err)
	}

	return msg, nil
}

func (s *MessageService) History(ctx context.Context, conversationID string, userID int64, after string, limit int) ([]domain.MessageView, string, error) {
	if err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return nil, "", err
	}
	return s.msgRepo.History(ctx, conversationID, after, limit)
}

// MarkRead — отметить сообщение прочитанным. Идемпотентно: повторный вызов
// для той же пары (message, user) ничего не меняет.
func (s *MessageService) MarkRead(ctx context.Context, messageID string, userID int64) error {
	msg, err := s.msgRepo.Get(ctx, messageID)
	if err != nil {
		return err
	}
	if err := s.requireParticipant(ctx, msg.ConversationID, userID); err != nil {
		return err
	}
	return s.msgRepo.MarkRead(ctx, messageID, userID)
}

func (s *MessageService) requireParticipant(ctx context.Context, conversationID string, userID int64) error {
	if _, err := s.convRepo.Get(ctx, conversationID); err != nil {
		return err
	}
	ok, err := s.convRepo.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotParticipant
	}
	return nil
}
