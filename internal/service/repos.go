package service

import (
	"context"
	"time"

	"github.com/giglink/chat-service/internal/domain"
)

type ConversationRepo interface {
	Create(ctx context.Context, conv *domain.Conversation, participantIDs []int64) error
	Get(ctx context.Context, id string) (*domain.Conversation, error)
	IsParticipant(ctx context.Context, conversationID string, userID int64) (bool, error)
	ListParticipants(ctx context.Context, conversationID string) ([]domain.Participant, error)
	ListByUser(ctx context.Context, userID int64, limit int, cursor string) ([]domain.Conversation, string, error)
	TouchLastMessage(ctx context.Context, conversationID string, at time.Time) error
}

type MessageRepo interface {
	Save(ctx context.Context, conversationID string, senderID int64, text string) (*domain.Message, error)
	Get(ctx context.Context, id string) (*domain.Message, error)
	History(ctx context.Context, conversationID, after string, limit int) ([]domain.MessageView, string, error)
	MarkRead(ctx context.Context, messageID string, userID int64) error
}
