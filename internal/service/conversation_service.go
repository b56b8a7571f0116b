package service

import (
	"context"
	"fmt"

	"github.com/giglink/chat-service/internal/domain"
)

type ConversationService struct {
	convRepo ConversationRepo
}

func NewConversationService(convRepo ConversationRepo) *ConversationService {
	return &ConversationService{convRepo: convRepo}
}

// Start создаёт разговор с фиксированным составом участников.
// Инициатор добавляется всегда, дубликаты схлопываются.
func (s *ConversationService) Start(ctx context.Context, creatorID int64, participantIDs []int64, gigID *string) (*domain.Conversation, error) {
	seen := map[int64]struct{}{creatorID: {}}
	ids := []int64{creatorID}
	for _, id := range participantIDs {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) < 2 {
		return nil, domain.ErrNoParticipants
	}

	conv := &domain.Conversation{GigID: gigID}
	if err := s.convRepo.Create(ctx, conv, ids); err != nil {
		return nil, fmt.Errorf("convRepo.Create: %w", err)
	}
	return conv, nil
}

// Get возвращает разговор только его участнику.
func (s *ConversationService) Get(ctx context.Context, id string, userID int64) (*domain.Conversation, error) {
	conv, err := s.convRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.convRepo.IsParticipant(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrNotParticipant
	}
	return conv, nil
}

// List возвращает разговоры пользователя с курсорной пагинацией.
func (s *ConversationService) List(ctx context.Context, userID int64, limit int, cursor string) ([]domain.Conversation, string, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}
	return s.convRepo.ListByUser(ctx, userID, limit, cursor)
}

func (s *ConversationService) ListParticipants(ctx context.Context, conversationID string) ([]domain.Participant, error) {
	return s.convRepo.ListParticipants(ctx, conversationID)
}

// IsParticipant — проверка членства. ErrConversationNotFound если разговора нет;
// (false, nil) если разговор есть, но пользователь не участник. Вызывается
// перед любой операцией над состоянием разговора.
func (s *ConversationService) IsParticipant(ctx context.Context, conversationID string, userID int64) (bool, error) {
	if _, err := s.convRepo.Get(ctx, conversationID); err != nil {
		return false, err
	}
	return s.convRepo.IsParticipant(ctx, conversationID, userID)
}

// RequireParticipant — то же самое, но отказ приходит как ErrNotParticipant.
func (s *ConversationService) RequireParticipant(ctx context.Context, conversationID string, userID int64) error {
	ok, err := s.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotParticipant
	}
	return nil
}
