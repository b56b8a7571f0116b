package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/giglink/chat-service/internal/domain"
)

type fakeConvRepo struct {
	convs        map[string]*domain.Conversation
	participants map[string][]int64
	touched      map[string]time.Time
}

func newFakeConvRepo() *fakeConvRepo {
	return &fakeConvRepo{
		convs:        make(map[string]*domain.Conversation),
		participants: make(map[string][]int64),
		touched:      make(map[string]time.Time),
	}
}

func (f *fakeConvRepo) Create(ctx context.Context, conv *domain.Conversation, participantIDs []int64) error {
	conv.ID = "conv-new"
	conv.CreatedAt = time.Now()
	conv.LastMessageAt = conv.CreatedAt
	f.convs[conv.ID] = conv
	f.participants[conv.ID] = participantIDs
	return nil
}

func (f *fakeConvRepo) Get(ctx context.Context, id string) (*domain.Conversation, error) {
	c, ok := f.convs[id]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	return c, nil
}

func (f *fakeConvRepo) IsParticipant(ctx context.Context, conversationID string, userID int64) (bool, error) {
	for _, id := range f.participants[conversationID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeConvRepo) ListParticipants(ctx context.Context, conversationID string) ([]domain.Participant, error) {
	var out []domain.Participant
	for _, id := range f.participants[conversationID] {
		out = append(out, domain.Participant{ConversationID: conversationID, UserID: id})
	}
	return out, nil
}

func (f *fakeConvRepo) ListByUser(ctx context.Context, userID int64, limit int, cursor string) ([]domain.Conversation, string, error) {
	return nil, "", nil
}

func (f *fakeConvRepo) TouchLastMessage(ctx context.Context, conversationID string, at time.Time) error {
	f.touched[conversationID] = at
	return nil
}

type fakeMsgRepo struct {
	msgs  map[string]*domain.Message
	saved int
}

func newFakeMsgRepo() *fakeMsgRepo {
	return &fakeMsgRepo{msgs: make(map[string]*domain.Message)}
}

func (f *fakeMsgRepo) Save(ctx context.Context, conversationID string, senderID int64, text string) (*domain.Message, error) {
	f.saved++
	m := &domain.Message{
		ID:             "msg-new",
		ConversationID: conversationID,
		SenderID:       senderID,
		Text:           text,
		CreatedAt:      time.Now(),
	}
	f.msgs[m.ID] = m
	return m, nil
}

func (f *fakeMsgRepo) Get(ctx context.Context, id string) (*domain.Message, error) {
	m, ok := f.msgs[id]
	if !ok {
		return nil, domain.ErrMessageNotFound
	}
	return m, nil
}

func (f *fakeMsgRepo) History(ctx context.Context, conversationID, after string, limit int) ([]domain.MessageView, string, error) {
	return nil, "", nil
}

// та же семантика set-union, что и в SQL-репозитории
func (f *fakeMsgRepo) MarkRead(ctx context.Context, messageID string, userID int64) error {
	m, ok := f.msgs[messageID]
	if !ok {
		return nil
	}
	for _, id := range m.ReadBy {
		if id == userID {
			return nil
		}
	}
	m.ReadBy = append(m.ReadBy, userID)
	return nil
}

func fixture() (*fakeConvRepo, *fakeMsgRepo, *MessageService) {
	convRepo := newFakeConvRepo()
	convRepo.convs["c1"] = &domain.Conversation{ID: "c1"}
	convRepo.participants["c1"] = []int64{1, 2}

	msgRepo := newFakeMsgRepo()
	msgRepo.msgs["m1"] = &domain.Message{ID: "m1", ConversationID: "c1", SenderID: 1, Text: "hi"}

	return convRepo, msgRepo, NewMessageService(msgRepo, convRepo)
}

func TestSendRejectsNonParticipant(t *testing.T) {
	_, msgRepo, svc := fixture()

	if _, err := svc.Send(context.Background(), "c1", 99, "hello"); !errors.Is(err, domain.ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
	if msgRepo.saved != 0 {
		t.Fatalf("rejected send must not persist anything")
	}
}

func TestSendUnknownConversation(t *testing.T) {
	_, _, svc := fixture()

	if _, err := svc.Send(context.Background(), "nope", 1, "hello"); !errors.Is(err, domain.ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
}

func TestSendValidatesText(t *testing.T) {
	_, _, svc := fixture()

	if _, err := svc.Send(context.Background(), "c1", 1, "   "); !errors.Is(err, domain.ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}

	if _, err := svc.Send(context.Background(), "c1", 1, strings.Repeat("x", 4001)); !errors.Is(err, domain.ErrMessageTooLong) {
		t.Fatalf("expected ErrMessageTooLong, got %v", err)
	}
}

func TestSendBumpsLastMessageAt(t *testing.T) {
	convRepo, _, svc := fixture()

	msg, err := svc.Send(context.Background(), "c1", 1, "hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if got := convRepo.touched["c1"]; !got.Equal(msg.CreatedAt) {
		t.Fatalf("last_message_at not bumped: %v vs %v", got, msg.CreatedAt)
	}
}

func TestMarkReadIdempotent(t *testing.T) {
	_, msgRepo, svc := fixture()

	for i := 0; i < 2; i++ {
		if err := svc.MarkRead(context.Background(), "m1", 2); err != nil {
			t.Fatalf("mark read #%d: %v", i+1, err)
		}
	}

	readBy := msgRepo.msgs["m1"].ReadBy
	if len(readBy) != 1 || readBy[0] != 2 {
		t.Fatalf("read_by must contain user 2 exactly once, got %v", readBy)
	}
}

func TestMarkReadTwoUsers(t *testing.T) {
	_, msgRepo, svc := fixture()

	if err := svc.MarkRead(context.Background(), "m1", 1); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if err := svc.MarkRead(context.Background(), "m1", 2); err != nil {
		t.Fatalf("mark read: %v", err)
	}

	readBy := msgRepo.msgs["m1"].ReadBy
	if len(readBy) != 2 {
		t.Fatalf("read_by must contain both users, got %v", readBy)
	}
}

func TestMarkReadRejectsNonParticipant(t *testing.T) {
	_, msgRepo, svc := fixture()

	if err := svc.MarkRead(context.Background(), "m1", 99); !errors.Is(err, domain.ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
	if len(msgRepo.msgs["m1"].ReadBy) != 0 {
		t.Fatalf("rejected mark must not mutate read_by")
	}
}

func TestMarkReadUnknownMessage(t *testing.T) {
	_, _, svc := fixture()

	if err := svc.MarkRead(context.Background(), "ghost", 1); !errors.Is(err, domain.ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}
}

func TestHistoryRejectsNonParticipant(t *testing.T) {
	_, _, svc := fixture()

	if _, _, err := svc.History(context.Background(), "c1", 99, "", 10); !errors.Is(err, domain.ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
}
