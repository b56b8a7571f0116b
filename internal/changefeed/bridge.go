// Package changefeed доводит вставки в журнал сообщений до живых подписчиков.
// Поток — это ускорение доставки, не канал истины: события best-effort,
// источником остаётся история в базе.
package changefeed

import (
	"context"
	"log/slog"
	"sync"

	"github.com/giglink/chat-service/internal/domain"
)

// Event — сырое уведомление о вставленной строке. Кроме идентификаторов
// ему не доверяем: строку всегда перечитываем.
type Event struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
}

type MessageFetcher interface {
	GetView(ctx context.Context, id string) (*domain.MessageView, error)
}

type Bridge struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{} // conversationID -> set

	fetcher MessageFetcher
	backlog int
}

func NewBridge(fetcher MessageFetcher, backlog int) *Bridge {
	if backlog <= 0 {
		backlog = 16
	}
	return &Bridge{
		subs:    make(map[string]map[*Subscription]struct{}),
		fetcher: fetcher,
		backlog: backlog,
	}
}

// Subscription — принадлежащий подписчику handle. Cancel обязателен на
// каждом пути выхода: забытая подписка живёт вечно.
type Subscription struct {
	C <-chan *domain.MessageView

	ch             chan *domain.MessageView
	conversationID string
	b              *Bridge
	once           sync.Once
}

func (b *Bridge) Subscribe(conversationID string) *Subscription {
	s := &Subscription{
		ch:             make(chan *domain.MessageView, b.backlog),
		conversationID: conversationID,
		b:              b,
	}
	s.C = s.ch

	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.subs[conversationID]
	if !ok {
		set = make(map[*Subscription]struct{})
		b.subs[conversationID] = set
	}
	set[s] = struct{}{}

	return s
}

// Cancel снимает подписку и закрывает канал. Идемпотентен.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.b.mu.Lock()
		defer s.b.mu.Unlock()

		if set, ok := s.b.subs[s.conversationID]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(s.b.subs, s.conversationID)
			}
		}
		close(s.ch)
	})
}

// Dispatch — обработка одного события: перечитать строку, разослать
// подписчикам разговора. Неудавшаяся гидрация логируется и отбрасывается,
// индивидуальных ретраев нет — клиент получит сообщение при следующем
// чтении истории.
func (b *Bridge) Dispatch(ctx context.Context, ev Event) {
	if !b.hasSubscribers(ev.ConversationID) {
		return
	}

	view, err := b.fetcher.GetView(ctx, ev.ID)
	if err != nil {
		slog.Warn("change feed: hydrate failed, event dropped",
			"message", ev.ID, "conversation", ev.ConversationID, "err", err)
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for s := range b.subs[view.ConversationID] {
		select {
		case s.ch <- view:
		default:
			// медленный потребитель теряет кадр; история — канонична
			slog.Debug("change feed: subscriber backlog full, frame dropped",
				"conversation", view.ConversationID, "message", view.ID)
		}
	}
}

func (b *Bridge) hasSubscribers(conversationID string) bool {
	return b.SubscriberCount(conversationID) > 0
}

// SubscriberCount — сколько живых подписок у разговора.
func (b *Bridge) SubscriberCount(conversationID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[conversationID])
}
