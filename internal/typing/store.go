// Package typing держит эфемерные сигналы «пользователь печатает».
// Хранилище живёт в памяти процесса и теряется при рестарте — это
// допустимо, presence носит рекомендательный характер. Для нескольких
// инстансов его нужно заменить общим TTL-хранилищем.
package typing

import (
	"sync"
	"time"
)

const DefaultTTL = 5 * time.Second

type Store struct {
	ttl time.Duration

	// conversationID -> *entry; у каждого разговора свой мьютекс,
	// чтобы не сериализовать чужие разговоры друг о друга.
	convs sync.Map

	now func() time.Time
}

type entry struct {
	mu    sync.Mutex
	users map[int64]time.Time // userID -> last heartbeat
	dead  bool
}

func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{ttl: ttl, now: time.Now}
}

// Record — ставит/обновляет отметку «печатает». Повторные вызовы внутри
// TTL-окна эквивалентны одному.
func (s *Store) Record(conversationID string, userID int64) {
	e := s.lockEntry(conversationID)
	defer e.mu.Unlock()

	now := s.now()
	e.users[userID] = now
	s.sweepLocked(conversationID, e, now)
}

// List — кто печатает сейчас, кроме самого спрашивающего.
func (s *Store) List(conversationID string, excludingUserID int64) []int64 {
	v, ok := s.convs.Load(conversationID)
	if !ok {
		return nil
	}
	e := v.(*entry)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dead {
		return nil
	}

	now := s.now()
	s.sweepLocked(conversationID, e, now)

	out := make([]int64, 0, len(e.users))
	for uid := range e.users {
		if uid == excludingUserID {
			continue
		}
		out = append(out, uid)
	}
	return out
}

// lockEntry возвращает живую запись разговора под её мьютексом.
// Цикл закрывает гонку с конкурентным удалением опустевшей записи.
func (s *Store) lockEntry(conversationID string) *entry {
	for {
		v, _ := s.convs.LoadOrStore(conversationID, &entry{users: make(map[int64]time.Time)})
		e := v.(*entry)
		e.mu.Lock()
		if !e.dead {
			return e
		}
		e.mu.Unlock()
	}
}

// sweepLocked выбрасывает просроченные отметки; опустевший разговор
// удаляется целиком, чтобы память была O(активные).
func (s *Store) sweepLocked(conversationID string, e *entry, now time.Time) {
	for uid, at := range e.users {
		if now.Sub(at) > s.ttl {
			delete(e.users, uid)
		}
	}
	if len(e.users) == 0 {
		e.dead = true
		s.convs.Delete(conversationID)
	}
}
