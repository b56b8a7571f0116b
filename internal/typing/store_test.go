package typing

import (
	"sync"
	"testing"
	"time"
)

// фиксируем часы, чтобы не спать в тестах
func newTestStore(ttl time.Duration) (*Store, *time.Time) {
	s := NewStore(ttl)
	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestRecordAndList(t *testing.T) {
	s, _ := newTestStore(5 * time.Second)

	s.Record("c1", 1)
	s.Record("c1", 2)

	got := s.List("c1", 1)
	if len(got) != 1 || got[0] != 2 {
		t.Fatalf("expected [2] excluding viewer, got %v", got)
	}
}

func TestTTLBoundary(t *testing.T) {
	s, now := newTestStore(5 * time.Second)

	s.Record("c1", 2)

	*now = now.Add(4900 * time.Millisecond)
	if got := s.List("c1", 1); len(got) != 1 {
		t.Fatalf("signal must still be visible at T+4.9s, got %v", got)
	}

	*now = now.Add(200 * time.Millisecond)
	if got := s.List("c1", 1); len(got) != 0 {
		t.Fatalf("signal must be expired at T+5.1s, got %v", got)
	}
}

func TestRecordIdempotent(t *testing.T) {
	s, _ := newTestStore(5 * time.Second)

	for i := 0; i < 10; i++ {
		s.Record("c1", 2)
	}

	if got := s.List("c1", 1); len(got) != 1 {
		t.Fatalf("repeated pings must yield one entry, got %v", got)
	}
}

func TestEmptyConversationRemoved(t *testing.T) {
	s, now := newTestStore(5 * time.Second)

	s.Record("c1", 1)
	*now = now.Add(6 * time.Second)

	if got := s.List("c1", 0); len(got) != 0 {
		t.Fatalf("expected no typers, got %v", got)
	}
	if _, ok := s.convs.Load("c1"); ok {
		t.Fatalf("empty conversation entry must be swept")
	}
}

func TestRecordAfterSweepRevives(t *testing.T) {
	s, now := newTestStore(5 * time.Second)

	s.Record("c1", 1)
	*now = now.Add(6 * time.Second)
	_ = s.List("c1", 0) // запись убрана целиком

	s.Record("c1", 1)
	if got := s.List("c1", 0); len(got) != 1 {
		t.Fatalf("record after sweep must be visible, got %v", got)
	}
}

func TestConcurrentWritersSameConversation(t *testing.T) {
	s := NewStore(time.Minute)

	var wg sync.WaitGroup
	for uid := int64(1); uid <= 50; uid++ {
		wg.Add(1)
		go func(uid int64) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				s.Record("c1", uid)
			}
		}(uid)
	}
	wg.Wait()

	if got := s.List("c1", 0); len(got) != 50 {
		t.Fatalf("expected 50 independent entries, got %d", len(got))
	}
}
