package http

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/giglink/chat-service/internal/changefeed"
	"github.com/giglink/chat-service/internal/domain"
	"github.com/giglink/chat-service/internal/typing"
)

type viewFetcher struct {
	views map[string]*domain.MessageView
}

func (f *viewFetcher) GetView(ctx context.Context, id string) (*domain.MessageView, error) {
	v, ok := f.views[id]
	if !ok {
		return nil, domain.ErrMessageNotFound
	}
	return v, nil
}

func streamFixture(t *testing.T, heartbeat time.Duration) (*changefeed.Bridge, *httptest.Server) {
	t.Helper()
	conv := &fakeConvSvc{participants: map[string][]int64{"c1": {1, 2}}}
	bridge := changefeed.NewBridge(&viewFetcher{views: map[string]*domain.MessageView{
		"m1": {Message: domain.Message{
			ID:             "m1",
			ConversationID: "c1",
			SenderID:       1,
			Text:           "hello",
			CreatedAt:      time.Now(),
		}},
		"m2": {Message: domain.Message{
			ID:             "m2",
			ConversationID: "c2",
			SenderID:       3,
			Text:           "other",
			CreatedAt:      time.Now(),
		}},
	}}, 4)

	router := testRouter(conv, &fakeMsgSvc{}, typing.NewStore(typing.DefaultTTL), bridge, heartbeat)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return bridge, srv
}

func openStream(t *testing.T, srv *httptest.Server, userID string) (*bufio.Scanner, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/conversations/c1/stream", nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer test-token")
	req.Header.Set("X-User-ID", userID)

	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected text/event-stream, got %q", ct)
	}

	return bufio.NewScanner(resp.Body), cancel
}

// nextFrame пропускает пустые строки-разделители
func nextFrame(t *testing.T, sc *bufio.Scanner) string {
	t.Helper()
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		return line
	}
	t.Fatalf("stream ended unexpectedly: %v", sc.Err())
	return ""
}

func waitSubscribers(t *testing.T, bridge *changefeed.Bridge, conv string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if bridge.SubscriberCount(conv) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("subscriber count for %s never reached %d", conv, want)
}

func TestStreamRejectsNonParticipant(t *testing.T) {
	bridge, srv := streamFixture(t, 30*time.Second)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/conversations/c1/stream", nil)
	req.Header.Set("Authorization", "Bearer test-token")
	req.Header.Set("X-User-ID", "99")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for non-participant, got %d", resp.StatusCode)
	}

	if bridge.SubscriberCount("c1") != 0 {
		t.Fatalf("rejected stream must not allocate a subscription")
	}
}

func TestStreamConnectedAndDelivery(t *testing.T) {
	bridge, srv := streamFixture(t, 30*time.Second)

	sc, cancel := openStream(t, srv, "2")
	defer cancel()

	if frame := nextFrame(t, sc); frame != ": connected" {
		t.Fatalf("expected connected comment, got %q", frame)
	}

	waitSubscribers(t, bridge, "c1", 1)

	// событие чужого разговора не должно дать кадра на этом стриме
	bridge.Dispatch(context.Background(), changefeed.Event{ID: "m2", ConversationID: "c2"})
	bridge.Dispatch(context.Background(), changefeed.Event{ID: "m1", ConversationID: "c1"})

	frame := nextFrame(t, sc)
	if !strings.HasPrefix(frame, "data: ") {
		t.Fatalf("expected data frame, got %q", frame)
	}

	var payload struct {
		ID             string `json:"id"`
		ConversationID string `json:"conversation_id"`
		SenderID       string `json:"sender_id"`
	}
	if err := json.Unmarshal([]byte(strings.TrimPrefix(frame, "data: ")), &payload); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	if payload.ID != "m1" || payload.ConversationID != "c1" || payload.SenderID != "1" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestStreamHeartbeat(t *testing.T) {
	_, srv := streamFixture(t, 40*time.Millisecond)

	sc, cancel := openStream(t, srv, "2")
	defer cancel()

	if frame := nextFrame(t, sc); frame != ": connected" {
		t.Fatalf("expected connected comment, got %q", frame)
	}
	if frame := nextFrame(t, sc); frame != ": heartbeat" {
		t.Fatalf("expected heartbeat comment, got %q", frame)
	}
}

func TestStreamDisconnectTearsDownSubscription(t *testing.T) {
	bridge, srv := streamFixture(t, 30*time.Second)

	sc, cancel := openStream(t, srv, "2")
	if frame := nextFrame(t, sc); frame != ": connected" {
		t.Fatalf("expected connected comment, got %q", frame)
	}
	waitSubscribers(t, bridge, "c1", 1)

	cancel() // клиент отвалился

	waitSubscribers(t, bridge, "c1", 0)
}
