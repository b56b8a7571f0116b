package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/giglink/chat-service/internal/changefeed"
	httpmw "github.com/giglink/chat-service/internal/transport/http/middleware"
	"github.com/giglink/chat-service/pkg/httputil"

	"github.com/go-chi/chi/v5"
)

type Subscriber interface {
	Subscribe(conversationID string) *changefeed.Subscription
}

// StreamHandler — по одному экземпляру цикла на подключённого клиента.
// Общего изменяемого состояния между клиентами нет, всё шарится через
// bridge и typing store.
type StreamHandler struct {
	convSvc   ConversationSvc
	bridge    Subscriber
	heartbeat time.Duration
}

func NewStreamHandler(conv ConversationSvc, bridge Subscriber, heartbeat time.Duration) *StreamHandler {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &StreamHandler{
		convSvc:   conv,
		bridge:    bridge,
		heartbeat: heartbeat,
	}
}

// GET /conversations/{id}/stream
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())
	if userID == 0 {
		httputil.JSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing user id"})
		return
	}

	convID := chi.URLParam(r, "id")
	if err := h.convSvc.RequireParticipant(r.Context(), convID, userID); err != nil {
		writeDomainError(w, "stream.open", err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		slog.Error("stream: response writer is not a flusher")
		httputil.JSON(w, http.StatusInternalServerError, ErrorResponse{Error: "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
		return
	}
	flusher.Flush()

	// Порядок уборки гарантирован defer-ами: таймер, затем подписка;
	// транспорт закрывает сервер по возврату из хендлера.
	sub := h.bridge.Subscribe(convID)
	defer sub.Cancel()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	slog.Debug("stream: opened", "conversation", convID, "user", userID)
	defer slog.Debug("stream: closed", "conversation", convID, "user", userID)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case view, ok := <-sub.C:
			if !ok {
				return
			}
			data, err := json.Marshal(messageItem(view))
			if err != nil {
				slog.Warn("stream: marshal frame failed", "message", view.ID, "err", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
