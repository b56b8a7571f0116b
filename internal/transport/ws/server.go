package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/giglink/chat-service/internal/changefeed"
	"github.com/giglink/chat-service/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

type ConversationSvc interface {
	RequireParticipant(ctx context.Context, conversationID string, userID int64) error
}

type ReadMarker interface {
	MarkRead(ctx context.Context, messageID string, userID int64) error
}

type TypingPresence interface {
	Record(conversationID string, userID int64)
}

type Subscriber interface {
	Subscribe(conversationID string) *changefeed.Subscription
}

// Server — двунаправленная альтернатива SSE-потоку: наружу те же кадры
// сообщений из bridge, внутрь — сигналы «печатаю» и отметки о прочтении.
// Запись сообщений остаётся на REST, чтобы durable-путь был один.
type Server struct {
	upgrader websocket.Upgrader
	convSvc  ConversationSvc
	typing   TypingPresence
	reads    ReadMarker
	bridge   Subscriber

	pingEvery time.Duration
}

func NewServer(conv ConversationSvc, typing TypingPresence, reads ReadMarker, bridge Subscriber) *Server {
	return &Server{
		convSvc: conv,
		typing:  typing,
		reads:   reads,
		bridge:  bridge,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pingEvery: 15 * time.Second,
	}
}

// WS endpoint: GET /ws/conversations/{id}?access_token=...&user_id=...
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if strings.TrimSpace(q.Get("access_token")) == "" {
		http.Error(w, "missing access_token", http.StatusUnauthorized)
		return
	}
	uid, err := strconv.ParseInt(strings.TrimSpace(q.Get("user_id")), 10, 64)
	if err != nil || uid <= 0 {
		http.Error(w, "invalid user_id", http.StatusUnauthorized)
		return
	}
	convID := chi.URLParam(r, "id")
	if convID == "" {
		http.Error(w, "missing conversation id", http.StatusBadRequest)
		return
	}

	// членство проверяем до upgrade; наружу не различаем not-found и forbidden
	if err := s.convSvc.RequireParticipant(r.Context(), convID, uid); err != nil {
		if errors.Is(err, domain.ErrNotParticipant) {
			slog.Warn("ws: non-participant denied", "conversation", convID, "user", uid)
		}
		http.Error(w, "conversation not found", http.StatusNotFound)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "err", err)
		return
	}

	c := newWsConn(conn, convID, uid)
	defer func() { _ = c.Close() }()

	sub := s.bridge.Subscribe(convID)
	defer sub.Cancel()

	_ = c.Send(Frame{
		Type: TypeConnected,
		Payload: ConnectedPayload{
			ConversationID: convID,
			UserID:         strconv.FormatInt(uid, 10),
		},
	})

	go s.writeLoop(r.Context(), c, sub)
	s.readLoop(r.Context(), c)
}

func (s *Server) writeLoop(ctx context.Context, c *wsConn, sub *changefeed.Subscription) {
	ticker := time.NewTicker(s.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		case view, ok := <-sub.C:
			if !ok {
				return
			}
			if err := c.Send(Frame{Type: TypeMessage, Payload: messagePayload(view)}); err != nil {
				return
			}
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		}
	}
}

func (s *Server) readLoop(ctx context.Context, c *wsConn) {
	c.conn.SetReadLimit(1 << 20)
	c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			continue
		}

		switch f.Type {
		case TypeTyping:
			s.typing.Record(c.conversationID, c.userID)
		case TypeRead:
			var p ReadPayload
			if decode(f.Payload, &p) != nil || p.MessageID == "" {
				continue
			}
			if err := s.reads.MarkRead(ctx, p.MessageID, c.userID); err != nil {
				slog.Warn("ws mark read failed",
					"conversation", c.conversationID, "user", c.userID,
					"message", p.MessageID, "err", err)
			}
		default:
			// ignore
		}
	}
}

// --- helpers ---

func messagePayload(v *domain.MessageView) MessagePayload {
	return MessagePayload{
		ID:                v.ID,
		ConversationID:    v.ConversationID,
		SenderID:          strconv.FormatInt(v.SenderID, 10),
		SenderDisplayName: v.SenderDisplayName,
		SenderAvatarURL:   v.SenderAvatarURL,
		Text:              v.Text,
		TSUnix:            v.CreatedAt.Unix(),
	}
}

func decode(payload interface{}, dst interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return json.Unmarshal(b, dst)
}

type wsConn struct {
	conn           *websocket.Conn
	conversationID string
	userID         int64
	sendMu         chan struct{}
	closed         chan struct{}
}

func newWsConn(c *websocket.Conn, conversationID string, userID int64) *wsConn {
	return &wsConn{
		conn:           c,
		conversationID: conversationID,
		userID:         userID,
		sendMu:         make(chan struct{}, 1),
		closed:         make(chan struct{}),
	}
}

func (c *wsConn) Send(f Frame) error {
	c.sendMu <- struct{}{}
	defer func() { <-c.sendMu }()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))

	return c.conn.WriteJSON(f)
}

func (c *wsConn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}

	return c.conn.Close()
}
