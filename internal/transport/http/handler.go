package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/giglink/chat-service/internal/domain"
	"github.com/giglink/chat-service/internal/postgres"
	httpmw "github.com/giglink/chat-service/internal/transport/http/middleware"
	"github.com/giglink/chat-service/pkg/httputil"

	"github.com/go-chi/chi/v5"
)

type ConversationSvc interface {
	Start(ctx context.Context, creatorID int64, participantIDs []int64, gigID *string) (*domain.Conversation, error)
	Get(ctx context.Context, id string, userID int64) (*domain.Conversation, error)
	List(ctx context.Context, userID int64, limit int, cursor string) ([]domain.Conversation, string, error)
	RequireParticipant(ctx context.Context, conversationID string, userID int64) error
}

type MessageSvc interface {
	Send(ctx context.Context, conversationID string, senderID int64, text string) (*domain.Message, error)
	History(ctx context.Context, conversationID string, userID int64, after string, limit int) ([]domain.MessageView, string, error)
	MarkRead(ctx context.Context, messageID string, userID int64) error
}

type TypingPresence interface {
	Record(conversationID string, userID int64)
	List(conversationID string, excludingUserID int64) []int64
}

type Handler struct {
	convSvc ConversationSvc
	msgSvc  MessageSvc
	typing  TypingPresence
}

func NewHandler(conv ConversationSvc, msg MessageSvc, typing TypingPresence) *Handler {
	return &Handler{
		convSvc: conv,
		msgSvc:  msg,
		typing:  typing,
	}
}

// Наружу не различаем «нет разговора» и «разговор есть, но вы не участник» —
// непричастный не должен узнать о существовании чужого разговора.
// В логах различаем.
func writeDomainError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrConversationNotFound):
		slog.Debug(op+": conversation not found", "err", err)
		httputil.JSON(w, http.StatusNotFound, ErrorResponse{Error: "conversation not found"})
	case errors.Is(err, domain.ErrNotParticipant):
		slog.Warn(op+": non-participant denied", "err", err)
		httputil.JSON(w, http.StatusNotFound, ErrorResponse{Error: "conversation not found"})
	case errors.Is(err, domain.ErrMessageNotFound):
		slog.Debug(op+": message not found", "err", err)
		httputil.JSON(w, http.StatusNotFound, ErrorResponse{Error: "message not found"})
	case errors.Is(err, domain.ErrEmptyMessage),
		errors.Is(err, domain.ErrMessageTooLong),
		errors.Is(err, domain.ErrNoParticipants):
		httputil.JSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, postgres.ErrInvalidCursor):
		httputil.JSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_cursor"})
	default:
		slog.Error(op, slog.Any("err", err))
		httputil.JSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

// POST /conversations
func (h *Handler) StartConversation(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())
	if userID == 0 {
		httputil.JSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing user id"})
		return
	}

	var req StartConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.JSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	ids := make([]int64, 0, len(req.ParticipantIDs))
	for _, s := range req.ParticipantIDs {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			httputil.JSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid participant id"})
			return
		}
		ids = append(ids, id)
	}

	conv, err := h.convSvc.Start(r.Context(), userID, ids, req.GigID)
	if err != nil {
		writeDomainError(w, "handler.StartConversation", err)
		return
	}

	httputil.JSON(w, http.StatusCreated, conversationItem(conv))
}

// GET /conversations?limit=&cursor=
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())
	if userID == 0 {
		httputil.JSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing user id"})
		return
	}

	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			limit = n
		}
	}

	convs, next, err := h.convSvc.List(r.Context(), userID, limit, r.URL.Query().Get("cursor"))
	if err != nil {
		writeDomainError(w, "handler.ListConversations", err)
		return
	}

	resp := ConversationsListResponse{Items: make([]ConversationItem, 0, len(convs)), NextCursor: next}
	for i := range convs {
		resp.Items = append(resp.Items, conversationItem(&convs[i]))
	}
	httputil.JSON(w, http.StatusOK, resp)
}

// GET /conversations/{id}
func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())
	if userID == 0 {
		httputil.JSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing user id"})
		return
	}

	conv, err := h.convSvc.Get(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		writeDomainError(w, "handler.GetConversation", err)
		return
	}
	httputil.JSON(w, http.StatusOK, conversationItem(conv))
}

// POST /conversations/{id}/messages
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())
	if userID == 0 {
		httputil.JSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing user id"})
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.JSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	msg, err := h.msgSvc.Send(r.Context(), chi.URLParam(r, "id"), userID, req.Text)
	if err != nil {
		writeDomainError(w, "handler.SendMessage", err)
		return
	}

	httputil.JSON(w, http.StatusCreated, MessageItem{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       strconv.FormatInt(msg.SenderID, 10),
		Text:           msg.Text,
		CreatedAt:      msg.CreatedAt.Truncate(time.Millisecond),
		ReadBy:         formatIDs(msg.ReadBy),
	})
}

// GET /conversations/{id}/messages?after=&limit=
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())
	if userID == 0 {
		httputil.JSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing user id"})
		return
	}

	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			limit = n
		}
	}

	items, next, err := h.msgSvc.History(r.Context(), chi.URLParam(r, "id"), userID,
		r.URL.Query().Get("after"), limit)
	if err != nil {
		writeDomainError(w, "handler.GetHistory", err)
		return
	}

	resp := MessagesHistoryResponse{Items: make([]MessageItem, 0, len(items)), NextCursor: next}
	for i := range items {
		resp.Items = append(resp.Items, messageItem(&items[i]))
	}
	httputil.JSON(w, http.StatusOK, resp)
}

// POST /conversations/{id}/typing
func (h *Handler) PostTyping(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())
	if userID == 0 {
		httputil.JSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing user id"})
		return
	}

	convID := chi.URLParam(r, "id")
	if err := h.convSvc.RequireParticipant(r.Context(), convID, userID); err != nil {
		writeDomainError(w, "handler.PostTyping", err)
		return
	}

	h.typing.Record(convID, userID)
	httputil.JSON(w, http.StatusOK, AckResponse{Status: "ok"})
}

// GET /conversations/{id}/typing
func (h *Handler) GetTyping(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())
	if userID == 0 {
		httputil.JSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing user id"})
		return
	}

	convID := chi.URLParam(r, "id")
	if err := h.convSvc.RequireParticipant(r.Context(), convID, userID); err != nil {
		writeDomainError(w, "handler.GetTyping", err)
		return
	}

	httputil.JSON(w, http.StatusOK, TypingResponse{UserIDs: formatIDs(h.typing.List(convID, userID))})
}

// PUT /messages/{id}/read
func (h *Handler) MarkMessageRead(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())
	if userID == 0 {
		httputil.JSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing user id"})
		return
	}

	if err := h.msgSvc.MarkRead(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		writeDomainError(w, "handler.MarkMessageRead", err)
		return
	}
	httputil.JSON(w, http.StatusOK, AckResponse{Status: "ok"})
}

// --- helpers ---

func conversationItem(c *domain.Conversation) ConversationItem {
	return ConversationItem{
		ID:            c.ID,
		GigID:         c.GigID,
		CreatedAt:     c.CreatedAt,
		LastMessageAt: c.LastMessageAt,
	}
}

func messageItem(v *domain.MessageView) MessageItem {
	return MessageItem{
		ID:                v.ID,
		ConversationID:    v.ConversationID,
		SenderID:          strconv.FormatInt(v.SenderID, 10),
		SenderDisplayName: v.SenderDisplayName,
		SenderAvatarURL:   v.SenderAvatarURL,
		Text:              v.Text,
		CreatedAt:         v.CreatedAt.Truncate(time.Millisecond),
		ReadBy:            formatIDs(v.ReadBy),
	}
}

func formatIDs(ids []int64) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, strconv.FormatInt(id, 10))
	}
	return out
}
