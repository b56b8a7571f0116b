package http

import "time"

type ErrorResponse struct {
	Error string `json:"error"`
}

type StartConversationRequest struct {
	ParticipantIDs []string `json:"participant_ids"`
	GigID          *string  `json:"gig_id,omitempty"`
}

type ConversationItem struct {
	ID            string    `json:"id"`
	GigID         *string   `json:"gig_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	LastMessageAt time.Time `json:"last_message_at"`
}

type ConversationsListResponse struct {
	Items      []ConversationItem `json:"items"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

type SendMessageRequest struct {
	Text string `json:"text"`
}

type MessageItem struct {
	ID                string    `json:"id"`
	ConversationID    string    `json:"conversation_id"`
	SenderID          string    `json:"sender_id"`
	SenderDisplayName *string   `json:"sender_display_name,omitempty"`
	SenderAvatarURL   *string   `json:"sender_avatar_url,omitempty"`
	Text              string    `json:"text"`
	CreatedAt         time.Time `json:"created_at"`
	ReadBy            []string  `json:"read_by"`
}

type MessagesHistoryResponse struct {
	Items      []MessageItem `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

type TypingResponse struct {
	UserIDs []string `json:"user_ids"`
}

type AckResponse struct {
	Status string `json:"status"`
}
