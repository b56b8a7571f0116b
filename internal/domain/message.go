package domain

import "time"

type Message struct {
	ID             string    `db:"id"`
	ConversationID string    `db:"conversation_id"`
	SenderID       int64     `db:"sender_id"`
	Text           string    `db:"text"`
	CreatedAt      time.Time `db:"created_at"`
	ReadBy         []int64   `db:"read_by"`
}

// MessageView — сообщение с полями профиля отправителя (для доставки клиенту).
type MessageView struct {
	Message
	SenderDisplayName *string
	SenderAvatarURL   *string
}
