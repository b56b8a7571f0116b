package domain

import "time"

type Participant struct {
	ConversationID string    `db:"conversation_id"`
	UserID         int64     `db:"user_id"`
	JoinedAt       time.Time `db:"joined_at"`
}
