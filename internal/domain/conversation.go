package domain

import "time"

type Conversation struct {
	ID            string    `db:"id"`
	GigID         *string   `db:"gig_id"`
	CreatedAt     time.Time `db:"created_at"`
	LastMessageAt time.Time `db:"last_message_at"`
}
