package postgres

import (
	"context"
	"time"

	"github.com/giglink/chat-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ConversationRepository struct {
	db *pgxpool.Pool
}

func NewConversationRepository(db *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// Create — разговор и его участники в одной транзакции; состав фиксируется на старте.
func (r *ConversationRepository) Create(ctx context.Context, conv *domain.Conversation, participantIDs []int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO conversations (gig_id)
		VALUES ($1)
		RETURNING id, created_at, last_message_at
	`, conv.GigID).Scan(&conv.ID, &conv.CreatedAt, &conv.LastMessageAt)
	if err != nil {
		return err
	}

	for _, uid := range participantIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO conversation_participants (conversation_id, user_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, conv.ID, uid); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *ConversationRepository) Get(ctx context.Context, id string) (*domain.Conversation, error) {
	var c domain.Conversation
	err := r.db.QueryRow(ctx, `
		SELECT id, gig_id, created_at, last_message_at
		FROM conversations WHERE id=$1
	`, id).Scan(&c.ID, &c.GigID, &c.CreatedAt, &c.LastMessageAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrConversationNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *ConversationRepository) IsParticipant(ctx context.Context, conversationID string, userID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM conversation_participants WHERE conversation_id=$1 AND user_id=$2)`,
		conversationID, userID).Scan(&exists)
	return exists, err
}

func (r *ConversationRepository) ListParticipants(ctx context.Context, conversationID string) ([]domain.Participant, error) {
	rows, err := r.db.Query(ctx,
		`SELECT conversation_id, user_id, joined_at
		 FROM conversation_participants WHERE conversation_id=$1 ORDER BY joined_at ASC`,
		conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []domain.Participant
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.ConversationID, &p.UserID, &p.JoinedAt); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// ListByUser — разговоры пользователя, свежие сверху, курсор по (last_message_at,id).
func (r *ConversationRepository) ListByUser(ctx context.Context, userID int64, limit int, cursorStr string) ([]domain.Conversation, string, error) {
	cur, err := DecodeCursor(cursorStr)
	if err != nil {
		return nil, "", err
	}

	const query = `
		SELECT c.id, c.gig_id, c.created_at, c.last_message_at
		FROM conversations c
		JOIN conversation_participants p ON p.conversation_id = c.id
		WHERE p.user_id = $1
		  AND ($2::timestamptz IS NULL OR c.last_message_at < $2
		       OR (c.last_message_at = $2 AND c.id < $3))
		ORDER BY c.last_message_at DESC, c.id DESC
		LIMIT $4`

	var lastMessageAt any
	var id any
	if cur != nil {
		lastMessageAt = cur.CreatedAt
		id = cur.ID
	}

	rows, err := r.db.Query(ctx, query, userID, lastMessageAt, id, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var convs []domain.Conversation
	for rows.Next() {
		var c domain.Conversation
		if err := rows.Scan(&c.ID, &c.GigID, &c.CreatedAt, &c.LastMessageAt); err != nil {
			return nil, "", err
		}
		convs = append(convs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	var nextCursor string
	if len(convs) == limit {
		last := convs[len(convs)-1]
		nextCursor, _ = EncodeCursor(Cursor{CreatedAt: last.LastMessageAt, ID: last.ID})
	}

	return convs, nextCursor, nil
}

func (r *ConversationRepository) TouchLastMessage(ctx context.Context, conversationID string, at time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE conversations SET last_message_at=$2 WHERE id=$1 AND last_message_at < $2`,
		conversationID, at)
	return err
}
