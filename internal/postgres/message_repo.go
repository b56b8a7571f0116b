package postgres

import (
	"context"
	"fmt"

	"github.com/giglink/chat-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NotifyChannel — канал pg_notify, на который слушает change feed.
const NotifyChannel = "chat_messages"

type MessageRepository struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

// Save — вставка сообщения и pg_notify в одной транзакции, чтобы
// уведомление не ушло без строки.
func (r *MessageRepository) Save(ctx context.Context, conversationID string, senderID int64, text string) (*domain.Message, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var m domain.Message
	err = tx.QueryRow(ctx, `
		INSERT INTO conversation_messages (conversation_id, sender_id, text)
		VALUES ($1, $2, $3)
		RETURNING id, conversation_id, sender_id, text, created_at, read_by
	`, conversationID, senderID, text).Scan(
		&m.ID, &m.ConversationID, &m.SenderID, &m.Text, &m.CreatedAt, &m.ReadBy)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		SELECT pg_notify($1, json_build_object('id', $2::text, 'conversation_id', $3::text)::text)
	`, NotifyChannel, m.ID, m.ConversationID); err != nil {
		return nil, fmt.Errorf("notify: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MessageRepository) Get(ctx context.Context, id string) (*domain.Message, error) {
	var m domain.Message
	err := r.db.QueryRow(ctx, `
		SELECT id, conversation_id, sender_id, text, created_at, read_by
		FROM conversation_messages WHERE id=$1
	`, id).Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Text, &m.CreatedAt, &m.ReadBy)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrMessageNotFound
		}
		return nil, err
	}
	return &m, nil
}

// GetView — сообщение вместе с полями профиля отправителя. Change feed
// всегда перечитывает строку этим запросом, payload уведомления не доверяем.
func (r *MessageRepository) GetView(ctx context.Context, id string) (*domain.MessageView, error) {
	var v domain.MessageView
	err := r.db.QueryRow(ctx, `
		SELECT m.id, m.conversation_id, m.sender_id, m.text, m.created_at, m.read_by,
		       u.display_name, u.avatar_url
		FROM conversation_messages m
		LEFT JOIN users u ON u.id = m.sender_id
		WHERE m.id=$1
	`, id).Scan(
		&v.ID, &v.ConversationID, &v.SenderID, &v.Text, &v.CreatedAt, &v.ReadBy,
		&v.SenderDisplayName, &v.SenderAvatarURL)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrMessageNotFound
		}
		return nil, err
	}
	return &v, nil
}

// History — история сообщений с курсорной пагинацией (created_at,id DESC).
func (r *MessageRepository) History(ctx context.Context, conversationID, after string, limit int) ([]domain.MessageView, string, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	cur, err := DecodeCursor(after)
	if err != nil {
		return nil, "", fmt.Errorf("decode cursor: %w", err)
	}

	const baseQuery = `
		SELECT m.id, m.conversation_id, m.sender_id, m.text, m.created_at, m.read_by,
		       u.display_name, u.avatar_url
		FROM conversation_messages m
		LEFT JOIN users u ON u.id = m.sender_id
		WHERE m.conversation_id = $1
		  AND (
		    $2::timestamptz IS NULL
		    OR m.created_at < $2
		    OR (m.created_at = $2 AND m.id < $3)
		  )
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT $4
	`

	var createdAt any
	var id any
	if cur != nil {
		createdAt = cur.CreatedAt
		id = cur.ID
	}

	rows, err := r.db.Query(ctx, baseQuery, conversationID, createdAt, id, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var out []domain.MessageView
	for rows.Next() {
		var v domain.MessageView
		if err := rows.Scan(
			&v.ID, &v.ConversationID, &v.SenderID, &v.Text, &v.CreatedAt, &v.ReadBy,
			&v.SenderDisplayName, &v.SenderAvatarURL); err != nil {
			return nil, "", err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	var next string
	if len(out) == limit {
		last := out[len(out)-1]
		if c, e := EncodeCursor(Cursor{CreatedAt: last.CreatedAt, ID: last.ID}); e == nil {
			next = c
		}
	}
	return out, next, nil
}

// MarkRead — добавляет userID в read_by, если его там ещё нет.
// Повторный вызов ничего не меняет (0 строк — не ошибка).
func (r *MessageRepository) MarkRead(ctx context.Context, messageID string, userID int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE conversation_messages
		SET read_by = array_append(read_by, $2)
		WHERE id = $1 AND NOT ($2 = ANY(read_by))
	`, messageID, userID)
	return err
}
