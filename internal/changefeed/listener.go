package changefeed

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Listener держит выделенное соединение на LISTEN и передаёт
// уведомления в Bridge.
type Listener struct {
	pool      *pgxpool.Pool
	bridge    *Bridge
	channel   string
	reconnect time.Duration
}

func NewListener(pool *pgxpool.Pool, bridge *Bridge, channel string, reconnect time.Duration) *Listener {
	if reconnect <= 0 {
		reconnect = 3 * time.Second
	}
	return &Listener{
		pool:      pool,
		bridge:    bridge,
		channel:   channel,
		reconnect: reconnect,
	}
}

// Run блокируется до отмены контекста; потерянное соединение
// переоткрывается с паузой reconnect.
func (l *Listener) Run(ctx context.Context) error {
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("change feed: listen connection lost", "err", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.reconnect):
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+l.channel); err != nil {
		return err
	}
	slog.Info("change feed: listening", "channel", l.channel)

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}

		var ev Event
		if err := json.Unmarshal([]byte(n.Payload), &ev); err != nil {
			slog.Warn("change feed: bad notification payload",
				"payload", n.Payload, "err", err)
			continue
		}
		if ev.ID == "" || ev.ConversationID == "" {
			slog.Warn("change feed: incomplete notification payload", "payload", n.Payload)
			continue
		}

		l.bridge.Dispatch(ctx, ev)
	}
}
