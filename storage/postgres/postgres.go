// Package postgres is the durable persistence provider: write-behind of
// chat mutations and startup hydration of the in-memory state.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"chatcore/pkg/breaker"
	"chatcore/services/directory"
	"chatcore/services/messages"
	"chatcore/storage"

	"github.com/pressly/goose/v3"
	"github.com/sony/gobreaker"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store persists the chat catalog and message logs in Postgres. All writes
// are idempotent so replayed notifications are harmless.
type Store struct {
	db *sql.DB
	cb *gobreaker.CircuitBreaker
}

func New(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		db.Close()
		return nil, err
	}
	if err := goose.Up(db, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{
		db: db,
		cb: breaker.New(breaker.Config{Name: "postgres"}),
	}, nil
}

func (s *Store) Name() string { return "postgres" }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) ChatCreated(ctx context.Context, chat directory.Chat) error {
	_, err := breaker.ExecuteCtx(ctx, s.cb, func() (interface{}, error) {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, err
		}
		defer tx.Rollback()

		var name sql.NullString
		if chat.Name != "" {
			name = sql.NullString{String: chat.Name, Valid: true}
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chats (id, chat_type, name, created_at)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (id) DO NOTHING`,
			chat.ID, string(chat.Type), name, chat.CreatedAt,
		); err != nil {
			return nil, err
		}

		for _, m := range chat.Members {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO chat_members (chat_id, user_id, joined_at)
				 VALUES ($1, $2, $3)
				 ON CONFLICT (chat_id, user_id) DO NOTHING`,
				chat.ID, m.UserID, m.JoinedAt,
			); err != nil {
				return nil, err
			}
		}

		return nil, tx.Commit()
	})
	return err
}

func (s *Store) MessageAppended(ctx context.Context, msg messages.Message) error {
	_, err := breaker.ExecuteCtx(ctx, s.cb, func() (interface{}, error) {
		_, execErr := s.db.ExecContext(ctx,
			`INSERT INTO chat_messages (id, chat_id, sender_id, body, sent_at)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (id) DO NOTHING`,
			msg.ID, msg.ChatID, msg.SenderID, msg.Text, msg.SentAt,
		)
		return nil, execErr
	})
	return err
}

func (s *Store) MessageSeen(ctx context.Context, chatID, messageID, userID string) error {
	_, err := breaker.ExecuteCtx(ctx, s.cb, func() (interface{}, error) {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, err
		}
		defer tx.Rollback()

		now := time.Now()

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO message_seen (message_id, user_id, seen_at)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (message_id, user_id) DO NOTHING`,
			messageID, userID, now,
		); err != nil {
			return nil, err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE chat_members
			 SET last_read_message_id = $3, last_read_at = $4
			 WHERE chat_id = $1 AND user_id = $2`,
			chatID, userID, messageID, now,
		); err != nil {
			return nil, err
		}

		return nil, tx.Commit()
	})
	return err
}

func (s *Store) ChatRefreshed(ctx context.Context, chatID string) error {
	// Nothing to invalidate; the database is the source of durability
	return nil
}

// Hydrate reloads the persisted catalog and message logs, in original
// insertion order, for startup preloading.
func (s *Store) Hydrate(ctx context.Context) (*storage.Snapshot, error) {
	snap := &storage.Snapshot{}

	chatRows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_type, name, created_at FROM chats ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer chatRows.Close()

	chatIndex := make(map[string]int)
	for chatRows.Next() {
		var c directory.Chat
		var chatType string
		var name sql.NullString
		if err := chatRows.Scan(&c.ID, &chatType, &name, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Type = directory.ChatType(chatType)
		c.Name = name.String

		chatIndex[c.ID] = len(snap.Chats)
		snap.Chats = append(snap.Chats, c)
	}
	if err := chatRows.Err(); err != nil {
		return nil, err
	}

	memberRows, err := s.db.QueryContext(ctx,
		`SELECT chat_id, user_id, joined_at, last_read_message_id, last_read_at
		 FROM chat_members ORDER BY joined_at, user_id`)
	if err != nil {
		return nil, err
	}
	defer memberRows.Close()

	for memberRows.Next() {
		var m directory.Member
		var lastRead sql.NullString
		var lastReadAt sql.NullTime
		if err := memberRows.Scan(&m.ChatID, &m.UserID, &m.JoinedAt, &lastRead, &lastReadAt); err != nil {
			return nil, err
		}
		m.LastReadMessageID = lastRead.String
		m.LastReadAt = lastReadAt.Time

		if i, ok := chatIndex[m.ChatID]; ok {
			snap.Chats[i].Members = append(snap.Chats[i].Members, m)
		}
	}
	if err := memberRows.Err(); err != nil {
		return nil, err
	}

	seen, err := s.loadSeen(ctx)
	if err != nil {
		return nil, err
	}

	msgRows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, sender_id, body, sent_at FROM chat_messages ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer msgRows.Close()

	for msgRows.Next() {
		var m messages.Message
		if err := msgRows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Text, &m.SentAt); err != nil {
			return nil, err
		}
		m.SeenBy = seen[m.ID]
		snap.Messages = append(snap.Messages, m)
	}
	if err := msgRows.Err(); err != nil {
		return nil, err
	}

	return snap, nil
}

func (s *Store) loadSeen(ctx context.Context) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, user_id FROM message_seen ORDER BY seen_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seen := make(map[string][]string)
	for rows.Next() {
		var messageID, userID string
		if err := rows.Scan(&messageID, &userID); err != nil {
			return nil, err
		}
		seen[messageID] = append(seen[messageID], userID)
	}
	return seen, rows.Err()
}
