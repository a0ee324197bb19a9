package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/popeskul/inbound-messages/internal/models"
)

const (
	MinLimit = 1
	MaxLimit = 100

	topSendersLimit = 10
)

const selectMessages = `
		SELECT message_id, from_address, to_address, ts, text, received_at
		FROM messages`

type messageRepository struct {
	db      *sqlx.DB
	dialect dialect
	now     func() time.Time
}

func NewMessageRepository(db *sqlx.DB) MessageRepository {
	return &messageRepository{
		db:      db,
		dialect: dialectFor(db.DriverName()),
		now:     time.Now,
	}
}

// InsertIfAbsent stores msg unless a message with the same id exists.
// The primary key decides; there is no existence check before the insert.
func (r *messageRepository) InsertIfAbsent(ctx context.Context, msg *models.Message) (models.InsertResult, error) {
	var result models.InsertResult

	err := r.withConn(ctx, func(conn *sqlx.Conn) error {
		query := conn.Rebind(`
		INSERT INTO messages (message_id, from_address, to_address, ts, text, received_at)
		VALUES (?, ?, ?, ?, ?, ?)`)

		receivedAt := r.now().UTC()
		_, err := conn.ExecContext(ctx, query,
			msg.MessageID, msg.FromAddress, msg.ToAddress, msg.Timestamp, msg.Text, receivedAt)
		if err != nil {
			if isUniqueViolation(err) {
				result = models.InsertDuplicate
				return nil
			}
			return fmt.Errorf("failed to insert message: %w", err)
		}

		msg.ReceivedAt = receivedAt
		result = models.InsertCreated
		return nil
	})
	if err != nil {
		return "", err
	}

	return result, nil
}

// Query returns one page of messages ordered by ts then message_id, and the number of
// messages matching the filter before pagination.
func (r *messageRepository) Query(ctx context.Context, filter models.MessageFilter) ([]*models.Message, int64, error) {
	if filter.Limit < MinLimit || filter.Limit > MaxLimit || filter.Offset < 0 {
		return nil, 0, ErrInvalidPagination
	}

	where, args := r.where(filter)

	var (
		messages []*models.Message
		total    int64
	)

	err := r.withSnapshot(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &total, tx.Rebind("SELECT COUNT(*) FROM messages"+where), args...); err != nil {
			return fmt.Errorf("failed to count messages: %w", err)
		}

		query := tx.Rebind(selectMessages + where + `
		ORDER BY ts ASC, message_id ASC
		LIMIT ? OFFSET ?`)

		pageArgs := append(append([]interface{}{}, args...), filter.Limit, filter.Offset)
		if err := tx.SelectContext(ctx, &messages, query, pageArgs...); err != nil {
			return fmt.Errorf("failed to get messages: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	if messages == nil {
		messages = []*models.Message{}
	}

	return messages, total, nil
}

// Stats computes all aggregates inside one read transaction so they describe the same state.
func (r *messageRepository) Stats(ctx context.Context) (*models.Stats, error) {
	stats := &models.Stats{}

	err := r.withSnapshot(ctx, func(tx *sqlx.Tx) error {
		query := `
		SELECT COUNT(*) AS total_messages,
		       COUNT(DISTINCT from_address) AS senders_count,
		       MIN(ts) AS first_ts,
		       MAX(ts) AS last_ts
		FROM messages`
		if err := tx.GetContext(ctx, stats, query); err != nil {
			return fmt.Errorf("failed to get message totals: %w", err)
		}

		query = tx.Rebind(`
		SELECT from_address, COUNT(*) AS count
		FROM messages
		GROUP BY from_address
		ORDER BY count DESC, from_address ASC
		LIMIT ?`)
		if err := tx.SelectContext(ctx, &stats.TopSenders, query, topSendersLimit); err != nil {
			return fmt.Errorf("failed to get top senders: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if stats.TopSenders == nil {
		stats.TopSenders = []models.SenderCount{}
	}

	return stats, nil
}

func (r *messageRepository) where(filter models.MessageFilter) (string, []interface{}) {
	var (
		conditions []string
		args       []interface{}
	)

	if filter.From != "" {
		conditions = append(conditions, "from_address = ?")
		args = append(args, filter.From)
	}

	if filter.Since != "" {
		conditions = append(conditions, "ts >= ?")
		args = append(args, filter.Since)
	}

	if filter.TextContains != "" {
		conditions = append(conditions, r.dialect.containsExpr)
		args = append(args, filter.TextContains)
	}

	if len(conditions) == 0 {
		return "", nil
	}

	return "\n\t\tWHERE " + strings.Join(conditions, " AND "), args
}

// withConn runs fn on a connection reserved for this call and always returns it to the pool.
func (r *messageRepository) withConn(ctx context.Context, fn func(conn *sqlx.Conn) error) error {
	conn, err := r.db.Connx(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer func() {
		_ = conn.Close()
	}()

	return fn(conn)
}

// withSnapshot runs fn inside a read transaction on a reserved connection.
func (r *messageRepository) withSnapshot(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return r.withConn(ctx, func(conn *sqlx.Conn) error {
		tx, err := conn.BeginTxx(ctx, r.dialect.snapshot)
		if err != nil {
			return fmt.Errorf("failed to begin read transaction: %w", err)
		}
		defer func() {
			_ = tx.Rollback()
		}()

		if err := fn(tx); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit read transaction: %w", err)
		}

		return nil
	})
}
