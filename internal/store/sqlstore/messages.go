package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"slices"
	"time"

	"github.com/pkg/errors"

	"github.com/adi-253/duochat/internal/models"
	"github.com/adi-253/duochat/internal/store"
)

const messageColumns = `id, sender, recipient, conversation_id, type, content, task, attachments,
	reply_to, forwarded_from, deleted_for, is_deleted_everyone, status, edited_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*models.Message, error) {
	var (
		m                  models.Message
		task               sql.NullString
		attachments        string
		replyTo, forwarded sql.NullString
		deletedFor         string
		editedAt           sql.NullTime
	)
	err := row.Scan(&m.ID, &m.Sender, &m.Recipient, &m.ConversationID, &m.Type, &m.Content, &task, &attachments,
		&replyTo, &forwarded, &deletedFor, &m.IsDeletedEveryone, &m.Status, &editedAt, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if task.Valid {
		if err := json.Unmarshal([]byte(task.String), &m.Task); err != nil {
			return nil, errors.Wrap(err, "decode task")
		}
	}
	if err := json.Unmarshal([]byte(attachments), &m.Attachments); err != nil {
		return nil, errors.Wrap(err, "decode attachments")
	}
	if err := json.Unmarshal([]byte(deletedFor), &m.DeletedFor); err != nil {
		return nil, errors.Wrap(err, "decode deleted_for")
	}
	if m.Attachments == nil {
		m.Attachments = []models.Attachment{}
	}
	if m.DeletedFor == nil {
		m.DeletedFor = []string{}
	}
	m.ReplyTo = stringPtr(replyTo)
	m.ForwardedFrom = stringPtr(forwarded)
	if editedAt.Valid {
		t := editedAt.Time
		m.EditedAt = &t
	}
	return &m, nil
}

func (s *SQLStore) queryMessages(ctx context.Context, op, query string, args ...any) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, wrapErr(err, op)
	}
	defer rows.Close()

	out := []models.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, wrapErr(err, op)
		}
		out = append(out, *m)
	}
	return out, wrapErr(rows.Err(), op)
}

func (s *SQLStore) InsertMessage(ctx context.Context, m *models.Message) error {
	m.Normalize()
	m.ID = newID()
	ts := now()
	m.CreatedAt, m.UpdatedAt = ts, ts

	task, err := nullJSON(m.Task)
	if err != nil {
		return wrapErr(err, "encode task")
	}
	attachments, err := marshalJSON(m.Attachments)
	if err != nil {
		return wrapErr(err, "encode attachments")
	}
	deletedFor, err := marshalJSON(m.DeletedFor)
	if err != nil {
		return wrapErr(err, "encode deleted_for")
	}

	query := s.rebind(`INSERT INTO messages (` + messageColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	var editedAt sql.NullTime
	if m.EditedAt != nil {
		editedAt = sql.NullTime{Time: *m.EditedAt, Valid: true}
	}
	_, err = s.db.ExecContext(ctx, query, m.ID, m.Sender, m.Recipient, m.ConversationID, m.Type, m.Content, task,
		attachments, nullString(m.ReplyTo), nullString(m.ForwardedFrom), deletedFor, m.IsDeletedEveryone,
		m.Status, editedAt, m.CreatedAt, m.UpdatedAt)
	return wrapErr(err, "insert message")
}

func (s *SQLStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+messageColumns+` FROM messages WHERE id = ?`), id)
	m, err := scanMessage(row)
	if err != nil {
		return nil, wrapErr(err, "get message")
	}
	return m, nil
}

func (s *SQLStore) ListMessages(ctx context.Context, conversationID string, opts store.ListOptions) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE conversation_id = ?`
	args := []any{conversationID}
	if !opts.Before.IsZero() {
		query += ` AND created_at < ?`
		args = append(args, opts.Before.UTC())
	}
	if opts.Limit <= 0 {
		return s.queryMessages(ctx, "list messages", query+` ORDER BY created_at, id`, args...)
	}

	// newest page first, then flipped back to chronological order
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, opts.Limit)
	msgs, err := s.queryMessages(ctx, "list messages", query, args...)
	if err != nil {
		return nil, err
	}
	slices.Reverse(msgs)
	return msgs, nil
}

func (s *SQLStore) ListAwaitingStatus(ctx context.Context, conversationID, recipient string, target models.DeliveryStatus) ([]models.Message, error) {
	below := target.Below()
	if len(below) == 0 {
		return []models.Message{}, nil
	}
	args := []any{conversationID, recipient}
	for _, st := range below {
		args = append(args, st)
	}
	query := `SELECT ` + messageColumns + ` FROM messages
		WHERE conversation_id = ? AND recipient = ? AND status IN (` + placeholders(len(below)) + `)
		ORDER BY created_at, id`
	return s.queryMessages(ctx, "list awaiting status", query, args...)
}

func (s *SQLStore) AdvanceStatus(ctx context.Context, id string, target models.DeliveryStatus) (bool, error) {
	below := target.Below()
	if len(below) == 0 {
		return false, nil
	}
	args := []any{target, now(), id}
	for _, st := range below {
		args = append(args, st)
	}
	query := s.rebind(`UPDATE messages SET status = ?, updated_at = ?
		WHERE id = ? AND status IN (` + placeholders(len(below)) + `)`)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, wrapErr(err, "advance status")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrapErr(err, "advance status")
	}
	if n > 0 {
		return true, nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, s.rebind(`SELECT 1 FROM messages WHERE id = ?`), id).Scan(&exists)
	return false, wrapErr(err, "advance status")
}

// updateMessage runs an UPDATE that must hit exactly the row with id and
// returns the row afterwards.
// updateMessage applies set to one message. With liveOnly the row must not
// be tombstoned; the check and the write are a single statement.
func (s *SQLStore) updateMessage(ctx context.Context, op, id string, liveOnly bool, set string, args ...any) (*models.Message, error) {
	query := `UPDATE messages SET ` + set + `, updated_at = ? WHERE id = ?`
	if liveOnly {
		query += ` AND is_deleted_everyone = false`
	}
	args = append(args, now(), id)
	res, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, wrapErr(err, op)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, wrapErr(err, op)
	} else if n == 0 {
		if !liveOnly {
			return nil, store.ErrNotFound
		}
		if _, err := s.GetMessage(ctx, id); err != nil {
			return nil, err
		}
		return nil, store.ErrTombstoned
	}
	return s.GetMessage(ctx, id)
}

func (s *SQLStore) UpdateContent(ctx context.Context, id, content string, editedAt time.Time) (*models.Message, error) {
	return s.updateMessage(ctx, "update content", id, true, `content = ?, edited_at = ?`,
		content, editedAt.UTC().Truncate(time.Microsecond))
}

func (s *SQLStore) MarkDeletedForEveryone(ctx context.Context, id string) (*models.Message, error) {
	return s.updateMessage(ctx, "delete for everyone", id, false,
		`is_deleted_everyone = ?, content = '', task = NULL, attachments = '[]'`, true)
}

func (s *SQLStore) AddDeletedFor(ctx context.Context, id, username string) (*models.Message, error) {
	selectQuery := `SELECT deleted_for FROM messages WHERE id = ?`
	if s.driverName == "postgres" {
		selectQuery += ` FOR UPDATE`
	}

	err := withTx(ctx, s.db, "delete for user", func(tx *sql.Tx) error {
		var raw string
		if err := tx.QueryRowContext(ctx, s.rebind(selectQuery), id).Scan(&raw); err != nil {
			return wrapErr(err, "delete for user")
		}
		var users []string
		if err := json.Unmarshal([]byte(raw), &users); err != nil {
			return wrapErr(err, "decode deleted_for")
		}
		if slices.Contains(users, username) {
			return nil
		}
		encoded, err := marshalJSON(append(users, username))
		if err != nil {
			return wrapErr(err, "encode deleted_for")
		}
		_, err = tx.ExecContext(ctx, s.rebind(`UPDATE messages SET deleted_for = ?, updated_at = ? WHERE id = ?`),
			encoded, now(), id)
		return wrapErr(err, "delete for user")
	})
	if err != nil {
		return nil, err
	}
	return s.GetMessage(ctx, id)
}
