package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/adi-253/duochat/internal/models"
)

func (s *SQLStore) InsertNotification(ctx context.Context, n *models.Notification) error {
	n.ID = newID()
	ts := now()
	n.CreatedAt, n.UpdatedAt = ts, ts
	if n.Data == nil {
		n.Data = map[string]any{}
	}
	data, err := marshalJSON(n.Data)
	if err != nil {
		return wrapErr(err, "encode notification data")
	}

	query := s.rebind(`INSERT INTO notifications (id, owner, actor, type, title, body, is_read, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = s.db.ExecContext(ctx, query, n.ID, n.Owner, nullString(n.Actor), n.Type, n.Title, n.Body, n.Read,
		data, n.CreatedAt, n.UpdatedAt)
	return wrapErr(err, "insert notification")
}

func (s *SQLStore) ListNotifications(ctx context.Context, owner string, limit int) ([]models.Notification, error) {
	query := `SELECT id, owner, actor, type, title, body, is_read, data, created_at, updated_at
		FROM notifications WHERE owner = ? ORDER BY created_at DESC, id DESC`
	args := []any{owner}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, wrapErr(err, "list notifications")
	}
	defer rows.Close()

	out := []models.Notification{}
	for rows.Next() {
		var (
			n     models.Notification
			actor sql.NullString
			data  string
		)
		if err := rows.Scan(&n.ID, &n.Owner, &actor, &n.Type, &n.Title, &n.Body, &n.Read, &data,
			&n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, wrapErr(err, "list notifications")
		}
		if err := json.Unmarshal([]byte(data), &n.Data); err != nil {
			return nil, wrapErr(errors.Wrap(err, "decode data"), "list notifications")
		}
		n.Actor = stringPtr(actor)
		out = append(out, n)
	}
	return out, wrapErr(rows.Err(), "list notifications")
}

func (s *SQLStore) CountUnread(ctx context.Context, owner string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM notifications WHERE owner = ? AND is_read = ?`),
		owner, false).Scan(&count)
	return count, wrapErr(err, "count unread")
}

func (s *SQLStore) MarkNotificationsRead(ctx context.Context, owner string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := []any{true, now(), owner}
	for _, id := range ids {
		args = append(args, id)
	}
	query := s.rebind(`UPDATE notifications SET is_read = ?, updated_at = ?
		WHERE owner = ? AND id IN (` + placeholders(len(ids)) + `)`)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, wrapErr(err, "mark notifications read")
	}
	n, err := res.RowsAffected()
	return n, wrapErr(err, "mark notifications read")
}

func (s *SQLStore) InsertNote(ctx context.Context, n *models.PersonalNote) error {
	n.ID = newID()
	ts := now()
	n.CreatedAt, n.UpdatedAt = ts, ts
	_, err := s.db.ExecContext(ctx,
		s.rebind(`INSERT INTO personal_notes (id, username, content, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`),
		n.ID, n.Username, n.Content, n.CreatedAt, n.UpdatedAt)
	return wrapErr(err, "insert note")
}

func (s *SQLStore) ListNotes(ctx context.Context, username string) ([]models.PersonalNote, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT id, username, content, created_at, updated_at FROM personal_notes
			WHERE username = ? ORDER BY created_at, id`), username)
	if err != nil {
		return nil, wrapErr(err, "list notes")
	}
	defer rows.Close()

	out := []models.PersonalNote{}
	for rows.Next() {
		var n models.PersonalNote
		if err := rows.Scan(&n.ID, &n.Username, &n.Content, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, wrapErr(err, "list notes")
		}
		out = append(out, n)
	}
	return out, wrapErr(rows.Err(), "list notes")
}

func (s *SQLStore) GetTaskDraft(ctx context.Context, owner string) (*models.TaskDraft, error) {
	var (
		d    models.TaskDraft
		task sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT id, owner, task, created_at, updated_at FROM task_drafts WHERE owner = ?`), owner).
		Scan(&d.ID, &d.Owner, &task, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, wrapErr(err, "get task draft")
	}
	if task.Valid {
		if err := json.Unmarshal([]byte(task.String), &d.Task); err != nil {
			return nil, wrapErr(err, "decode task draft")
		}
	}
	return &d, nil
}

func (s *SQLStore) UpsertTaskDraft(ctx context.Context, owner string, task models.Task) (*models.TaskDraft, error) {
	encoded, err := nullJSON(task)
	if err != nil {
		return nil, wrapErr(err, "encode task draft")
	}
	ts := now()
	query := s.rebind(`INSERT INTO task_drafts (id, owner, task, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (owner) DO UPDATE SET task = excluded.task, updated_at = excluded.updated_at`)
	if _, err := s.db.ExecContext(ctx, query, newID(), owner, encoded, ts, ts); err != nil {
		return nil, wrapErr(err, "upsert task draft")
	}
	return s.GetTaskDraft(ctx, owner)
}
