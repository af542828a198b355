package sqlite

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sakif/authors-haven/internal/apperror"
	"github.com/sakif/authors-haven/internal/model"
	"github.com/sakif/authors-haven/internal/repository"
)

var (
	_ repository.ReportRepository       = (*DB)(nil)
	_ repository.NotificationRepository = (*DB)(nil)
)

// =========================================================================
// REPORTS
// =========================================================================

func (db *DB) CreateReport(ctx context.Context, r *model.Report) error {
	r.CreatedAt = time.Now().UTC()

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO reports (article_id, user_id, reason, created_at) VALUES (?, ?, ?, ?)`,
		r.ArticleID, r.UserID, r.Reason, r.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.NotFound("article", strconv.FormatInt(r.ArticleID, 10))
		}
		return fmt.Errorf("sqlite: inserting report: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new report id: %w", err)
	}
	r.ID = id
	return nil
}

// ListReports returns reports newest first.
func (db *DB) ListReports(ctx context.Context, opts repository.ListOptions) ([]model.Report, error) {
	limit, offset := clampPage(opts)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, article_id, user_id, reason, created_at FROM reports
		 ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing reports: %w", err)
	}
	defer rows.Close()

	reports := make([]model.Report, 0)
	for rows.Next() {
		var r model.Report
		if err := rows.Scan(&r.ID, &r.ArticleID, &r.UserID, &r.Reason, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning report: %w", err)
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// =========================================================================
// NOTIFICATIONS
// =========================================================================

func (db *DB) CreateNotification(ctx context.Context, n *model.Notification) error {
	n.CreatedAt = time.Now().UTC()
	n.IsRead = false

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO notifications (user_id, type, message, article_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		n.UserID, n.Type, n.Message, n.ArticleID, n.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.NotFound("user", strconv.FormatInt(n.UserID, 10))
		}
		return fmt.Errorf("sqlite: inserting notification: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new notification id: %w", err)
	}
	n.ID = id
	return nil
}

// ListNotifications returns userID's notifications newest first.
func (db *DB) ListNotifications(ctx context.Context, userID int64) ([]model.Notification, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, type, message, article_id, is_read, created_at FROM notifications
		 WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing notifications of user %d: %w", userID, err)
	}
	defer rows.Close()

	notes := make([]model.Notification, 0)
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Message, &n.ArticleID, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning notification: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// MarkNotificationRead only touches rows owned by userID, so another user's
// notification id reads as not found.
func (db *DB) MarkNotificationRead(ctx context.Context, id, userID int64) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?`, id, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: marking notification %d read: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("notification", strconv.FormatInt(id, 10))
	}
	return nil
}
