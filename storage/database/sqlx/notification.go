package sqlxdb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/darasahq/darasa/core/notification"
)

type notificationRepository struct {
	db *sqlx.DB
}

var _ notification.Repository = (*notificationRepository)(nil)

func NewNotificationRepository(db *sqlx.DB) *notificationRepository {
	return &notificationRepository{db: db}
}

type notificationRow struct {
	ID        string      `db:"id"`
	UserID    string      `db:"user_id"`
	Kind      string      `db:"kind"`
	Title     string      `db:"title"`
	Message   string      `db:"message"`
	Link      null.String `db:"link"`
	CourseID  null.String `db:"course_id"`
	Read      bool        `db:"is_read"`
	CreatedAt time.Time   `db:"created_at"`
}

func (row notificationRow) toNotification() notification.Notification {
	return notification.Notification{
		ID:        row.ID,
		UserID:    row.UserID,
		Kind:      notification.Kind(row.Kind),
		Title:     row.Title,
		Message:   row.Message,
		Link:      row.Link,
		CourseID:  row.CourseID,
		Read:      row.Read,
		CreatedAt: row.CreatedAt,
	}
}

func (repo *notificationRepository) CreateNotifications(ctx context.Context, notifs ...notification.Notification) error {
	if len(notifs) == 0 {
		return nil
	}
	return inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		q := `INSERT INTO notifications (id, user_id, kind, title, message, link, course_id, is_read, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
		for _, notif := range notifs {
			_, err := tx.ExecContext(ctx, q,
				uuid.New().String(), notif.UserID, notif.Kind, notif.Title, notif.Message,
				notif.Link, notif.CourseID, notif.Read, notif.CreatedAt)
			if err != nil {
				return errors.Wrap(err, "inserting notification")
			}
		}
		return nil
	})
}

func (repo *notificationRepository) QueryUserNotifications(ctx context.Context, userID string, unreadOnly bool) ([]notification.Notification, error) {
	q := `SELECT * FROM notifications WHERE user_id = $1`
	if unreadOnly {
		q += ` AND NOT is_read`
	}
	q += ` ORDER BY created_at DESC`

	var rows []notificationRow
	if err := repo.db.SelectContext(ctx, &rows, q, userID); err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	res := make([]notification.Notification, len(rows))
	for i, row := range rows {
		res[i] = row.toNotification()
	}
	return res, nil
}

func (repo *notificationRepository) GetNotificationByID(ctx context.Context, id string) (notification.Notification, error) {
	var row notificationRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM notifications WHERE id = $1`, id)
	if err != nil {
		if isNoRows(err) {
			return notification.Notification{}, notification.ErrNotFound
		}
		return notification.Notification{}, errors.Wrap(err, "getting notification")
	}
	return row.toNotification(), nil
}

func (repo *notificationRepository) MarkNotificationRead(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "marking notification read")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notification.ErrNotFound
	}
	return nil
}

func (repo *notificationRepository) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	_, err := repo.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND NOT is_read`, userID)
	return errors.Wrap(err, "marking notifications read")
}

func (repo *notificationRepository) DeleteNotification(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting notification")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notification.ErrNotFound
	}
	return nil
}

func (repo *notificationRepository) DeleteReadNotifications(ctx context.Context, userID string) error {
	_, err := repo.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE user_id = $1 AND is_read`, userID)
	return errors.Wrap(err, "deleting read notifications")
}

func (repo *notificationRepository) NotificationExists(ctx context.Context, userID, courseID string, kind notification.Kind) (bool, error) {
	var exists bool
	err := repo.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM notifications WHERE user_id = $1 AND course_id = $2 AND kind = $3)`,
		userID, courseID, kind)
	return exists, errors.Wrap(err, "checking notification existence")
}
