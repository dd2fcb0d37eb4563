package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/darasahq/darasa/core/notification"
)

type notificationRepository struct {
	db *DB
}

var _ notification.Repository = (*notificationRepository)(nil)

func NewNotificationRepository(db *DB) *notificationRepository {
	return &notificationRepository{db: db}
}

func (repo *notificationRepository) CreateNotifications(_ context.Context, notifs ...notification.Notification) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, notif := range notifs {
		notif := notif
		notif.ID = uuid.New().String()
		repo.db.notifications[notif.ID] = &notif
	}
	return nil
}

func (repo *notificationRepository) QueryUserNotifications(_ context.Context, userID string, unreadOnly bool) ([]notification.Notification, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	res := make([]notification.Notification, 0)
	for _, notif := range repo.db.notifications {
		if notif.UserID != userID {
			continue
		}
		if unreadOnly && notif.Read {
			continue
		}
		res = append(res, *notif)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

func (repo *notificationRepository) GetNotificationByID(_ context.Context, id string) (notification.Notification, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if notif, ok := repo.db.notifications[id]; ok {
		return *notif, nil
	}
	return notification.Notification{}, notification.ErrNotFound
}

func (repo *notificationRepository) MarkNotificationRead(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	notif, ok := repo.db.notifications[id]
	if !ok {
		return notification.ErrNotFound
	}
	notif.Read = true
	return nil
}

func (repo *notificationRepository) MarkAllNotificationsRead(_ context.Context, userID string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, notif := range repo.db.notifications {
		if notif.UserID == userID {
			notif.Read = true
		}
	}
	return nil
}

func (repo *notificationRepository) DeleteNotification(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.notifications[id]; !ok {
		return notification.ErrNotFound
	}
	delete(repo.db.notifications, id)
	return nil
}

func (repo *notificationRepository) DeleteReadNotifications(_ context.Context, userID string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for id, notif := range repo.db.notifications {
		if notif.UserID == userID && notif.Read {
			delete(repo.db.notifications, id)
		}
	}
	return nil
}

func (repo *notificationRepository) NotificationExists(_ context.Context, userID, courseID string, kind notification.Kind) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, notif := range repo.db.notifications {
		if notif.UserID == userID && notif.Kind == kind && notif.CourseID.Valid && notif.CourseID.String == courseID {
			return true, nil
		}
	}
	return false, nil
}
