package notification

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrNotFound = errors.New("notification not found")
)

type (
	Repository interface {
		CreateNotifications(ctx context.Context, notifs ...Notification) error
		QueryUserNotifications(ctx context.Context, userID string, unreadOnly bool) ([]Notification, error)
		GetNotificationByID(ctx context.Context, id string) (Notification, error)
		MarkNotificationRead(ctx context.Context, id string) error
		MarkAllNotificationsRead(ctx context.Context, userID string) error
		DeleteNotification(ctx context.Context, id string) error
		DeleteReadNotifications(ctx context.Context, userID string) error
		NotificationExists(ctx context.Context, userID, courseID string, kind Kind) (bool, error)
	}

	// RecipientResolver resolves a course's audience: every user holding an
	// active enrollment. Implemented by the enrollment repository.
	RecipientResolver interface {
		QueryEnrolledUserIDs(ctx context.Context, courseID string) ([]string, error)
	}

	Service struct {
		repo      Repository
		audiences RecipientResolver
	}
)

func NewService(repo Repository, audiences RecipientResolver) *Service {
	return &Service{
		repo:      repo,
		audiences: audiences,
	}
}

// NotifyUser creates a single notification for one recipient.
func (svc *Service) NotifyUser(ctx context.Context, userID string, tpl Template) error {
	return errors.Wrap(svc.repo.CreateNotifications(ctx, tpl.For(userID)), "creating notification")
}

// NotifyCourseAudience creates one notification per enrolled user,
// minus excludeUserID (typically the actor that caused the event).
func (svc *Service) NotifyCourseAudience(ctx context.Context, courseID, excludeUserID string, tpl Template) error {
	userIDs, err := svc.audiences.QueryEnrolledUserIDs(ctx, courseID)
	if err != nil {
		return errors.Wrap(err, "resolving course audience")
	}

	notifs := make([]Notification, 0, len(userIDs))
	for _, uid := range userIDs {
		if uid == excludeUserID {
			continue
		}
		notifs = append(notifs, tpl.For(uid))
	}
	if len(notifs) == 0 {
		return nil
	}
	return errors.Wrap(svc.repo.CreateNotifications(ctx, notifs...), "creating notifications")
}

func (svc *Service) QueryByUser(ctx context.Context, userID string, unreadOnly bool) ([]Notification, error) {
	return svc.repo.QueryUserNotifications(ctx, userID, unreadOnly)
}

// MarkRead flags one of the caller's notifications as read.
// A notification owned by someone else is reported absent, not forbidden.
func (svc *Service) MarkRead(ctx context.Context, id, userID string) (Notification, error) {
	notif, err := svc.getOwned(ctx, id, userID)
	if err != nil {
		return Notification{}, err
	}
	if notif.Read {
		return notif, nil
	}
	if err = svc.repo.MarkNotificationRead(ctx, id); err != nil {
		return Notification{}, errors.Wrap(err, "marking notification read")
	}
	notif.Read = true
	return notif, nil
}

func (svc *Service) MarkAllRead(ctx context.Context, userID string) error {
	return svc.repo.MarkAllNotificationsRead(ctx, userID)
}

func (svc *Service) Delete(ctx context.Context, id, userID string) error {
	if _, err := svc.getOwned(ctx, id, userID); err != nil {
		return err
	}
	return svc.repo.DeleteNotification(ctx, id)
}

// PurgeRead deletes all of the caller's read notifications.
func (svc *Service) PurgeRead(ctx context.Context, userID string) error {
	return svc.repo.DeleteReadNotifications(ctx, userID)
}

// HasMilestone reports whether a course-completion milestone was already
// delivered to this user; used to fire the 100% notification exactly once.
func (svc *Service) HasMilestone(ctx context.Context, userID, courseID string) (bool, error) {
	return svc.repo.NotificationExists(ctx, userID, courseID, KindMilestone)
}

func (svc *Service) getOwned(ctx context.Context, id, userID string) (Notification, error) {
	notif, err := svc.repo.GetNotificationByID(ctx, id)
	if err != nil {
		return Notification{}, err
	}
	if notif.UserID != userID {
		return Notification{}, ErrNotFound
	}
	return notif, nil
}
