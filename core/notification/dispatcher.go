package notification

import (
	"context"
	"fmt"

	"github.com/darasahq/darasa/core"
)

// Dispatcher delivers notifications as a best-effort side channel: a failed
// delivery never fails the operation that triggered it.
type Dispatcher interface {
	NotifyUser(userID string, tpl Template)
	NotifyCourseAudience(courseID, excludeUserID string, tpl Template)
}

type dispatcher struct {
	svc    *Service
	logger core.Logger
}

var _ Dispatcher = (*dispatcher)(nil)

func NewDispatcher(svc *Service, logger core.Logger) Dispatcher {
	return &dispatcher{
		svc:    svc,
		logger: logger,
	}
}

func (d *dispatcher) NotifyUser(userID string, tpl Template) {
	go func() {
		if err := d.svc.NotifyUser(context.Background(), userID, tpl); err != nil {
			d.logger.Error(fmt.Sprintf("notifying user %s: %v", userID, err), err)
		}
	}()
}

func (d *dispatcher) NotifyCourseAudience(courseID, excludeUserID string, tpl Template) {
	go func() {
		if err := d.svc.NotifyCourseAudience(context.Background(), courseID, excludeUserID, tpl); err != nil {
			d.logger.Error(fmt.Sprintf("notifying course %s audience: %v", courseID, err), err)
		}
	}()
}

type dispatcherMock struct {
	svc *Service
}

// NewDispatcherMock delivers synchronously, swallowing errors; for tests.
func NewDispatcherMock(svc *Service) Dispatcher {
	return &dispatcherMock{svc: svc}
}

func (d *dispatcherMock) NotifyUser(userID string, tpl Template) {
	_ = d.svc.NotifyUser(context.Background(), userID, tpl)
}

func (d *dispatcherMock) NotifyCourseAudience(courseID, excludeUserID string, tpl Template) {
	_ = d.svc.NotifyCourseAudience(context.Background(), courseID, excludeUserID, tpl)
}
