package enrollment

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/course"
	"github.com/darasahq/darasa/core/notification"
	"github.com/darasahq/darasa/core/user"
)

var (
	// errors
	ErrNotFound        = errors.New("enrollment not found")
	ErrAlreadyEnrolled = errors.New("already enrolled in this course")
)

type (
	Repository interface {
		// CreateEnrollment returns ErrAlreadyEnrolled when an enrollment for
		// (UserID, CourseID) exists; enforced by a storage-level unique
		// constraint, never by check-then-insert.
		CreateEnrollment(ctx context.Context, enr Enrollment) (Enrollment, error)
		GetEnrollment(ctx context.Context, courseID, userID string) (Enrollment, error)
		QueryCourseEnrollments(ctx context.Context, courseID string) ([]Enrollment, error)
		QueryUserEnrollments(ctx context.Context, userID string) ([]Enrollment, error)
		// DeleteEnrollment also deletes the learner's progress records for
		// the course.
		DeleteEnrollment(ctx context.Context, id string) error

		IsEnrolled(ctx context.Context, courseID, userID string) (bool, error)
		QueryEnrolledUserIDs(ctx context.Context, courseID string) ([]string, error)
	}

	Service struct {
		courses course.Repository
		repo    Repository
		notif   notification.Dispatcher
		mailSvc core.EmailService
		conf    *core.Config
	}
)

// Repository doubles as the access guard's enrollment check and the
// notification fanout's audience source.
var (
	_ course.EnrollmentChecker       = (Repository)(nil)
	_ notification.RecipientResolver = (Repository)(nil)
)

func NewService(courses course.Repository, repo Repository, notif notification.Dispatcher, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{
		courses: courses,
		repo:    repo,
		notif:   notif,
		mailSvc: mailSvc,
		conf:    conf,
	}
}

// Enroll establishes the enrollment relationship for the acting learner.
// Not idempotent: a second call reports a conflict.
func (svc *Service) Enroll(ctx context.Context, actor user.User, courseID, suppliedCode string) (Enrollment, error) {
	crs, err := svc.courses.GetCourseByID(ctx, courseID)
	if err != nil {
		return Enrollment{}, err
	}

	if enrolled, err := svc.repo.IsEnrolled(ctx, courseID, actor.ID); err != nil {
		return Enrollment{}, errors.Wrap(err, "checking enrollment")
	} else if enrolled {
		return Enrollment{}, core.NewConflictError(ErrAlreadyEnrolled.Error())
	}

	if actor.ID == crs.OwnerID {
		return Enrollment{}, core.NewPermissionError("course owners cannot enroll in their own course")
	}

	if crs.Protected() {
		code := core.CleanString(suppliedCode)
		if code == "" {
			return Enrollment{}, core.NewValidationError(nil,
				core.FieldError{Field: "access_code", Error: "this course requires an access code"})
		}
		// exact, case-sensitive match against the stored code
		if code != crs.AccessCode.String {
			return Enrollment{}, core.NewPermissionError("invalid access code")
		}
	}

	enr, err := svc.repo.CreateEnrollment(ctx, Enrollment{
		CourseID:   courseID,
		UserID:     actor.ID,
		EnrolledAt: time.Now().UTC(),
	})
	if err != nil {
		// a concurrent enroll may win the race; the loser sees the constraint
		if errors.Cause(err) == ErrAlreadyEnrolled {
			return Enrollment{}, core.NewConflictError(ErrAlreadyEnrolled.Error())
		}
		return Enrollment{}, errors.Wrap(err, "creating enrollment")
	}

	svc.notif.NotifyUser(actor.ID, notification.Template{
		Kind:     notification.KindGeneric,
		Title:    crs.Title,
		Message:  "You are now enrolled in " + crs.Title,
		Link:     null.StringFrom("/courses/" + courseID),
		CourseID: null.StringFrom(courseID),
	})
	svc.notif.NotifyUser(crs.OwnerID, notification.Template{
		Kind:     notification.KindNewEnrollment,
		Title:    crs.Title,
		Message:  fmt.Sprintf("%s enrolled in %s", actor.Name, crs.Title),
		CourseID: null.StringFrom(courseID),
	})
	svc.sendConfirmationMail(actor, crs)

	return enr, nil
}

// Cancel retracts the acting learner's enrollment, cascading their progress
// records. Repeating it reports ErrNotFound; callers treat that as terminal.
func (svc *Service) Cancel(ctx context.Context, actor user.User, courseID string) error {
	crs, err := svc.courses.GetCourseByID(ctx, courseID)
	if err != nil {
		return err
	}

	enr, err := svc.repo.GetEnrollment(ctx, courseID, actor.ID)
	if err != nil {
		return err
	}
	if err = svc.repo.DeleteEnrollment(ctx, enr.ID); err != nil {
		return errors.Wrap(err, "deleting enrollment")
	}

	svc.notif.NotifyUser(crs.OwnerID, notification.Template{
		Kind:     notification.KindMembershipChange,
		Title:    crs.Title,
		Message:  fmt.Sprintf("%s left %s", actor.Name, crs.Title),
		CourseID: null.StringFrom(courseID),
	})
	return nil
}

func (svc *Service) Get(ctx context.Context, courseID, userID string) (Enrollment, error) {
	return svc.repo.GetEnrollment(ctx, courseID, userID)
}

// QueryMine lists the acting learner's enrollments.
func (svc *Service) QueryMine(ctx context.Context, actor user.User) ([]Enrollment, error) {
	return svc.repo.QueryUserEnrollments(ctx, actor.ID)
}

// QueryRoster lists a course's enrollments; owner/admin only.
func (svc *Service) QueryRoster(ctx context.Context, actor user.User, courseID string) ([]Enrollment, error) {
	crs, err := svc.courses.GetCourseByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if rel := course.ClassifyRelationship(actor, crs, false); !rel.CanManage() {
		return nil, core.NewPermissionError("permission denied")
	}
	return svc.repo.QueryCourseEnrollments(ctx, courseID)
}

func (svc *Service) sendConfirmationMail(usr user.User, crs course.Course) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject: "Enrollment confirmed: " + crs.Title,
		TextContent: fmt.Sprintf(
			"Hi %s,\n\nYou are enrolled in %q. Head to %s/courses/%s to start learning.\n",
			usr.Name, crs.Title, svc.conf.FrontendBaseURL, crs.ID,
		),
	})
}
