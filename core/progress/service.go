package progress

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/course"
	"github.com/darasahq/darasa/core/enrollment"
	"github.com/darasahq/darasa/core/notification"
	"github.com/darasahq/darasa/core/user"
)

var (
	// errors
	ErrNotFound = errors.New("progress record not found")

	errNotEnrolled = core.NewPermissionError("enroll in this course to record progress")
)

type (
	Repository interface {
		// CreateRecordIfAbsent inserts the record unless one exists for
		// (EnrollmentID, ContentItemID); the existing path reports
		// created=false, never an error. The insert must be atomic under
		// concurrent calls: a storage-level unique constraint, not
		// check-then-insert.
		CreateRecordIfAbsent(ctx context.Context, rec Record) (Record, bool, error)
		// UpsertRecord creates or replaces the record for its
		// (EnrollmentID, ContentItemID) pair.
		UpsertRecord(ctx context.Context, rec Record) (Record, error)
		GetRecord(ctx context.Context, enrollmentID, itemID string) (Record, error)
		QueryEnrollmentRecords(ctx context.Context, enrollmentID string) ([]Record, error)
		CountCompletedRecords(ctx context.Context, enrollmentID string) (int, error)
		// DeleteRecord is a no-op when the record is absent.
		DeleteRecord(ctx context.Context, enrollmentID, itemID string) error
	}

	Service struct {
		catalog     course.Repository
		enrollments enrollment.Repository
		repo        Repository
		notifSvc    *notification.Service
		notif       notification.Dispatcher
	}
)

func NewService(
	catalog course.Repository,
	enrollments enrollment.Repository,
	repo Repository,
	notifSvc *notification.Service,
	notif notification.Dispatcher,
) *Service {
	return &Service{
		catalog:     catalog,
		enrollments: enrollments,
		repo:        repo,
		notifSvc:    notifSvc,
		notif:       notif,
	}
}

// MarkLessonComplete records completion of a lesson. Fully idempotent:
// a repeat completion is a success with AlreadyCompleted set.
func (svc *Service) MarkLessonComplete(ctx context.Context, actor user.User, courseID, lessonID string) (CompletionResult, error) {
	enr, err := svc.activeEnrollment(ctx, actor, courseID)
	if err != nil {
		return CompletionResult{}, err
	}
	if _, err = svc.courseItem(ctx, courseID, lessonID, course.KindLesson); err != nil {
		return CompletionResult{}, err
	}

	rec, created, err := svc.repo.CreateRecordIfAbsent(ctx, Record{
		EnrollmentID:  enr.ID,
		ContentItemID: lessonID,
		Completed:     true,
		CompletedAt:   time.Now().UTC(),
	})
	if err != nil {
		return CompletionResult{}, errors.Wrap(err, "creating progress record")
	}

	if created {
		svc.maybeFireMilestone(ctx, actor, courseID, enr)
	}
	return CompletionResult{Record: rec, AlreadyCompleted: !created}, nil
}

// SubmitActivity scores a question-set submission and upserts the progress
// record. Resubmitting re-scores; it is not rejected as a conflict.
func (svc *Service) SubmitActivity(ctx context.Context, actor user.User, courseID, activityID string, answers map[int]int) (ActivityResult, error) {
	enr, err := svc.activeEnrollment(ctx, actor, courseID)
	if err != nil {
		return ActivityResult{}, err
	}
	it, err := svc.courseItem(ctx, courseID, activityID, course.KindActivity)
	if err != nil {
		return ActivityResult{}, err
	}

	score, correct, total := scoreAnswers(it.Questions, answers)

	resubmission := true
	if _, err = svc.repo.GetRecord(ctx, enr.ID, activityID); err != nil {
		if errors.Cause(err) != ErrNotFound {
			return ActivityResult{}, errors.Wrap(err, "getting progress record")
		}
		resubmission = false
	}

	rec, err := svc.repo.UpsertRecord(ctx, Record{
		EnrollmentID:  enr.ID,
		ContentItemID: activityID,
		Completed:     true,
		Score:         null.IntFrom(score),
		CompletedAt:   time.Now().UTC(),
	})
	if err != nil {
		return ActivityResult{}, errors.Wrap(err, "upserting progress record")
	}

	if !resubmission {
		svc.maybeFireMilestone(ctx, actor, courseID, enr)
	}
	return ActivityResult{
		Record:       rec,
		Score:        score,
		CorrectCount: correct,
		Total:        total,
		Resubmission: resubmission,
	}, nil
}

// Progress computes the aggregate completion for the acting learner.
// Materials count towards neither total nor completed.
func (svc *Service) Progress(ctx context.Context, actor user.User, courseID string) (Summary, error) {
	enr, err := svc.activeEnrollment(ctx, actor, courseID)
	if err != nil {
		return Summary{}, err
	}
	return svc.summary(ctx, courseID, enr)
}

// Unmark deletes the learner's progress record for an item; no-op when absent.
func (svc *Service) Unmark(ctx context.Context, actor user.User, courseID, itemID string) error {
	enr, err := svc.activeEnrollment(ctx, actor, courseID)
	if err != nil {
		return err
	}
	return svc.repo.DeleteRecord(ctx, enr.ID, itemID)
}

// helpers

func (svc *Service) activeEnrollment(ctx context.Context, actor user.User, courseID string) (enrollment.Enrollment, error) {
	enr, err := svc.enrollments.GetEnrollment(ctx, courseID, actor.ID)
	if err != nil {
		if errors.Cause(err) == enrollment.ErrNotFound {
			return enrollment.Enrollment{}, errNotEnrolled
		}
		return enrollment.Enrollment{}, errors.Wrap(err, "getting enrollment")
	}
	return enr, nil
}

func (svc *Service) courseItem(ctx context.Context, courseID, itemID string, kind course.ContentKind) (course.ContentItem, error) {
	it, err := svc.catalog.GetItemByID(ctx, itemID)
	if err != nil {
		return course.ContentItem{}, err
	}
	if it.CourseID != courseID || it.Kind != kind {
		return course.ContentItem{}, course.ErrItemNotFound
	}
	return it, nil
}

func (svc *Service) summary(ctx context.Context, courseID string, enr enrollment.Enrollment) (Summary, error) {
	total, err := svc.catalog.CountTrackableItems(ctx, courseID)
	if err != nil {
		return Summary{}, errors.Wrap(err, "counting trackable items")
	}
	completed, err := svc.repo.CountCompletedRecords(ctx, enr.ID)
	if err != nil {
		return Summary{}, errors.Wrap(err, "counting completed records")
	}

	var pct int
	if total > 0 {
		pct = roundPct(completed, total)
	}
	return Summary{Percentage: pct, CompletedCount: completed, TotalCount: total}, nil
}

// maybeFireMilestone emits the 100% milestone notification the first time the
// course is fully completed; "first time" is derived from the absence of a
// prior milestone notification for this (user, course) pair.
func (svc *Service) maybeFireMilestone(ctx context.Context, actor user.User, courseID string, enr enrollment.Enrollment) {
	sum, err := svc.summary(ctx, courseID, enr)
	if err != nil || sum.Percentage != 100 || sum.TotalCount == 0 {
		return
	}
	if fired, err := svc.notifSvc.HasMilestone(ctx, actor.ID, courseID); err != nil || fired {
		return
	}

	crs, err := svc.catalog.GetCourseByID(ctx, courseID)
	if err != nil {
		return
	}
	svc.notif.NotifyUser(actor.ID, notification.Template{
		Kind:     notification.KindMilestone,
		Title:    crs.Title,
		Message:  "Congratulations! You completed " + crs.Title,
		CourseID: null.StringFrom(courseID),
	})
}

func scoreAnswers(questions []course.Question, answers map[int]int) (score, correct, total int) {
	total = len(questions)
	if total == 0 {
		return 0, 0, 0
	}
	for i, q := range questions {
		if picked, ok := answers[i]; ok && picked == q.CorrectOption {
			correct++
		}
	}
	return roundPct(correct, total), correct, total
}

func roundPct(part, whole int) int {
	return int(math.Round(100 * float64(part) / float64(whole)))
}
