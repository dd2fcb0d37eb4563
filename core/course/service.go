package course

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/notification"
	"github.com/darasahq/darasa/core/user"
)

var (
	// errors
	ErrNotFound      = errors.New("course not found")
	ErrListNotFound  = errors.New("list not found")
	ErrItemNotFound  = errors.New("content item not found")
	ErrOrderMismatch = errors.New("ordered ids do not match the scope's items")
)

type (
	Repository interface {
		// courses
		CreateCourse(ctx context.Context, crs Course) (Course, error)
		GetCourseByID(ctx context.Context, id string) (Course, error)
		QueryCourses(ctx context.Context, filter *QueryFilter, orderings ...core.DBOrdering) ([]Course, error)
		UpdateCourse(ctx context.Context, crs Course) (Course, error)
		// DeleteCourse also deletes the course's lists, content items,
		// enrollments and progress records.
		DeleteCourse(ctx context.Context, id string) error

		// lists
		CreateList(ctx context.Context, lst List) (List, error)
		GetListByID(ctx context.Context, id string) (List, error)
		QueryCourseLists(ctx context.Context, courseID string) ([]List, error)
		UpdateList(ctx context.Context, lst List) (List, error)
		// DeleteList detaches the list's content items; they remain reachable
		// in the course's no-list bucket.
		DeleteList(ctx context.Context, id string) error

		// content items
		// CreateItem assigns the next position within the item's scope
		// (its list, or the course's no-list bucket) atomically.
		CreateItem(ctx context.Context, it ContentItem) (ContentItem, error)
		GetItemByID(ctx context.Context, id string) (ContentItem, error)
		QueryCourseItems(ctx context.Context, courseID string) ([]ContentItem, error)
		// CountTrackableItems counts the course's lessons and activities.
		CountTrackableItems(ctx context.Context, courseID string) (int, error)
		UpdateItem(ctx context.Context, it ContentItem) (ContentItem, error)
		// DeleteItem also deletes the item's progress records.
		DeleteItem(ctx context.Context, id string) error
		// ReorderItems assigns positions 1..n in the given order as a single
		// atomic batch; returns ErrOrderMismatch unless orderedIDs is exactly
		// the scope's membership.
		ReorderItems(ctx context.Context, courseID string, listID null.String, orderedIDs []string) error
	}

	Service struct {
		repo     Repository
		enrolled EnrollmentChecker
		notif    notification.Dispatcher
	}
)

func NewService(repo Repository, enrolled EnrollmentChecker, notif notification.Dispatcher) *Service {
	return &Service{
		repo:     repo,
		enrolled: enrolled,
		notif:    notif,
	}
}

// Courses

func (svc *Service) Create(ctx context.Context, actor user.User, nc NewCourse) (Course, error) {
	if !(actor.IsTeacher() || actor.IsAdmin()) {
		return Course{}, errPermissionDenied
	}

	now := time.Now().UTC()
	crs := Course{
		Title:       nc.Title,
		Subject:     nc.Subject,
		Description: nc.Description,
		AccessCode:  null.NewString(nc.AccessCode, nc.AccessCode != ""),
		OwnerID:     actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateCourse(ctx, crs)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, orderings ...core.DBOrdering) ([]Course, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryCourses(ctx, filter, orderings...)
}

// GetByID returns the course along with the caller's relationship to it.
// Guests are denied with an enroll hint; they never get a partial view.
func (svc *Service) GetByID(ctx context.Context, actor user.User, id string) (Course, Relationship, error) {
	crs, err := svc.repo.GetCourseByID(ctx, id)
	if err != nil {
		return Course{}, Guest, err
	}
	rel, err := svc.classify(ctx, actor, crs)
	if err != nil {
		return Course{}, Guest, errors.Wrap(err, "classifying relationship")
	}
	if !rel.CanView() {
		return Course{}, rel, errEnrollToView
	}
	return crs, rel, nil
}

func (svc *Service) Update(ctx context.Context, actor user.User, id string, uc UpdateCourse) (Course, error) {
	crs, err := svc.manageable(ctx, actor, id)
	if err != nil {
		return Course{}, err
	}

	crs.Title = uc.Title
	crs.Subject = uc.Subject
	crs.Description = uc.Description
	if uc.AccessCode != nil {
		crs.AccessCode = null.NewString(*uc.AccessCode, *uc.AccessCode != "")
	}
	crs.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateCourse(ctx, crs)
}

func (svc *Service) Delete(ctx context.Context, actor user.User, id string) error {
	if _, err := svc.manageable(ctx, actor, id); err != nil {
		return err
	}
	return svc.repo.DeleteCourse(ctx, id)
}

// Content listing ("mural")

// Content returns the course's lists and content items, both in position order.
func (svc *Service) Content(ctx context.Context, actor user.User, courseID string) ([]List, []ContentItem, error) {
	if _, _, err := svc.GetByID(ctx, actor, courseID); err != nil {
		return nil, nil, err
	}
	lists, err := svc.repo.QueryCourseLists(ctx, courseID)
	if err != nil {
		return nil, nil, errors.Wrap(err, "querying lists")
	}
	items, err := svc.repo.QueryCourseItems(ctx, courseID)
	if err != nil {
		return nil, nil, errors.Wrap(err, "querying items")
	}
	return lists, items, nil
}

// Lists

func (svc *Service) AddList(ctx context.Context, actor user.User, courseID string, nl NewList) (List, error) {
	if _, err := svc.manageable(ctx, actor, courseID); err != nil {
		return List{}, err
	}
	return svc.repo.CreateList(ctx, List{CourseID: courseID, Title: nl.Title})
}

func (svc *Service) UpdateList(ctx context.Context, actor user.User, courseID, listID string, nl NewList) (List, error) {
	lst, err := svc.courseList(ctx, actor, courseID, listID)
	if err != nil {
		return List{}, err
	}
	lst.Title = nl.Title
	return svc.repo.UpdateList(ctx, lst)
}

// RemoveList deletes the list; its items are detached, not deleted.
func (svc *Service) RemoveList(ctx context.Context, actor user.User, courseID, listID string) error {
	if _, err := svc.courseList(ctx, actor, courseID, listID); err != nil {
		return err
	}
	return svc.repo.DeleteList(ctx, listID)
}

// Content items

func (svc *Service) AddItem(ctx context.Context, actor user.User, courseID string, ni NewContentItem) (ContentItem, error) {
	crs, err := svc.manageable(ctx, actor, courseID)
	if err != nil {
		return ContentItem{}, err
	}
	if ni.ListID != "" {
		lst, err := svc.repo.GetListByID(ctx, ni.ListID)
		if err != nil {
			return ContentItem{}, err
		}
		if lst.CourseID != courseID {
			return ContentItem{}, ErrListNotFound
		}
	}

	now := time.Now().UTC()
	it := ContentItem{
		CourseID:   courseID,
		ListID:     null.NewString(ni.ListID, ni.ListID != ""),
		Kind:       ni.Kind,
		Title:      ni.Title,
		DueDate:    ni.DueDate,
		CreatorID:  actor.ID,
		Video:      ni.Video,
		CoverImage: ni.CoverImage,
		Questions:  ni.Questions,
		FilePath:   ni.FilePath,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	it, err = svc.repo.CreateItem(ctx, it)
	if err != nil {
		return ContentItem{}, errors.Wrap(err, "creating content item")
	}

	// fanout is best-effort; the item is already committed
	svc.notif.NotifyCourseAudience(courseID, actor.ID, notification.Template{
		Kind:     notification.KindNewContent,
		Title:    crs.Title,
		Message:  "New content published: " + it.Title,
		Link:     null.StringFrom("/courses/" + courseID),
		CourseID: null.StringFrom(courseID),
	})
	return it, nil
}

func (svc *Service) UpdateItem(ctx context.Context, actor user.User, courseID, itemID string, ui UpdateContentItem) (ContentItem, error) {
	it, err := svc.courseItem(ctx, actor, courseID, itemID)
	if err != nil {
		return ContentItem{}, err
	}

	it.Title = ui.Title
	if ui.DueDate.Valid {
		it.DueDate = ui.DueDate
	}
	if ui.Video != "" {
		it.Video = ui.Video
	}
	if ui.CoverImage != "" {
		it.CoverImage = ui.CoverImage
	}
	if ui.Questions != nil {
		it.Questions = ui.Questions
	}
	if ui.FilePath != "" {
		it.FilePath = ui.FilePath
	}
	it.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateItem(ctx, it)
}

// Item returns one of the course's content items; managers only.
func (svc *Service) Item(ctx context.Context, actor user.User, courseID, itemID string) (ContentItem, error) {
	return svc.courseItem(ctx, actor, courseID, itemID)
}

// RemoveItem deletes the item; its progress records go with it.
func (svc *Service) RemoveItem(ctx context.Context, actor user.User, courseID, itemID string) error {
	if _, err := svc.courseItem(ctx, actor, courseID, itemID); err != nil {
		return err
	}
	return svc.repo.DeleteItem(ctx, itemID)
}

// Reorder replaces the ordering of one scope (a list, or the course's
// no-list bucket when listID is empty) with the given explicit order.
// Applied all-or-nothing; concurrent reorders resolve last-writer-wins.
func (svc *Service) Reorder(ctx context.Context, actor user.User, courseID, listID string, r Reorder) error {
	if _, err := svc.manageable(ctx, actor, courseID); err != nil {
		return err
	}
	if listID != "" {
		lst, err := svc.repo.GetListByID(ctx, listID)
		if err != nil {
			return err
		}
		if lst.CourseID != courseID {
			return ErrListNotFound
		}
	}

	err := svc.repo.ReorderItems(ctx, courseID, null.NewString(listID, listID != ""), r.OrderedIDs)
	if errors.Cause(err) == ErrOrderMismatch {
		return core.NewValidationError(err, core.FieldError{Field: "ordered_ids", Error: err.Error()})
	}
	return err
}

// helpers

func (svc *Service) manageable(ctx context.Context, actor user.User, courseID string) (Course, error) {
	crs, err := svc.repo.GetCourseByID(ctx, courseID)
	if err != nil {
		return Course{}, err
	}
	rel, err := svc.classify(ctx, actor, crs)
	if err != nil {
		return Course{}, errors.Wrap(err, "classifying relationship")
	}
	if !rel.CanManage() {
		return Course{}, errPermissionDenied
	}
	return crs, nil
}

func (svc *Service) courseList(ctx context.Context, actor user.User, courseID, listID string) (List, error) {
	if _, err := svc.manageable(ctx, actor, courseID); err != nil {
		return List{}, err
	}
	lst, err := svc.repo.GetListByID(ctx, listID)
	if err != nil {
		return List{}, err
	}
	if lst.CourseID != courseID {
		return List{}, ErrListNotFound
	}
	return lst, nil
}

func (svc *Service) courseItem(ctx context.Context, actor user.User, courseID, itemID string) (ContentItem, error) {
	if _, err := svc.manageable(ctx, actor, courseID); err != nil {
		return ContentItem{}, err
	}
	it, err := svc.repo.GetItemByID(ctx, itemID)
	if err != nil {
		return ContentItem{}, err
	}
	if it.CourseID != courseID {
		return ContentItem{}, ErrItemNotFound
	}
	return it, nil
}
