package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/course"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *DB) *courseRepository {
	return &courseRepository{db: db}
}

// Courses

func (repo *courseRepository) CreateCourse(_ context.Context, crs course.Course) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	crs.ID = uuid.New().String()
	repo.db.courses[crs.ID] = &crs
	return crs, nil
}

func (repo *courseRepository) GetCourseByID(_ context.Context, id string) (course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if crs, ok := repo.db.courses[id]; ok {
		return *crs, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) QueryCourses(_ context.Context, filter *course.QueryFilter, orderings ...core.DBOrdering) ([]course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	res := make([]course.Course, 0, len(repo.db.courses))
	for _, crs := range repo.db.courses {
		if filter != nil && !filter.IsEmpty() {
			if filter.OwnerID != "" && crs.OwnerID != filter.OwnerID {
				continue
			}
			if filter.Subject != "" && !strings.EqualFold(crs.Subject, filter.Subject) {
				continue
			}
			if filter.Search != "" {
				kw := strings.ToLower(filter.Search)
				if !strings.Contains(strings.ToLower(crs.Title), kw) &&
					!strings.Contains(strings.ToLower(crs.Description), kw) {
					continue
				}
			}
		}
		res = append(res, *crs)
	}
	sortCourses(res, orderings)
	return res, nil
}

// sortCourses applies the first recognized ordering; newest first by default.
func sortCourses(res []course.Course, orderings []core.DBOrdering) {
	for _, ord := range orderings {
		var key func(course.Course) string
		switch ord.Field {
		case "title":
			key = func(c course.Course) string { return c.Title }
		case "subject":
			key = func(c course.Course) string { return c.Subject }
		default:
			continue
		}
		sort.Slice(res, func(i, j int) bool {
			if ord.Ascending {
				return key(res[i]) < key(res[j])
			}
			return key(res[i]) > key(res[j])
		})
		return
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
}

func (repo *courseRepository) UpdateCourse(_ context.Context, crs course.Course) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.courses[crs.ID]; !ok {
		return course.Course{}, course.ErrNotFound
	}
	repo.db.courses[crs.ID] = &crs
	return crs, nil
}

func (repo *courseRepository) DeleteCourse(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.courses[id]; !ok {
		return course.ErrNotFound
	}
	repo.db.deleteCourseLocked(id)
	return nil
}

// Lists

func (repo *courseRepository) CreateList(_ context.Context, lst course.List) (course.List, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	lst.ID = uuid.New().String()
	lst.Position = repo.nextListPositionLocked(lst.CourseID)
	repo.db.lists[lst.ID] = &lst
	return lst, nil
}

func (repo *courseRepository) GetListByID(_ context.Context, id string) (course.List, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if lst, ok := repo.db.lists[id]; ok {
		return *lst, nil
	}
	return course.List{}, course.ErrListNotFound
}

func (repo *courseRepository) QueryCourseLists(_ context.Context, courseID string) ([]course.List, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	res := make([]course.List, 0)
	for _, lst := range repo.db.lists {
		if lst.CourseID == courseID {
			res = append(res, *lst)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Position < res[j].Position })
	return res, nil
}

func (repo *courseRepository) UpdateList(_ context.Context, lst course.List) (course.List, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.lists[lst.ID]
	if !ok {
		return course.List{}, course.ErrListNotFound
	}
	lst.Position = orig.Position
	repo.db.lists[lst.ID] = &lst
	return lst, nil
}

func (repo *courseRepository) DeleteList(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	lst, ok := repo.db.lists[id]
	if !ok {
		return course.ErrListNotFound
	}

	// detach the list's items into the course's no-list bucket, appending
	// them after the bucket's existing items in their relative order
	detached := make([]*course.ContentItem, 0)
	for _, it := range repo.db.items {
		if it.ListID.Valid && it.ListID.String == id {
			detached = append(detached, it)
		}
	}
	sort.Slice(detached, func(i, j int) bool { return detached[i].Position < detached[j].Position })

	pos := repo.maxItemPositionLocked(lst.CourseID, null.String{})
	for _, it := range detached {
		pos++
		it.ListID = null.String{}
		it.Position = pos
	}

	delete(repo.db.lists, id)
	return nil
}

// Content items

func (repo *courseRepository) CreateItem(_ context.Context, it course.ContentItem) (course.ContentItem, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	it.ID = uuid.New().String()
	it.Position = repo.maxItemPositionLocked(it.CourseID, it.ListID) + 1
	repo.db.items[it.ID] = &it
	return it, nil
}

func (repo *courseRepository) GetItemByID(_ context.Context, id string) (course.ContentItem, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if it, ok := repo.db.items[id]; ok {
		return *it, nil
	}
	return course.ContentItem{}, course.ErrItemNotFound
}

func (repo *courseRepository) QueryCourseItems(_ context.Context, courseID string) ([]course.ContentItem, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	res := make([]course.ContentItem, 0)
	for _, it := range repo.db.items {
		if it.CourseID == courseID {
			res = append(res, *it)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].ListID.String != res[j].ListID.String {
			return res[i].ListID.String < res[j].ListID.String
		}
		return res[i].Position < res[j].Position
	})
	return res, nil
}

func (repo *courseRepository) CountTrackableItems(_ context.Context, courseID string) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var count int
	for _, it := range repo.db.items {
		if it.CourseID == courseID && it.Trackable() {
			count++
		}
	}
	return count, nil
}

func (repo *courseRepository) UpdateItem(_ context.Context, it course.ContentItem) (course.ContentItem, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.items[it.ID]
	if !ok {
		return course.ContentItem{}, course.ErrItemNotFound
	}
	it.ListID = orig.ListID
	it.Position = orig.Position
	repo.db.items[it.ID] = &it
	return it, nil
}

func (repo *courseRepository) DeleteItem(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.items[id]; !ok {
		return course.ErrItemNotFound
	}
	repo.db.deleteItemRecordsLocked(id)
	delete(repo.db.items, id)
	return nil
}

func (repo *courseRepository) ReorderItems(_ context.Context, courseID string, listID null.String, orderedIDs []string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	scope := make(map[string]*course.ContentItem)
	for _, it := range repo.db.items {
		if it.CourseID == courseID && it.ListID.String == listID.String && it.ListID.Valid == listID.Valid {
			scope[it.ID] = it
		}
	}

	if len(orderedIDs) != len(scope) {
		return course.ErrOrderMismatch
	}
	seen := make(map[string]bool, len(orderedIDs))
	for _, id := range orderedIDs {
		if _, ok := scope[id]; !ok || seen[id] {
			return course.ErrOrderMismatch
		}
		seen[id] = true
	}

	// whole batch applied under one lock; readers never observe a partial order
	for i, id := range orderedIDs {
		scope[id].Position = i + 1
	}
	return nil
}

// helpers; callers hold the lock

func (repo *courseRepository) nextListPositionLocked(courseID string) int {
	var max int
	for _, lst := range repo.db.lists {
		if lst.CourseID == courseID && lst.Position > max {
			max = lst.Position
		}
	}
	return max + 1
}

func (repo *courseRepository) maxItemPositionLocked(courseID string, listID null.String) int {
	var max int
	for _, it := range repo.db.items {
		if it.CourseID == courseID && it.ListID.Valid == listID.Valid && it.ListID.String == listID.String && it.Position > max {
			max = it.Position
		}
	}
	return max
}
