package inmemdb

import (
	"context"
	"sync"
	"testing"

	"github.com/volatiletech/null/v8"

	"github.com/darasahq/darasa/core/course"
	"github.com/darasahq/darasa/core/enrollment"
	"github.com/darasahq/darasa/core/progress"
)

var ctx = context.Background()

func Test_enrollmentRepository_CreateEnrollment_concurrent(t *testing.T) {
	db := Open()
	repo := NewEnrollmentRepository(db)

	const n = 20
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.CreateEnrollment(ctx, enrollment.Enrollment{CourseID: "crs", UserID: "usr"})
		}(i)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range errs {
		switch err {
		case nil:
			wins++
		case enrollment.ErrAlreadyEnrolled:
			conflicts++
		default:
			t.Errorf("CreateEnrollment() unexpected error: %v", err)
		}
	}
	if wins != 1 || conflicts != n-1 {
		t.Errorf("wins = %d, conflicts = %d; want 1, %d", wins, conflicts, n-1)
	}
}

func Test_progressRepository_CreateRecordIfAbsent_concurrent(t *testing.T) {
	db := Open()
	repo := NewProgressRepository(db)

	const n = 20
	var wg sync.WaitGroup
	created := make([]bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, c, err := repo.CreateRecordIfAbsent(ctx, progress.Record{
				EnrollmentID:  "enr",
				ContentItemID: "item",
				Completed:     true,
			})
			if err != nil {
				t.Errorf("CreateRecordIfAbsent() failed: %v", err)
			}
			created[i] = c
		}(i)
	}
	wg.Wait()

	var wins int
	for _, c := range created {
		if c {
			wins++
		}
	}
	if wins != 1 {
		t.Errorf("created = %d, want exactly 1", wins)
	}
	recs, _ := repo.QueryEnrollmentRecords(ctx, "enr")
	if len(recs) != 1 {
		t.Errorf("records = %d, want 1", len(recs))
	}
}

func Test_courseRepository_CreateItem_concurrent(t *testing.T) {
	db := Open()
	repo := NewCourseRepository(db)

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.CreateItem(ctx, course.ContentItem{
				CourseID: "crs",
				Kind:     course.KindLesson,
				Title:    "l",
			})
			if err != nil {
				t.Errorf("CreateItem() failed: %v", err)
			}
		}()
	}
	wg.Wait()

	items, _ := repo.QueryCourseItems(ctx, "crs")
	if len(items) != n {
		t.Fatalf("items = %d, want %d", len(items), n)
	}
	seen := make(map[int]bool, n)
	for _, it := range items {
		if it.Position < 1 || it.Position > n || seen[it.Position] {
			t.Errorf("bad position %d", it.Position)
		}
		seen[it.Position] = true
	}
}

func Test_DB_deleteCourseCascades(t *testing.T) {
	db := Open()
	courseRepo := NewCourseRepository(db)
	enrollRepo := NewEnrollmentRepository(db)
	progressRepo := NewProgressRepository(db)

	crs, _ := courseRepo.CreateCourse(ctx, course.Course{Title: "Algebra", OwnerID: "owner"})
	lst, _ := courseRepo.CreateList(ctx, course.List{CourseID: crs.ID, Title: "Week 1"})
	it, _ := courseRepo.CreateItem(ctx, course.ContentItem{CourseID: crs.ID, ListID: null.StringFrom(lst.ID), Kind: course.KindLesson, Title: "a"})
	enr, _ := enrollRepo.CreateEnrollment(ctx, enrollment.Enrollment{CourseID: crs.ID, UserID: "usr"})
	_, _, _ = progressRepo.CreateRecordIfAbsent(ctx, progress.Record{EnrollmentID: enr.ID, ContentItemID: it.ID, Completed: true})

	if err := courseRepo.DeleteCourse(ctx, crs.ID); err != nil {
		t.Fatalf("DeleteCourse() failed: %v", err)
	}

	if _, err := courseRepo.GetListByID(ctx, lst.ID); err != course.ErrListNotFound {
		t.Errorf("list survived the cascade: %v", err)
	}
	if _, err := courseRepo.GetItemByID(ctx, it.ID); err != course.ErrItemNotFound {
		t.Errorf("item survived the cascade: %v", err)
	}
	if _, err := enrollRepo.GetEnrollment(ctx, crs.ID, "usr"); err != enrollment.ErrNotFound {
		t.Errorf("enrollment survived the cascade: %v", err)
	}
	if recs, _ := progressRepo.QueryEnrollmentRecords(ctx, enr.ID); len(recs) != 0 {
		t.Errorf("records survived the cascade: %d", len(recs))
	}
}
