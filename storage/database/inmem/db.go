package inmemdb

import (
	"sync"

	"github.com/darasahq/darasa/core/course"
	"github.com/darasahq/darasa/core/enrollment"
	"github.com/darasahq/darasa/core/notification"
	"github.com/darasahq/darasa/core/progress"
	"github.com/darasahq/darasa/core/user"
)

// DB is an in-memory storage engine for tests and local hacking.
// One lock guards all tables so that cross-table cascades and
// insert-if-absent paths are atomic, mirroring what the SQL engine
// guarantees with constraints and transactions.
type DB struct {
	mu sync.RWMutex

	users         map[string]*user.User
	courses       map[string]*course.Course
	lists         map[string]*course.List
	items         map[string]*course.ContentItem
	enrollments   map[string]*enrollment.Enrollment
	records       map[string]*progress.Record
	notifications map[string]*notification.Notification
}

func Open() *DB {
	return &DB{
		users:         make(map[string]*user.User),
		courses:       make(map[string]*course.Course),
		lists:         make(map[string]*course.List),
		items:         make(map[string]*course.ContentItem),
		enrollments:   make(map[string]*enrollment.Enrollment),
		records:       make(map[string]*progress.Record),
		notifications: make(map[string]*notification.Notification),
	}
}

// Reset empties all tables.
func (db *DB) Reset() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.users = make(map[string]*user.User)
	db.courses = make(map[string]*course.Course)
	db.lists = make(map[string]*course.List)
	db.items = make(map[string]*course.ContentItem)
	db.enrollments = make(map[string]*enrollment.Enrollment)
	db.records = make(map[string]*progress.Record)
	db.notifications = make(map[string]*notification.Notification)
}

// deleteCourseLocked cascades a course deletion; callers hold the write lock.
func (db *DB) deleteCourseLocked(courseID string) {
	for id, lst := range db.lists {
		if lst.CourseID == courseID {
			delete(db.lists, id)
		}
	}
	for id, it := range db.items {
		if it.CourseID == courseID {
			db.deleteItemRecordsLocked(id)
			delete(db.items, id)
		}
	}
	for id, enr := range db.enrollments {
		if enr.CourseID == courseID {
			db.deleteEnrollmentRecordsLocked(id)
			delete(db.enrollments, id)
		}
	}
	delete(db.courses, courseID)
}

func (db *DB) deleteItemRecordsLocked(itemID string) {
	for id, rec := range db.records {
		if rec.ContentItemID == itemID {
			delete(db.records, id)
		}
	}
}

func (db *DB) deleteEnrollmentRecordsLocked(enrollmentID string) {
	for id, rec := range db.records {
		if rec.EnrollmentID == enrollmentID {
			delete(db.records, id)
		}
	}
}
