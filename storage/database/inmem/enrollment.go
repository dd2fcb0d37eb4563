package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/darasahq/darasa/core/enrollment"
)

type enrollmentRepository struct {
	db *DB
}

var _ enrollment.Repository = (*enrollmentRepository)(nil)

func NewEnrollmentRepository(db *DB) *enrollmentRepository {
	return &enrollmentRepository{db: db}
}

func (repo *enrollmentRepository) CreateEnrollment(_ context.Context, enr enrollment.Enrollment) (enrollment.Enrollment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	// uniqueness on (UserID, CourseID) checked under the same lock as the
	// insert; the losing concurrent call observes the conflict
	for _, e := range repo.db.enrollments {
		if e.CourseID == enr.CourseID && e.UserID == enr.UserID {
			return enrollment.Enrollment{}, enrollment.ErrAlreadyEnrolled
		}
	}

	enr.ID = uuid.New().String()
	repo.db.enrollments[enr.ID] = &enr
	return enr, nil
}

func (repo *enrollmentRepository) GetEnrollment(_ context.Context, courseID, userID string) (enrollment.Enrollment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, enr := range repo.db.enrollments {
		if enr.CourseID == courseID && enr.UserID == userID {
			return *enr, nil
		}
	}
	return enrollment.Enrollment{}, enrollment.ErrNotFound
}

func (repo *enrollmentRepository) QueryCourseEnrollments(_ context.Context, courseID string) ([]enrollment.Enrollment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	res := make([]enrollment.Enrollment, 0)
	for _, enr := range repo.db.enrollments {
		if enr.CourseID == courseID {
			res = append(res, *enr)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].EnrolledAt.Before(res[j].EnrolledAt) })
	return res, nil
}

func (repo *enrollmentRepository) QueryUserEnrollments(_ context.Context, userID string) ([]enrollment.Enrollment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	res := make([]enrollment.Enrollment, 0)
	for _, enr := range repo.db.enrollments {
		if enr.UserID == userID {
			res = append(res, *enr)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].EnrolledAt.Before(res[j].EnrolledAt) })
	return res, nil
}

func (repo *enrollmentRepository) DeleteEnrollment(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.enrollments[id]; !ok {
		return enrollment.ErrNotFound
	}
	repo.db.deleteEnrollmentRecordsLocked(id)
	delete(repo.db.enrollments, id)
	return nil
}

func (repo *enrollmentRepository) IsEnrolled(_ context.Context, courseID, userID string) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, enr := range repo.db.enrollments {
		if enr.CourseID == courseID && enr.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (repo *enrollmentRepository) QueryEnrolledUserIDs(_ context.Context, courseID string) ([]string, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	res := make([]string, 0)
	for _, enr := range repo.db.enrollments {
		if enr.CourseID == courseID {
			res = append(res, enr.UserID)
		}
	}
	return res, nil
}
