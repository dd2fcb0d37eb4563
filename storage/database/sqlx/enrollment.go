package sqlxdb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core/enrollment"
)

type enrollmentRepository struct {
	db *sqlx.DB
}

var _ enrollment.Repository = (*enrollmentRepository)(nil)

func NewEnrollmentRepository(db *sqlx.DB) *enrollmentRepository {
	return &enrollmentRepository{db: db}
}

type enrollmentRow struct {
	ID         string    `db:"id"`
	CourseID   string    `db:"course_id"`
	UserID     string    `db:"user_id"`
	EnrolledAt time.Time `db:"enrolled_at"`
}

func (row enrollmentRow) toEnrollment() enrollment.Enrollment {
	return enrollment.Enrollment(row)
}

func (repo *enrollmentRepository) CreateEnrollment(ctx context.Context, enr enrollment.Enrollment) (enrollment.Enrollment, error) {
	enr.ID = uuid.New().String()
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO enrollments (id, course_id, user_id, enrolled_at) VALUES ($1, $2, $3, $4)`,
		enr.ID, enr.CourseID, enr.UserID, enr.EnrolledAt)
	if err != nil {
		if isUniqueViolation(err) {
			return enrollment.Enrollment{}, enrollment.ErrAlreadyEnrolled
		}
		return enrollment.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	return enr, nil
}

func (repo *enrollmentRepository) GetEnrollment(ctx context.Context, courseID, userID string) (enrollment.Enrollment, error) {
	var row enrollmentRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT * FROM enrollments WHERE course_id = $1 AND user_id = $2`, courseID, userID)
	if err != nil {
		if isNoRows(err) {
			return enrollment.Enrollment{}, enrollment.ErrNotFound
		}
		return enrollment.Enrollment{}, errors.Wrap(err, "getting enrollment")
	}
	return row.toEnrollment(), nil
}

func (repo *enrollmentRepository) QueryCourseEnrollments(ctx context.Context, courseID string) ([]enrollment.Enrollment, error) {
	var rows []enrollmentRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM enrollments WHERE course_id = $1 ORDER BY enrolled_at`, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "querying course enrollments")
	}
	res := make([]enrollment.Enrollment, len(rows))
	for i, row := range rows {
		res[i] = row.toEnrollment()
	}
	return res, nil
}

func (repo *enrollmentRepository) QueryUserEnrollments(ctx context.Context, userID string) ([]enrollment.Enrollment, error) {
	var rows []enrollmentRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM enrollments WHERE user_id = $1 ORDER BY enrolled_at`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying user enrollments")
	}
	res := make([]enrollment.Enrollment, len(rows))
	for i, row := range rows {
		res[i] = row.toEnrollment()
	}
	return res, nil
}

func (repo *enrollmentRepository) DeleteEnrollment(ctx context.Context, id string) error {
	// progress records go via FK cascade
	res, err := repo.db.ExecContext(ctx, `DELETE FROM enrollments WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting enrollment")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return enrollment.ErrNotFound
	}
	return nil
}

func (repo *enrollmentRepository) IsEnrolled(ctx context.Context, courseID, userID string) (bool, error) {
	var enrolled bool
	err := repo.db.GetContext(ctx, &enrolled,
		`SELECT EXISTS (SELECT 1 FROM enrollments WHERE course_id = $1 AND user_id = $2)`, courseID, userID)
	return enrolled, errors.Wrap(err, "checking enrollment")
}

func (repo *enrollmentRepository) QueryEnrolledUserIDs(ctx context.Context, courseID string) ([]string, error) {
	var ids []string
	err := repo.db.SelectContext(ctx, &ids,
		`SELECT user_id FROM enrollments WHERE course_id = $1`, courseID)
	return ids, errors.Wrap(err, "querying enrolled user ids")
}
