package sqlxdb

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/course"
)

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *sqlx.DB) *courseRepository {
	return &courseRepository{db: db}
}

type courseRow struct {
	ID          string      `db:"id"`
	Title       string      `db:"title"`
	Subject     string      `db:"subject"`
	Description string      `db:"description"`
	OwnerID     string      `db:"owner_id"`
	AccessCode  null.String `db:"access_code"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func (row courseRow) toCourse() course.Course {
	return course.Course{
		ID:          row.ID,
		Title:       row.Title,
		Subject:     row.Subject,
		Description: row.Description,
		OwnerID:     row.OwnerID,
		AccessCode:  row.AccessCode,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

type listRow struct {
	ID       string `db:"id"`
	CourseID string `db:"course_id"`
	Title    string `db:"title"`
	Position int    `db:"position"`
}

func (row listRow) toList() course.List {
	return course.List(row)
}

type itemRow struct {
	ID         string      `db:"id"`
	CourseID   string      `db:"course_id"`
	ListID     null.String `db:"list_id"`
	Kind       string      `db:"kind"`
	Title      string      `db:"title"`
	Position   int         `db:"position"`
	DueDate    null.Time   `db:"due_date"`
	CreatorID  string      `db:"creator_id"`
	Video      string      `db:"video"`
	CoverImage string      `db:"cover_image"`
	Questions  []byte      `db:"questions"`
	FilePath   string      `db:"file_path"`
	CreatedAt  time.Time   `db:"created_at"`
	UpdatedAt  time.Time   `db:"updated_at"`
}

func (row itemRow) toItem() (course.ContentItem, error) {
	it := course.ContentItem{
		ID:         row.ID,
		CourseID:   row.CourseID,
		ListID:     row.ListID,
		Kind:       course.ContentKind(row.Kind),
		Title:      row.Title,
		Position:   row.Position,
		DueDate:    row.DueDate,
		CreatorID:  row.CreatorID,
		Video:      row.Video,
		CoverImage: row.CoverImage,
		FilePath:   row.FilePath,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
	if len(row.Questions) > 0 {
		if err := json.Unmarshal(row.Questions, &it.Questions); err != nil {
			return course.ContentItem{}, errors.Wrap(err, "unmarshalling questions")
		}
	}
	return it, nil
}

func marshalQuestions(questions []course.Question) ([]byte, error) {
	if questions == nil {
		return nil, nil
	}
	data, err := json.Marshal(questions)
	return data, errors.Wrap(err, "marshalling questions")
}

// Courses

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	crs.ID = uuid.New().String()
	q := `INSERT INTO courses (id, title, subject, description, owner_id, access_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := repo.db.ExecContext(ctx, q,
		crs.ID, crs.Title, crs.Subject, crs.Description, crs.OwnerID, crs.AccessCode, crs.CreatedAt, crs.UpdatedAt)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return crs, nil
}

func (repo *courseRepository) GetCourseByID(ctx context.Context, id string) (course.Course, error) {
	var row courseRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM courses WHERE id = $1`, id)
	if err != nil {
		if isNoRows(err) {
			return course.Course{}, course.ErrNotFound
		}
		return course.Course{}, errors.Wrap(err, "getting course")
	}
	return row.toCourse(), nil
}

// courseOrderFields whitelists client-suppliable ORDER BY columns.
var courseOrderFields = map[string]bool{
	"title":      true,
	"subject":    true,
	"created_at": true,
	"updated_at": true,
}

func (repo *courseRepository) QueryCourses(ctx context.Context, filter *course.QueryFilter, orderings ...core.DBOrdering) ([]course.Course, error) {
	q := `SELECT * FROM courses`
	var clauses []string
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if filter != nil {
		if filter.Search != "" {
			p := arg("%" + filter.Search + "%")
			clauses = append(clauses, "(title ILIKE "+p+" OR description ILIKE "+p+")")
		}
		if filter.OwnerID != "" {
			clauses = append(clauses, "owner_id = "+arg(filter.OwnerID))
		}
		if filter.Subject != "" {
			clauses = append(clauses, "subject ILIKE "+arg(filter.Subject))
		}
	}
	for i, clause := range clauses {
		if i == 0 {
			q += " WHERE " + clause
		} else {
			q += " AND " + clause
		}
	}
	var orderBy []string
	for _, ord := range orderings {
		if courseOrderFields[ord.Field] {
			orderBy = append(orderBy, ord.String())
		}
	}
	if len(orderBy) == 0 {
		orderBy = []string{"created_at DESC"}
	}
	q += " ORDER BY " + strings.Join(orderBy, ", ")

	var rows []courseRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	res := make([]course.Course, len(rows))
	for i, row := range rows {
		res[i] = row.toCourse()
	}
	return res, nil
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	q := `UPDATE courses SET title = $2, subject = $3, description = $4, access_code = $5, updated_at = $6 WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, q, crs.ID, crs.Title, crs.Subject, crs.Description, crs.AccessCode, crs.UpdatedAt)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "updating course")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return course.Course{}, course.ErrNotFound
	}
	return crs, nil
}

func (repo *courseRepository) DeleteCourse(ctx context.Context, id string) error {
	// lists, items, enrollments, records and notifications go via FK cascades
	res, err := repo.db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting course")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return course.ErrNotFound
	}
	return nil
}

// Lists

func (repo *courseRepository) CreateList(ctx context.Context, lst course.List) (course.List, error) {
	lst.ID = uuid.New().String()
	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		if err := lockCourse(ctx, tx, lst.CourseID); err != nil {
			return err
		}
		err := tx.GetContext(ctx, &lst.Position,
			`SELECT COALESCE(MAX(position), 0) + 1 FROM lists WHERE course_id = $1`, lst.CourseID)
		if err != nil {
			return errors.Wrap(err, "computing list position")
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO lists (id, course_id, title, position) VALUES ($1, $2, $3, $4)`,
			lst.ID, lst.CourseID, lst.Title, lst.Position)
		return errors.Wrap(err, "inserting list")
	})
	if err != nil {
		return course.List{}, err
	}
	return lst, nil
}

func (repo *courseRepository) GetListByID(ctx context.Context, id string) (course.List, error) {
	var row listRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM lists WHERE id = $1`, id)
	if err != nil {
		if isNoRows(err) {
			return course.List{}, course.ErrListNotFound
		}
		return course.List{}, errors.Wrap(err, "getting list")
	}
	return row.toList(), nil
}

func (repo *courseRepository) QueryCourseLists(ctx context.Context, courseID string) ([]course.List, error) {
	var rows []listRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM lists WHERE course_id = $1 ORDER BY position`, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "querying lists")
	}
	res := make([]course.List, len(rows))
	for i, row := range rows {
		res[i] = row.toList()
	}
	return res, nil
}

func (repo *courseRepository) UpdateList(ctx context.Context, lst course.List) (course.List, error) {
	res, err := repo.db.ExecContext(ctx, `UPDATE lists SET title = $2 WHERE id = $1`, lst.ID, lst.Title)
	if err != nil {
		return course.List{}, errors.Wrap(err, "updating list")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return course.List{}, course.ErrListNotFound
	}
	return lst, nil
}

func (repo *courseRepository) DeleteList(ctx context.Context, id string) error {
	return inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		var courseID string
		err := tx.GetContext(ctx, &courseID, `SELECT course_id FROM lists WHERE id = $1`, id)
		if err != nil {
			if isNoRows(err) {
				return course.ErrListNotFound
			}
			return errors.Wrap(err, "getting list")
		}
		if err = lockCourse(ctx, tx, courseID); err != nil {
			return err
		}

		// detach the list's items into the no-list bucket, appended after its
		// current tail and keeping their relative order
		q := `UPDATE content_items AS it
			SET list_id = NULL, position = base.max_pos + ranked.rank
			FROM (SELECT id, ROW_NUMBER() OVER (ORDER BY position) AS rank
				  FROM content_items WHERE list_id = $1) AS ranked,
				 (SELECT COALESCE(MAX(position), 0) AS max_pos
				  FROM content_items WHERE course_id = $2 AND list_id IS NULL) AS base
			WHERE it.id = ranked.id`
		if _, err = tx.ExecContext(ctx, q, id, courseID); err != nil {
			return errors.Wrap(err, "detaching list items")
		}

		_, err = tx.ExecContext(ctx, `DELETE FROM lists WHERE id = $1`, id)
		return errors.Wrap(err, "deleting list")
	})
}

// Content items

func (repo *courseRepository) CreateItem(ctx context.Context, it course.ContentItem) (course.ContentItem, error) {
	questions, err := marshalQuestions(it.Questions)
	if err != nil {
		return course.ContentItem{}, err
	}

	it.ID = uuid.New().String()
	err = inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		if err := lockCourse(ctx, tx, it.CourseID); err != nil {
			return err
		}
		err := tx.GetContext(ctx, &it.Position,
			`SELECT COALESCE(MAX(position), 0) + 1 FROM content_items
			 WHERE course_id = $1 AND list_id IS NOT DISTINCT FROM $2`, it.CourseID, it.ListID)
		if err != nil {
			return errors.Wrap(err, "computing item position")
		}
		q := `INSERT INTO content_items
			(id, course_id, list_id, kind, title, position, due_date, creator_id,
			 video, cover_image, questions, file_path, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
		_, err = tx.ExecContext(ctx, q,
			it.ID, it.CourseID, it.ListID, it.Kind, it.Title, it.Position, it.DueDate, it.CreatorID,
			it.Video, it.CoverImage, questions, it.FilePath, it.CreatedAt, it.UpdatedAt)
		return errors.Wrap(err, "inserting content item")
	})
	if err != nil {
		return course.ContentItem{}, err
	}
	return it, nil
}

func (repo *courseRepository) GetItemByID(ctx context.Context, id string) (course.ContentItem, error) {
	var row itemRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM content_items WHERE id = $1`, id)
	if err != nil {
		if isNoRows(err) {
			return course.ContentItem{}, course.ErrItemNotFound
		}
		return course.ContentItem{}, errors.Wrap(err, "getting content item")
	}
	return row.toItem()
}

func (repo *courseRepository) QueryCourseItems(ctx context.Context, courseID string) ([]course.ContentItem, error) {
	var rows []itemRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM content_items WHERE course_id = $1 ORDER BY list_id NULLS FIRST, position`, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "querying content items")
	}
	res := make([]course.ContentItem, len(rows))
	for i, row := range rows {
		if res[i], err = row.toItem(); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (repo *courseRepository) CountTrackableItems(ctx context.Context, courseID string) (int, error) {
	var count int
	err := repo.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM content_items WHERE course_id = $1 AND kind IN ($2, $3)`,
		courseID, course.KindLesson, course.KindActivity)
	return count, errors.Wrap(err, "counting trackable items")
}

func (repo *courseRepository) UpdateItem(ctx context.Context, it course.ContentItem) (course.ContentItem, error) {
	questions, err := marshalQuestions(it.Questions)
	if err != nil {
		return course.ContentItem{}, err
	}
	q := `UPDATE content_items
		SET title = $2, due_date = $3, video = $4, cover_image = $5, questions = $6, file_path = $7, updated_at = $8
		WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, q,
		it.ID, it.Title, it.DueDate, it.Video, it.CoverImage, questions, it.FilePath, it.UpdatedAt)
	if err != nil {
		return course.ContentItem{}, errors.Wrap(err, "updating content item")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return course.ContentItem{}, course.ErrItemNotFound
	}
	return it, nil
}

func (repo *courseRepository) DeleteItem(ctx context.Context, id string) error {
	// progress records go via FK cascade
	res, err := repo.db.ExecContext(ctx, `DELETE FROM content_items WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting content item")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return course.ErrItemNotFound
	}
	return nil
}

func (repo *courseRepository) ReorderItems(ctx context.Context, courseID string, listID null.String, orderedIDs []string) error {
	return inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		if err := lockCourse(ctx, tx, courseID); err != nil {
			return err
		}

		var current []string
		err := tx.SelectContext(ctx, &current,
			`SELECT id FROM content_items WHERE course_id = $1 AND list_id IS NOT DISTINCT FROM $2`,
			courseID, listID)
		if err != nil {
			return errors.Wrap(err, "querying scope items")
		}

		if len(current) != len(orderedIDs) {
			return course.ErrOrderMismatch
		}
		scope := make(map[string]bool, len(current))
		for _, id := range current {
			scope[id] = true
		}
		for _, id := range orderedIDs {
			if !scope[id] {
				return course.ErrOrderMismatch
			}
			delete(scope, id) // catches duplicates
		}

		for pos, id := range orderedIDs {
			if _, err = tx.ExecContext(ctx,
				`UPDATE content_items SET position = $2 WHERE id = $1`, id, pos+1); err != nil {
				return errors.Wrap(err, "updating item position")
			}
		}
		return nil
	})
}

// lockCourse serializes position assignment and reordering per course.
func lockCourse(ctx context.Context, tx *sqlx.Tx, courseID string) error {
	var id string
	err := tx.GetContext(ctx, &id, `SELECT id FROM courses WHERE id = $1 FOR UPDATE`, courseID)
	if err != nil {
		if isNoRows(err) {
			return course.ErrNotFound
		}
		return errors.Wrap(err, "locking course")
	}
	return nil
}
