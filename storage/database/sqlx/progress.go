package sqlxdb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/darasahq/darasa/core/progress"
)

type progressRepository struct {
	db *sqlx.DB
}

var _ progress.Repository = (*progressRepository)(nil)

func NewProgressRepository(db *sqlx.DB) *progressRepository {
	return &progressRepository{db: db}
}

type recordRow struct {
	ID            string    `db:"id"`
	EnrollmentID  string    `db:"enrollment_id"`
	ContentItemID string    `db:"content_item_id"`
	Completed     bool      `db:"completed"`
	Score         null.Int  `db:"score"`
	CompletedAt   time.Time `db:"completed_at"`
}

func (row recordRow) toRecord() progress.Record {
	return progress.Record(row)
}

func (repo *progressRepository) CreateRecordIfAbsent(ctx context.Context, rec progress.Record) (progress.Record, bool, error) {
	rec.ID = uuid.New().String()
	q := `INSERT INTO progress_records (id, enrollment_id, content_item_id, completed, score, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (enrollment_id, content_item_id) DO NOTHING`
	res, err := repo.db.ExecContext(ctx, q,
		rec.ID, rec.EnrollmentID, rec.ContentItemID, rec.Completed, rec.Score, rec.CompletedAt)
	if err != nil {
		return progress.Record{}, false, errors.Wrap(err, "inserting progress record")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// concurrent duplicates land here; return the winner's record
		existing, err := repo.GetRecord(ctx, rec.EnrollmentID, rec.ContentItemID)
		if err != nil {
			return progress.Record{}, false, err
		}
		return existing, false, nil
	}
	return rec, true, nil
}

func (repo *progressRepository) UpsertRecord(ctx context.Context, rec progress.Record) (progress.Record, error) {
	rec.ID = uuid.New().String()
	q := `INSERT INTO progress_records (id, enrollment_id, content_item_id, completed, score, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (enrollment_id, content_item_id)
		DO UPDATE SET completed = EXCLUDED.completed, score = EXCLUDED.score, completed_at = EXCLUDED.completed_at
		RETURNING id`
	err := repo.db.GetContext(ctx, &rec.ID, q,
		rec.ID, rec.EnrollmentID, rec.ContentItemID, rec.Completed, rec.Score, rec.CompletedAt)
	if err != nil {
		return progress.Record{}, errors.Wrap(err, "upserting progress record")
	}
	return rec, nil
}

func (repo *progressRepository) GetRecord(ctx context.Context, enrollmentID, itemID string) (progress.Record, error) {
	var row recordRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT * FROM progress_records WHERE enrollment_id = $1 AND content_item_id = $2`, enrollmentID, itemID)
	if err != nil {
		if isNoRows(err) {
			return progress.Record{}, progress.ErrNotFound
		}
		return progress.Record{}, errors.Wrap(err, "getting progress record")
	}
	return row.toRecord(), nil
}

func (repo *progressRepository) QueryEnrollmentRecords(ctx context.Context, enrollmentID string) ([]progress.Record, error) {
	var rows []recordRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM progress_records WHERE enrollment_id = $1`, enrollmentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying progress records")
	}
	res := make([]progress.Record, len(rows))
	for i, row := range rows {
		res[i] = row.toRecord()
	}
	return res, nil
}

func (repo *progressRepository) CountCompletedRecords(ctx context.Context, enrollmentID string) (int, error) {
	var count int
	err := repo.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM progress_records WHERE enrollment_id = $1 AND completed`, enrollmentID)
	return count, errors.Wrap(err, "counting completed records")
}

func (repo *progressRepository) DeleteRecord(ctx context.Context, enrollmentID, itemID string) error {
	_, err := repo.db.ExecContext(ctx,
		`DELETE FROM progress_records WHERE enrollment_id = $1 AND content_item_id = $2`, enrollmentID, itemID)
	return errors.Wrap(err, "deleting progress record")
}
