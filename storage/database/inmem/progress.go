package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/darasahq/darasa/core/progress"
)

type progressRepository struct {
	db *DB
}

var _ progress.Repository = (*progressRepository)(nil)

func NewProgressRepository(db *DB) *progressRepository {
	return &progressRepository{db: db}
}

func (repo *progressRepository) CreateRecordIfAbsent(_ context.Context, rec progress.Record) (progress.Record, bool, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	// insert-if-absent under one lock; concurrent duplicates both succeed,
	// exactly one record exists afterwards
	if existing := repo.getLocked(rec.EnrollmentID, rec.ContentItemID); existing != nil {
		return *existing, false, nil
	}

	rec.ID = uuid.New().String()
	repo.db.records[rec.ID] = &rec
	return rec, true, nil
}

func (repo *progressRepository) UpsertRecord(_ context.Context, rec progress.Record) (progress.Record, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if existing := repo.getLocked(rec.EnrollmentID, rec.ContentItemID); existing != nil {
		rec.ID = existing.ID
		repo.db.records[rec.ID] = &rec
		return rec, nil
	}

	rec.ID = uuid.New().String()
	repo.db.records[rec.ID] = &rec
	return rec, nil
}

func (repo *progressRepository) GetRecord(_ context.Context, enrollmentID, itemID string) (progress.Record, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if rec := repo.getLocked(enrollmentID, itemID); rec != nil {
		return *rec, nil
	}
	return progress.Record{}, progress.ErrNotFound
}

func (repo *progressRepository) QueryEnrollmentRecords(_ context.Context, enrollmentID string) ([]progress.Record, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	res := make([]progress.Record, 0)
	for _, rec := range repo.db.records {
		if rec.EnrollmentID == enrollmentID {
			res = append(res, *rec)
		}
	}
	return res, nil
}

func (repo *progressRepository) CountCompletedRecords(_ context.Context, enrollmentID string) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var count int
	for _, rec := range repo.db.records {
		if rec.EnrollmentID == enrollmentID && rec.Completed {
			count++
		}
	}
	return count, nil
}

func (repo *progressRepository) DeleteRecord(_ context.Context, enrollmentID, itemID string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if rec := repo.getLocked(enrollmentID, itemID); rec != nil {
		delete(repo.db.records, rec.ID)
	}
	return nil
}

// getLocked finds the record for a (enrollment, item) pair; callers hold the lock.
func (repo *progressRepository) getLocked(enrollmentID, itemID string) *progress.Record {
	for _, rec := range repo.db.records {
		if rec.EnrollmentID == enrollmentID && rec.ContentItemID == itemID {
			return rec
		}
	}
	return nil
}
