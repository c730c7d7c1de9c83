// Package store owns persistent entity state. All writes surface their
// failures here as one of the sentinel errors, so handlers never inspect
// driver errors directly.
package store

import (
	"context"
	"errors"
	"time"

	"commerce-api/internal/odata"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotFound reports that no row exists at the given key.
	ErrNotFound = errors.New("entity not found")
	// ErrDuplicate reports a unique-index violation.
	ErrDuplicate = errors.New("duplicate value for a unique field")
	// ErrStale reports that the row was modified or deleted since it was loaded.
	ErrStale = errors.New("row changed concurrently")
)

const uniqueViolation = "23505"

// classifyWrite maps driver-level failures onto the store's error taxonomy.
func classifyWrite(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}

// Repository is the per-request access path for one entity type.
type Repository[T any] struct {
	db *gorm.DB
}

// NewRepository wraps the given connection.
func NewRepository[T any](db *gorm.DB) *Repository[T] {
	return &Repository[T]{db: db}
}

// List returns the entities matching the query options.
func (r *Repository[T]) List(ctx context.Context, opts *odata.Options) ([]T, error) {
	var items []T
	q := r.db.WithContext(ctx)
	if opts != nil {
		q = opts.Apply(q)
	}
	if err := q.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Count returns the number of rows matching the filter, independent of paging.
func (r *Repository[T]) Count(ctx context.Context, opts *odata.Options) (int64, error) {
	var total int64
	q := r.db.WithContext(ctx).Model(new(T))
	if opts != nil {
		q = opts.ApplyFilter(q)
	}
	if err := q.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// Get loads one entity by primary key, honoring projection and expansion
// when options are given.
func (r *Repository[T]) Get(ctx context.Context, id uint, opts *odata.Options) (*T, error) {
	entity := new(T)
	q := r.db.WithContext(ctx)
	if opts != nil {
		q = opts.Apply(q)
	}
	if err := q.First(entity, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return entity, nil
}

// Exists reports whether a row exists at the given key.
func (r *Repository[T]) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(new(T)).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Any reports whether the probe matches at least one row. Used for the
// friendly duplicate check before insert; the unique index remains the
// authoritative guard.
func (r *Repository[T]) Any(ctx context.Context, probe func(*gorm.DB) *gorm.DB) (bool, error) {
	var count int64
	q := probe(r.db.WithContext(ctx).Model(new(T)))
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create inserts the entity. The key column is omitted so the store always
// assigns it, and association fields are never written here; links go
// through the $ref operations.
func (r *Repository[T]) Create(ctx context.Context, entity *T) error {
	return classifyWrite(r.db.WithContext(ctx).Omit(clause.Associations, "id").Create(entity).Error)
}

// Update writes every column of the entity to the row at id, guarded by the
// last-updated stamp read when the row was loaded. Zero rows affected means
// the row was concurrently modified or deleted.
func (r *Repository[T]) Update(ctx context.Context, id uint, loadedStamp time.Time, entity *T) error {
	res := r.db.WithContext(ctx).
		Model(new(T)).
		Where("id = ? AND last_updated_datetime = ?", id, loadedStamp).
		Select("*").
		Omit(clause.Associations, "id", "inserted_by", "inserted_datetime").
		Updates(entity)
	if res.Error != nil {
		return classifyWrite(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStale
	}
	return nil
}

// Delete removes the row. Hard delete; there is no tombstone.
func (r *Repository[T]) Delete(ctx context.Context, entity *T) error {
	res := r.db.WithContext(ctx).Delete(entity)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
