package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested watermark does not exist.
var ErrNotFound = errors.New("not found")

// WatermarkRepository reads and advances named watermarks.
type WatermarkRepository struct {
	db *sql.DB
}

// Watermarks returns the watermark repository for this store.
func (s *Store) Watermarks() *WatermarkRepository {
	return &WatermarkRepository{db: s.db}
}

// Get returns the watermark stored under name.
func (r *WatermarkRepository) Get(name string) (float64, error) {
	var value float64
	err := r.db.QueryRow(`SELECT value FROM watermarks WHERE name = ?`, name).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return value, nil
}

// Advance stores value under name unless a greater value is already stored.
func (r *WatermarkRepository) Advance(name string, value float64) error {
	_, err := r.db.Exec(
		`INSERT INTO watermarks (name, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		 WHERE excluded.value > watermarks.value`,
		name, value, time.Now().UTC(),
	)
	return err
}

// Set stores value under name unconditionally, moving it backwards if needed.
func (r *WatermarkRepository) Set(name string, value float64) error {
	_, err := r.db.Exec(
		`INSERT INTO watermarks (name, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		name, value, time.Now().UTC(),
	)
	return err
}

// Delete removes the watermark stored under name.
func (r *WatermarkRepository) Delete(name string) error {
	result, err := r.db.Exec(`DELETE FROM watermarks WHERE name = ?`, name)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// NamedWatermark binds one watermark name to the repository. It satisfies
// the receiver's watermark store.
type NamedWatermark struct {
	repo *WatermarkRepository
	name string
}

// WatermarkStore returns the watermark stored under name.
func (s *Store) WatermarkStore(name string) *NamedWatermark {
	return &NamedWatermark{repo: s.Watermarks(), name: name}
}

// Load returns the stored value, or ok=false if nothing is stored yet.
func (w *NamedWatermark) Load(ctx context.Context) (float64, bool, error) {
	v, err := w.repo.Get(w.name)
	if errors.Is(err, ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

// Save advances the stored value.
func (w *NamedWatermark) Save(ctx context.Context, value float64) error {
	return w.repo.Advance(w.name, value)
}

// Replace overwrites the stored value even when it is lower.
func (w *NamedWatermark) Replace(ctx context.Context, value float64) error {
	return w.repo.Set(w.name, value)
}
