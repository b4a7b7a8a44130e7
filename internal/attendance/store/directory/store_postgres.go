package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"ledger/internal/attendance/models"
	"ledger/pkg/platform/sentinel"
	txcontext "ledger/pkg/platform/tx"
)

type PostgresStore struct {
	db txcontext.Execer
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx reads through an open transaction so existence checks see
// the same snapshot as the writes that follow them.
func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{db: tx}
}

func (s *PostgresStore) FindSubject(ctx context.Context, id int64) (*models.Subject, error) {
	var subject models.Subject
	err := s.db.QueryRowContext(ctx, `SELECT id, display_name FROM subjects WHERE id = $1`, id).
		Scan(&subject.ID, &subject.DisplayName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find subject: %w", err)
	}
	return &subject, nil
}

func (s *PostgresStore) FindActivity(ctx context.Context, id int64) (*models.Activity, error) {
	var activity models.Activity
	err := s.db.QueryRowContext(ctx, `SELECT id, title FROM activities WHERE id = $1`, id).
		Scan(&activity.ID, &activity.Title)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find activity: %w", err)
	}
	return &activity, nil
}

func (s *PostgresStore) SubjectNames(ctx context.Context, ids []int64) (map[int64]string, error) {
	names := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, display_name FROM subjects WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("load subject names: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan subject name: %w", err)
		}
		names[id] = name
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subject names: %w", err)
	}
	return names, nil
}
