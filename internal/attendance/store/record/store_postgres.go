package record

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"ledger/internal/attendance/models"
	"ledger/pkg/platform/sentinel"
	txcontext "ledger/pkg/platform/tx"
)

// uniqueViolation is the postgres SQLSTATE for unique_violation.
const uniqueViolation = "23505"

const recordColumns = `id, subject_id, activity_id, record_date, status, note, created_at, updated_at`

// PostgresStore persists attendance records. The unique index on
// (subject_id, activity_id, record_date) is the final arbiter for conflicts.
type PostgresStore struct {
	db txcontext.Execer
}

// NewPostgres creates a store bound to the connection pool.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx creates a store bound to an open transaction.
func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{db: tx}
}

func (s *PostgresStore) FindByID(ctx context.Context, id int64) (*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM attendance_records WHERE id = $1`
	r, err := scanRecord(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(err, "find attendance record by id")
	}
	return r, nil
}

func (s *PostgresStore) FindByKey(ctx context.Context, key models.Key) (*models.Record, error) {
	query := `SELECT ` + recordColumns + `
		FROM attendance_records
		WHERE subject_id = $1 AND activity_id = $2 AND record_date = $3`
	r, err := scanRecord(s.db.QueryRowContext(ctx, query, key.SubjectID, key.ActivityID, key.Date))
	if err != nil {
		return nil, mapError(err, "find attendance record by key")
	}
	return r, nil
}

func (s *PostgresStore) Insert(ctx context.Context, r *models.Record) (*models.Record, error) {
	query := `
		INSERT INTO attendance_records (subject_id, activity_id, record_date, status, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + recordColumns
	stored, err := scanRecord(s.db.QueryRowContext(ctx, query,
		r.SubjectID, r.ActivityID, r.RecordDate, string(r.Status), r.Note, r.CreatedAt, r.UpdatedAt,
	))
	if err != nil {
		return nil, mapError(err, "insert attendance record")
	}
	return stored, nil
}

// UpsertByKey inserts or overwrites the record for reg.Key in one statement.
func (s *PostgresStore) UpsertByKey(ctx context.Context, reg models.Registration, now time.Time) (*models.Record, error) {
	query := `
		INSERT INTO attendance_records (subject_id, activity_id, record_date, status, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (subject_id, activity_id, record_date) DO UPDATE SET
			status = EXCLUDED.status,
			note = EXCLUDED.note,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + recordColumns
	stored, err := scanRecord(s.db.QueryRowContext(ctx, query,
		reg.Key.SubjectID, reg.Key.ActivityID, reg.Key.Date, string(reg.Status), reg.Note, now,
	))
	if err != nil {
		return nil, mapError(err, "upsert attendance record")
	}
	return stored, nil
}

func (s *PostgresStore) Update(ctx context.Context, r *models.Record) (*models.Record, error) {
	query := `
		UPDATE attendance_records
		SET status = $2, record_date = $3, note = $4, updated_at = $5
		WHERE id = $1
		RETURNING ` + recordColumns
	stored, err := scanRecord(s.db.QueryRowContext(ctx, query,
		r.ID, string(r.Status), r.RecordDate, r.Note, r.UpdatedAt,
	))
	if err != nil {
		return nil, mapError(err, "update attendance record")
	}
	return stored, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM attendance_records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete attendance record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete attendance record: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// List returns records matching f ordered by record_date DESC, id ASC.
func (s *PostgresStore) List(ctx context.Context, f models.Filter) ([]*models.Record, error) {
	where, args := buildWhere(f)
	query := `SELECT ` + recordColumns + ` FROM attendance_records` + where + ` ORDER BY record_date DESC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list attendance records: %w", err)
	}
	defer rows.Close()

	records := make([]*models.Record, 0)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attendance record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance records: %w", err)
	}
	return records, nil
}

func buildWhere(f models.Filter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, strings.ReplaceAll(clause, "?", "$"+strconv.Itoa(len(args))))
	}
	if f.SubjectID != nil {
		add("subject_id = ?", *f.SubjectID)
	}
	if f.ActivityID != nil {
		add("activity_id = ?", *f.ActivityID)
	}
	if f.DateFrom != nil {
		add("record_date >= ?", *f.DateFrom)
	}
	if f.DateTo != nil {
		add("record_date <= ?", *f.DateTo)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		add("status = ANY(?)", pq.Array(statuses))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.Record, error) {
	var (
		r      models.Record
		status string
	)
	if err := row.Scan(&r.ID, &r.SubjectID, &r.ActivityID, &r.RecordDate, &status, &r.Note, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Status = models.Status(status)
	r.RecordDate = models.NormalizeDate(r.RecordDate)
	return &r, nil
}

// mapError translates driver errors into store sentinels.
func mapError(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, sentinel.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	return false
}
