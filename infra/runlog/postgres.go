package runlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	core "github.com/kilianp07/battopt/core/runlog"
)

// PostgresStore persists run records in a PostgreSQL table.
type PostgresStore struct {
	db *sql.DB
}

var _ core.Store = (*PostgresStore)(nil)

// NewPostgresStore connects with the lib/pq connection string and ensures schema.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	schema := `CREATE TABLE IF NOT EXISTS optimization_runs (
        id BIGSERIAL PRIMARY KEY,
        run_id TEXT NOT NULL,
        ts TIMESTAMPTZ NOT NULL,
        status TEXT NOT NULL,
        total_savings DOUBLE PRECISION,
        record JSONB NOT NULL
    );
    CREATE INDEX IF NOT EXISTS optimization_runs_ts ON optimization_runs (ts);`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

// Append inserts the record.
func (s *PostgresStore) Append(ctx context.Context, rec core.Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO optimization_runs (run_id, ts, status, total_savings, record) VALUES ($1, $2, $3, $4, $5)`,
		rec.RunID, rec.Timestamp, rec.Status, rec.TotalSavings, string(b))
	return err
}

// Query returns records matching q, oldest first.
func (s *PostgresStore) Query(ctx context.Context, q core.Query) ([]core.Record, error) {
	var (
		args  []any
		where = ` WHERE TRUE`
	)
	if !q.Start.IsZero() {
		args = append(args, q.Start)
		where += fmt.Sprintf(` AND ts >= $%d`, len(args))
	}
	if !q.End.IsZero() {
		args = append(args, q.End)
		where += fmt.Sprintf(` AND ts <= $%d`, len(args))
	}
	if q.Status != "" {
		args = append(args, q.Status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	query := `SELECT record FROM optimization_runs` + where + ` ORDER BY ts, id`
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query = fmt.Sprintf(`SELECT record FROM (SELECT id, ts, record FROM optimization_runs%s ORDER BY ts DESC, id DESC LIMIT $%d) AS recent ORDER BY ts, id`, where, len(args))
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []core.Record
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r core.Record
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error { return s.db.Close() }
