package planlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type dialect struct {
	driver string
	schema string
	// bind returns the placeholder of the n-th argument, starting at 1.
	bind func(n int) string
}

var (
	sqliteDialect = dialect{
		driver: "sqlite",
		schema: `CREATE TABLE IF NOT EXISTS plan_runs (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        run_id TEXT NOT NULL,
        ts INTEGER,
        status TEXT,
        record TEXT
    );`,
		bind: func(int) string { return "?" },
	}
	postgresDialect = dialect{
		driver: "pgx",
		schema: `CREATE TABLE IF NOT EXISTS plan_runs (
        id BIGSERIAL PRIMARY KEY,
        run_id TEXT NOT NULL,
        ts BIGINT,
        status TEXT,
        record JSONB
    );`,
		bind: func(n int) string { return "$" + strconv.Itoa(n) },
	}
)

// SQLStore persists run records in a SQL database. The record itself is
// stored as JSON next to the indexed columns used for filtering.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLStore, error) {
	db, err := sql.Open(sqliteDialect.driver, path)
	if err != nil {
		return nil, err
	}
	return newSQLStore(context.Background(), db, sqliteDialect)
}

// NewPostgresStore connects to the database behind dsn and ensures schema.
func NewPostgresStore(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open(postgresDialect.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("verify postgres connection: %w", err)
	}
	return newSQLStore(ctx, db, postgresDialect)
}

func newSQLStore(ctx context.Context, db *sql.DB, d dialect) (*SQLStore, error) {
	if _, err := db.ExecContext(ctx, d.schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLStore{db: db, dialect: d}, nil
}

// Append writes the record to the database.
func (s *SQLStore) Append(ctx context.Context, rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf(`INSERT INTO plan_runs (run_id, ts, status, record) VALUES (%s, %s, %s, %s)`,
		s.dialect.bind(1), s.dialect.bind(2), s.dialect.bind(3), s.dialect.bind(4))
	_, err = s.db.ExecContext(ctx, stmt, rec.RunID, rec.Timestamp.Unix(), rec.Status, string(b))
	return err
}

// Query returns records matching q, oldest first.
func (s *SQLStore) Query(ctx context.Context, q Query) ([]Record, error) {
	var args []any
	query := `SELECT record FROM plan_runs WHERE 1=1`
	if !q.Start.IsZero() {
		args = append(args, q.Start.Unix())
		query += ` AND ts >= ` + s.dialect.bind(len(args))
	}
	if !q.End.IsZero() {
		args = append(args, q.End.Unix())
		query += ` AND ts <= ` + s.dialect.bind(len(args))
	}
	if q.Status != "" {
		args = append(args, q.Status)
		query += ` AND status = ` + s.dialect.bind(len(args))
	}
	query += ` ORDER BY ts, id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []Record
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r Record
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		if q.TruckID != "" && !r.Involves(q.TruckID) {
			continue
		}
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return q.trim(res), nil
}

// Close closes the underlying database.
func (s *SQLStore) Close() error { return s.db.Close() }
