package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rcliao/memscope/internal/model"
)

// timeLayout is fixed-width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
	ids  *idSource
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection serialises writers; transactions must not touch s.db.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{
		db:   db,
		path: dbPath,
		ids:  newIDSource(),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id          TEXT PRIMARY KEY,
		content     TEXT NOT NULL,
		agent_id    TEXT NOT NULL DEFAULT '',
		user_id     TEXT NOT NULL DEFAULT '',
		session_id  TEXT NOT NULL DEFAULT '',
		memory_type TEXT NOT NULL DEFAULT 'untyped',
		importance  REAL NOT NULL DEFAULT 0.5,
		metadata    TEXT,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_records_user ON records(user_id);
	CREATE INDEX IF NOT EXISTS idx_records_agent ON records(agent_id);
	CREATE INDEX IF NOT EXISTS idx_records_session ON records(session_id);
	CREATE INDEX IF NOT EXISTS idx_records_created ON records(created_at DESC, id DESC);

	CREATE TABLE IF NOT EXISTS tenants (
		id           TEXT PRIMARY KEY,
		name         TEXT NOT NULL UNIQUE,
		created_at   TEXT NOT NULL,
		memory_count INTEGER NOT NULL DEFAULT 0
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

const recordColumns = `id, content, agent_id, user_id, session_id, memory_type, importance, metadata, created_at, updated_at`

func (s *SQLiteStore) Add(ctx context.Context, p AddParams) (*model.Record, error) {
	rec, err := newRecord(p)
	if err != nil {
		return nil, err
	}
	if err := s.insert(ctx, s.db, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *SQLiteStore) AddBatch(ctx context.Context, ps []AddParams) ([]model.Record, error) {
	recs, err := newRecords(ps)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	for i := range recs {
		if err := s.insert(ctx, tx, &recs[i]); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return recs, nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// insert stamps and writes rec, leaving its metadata in the decoded form a
// later Get returns.
func (s *SQLiteStore) insert(ctx context.Context, ex execer, rec *model.Record) error {
	meta, err := encodeMeta(rec.Metadata)
	if err != nil {
		return err
	}
	if rec.Metadata, err = decodeMeta(meta); err != nil {
		return err
	}
	now := time.Now().UTC()
	rec.ID = s.ids.next(now)
	rec.CreatedAt = now
	rec.UpdatedAt = now

	_, err = ex.ExecContext(ctx,
		`INSERT INTO records (`+recordColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Content, rec.AgentID, rec.UserID, rec.SessionID, string(rec.Type),
		rec.Importance, meta, now.Format(timeLayout), now.Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE id = ?`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewNotFound("record", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return &r, nil
}

func (s *SQLiteStore) Update(ctx context.Context, id string, p UpdateParams) (*model.Record, error) {
	if err := checkUpdate(p); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	r, err := scanRecord(tx.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewNotFound("record", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}

	applyUpdate(&r, p)
	meta, err := encodeMeta(r.Metadata)
	if err != nil {
		return nil, err
	}
	if r.Metadata, err = decodeMeta(meta); err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE records SET content = ?, importance = ?, metadata = ?, updated_at = ? WHERE id = ?`,
		r.Content, r.Importance, meta, r.UpdatedAt.Format(timeLayout), id)
	if err != nil {
		return nil, fmt.Errorf("update record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return NewNotFound("record", id)
	}
	return nil
}

func (s *SQLiteStore) GetAll(ctx context.Context, p ListParams) ([]model.Record, error) {
	where, args := scopeWhere(p.Scope)
	if p.Type != "" {
		where = append(where, "memory_type = ?")
		args = append(args, string(p.Type))
	}

	query := `SELECT ` + recordColumns + ` FROM records`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if p.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, p.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []model.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) Clear(ctx context.Context, scope model.Scope) (int, error) {
	where, args := scopeWhere(scope)
	query := `DELETE FROM records`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("clear records: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *SQLiteStore) Remove(ctx context.Context, scope model.Scope) ([]model.Record, error) {
	where, args := scopeWhere(scope)
	cond := ""
	if len(where) > 0 {
		cond = ` WHERE ` + strings.Join(where, " AND ")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM records`+cond+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, err
	}
	removed := []model.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		removed = append(removed, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM records`+cond, args...); err != nil {
		return nil, fmt.Errorf("remove records: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return removed, nil
}

func (s *SQLiteStore) Replace(ctx context.Context, ids []string, p AddParams) (*model.Record, error) {
	rec, err := newRecord(p)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id); err != nil {
			return nil, fmt.Errorf("delete record: %w", err)
		}
	}
	if err := s.insert(ctx, tx, &rec); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scopeWhere builds equality clauses for every axis set on the filter.
func scopeWhere(scope model.Scope) ([]string, []any) {
	var where []string
	var args []any
	if scope.AgentID != "" {
		where = append(where, "agent_id = ?")
		args = append(args, scope.AgentID)
	}
	if scope.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, scope.UserID)
	}
	if scope.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, scope.SessionID)
	}
	return where, args
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (model.Record, error) {
	var r model.Record
	var typ, createdAt, updatedAt string
	var meta sql.NullString

	err := row.Scan(
		&r.ID, &r.Content, &r.AgentID, &r.UserID, &r.SessionID,
		&typ, &r.Importance, &meta, &createdAt, &updatedAt,
	)
	if err != nil {
		return r, err
	}

	r.Type = model.MemoryType(typ)
	if r.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return r, fmt.Errorf("parse created_at: %w", err)
	}
	if r.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return r, fmt.Errorf("parse updated_at: %w", err)
	}
	if meta.Valid {
		if r.Metadata, err = decodeMeta(&meta.String); err != nil {
			return r, err
		}
	}
	return r, nil
}

func decodeMeta(s *string) (map[string]any, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(*s), &m); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return m, nil
}

func encodeMeta(m map[string]any) (*string, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, NewInvalidArgument("metadata is not serialisable: %v", err)
	}
	s := string(b)
	return &s, nil
}
