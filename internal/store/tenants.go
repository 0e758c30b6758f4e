package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rcliao/memscope/internal/model"
)

// SQLiteTenants is a tenant registry stored alongside the records. Names
// are unique, so concurrent registrations of one name converge on a single row.
type SQLiteTenants struct {
	db *sql.DB
}

// Tenants returns the tenant registry backed by this database.
func (s *SQLiteStore) Tenants() *SQLiteTenants {
	return &SQLiteTenants{db: s.db}
}

const tenantColumns = `id, name, created_at, memory_count`

// CreateOrGet returns the tenant called name, creating it if needed.
func (t *SQLiteTenants) CreateOrGet(ctx context.Context, name string) (*model.Tenant, error) {
	name = strings.TrimSpace(name)
	now := time.Now().UTC()

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO tenants (`+tenantColumns+`) VALUES (?, ?, ?, 0)
		 ON CONFLICT(name) DO NOTHING`,
		uuid.NewString(), name, now.Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("insert tenant: %w", err)
	}

	tn, err := scanTenant(tx.QueryRowContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE name = ?`, name))
	if err != nil {
		return nil, fmt.Errorf("load tenant: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &tn, nil
}

func (t *SQLiteTenants) Get(ctx context.Context, id string) (*model.Tenant, error) {
	return t.getBy(ctx, "id", id)
}

func (t *SQLiteTenants) GetByName(ctx context.Context, name string) (*model.Tenant, error) {
	return t.getBy(ctx, "name", strings.TrimSpace(name))
}

func (t *SQLiteTenants) getBy(ctx context.Context, column, value string) (*model.Tenant, error) {
	tn, err := scanTenant(t.db.QueryRowContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE `+column+` = ?`, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewNotFound("tenant", value)
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	return &tn, nil
}

func (t *SQLiteTenants) List(ctx context.Context) ([]model.Tenant, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tenants := []model.Tenant{}
	for rows.Next() {
		tn, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, tn)
	}
	return tenants, rows.Err()
}

func (t *SQLiteTenants) Delete(ctx context.Context, id string) error {
	res, err := t.db.ExecContext(ctx, `DELETE FROM tenants WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete tenant: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return NewNotFound("tenant", id)
	}
	return nil
}

func (t *SQLiteTenants) RecordUsage(ctx context.Context, id string, delta int64) error {
	res, err := t.db.ExecContext(ctx,
		`UPDATE tenants SET memory_count = MAX(memory_count + ?, 0) WHERE id = ?`, delta, id)
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return NewNotFound("tenant", id)
	}
	return nil
}

func scanTenant(row scanner) (model.Tenant, error) {
	var tn model.Tenant
	var createdAt string
	if err := row.Scan(&tn.ID, &tn.Name, &createdAt, &tn.MemoryCount); err != nil {
		return tn, err
	}
	var err error
	if tn.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return tn, fmt.Errorf("parse created_at: %w", err)
	}
	return tn, nil
}
