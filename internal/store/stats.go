package store

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/rcliao/memscope/internal/model"
)

// Stats holds store statistics.
type Stats struct {
	DBPath       string         `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	DBSizeBytes  int64          `json:"db_size_bytes,omitempty" yaml:"db_size_bytes,omitempty"`
	TotalRecords int            `json:"total_records" yaml:"total_records"`
	Summaries    int            `json:"summaries" yaml:"summaries"`
	Types        map[string]int `json:"types" yaml:"types"`
	Users        []UserStats    `json:"users" yaml:"users"`
}

// UserStats holds per-user counts. Records without a user are reported under
// the empty user ID.
type UserStats struct {
	UserID string `json:"user_id" yaml:"user_id"`
	Count  int    `json:"count" yaml:"count"`
}

func newStats() *Stats {
	return &Stats{Types: map[string]int{}}
}

// add folds one record into the totals.
func (st *Stats) add(r model.Record) {
	st.TotalRecords++
	st.Types[string(r.Type)]++
	if r.IsSummary() {
		st.Summaries++
	}
	for i := range st.Users {
		if st.Users[i].UserID == r.UserID {
			st.Users[i].Count++
			return
		}
	}
	st.Users = append(st.Users, UserStats{UserID: r.UserID, Count: 1})
}

// finish sorts users by count descending, then ID.
func (st *Stats) finish() {
	slices.SortFunc(st.Users, func(a, b UserStats) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.UserID, b.UserID)
	})
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := newStats()
	st.DBPath = s.path

	if info, err := os.Stat(s.path); err == nil {
		st.DBSizeBytes = info.Size()
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&st.TotalRecords); err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE json_extract(metadata, '$.type') = ?`,
		model.MetaTypeSummary).Scan(&st.Summaries); err != nil {
		return nil, fmt.Errorf("count summaries: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT memory_type, COUNT(*) FROM records GROUP BY memory_type`)
	if err != nil {
		return nil, fmt.Errorf("count types: %w", err)
	}
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			rows.Close()
			return nil, err
		}
		st.Types[typ] = n
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, `
		SELECT user_id, COUNT(*) AS cnt
		FROM records GROUP BY user_id ORDER BY cnt DESC, user_id`)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var u UserStats
		if err := rows.Scan(&u.UserID, &u.Count); err != nil {
			return nil, err
		}
		st.Users = append(st.Users, u)
	}

	return st, rows.Err()
}
