package mysql

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"

	"place_reviews/internal/domain"
)

var dialect = goqu.Dialect("mysql")

func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func valInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

// StateRepo persists small operational values (last-synced timestamp).
type StateRepo struct{ db *sql.DB }

func NewState(db *sql.DB) *StateRepo { return &StateRepo{db: db} }

func (r *StateRepo) GetTime(ctx context.Context, key string) (time.Time, error) {
	var v string
	err := r.db.QueryRowContext(ctx, getStateSQL, key).Scan(&v)
	if err == sql.ErrNoRows {
		return time.Time{}, domain.ErrNotFound
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, v)
}

func (r *StateRepo) SetTime(ctx context.Context, key string, t time.Time) error {
	_, err := r.db.ExecContext(ctx, setStateSQL, key, t.UTC().Format(time.RFC3339))
	return err
}
