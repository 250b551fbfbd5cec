package integration

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pankbase/functional/internal/platform/db"
	"github.com/pankbase/functional/pkg/pagination"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type sourceRepoPG struct{ pool *pgxpool.Pool }

func NewSourceRepoPG(pool *pgxpool.Pool) SourceRepository {
	return &sourceRepoPG{pool: pool}
}

func (r *sourceRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const sourceCols = `id, name, api_url, description, id_field, variables,
	created_by, created_at, updated_at`

const uniqueViolation = "23505"

func (r *sourceRepoPG) scanRow(row pgx.Row) (*Source, error) {
	var s Source
	err := row.Scan(&s.ID, &s.Name, &s.APIURL, &s.Description, &s.IDField, &s.Variables,
		&s.CreatedBy, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSourceNotFound
	}
	return &s, err
}

func (r *sourceRepoPG) Create(ctx context.Context, s *Source) error {
	s.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO external_source (id, name, api_url, description, id_field, variables, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		s.ID, s.Name, s.APIURL, s.Description, s.IDField, s.Variables, s.CreatedBy,
	).Scan(&s.CreatedAt, &s.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateSource
	}
	return err
}

func (r *sourceRepoPG) GetByName(ctx context.Context, name string) (*Source, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx, `SELECT `+sourceCols+` FROM external_source WHERE name = $1`, name))
}

// List reads the count and the page in one read-only snapshot so the total
// matches the items.
func (r *sourceRepoPG) List(ctx context.Context, limit, offset int) ([]*Source, int, error) {
	var (
		items []*Source
		total int
	)
	err := db.WithTxOptions(ctx, r.pool, db.ReadOnlySnapshot, func(ctx context.Context) error {
		var err error
		items, total, err = r.list(ctx, limit, offset)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *sourceRepoPG) list(ctx context.Context, limit, offset int) ([]*Source, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM external_source`).Scan(&total); err != nil {
		return nil, 0, err
	}
	page := pagination.Params{Limit: limit, Offset: offset}
	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(`SELECT %s FROM external_source ORDER BY created_at DESC, name %s`, sourceCols, page.SQL()))
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []*Source{}
	for rows.Next() {
		s, err := r.scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

func (r *sourceRepoPG) Delete(ctx context.Context, name string) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM external_source WHERE name = $1`, name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSourceNotFound
	}
	return nil
}
