package store

import (
	"context"
	"errors"
	"fmt"

	perrors "github.com/abgdnv/petcatalog/internal/errors"
	"github.com/abgdnv/petcatalog/internal/store/db"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const uniqueViolation = "23505"

// PgStore implements ProductStore using PostgreSQL as the data store.
type PgStore struct {
	db *pgxpool.Pool
	q  *db.Queries
}

// NewPgStore creates a new instance of ProductStore using a PostgreSQL connection pool.
// The pool must have the shopspring decimal types registered.
func NewPgStore(dbp *pgxpool.Pool) *PgStore {
	return &PgStore{
		db: dbp,
		q:  db.New(dbp),
	}
}

func (p *PgStore) FindByID(ctx context.Context, id int64) (*db.Product, error) {
	product, err := p.q.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, perrors.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}
	return &product, nil
}

func (p *PgStore) FindByName(ctx context.Context, name string) (*db.Product, error) {
	product, err := p.q.FindByName(ctx, name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, perrors.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by name: %w", err)
	}
	return &product, nil
}

func (p *PgStore) FindAll(ctx context.Context, filter ListFilter) ([]db.Product, error) {
	params := db.FindAllParams{
		InStock: filter.InStock,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}
	if filter.Active != nil {
		params.Active = pgtype.Bool{Bool: *filter.Active, Valid: true}
	}
	products, err := p.q.FindAll(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to find all products: %w", err)
	}
	return products, nil
}

func (p *PgStore) Create(ctx context.Context, params db.CreateParams) (*db.Product, error) {
	product, err := p.q.Create(ctx, params)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, perrors.ErrDuplicateName
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return &product, nil
}

func (p *PgStore) Update(ctx context.Context, id int64, fields UpdateFields, version int32) (*db.Product, error) {
	params := db.UpdateParams{ID: id, Version: version}
	if fields.Name != nil {
		params.Name = pgtype.Text{String: *fields.Name, Valid: true}
	}
	if fields.Description != nil {
		params.Description = pgtype.Text{String: *fields.Description, Valid: true}
	}
	if fields.Quantity != nil {
		params.Quantity = pgtype.Int4{Int32: *fields.Quantity, Valid: true}
	}
	if fields.Price != nil {
		params.Price = decimal.NullDecimal{Decimal: *fields.Price, Valid: true}
	}
	if fields.Active != nil {
		params.Active = pgtype.Bool{Bool: *fields.Active, Valid: true}
	}

	product, err := p.q.Update(ctx, params)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, perrors.ErrDuplicateName
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, p.casMiss(ctx, id)
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return &product, nil
}

func (p *PgStore) UpdateQuantity(ctx context.Context, id int64, quantity int32, version int32) (*db.Product, error) {
	product, err := p.q.UpdateQuantity(ctx, db.UpdateQuantityParams{
		ID:       id,
		Quantity: quantity,
		Version:  version,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, p.casMiss(ctx, id)
		}
		return nil, fmt.Errorf("failed to update product quantity: %w", err)
	}
	return &product, nil
}

func (p *PgStore) DeleteByID(ctx context.Context, id int64) error {
	count, err := p.q.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete product by ID: %w", err)
	}
	if count == 0 {
		return perrors.ErrProductNotFound
	}
	return nil
}

func (p *PgStore) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}

// casMiss tells a vanished row apart from a version conflict after a guarded update matched nothing.
func (p *PgStore) casMiss(ctx context.Context, id int64) error {
	if _, err := p.q.FindByID(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return perrors.ErrProductNotFound
		}
		return fmt.Errorf("failed to check product existence: %w", err)
	}
	return perrors.ErrOptimisticLock
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
