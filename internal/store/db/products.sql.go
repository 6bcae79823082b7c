package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const productColumns = `id, name, description, quantity, price, active, version, created_at, updated_at`

func scanProduct(row interface{ Scan(dest ...any) error }) (Product, error) {
	var i Product
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Description,
		&i.Quantity,
		&i.Price,
		&i.Active,
		&i.Version,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const findByID = `-- name: FindByID :one
SELECT ` + productColumns + ` FROM products
WHERE id = $1
`

func (q *Queries) FindByID(ctx context.Context, id int64) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, findByID, id))
}

const findByName = `-- name: FindByName :one
SELECT ` + productColumns + ` FROM products
WHERE name = $1
`

func (q *Queries) FindByName(ctx context.Context, name string) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, findByName, name))
}

const findAll = `-- name: FindAll :many
SELECT ` + productColumns + ` FROM products
WHERE ($1::boolean IS NULL OR active = $1)
  AND (NOT $2::boolean OR quantity > 0)
ORDER BY id
LIMIT $3 OFFSET $4
`

type FindAllParams struct {
	Active  pgtype.Bool `json:"active"`
	InStock bool        `json:"in_stock"`
	Limit   int32       `json:"limit"`
	Offset  int32       `json:"offset"`
}

func (q *Queries) FindAll(ctx context.Context, arg FindAllParams) ([]Product, error) {
	rows, err := q.db.Query(ctx, findAll,
		arg.Active,
		arg.InStock,
		arg.Limit,
		arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Product{}
	for rows.Next() {
		i, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const create = `-- name: Create :one
INSERT INTO products (name, description, quantity, price, active)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + productColumns + `
`

type CreateParams struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Quantity    int32           `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Active      bool            `json:"active"`
}

func (q *Queries) Create(ctx context.Context, arg CreateParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, create,
		arg.Name,
		arg.Description,
		arg.Quantity,
		arg.Price,
		arg.Active,
	))
}

const update = `-- name: Update :one
UPDATE products
SET name        = COALESCE($2, name),
    description = COALESCE($3, description),
    quantity    = COALESCE($4, quantity),
    price       = COALESCE($5, price),
    active      = COALESCE($6, active),
    version     = version + 1,
    updated_at  = now()
WHERE id = $1 AND version = $7
RETURNING ` + productColumns + `
`

type UpdateParams struct {
	ID          int64               `json:"id"`
	Name        pgtype.Text         `json:"name"`
	Description pgtype.Text         `json:"description"`
	Quantity    pgtype.Int4         `json:"quantity"`
	Price       decimal.NullDecimal `json:"price"`
	Active      pgtype.Bool         `json:"active"`
	Version     int32               `json:"version"`
}

func (q *Queries) Update(ctx context.Context, arg UpdateParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, update,
		arg.ID,
		arg.Name,
		arg.Description,
		arg.Quantity,
		arg.Price,
		arg.Active,
		arg.Version,
	))
}

const updateQuantity = `-- name: UpdateQuantity :one
UPDATE products
SET quantity   = $2,
    version    = version + 1,
    updated_at = now()
WHERE id = $1 AND version = $3
RETURNING ` + productColumns + `
`

type UpdateQuantityParams struct {
	ID       int64 `json:"id"`
	Quantity int32 `json:"quantity"`
	Version  int32 `json:"version"`
}

func (q *Queries) UpdateQuantity(ctx context.Context, arg UpdateQuantityParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, updateQuantity, arg.ID, arg.Quantity, arg.Version))
}

const deleteByID = `-- name: Delete :execrows
DELETE FROM products
WHERE id = $1
`

func (q *Queries) Delete(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.Exec(ctx, deleteByID, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
