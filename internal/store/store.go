// Package store provides an interface for product storage operations.
package store

import (
	"context"

	"github.com/abgdnv/petcatalog/internal/store/db"
	"github.com/shopspring/decimal"
)

// ProductStore is an interface for product storage operations.
// Every mutation of an existing row is a compare-and-swap on its version.
type ProductStore interface {
	// FindByID retrieves a single product by its unique identifier.
	// Returns ErrProductNotFound if no product exists with the given ID.
	FindByID(ctx context.Context, id int64) (*db.Product, error)

	// FindByName retrieves a single product by its unique name.
	// Returns ErrProductNotFound if no product has that name.
	FindByName(ctx context.Context, name string) (*db.Product, error)

	// FindAll returns products matching the filter ordered by ID.
	// Returns an empty slice if nothing matches.
	FindAll(ctx context.Context, filter ListFilter) ([]db.Product, error)

	// Create adds a new product to the system.
	// Returns ErrDuplicateName if the name is taken.
	Create(ctx context.Context, params db.CreateParams) (*db.Product, error)

	// Update applies the non-nil fields if the stored version still equals version.
	// Returns ErrProductNotFound, ErrOptimisticLock or ErrDuplicateName.
	Update(ctx context.Context, id int64, fields UpdateFields, version int32) (*db.Product, error)

	// UpdateQuantity sets the stock quantity if the stored version still equals version.
	// Returns ErrProductNotFound or ErrOptimisticLock.
	UpdateQuantity(ctx context.Context, id int64, quantity int32, version int32) (*db.Product, error)

	// DeleteByID removes a product by its ID.
	// Returns ErrProductNotFound if no product exists with the given ID.
	DeleteByID(ctx context.Context, id int64) error

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}

// ListFilter narrows FindAll. A nil Active matches both active and inactive products.
type ListFilter struct {
	Active  *bool
	InStock bool
	Limit   int32
	Offset  int32
}

// UpdateFields carries a partial update. Nil fields keep their stored value.
type UpdateFields struct {
	Name        *string
	Description *string
	Quantity    *int32
	Price       *decimal.Decimal
	Active      *bool
}
