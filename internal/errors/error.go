// Package errors provides sentinel errors for catalog operations.
package errors

import "errors"

var (
	// ErrProductNotFound is returned when no product exists with the requested ID.
	ErrProductNotFound = errors.New("product not found")

	// ErrDuplicateName is returned when another product already uses the name.
	ErrDuplicateName = errors.New("product name already exists")

	// ErrInvalidArgument is returned for malformed input such as a non-positive sell quantity.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInsufficientStock is returned when a sale asks for more units than are in stock.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrProductInactive is returned when selling a product that is switched off.
	ErrProductInactive = errors.New("product is inactive")

	// ErrUnauthorized is returned when the API key is missing or wrong.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrOptimisticLock is returned by the store when the row version moved on.
	ErrOptimisticLock = errors.New("optimistic lock conflict")

	// ErrConcurrentModification is returned when retries on ErrOptimisticLock are exhausted.
	ErrConcurrentModification = errors.New("product was modified concurrently")
)
