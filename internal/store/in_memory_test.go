package store

import (
	"context"
	"testing"

	perrors "github.com/abgdnv/petcatalog/internal/errors"
	"github.com/abgdnv/petcatalog/internal/store/db"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, s *InMemoryStore, name string, quantity int32, active bool) *db.Product {
	t.Helper()
	p, err := s.Create(context.Background(), db.CreateParams{
		Name:     name,
		Quantity: quantity,
		Price:    decimal.RequireFromString("9.99"),
		Active:   active,
	})
	require.NoError(t, err)
	return p
}

func Test_InMemory_CreateAndFind(t *testing.T) {
	// given
	s := NewInMemoryStore()
	ctx := context.Background()

	// when
	created := seed(t, s, "Cat Indoor Basic", 40, true)

	// then
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, int32(1), created.Version)
	byID, err := s.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, *created, *byID)
	byName, err := s.FindByName(ctx, "Cat Indoor Basic")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)

	_, err = s.FindByID(ctx, 42)
	assert.ErrorIs(t, err, perrors.ErrProductNotFound)
	_, err = s.FindByName(ctx, "nope")
	assert.ErrorIs(t, err, perrors.ErrProductNotFound)
	_, err = s.Create(ctx, db.CreateParams{Name: "Cat Indoor Basic"})
	assert.ErrorIs(t, err, perrors.ErrDuplicateName)
}

func Test_InMemory_FindAll(t *testing.T) {
	s := NewInMemoryStore()
	seed(t, s, "A", 5, true)
	seed(t, s, "B", 0, true)
	seed(t, s, "C", 3, false)
	active := true
	inactive := false

	tests := []struct {
		name   string
		filter ListFilter
		want   []string
	}{
		{name: "all", filter: ListFilter{Limit: 10}, want: []string{"A", "B", "C"}},
		{name: "active only", filter: ListFilter{Active: &active, Limit: 10}, want: []string{"A", "B"}},
		{name: "inactive only", filter: ListFilter{Active: &inactive, Limit: 10}, want: []string{"C"}},
		{name: "in stock", filter: ListFilter{InStock: true, Limit: 10}, want: []string{"A", "C"}},
		{name: "paged", filter: ListFilter{Limit: 1, Offset: 1}, want: []string{"B"}},
		{name: "offset past end", filter: ListFilter{Limit: 10, Offset: 5}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// when
			list, err := s.FindAll(context.Background(), tt.filter)

			// then
			require.NoError(t, err)
			names := make([]string, 0, len(list))
			for _, p := range list {
				names = append(names, p.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func Test_InMemory_Update(t *testing.T) {
	// given
	s := NewInMemoryStore()
	ctx := context.Background()
	first := seed(t, s, "First", 1, true)
	second := seed(t, s, "Second", 2, true)
	desc := "updated"
	taken := "First"

	// when
	updated, err := s.Update(ctx, second.ID, UpdateFields{Description: &desc}, second.Version)

	// then
	require.NoError(t, err)
	assert.Equal(t, "Second", updated.Name)
	assert.Equal(t, "updated", updated.Description)
	assert.Equal(t, second.Version+1, updated.Version)

	_, err = s.Update(ctx, second.ID, UpdateFields{Name: &taken}, updated.Version)
	assert.ErrorIs(t, err, perrors.ErrDuplicateName)
	_, err = s.Update(ctx, first.ID, UpdateFields{Description: &desc}, first.Version+7)
	assert.ErrorIs(t, err, perrors.ErrOptimisticLock)
	_, err = s.Update(ctx, 99, UpdateFields{}, 1)
	assert.ErrorIs(t, err, perrors.ErrProductNotFound)

	stored, err := s.FindByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, "Second", stored.Name, "failed update must not leak partial changes")
}

func Test_InMemory_UpdateQuantityAndDelete(t *testing.T) {
	// given
	s := NewInMemoryStore()
	ctx := context.Background()
	p := seed(t, s, "Parrot Seed Mix", 20, true)

	// when
	updated, err := s.UpdateQuantity(ctx, p.ID, 15, p.Version)

	// then
	require.NoError(t, err)
	assert.Equal(t, int32(15), updated.Quantity)
	_, err = s.UpdateQuantity(ctx, p.ID, 10, p.Version)
	assert.ErrorIs(t, err, perrors.ErrOptimisticLock)

	require.NoError(t, s.DeleteByID(ctx, p.ID))
	assert.ErrorIs(t, s.DeleteByID(ctx, p.ID), perrors.ErrProductNotFound)
	_, err = s.UpdateQuantity(ctx, p.ID, 1, updated.Version)
	assert.ErrorIs(t, err, perrors.ErrProductNotFound)
	assert.NoError(t, s.Ping(ctx))
}
