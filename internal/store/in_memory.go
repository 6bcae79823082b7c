package store

import (
	"context"
	"slices"
	"sync"
	"time"

	perrors "github.com/abgdnv/petcatalog/internal/errors"
	"github.com/abgdnv/petcatalog/internal/store/db"
)

// InMemoryStore implements ProductStore using an in-memory map.
type InMemoryStore struct {
	mu       sync.RWMutex
	products map[int64]db.Product
	nextID   int64
	now      func() time.Time
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		products: make(map[int64]db.Product),
		nextID:   1,
		now:      time.Now,
	}
}

func (s *InMemoryStore) FindByID(_ context.Context, id int64) (*db.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, perrors.ErrProductNotFound
	}
	return &p, nil
}

func (s *InMemoryStore) FindByName(_ context.Context, name string) (*db.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.products {
		if p.Name == name {
			return &p, nil
		}
	}
	return nil, perrors.ErrProductNotFound
}

func (s *InMemoryStore) FindAll(_ context.Context, filter ListFilter) ([]db.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]db.Product, 0, len(s.products))
	for _, p := range s.products {
		if filter.Active != nil && p.Active != *filter.Active {
			continue
		}
		if filter.InStock && p.Quantity <= 0 {
			continue
		}
		list = append(list, p)
	}
	slices.SortFunc(list, func(a, b db.Product) int {
		return int(a.ID - b.ID)
	})

	offset := int(max(filter.Offset, 0))
	if offset >= len(list) {
		return []db.Product{}, nil
	}
	list = list[offset:]
	if filter.Limit > 0 && int(filter.Limit) < len(list) {
		list = list[:filter.Limit]
	}
	return list, nil
}

func (s *InMemoryStore) Create(_ context.Context, params db.CreateParams) (*db.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nameTaken(params.Name, 0) {
		return nil, perrors.ErrDuplicateName
	}
	now := s.now()
	p := db.Product{
		ID:          s.nextID,
		Name:        params.Name,
		Description: params.Description,
		Quantity:    params.Quantity,
		Price:       params.Price,
		Active:      params.Active,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.nextID++
	s.products[p.ID] = p
	return &p, nil
}

func (s *InMemoryStore) Update(_ context.Context, id int64, fields UpdateFields, version int32) (*db.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.current(id, version)
	if err != nil {
		return nil, err
	}
	if fields.Name != nil {
		if s.nameTaken(*fields.Name, id) {
			return nil, perrors.ErrDuplicateName
		}
		p.Name = *fields.Name
	}
	if fields.Description != nil {
		p.Description = *fields.Description
	}
	if fields.Quantity != nil {
		p.Quantity = *fields.Quantity
	}
	if fields.Price != nil {
		p.Price = *fields.Price
	}
	if fields.Active != nil {
		p.Active = *fields.Active
	}
	return s.save(p), nil
}

func (s *InMemoryStore) UpdateQuantity(_ context.Context, id int64, quantity int32, version int32) (*db.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.current(id, version)
	if err != nil {
		return nil, err
	}
	p.Quantity = quantity
	return s.save(p), nil
}

func (s *InMemoryStore) DeleteByID(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[id]; !exists {
		return perrors.ErrProductNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *InMemoryStore) Ping(context.Context) error {
	return nil
}

// current returns the stored row when its version matches. Callers hold s.mu.
func (s *InMemoryStore) current(id int64, version int32) (db.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return db.Product{}, perrors.ErrProductNotFound
	}
	if p.Version != version {
		return db.Product{}, perrors.ErrOptimisticLock
	}
	return p, nil
}

// save bumps the version and stores p. Callers hold s.mu.
func (s *InMemoryStore) save(p db.Product) *db.Product {
	p.Version++
	p.UpdatedAt = s.now()
	s.products[p.ID] = p
	return &p
}

func (s *InMemoryStore) nameTaken(name string, exceptID int64) bool {
	for id, p := range s.products {
		if id != exceptID && p.Name == name {
			return true
		}
	}
	return false
}
