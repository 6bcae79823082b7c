// Package service provides the implementation of product-related business logic.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	perrors "github.com/abgdnv/petcatalog/internal/errors"
	"github.com/abgdnv/petcatalog/internal/events"
	"github.com/abgdnv/petcatalog/internal/store"
	"github.com/abgdnv/petcatalog/internal/store/db"
	"github.com/abgdnv/petcatalog/pkg/messaging"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/abgdnv/petcatalog/internal/service"

	// DefaultMaxRetries bounds how often a write is retried after losing a version race.
	DefaultMaxRetries = 5
)

// maxPrice is the first value that no longer fits NUMERIC(12,2).
var maxPrice = decimal.New(1, 10)

// ProductService defines the methods for managing products.
// It abstracts the underlying business logic and data access.
type ProductService interface {
	// FindByID retrieves a single product by its unique identifier.
	// Returns ErrProductNotFound if no product exists with the given ID.
	FindByID(ctx context.Context, id int64) (*ProductDto, error)

	// FindAll returns products matching the filter.
	// Returns an empty slice if no products exist.
	FindAll(ctx context.Context, filter store.ListFilter) ([]ProductDto, error)

	// Create adds a new product to the system.
	// Returns ErrInvalidArgument for bad fields and ErrDuplicateName if the name is taken.
	Create(ctx context.Context, product ProductCreateDto) (*ProductDto, error)

	// Update changes only the supplied fields of a product.
	// Returns ErrProductNotFound, ErrInvalidArgument or ErrDuplicateName.
	Update(ctx context.Context, id int64, product ProductUpdateDto) (*ProductDto, error)

	// Delete removes a product permanently.
	// Returns ErrProductNotFound if no product exists with the given ID.
	Delete(ctx context.Context, id int64) error

	// Sell decrements stock by quantity and returns the product with the remaining stock.
	// Returns ErrInvalidArgument, ErrProductNotFound, ErrProductInactive or ErrInsufficientStock.
	Sell(ctx context.Context, id int64, quantity int32) (*ProductDto, error)

	// Ping reports whether the product store is reachable.
	Ping(ctx context.Context) error
}

// Service implements ProductService and provides methods to manage products.
type Service struct {
	repository store.ProductStore
	publisher  messaging.Publisher
	logger     *slog.Logger
	maxRetries int
	tracer     trace.Tracer
	unitsSold  metric.Int64Counter
	now        func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithMaxRetries sets how many extra attempts Sell and Update make after a version conflict.
func WithMaxRetries(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

// WithMeter records service metrics on meter instead of the global meter provider.
func WithMeter(meter metric.Meter) Option {
	return func(s *Service) {
		s.unitsSold = newUnitsSoldCounter(meter, s.logger)
	}
}

// NewService creates a new instance of ProductService with the provided repository.
// A nil publisher disables sale events.
func NewService(repo store.ProductStore, publisher messaging.Publisher, logger *slog.Logger, opts ...Option) *Service {
	if publisher == nil {
		publisher = messaging.NoopPublisher{}
	}
	s := &Service{
		repository: repo,
		publisher:  publisher,
		logger:     logger.With("component", "service"),
		maxRetries: DefaultMaxRetries,
		tracer:     otel.Tracer(instrumentationName),
		now:        time.Now,
	}
	s.unitsSold = newUnitsSoldCounter(otel.Meter(instrumentationName), s.logger)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newUnitsSoldCounter(meter metric.Meter, logger *slog.Logger) metric.Int64Counter {
	counter, err := meter.Int64Counter("catalog_units_sold",
		metric.WithDescription("Number of product units sold"),
		metric.WithUnit("{unit}"))
	if err != nil {
		logger.Warn("failed to create units sold counter, falling back to noop", "error", err)
		counter, _ = noop.NewMeterProvider().Meter(instrumentationName).Int64Counter("catalog_units_sold")
	}
	return counter
}

// ProductCreateDto represents the data transfer object for creating a new product.
// Omitted quantity defaults to 0 and omitted active defaults to true.
type ProductCreateDto struct {
	Name        string           `json:"name"        validate:"required,max=255"`
	Description string           `json:"description" validate:"max=2000"`
	Quantity    *int32           `json:"quantity"    validate:"omitempty,min=0"`
	Price       *decimal.Decimal `json:"price"       validate:"required"`
	Active      *bool            `json:"active"`
}

// ProductUpdateDto represents a partial update. Nil fields are left unchanged.
type ProductUpdateDto struct {
	Name        *string          `json:"name"        validate:"omitempty,min=1,max=255"`
	Description *string          `json:"description" validate:"omitempty,max=2000"`
	Quantity    *int32           `json:"quantity"    validate:"omitempty,min=0"`
	Price       *decimal.Decimal `json:"price"`
	Active      *bool            `json:"active"`
}

// SellDto carries the number of units requested by a sale.
type SellDto struct {
	Quantity int32 `json:"quantity"`
}

// ProductDto represents the data transfer object for a product.
// Version is read-only and changes on every write.
type ProductDto struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Quantity    int32           `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Active      bool            `json:"active"`
	Version     int32           `json:"version"`
}

// MarshalJSON writes the price with exactly two fraction digits.
func (d ProductDto) MarshalJSON() ([]byte, error) {
	type plain ProductDto
	return json.Marshal(struct {
		plain
		Price string `json:"price"`
	}{plain: plain(d), Price: d.Price.StringFixed(2)})
}

func (s *Service) FindByID(ctx context.Context, id int64) (*ProductDto, error) {
	product, err := s.repository.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch product by ID %d: %w", id, err)
	}
	return toDto(product), nil
}

func (s *Service) FindAll(ctx context.Context, filter store.ListFilter) ([]ProductDto, error) {
	products, err := s.repository.FindAll(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch products: %w", err)
	}
	productDTOs := make([]ProductDto, len(products))
	for i, item := range products {
		productDTOs[i] = *toDto(&item)
	}
	return productDTOs, nil
}

func (s *Service) Create(ctx context.Context, product ProductCreateDto) (*ProductDto, error) {
	name := strings.TrimSpace(product.Name)
	if name == "" {
		return nil, invalid("name must not be blank")
	}
	if err := validatePrice(product.Price); err != nil {
		return nil, err
	}
	params := db.CreateParams{
		Name:        name,
		Description: product.Description,
		Price:       *product.Price,
		Active:      true,
	}
	if product.Quantity != nil {
		if *product.Quantity < 0 {
			return nil, invalid("quantity must not be negative")
		}
		params.Quantity = *product.Quantity
	}
	if product.Active != nil {
		params.Active = *product.Active
	}

	if err := s.ensureNameFree(ctx, name, 0); err != nil {
		return nil, err
	}
	created, err := s.repository.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return toDto(created), nil
}

func (s *Service) Update(ctx context.Context, id int64, product ProductUpdateDto) (*ProductDto, error) {
	fields, err := product.toFields()
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		current, err := s.repository.FindByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch product %d for update: %w", id, err)
		}
		if fields.Name != nil && *fields.Name != current.Name {
			if err := s.ensureNameFree(ctx, *fields.Name, id); err != nil {
				return nil, err
			}
		}
		updated, err := s.repository.Update(ctx, id, fields, current.Version)
		if errors.Is(err, perrors.ErrOptimisticLock) {
			s.logger.DebugContext(ctx, "Version conflict on update, retrying", "ID", id, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to update product with ID %d: %w", id, err)
		}
		return toDto(updated), nil
	}
	return nil, fmt.Errorf("failed to update product with ID %d after %d attempts: %w",
		id, s.maxRetries+1, perrors.ErrConcurrentModification)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repository.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("failed to delete product with ID %d: %w", id, err)
	}
	return nil
}

// Sell runs an optimistic read-check-write cycle. Each attempt re-reads the product and
// re-checks the stock, and the write only lands if nobody changed the row in between.
func (s *Service) Sell(ctx context.Context, id int64, quantity int32) (*ProductDto, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.Sell", trace.WithAttributes(
		attribute.Int64("product.id", id),
		attribute.Int("sell.quantity", int(quantity)),
	))
	defer span.End()

	product, attempts, err := s.sell(ctx, id, quantity)
	span.SetAttributes(attribute.Int("sell.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sell failed")
		return nil, err
	}

	s.unitsSold.Add(ctx, int64(quantity))
	s.publishSold(ctx, product, quantity)
	return toDto(product), nil
}

func (s *Service) sell(ctx context.Context, id int64, quantity int32) (*db.Product, int, error) {
	if quantity <= 0 {
		return nil, 0, invalid(fmt.Sprintf("sell quantity must be positive, got %d", quantity))
	}
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		current, err := s.repository.FindByID(ctx, id)
		if err != nil {
			return nil, attempt + 1, fmt.Errorf("failed to fetch product %d for sale: %w", id, err)
		}
		if !current.Active {
			return nil, attempt + 1, fmt.Errorf("product %d: %w", id, perrors.ErrProductInactive)
		}
		if quantity > current.Quantity {
			return nil, attempt + 1, fmt.Errorf("product %d has only %d left: %w", id, current.Quantity, perrors.ErrInsufficientStock)
		}
		updated, err := s.repository.UpdateQuantity(ctx, id, current.Quantity-quantity, current.Version)
		if errors.Is(err, perrors.ErrOptimisticLock) {
			s.logger.DebugContext(ctx, "Version conflict on sell, retrying", "ID", id, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, attempt + 1, fmt.Errorf("failed to sell product %d: %w", id, err)
		}
		return updated, attempt + 1, nil
	}
	return nil, s.maxRetries + 1, fmt.Errorf("failed to sell product %d after %d attempts: %w",
		id, s.maxRetries+1, perrors.ErrConcurrentModification)
}

// publishSold emits a sale event. Stock is already committed, so failures are only logged.
func (s *Service) publishSold(ctx context.Context, product *db.Product, quantity int32) {
	event := events.ProductSoldEvent{
		ProductID: product.ID,
		Quantity:  quantity,
		Remaining: product.Quantity,
		SoldAt:    s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish product sold event", "ID", product.ID, "error", err)
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.repository.Ping(ctx)
}

// ensureNameFree fails with ErrDuplicateName when a product other than selfID uses name.
func (s *Service) ensureNameFree(ctx context.Context, name string, selfID int64) error {
	existing, err := s.repository.FindByName(ctx, name)
	if err != nil {
		if errors.Is(err, perrors.ErrProductNotFound) {
			return nil
		}
		return fmt.Errorf("failed to check product name: %w", err)
	}
	if existing.ID != selfID {
		return fmt.Errorf("name %q: %w", name, perrors.ErrDuplicateName)
	}
	return nil
}

func (d ProductUpdateDto) toFields() (store.UpdateFields, error) {
	fields := store.UpdateFields{
		Description: d.Description,
		Active:      d.Active,
	}
	if d.Name != nil {
		name := strings.TrimSpace(*d.Name)
		if name == "" {
			return fields, invalid("name must not be blank")
		}
		fields.Name = &name
	}
	if d.Quantity != nil {
		if *d.Quantity < 0 {
			return fields, invalid("quantity must not be negative")
		}
		fields.Quantity = d.Quantity
	}
	if d.Price != nil {
		if err := validatePrice(d.Price); err != nil {
			return fields, err
		}
		fields.Price = d.Price
	}
	return fields, nil
}

func validatePrice(price *decimal.Decimal) error {
	switch {
	case price == nil:
		return invalid("price is required")
	case price.IsNegative():
		return invalid("price must not be negative")
	case !price.Equal(price.Truncate(2)):
		return invalid("price must have at most two fraction digits")
	case price.GreaterThanOrEqual(maxPrice):
		return invalid("price is too large")
	}
	return nil
}

// InvalidArgumentError describes which input was rejected.
type InvalidArgumentError struct {
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return "invalid argument: " + e.Reason
}

func (e *InvalidArgumentError) Unwrap() error {
	return perrors.ErrInvalidArgument
}

func invalid(reason string) error {
	return &InvalidArgumentError{Reason: reason}
}

// toDto converts a db.Product to a ProductDto.
func toDto(product *db.Product) *ProductDto {
	return &ProductDto{
		ID:          product.ID,
		Name:        product.Name,
		Description: product.Description,
		Quantity:    product.Quantity,
		Price:       product.Price,
		Active:      product.Active,
		Version:     product.Version,
	}
}
