package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// Service provides business logic for the product catalog.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a new service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// CreateRequest carries fields for a new product.
type CreateRequest struct {
	Name        string  `json:"name" validate:"required,max=100"`
	SKU         string  `json:"sku" validate:"omitempty,max=64"`
	Description string  `json:"description"`
	Price       float64 `json:"price" validate:"gte=0"`
	Currency    string  `json:"currency" validate:"omitempty,len=3"`
	ImageURL    string  `json:"image"`
	Stock       int     `json:"stock" validate:"gte=0"`
}

// Create adds a product to the catalog.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Product, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, ErrNameRequired
	}
	if req.Price < 0 {
		return nil, ErrNegativePrice
	}
	if req.Stock < 0 {
		return nil, ErrNegativeStock
	}

	currency := req.Currency
	if currency == "" {
		currency = DefaultCurrency
	}

	product := &Product{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(req.Name),
		SKU:         req.SKU,
		Description: req.Description,
		Price:       req.Price,
		Currency:    currency,
		ImageURL:    req.ImageURL,
		Stock:       req.Stock,
		IsActive:    true,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// UpdateRequest carries optional fields for a product edit.
type UpdateRequest struct {
	Name        *string  `json:"name" validate:"omitempty,max=100"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price" validate:"omitempty,gte=0"`
	ImageURL    *string  `json:"image"`
	Stock       *int     `json:"stock" validate:"omitempty,gte=0"`
	IsActive    *bool    `json:"isActive"`
}

// Update applies a partial edit to an existing product.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, ErrNameRequired
		}
		product.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Price != nil {
		if *req.Price < 0 {
			return nil, ErrNegativePrice
		}
		product.Price = *req.Price
	}
	if req.ImageURL != nil {
		product.ImageURL = *req.ImageURL
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return nil, ErrNegativeStock
		}
		product.Stock = *req.Stock
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}

	if err := s.repo.Update(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// Get returns one product.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Product, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns a page of products plus the total count.
func (s *Service) List(ctx context.Context, req ListRequest) ([]Product, int, error) {
	if req.Limit <= 0 {
		req.Limit = 12
	}
	return s.repo.List(ctx, req)
}

// ProductAvailability reports current stock and active state for one
// product. Used by the cart to validate additions.
func (s *Service) ProductAvailability(ctx context.Context, productID uuid.UUID) (int, bool, error) {
	product, err := s.repo.GetByID(ctx, productID)
	if err != nil {
		return 0, false, err
	}
	return product.Stock, product.IsActive, nil
}

// Reserve takes quantity out of a product's stock for a checkout. The
// product must exist, be active, and hold enough stock.
func (s *Service) Reserve(ctx context.Context, productID uuid.UUID, quantity int) error {
	product, err := s.repo.GetByID(ctx, productID)
	if err != nil {
		return err
	}
	if !product.IsActive {
		return fmt.Errorf("%w: %s", ErrInactiveProduct, product.Name)
	}
	if product.Stock < quantity {
		return fmt.Errorf("%w: %s", ErrInsufficientStock, product.Name)
	}
	return s.repo.DecrementStock(ctx, productID, quantity)
}

// Restore gives cancelled quantities back to their products. Failures are
// logged and swallowed: restoration is a best-effort compensation and never
// rolls back the cancellation that triggered it.
func (s *Service) Restore(ctx context.Context, adjustments []StockAdjustment) {
	if err := s.repo.IncrementStock(ctx, adjustments); err != nil {
		s.logger.Error("restore stock", slog.Int("products", len(adjustments)), slog.Any("error", err))
	}
}
