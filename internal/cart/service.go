package cart

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/artisouq/artisouq/internal/catalog"
)

// ProductReader provides the product lookups the cart needs.
type ProductReader interface {
	ProductAvailability(ctx context.Context, productID uuid.UUID) (stock int, active bool, err error)
}

// Service provides cart business logic.
type Service struct {
	repo     Repository
	products ProductReader
	logger   *slog.Logger
}

// NewService creates a new service.
func NewService(repo Repository, products ProductReader, logger *slog.Logger) *Service {
	return &Service{repo: repo, products: products, logger: logger}
}

// Get returns the user's populated cart, creating one on first use.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (*View, error) {
	c, err := s.repo.EnsureCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, c.ID)
}

// Add puts quantity of a product into the cart, merging with any existing
// line for the same product.
func (s *Service) Add(ctx context.Context, userID, productID uuid.UUID, quantity int) (*View, error) {
	if productID == uuid.Nil {
		return nil, ErrProductRequired
	}
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	c, err := s.repo.EnsureCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	requested := quantity
	for _, item := range c.Items {
		if item.ProductID == productID {
			requested += item.Quantity
		}
	}
	if err := s.checkAvailability(ctx, productID, requested); err != nil {
		return nil, err
	}

	merged := false
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity += quantity
			merged = true
			break
		}
	}
	if !merged {
		c.Items = append(c.Items, Item{ProductID: productID, Quantity: quantity})
	}

	if err := s.repo.ReplaceItems(ctx, c.ID, c.Items); err != nil {
		return nil, err
	}
	return s.view(ctx, c.ID)
}

// UpdateQuantity sets the quantity of an existing line.
func (s *Service) UpdateQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) (*View, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	c, err := s.repo.EnsureCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	found := false
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity = quantity
			found = true
			break
		}
	}
	if !found {
		return nil, ErrItemNotInCart
	}
	if err := s.checkAvailability(ctx, productID, quantity); err != nil {
		return nil, err
	}

	if err := s.repo.ReplaceItems(ctx, c.ID, c.Items); err != nil {
		return nil, err
	}
	return s.view(ctx, c.ID)
}

// Remove drops a line from the cart.
func (s *Service) Remove(ctx context.Context, userID, productID uuid.UUID) (*View, error) {
	c, err := s.repo.EnsureCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	kept := c.Items[:0]
	found := false
	for _, item := range c.Items {
		if item.ProductID == productID {
			found = true
			continue
		}
		kept = append(kept, item)
	}
	if !found {
		return nil, ErrItemNotInCart
	}

	if err := s.repo.ReplaceItems(ctx, c.ID, kept); err != nil {
		return nil, err
	}
	return s.view(ctx, c.ID)
}

// Clear empties the cart. The cart row stays in place.
func (s *Service) Clear(ctx context.Context, userID uuid.UUID) error {
	c, err := s.repo.EnsureCart(ctx, userID)
	if err != nil {
		return err
	}
	return s.repo.ReplaceItems(ctx, c.ID, nil)
}

// Snapshot returns the populated lines for checkout. It fails on an empty
// cart; per-line availability is the checkout workflow's concern.
func (s *Service) Snapshot(ctx context.Context, userID uuid.UUID) ([]Line, error) {
	c, err := s.repo.EnsureCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	lines, err := s.repo.PopulatedLines(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	return lines, nil
}

func (s *Service) checkAvailability(ctx context.Context, productID uuid.UUID, quantity int) error {
	stock, active, err := s.products.ProductAvailability(ctx, productID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return ErrProductNotFound
		}
		return err
	}
	if !active {
		return ErrProductInactive
	}
	if stock < quantity {
		return ErrInsufficientStock
	}
	return nil
}

func (s *Service) view(ctx context.Context, cartID uuid.UUID) (*View, error) {
	lines, err := s.repo.PopulatedLines(ctx, cartID)
	if err != nil {
		return nil, err
	}
	total := 0.0
	for _, l := range lines {
		total += l.Price * float64(l.Quantity)
	}
	return &View{ID: cartID, Lines: lines, Total: total}, nil
}
