package catalog

import (
	"context"
	"log/slog"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	products map[uuid.UUID]*Product
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{products: make(map[uuid.UUID]*Product)}
}

func (r *memoryRepo) GetByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	p, ok := r.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (r *memoryRepo) List(ctx context.Context, req ListRequest) ([]Product, int, error) {
	var out []Product
	for _, p := range r.products {
		if req.ActiveOnly && !p.IsActive {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, len(out), nil
}

func (r *memoryRepo) Create(ctx context.Context, p *Product) error {
	clone := *p
	r.products[p.ID] = &clone
	return nil
}

func (r *memoryRepo) Update(ctx context.Context, p *Product) error {
	if _, ok := r.products[p.ID]; !ok {
		return ErrNotFound
	}
	clone := *p
	r.products[p.ID] = &clone
	return nil
}

func (r *memoryRepo) DecrementStock(ctx context.Context, productID uuid.UUID, quantity int) error {
	p, ok := r.products[productID]
	if !ok || p.Stock < quantity {
		return ErrInsufficientStock
	}
	p.Stock -= quantity
	return nil
}

func (r *memoryRepo) IncrementStock(ctx context.Context, adjustments []StockAdjustment) error {
	for _, adj := range adjustments {
		if p, ok := r.products[adj.ProductID]; ok {
			p.Stock += adj.Quantity
		}
	}
	return nil
}

func newTestService() (*Service, *memoryRepo) {
	repo := newMemoryRepo()
	return NewService(repo, slog.Default()), repo
}

func TestCreateDefaultsCurrencyAndActivates(t *testing.T) {
	svc, _ := newTestService()

	p, err := svc.Create(context.Background(), CreateRequest{Name: "Clay Mug", Price: 4.500, Stock: 10})
	require.NoError(t, err)
	require.Equal(t, "KWD", p.Currency)
	require.True(t, p.IsActive)
	require.NotEqual(t, uuid.Nil, p.ID)
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateRequest{Name: "  ", Price: 1})
	require.ErrorIs(t, err, ErrNameRequired)

	_, err = svc.Create(ctx, CreateRequest{Name: "Bowl", Price: -1})
	require.ErrorIs(t, err, ErrNegativePrice)

	_, err = svc.Create(ctx, CreateRequest{Name: "Bowl", Price: 1, Stock: -2})
	require.ErrorIs(t, err, ErrNegativeStock)
}

func TestReserveChecksActivityAndStock(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	p, err := svc.Create(ctx, CreateRequest{Name: "Vase", Price: 12, Stock: 3})
	require.NoError(t, err)

	require.NoError(t, svc.Reserve(ctx, p.ID, 2))
	require.Equal(t, 1, repo.products[p.ID].Stock)

	err = svc.Reserve(ctx, p.ID, 2)
	require.ErrorIs(t, err, ErrInsufficientStock)

	repo.products[p.ID].IsActive = false
	err = svc.Reserve(ctx, p.ID, 1)
	require.ErrorIs(t, err, ErrInactiveProduct)

	err = svc.Reserve(ctx, uuid.New(), 1)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRestoreIncrementsStockAndSkipsMissingProducts(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	p, err := svc.Create(ctx, CreateRequest{Name: "Plate", Price: 6, Stock: 1})
	require.NoError(t, err)

	svc.Restore(ctx, []StockAdjustment{
		{ProductID: p.ID, Quantity: 3},
		{ProductID: uuid.New(), Quantity: 5},
	})
	require.Equal(t, 4, repo.products[p.ID].Stock)
}

func TestUpdateAppliesPartialEdit(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	p, err := svc.Create(ctx, CreateRequest{Name: "Tray", Price: 8, Stock: 5})
	require.NoError(t, err)

	newPrice := 9.250
	inactive := false
	updated, err := svc.Update(ctx, p.ID, UpdateRequest{Price: &newPrice, IsActive: &inactive})
	require.NoError(t, err)
	require.InDelta(t, 9.250, updated.Price, 0.0001)
	require.False(t, updated.IsActive)
	require.Equal(t, "Tray", updated.Name)
}
