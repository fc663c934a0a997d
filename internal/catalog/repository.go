package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines the interface for product persistence.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Product, error)
	List(ctx context.Context, req ListRequest) ([]Product, int, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error

	// DecrementStock atomically reserves quantity for a checkout. It fails
	// with ErrInsufficientStock when less than quantity remains.
	DecrementStock(ctx context.Context, productID uuid.UUID, quantity int) error

	// IncrementStock gives quantities back after a cancellation. Products
	// that no longer exist are skipped silently, matching the lenient
	// restoration the storefront has always done.
	IncrementStock(ctx context.Context, adjustments []StockAdjustment) error
}

// repository implements Repository using pgxpool.
type repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const productColumns = `id, name, sku, description, price, currency, image_url, stock, is_active, created_at, updated_at`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(
		&p.ID, &p.Name, &p.SKU, &p.Description, &p.Price, &p.Currency,
		&p.ImageURL, &p.Stock, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("catalog: scan product: %w", err)
	}
	return &p, nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	return scanProduct(r.pool.QueryRow(ctx, query, id))
}

func (r *repository) List(ctx context.Context, req ListRequest) ([]Product, int, error) {
	where := ""
	if req.ActiveOnly {
		where = " WHERE is_active"
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("catalog: count products: %w", err)
	}

	query := `SELECT ` + productColumns + ` FROM products` + where +
		` ORDER BY ` + sortClause(req.SortBy) + ` LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, query, req.Limit, req.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("catalog: list products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(
			&p.ID, &p.Name, &p.SKU, &p.Description, &p.Price, &p.Currency,
			&p.ImageURL, &p.Stock, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("catalog: scan product row: %w", err)
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

// sortClause maps the storefront sort keys onto ORDER BY clauses.
func sortClause(sortBy string) string {
	switch sortBy {
	case "price-asc":
		return "price ASC"
	case "price-desc":
		return "price DESC"
	case "name-asc":
		return "name ASC"
	case "name-desc":
		return "name DESC"
	case "oldest":
		return "created_at ASC"
	default:
		return "created_at DESC"
	}
}

func (r *repository) Create(ctx context.Context, p *Product) error {
	query := `
		INSERT INTO products (id, name, sku, description, price, currency, image_url, stock, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		RETURNING created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		p.ID, p.Name, p.SKU, p.Description, p.Price, p.Currency, p.ImageURL, p.Stock, p.IsActive,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateSKU
		}
		return fmt.Errorf("catalog: insert product: %w", err)
	}
	return nil
}

func (r *repository) Update(ctx context.Context, p *Product) error {
	query := `
		UPDATE products
		SET name = $2, sku = $3, description = $4, price = $5, currency = $6,
		    image_url = $7, stock = $8, is_active = $9, updated_at = now()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		p.ID, p.Name, p.SKU, p.Description, p.Price, p.Currency, p.ImageURL, p.Stock, p.IsActive,
	)
	if err != nil {
		return fmt.Errorf("catalog: update product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) DecrementStock(ctx context.Context, productID uuid.UUID, quantity int) error {
	query := `
		UPDATE products
		SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2
	`
	tag, err := r.pool.Exec(ctx, query, productID, quantity)
	if err != nil {
		return fmt.Errorf("catalog: decrement stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either missing or short on stock; the caller already resolved the
		// product, so report the stock condition.
		return ErrInsufficientStock
	}
	return nil
}

func (r *repository) IncrementStock(ctx context.Context, adjustments []StockAdjustment) error {
	if len(adjustments) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, adj := range adjustments {
		batch.Queue(
			`UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1`,
			adj.ProductID, adj.Quantity,
		)
	}
	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range adjustments {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("catalog: increment stock: %w", err)
		}
	}
	return nil
}
