package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines the interface for cart persistence.
type Repository interface {
	// EnsureCart returns the user's cart, creating an empty one on first use.
	EnsureCart(ctx context.Context, userID uuid.UUID) (*Cart, error)

	// ReplaceItems overwrites the cart's item set in one transaction.
	ReplaceItems(ctx context.Context, cartID uuid.UUID, items []Item) error

	// PopulatedLines joins cart items with live product data.
	PopulatedLines(ctx context.Context, cartID uuid.UUID) ([]Line, error)
}

// repository implements Repository using pgxpool.
type repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) EnsureCart(ctx context.Context, userID uuid.UUID) (*Cart, error) {
	query := `
		INSERT INTO carts (id, user_id, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id, user_id, updated_at
	`
	var c Cart
	if err := r.pool.QueryRow(ctx, query, uuid.New(), userID).Scan(&c.ID, &c.UserID, &c.UpdatedAt); err != nil {
		return nil, fmt.Errorf("cart: ensure cart: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT product_id, quantity FROM cart_items WHERE cart_id = $1 ORDER BY added_at`, c.ID)
	if err != nil {
		return nil, fmt.Errorf("cart: load items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ProductID, &item.Quantity); err != nil {
			return nil, fmt.Errorf("cart: scan item: %w", err)
		}
		c.Items = append(c.Items, item)
	}
	return &c, rows.Err()
}

func (r *repository) ReplaceItems(ctx context.Context, cartID uuid.UUID, items []Item) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("cart: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("cart: clear items: %w", err)
	}
	for _, item := range items {
		_, err := tx.Exec(ctx,
			`INSERT INTO cart_items (cart_id, product_id, quantity, added_at) VALUES ($1, $2, $3, now())`,
			cartID, item.ProductID, item.Quantity)
		if err != nil {
			return fmt.Errorf("cart: insert item: %w", err)
		}
	}
	if _, err := tx.Exec(ctx, `UPDATE carts SET updated_at = now() WHERE id = $1`, cartID); err != nil {
		return fmt.Errorf("cart: touch cart: %w", err)
	}
	return tx.Commit(ctx)
}

func (r *repository) PopulatedLines(ctx context.Context, cartID uuid.UUID) ([]Line, error) {
	query := `
		SELECT ci.product_id, p.name, p.price, p.image_url, p.stock, p.is_active, ci.quantity
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.added_at
	`
	rows, err := r.pool.Query(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("cart: populate lines: %w", err)
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ProductID, &l.Name, &l.Price, &l.ImageURL, &l.Stock, &l.IsActive, &l.Quantity); err != nil {
			return nil, fmt.Errorf("cart: scan line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}
