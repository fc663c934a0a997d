package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/artisouq/artisouq/internal/platform/db"
)

// ListRequest filters the admin order listing.
type ListRequest struct {
	Status Status
	UserID *uuid.UUID
	Limit  int
	Offset int
}

// TrackingView is the public tracking projection: order progress plus the
// assigned courier, if any.
type TrackingView struct {
	OrderNumber   string            `json:"orderNumber"`
	Status        Status            `json:"orderStatus"`
	StatusHistory []HistoryEntry    `json:"statusHistory"`
	DeliveryLoc   *DeliveryLocation `json:"deliveryLocation,omitempty"`
	City          string            `json:"city,omitempty"`
	Destination   *GeoPoint         `json:"destination,omitempty"`
	EstimatedAt   *time.Time        `json:"estimatedDelivery,omitempty"`
	PilotName     string            `json:"pilotName,omitempty"`
	PilotPhone    string            `json:"pilotPhone,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// Repository is the persistence port for orders.
type Repository interface {
	NextOrderNumber(ctx context.Context) (int64, error)
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	GetByNumber(ctx context.Context, orderNumber string) (*Order, error)
	List(ctx context.Context, req ListRequest) ([]Order, int, error)
	SaveStatus(ctx context.Context, o *Order, entry HistoryEntry) error
	SetPilot(ctx context.Context, orderID, pilotID uuid.UUID) error
	UpdateDeliveryLocation(ctx context.Context, orderID uuid.UUID, lat, lng float64, at time.Time) error
	UpdatePaymentStatus(ctx context.Context, orderID uuid.UUID, status PaymentStatus) error
	Tracking(ctx context.Context, orderNumber string) (*TrackingView, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a Postgres-backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) NextOrderNumber(ctx context.Context) (int64, error) {
	var seq int64
	err := r.pool.QueryRow(ctx, `SELECT nextval('order_number_seq')`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next order number: %w", err)
	}
	return seq, nil
}

func (r *repository) Create(ctx context.Context, o *Order) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO orders (
				id, order_number, user_id,
				street, city, state, country, zip_code, phone, lat, lng,
				payment_method, payment_status, status,
				subtotal, shipping_cost, discount, total, currency, notes,
				created_at, updated_at
			) VALUES (
				$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,
				$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$21
			)`,
			o.ID, o.OrderNumber, o.UserID,
			o.ShippingAddress.Street, o.ShippingAddress.City, o.ShippingAddress.State,
			o.ShippingAddress.Country, o.ShippingAddress.ZipCode, o.ShippingAddress.Phone,
			coordLat(o.ShippingAddress.Coordinates), coordLng(o.ShippingAddress.Coordinates),
			o.PaymentMethod, o.PaymentStatus, o.Status,
			o.Subtotal, o.ShippingCost, o.Discount, o.Total, o.Currency, o.Notes,
			o.CreatedAt,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return fmt.Errorf("%s: %w", o.OrderNumber, ErrDuplicateNumber)
			}
			return fmt.Errorf("insert order: %w", err)
		}
		for _, it := range o.Items {
			_, err = tx.Exec(ctx, `
				INSERT INTO order_items (order_id, product_id, name, image_url, price, quantity)
				VALUES ($1,$2,$3,$4,$5,$6)`,
				o.ID, it.ProductID, it.Name, it.ImageURL, it.Price, it.Quantity,
			)
			if err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
		}
		for _, h := range o.StatusHistory {
			if err := insertHistory(ctx, tx, o.ID, h); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertHistory(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, h HistoryEntry) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO order_status_history (order_id, status, note, actor_id, created_at)
		VALUES ($1,$2,$3,$4,$5)`,
		orderID, h.Status, h.Note, h.ActorID, h.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}
	return nil
}

const orderColumns = `
	id, order_number, user_id,
	street, city, state, country, zip_code, phone, lat, lng,
	payment_method, payment_status, status,
	delivery_pilot_id, delivery_lat, delivery_lng, delivery_updated_at,
	subtotal, shipping_cost, discount, total, currency, notes,
	delivered_at, cancelled_at, created_at, updated_at`

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *repository) GetByNumber(ctx context.Context, orderNumber string) (*Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_number = $1`, orderNumber)
}

func (r *repository) getOne(ctx context.Context, query string, arg any) (*Order, error) {
	row := r.pool.QueryRow(ctx, query, arg)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.loadItems(ctx, o) })
	g.Go(func() error { return r.loadHistory(ctx, o) })
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return o, nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o                        Order
		lat, lng                 *float64
		dLat, dLng               *float64
		dAt                      *time.Time
	)
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID,
		&o.ShippingAddress.Street, &o.ShippingAddress.City, &o.ShippingAddress.State,
		&o.ShippingAddress.Country, &o.ShippingAddress.ZipCode, &o.ShippingAddress.Phone,
		&lat, &lng,
		&o.PaymentMethod, &o.PaymentStatus, &o.Status,
		&o.DeliveryPilotID, &dLat, &dLng, &dAt,
		&o.Subtotal, &o.ShippingCost, &o.Discount, &o.Total, &o.Currency, &o.Notes,
		&o.DeliveredAt, &o.CancelledAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lat != nil && lng != nil {
		o.ShippingAddress.Coordinates = &GeoPoint{Lat: *lat, Lng: *lng}
	}
	if dLat != nil && dLng != nil && dAt != nil {
		o.DeliveryLoc = &DeliveryLocation{Lat: *dLat, Lng: *dLng, UpdatedAt: *dAt}
	}
	return &o, nil
}

func (r *repository) loadItems(ctx context.Context, o *Order) error {
	rows, err := r.pool.Query(ctx, `
		SELECT product_id, name, image_url, price, quantity
		FROM order_items WHERE order_id = $1 ORDER BY id`, o.ID)
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.Name, &it.ImageURL, &it.Price, &it.Quantity); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		o.Items = append(o.Items, it)
	}
	return rows.Err()
}

func (r *repository) loadHistory(ctx context.Context, o *Order) error {
	rows, err := r.pool.Query(ctx, `
		SELECT status, note, actor_id, created_at
		FROM order_status_history WHERE order_id = $1 ORDER BY created_at, id`, o.ID)
	if err != nil {
		return fmt.Errorf("load status history: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var h HistoryEntry
		if err := rows.Scan(&h.Status, &h.Note, &h.ActorID, &h.Timestamp); err != nil {
			return fmt.Errorf("scan status history: %w", err)
		}
		o.StatusHistory = append(o.StatusHistory, h)
	}
	return rows.Err()
}

func (r *repository) List(ctx context.Context, req ListRequest) ([]Order, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if req.Status != "" {
		args = append(args, req.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if req.UserID != nil {
		args = append(args, *req.UserID)
		where += fmt.Sprintf(" AND user_id = $%d", len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	args = append(args, req.Limit, req.Offset)
	query := `SELECT ` + orderColumns + ` FROM orders` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for i := range out {
		if err := r.loadItems(ctx, &out[i]); err != nil {
			return nil, 0, err
		}
		if err := r.loadHistory(ctx, &out[i]); err != nil {
			return nil, 0, err
		}
	}
	return out, total, nil
}

func (r *repository) SaveStatus(ctx context.Context, o *Order, entry HistoryEntry) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE orders SET
				status = $2, payment_status = $3,
				delivered_at = $4, cancelled_at = $5,
				updated_at = $6
			WHERE id = $1`,
			o.ID, o.Status, o.PaymentStatus, o.DeliveredAt, o.CancelledAt, entry.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return insertHistory(ctx, tx, o.ID, entry)
	})
}

func (r *repository) SetPilot(ctx context.Context, orderID, pilotID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET delivery_pilot_id = $2, updated_at = now() WHERE id = $1`,
		orderID, pilotID,
	)
	if err != nil {
		return fmt.Errorf("set order pilot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) UpdateDeliveryLocation(ctx context.Context, orderID uuid.UUID, lat, lng float64, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET delivery_lat = $2, delivery_lng = $3, delivery_updated_at = $4, updated_at = $4
		WHERE id = $1`,
		orderID, lat, lng, at,
	)
	if err != nil {
		return fmt.Errorf("update delivery location: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) UpdatePaymentStatus(ctx context.Context, orderID uuid.UUID, status PaymentStatus) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET payment_status = $2, updated_at = now() WHERE id = $1`,
		orderID, status,
	)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Tracking(ctx context.Context, orderNumber string) (*TrackingView, error) {
	o, err := r.GetByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	view := &TrackingView{
		OrderNumber:   o.OrderNumber,
		Status:        o.Status,
		StatusHistory: o.StatusHistory,
		DeliveryLoc:   o.DeliveryLoc,
		City:          o.ShippingAddress.City,
		Destination:   o.ShippingAddress.Coordinates,
		CreatedAt:     o.CreatedAt,
	}
	if o.DeliveryPilotID != nil {
		err := r.pool.QueryRow(ctx, `
			SELECT name, phone FROM delivery_pilots WHERE id = $1`, *o.DeliveryPilotID,
		).Scan(&view.PilotName, &view.PilotPhone)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("load tracking pilot: %w", err)
		}
	}
	return view, nil
}

func coordLat(p *GeoPoint) *float64 {
	if p == nil {
		return nil
	}
	return &p.Lat
}

func coordLng(p *GeoPoint) *float64 {
	if p == nil {
		return nil
	}
	return &p.Lng
}
