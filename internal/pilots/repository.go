package pilots

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReconcileResult summarizes a stats reconciliation run.
type ReconcileResult struct {
	StatsFixed int64
	FlagsFixed int64
}

// Repository is the persistence port for pilots.
type Repository interface {
	Create(ctx context.Context, p *DeliveryPilot) error
	Update(ctx context.Context, p *DeliveryPilot) error
	GetByID(ctx context.Context, id uuid.UUID) (*DeliveryPilot, error)
	List(ctx context.Context, limit, offset int) ([]DeliveryPilot, int, error)
	ListAvailable(ctx context.Context) ([]DeliveryPilot, error)
	StartDelivery(ctx context.Context, pilotID, orderID uuid.UUID) error
	CompleteDelivery(ctx context.Context, pilotID uuid.UUID) error
	UpdateLocation(ctx context.Context, pilotID uuid.UUID, lat, lng float64, at time.Time) error
	ReconcileStats(ctx context.Context) (ReconcileResult, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a Postgres-backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const pilotColumns = `
	id, name, phone, email, vehicle_type, vehicle_number,
	is_active, is_on_delivery, current_order_id,
	lat, lng, location_updated_at,
	total_deliveries, completed_deliveries, rating, created_at, updated_at`

func (r *repository) Create(ctx context.Context, p *DeliveryPilot) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO delivery_pilots (
			id, name, phone, email, vehicle_type, vehicle_number,
			is_active, is_on_delivery, total_deliveries, completed_deliveries, rating, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,FALSE,0,0,$8,$9,$9)`,
		p.ID, p.Name, p.Phone, p.Email, p.VehicleType, p.VehicleNumber,
		p.IsActive, p.Rating, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert pilot: %w", err)
	}
	return nil
}

func (r *repository) Update(ctx context.Context, p *DeliveryPilot) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE delivery_pilots SET
			name = $2, phone = $3, email = $4,
			vehicle_type = $5, vehicle_number = $6,
			is_active = $7, updated_at = now()
		WHERE id = $1`,
		p.ID, p.Name, p.Phone, p.Email, p.VehicleType, p.VehicleNumber, p.IsActive,
	)
	if err != nil {
		return fmt.Errorf("update pilot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*DeliveryPilot, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+pilotColumns+` FROM delivery_pilots WHERE id = $1`, id)
	p, err := scanPilot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get pilot: %w", err)
	}
	return p, nil
}

func scanPilot(row pgx.Row) (*DeliveryPilot, error) {
	var (
		p        DeliveryPilot
		lat, lng *float64
		at       *time.Time
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.Phone, &p.Email, &p.VehicleType, &p.VehicleNumber,
		&p.IsActive, &p.IsOnDelivery, &p.CurrentOrderID,
		&lat, &lng, &at,
		&p.TotalDeliveries, &p.CompletedDeliveries, &p.Rating, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lat != nil && lng != nil && at != nil {
		p.CurrentLocation = &Location{Lat: *lat, Lng: *lng, UpdatedAt: *at}
	}
	return &p, nil
}

func (r *repository) List(ctx context.Context, limit, offset int) ([]DeliveryPilot, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM delivery_pilots`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count pilots: %w", err)
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+pilotColumns+` FROM delivery_pilots
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list pilots: %w", err)
	}
	defer rows.Close()
	out, err := collectPilots(rows)
	return out, total, err
}

func (r *repository) ListAvailable(ctx context.Context) ([]DeliveryPilot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+pilotColumns+` FROM delivery_pilots
		WHERE is_active AND NOT is_on_delivery
		ORDER BY total_deliveries ASC, name`)
	if err != nil {
		return nil, fmt.Errorf("list available pilots: %w", err)
	}
	defer rows.Close()
	return collectPilots(rows)
}

func collectPilots(rows pgx.Rows) ([]DeliveryPilot, error) {
	var out []DeliveryPilot
	for rows.Next() {
		p, err := scanPilot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pilot: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// StartDelivery flips the pilot onto a delivery. The WHERE clause doubles
// as the race guard: a pilot grabbed between the availability check and
// this write yields zero rows.
func (r *repository) StartDelivery(ctx context.Context, pilotID, orderID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE delivery_pilots
		SET is_on_delivery = TRUE, current_order_id = $2, updated_at = now()
		WHERE id = $1 AND is_active AND NOT is_on_delivery`,
		pilotID, orderID,
	)
	if err != nil {
		return fmt.Errorf("start delivery: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBusy
	}
	return nil
}

func (r *repository) CompleteDelivery(ctx context.Context, pilotID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE delivery_pilots
		SET is_on_delivery = FALSE, current_order_id = NULL,
			total_deliveries = total_deliveries + 1,
			completed_deliveries = completed_deliveries + 1, updated_at = now()
		WHERE id = $1 AND is_on_delivery`,
		pilotID,
	)
	if err != nil {
		return fmt.Errorf("complete delivery: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotOnDelivery
	}
	return nil
}

func (r *repository) UpdateLocation(ctx context.Context, pilotID uuid.UUID, lat, lng float64, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE delivery_pilots
		SET lat = $2, lng = $3, location_updated_at = $4, updated_at = $4
		WHERE id = $1`,
		pilotID, lat, lng, at,
	)
	if err != nil {
		return fmt.Errorf("update pilot location: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ReconcileStats recomputes delivery counters from delivered orders and
// frees pilots whose current order is gone or already terminal. Run from
// the background worker; safe to repeat.
func (r *repository) ReconcileStats(ctx context.Context) (ReconcileResult, error) {
	var res ReconcileResult

	tag, err := r.pool.Exec(ctx, `
		UPDATE delivery_pilots p
		SET completed_deliveries = sub.cnt,
			total_deliveries = GREATEST(p.total_deliveries, sub.cnt),
			updated_at = now()
		FROM (
			SELECT delivery_pilot_id, COUNT(*) AS cnt
			FROM orders
			WHERE status = 'delivered' AND delivery_pilot_id IS NOT NULL
			GROUP BY delivery_pilot_id
		) sub
		WHERE p.id = sub.delivery_pilot_id AND p.completed_deliveries <> sub.cnt`)
	if err != nil {
		return res, fmt.Errorf("reconcile delivery counts: %w", err)
	}
	res.StatsFixed = tag.RowsAffected()

	tag, err = r.pool.Exec(ctx, `
		UPDATE delivery_pilots p
		SET is_on_delivery = FALSE, current_order_id = NULL, updated_at = now()
		WHERE p.is_on_delivery AND (
			p.current_order_id IS NULL
			OR EXISTS (
				SELECT 1 FROM orders o
				WHERE o.id = p.current_order_id AND o.status IN ('delivered','cancelled')
			)
		)`)
	if err != nil {
		return res, fmt.Errorf("reconcile pilot flags: %w", err)
	}
	res.FlagsFixed = tag.RowsAffected()
	return res, nil
}
