package pilots

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/artisouq/artisouq/internal/orders"
	"github.com/artisouq/artisouq/internal/realtime"
)

// OrderDirectory is the slice of the order service assignment needs.
type OrderDirectory interface {
	Get(ctx context.Context, id uuid.UUID) (*orders.Order, error)
	AssignPilot(ctx context.Context, orderID, pilotID uuid.UUID) error
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status orders.Status, note string, actor *uuid.UUID) (*orders.Order, error)
	ReportLocation(ctx context.Context, orderID uuid.UUID, lat, lng float64, pilotID *uuid.UUID) (*orders.Order, error)
}

// Service manages the courier roster and the delivery side of orders.
type Service struct {
	repo     Repository
	orders   OrderDirectory
	notifier realtime.Notifier
	logger   *slog.Logger
}

// NewService wires the pilot service.
func NewService(repo Repository, orderDir OrderDirectory, notifier realtime.Notifier, logger *slog.Logger) *Service {
	if notifier == nil {
		notifier = realtime.NopNotifier{}
	}
	return &Service{repo: repo, orders: orderDir, notifier: notifier, logger: logger}
}

// Create registers a new pilot, active and idle.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*DeliveryPilot, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, ErrNameRequired
	}
	if strings.TrimSpace(req.Phone) == "" {
		return nil, ErrPhoneRequired
	}
	now := time.Now().UTC()
	p := &DeliveryPilot{
		ID:            uuid.New(),
		Name:          strings.TrimSpace(req.Name),
		Phone:         strings.TrimSpace(req.Phone),
		Email:         req.Email,
		VehicleType:   req.VehicleType,
		VehicleNumber: req.VehicleNumber,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Update applies partial edits to a pilot's profile.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*DeliveryPilot, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, ErrNameRequired
		}
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		if strings.TrimSpace(*req.Phone) == "" {
			return nil, ErrPhoneRequired
		}
		p.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Email != nil {
		p.Email = *req.Email
	}
	if req.VehicleType != nil {
		p.VehicleType = *req.VehicleType
	}
	if req.VehicleNumber != nil {
		p.VehicleNumber = *req.VehicleNumber
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Get loads one pilot.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*DeliveryPilot, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns the full roster, newest first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]DeliveryPilot, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// ListAvailable returns active pilots not currently on a delivery, least
// loaded first.
func (s *Service) ListAvailable(ctx context.Context) ([]DeliveryPilot, error) {
	return s.repo.ListAvailable(ctx)
}

// Assign hands an order to a pilot. The pilot must be active and idle;
// an inactive pilot is a validation failure and a busy one a conflict,
// both checked before anything is written. On success the order moves to
// handed_over with an audit note, the pilot is flipped onto the delivery,
// and trackers are told who is coming.
func (s *Service) Assign(ctx context.Context, orderID, pilotID uuid.UUID, actor *uuid.UUID) (*orders.Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	p, err := s.repo.GetByID(ctx, pilotID)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, fmt.Errorf("%w: %s", ErrInactive, p.Name)
	}
	if p.IsOnDelivery {
		return nil, fmt.Errorf("%w: %s", ErrBusy, p.Name)
	}

	if err := s.orders.AssignPilot(ctx, orderID, pilotID); err != nil {
		return nil, err
	}
	note := "Assigned to delivery pilot: " + p.Name
	o, err = s.orders.UpdateStatus(ctx, orderID, orders.StatusHandedOver, note, actor)
	if err != nil {
		return nil, err
	}
	if err := s.repo.StartDelivery(ctx, pilotID, orderID); err != nil {
		return nil, err
	}

	s.notifier.PublishPilotAssigned(ctx, o.OrderNumber, p.Name, p.Phone)
	return o, nil
}

// ReportLocation records the courier position against the order and, when
// a pilot is attached, against the pilot too. A missing pilot row never
// fails the order-side update.
func (s *Service) ReportLocation(ctx context.Context, orderID uuid.UUID, lat, lng float64) (*orders.Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	o, err = s.orders.ReportLocation(ctx, orderID, lat, lng, o.DeliveryPilotID)
	if err != nil {
		return nil, err
	}
	if o.DeliveryPilotID != nil {
		if err := s.repo.UpdateLocation(ctx, *o.DeliveryPilotID, lat, lng, time.Now().UTC()); err != nil {
			s.logger.Warn("update pilot location", "pilot", *o.DeliveryPilotID, "error", err)
		}
	}
	return o, nil
}

// CompleteDelivery frees the pilot after their order is delivered and
// bumps the delivery counter. Satisfies the order service's releaser hook.
func (s *Service) CompleteDelivery(ctx context.Context, pilotID uuid.UUID) error {
	return s.repo.CompleteDelivery(ctx, pilotID)
}

// ReconcileStats is the worker entrypoint for roster repair.
func (s *Service) ReconcileStats(ctx context.Context) (ReconcileResult, error) {
	res, err := s.repo.ReconcileStats(ctx)
	if err != nil {
		return res, err
	}
	if res.StatsFixed > 0 || res.FlagsFixed > 0 {
		s.logger.Info("pilot stats reconciled", "counts", res.StatsFixed, "flags", res.FlagsFixed)
	}
	return res, nil
}
