package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/artisouq/artisouq/internal/cart"
	"github.com/artisouq/artisouq/internal/realtime"
)

const createAttempts = 3

// CartClient supplies the checkout snapshot and clears the cart once the
// order is persisted.
type CartClient interface {
	Snapshot(ctx context.Context, userID uuid.UUID) ([]cart.Line, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

// StockClient reserves inventory at checkout and gives it back on
// cancellation. Restore is best-effort; failures are the implementation's
// to log.
type StockClient interface {
	Reserve(ctx context.Context, productID uuid.UUID, quantity int) error
	Restore(ctx context.Context, restorations []StockRestoration)
}

// PilotReleaser frees a courier when their order reaches delivered.
type PilotReleaser interface {
	CompleteDelivery(ctx context.Context, pilotID uuid.UUID) error
}

// Service drives the order lifecycle.
type Service struct {
	repo     Repository
	carts    CartClient
	stock    StockClient
	notifier realtime.Notifier
	policy   TransitionPolicy
	pilots   PilotReleaser
	logger   *slog.Logger

	trackGroup singleflight.Group
}

// NewService wires the order service. The transition policy defaults to
// PermissivePolicy; the pilot releaser starts unset and is attached later
// to break the construction cycle with the pilots service.
func NewService(repo Repository, carts CartClient, stock StockClient, notifier realtime.Notifier, logger *slog.Logger) *Service {
	if notifier == nil {
		notifier = realtime.NopNotifier{}
	}
	return &Service{
		repo:     repo,
		carts:    carts,
		stock:    stock,
		notifier: notifier,
		policy:   PermissivePolicy{},
		logger:   logger,
	}
}

// SetPilotReleaser attaches the courier-side completion hook.
func (s *Service) SetPilotReleaser(p PilotReleaser) { s.pilots = p }

// SetTransitionPolicy swaps the transition policy.
func (s *Service) SetTransitionPolicy(p TransitionPolicy) {
	if p != nil {
		s.policy = p
	}
}

// CreateRequest carries everything checkout needs beyond the cart itself.
type CreateRequest struct {
	UserID          uuid.UUID
	CustomerName    string
	ShippingAddress Address
	PaymentMethod   PaymentMethod
	Notes           string
}

// Create turns the user's cart into an order: snapshot the lines, reserve
// stock, price the order, persist it with a pending history entry, clear
// the cart and announce it. Pricing is fixed at this moment; later product
// edits never touch the order.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Order, error) {
	if !req.PaymentMethod.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPayment, req.PaymentMethod)
	}
	if strings.TrimSpace(req.ShippingAddress.Street) == "" ||
		strings.TrimSpace(req.ShippingAddress.City) == "" ||
		strings.TrimSpace(req.ShippingAddress.Country) == "" {
		return nil, ErrAddressIncomplete
	}

	lines, err := s.carts.Snapshot(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	for _, l := range lines {
		if !l.IsActive {
			return nil, fmt.Errorf("%w: %s", ErrProductUnavailable, l.Name)
		}
		if l.Stock < l.Quantity {
			return nil, fmt.Errorf("%w: %s has %d left", ErrInsufficientStock, l.Name, l.Stock)
		}
	}
	for _, l := range lines {
		if err := s.stock.Reserve(ctx, l.ProductID, l.Quantity); err != nil {
			return nil, fmt.Errorf("reserve %s: %w", l.Name, err)
		}
	}

	now := time.Now().UTC()
	o := &Order{
		ID:              uuid.New(),
		UserID:          req.UserID,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		PaymentStatus:   PaymentPending,
		Status:          StatusPending,
		Currency:        DefaultCurrency,
		Notes:           req.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for _, l := range lines {
		o.Items = append(o.Items, Item{
			ProductID: l.ProductID,
			Name:      l.Name,
			ImageURL:  l.ImageURL,
			Price:     l.Price,
			Quantity:  l.Quantity,
		})
		o.Subtotal += l.Price * float64(l.Quantity)
	}
	o.ShippingCost = ShippingCostFor(o.Subtotal)
	o.Total = o.Subtotal + o.ShippingCost - o.Discount
	o.StatusHistory = []HistoryEntry{{
		Status:    StatusPending,
		Timestamp: now,
		Note:      "Order placed",
	}}

	if err := s.persistWithNumber(ctx, o); err != nil {
		return nil, err
	}

	if err := s.carts.Clear(ctx, req.UserID); err != nil {
		s.logger.Warn("clear cart after checkout", "order", o.OrderNumber, "error", err)
	}
	s.notifier.PublishNewOrder(ctx, o.OrderNumber, o.Total, req.CustomerName)
	return o, nil
}

// persistWithNumber draws sequence values until the unique index accepts
// one. Collisions only happen when the sequence is reset or a number was
// inserted by hand.
func (s *Service) persistWithNumber(ctx context.Context, o *Order) error {
	var err error
	for attempt := 0; attempt < createAttempts; attempt++ {
		var seq int64
		seq, err = s.repo.NextOrderNumber(ctx)
		if err != nil {
			return err
		}
		o.OrderNumber = FormatOrderNumber(seq)
		err = s.repo.Create(ctx, o)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrDuplicateNumber) {
			return err
		}
		s.logger.Warn("order number collision, retrying", "number", o.OrderNumber)
	}
	return fmt.Errorf("allocate order number: %w", err)
}

// UpdateStatus moves an order to the given status. The target is checked
// against the enum and the transition policy before anything is written;
// every accepted change appends exactly one history entry. Delivered and
// cancelled trigger their side effects after the write: payment capture
// and courier release for delivered, stock restoration for cancelled.
func (s *Service) UpdateStatus(ctx context.Context, orderID uuid.UUID, status Status, note string, actor *uuid.UUID) (*Order, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(o.Status, status); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	entry := HistoryEntry{Status: status, Timestamp: now, Note: note, ActorID: actor}
	o.Status = status
	o.UpdatedAt = now

	var restorations []StockRestoration
	switch status {
	case StatusDelivered:
		o.DeliveredAt = &now
		// Cash changes hands at the door, so delivery settles COD payment
		// regardless of what the payment status said before.
		if o.PaymentMethod == PaymentCOD {
			o.PaymentStatus = PaymentPaid
		}
	case StatusCancelled:
		o.CancelledAt = &now
		for _, it := range o.Items {
			restorations = append(restorations, StockRestoration{
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
			})
		}
	}

	if err := s.repo.SaveStatus(ctx, o, entry); err != nil {
		return nil, err
	}
	o.StatusHistory = append(o.StatusHistory, entry)

	if status == StatusDelivered && o.DeliveryPilotID != nil && s.pilots != nil {
		if err := s.pilots.CompleteDelivery(ctx, *o.DeliveryPilotID); err != nil {
			s.logger.Error("release pilot after delivery", "order", o.OrderNumber, "pilot", *o.DeliveryPilotID, "error", err)
		}
	}
	if len(restorations) > 0 {
		s.stock.Restore(ctx, restorations)
	}

	// Only staff-triggered updates expose the internal order id on the
	// admin channel; customer-triggered ones carry none.
	var adminRef *uuid.UUID
	if actor != nil {
		adminRef = &o.ID
	}
	s.notifier.PublishStatusUpdate(ctx, o.OrderNumber, string(status), historyToWire(o.StatusHistory), adminRef)
	return o, nil
}

// AssignPilot records the courier on the order. Status movement and pilot
// bookkeeping belong to the caller.
func (s *Service) AssignPilot(ctx context.Context, orderID, pilotID uuid.UUID) error {
	return s.repo.SetPilot(ctx, orderID, pilotID)
}

// ReportLocation stores the courier's position on the order and streams it
// to trackers. pilotID, when set, mirrors the update onto the courier's own
// channel.
func (s *Service) ReportLocation(ctx context.Context, orderID uuid.UUID, lat, lng float64, pilotID *uuid.UUID) (*Order, error) {
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if err := s.repo.UpdateDeliveryLocation(ctx, orderID, lat, lng, now); err != nil {
		return nil, err
	}
	o.DeliveryLoc = &DeliveryLocation{Lat: lat, Lng: lng, UpdatedAt: now}
	s.notifier.PublishLocationUpdate(ctx, o.OrderNumber, lat, lng, pilotID)
	return o, nil
}

// UpdatePaymentStatus sets the payment state directly, for back-office
// corrections and gateway callbacks.
func (s *Service) UpdatePaymentStatus(ctx context.Context, orderID uuid.UUID, status PaymentStatus) (*Order, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPaymentState, status)
	}
	if err := s.repo.UpdatePaymentStatus(ctx, orderID, status); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, orderID)
}

// Get loads one order by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Order, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByNumber loads one order by its human-readable number.
func (s *Service) GetByNumber(ctx context.Context, orderNumber string) (*Order, error) {
	return s.repo.GetByNumber(ctx, orderNumber)
}

// ListMine returns the user's orders, newest first.
func (s *Service) ListMine(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Order, int, error) {
	return s.repo.List(ctx, ListRequest{UserID: &userID, Limit: limit, Offset: offset})
}

// ListAll returns orders across all users, optionally filtered by status.
func (s *Service) ListAll(ctx context.Context, status Status, limit, offset int) ([]Order, int, error) {
	if status != "" && !status.IsValid() {
		return nil, 0, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return s.repo.List(ctx, ListRequest{Status: status, Limit: limit, Offset: offset})
}

// Track returns the public tracking projection for an order number.
// Concurrent lookups for the same number are coalesced; tracking pages
// poll and every poller does not need its own round trip.
func (s *Service) Track(ctx context.Context, orderNumber string) (*TrackingView, error) {
	ch := s.trackGroup.DoChan(orderNumber, func() (any, error) {
		return s.repo.Tracking(ctx, orderNumber)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*TrackingView), nil
	}
}

func historyToWire(history []HistoryEntry) []realtime.HistoryEntry {
	out := make([]realtime.HistoryEntry, 0, len(history))
	for _, h := range history {
		out = append(out, realtime.HistoryEntry{
			Status:    string(h.Status),
			Timestamp: h.Timestamp,
			Note:      h.Note,
		})
	}
	return out
}
