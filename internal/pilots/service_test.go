package pilots

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/artisouq/artisouq/internal/orders"
	"github.com/artisouq/artisouq/internal/realtime"
)

type memoryRepo struct {
	mu     sync.Mutex
	pilots map[uuid.UUID]*DeliveryPilot
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{pilots: map[uuid.UUID]*DeliveryPilot{}}
}

func (r *memoryRepo) Create(_ context.Context, p *DeliveryPilot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.pilots[p.ID] = &cp
	return nil
}

func (r *memoryRepo) Update(_ context.Context, p *DeliveryPilot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pilots[p.ID]; !ok {
		return ErrNotFound
	}
	cp := *p
	r.pilots[p.ID] = &cp
	return nil
}

func (r *memoryRepo) GetByID(_ context.Context, id uuid.UUID) (*DeliveryPilot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pilots[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memoryRepo) List(_ context.Context, _, _ int) ([]DeliveryPilot, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []DeliveryPilot
	for _, p := range r.pilots {
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (r *memoryRepo) ListAvailable(_ context.Context) ([]DeliveryPilot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []DeliveryPilot
	for _, p := range r.pilots {
		if p.IsActive && !p.IsOnDelivery {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *memoryRepo) StartDelivery(_ context.Context, pilotID, orderID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pilots[pilotID]
	if !ok || !p.IsActive || p.IsOnDelivery {
		return ErrBusy
	}
	p.IsOnDelivery = true
	p.CurrentOrderID = &orderID
	return nil
}

func (r *memoryRepo) CompleteDelivery(_ context.Context, pilotID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pilots[pilotID]
	if !ok || !p.IsOnDelivery {
		return ErrNotOnDelivery
	}
	p.IsOnDelivery = false
	p.CurrentOrderID = nil
	p.TotalDeliveries++
	p.CompletedDeliveries++
	return nil
}

func (r *memoryRepo) UpdateLocation(_ context.Context, pilotID uuid.UUID, lat, lng float64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pilots[pilotID]
	if !ok {
		return ErrNotFound
	}
	p.CurrentLocation = &Location{Lat: lat, Lng: lng, UpdatedAt: at}
	return nil
}

func (r *memoryRepo) ReconcileStats(_ context.Context) (ReconcileResult, error) {
	return ReconcileResult{}, nil
}

type fakeOrders struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*orders.Order
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{orders: map[uuid.UUID]*orders.Order{}}
}

func (f *fakeOrders) put(o *orders.Order) { f.orders[o.ID] = o }

func (f *fakeOrders) Get(_ context.Context, id uuid.UUID) (*orders.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, orders.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrders) AssignPilot(_ context.Context, orderID, pilotID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return orders.ErrNotFound
	}
	o.DeliveryPilotID = &pilotID
	return nil
}

func (f *fakeOrders) UpdateStatus(_ context.Context, orderID uuid.UUID, status orders.Status, note string, actor *uuid.UUID) (*orders.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return nil, orders.ErrNotFound
	}
	o.Status = status
	o.StatusHistory = append(o.StatusHistory, orders.HistoryEntry{
		Status: status, Timestamp: time.Now(), Note: note, ActorID: actor,
	})
	cp := *o
	return &cp, nil
}

func (f *fakeOrders) ReportLocation(_ context.Context, orderID uuid.UUID, lat, lng float64, _ *uuid.UUID) (*orders.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return nil, orders.ErrNotFound
	}
	o.DeliveryLoc = &orders.DeliveryLocation{Lat: lat, Lng: lng, UpdatedAt: time.Now()}
	cp := *o
	return &cp, nil
}

type captureNotifier struct {
	realtime.NopNotifier
	assigned []string
}

func (n *captureNotifier) PublishPilotAssigned(_ context.Context, orderNumber, pilotName, _ string) {
	n.assigned = append(n.assigned, orderNumber+":"+pilotName)
}

func newTestService(t *testing.T) (*Service, *memoryRepo, *fakeOrders, *captureNotifier) {
	t.Helper()
	repo := newMemoryRepo()
	dir := newFakeOrders()
	notifier := &captureNotifier{}
	return NewService(repo, dir, notifier, slog.Default()), repo, dir, notifier
}

func seedPilot(t *testing.T, svc *Service) *DeliveryPilot {
	t.Helper()
	p, err := svc.Create(context.Background(), CreateRequest{Name: "Fahad", Phone: "+965 5555 0001"})
	require.NoError(t, err)
	return p
}

func seedOrder(dir *fakeOrders) *orders.Order {
	o := &orders.Order{
		ID:          uuid.New(),
		OrderNumber: "ART-000042",
		Status:      orders.StatusProcessing,
	}
	dir.put(o)
	return o
}

func TestCreateValidatesNameAndPhone(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateRequest{Phone: "123"})
	require.ErrorIs(t, err, ErrNameRequired)
	_, err = svc.Create(ctx, CreateRequest{Name: "Fahad"})
	require.ErrorIs(t, err, ErrPhoneRequired)

	p, err := svc.Create(ctx, CreateRequest{Name: "  Fahad  ", Phone: "123"})
	require.NoError(t, err)
	require.Equal(t, "Fahad", p.Name)
	require.True(t, p.IsActive)
	require.False(t, p.IsOnDelivery)
}

func TestAssignHappyPath(t *testing.T) {
	svc, repo, dir, notifier := newTestService(t)
	p := seedPilot(t, svc)
	o := seedOrder(dir)

	got, err := svc.Assign(context.Background(), o.ID, p.ID, nil)
	require.NoError(t, err)
	require.Equal(t, orders.StatusHandedOver, got.Status)
	require.NotNil(t, got.DeliveryPilotID)
	require.Equal(t, p.ID, *got.DeliveryPilotID)

	last := got.StatusHistory[len(got.StatusHistory)-1]
	require.Equal(t, "Assigned to delivery pilot: Fahad", last.Note)

	cur, err := repo.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	require.True(t, cur.IsOnDelivery)
	require.Equal(t, o.ID, *cur.CurrentOrderID)

	require.Equal(t, []string{"ART-000042:Fahad"}, notifier.assigned)
}

func TestAssignInactivePilotRejected(t *testing.T) {
	svc, repo, dir, _ := newTestService(t)
	p := seedPilot(t, svc)
	o := seedOrder(dir)

	inactive := false
	_, err := svc.Update(context.Background(), p.ID, UpdateRequest{IsActive: &inactive})
	require.NoError(t, err)

	_, err = svc.Assign(context.Background(), o.ID, p.ID, nil)
	require.ErrorIs(t, err, ErrInactive)

	// Nothing moved.
	require.Equal(t, orders.StatusProcessing, dir.orders[o.ID].Status)
	require.Nil(t, dir.orders[o.ID].DeliveryPilotID)
	cur, _ := repo.GetByID(context.Background(), p.ID)
	require.False(t, cur.IsOnDelivery)
}

func TestAssignBusyPilotConflicts(t *testing.T) {
	svc, _, dir, _ := newTestService(t)
	p := seedPilot(t, svc)
	first := seedOrder(dir)
	second := seedOrder(dir)

	_, err := svc.Assign(context.Background(), first.ID, p.ID, nil)
	require.NoError(t, err)

	_, err = svc.Assign(context.Background(), second.ID, p.ID, nil)
	require.ErrorIs(t, err, ErrBusy)
	require.Equal(t, orders.StatusProcessing, dir.orders[second.ID].Status)
	require.Nil(t, dir.orders[second.ID].DeliveryPilotID)
}

func TestAssignUnknownOrderOrPilot(t *testing.T) {
	svc, _, dir, _ := newTestService(t)
	p := seedPilot(t, svc)
	o := seedOrder(dir)

	_, err := svc.Assign(context.Background(), uuid.New(), p.ID, nil)
	require.ErrorIs(t, err, orders.ErrNotFound)
	_, err = svc.Assign(context.Background(), o.ID, uuid.New(), nil)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCompleteDeliveryFreesPilotOnce(t *testing.T) {
	svc, repo, dir, _ := newTestService(t)
	p := seedPilot(t, svc)
	o := seedOrder(dir)
	ctx := context.Background()

	_, err := svc.Assign(ctx, o.ID, p.ID, nil)
	require.NoError(t, err)

	require.NoError(t, svc.CompleteDelivery(ctx, p.ID))
	cur, _ := repo.GetByID(ctx, p.ID)
	require.False(t, cur.IsOnDelivery)
	require.Nil(t, cur.CurrentOrderID)
	require.Equal(t, 1, cur.TotalDeliveries)
	require.Equal(t, 1, cur.CompletedDeliveries)

	require.ErrorIs(t, svc.CompleteDelivery(ctx, p.ID), ErrNotOnDelivery)
	cur, _ = repo.GetByID(ctx, p.ID)
	require.Equal(t, 1, cur.TotalDeliveries)
	require.Equal(t, 1, cur.CompletedDeliveries)
}

func TestReportLocationUpdatesOrderAndPilot(t *testing.T) {
	svc, repo, dir, _ := newTestService(t)
	p := seedPilot(t, svc)
	o := seedOrder(dir)
	ctx := context.Background()

	_, err := svc.Assign(ctx, o.ID, p.ID, nil)
	require.NoError(t, err)

	got, err := svc.ReportLocation(ctx, o.ID, 29.3759, 47.9774)
	require.NoError(t, err)
	require.NotNil(t, got.DeliveryLoc)

	cur, _ := repo.GetByID(ctx, p.ID)
	require.NotNil(t, cur.CurrentLocation)
	require.Equal(t, 47.9774, cur.CurrentLocation.Lng)
}

func TestReportLocationWithoutPilotStillLands(t *testing.T) {
	svc, _, dir, _ := newTestService(t)
	o := seedOrder(dir)

	got, err := svc.ReportLocation(context.Background(), o.ID, 29.0, 48.0)
	require.NoError(t, err)
	require.NotNil(t, got.DeliveryLoc)
}
