package orders

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/artisouq/artisouq/internal/cart"
	"github.com/artisouq/artisouq/internal/realtime"
)

type memoryRepo struct {
	mu        sync.Mutex
	seq       int64
	orders    map[uuid.UUID]*Order
	taken     map[string]bool
	preTaken  []string
	createErr error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{orders: map[uuid.UUID]*Order{}, taken: map[string]bool{}}
}

func (r *memoryRepo) NextOrderNumber(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	return r.seq, nil
}

func (r *memoryRepo) Create(_ context.Context, o *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	for _, n := range r.preTaken {
		if n == o.OrderNumber {
			return ErrDuplicateNumber
		}
	}
	if r.taken[o.OrderNumber] {
		return ErrDuplicateNumber
	}
	r.taken[o.OrderNumber] = true
	cp := *o
	cp.Items = append([]Item(nil), o.Items...)
	cp.StatusHistory = append([]HistoryEntry(nil), o.StatusHistory...)
	r.orders[o.ID] = &cp
	return nil
}

func (r *memoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	cp.Items = append([]Item(nil), o.Items...)
	cp.StatusHistory = append([]HistoryEntry(nil), o.StatusHistory...)
	return &cp, nil
}

func (r *memoryRepo) GetByNumber(_ context.Context, orderNumber string) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.OrderNumber == orderNumber {
			cp := *o
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryRepo) List(_ context.Context, req ListRequest) ([]Order, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Order
	for _, o := range r.orders {
		if req.Status != "" && o.Status != req.Status {
			continue
		}
		if req.UserID != nil && o.UserID != *req.UserID {
			continue
		}
		out = append(out, *o)
	}
	return out, len(out), nil
}

func (r *memoryRepo) SaveStatus(_ context.Context, o *Order, entry HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.orders[o.ID]
	if !ok {
		return ErrNotFound
	}
	cur.Status = o.Status
	cur.PaymentStatus = o.PaymentStatus
	cur.DeliveredAt = o.DeliveredAt
	cur.CancelledAt = o.CancelledAt
	cur.UpdatedAt = entry.Timestamp
	cur.StatusHistory = append(cur.StatusHistory, entry)
	return nil
}

func (r *memoryRepo) SetPilot(_ context.Context, orderID, pilotID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	o.DeliveryPilotID = &pilotID
	return nil
}

func (r *memoryRepo) UpdateDeliveryLocation(_ context.Context, orderID uuid.UUID, lat, lng float64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	o.DeliveryLoc = &DeliveryLocation{Lat: lat, Lng: lng, UpdatedAt: at}
	return nil
}

func (r *memoryRepo) UpdatePaymentStatus(_ context.Context, orderID uuid.UUID, status PaymentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	o.PaymentStatus = status
	return nil
}

func (r *memoryRepo) Tracking(_ context.Context, orderNumber string) (*TrackingView, error) {
	o, err := r.GetByNumber(context.Background(), orderNumber)
	if err != nil {
		return nil, err
	}
	return &TrackingView{OrderNumber: o.OrderNumber, Status: o.Status}, nil
}

type fakeCarts struct {
	lines   []cart.Line
	err     error
	cleared int
}

func (c *fakeCarts) Snapshot(_ context.Context, _ uuid.UUID) ([]cart.Line, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.lines, nil
}

func (c *fakeCarts) Clear(_ context.Context, _ uuid.UUID) error {
	c.cleared++
	return nil
}

type fakeStock struct {
	mu         sync.Mutex
	reserved   map[uuid.UUID]int
	restored   map[uuid.UUID]int
	reserveErr error
}

func newFakeStock() *fakeStock {
	return &fakeStock{reserved: map[uuid.UUID]int{}, restored: map[uuid.UUID]int{}}
}

func (s *fakeStock) Reserve(_ context.Context, productID uuid.UUID, quantity int) error {
	if s.reserveErr != nil {
		return s.reserveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reserved[productID] += quantity
	return nil
}

func (s *fakeStock) Restore(_ context.Context, restorations []StockRestoration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range restorations {
		s.restored[r.ProductID] += r.Quantity
	}
}

type fakePilots struct {
	completed []uuid.UUID
}

func (p *fakePilots) CompleteDelivery(_ context.Context, pilotID uuid.UUID) error {
	p.completed = append(p.completed, pilotID)
	return nil
}

type captureNotifier struct {
	realtime.NopNotifier
	statuses  []string
	adminRefs []*uuid.UUID
	newOrders []string
}

func (n *captureNotifier) PublishStatusUpdate(_ context.Context, orderNumber, status string, _ []realtime.HistoryEntry, orderID *uuid.UUID) {
	n.statuses = append(n.statuses, orderNumber+":"+status)
	n.adminRefs = append(n.adminRefs, orderID)
}

func (n *captureNotifier) PublishNewOrder(_ context.Context, orderNumber string, _ float64, _ string) {
	n.newOrders = append(n.newOrders, orderNumber)
}

func testLogger() *slog.Logger { return slog.Default() }

func validAddress() Address {
	return Address{Street: "Block 4, St 12", City: "Salmiya", Country: "Kuwait"}
}

func twoLines() []cart.Line {
	return []cart.Line{
		{ProductID: uuid.New(), Name: "Clay Mug", Price: 12.0, Stock: 10, IsActive: true, Quantity: 2},
		{ProductID: uuid.New(), Name: "Woven Rug", Price: 24.0, Stock: 3, IsActive: true, Quantity: 1},
	}
}

func TestCreatePricesAndRecordsHistory(t *testing.T) {
	repo := newMemoryRepo()
	stock := newFakeStock()
	carts := &fakeCarts{lines: twoLines()}
	notifier := &captureNotifier{}
	svc := NewService(repo, carts, stock, notifier, testLogger())

	o, err := svc.Create(context.Background(), CreateRequest{
		UserID:          uuid.New(),
		ShippingAddress: validAddress(),
		PaymentMethod:   PaymentCOD,
	})
	require.NoError(t, err)

	// 12*2 + 24 = 48 stays under the free-shipping threshold.
	require.Equal(t, 48.0, o.Subtotal)
	require.Equal(t, 2.5, o.ShippingCost)
	require.Equal(t, 50.5, o.Total)
	require.Equal(t, "KWD", o.Currency)
	require.Equal(t, "ART-000001", o.OrderNumber)
	require.Equal(t, StatusPending, o.Status)
	require.Equal(t, PaymentPending, o.PaymentStatus)

	require.Len(t, o.StatusHistory, 1)
	require.Equal(t, StatusPending, o.StatusHistory[0].Status)
	require.Equal(t, "Order placed", o.StatusHistory[0].Note)

	require.Equal(t, 1, carts.cleared)
	require.Equal(t, 2, stock.reserved[o.Items[0].ProductID])
	require.Equal(t, 1, stock.reserved[o.Items[1].ProductID])
	require.Equal(t, []string{"ART-000001"}, notifier.newOrders)
}

func TestCreateWaivesShippingAtThreshold(t *testing.T) {
	repo := newMemoryRepo()
	carts := &fakeCarts{lines: []cart.Line{
		{ProductID: uuid.New(), Name: "Brass Lantern", Price: 30.0, Stock: 5, IsActive: true, Quantity: 2},
	}}
	svc := NewService(repo, carts, newFakeStock(), nil, testLogger())

	o, err := svc.Create(context.Background(), CreateRequest{
		UserID:          uuid.New(),
		ShippingAddress: validAddress(),
		PaymentMethod:   PaymentCard,
	})
	require.NoError(t, err)
	require.Equal(t, 60.0, o.Subtotal)
	require.Equal(t, 0.0, o.ShippingCost)
	require.Equal(t, 60.0, o.Total)
}

func TestCreateRejectsBadInput(t *testing.T) {
	repo := newMemoryRepo()
	carts := &fakeCarts{lines: twoLines()}
	svc := NewService(repo, carts, newFakeStock(), nil, testLogger())
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateRequest{UserID: uuid.New(), ShippingAddress: validAddress(), PaymentMethod: "cash"})
	require.ErrorIs(t, err, ErrInvalidPayment)

	_, err = svc.Create(ctx, CreateRequest{UserID: uuid.New(), ShippingAddress: Address{City: "Salmiya"}, PaymentMethod: PaymentCOD})
	require.ErrorIs(t, err, ErrAddressIncomplete)

	carts.lines = []cart.Line{{ProductID: uuid.New(), Name: "Retired Vase", Price: 9, Stock: 4, IsActive: false, Quantity: 1}}
	_, err = svc.Create(ctx, CreateRequest{UserID: uuid.New(), ShippingAddress: validAddress(), PaymentMethod: PaymentCOD})
	require.ErrorIs(t, err, ErrProductUnavailable)

	carts.lines = []cart.Line{{ProductID: uuid.New(), Name: "Clay Mug", Price: 9, Stock: 1, IsActive: true, Quantity: 3}}
	_, err = svc.Create(ctx, CreateRequest{UserID: uuid.New(), ShippingAddress: validAddress(), PaymentMethod: PaymentCOD})
	require.ErrorIs(t, err, ErrInsufficientStock)
}

func TestCreateRetriesOnNumberCollision(t *testing.T) {
	repo := newMemoryRepo()
	repo.preTaken = []string{"ART-000001", "ART-000002"}
	carts := &fakeCarts{lines: twoLines()}
	svc := NewService(repo, carts, newFakeStock(), nil, testLogger())

	o, err := svc.Create(context.Background(), CreateRequest{
		UserID:          uuid.New(),
		ShippingAddress: validAddress(),
		PaymentMethod:   PaymentCOD,
	})
	require.NoError(t, err)
	require.Equal(t, "ART-000003", o.OrderNumber)
}

func createTestOrder(t *testing.T, svc *Service, method PaymentMethod) *Order {
	t.Helper()
	o, err := svc.Create(context.Background(), CreateRequest{
		UserID:          uuid.New(),
		ShippingAddress: validAddress(),
		PaymentMethod:   method,
	})
	require.NoError(t, err)
	return o
}

func TestUpdateStatusAppendsHistoryEachCall(t *testing.T) {
	repo := newMemoryRepo()
	notifier := &captureNotifier{}
	svc := NewService(repo, &fakeCarts{lines: twoLines()}, newFakeStock(), notifier, testLogger())
	o := createTestOrder(t, svc, PaymentCOD)
	ctx := context.Background()

	got, err := svc.UpdateStatus(ctx, o.ID, StatusConfirmed, "picked up the phone", nil)
	require.NoError(t, err)
	require.Len(t, got.StatusHistory, 2)

	// Same status again is accepted and still appends.
	got, err = svc.UpdateStatus(ctx, o.ID, StatusConfirmed, "", nil)
	require.NoError(t, err)
	require.Len(t, got.StatusHistory, 3)
	require.Equal(t, StatusConfirmed, got.Status)

	require.Equal(t, []string{o.OrderNumber + ":confirmed", o.OrderNumber + ":confirmed"}, notifier.statuses)
}

func TestUpdateStatusRejectsUnknownStatusBeforeMutation(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, &fakeCarts{lines: twoLines()}, newFakeStock(), nil, testLogger())
	o := createTestOrder(t, svc, PaymentCOD)

	_, err := svc.UpdateStatus(context.Background(), o.ID, Status("shipped"), "", nil)
	require.ErrorIs(t, err, ErrInvalidStatus)

	cur, err := svc.Get(context.Background(), o.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, cur.Status)
	require.Len(t, cur.StatusHistory, 1)
}

func TestDeliveredCapturesCODAndReleasesPilot(t *testing.T) {
	repo := newMemoryRepo()
	pilots := &fakePilots{}
	svc := NewService(repo, &fakeCarts{lines: twoLines()}, newFakeStock(), nil, testLogger())
	svc.SetPilotReleaser(pilots)
	o := createTestOrder(t, svc, PaymentCOD)
	ctx := context.Background()

	pilotID := uuid.New()
	require.NoError(t, svc.AssignPilot(ctx, o.ID, pilotID))

	got, err := svc.UpdateStatus(ctx, o.ID, StatusDelivered, "", nil)
	require.NoError(t, err)
	require.NotNil(t, got.DeliveredAt)
	require.Equal(t, PaymentPaid, got.PaymentStatus)
	require.Equal(t, []uuid.UUID{pilotID}, pilots.completed)
}

func TestDeliveredSettlesCODAfterFailedPayment(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, &fakeCarts{lines: twoLines()}, newFakeStock(), nil, testLogger())
	o := createTestOrder(t, svc, PaymentCOD)
	ctx := context.Background()

	// An admin correction marked the payment failed before the courier
	// arrived; handing over the cash still settles it.
	_, err := svc.UpdatePaymentStatus(ctx, o.ID, PaymentFailed)
	require.NoError(t, err)

	got, err := svc.UpdateStatus(ctx, o.ID, StatusDelivered, "", nil)
	require.NoError(t, err)
	require.Equal(t, PaymentPaid, got.PaymentStatus)
}

func TestStatusUpdateCarriesOrderIDOnlyForStaff(t *testing.T) {
	repo := newMemoryRepo()
	notifier := &captureNotifier{}
	svc := NewService(repo, &fakeCarts{lines: twoLines()}, newFakeStock(), notifier, testLogger())
	o := createTestOrder(t, svc, PaymentCOD)
	ctx := context.Background()

	_, err := svc.UpdateStatus(ctx, o.ID, StatusConfirmed, "", nil)
	require.NoError(t, err)

	staff := uuid.New()
	_, err = svc.UpdateStatus(ctx, o.ID, StatusPacked, "", &staff)
	require.NoError(t, err)

	require.Len(t, notifier.adminRefs, 2)
	require.Nil(t, notifier.adminRefs[0])
	require.NotNil(t, notifier.adminRefs[1])
	require.Equal(t, o.ID, *notifier.adminRefs[1])
}

func TestDeliveredLeavesCardPaymentAlone(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, &fakeCarts{lines: twoLines()}, newFakeStock(), nil, testLogger())
	o := createTestOrder(t, svc, PaymentCard)

	got, err := svc.UpdateStatus(context.Background(), o.ID, StatusDelivered, "", nil)
	require.NoError(t, err)
	require.Equal(t, PaymentPending, got.PaymentStatus)
	require.NotNil(t, got.DeliveredAt)
}

func TestCancelRestoresStockExactlyOnce(t *testing.T) {
	repo := newMemoryRepo()
	stock := newFakeStock()
	svc := NewService(repo, &fakeCarts{lines: twoLines()}, stock, nil, testLogger())
	o := createTestOrder(t, svc, PaymentCOD)
	ctx := context.Background()

	got, err := svc.UpdateStatus(ctx, o.ID, StatusCancelled, "customer changed their mind", nil)
	require.NoError(t, err)
	require.NotNil(t, got.CancelledAt)
	require.Equal(t, 2, stock.restored[o.Items[0].ProductID])
	require.Equal(t, 1, stock.restored[o.Items[1].ProductID])

	// A second cancel is a conflict and must not restore again or grow history.
	_, err = svc.UpdateStatus(ctx, o.ID, StatusCancelled, "", nil)
	require.ErrorIs(t, err, ErrAlreadyFinal)

	cur, err := svc.Get(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, cur.StatusHistory, 2)
	require.Equal(t, 2, stock.restored[o.Items[0].ProductID])
}

func TestCancelAfterDeliveredRejected(t *testing.T) {
	repo := newMemoryRepo()
	stock := newFakeStock()
	svc := NewService(repo, &fakeCarts{lines: twoLines()}, stock, nil, testLogger())
	o := createTestOrder(t, svc, PaymentCOD)
	ctx := context.Background()

	_, err := svc.UpdateStatus(ctx, o.ID, StatusDelivered, "", nil)
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, o.ID, StatusCancelled, "", nil)
	require.ErrorIs(t, err, ErrAlreadyFinal)
	require.Empty(t, stock.restored)
}

func TestForwardOnlyPolicyEnforced(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, &fakeCarts{lines: twoLines()}, newFakeStock(), nil, testLogger())
	svc.SetTransitionPolicy(ForwardOnlyPolicy{})
	o := createTestOrder(t, svc, PaymentCOD)
	ctx := context.Background()

	_, err := svc.UpdateStatus(ctx, o.ID, StatusPacked, "", nil)
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, o.ID, StatusConfirmed, "", nil)
	require.ErrorIs(t, err, ErrBackwardTransition)
}

func TestReportLocation(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, &fakeCarts{lines: twoLines()}, newFakeStock(), nil, testLogger())
	o := createTestOrder(t, svc, PaymentCOD)

	got, err := svc.ReportLocation(context.Background(), o.ID, 29.3759, 47.9774, nil)
	require.NoError(t, err)
	require.NotNil(t, got.DeliveryLoc)
	require.Equal(t, 29.3759, got.DeliveryLoc.Lat)

	_, err = svc.ReportLocation(context.Background(), uuid.New(), 1, 2, nil)
	require.ErrorIs(t, err, ErrNotFound)
}
