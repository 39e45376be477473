package inventory

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stocklot/internal/core/apperror"
	"stocklot/internal/core/id"
)

// --- In-memory fakes ---

// fakeRepo implements Repository over slices and maps, preserving the
// expiry-first, insertion-order candidate ordering of the real storage.
type fakeRepo struct {
	locations []*LocationStock
	summaries map[SummaryKey]*WarehouseSummary
	movements []*InventoryMovement
	nextMovID int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{summaries: make(map[SummaryKey]*WarehouseSummary)}
}

func sameExpiry(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func (r *fakeRepo) UpsertLocation(_ context.Context, key LocationKey) (*LocationStock, error) {
	for _, l := range r.locations {
		if l.WarehouseID == key.WarehouseID && l.BinID == key.BinID &&
			l.ProductID == key.ProductID && l.VariationID == key.VariationID &&
			l.BatchNumber == key.BatchNumber && sameExpiry(l.ExpiryDate, key.ExpiryDate) {
			copied := *l
			return &copied, nil
		}
	}
	loc := &LocationStock{
		ID:          id.New(),
		WarehouseID: key.WarehouseID,
		BinID:       key.BinID,
		ProductID:   key.ProductID,
		VariationID: key.VariationID,
		BatchNumber: key.BatchNumber,
		ExpiryDate:  key.ExpiryDate,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	r.locations = append(r.locations, loc)
	copied := *loc
	return &copied, nil
}

func (r *fakeRepo) AdjustLocationQuantity(_ context.Context, locationID id.ID, delta int64) (int64, int64, error) {
	for _, l := range r.locations {
		if l.ID == locationID {
			if l.Quantity+delta < 0 {
				return 0, 0, ErrInsufficientLocationStock
			}
			before := l.Quantity
			l.Quantity += delta
			return before, l.Quantity, nil
		}
	}
	return 0, 0, apperror.NewNotFound("location", locationID)
}

func (r *fakeRepo) LockCandidates(_ context.Context, key SummaryKey) ([]LocationStock, error) {
	var out []LocationStock
	for _, l := range r.locations {
		if l.WarehouseID == key.WarehouseID && l.ProductID == key.ProductID &&
			l.VariationID == key.VariationID && l.Quantity > 0 {
			out = append(out, *l)
		}
	}
	// expiry ascending with nulls last, insertion order as tie-break
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].ExpiryDate, out[j].ExpiryDate
		switch {
		case a == nil && b == nil:
			return false
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
	return out, nil
}

func (r *fakeRepo) ApplyDeductions(_ context.Context, deductions []Deduction) error {
	for _, d := range deductions {
		found := false
		for _, l := range r.locations {
			if l.ID == d.LocationID {
				if l.Quantity < d.Quantity {
					return ErrInsufficientLocationStock
				}
				l.Quantity -= d.Quantity
				found = true
				break
			}
		}
		if !found {
			return ErrInsufficientLocationStock
		}
	}
	return nil
}

func (r *fakeRepo) ListLocations(_ context.Context, key SummaryKey) ([]LocationStock, error) {
	var out []LocationStock
	for _, l := range r.locations {
		if l.WarehouseID == key.WarehouseID && l.ProductID == key.ProductID && l.VariationID == key.VariationID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (r *fakeRepo) UpsertSummaryAdjust(_ context.Context, key SummaryKey, onHandDelta int64, thresholds Thresholds) (*WarehouseSummary, error) {
	s, ok := r.summaries[key]
	if !ok {
		s = &WarehouseSummary{
			WarehouseID: key.WarehouseID,
			ProductID:   key.ProductID,
			VariationID: key.VariationID,
			CreatedAt:   time.Now(),
		}
		r.summaries[key] = s
	}
	s.QuantityOnHand += onHandDelta
	if thresholds.LowStock != nil {
		s.LowStockThreshold = *thresholds.LowStock
	}
	if thresholds.Reorder != nil {
		s.ReorderQuantity = *thresholds.Reorder
	}
	s.UpdatedAt = time.Now()
	copied := *s
	return &copied, nil
}

func (r *fakeRepo) GetSummary(_ context.Context, key SummaryKey) (*WarehouseSummary, error) {
	if s, ok := r.summaries[key]; ok {
		copied := *s
		return &copied, nil
	}
	return &WarehouseSummary{
		WarehouseID: key.WarehouseID,
		ProductID:   key.ProductID,
		VariationID: key.VariationID,
	}, nil
}

func (r *fakeRepo) ListBelowThreshold(_ context.Context, warehouseID *id.ID) ([]WarehouseSummary, error) {
	var out []WarehouseSummary
	for _, s := range r.summaries {
		if warehouseID != nil && s.WarehouseID != *warehouseID {
			continue
		}
		if s.BelowThreshold() {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *fakeRepo) RecordMovements(_ context.Context, movements []*InventoryMovement) error {
	for _, m := range movements {
		r.nextMovID++
		m.ID = r.nextMovID
		m.CreatedAt = time.Now()
		copied := *m
		r.movements = append(r.movements, &copied)
	}
	return nil
}

func (r *fakeRepo) ListMovements(_ context.Context, filter MovementFilter) ([]InventoryMovement, error) {
	var out []InventoryMovement
	for _, m := range r.movements {
		if filter.WarehouseID != nil && m.WarehouseID != *filter.WarehouseID {
			continue
		}
		if filter.ProductID != nil && m.ProductID != *filter.ProductID {
			continue
		}
		out = append(out, *m)
	}
	return out, nil
}

var _ Repository = (*fakeRepo)(nil)

// fakeTxManager snapshots the repo before fn and restores it on error, so
// a failing operation leaves no partial writes behind.
type fakeTxManager struct {
	repo *fakeRepo
}

func (m *fakeTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	snapLocations := make([]*LocationStock, len(m.repo.locations))
	for i, l := range m.repo.locations {
		copied := *l
		snapLocations[i] = &copied
	}
	snapSummaries := make(map[SummaryKey]*WarehouseSummary, len(m.repo.summaries))
	for k, s := range m.repo.summaries {
		copied := *s
		snapSummaries[k] = &copied
	}
	snapMovements := make([]*InventoryMovement, len(m.repo.movements))
	copy(snapMovements, m.repo.movements)
	snapNextID := m.repo.nextMovID

	if err := fn(ctx); err != nil {
		m.repo.locations = snapLocations
		m.repo.summaries = snapSummaries
		m.repo.movements = snapMovements
		m.repo.nextMovID = snapNextID
		return err
	}
	return nil
}

// --- Helpers ---

func newTestService(t *testing.T) (*Service, *fakeRepo) {
	t.Helper()
	repo := newFakeRepo()
	return NewService(repo, &fakeTxManager{repo: repo}), repo
}

func date(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func stockIn(t *testing.T, svc *Service, req StockInRequest) *StockInResult {
	t.Helper()
	res, err := svc.StockIn(context.Background(), req)
	require.NoError(t, err)
	return res
}

type tuple struct {
	warehouseID id.ID
	productID   id.ID
	moverID     id.ID
}

func newTuple() tuple {
	return tuple{warehouseID: id.New(), productID: id.New(), moverID: id.New()}
}

func (tp tuple) in(binID id.ID, qty int64) StockInRequest {
	return StockInRequest{
		WarehouseID:  tp.warehouseID,
		BinID:        binID,
		ProductID:    tp.productID,
		Quantity:     qty,
		MovementType: MovementPurchase,
		MoverID:      tp.moverID,
	}
}

func (tp tuple) out(qty int64) StockOutRequest {
	return StockOutRequest{
		WarehouseID:  tp.warehouseID,
		ProductID:    tp.productID,
		Quantity:     qty,
		MovementType: MovementSale,
		MoverID:      tp.moverID,
	}
}

func (tp tuple) key() SummaryKey {
	return SummaryKey{WarehouseID: tp.warehouseID, ProductID: tp.productID, VariationID: id.Nil()}
}

// --- Stock in ---

func TestStockIn_CreatesLocationSummaryAndMovement(t *testing.T) {
	svc, repo := newTestService(t)
	tp := newTuple()
	binID := id.New()

	res := stockIn(t, svc, tp.in(binID, 10))

	assert.Equal(t, int64(10), res.Location.Quantity)
	assert.Equal(t, int64(10), res.Summary.QuantityOnHand)
	assert.Equal(t, int64(10), res.Movement.QuantityChange)
	assert.Equal(t, int64(0), res.Movement.QuantityBefore)
	assert.Equal(t, int64(10), res.Movement.QuantityAfter)
	assert.True(t, res.Movement.Consistent())
	assert.Len(t, repo.movements, 1)
}

func TestStockIn_SameBatchAccumulates(t *testing.T) {
	svc, _ := newTestService(t)
	tp := newTuple()
	binID := id.New()

	req := tp.in(binID, 10)
	req.BatchNumber = "LOT-1"
	stockIn(t, svc, req)

	res := stockIn(t, svc, req)

	assert.Equal(t, int64(20), res.Location.Quantity)
	assert.Equal(t, int64(20), res.Summary.QuantityOnHand)
	assert.Equal(t, int64(10), res.Movement.QuantityBefore)
	assert.Equal(t, int64(20), res.Movement.QuantityAfter)
}

func TestStockIn_DistinctBatchesAreDistinctRows(t *testing.T) {
	svc, _ := newTestService(t)
	tp := newTuple()
	binID := id.New()

	reqA := tp.in(binID, 5)
	reqA.BatchNumber = "LOT-A"
	reqB := tp.in(binID, 7)
	reqB.BatchNumber = "LOT-B"
	stockIn(t, svc, reqA)
	stockIn(t, svc, reqB)

	locations, err := svc.ListLocations(context.Background(), tp.key())
	require.NoError(t, err)
	assert.Len(t, locations, 2)

	qty, err := svc.Availability(context.Background(), tp.key())
	require.NoError(t, err)
	assert.Equal(t, int64(12), qty)
}

func TestStockIn_ValidationRejectsBadRequests(t *testing.T) {
	svc, _ := newTestService(t)
	tp := newTuple()
	binID := id.New()

	tests := []struct {
		name   string
		mutate func(*StockInRequest)
	}{
		{"zero quantity", func(r *StockInRequest) { r.Quantity = 0 }},
		{"negative quantity", func(r *StockInRequest) { r.Quantity = -5 }},
		{"missing warehouse", func(r *StockInRequest) { r.WarehouseID = id.Nil() }},
		{"missing product", func(r *StockInRequest) { r.ProductID = id.Nil() }},
		{"missing mover", func(r *StockInRequest) { r.MoverID = id.Nil() }},
		{"stock-out type", func(r *StockInRequest) { r.MovementType = MovementSale }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tp.in(binID, 10)
			tt.mutate(&req)
			_, err := svc.StockIn(context.Background(), req)
			require.Error(t, err)
			appErr, ok := apperror.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, apperror.CodeValidation, appErr.Code)
		})
	}
}

func TestStockIn_ThresholdOverrideIsLastWriteWins(t *testing.T) {
	svc, _ := newTestService(t)
	tp := newTuple()
	binID := id.New()

	first := tp.in(binID, 10)
	threshold := int64(5)
	first.LowStockThreshold = &threshold
	res := stockIn(t, svc, first)
	assert.Equal(t, int64(5), res.Summary.LowStockThreshold)

	// No override: threshold untouched
	res = stockIn(t, svc, tp.in(binID, 10))
	assert.Equal(t, int64(5), res.Summary.LowStockThreshold)

	newThreshold := int64(30)
	third := tp.in(binID, 10)
	third.LowStockThreshold = &newThreshold
	res = stockIn(t, svc, third)
	assert.Equal(t, int64(30), res.Summary.LowStockThreshold)
}

// --- Stock out ---

func TestStockOut_DeductsExpiryFirst(t *testing.T) {
	svc, _ := newTestService(t)
	tp := newTuple()
	binA, binB, binC := id.New(), id.New(), id.New()

	// Insertion order deliberately differs from expiry order.
	late := tp.in(binA, 10)
	late.ExpiryDate = date("2026-12-01")
	early := tp.in(binB, 10)
	early.ExpiryDate = date("2026-09-01")
	never := tp.in(binC, 10)

	stockIn(t, svc, late)
	stockIn(t, svc, early)
	stockIn(t, svc, never)

	res, err := svc.StockOut(context.Background(), tp.out(15))
	require.NoError(t, err)

	// Earliest expiry drained first, then next expiry; null expiry untouched.
	require.Len(t, res.Movements, 2)
	assert.Equal(t, binB, res.Movements[0].BinID)
	assert.Equal(t, int64(-10), res.Movements[0].QuantityChange)
	assert.Equal(t, binA, res.Movements[1].BinID)
	assert.Equal(t, int64(-5), res.Movements[1].QuantityChange)
	assert.Equal(t, int64(15), res.Summary.QuantityOnHand)
}

func TestStockOut_NullExpiryAllocatedLast(t *testing.T) {
	svc, _ := newTestService(t)
	tp := newTuple()
	binA, binB := id.New(), id.New()

	noExpiry := tp.in(binA, 10)
	withExpiry := tp.in(binB, 10)
	withExpiry.ExpiryDate = date("2027-01-01")

	stockIn(t, svc, noExpiry)
	stockIn(t, svc, withExpiry)

	res, err := svc.StockOut(context.Background(), tp.out(12))
	require.NoError(t, err)

	require.Len(t, res.Movements, 2)
	assert.Equal(t, binB, res.Movements[0].BinID)
	assert.Equal(t, binA, res.Movements[1].BinID)
	assert.Equal(t, int64(-2), res.Movements[1].QuantityChange)
}

func TestStockOut_FIFOTieBreakOnEqualExpiry(t *testing.T) {
	svc, _ := newTestService(t)
	tp := newTuple()
	binFirst, binSecond := id.New(), id.New()

	first := tp.in(binFirst, 5)
	second := tp.in(binSecond, 5)
	stockIn(t, svc, first)
	stockIn(t, svc, second)

	res, err := svc.StockOut(context.Background(), tp.out(7))
	require.NoError(t, err)

	require.Len(t, res.Movements, 2)
	assert.Equal(t, binFirst, res.Movements[0].BinID)
	assert.Equal(t, int64(-5), res.Movements[0].QuantityChange)
	assert.Equal(t, binSecond, res.Movements[1].BinID)
	assert.Equal(t, int64(-2), res.Movements[1].QuantityChange)
}

func TestStockOut_CrossBinSplitProducesOneMovementPerBin(t *testing.T) {
	svc, _ := newTestService(t)
	tp := newTuple()
	binA, binB := id.New(), id.New()

	stockIn(t, svc, tp.in(binA, 5))
	stockIn(t, svc, tp.in(binB, 3))

	res, err := svc.StockOut(context.Background(), tp.out(8))
	require.NoError(t, err)

	require.Len(t, res.Movements, 2)
	assert.Equal(t, int64(-5), res.Movements[0].QuantityChange)
	assert.Equal(t, int64(-3), res.Movements[1].QuantityChange)
	assert.Equal(t, int64(0), res.Summary.QuantityOnHand)
	for _, m := range res.Movements {
		assert.True(t, m.Consistent())
	}
}

func TestStockOut_InsufficientStockRollsBackEverything(t *testing.T) {
	svc, repo := newTestService(t)
	tp := newTuple()
	binA, binB := id.New(), id.New()

	stockIn(t, svc, tp.in(binA, 5))
	stockIn(t, svc, tp.in(binB, 3))
	movementsBefore := len(repo.movements)

	_, err := svc.StockOut(context.Background(), tp.out(10))
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)
	assert.Equal(t, int64(10), appErr.Details["requested"])
	assert.Equal(t, int64(8), appErr.Details["available"])

	// Nothing changed: both rows intact, summary intact, no movements appended.
	locations, err := svc.ListLocations(context.Background(), tp.key())
	require.NoError(t, err)
	quantities := map[id.ID]int64{}
	for _, l := range locations {
		quantities[l.BinID] = l.Quantity
	}
	assert.Equal(t, int64(5), quantities[binA])
	assert.Equal(t, int64(3), quantities[binB])

	qty, err := svc.Availability(context.Background(), tp.key())
	require.NoError(t, err)
	assert.Equal(t, int64(8), qty)
	assert.Len(t, repo.movements, movementsBefore)
}

func TestStockOut_SequentialContention(t *testing.T) {
	svc, _ := newTestService(t)
	tp := newTuple()

	stockIn(t, svc, tp.in(id.New(), 10))

	_, err := svc.StockOut(context.Background(), tp.out(8))
	require.NoError(t, err)

	_, err = svc.StockOut(context.Background(), tp.out(8))
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	// The remaining 2 are still available.
	res, err := svc.StockOut(context.Background(), tp.out(2))
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Summary.QuantityOnHand)
}

func TestStockOut_ExactDrainLeavesZeroRow(t *testing.T) {
	svc, _ := newTestService(t)
	tp := newTuple()

	stockIn(t, svc, tp.in(id.New(), 5))

	_, err := svc.StockOut(context.Background(), tp.out(5))
	require.NoError(t, err)

	// Row persists at zero for future receipts.
	locations, err := svc.ListLocations(context.Background(), tp.key())
	require.NoError(t, err)
	require.Len(t, locations, 1)
	assert.Equal(t, int64(0), locations[0].Quantity)
}

func TestStockOut_ValidationRejectsStockInTypes(t *testing.T) {
	svc, _ := newTestService(t)
	tp := newTuple()

	req := tp.out(5)
	req.MovementType = MovementPurchase
	_, err := svc.StockOut(context.Background(), req)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

// --- Invariants across operations ---

func TestSummaryEqualsSumOfLocations(t *testing.T) {
	svc, _ := newTestService(t)
	tp := newTuple()
	ctx := context.Background()

	withExpiry := tp.in(id.New(), 20)
	withExpiry.ExpiryDate = date("2026-10-15")
	stockIn(t, svc, tp.in(id.New(), 10))
	stockIn(t, svc, withExpiry)
	stockIn(t, svc, tp.in(id.New(), 7))

	_, err := svc.StockOut(ctx, tp.out(12))
	require.NoError(t, err)
	_, err = svc.StockOut(ctx, tp.out(9))
	require.NoError(t, err)

	locations, err := svc.ListLocations(ctx, tp.key())
	require.NoError(t, err)
	var sum int64
	for _, l := range locations {
		sum += l.Quantity
	}

	onHand, err := svc.Availability(ctx, tp.key())
	require.NoError(t, err)
	assert.Equal(t, sum, onHand)
	assert.Equal(t, int64(16), onHand)
}

func TestMovementReplayReproducesQuantities(t *testing.T) {
	svc, repo := newTestService(t)
	tp := newTuple()
	ctx := context.Background()

	stockIn(t, svc, tp.in(id.New(), 10))
	stockIn(t, svc, tp.in(id.New(), 5))
	_, err := svc.StockOut(ctx, tp.out(8))
	require.NoError(t, err)

	// Replaying quantity_change per location row must land on the stored state.
	replayed := map[id.ID]int64{}
	for _, m := range repo.movements {
		replayed[m.BinID] += m.QuantityChange
	}

	locations, err := svc.ListLocations(ctx, tp.key())
	require.NoError(t, err)
	for _, l := range locations {
		assert.Equal(t, replayed[l.BinID], l.Quantity, "bin %s", l.BinID)
	}
}

// --- Low stock ---

func TestListBelowThreshold(t *testing.T) {
	svc, _ := newTestService(t)
	tp := newTuple()
	ctx := context.Background()

	req := tp.in(id.New(), 10)
	threshold := int64(8)
	req.LowStockThreshold = &threshold
	stockIn(t, svc, req)

	low, err := svc.ListBelowThreshold(ctx, &tp.warehouseID)
	require.NoError(t, err)
	assert.Empty(t, low)

	_, err = svc.StockOut(ctx, tp.out(5))
	require.NoError(t, err)

	low, err = svc.ListBelowThreshold(ctx, &tp.warehouseID)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, int64(5), low[0].QuantityOnHand)
	assert.True(t, low[0].BelowThreshold())
}

// --- Post-commit effects ---

type recordingNotifier struct {
	movements []InventoryMovement
	lowStock  []WarehouseSummary
}

func (n *recordingNotifier) MovementsRecorded(_ context.Context, movements []InventoryMovement) {
	n.movements = append(n.movements, movements...)
}

func (n *recordingNotifier) LowStock(_ context.Context, summary WarehouseSummary) {
	n.lowStock = append(n.lowStock, summary)
}

func TestNotifierFiresOnlyAfterCommit(t *testing.T) {
	repo := newFakeRepo()
	notifier := &recordingNotifier{}
	svc := NewService(repo, &fakeTxManager{repo: repo}, WithNotifier(notifier))
	tp := newTuple()
	ctx := context.Background()

	req := tp.in(id.New(), 10)
	threshold := int64(8)
	req.LowStockThreshold = &threshold
	_, err := svc.StockIn(ctx, req)
	require.NoError(t, err)
	assert.Len(t, notifier.movements, 1)
	assert.Empty(t, notifier.lowStock, "no low-stock signal while above threshold")

	_, err = svc.StockOut(ctx, tp.out(5))
	require.NoError(t, err)
	assert.Len(t, notifier.movements, 2)
	require.Len(t, notifier.lowStock, 1)
	assert.Equal(t, int64(5), notifier.lowStock[0].QuantityOnHand)

	// Failed operation publishes nothing.
	_, err = svc.StockOut(ctx, tp.out(100))
	require.Error(t, err)
	assert.Len(t, notifier.movements, 2)
	assert.Len(t, notifier.lowStock, 1)
}

type recordingCache struct {
	store       map[SummaryKey]int64
	invalidated int
}

func (c *recordingCache) GetOnHand(_ context.Context, key SummaryKey) (int64, bool) {
	qty, ok := c.store[key]
	return qty, ok
}

func (c *recordingCache) SetOnHand(_ context.Context, key SummaryKey, quantity int64) {
	c.store[key] = quantity
}

func (c *recordingCache) Invalidate(_ context.Context, key SummaryKey) {
	delete(c.store, key)
	c.invalidated++
}

func TestAvailabilityUsesCache(t *testing.T) {
	repo := newFakeRepo()
	cache := &recordingCache{store: map[SummaryKey]int64{}}
	svc := NewService(repo, &fakeTxManager{repo: repo}, WithAvailabilityCache(cache))
	tp := newTuple()
	ctx := context.Background()

	stockIn(t, svc, tp.in(id.New(), 10))
	assert.Equal(t, 1, cache.invalidated, "stock-in invalidates the tuple")

	qty, err := svc.Availability(ctx, tp.key())
	require.NoError(t, err)
	assert.Equal(t, int64(10), qty)
	assert.Equal(t, int64(10), cache.store[tp.key()], "read-through populates the cache")

	// Cached value is served even if the store is bypassed.
	cache.store[tp.key()] = 42
	qty, err = svc.Availability(ctx, tp.key())
	require.NoError(t, err)
	assert.Equal(t, int64(42), qty)

	_, err = svc.StockOut(ctx, tp.out(3))
	require.NoError(t, err)
	_, ok := cache.store[tp.key()]
	assert.False(t, ok, "stock-out invalidates the tuple")
}
