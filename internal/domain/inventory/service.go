package inventory

import (
	"context"
	"errors"
	"fmt"

	"stocklot/internal/core/apperror"
	"stocklot/internal/core/id"
	"stocklot/internal/core/tx"
	"stocklot/internal/metrics"
	"stocklot/pkg/logger"
)

// Notifier receives best-effort signals after a committed operation.
// Failures are logged and never affect the committed transaction.
type Notifier interface {
	MovementsRecorded(ctx context.Context, movements []InventoryMovement)
	LowStock(ctx context.Context, summary WarehouseSummary)
}

// AvailabilityCache caches on-hand quantities for the summary fast path.
type AvailabilityCache interface {
	GetOnHand(ctx context.Context, key SummaryKey) (int64, bool)
	SetOnHand(ctx context.Context, key SummaryKey, quantity int64)
	Invalidate(ctx context.Context, key SummaryKey)
}

// Service is the allocation engine. It is the only writer of the location
// ledger and the warehouse summary, and the only producer of movement log
// entries. Every operation runs as one atomic transaction.
type Service struct {
	repo      Repository
	txManager tx.Manager
	notifier  Notifier
	cache     AvailabilityCache
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithNotifier attaches a post-commit event sink.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithAvailabilityCache attaches a read cache for on-hand quantities.
func WithAvailabilityCache(c AvailabilityCache) Option {
	return func(s *Service) { s.cache = c }
}

// NewService creates a new allocation engine service.
func NewService(repo Repository, txManager tx.Manager, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		txManager: txManager,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StockIn receives quantity into the exact location row named by the request,
// increments the matching summary, and appends one movement entry. All three
// effects apply atomically or not at all.
func (s *Service) StockIn(ctx context.Context, req StockInRequest) (*StockInResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var result StockInResult
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		loc, before, after, summary, err := s.creditLocation(ctx, req)
		if err != nil {
			return err
		}

		movement := &InventoryMovement{
			MoverID:        req.MoverID,
			WarehouseID:    loc.WarehouseID,
			BinID:          loc.BinID,
			ProductID:      loc.ProductID,
			VariationID:    loc.VariationID,
			BatchNumber:    loc.BatchNumber,
			ExpiryDate:     loc.ExpiryDate,
			MovementType:   req.MovementType,
			QuantityChange: req.Quantity,
			QuantityBefore: before,
			QuantityAfter:  after,
			Notes:          req.Notes,
		}
		if err := s.repo.RecordMovements(ctx, []*InventoryMovement{movement}); err != nil {
			return fmt.Errorf("record movement: %w", err)
		}

		result = StockInResult{Location: *loc, Summary: *summary, Movement: *movement}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.StockInTotal.WithLabelValues(string(req.MovementType)).Inc()
	logger.Info(ctx, "stock received",
		"warehouse_id", req.WarehouseID,
		"product_id", req.ProductID,
		"quantity", req.Quantity,
		"movement_type", req.MovementType,
	)

	s.afterCommit(ctx, result.Summary, []InventoryMovement{result.Movement})
	return &result, nil
}

// StockOut deducts quantity from the tuple's locations expiry-first, then
// insertion order, appending one movement per touched row and decrementing the
// summary once. A request that cannot be fully satisfied rolls back entirely
// and fails with INSUFFICIENT_STOCK.
func (s *Service) StockOut(ctx context.Context, req StockOutRequest) (*StockOutResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var result StockOutResult
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		locations, movements, summary, err := s.debitLocations(ctx, req)
		if err != nil {
			return err
		}

		if err := s.repo.RecordMovements(ctx, movements); err != nil {
			return fmt.Errorf("record movements: %w", err)
		}

		result = StockOutResult{
			Locations: locations,
			Summary:   *summary,
			Movements: make([]InventoryMovement, len(movements)),
		}
		for i, m := range movements {
			result.Movements[i] = *m
		}
		return nil
	})
	if err != nil {
		if apperror.IsInsufficientStock(err) {
			metrics.StockOutInsufficientTotal.Inc()
		}
		return nil, err
	}

	metrics.StockOutTotal.WithLabelValues(string(req.MovementType)).Inc()
	logger.Info(ctx, "stock deducted",
		"warehouse_id", req.WarehouseID,
		"product_id", req.ProductID,
		"quantity", req.Quantity,
		"locations", len(result.Locations),
		"movement_type", req.MovementType,
	)

	s.afterCommit(ctx, result.Summary, result.Movements)
	return &result, nil
}

// creditLocation is the stock-in half of the ledger/summary pairing: it
// upserts and increments the exact location row and applies the matching
// summary delta in the same transaction. Never exposed separately.
func (s *Service) creditLocation(ctx context.Context, req StockInRequest) (*LocationStock, int64, int64, *WarehouseSummary, error) {
	loc, err := s.repo.UpsertLocation(ctx, req.LocationKey())
	if err != nil {
		return nil, 0, 0, nil, fmt.Errorf("upsert location: %w", err)
	}

	before, after, err := s.repo.AdjustLocationQuantity(ctx, loc.ID, req.Quantity)
	if err != nil {
		return nil, 0, 0, nil, fmt.Errorf("increment location: %w", err)
	}
	loc.Quantity = after

	summary, err := s.repo.UpsertSummaryAdjust(ctx, req.LocationKey().SummaryKey(), req.Quantity, Thresholds{
		LowStock: req.LowStockThreshold,
		Reorder:  req.ReorderQuantity,
	})
	if err != nil {
		return nil, 0, 0, nil, fmt.Errorf("adjust summary: %w", err)
	}

	return loc, before, after, summary, nil
}

// debitLocations is the stock-out half of the pairing: it locks the FEFO/FIFO
// candidate rows, walks them with partial takes, applies all deductions, and
// decrements the summary once by the full requested amount. Never exposed
// separately.
func (s *Service) debitLocations(ctx context.Context, req StockOutRequest) ([]LocationStock, []*InventoryMovement, *WarehouseSummary, error) {
	key := req.SummaryKey()

	candidates, err := s.repo.LockCandidates(ctx, key)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("lock candidates: %w", err)
	}

	remaining := req.Quantity
	var (
		locations  []LocationStock
		movements  []*InventoryMovement
		deductions []Deduction
	)

	for i := range candidates {
		if remaining == 0 {
			break
		}
		row := candidates[i]

		take := remaining
		if take > row.Quantity {
			take = row.Quantity
		}
		if take == 0 {
			continue
		}

		before := row.Quantity
		row.Quantity -= take
		remaining -= take

		deductions = append(deductions, Deduction{LocationID: row.ID, Quantity: take})
		locations = append(locations, row)
		movements = append(movements, &InventoryMovement{
			MoverID:        req.MoverID,
			WarehouseID:    row.WarehouseID,
			BinID:          row.BinID,
			ProductID:      row.ProductID,
			VariationID:    row.VariationID,
			BatchNumber:    row.BatchNumber,
			ExpiryDate:     row.ExpiryDate,
			MovementType:   req.MovementType,
			QuantityChange: -take,
			QuantityBefore: before,
			QuantityAfter:  before - take,
			Notes:          req.Notes,
		})
	}

	if remaining > 0 {
		available := req.Quantity - remaining
		return nil, nil, nil, apperror.NewInsufficientStock(req.ProductID.String(), req.Quantity, available)
	}

	if err := s.repo.ApplyDeductions(ctx, deductions); err != nil {
		if errors.Is(err, ErrInsufficientLocationStock) {
			// Candidate rows are locked; a shrunk row here means the lock
			// protocol was violated at the storage layer.
			return nil, nil, nil, apperror.NewConcurrencyConflict("location row changed under lock").WithCause(err)
		}
		return nil, nil, nil, fmt.Errorf("apply deductions: %w", err)
	}

	summary, err := s.repo.UpsertSummaryAdjust(ctx, key, -req.Quantity, Thresholds{})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("adjust summary: %w", err)
	}

	return locations, movements, summary, nil
}

// afterCommit runs best-effort post-commit effects: cache invalidation and
// event publication.
func (s *Service) afterCommit(ctx context.Context, summary WarehouseSummary, movements []InventoryMovement) {
	key := SummaryKey{
		WarehouseID: summary.WarehouseID,
		ProductID:   summary.ProductID,
		VariationID: summary.VariationID,
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, key)
	}

	if s.notifier == nil {
		return
	}
	s.notifier.MovementsRecorded(ctx, movements)
	if summary.BelowThreshold() {
		metrics.LowStockSignalsTotal.Inc()
		s.notifier.LowStock(ctx, summary)
	}
}

// Availability returns the on-hand quantity for a tuple from the summary fast
// path, consulting the cache first.
func (s *Service) Availability(ctx context.Context, key SummaryKey) (int64, error) {
	if s.cache != nil {
		if qty, ok := s.cache.GetOnHand(ctx, key); ok {
			return qty, nil
		}
	}

	summary, err := s.repo.GetSummary(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("get summary: %w", err)
	}

	if s.cache != nil {
		s.cache.SetOnHand(ctx, key, summary.QuantityOnHand)
	}
	return summary.QuantityOnHand, nil
}

// ListBelowThreshold returns the low-stock signal for replenishment consumers.
func (s *Service) ListBelowThreshold(ctx context.Context, warehouseID *id.ID) ([]WarehouseSummary, error) {
	return s.repo.ListBelowThreshold(ctx, warehouseID)
}

// ListLocations returns the per-bin breakdown for a tuple.
func (s *Service) ListLocations(ctx context.Context, key SummaryKey) ([]LocationStock, error) {
	return s.repo.ListLocations(ctx, key)
}

// MovementHistory reads the movement log.
func (s *Service) MovementHistory(ctx context.Context, filter MovementFilter) ([]InventoryMovement, error) {
	return s.repo.ListMovements(ctx, filter)
}
