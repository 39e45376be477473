package inventory

import (
	"context"
	"errors"
	"time"

	"stocklot/internal/core/id"
)

// ErrInsufficientLocationStock signals that a single ledger row cannot absorb
// the requested decrement. It is internal to the allocation engine: the engine
// moves to the next candidate row, and only surfaces INSUFFICIENT_STOCK to the
// caller when no candidates remain.
var ErrInsufficientLocationStock = errors.New("insufficient stock on location row")

// Thresholds carries optional threshold overrides for a summary upsert.
// Overrides are last-write-wins when supplied.
type Thresholds struct {
	LowStock *int64
	Reorder  *int64
}

// MovementFilter narrows movement log reads.
type MovementFilter struct {
	WarehouseID *id.ID
	ProductID   *id.ID
	VariationID *id.ID
	Type        *MovementType
	FromDate    *time.Time
	ToDate      *time.Time
	Limit       int
	Offset      int
}

// Repository defines storage operations for the inventory ledger.
//
// All mutating methods must be called inside a transaction opened by the
// allocation engine; locks acquired here are held until that transaction
// commits or rolls back.
type Repository interface {
	// Location ledger

	// UpsertLocation finds the row matching the composite key and locks it
	// for update, or creates it with quantity zero. The returned row reflects
	// the locked state.
	UpsertLocation(ctx context.Context, key LocationKey) (*LocationStock, error)

	// AdjustLocationQuantity adds delta to a locked row's quantity and returns
	// (before, after). Returns ErrInsufficientLocationStock when the decrement
	// would take the row below zero.
	AdjustLocationQuantity(ctx context.Context, locationID id.ID, delta int64) (before, after int64, err error)

	// LockCandidates selects and locks all rows with quantity > 0 for the
	// tuple, ordered expiry_date ascending with nulls last, then id ascending
	// (FEFO with FIFO tie-break).
	LockCandidates(ctx context.Context, key SummaryKey) ([]LocationStock, error)

	// ApplyDeductions decrements each planned row in one round-trip. Every
	// row must already be locked by LockCandidates.
	ApplyDeductions(ctx context.Context, deductions []Deduction) error

	// ListLocations returns all rows for the tuple without locking.
	ListLocations(ctx context.Context, key SummaryKey) ([]LocationStock, error)

	// Warehouse summary

	// UpsertSummaryAdjust finds or creates the summary row, adds onHandDelta
	// to quantity_on_hand, and applies threshold overrides when supplied.
	UpsertSummaryAdjust(ctx context.Context, key SummaryKey, onHandDelta int64, thresholds Thresholds) (*WarehouseSummary, error)

	// GetSummary returns the summary row for the tuple, or a zero-quantity
	// summary when none exists yet.
	GetSummary(ctx context.Context, key SummaryKey) (*WarehouseSummary, error)

	// ListBelowThreshold returns summaries with quantity_on_hand below their
	// low_stock_threshold, optionally limited to one warehouse.
	ListBelowThreshold(ctx context.Context, warehouseID *id.ID) ([]WarehouseSummary, error)

	// Movement log

	// RecordMovements appends movement entries and fills their IDs and
	// timestamps. No update or delete is exposed anywhere.
	RecordMovements(ctx context.Context, movements []*InventoryMovement) error

	// ListMovements reads the movement log.
	ListMovements(ctx context.Context, filter MovementFilter) ([]InventoryMovement, error)
}

// Deduction is one planned decrement against a locked location row.
type Deduction struct {
	LocationID id.ID
	Quantity   int64
}
