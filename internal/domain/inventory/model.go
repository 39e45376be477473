// Package inventory provides the warehouse inventory ledger and allocation engine.
//
// Three entities form one consistency unit: LocationStock (per-bin, per-batch
// quantities), WarehouseSummary (denormalized per warehouse/product/variation
// aggregate) and InventoryMovement (append-only audit trail). Every mutation
// to a location row is paired in the same transaction with the matching delta
// on its summary row, so QuantityOnHand always equals the sum of location
// quantities for the tuple.
package inventory

import (
	"time"

	"stocklot/internal/core/apperror"
	"stocklot/internal/core/id"
)

// MovementType classifies a quantity change in the movement log.
type MovementType string

const (
	MovementPurchase    MovementType = "purchase"
	MovementAdjustment  MovementType = "adjustment"
	MovementTransferIn  MovementType = "transfer_in"
	MovementTransferOut MovementType = "transfer_out"
	MovementFound       MovementType = "found"
	MovementSale        MovementType = "sale"
	MovementReturn      MovementType = "return"
	MovementLoss        MovementType = "loss"
	MovementLost        MovementType = "lost"
)

// stockInTypes are the movement types accepted for stock-in requests.
var stockInTypes = map[MovementType]bool{
	MovementPurchase:   true,
	MovementAdjustment: true,
	MovementTransferIn: true,
	MovementFound:      true,
}

// stockOutTypes are the movement types accepted for stock-out requests.
var stockOutTypes = map[MovementType]bool{
	MovementSale:        true,
	MovementReturn:      true,
	MovementAdjustment:  true,
	MovementTransferOut: true,
	MovementLoss:        true,
	MovementLost:        true,
}

// LocationKey is the composite identity of a location ledger row.
// Distinct batches or expiry dates for the same product/bin are distinct rows.
// VariationID is the nil UUID and BatchNumber the empty string when absent.
type LocationKey struct {
	WarehouseID id.ID
	BinID       id.ID
	ProductID   id.ID
	VariationID id.ID
	BatchNumber string
	ExpiryDate  *time.Time
}

// SummaryKey identifies a warehouse summary row.
type SummaryKey struct {
	WarehouseID id.ID
	ProductID   id.ID
	VariationID id.ID
}

// SummaryKey returns the summary tuple this location row aggregates into.
func (k LocationKey) SummaryKey() SummaryKey {
	return SummaryKey{
		WarehouseID: k.WarehouseID,
		ProductID:   k.ProductID,
		VariationID: k.VariationID,
	}
}

// LocationStock is one location ledger row: how much of a lot is physically
// in a bin. Rows are never deleted; a zero-quantity row stays valid because
// the same batch may receive future stock-in.
type LocationStock struct {
	ID          id.ID      `db:"id" json:"id"`
	WarehouseID id.ID      `db:"warehouse_id" json:"warehouseId"`
	BinID       id.ID      `db:"bin_id" json:"binId"`
	ProductID   id.ID      `db:"product_id" json:"productId"`
	VariationID id.ID      `db:"variation_id" json:"variationId"`
	BatchNumber string     `db:"batch_number" json:"batchNumber,omitempty"`
	ExpiryDate  *time.Time `db:"expiry_date" json:"expiryDate,omitempty"`
	Quantity    int64      `db:"quantity" json:"quantity"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`
}

// Key returns the composite identity of the row.
func (l *LocationStock) Key() LocationKey {
	return LocationKey{
		WarehouseID: l.WarehouseID,
		BinID:       l.BinID,
		ProductID:   l.ProductID,
		VariationID: l.VariationID,
		BatchNumber: l.BatchNumber,
		ExpiryDate:  l.ExpiryDate,
	}
}

// WarehouseSummary is the fast-path read model: one row per
// (warehouse, product, variation) maintained incrementally.
type WarehouseSummary struct {
	WarehouseID       id.ID     `db:"warehouse_id" json:"warehouseId"`
	ProductID         id.ID     `db:"product_id" json:"productId"`
	VariationID       id.ID     `db:"variation_id" json:"variationId"`
	QuantityOnHand    int64     `db:"quantity_on_hand" json:"quantityOnHand"`
	QuantityAllocated int64     `db:"quantity_allocated" json:"quantityAllocated"`
	QuantityOnHold    int64     `db:"quantity_on_hold" json:"quantityOnHold"`
	LowStockThreshold int64     `db:"low_stock_threshold" json:"lowStockThreshold"`
	ReorderQuantity   int64     `db:"reorder_quantity" json:"reorderQuantity"`
	CreatedAt         time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time `db:"updated_at" json:"updatedAt"`
}

// BelowThreshold reports whether the summary is under its low-stock threshold.
func (s *WarehouseSummary) BelowThreshold() bool {
	return s.LowStockThreshold > 0 && s.QuantityOnHand < s.LowStockThreshold
}

// InventoryMovement is one immutable movement log entry. A stock-out touching
// several bins produces one entry per bin; quantity_before/after refer to the
// specific location row affected.
type InventoryMovement struct {
	ID             int64        `db:"id" json:"id"`
	MoverID        id.ID        `db:"mover_id" json:"moverId"`
	WarehouseID    id.ID        `db:"warehouse_id" json:"warehouseId"`
	BinID          id.ID        `db:"bin_id" json:"binId"`
	ProductID      id.ID        `db:"product_id" json:"productId"`
	VariationID    id.ID        `db:"variation_id" json:"variationId"`
	BatchNumber    string       `db:"batch_number" json:"batchNumber,omitempty"`
	ExpiryDate     *time.Time   `db:"expiry_date" json:"expiryDate,omitempty"`
	MovementType   MovementType `db:"movement_type" json:"movementType"`
	QuantityChange int64        `db:"quantity_change" json:"quantityChange"`
	QuantityBefore int64        `db:"quantity_before" json:"quantityBefore"`
	QuantityAfter  int64        `db:"quantity_after" json:"quantityAfter"`
	Notes          string       `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time    `db:"created_at" json:"createdAt"`
}

// Consistent reports the per-row audit invariant:
// quantity_after - quantity_before == quantity_change.
func (m *InventoryMovement) Consistent() bool {
	return m.QuantityAfter-m.QuantityBefore == m.QuantityChange
}

// StockInRequest describes a single-location stock receipt.
type StockInRequest struct {
	WarehouseID       id.ID
	BinID             id.ID
	ProductID         id.ID
	VariationID       id.ID
	Quantity          int64
	BatchNumber       string
	ExpiryDate        *time.Time
	MovementType      MovementType
	LowStockThreshold *int64
	ReorderQuantity   *int64
	Notes             string
	MoverID           id.ID
}

// Validate checks required fields before any transaction opens.
func (r *StockInRequest) Validate() error {
	if id.IsNil(r.WarehouseID) {
		return apperror.NewValidation("warehouse is required").WithDetail("field", "warehouseId")
	}
	if id.IsNil(r.ProductID) {
		return apperror.NewValidation("product is required").WithDetail("field", "productId")
	}
	if r.Quantity <= 0 {
		return apperror.NewValidation("quantity must be positive").WithDetail("field", "quantity")
	}
	if !stockInTypes[r.MovementType] {
		return apperror.NewValidation("movement type not allowed for stock-in").
			WithDetail("field", "movementType").
			WithDetail("value", string(r.MovementType))
	}
	if id.IsNil(r.MoverID) {
		return apperror.NewValidation("mover is required").WithDetail("field", "moverId")
	}
	if r.LowStockThreshold != nil && *r.LowStockThreshold < 0 {
		return apperror.NewValidation("low stock threshold must not be negative").
			WithDetail("field", "lowStockThreshold")
	}
	return nil
}

// LocationKey returns the exact ledger row identity this receipt targets.
func (r *StockInRequest) LocationKey() LocationKey {
	return LocationKey{
		WarehouseID: r.WarehouseID,
		BinID:       r.BinID,
		ProductID:   r.ProductID,
		VariationID: r.VariationID,
		BatchNumber: r.BatchNumber,
		ExpiryDate:  r.ExpiryDate,
	}
}

// StockOutRequest describes a deduction. The caller names no bin or batch;
// the allocation engine picks locations expiry-first, then insertion order.
type StockOutRequest struct {
	WarehouseID  id.ID
	ProductID    id.ID
	VariationID  id.ID
	Quantity     int64
	MovementType MovementType
	Notes        string
	MoverID      id.ID
}

// Validate checks required fields before any transaction opens.
func (r *StockOutRequest) Validate() error {
	if id.IsNil(r.WarehouseID) {
		return apperror.NewValidation("warehouse is required").WithDetail("field", "warehouseId")
	}
	if id.IsNil(r.ProductID) {
		return apperror.NewValidation("product is required").WithDetail("field", "productId")
	}
	if r.Quantity <= 0 {
		return apperror.NewValidation("quantity must be positive").WithDetail("field", "quantity")
	}
	if !stockOutTypes[r.MovementType] {
		return apperror.NewValidation("movement type not allowed for stock-out").
			WithDetail("field", "movementType").
			WithDetail("value", string(r.MovementType))
	}
	if id.IsNil(r.MoverID) {
		return apperror.NewValidation("mover is required").WithDetail("field", "moverId")
	}
	return nil
}

// SummaryKey returns the tuple the deduction is allocated within.
func (r *StockOutRequest) SummaryKey() SummaryKey {
	return SummaryKey{
		WarehouseID: r.WarehouseID,
		ProductID:   r.ProductID,
		VariationID: r.VariationID,
	}
}

// StockInResult holds the three records mutated or created by a stock-in.
type StockInResult struct {
	Location LocationStock     `json:"location"`
	Summary  WarehouseSummary  `json:"summary"`
	Movement InventoryMovement `json:"movement"`
}

// StockOutResult holds the records affected by a stock-out: every touched
// location row, the updated summary, and one movement per touched row.
type StockOutResult struct {
	Locations []LocationStock     `json:"locations"`
	Summary   WarehouseSummary    `json:"summary"`
	Movements []InventoryMovement `json:"movements"`
}
