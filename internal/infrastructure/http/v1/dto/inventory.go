package dto

import (
	"time"

	"stocklot/internal/core/apperror"
	"stocklot/internal/core/id"
	"stocklot/internal/domain/inventory"
)

// --- Stock In ---

// StockInRequest receives quantity into one exact location.
type StockInRequest struct {
	WarehouseID       string `json:"warehouseId" binding:"required"`
	BinID             string `json:"binId" binding:"required"`
	ProductID         string `json:"productId" binding:"required"`
	VariationID       string `json:"variationId"`
	Quantity          int64  `json:"quantity" binding:"required,gt=0"`
	BatchNumber       string `json:"batchNumber"`
	ExpiryDate        string `json:"expiryDate"`
	MovementType      string `json:"movementType" binding:"required"`
	LowStockThreshold *int64 `json:"lowStockThreshold"`
	ReorderQuantity   *int64 `json:"reorderQuantity"`
	Notes             string `json:"notes"`
}

// ToEntity converts the request into the domain form. The mover comes from the
// authenticated context, never from the body.
func (r *StockInRequest) ToEntity(moverID id.ID) (inventory.StockInRequest, error) {
	warehouseID, err := id.Parse(r.WarehouseID)
	if err != nil {
		return inventory.StockInRequest{}, apperror.NewValidation("invalid warehouse id").WithDetail("field", "warehouseId")
	}
	binID, err := id.Parse(r.BinID)
	if err != nil {
		return inventory.StockInRequest{}, apperror.NewValidation("invalid bin id").WithDetail("field", "binId")
	}
	productID, err := id.Parse(r.ProductID)
	if err != nil {
		return inventory.StockInRequest{}, apperror.NewValidation("invalid product id").WithDetail("field", "productId")
	}

	variationID := id.Nil()
	if r.VariationID != "" {
		variationID, err = id.Parse(r.VariationID)
		if err != nil {
			return inventory.StockInRequest{}, apperror.NewValidation("invalid variation id").WithDetail("field", "variationId")
		}
	}

	var expiry *time.Time
	if r.ExpiryDate != "" {
		parsed, err := time.Parse("2006-01-02", r.ExpiryDate)
		if err != nil {
			return inventory.StockInRequest{}, apperror.NewValidation("invalid expiry date, expected YYYY-MM-DD").WithDetail("field", "expiryDate")
		}
		expiry = &parsed
	}

	return inventory.StockInRequest{
		WarehouseID:       warehouseID,
		BinID:             binID,
		ProductID:         productID,
		VariationID:       variationID,
		Quantity:          r.Quantity,
		BatchNumber:       r.BatchNumber,
		ExpiryDate:        expiry,
		MovementType:      inventory.MovementType(r.MovementType),
		LowStockThreshold: r.LowStockThreshold,
		ReorderQuantity:   r.ReorderQuantity,
		Notes:             r.Notes,
		MoverID:           moverID,
	}, nil
}

// --- Stock Out ---

// StockOutRequest deducts quantity from a tuple. No bin or batch is named;
// allocation picks locations expiry-first.
type StockOutRequest struct {
	WarehouseID  string `json:"warehouseId" binding:"required"`
	ProductID    string `json:"productId" binding:"required"`
	VariationID  string `json:"variationId"`
	Quantity     int64  `json:"quantity" binding:"required,gt=0"`
	MovementType string `json:"movementType" binding:"required"`
	Notes        string `json:"notes"`
}

// ToEntity converts the request into the domain form.
func (r *StockOutRequest) ToEntity(moverID id.ID) (inventory.StockOutRequest, error) {
	warehouseID, err := id.Parse(r.WarehouseID)
	if err != nil {
		return inventory.StockOutRequest{}, apperror.NewValidation("invalid warehouse id").WithDetail("field", "warehouseId")
	}
	productID, err := id.Parse(r.ProductID)
	if err != nil {
		return inventory.StockOutRequest{}, apperror.NewValidation("invalid product id").WithDetail("field", "productId")
	}

	variationID := id.Nil()
	if r.VariationID != "" {
		variationID, err = id.Parse(r.VariationID)
		if err != nil {
			return inventory.StockOutRequest{}, apperror.NewValidation("invalid variation id").WithDetail("field", "variationId")
		}
	}

	return inventory.StockOutRequest{
		WarehouseID:  warehouseID,
		ProductID:    productID,
		VariationID:  variationID,
		Quantity:     r.Quantity,
		MovementType: inventory.MovementType(r.MovementType),
		Notes:        r.Notes,
		MoverID:      moverID,
	}, nil
}

// --- Responses ---

// LocationResponse is one location ledger row.
type LocationResponse struct {
	ID          string     `json:"id"`
	WarehouseID string     `json:"warehouseId"`
	BinID       string     `json:"binId"`
	ProductID   string     `json:"productId"`
	VariationID string     `json:"variationId,omitempty"`
	BatchNumber string     `json:"batchNumber,omitempty"`
	ExpiryDate  *string    `json:"expiryDate,omitempty"`
	Quantity    int64      `json:"quantity"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// FromLocation converts a domain location row.
func FromLocation(l inventory.LocationStock) LocationResponse {
	resp := LocationResponse{
		ID:          l.ID.String(),
		WarehouseID: l.WarehouseID.String(),
		BinID:       l.BinID.String(),
		ProductID:   l.ProductID.String(),
		BatchNumber: l.BatchNumber,
		Quantity:    l.Quantity,
		UpdatedAt:   l.UpdatedAt,
	}
	if !id.IsNil(l.VariationID) {
		resp.VariationID = l.VariationID.String()
	}
	if l.ExpiryDate != nil {
		formatted := l.ExpiryDate.Format("2006-01-02")
		resp.ExpiryDate = &formatted
	}
	return resp
}

// SummaryResponse is one warehouse summary row.
type SummaryResponse struct {
	WarehouseID       string    `json:"warehouseId"`
	ProductID         string    `json:"productId"`
	VariationID       string    `json:"variationId,omitempty"`
	QuantityOnHand    int64     `json:"quantityOnHand"`
	QuantityAllocated int64     `json:"quantityAllocated"`
	QuantityOnHold    int64     `json:"quantityOnHold"`
	LowStockThreshold int64     `json:"lowStockThreshold"`
	ReorderQuantity   int64     `json:"reorderQuantity"`
	BelowThreshold    bool      `json:"belowThreshold"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// FromSummary converts a domain summary row.
func FromSummary(s inventory.WarehouseSummary) SummaryResponse {
	resp := SummaryResponse{
		WarehouseID:       s.WarehouseID.String(),
		ProductID:         s.ProductID.String(),
		QuantityOnHand:    s.QuantityOnHand,
		QuantityAllocated: s.QuantityAllocated,
		QuantityOnHold:    s.QuantityOnHold,
		LowStockThreshold: s.LowStockThreshold,
		ReorderQuantity:   s.ReorderQuantity,
		BelowThreshold:    s.BelowThreshold(),
		UpdatedAt:         s.UpdatedAt,
	}
	if !id.IsNil(s.VariationID) {
		resp.VariationID = s.VariationID.String()
	}
	return resp
}

// MovementResponse is one movement log entry.
type MovementResponse struct {
	ID             int64     `json:"id"`
	MoverID        string    `json:"moverId"`
	WarehouseID    string    `json:"warehouseId"`
	BinID          string    `json:"binId"`
	ProductID      string    `json:"productId"`
	VariationID    string    `json:"variationId,omitempty"`
	BatchNumber    string    `json:"batchNumber,omitempty"`
	ExpiryDate     *string   `json:"expiryDate,omitempty"`
	MovementType   string    `json:"movementType"`
	QuantityChange int64     `json:"quantityChange"`
	QuantityBefore int64     `json:"quantityBefore"`
	QuantityAfter  int64     `json:"quantityAfter"`
	Notes          string    `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// FromMovement converts a domain movement entry.
func FromMovement(m inventory.InventoryMovement) MovementResponse {
	resp := MovementResponse{
		ID:             m.ID,
		MoverID:        m.MoverID.String(),
		WarehouseID:    m.WarehouseID.String(),
		BinID:          m.BinID.String(),
		ProductID:      m.ProductID.String(),
		BatchNumber:    m.BatchNumber,
		MovementType:   string(m.MovementType),
		QuantityChange: m.QuantityChange,
		QuantityBefore: m.QuantityBefore,
		QuantityAfter:  m.QuantityAfter,
		Notes:          m.Notes,
		CreatedAt:      m.CreatedAt,
	}
	if !id.IsNil(m.VariationID) {
		resp.VariationID = m.VariationID.String()
	}
	if m.ExpiryDate != nil {
		formatted := m.ExpiryDate.Format("2006-01-02")
		resp.ExpiryDate = &formatted
	}
	return resp
}

// StockInResponse returns the three records touched by a receipt.
type StockInResponse struct {
	Location LocationResponse `json:"location"`
	Summary  SummaryResponse  `json:"summary"`
	Movement MovementResponse `json:"movement"`
}

// FromStockInResult converts a stock-in result.
func FromStockInResult(r *inventory.StockInResult) StockInResponse {
	return StockInResponse{
		Location: FromLocation(r.Location),
		Summary:  FromSummary(r.Summary),
		Movement: FromMovement(r.Movement),
	}
}

// StockOutResponse returns every location touched by a deduction, the updated
// summary, and one movement per touched location.
type StockOutResponse struct {
	Locations []LocationResponse `json:"locations"`
	Summary   SummaryResponse    `json:"summary"`
	Movements []MovementResponse `json:"movements"`
}

// FromStockOutResult converts a stock-out result.
func FromStockOutResult(r *inventory.StockOutResult) StockOutResponse {
	locations := make([]LocationResponse, len(r.Locations))
	for i, l := range r.Locations {
		locations[i] = FromLocation(l)
	}
	movements := make([]MovementResponse, len(r.Movements))
	for i, m := range r.Movements {
		movements[i] = FromMovement(m)
	}
	return StockOutResponse{
		Locations: locations,
		Summary:   FromSummary(r.Summary),
		Movements: movements,
	}
}

// AvailabilityResponse is the summary fast-path answer.
type AvailabilityResponse struct {
	WarehouseID    string `json:"warehouseId"`
	ProductID      string `json:"productId"`
	VariationID    string `json:"variationId,omitempty"`
	QuantityOnHand int64  `json:"quantityOnHand"`
}
