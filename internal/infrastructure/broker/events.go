package broker

import (
	"time"

	"stocklot/internal/core/id"
	"stocklot/internal/domain/inventory"
)

// Event topics and types published by the inventory service.
const (
	EventTypeMovement = "inventory.movement"
	EventTypeLowStock = "inventory.low_stock"
)

// MovementEvent is emitted once per committed movement log entry.
type MovementEvent struct {
	Type           string     `json:"type"`
	MovementID     int64      `json:"movementId"`
	MoverID        id.ID      `json:"moverId"`
	WarehouseID    id.ID      `json:"warehouseId"`
	BinID          id.ID      `json:"binId"`
	ProductID      id.ID      `json:"productId"`
	VariationID    id.ID      `json:"variationId"`
	MovementType   string     `json:"movementType"`
	QuantityChange int64      `json:"quantityChange"`
	OccurredAt     time.Time  `json:"occurredAt"`
	ExpiryDate     *time.Time `json:"expiryDate,omitempty"`
}

// LowStockEvent signals that a summary dropped below its threshold.
// Replenishment automation is a downstream consumer's concern.
type LowStockEvent struct {
	Type              string    `json:"type"`
	WarehouseID       id.ID     `json:"warehouseId"`
	ProductID         id.ID     `json:"productId"`
	VariationID       id.ID     `json:"variationId"`
	QuantityOnHand    int64     `json:"quantityOnHand"`
	LowStockThreshold int64     `json:"lowStockThreshold"`
	ReorderQuantity   int64     `json:"reorderQuantity"`
	ObservedAt        time.Time `json:"observedAt"`
}

func newMovementEvent(m inventory.InventoryMovement) MovementEvent {
	return MovementEvent{
		Type:           EventTypeMovement,
		MovementID:     m.ID,
		MoverID:        m.MoverID,
		WarehouseID:    m.WarehouseID,
		BinID:          m.BinID,
		ProductID:      m.ProductID,
		VariationID:    m.VariationID,
		MovementType:   string(m.MovementType),
		QuantityChange: m.QuantityChange,
		OccurredAt:     m.CreatedAt,
		ExpiryDate:     m.ExpiryDate,
	}
}

func newLowStockEvent(s inventory.WarehouseSummary) LowStockEvent {
	return LowStockEvent{
		Type:              EventTypeLowStock,
		WarehouseID:       s.WarehouseID,
		ProductID:         s.ProductID,
		VariationID:       s.VariationID,
		QuantityOnHand:    s.QuantityOnHand,
		LowStockThreshold: s.LowStockThreshold,
		ReorderQuantity:   s.ReorderQuantity,
		ObservedAt:        time.Now().UTC(),
	}
}
