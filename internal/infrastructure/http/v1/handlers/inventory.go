package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"stocklot/internal/core/apperror"
	"stocklot/internal/core/id"
	"stocklot/internal/domain/inventory"
	"stocklot/internal/infrastructure/http/v1/dto"
)

// InventoryHandler handles HTTP requests for stock operations.
type InventoryHandler struct {
	*BaseHandler
	service *inventory.Service
}

// NewInventoryHandler creates a new inventory handler.
func NewInventoryHandler(base *BaseHandler, service *inventory.Service) *InventoryHandler {
	return &InventoryHandler{
		BaseHandler: base,
		service:     service,
	}
}

// StockIn receives quantity into an exact location.
// POST /api/v1/inventory/stock-in
func (h *InventoryHandler) StockIn(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.StockInRequest
	if !h.BindJSON(c, &req) {
		return
	}

	domainReq, err := req.ToEntity(h.MoverID(c))
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.service.StockIn(ctx, domainReq)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromStockInResult(result))
}

// StockOut deducts quantity from a tuple, allocating expiry-first.
// POST /api/v1/inventory/stock-out
func (h *InventoryHandler) StockOut(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.StockOutRequest
	if !h.BindJSON(c, &req) {
		return
	}

	domainReq, err := req.ToEntity(h.MoverID(c))
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.service.StockOut(ctx, domainReq)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromStockOutResult(result))
}

// Availability returns the on-hand quantity for a tuple.
// GET /api/v1/inventory/availability?warehouseId=...&productId=...&variationId=...
func (h *InventoryHandler) Availability(c *gin.Context) {
	ctx := c.Request.Context()

	key, err := h.parseSummaryKey(c)
	if err != nil {
		h.Error(c, err)
		return
	}

	qty, err := h.service.Availability(ctx, key)
	if err != nil {
		h.Error(c, err)
		return
	}

	resp := dto.AvailabilityResponse{
		WarehouseID:    key.WarehouseID.String(),
		ProductID:      key.ProductID.String(),
		QuantityOnHand: qty,
	}
	if !id.IsNil(key.VariationID) {
		resp.VariationID = key.VariationID.String()
	}
	h.OK(c, resp)
}

// Locations returns the per-bin breakdown for a tuple.
// GET /api/v1/inventory/locations?warehouseId=...&productId=...&variationId=...
func (h *InventoryHandler) Locations(c *gin.Context) {
	ctx := c.Request.Context()

	key, err := h.parseSummaryKey(c)
	if err != nil {
		h.Error(c, err)
		return
	}

	locations, err := h.service.ListLocations(ctx, key)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.LocationResponse, len(locations))
	for i, l := range locations {
		items[i] = dto.FromLocation(l)
	}
	h.OK(c, dto.NewListResponse(items))
}

// LowStock returns summaries below their low-stock threshold.
// GET /api/v1/inventory/low-stock?warehouseId=...
func (h *InventoryHandler) LowStock(c *gin.Context) {
	ctx := c.Request.Context()

	var warehouseID *id.ID
	if raw := c.Query("warehouseId"); raw != "" {
		parsed, err := id.Parse(raw)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid warehouse id").WithDetail("field", "warehouseId"))
			return
		}
		warehouseID = &parsed
	}

	summaries, err := h.service.ListBelowThreshold(ctx, warehouseID)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.SummaryResponse, len(summaries))
	for i, s := range summaries {
		items[i] = dto.FromSummary(s)
	}
	h.OK(c, dto.NewListResponse(items))
}

// Movements reads the movement log.
// GET /api/v1/inventory/movements
func (h *InventoryHandler) Movements(c *gin.Context) {
	ctx := c.Request.Context()

	filter := inventory.MovementFilter{
		Limit:  h.ParseIntQuery(c, "limit", 50),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}

	if raw := c.Query("warehouseId"); raw != "" {
		parsed, err := id.Parse(raw)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid warehouse id").WithDetail("field", "warehouseId"))
			return
		}
		filter.WarehouseID = &parsed
	}
	if raw := c.Query("productId"); raw != "" {
		parsed, err := id.Parse(raw)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid product id").WithDetail("field", "productId"))
			return
		}
		filter.ProductID = &parsed
	}
	if raw := c.Query("variationId"); raw != "" {
		parsed, err := id.Parse(raw)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid variation id").WithDetail("field", "variationId"))
			return
		}
		filter.VariationID = &parsed
	}
	if raw := c.Query("movementType"); raw != "" {
		mt := inventory.MovementType(raw)
		filter.Type = &mt
	}
	if raw := c.Query("dateFrom"); raw != "" {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.FromDate = &parsed
		}
	}
	if raw := c.Query("dateTo"); raw != "" {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.ToDate = &parsed
		}
	}

	movements, err := h.service.MovementHistory(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.MovementResponse, len(movements))
	for i, m := range movements {
		items[i] = dto.FromMovement(m)
	}
	h.OK(c, dto.NewListResponse(items))
}

func (h *InventoryHandler) parseSummaryKey(c *gin.Context) (inventory.SummaryKey, error) {
	warehouseID, err := id.Parse(c.Query("warehouseId"))
	if err != nil {
		return inventory.SummaryKey{}, apperror.NewValidation("invalid warehouse id").WithDetail("field", "warehouseId")
	}
	productID, err := id.Parse(c.Query("productId"))
	if err != nil {
		return inventory.SummaryKey{}, apperror.NewValidation("invalid product id").WithDetail("field", "productId")
	}

	variationID := id.Nil()
	if raw := c.Query("variationId"); raw != "" {
		variationID, err = id.Parse(raw)
		if err != nil {
			return inventory.SummaryKey{}, apperror.NewValidation("invalid variation id").WithDetail("field", "variationId")
		}
	}

	return inventory.SummaryKey{
		WarehouseID: warehouseID,
		ProductID:   productID,
		VariationID: variationID,
	}, nil
}
