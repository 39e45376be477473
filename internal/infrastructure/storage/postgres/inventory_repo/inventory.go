// Package inventory_repo provides the PostgreSQL implementation of the
// inventory ledger repository.
package inventory_repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"stocklot/internal/core/id"
	"stocklot/internal/domain/inventory"
	"stocklot/internal/infrastructure/storage/postgres"
)

const (
	locationsTable = "inventory_locations"
	summaryTable   = "warehouse_inventory"
	movementsTable = "inventory_movements"
)

var locationColumns = []string{
	"id", "warehouse_id", "bin_id", "product_id", "variation_id",
	"batch_number", "expiry_date", "quantity", "created_at", "updated_at",
}

var summaryColumns = []string{
	"warehouse_id", "product_id", "variation_id",
	"quantity_on_hand", "quantity_allocated", "quantity_on_hold",
	"low_stock_threshold", "reorder_quantity", "created_at", "updated_at",
}

var movementColumns = []string{
	"id", "mover_id", "warehouse_id", "bin_id", "product_id", "variation_id",
	"batch_number", "expiry_date", "movement_type",
	"quantity_change", "quantity_before", "quantity_after", "notes", "created_at",
}

// Repo implements inventory.Repository.
type Repo struct {
	builder   squirrel.StatementBuilderType
	txManager *postgres.TxManager
	batch     *postgres.BatchExecutor
}

// NewRepo creates a new inventory repository.
func NewRepo(txManager *postgres.TxManager) *Repo {
	return &Repo{
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		txManager: txManager,
		batch:     postgres.NewBatchExecutor(txManager),
	}
}

// UpsertLocation finds and locks the row matching the composite key, or
// creates it with quantity zero. Expiry comparison uses IS NOT DISTINCT FROM
// so a NULL expiry matches the no-expiry row, not nothing.
func (r *Repo) UpsertLocation(ctx context.Context, key inventory.LocationKey) (*inventory.LocationStock, error) {
	sql := `
		SELECT id, warehouse_id, bin_id, product_id, variation_id,
		       batch_number, expiry_date, quantity, created_at, updated_at
		FROM inventory_locations
		WHERE warehouse_id = $1 AND bin_id = $2 AND product_id = $3
		  AND variation_id = $4 AND batch_number = $5
		  AND expiry_date IS NOT DISTINCT FROM $6
		FOR UPDATE
	`

	querier := r.txManager.GetQuerier(ctx)

	var loc inventory.LocationStock
	err := pgxscan.Get(ctx, querier, &loc, sql,
		key.WarehouseID, key.BinID, key.ProductID, key.VariationID,
		key.BatchNumber, key.ExpiryDate,
	)
	if err == nil {
		return &loc, nil
	}
	if !pgxscan.NotFound(err) {
		return nil, fmt.Errorf("lock location: %w", err)
	}

	// First stock-in for this key. The insert holds the row lock for the rest
	// of the transaction; a concurrent first insert loses on the identity
	// index and surfaces as a retryable conflict.
	now := time.Now().UTC()
	loc = inventory.LocationStock{
		ID:          id.New(),
		WarehouseID: key.WarehouseID,
		BinID:       key.BinID,
		ProductID:   key.ProductID,
		VariationID: key.VariationID,
		BatchNumber: key.BatchNumber,
		ExpiryDate:  key.ExpiryDate,
		Quantity:    0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	q := r.builder.Insert(locationsTable).
		Columns(locationColumns...).
		Values(
			loc.ID, loc.WarehouseID, loc.BinID, loc.ProductID, loc.VariationID,
			loc.BatchNumber, loc.ExpiryDate, loc.Quantity, loc.CreatedAt, loc.UpdatedAt,
		)

	insertSQL, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert: %w", err)
	}

	if _, err := querier.Exec(ctx, insertSQL, args...); err != nil {
		return nil, fmt.Errorf("insert location: %w", err)
	}

	return &loc, nil
}

// AdjustLocationQuantity adds delta to a locked row and returns (before, after).
// The WHERE guard keeps the row from ever going negative; when it fires on a
// decrement the caller gets ErrInsufficientLocationStock.
func (r *Repo) AdjustLocationQuantity(ctx context.Context, locationID id.ID, delta int64) (int64, int64, error) {
	sql := `
		UPDATE inventory_locations
		SET quantity = quantity + $1, updated_at = now()
		WHERE id = $2 AND quantity + $1 >= 0
		RETURNING quantity
	`

	querier := r.txManager.GetQuerier(ctx)

	var after int64
	if err := querier.QueryRow(ctx, sql, delta, locationID).Scan(&after); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, inventory.ErrInsufficientLocationStock
		}
		return 0, 0, fmt.Errorf("adjust location quantity: %w", err)
	}

	return after - delta, after, nil
}

// LockCandidates selects and locks the deduction candidates in picking order:
// soonest expiry first with nulls last, then id ascending (UUIDv7, so
// insertion order) as the FIFO tie-break.
func (r *Repo) LockCandidates(ctx context.Context, key inventory.SummaryKey) ([]inventory.LocationStock, error) {
	sql := `
		SELECT id, warehouse_id, bin_id, product_id, variation_id,
		       batch_number, expiry_date, quantity, created_at, updated_at
		FROM inventory_locations
		WHERE warehouse_id = $1 AND product_id = $2 AND variation_id = $3
		  AND quantity > 0
		ORDER BY expiry_date ASC NULLS LAST, id ASC
		FOR UPDATE
	`

	querier := r.txManager.GetQuerier(ctx)

	var rows []inventory.LocationStock
	if err := pgxscan.Select(ctx, querier, &rows, sql, key.WarehouseID, key.ProductID, key.VariationID); err != nil {
		return nil, fmt.Errorf("lock candidates: %w", err)
	}

	return rows, nil
}

// ApplyDeductions decrements the planned rows in a single round-trip.
func (r *Repo) ApplyDeductions(ctx context.Context, deductions []inventory.Deduction) error {
	if len(deductions) == 0 {
		return nil
	}

	queries := make([]postgres.BatchQuery, 0, len(deductions))
	for _, d := range deductions {
		queries = append(queries, postgres.BatchQuery{
			SQL: `
				UPDATE inventory_locations
				SET quantity = quantity - $1, updated_at = now()
				WHERE id = $2 AND quantity >= $1
			`,
			Args: []any{d.Quantity, d.LocationID},
		})
	}

	affected, err := r.batch.ExecuteBatch(ctx, queries)
	if err != nil {
		return fmt.Errorf("apply deductions: %w", err)
	}

	for i, n := range affected {
		if n != 1 {
			return fmt.Errorf("deduct location %s: %w", deductions[i].LocationID, inventory.ErrInsufficientLocationStock)
		}
	}

	return nil
}

// ListLocations returns all rows for the tuple in picking order.
func (r *Repo) ListLocations(ctx context.Context, key inventory.SummaryKey) ([]inventory.LocationStock, error) {
	q := r.listLocationsQuery(key)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []inventory.LocationStock
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select locations: %w", err)
	}

	return rows, nil
}

func (r *Repo) listLocationsQuery(key inventory.SummaryKey) squirrel.SelectBuilder {
	return r.builder.Select(locationColumns...).
		From(locationsTable).
		Where(squirrel.Eq{
			"warehouse_id": key.WarehouseID,
			"product_id":   key.ProductID,
			"variation_id": key.VariationID,
		}).
		OrderBy("expiry_date ASC NULLS LAST", "id ASC")
}

// UpsertSummaryAdjust finds or creates the summary row and applies the
// on-hand delta. Threshold overrides are last-write-wins when supplied.
func (r *Repo) UpsertSummaryAdjust(ctx context.Context, key inventory.SummaryKey, onHandDelta int64, thresholds inventory.Thresholds) (*inventory.WarehouseSummary, error) {
	sql := `
		INSERT INTO warehouse_inventory (
			warehouse_id, product_id, variation_id,
			quantity_on_hand, quantity_allocated, quantity_on_hold,
			low_stock_threshold, reorder_quantity, created_at, updated_at
		) VALUES ($1, $2, $3, $4, 0, 0, COALESCE($5, 0), COALESCE($6, 0), now(), now())
		ON CONFLICT (warehouse_id, product_id, variation_id) DO UPDATE SET
			quantity_on_hand    = warehouse_inventory.quantity_on_hand + EXCLUDED.quantity_on_hand,
			low_stock_threshold = COALESCE($5, warehouse_inventory.low_stock_threshold),
			reorder_quantity    = COALESCE($6, warehouse_inventory.reorder_quantity),
			updated_at          = now()
		RETURNING warehouse_id, product_id, variation_id,
		          quantity_on_hand, quantity_allocated, quantity_on_hold,
		          low_stock_threshold, reorder_quantity, created_at, updated_at
	`

	querier := r.txManager.GetQuerier(ctx)

	var summary inventory.WarehouseSummary
	err := pgxscan.Get(ctx, querier, &summary, sql,
		key.WarehouseID, key.ProductID, key.VariationID,
		onHandDelta, thresholds.LowStock, thresholds.Reorder,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert summary: %w", err)
	}

	return &summary, nil
}

// GetSummary returns the summary for the tuple, or a zero-quantity summary
// when none exists yet.
func (r *Repo) GetSummary(ctx context.Context, key inventory.SummaryKey) (*inventory.WarehouseSummary, error) {
	q := r.builder.Select(summaryColumns...).
		From(summaryTable).
		Where(squirrel.Eq{
			"warehouse_id": key.WarehouseID,
			"product_id":   key.ProductID,
			"variation_id": key.VariationID,
		}).Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var summary inventory.WarehouseSummary
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &summary, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return &inventory.WarehouseSummary{
				WarehouseID: key.WarehouseID,
				ProductID:   key.ProductID,
				VariationID: key.VariationID,
			}, nil
		}
		return nil, fmt.Errorf("get summary: %w", err)
	}

	return &summary, nil
}

// ListBelowThreshold returns summaries under their low-stock threshold.
func (r *Repo) ListBelowThreshold(ctx context.Context, warehouseID *id.ID) ([]inventory.WarehouseSummary, error) {
	q := r.listBelowThresholdQuery(warehouseID)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var summaries []inventory.WarehouseSummary
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &summaries, sql, args...); err != nil {
		return nil, fmt.Errorf("select summaries: %w", err)
	}

	return summaries, nil
}

func (r *Repo) listBelowThresholdQuery(warehouseID *id.ID) squirrel.SelectBuilder {
	q := r.builder.Select(summaryColumns...).
		From(summaryTable).
		Where(squirrel.Gt{"low_stock_threshold": int64(0)}).
		Where("quantity_on_hand < low_stock_threshold")

	if warehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *warehouseID})
	}

	return q.OrderBy("warehouse_id", "product_id", "variation_id")
}

// RecordMovements appends movement entries and fills their IDs and timestamps.
func (r *Repo) RecordMovements(ctx context.Context, movements []*inventory.InventoryMovement) error {
	if len(movements) == 0 {
		return nil
	}

	q := r.builder.Insert(movementsTable).Columns(
		"mover_id", "warehouse_id", "bin_id", "product_id", "variation_id",
		"batch_number", "expiry_date", "movement_type",
		"quantity_change", "quantity_before", "quantity_after", "notes",
	)

	for _, m := range movements {
		q = q.Values(
			m.MoverID, m.WarehouseID, m.BinID, m.ProductID, m.VariationID,
			m.BatchNumber, m.ExpiryDate, m.MovementType,
			m.QuantityChange, m.QuantityBefore, m.QuantityAfter, m.Notes,
		)
	}
	q = q.Suffix("RETURNING id, created_at")

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	rows, err := querier.Query(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("insert movements: %w", err)
	}
	defer rows.Close()

	// RETURNING preserves the VALUES order for a plain multi-row insert.
	i := 0
	for rows.Next() {
		if err := rows.Scan(&movements[i].ID, &movements[i].CreatedAt); err != nil {
			return fmt.Errorf("scan movement id: %w", err)
		}
		i++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("insert movements: %w", err)
	}
	if i != len(movements) {
		return fmt.Errorf("insert movements: expected %d rows, got %d", len(movements), i)
	}

	return nil
}

// ListMovements reads the movement log, newest first.
func (r *Repo) ListMovements(ctx context.Context, filter inventory.MovementFilter) ([]inventory.InventoryMovement, error) {
	q := r.listMovementsQuery(filter)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var movements []inventory.InventoryMovement
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}

	return movements, nil
}

func (r *Repo) listMovementsQuery(filter inventory.MovementFilter) squirrel.SelectBuilder {
	q := r.builder.Select(movementColumns...).From(movementsTable)

	if filter.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *filter.WarehouseID})
	}
	if filter.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *filter.ProductID})
	}
	if filter.VariationID != nil {
		q = q.Where(squirrel.Eq{"variation_id": *filter.VariationID})
	}
	if filter.Type != nil {
		q = q.Where(squirrel.Eq{"movement_type": *filter.Type})
	}
	if filter.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.FromDate})
	}
	if filter.ToDate != nil {
		q = q.Where(squirrel.LtOrEq{"created_at": *filter.ToDate})
	}

	q = q.OrderBy("id DESC")

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	return q
}

// Ensure interface compliance.
var _ inventory.Repository = (*Repo)(nil)
