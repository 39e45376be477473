// Package broker publishes inventory events to Kafka.
//
// Publication is best-effort and happens after commit: a broker outage never
// fails a committed stock operation, it is only logged.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"stocklot/internal/domain/inventory"
	"stocklot/pkg/logger"
)

// Producer publishes inventory events.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer creates a new Kafka producer.
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}

	return &Producer{writer: writer}
}

// Close closes the producer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

// publish marshals and writes one event keyed by the summary tuple, so all
// events for a tuple land in the same partition in order.
func (p *Producer) publish(ctx context.Context, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  time.Now(),
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}

	return nil
}

// MovementsRecorded implements inventory.Notifier.
func (p *Producer) MovementsRecorded(ctx context.Context, movements []inventory.InventoryMovement) {
	for _, m := range movements {
		event := newMovementEvent(m)
		key := fmt.Sprintf("%s:%s:%s", m.WarehouseID, m.ProductID, m.VariationID)
		if err := p.publish(ctx, key, event); err != nil {
			logger.Warn(ctx, "failed to publish movement event",
				"movement_id", m.ID,
				"error", err,
			)
		}
	}
}

// LowStock implements inventory.Notifier.
func (p *Producer) LowStock(ctx context.Context, summary inventory.WarehouseSummary) {
	event := newLowStockEvent(summary)
	key := fmt.Sprintf("%s:%s:%s", summary.WarehouseID, summary.ProductID, summary.VariationID)
	if err := p.publish(ctx, key, event); err != nil {
		logger.Warn(ctx, "failed to publish low-stock event",
			"warehouse_id", summary.WarehouseID,
			"product_id", summary.ProductID,
			"error", err,
		)
	}
}

// Ensure interface compliance.
var _ inventory.Notifier = (*Producer)(nil)
