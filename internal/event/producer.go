package event

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kryzelc/poybash-furniture-sub001/internal/domain"
	pkgkafka "github.com/kryzelc/poybash-furniture-sub001/pkg/kafka"
	"github.com/kryzelc/poybash-furniture-sub001/pkg/logger"
)

// Kafka topic constants for furniture core domain events.
const (
	TopicInventoryUpdated   = "furniture.inventory.updated"
	TopicOrderCreated       = "furniture.order.created"
	TopicOrderStatusChanged = "furniture.order.status_changed"
	TopicOrderRefunded      = "furniture.order.refunded"
)

// Aggregate type constants.
const (
	AggregateTypeStock = "warehouse_stock"
	AggregateTypeOrder = "order"
)

// SourceFurnitureCore identifies events originating from this service.
const SourceFurnitureCore = "furniture-core"

// Publisher is satisfied by *pkgkafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// NopPublisher drops every event. It is used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, *pkgkafka.Event) error { return nil }

// RecordingPublisher keeps published events in memory.
type RecordingPublisher struct {
	mu     sync.Mutex
	events map[string][]*pkgkafka.Event
}

// NewRecordingPublisher creates an empty RecordingPublisher.
func NewRecordingPublisher() *RecordingPublisher {
	return &RecordingPublisher{events: make(map[string][]*pkgkafka.Event)}
}

func (r *RecordingPublisher) Publish(_ context.Context, topic string, e *pkgkafka.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[topic] = append(r.events[topic], e)
	return nil
}

// Events returns what was published to topic.
func (r *RecordingPublisher) Events(topic string) []*pkgkafka.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*pkgkafka.Event(nil), r.events[topic]...)
}

// StockUpdatedData is the payload for an inventory.updated event.
type StockUpdatedData struct {
	ProductID int64  `json:"product_id"`
	VariantID string `json:"variant_id"`
	Warehouse string `json:"warehouse"`
	Operation string `json:"operation"`
	Delta     int    `json:"delta"`
	Quantity  int    `json:"quantity"`
	Reserved  int    `json:"reserved"`
	Available int    `json:"available"`
	LowStock  bool   `json:"low_stock"`
}

// OrderCreatedData is the payload for an order.created event.
type OrderCreatedData struct {
	OrderID        string             `json:"order_id"`
	UserID         *string            `json:"user_id"`
	Status         string             `json:"status"`
	Total          int64              `json:"total"`
	ReservationFee int64              `json:"reservation_fee"`
	Items          []domain.OrderItem `json:"items"`
}

// OrderStatusChangedData is the payload for an order.status_changed event.
type OrderStatusChangedData struct {
	OrderID   string `json:"order_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
	ChangedBy string `json:"changed_by"`
	Role      string `json:"role"`
}

// OrderRefundedData is the payload for an order.refunded event.
type OrderRefundedData struct {
	OrderID       string `json:"order_id"`
	Amount        int64  `json:"amount"`
	Method        string `json:"method"`
	Full          bool   `json:"full"`
	ItemsRefunded []int  `json:"items_refunded,omitempty"`
	ProcessedBy   string `json:"processed_by"`
}

// Producer publishes furniture core domain events.
type Producer struct {
	publisher         Publisher
	logger            *slog.Logger
	lowStockThreshold int
}

// NewProducer creates a new event producer. Stock updates leaving at most
// lowStockThreshold units available are flagged as low stock.
func NewProducer(publisher Publisher, logger *slog.Logger, lowStockThreshold int) *Producer {
	return &Producer{
		publisher:         publisher,
		logger:            logger,
		lowStockThreshold: lowStockThreshold,
	}
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	evt, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, SourceFurnitureCore, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		evt.WithCorrelationID(id)
	}

	if err := p.publisher.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}

// PublishStockUpdated publishes an inventory.updated event for one ledger mutation.
func (p *Producer) PublishStockUpdated(ctx context.Context, stock *domain.WarehouseStock, operation string, delta int) error {
	available := stock.Available()
	data := StockUpdatedData{
		ProductID: stock.ProductID,
		VariantID: stock.VariantID,
		Warehouse: string(stock.Warehouse),
		Operation: operation,
		Delta:     delta,
		Quantity:  stock.Quantity,
		Reserved:  stock.Reserved,
		Available: available,
		LowStock:  available <= p.lowStockThreshold,
	}
	return p.publish(ctx, TopicInventoryUpdated, stock.StockKey.String(), AggregateTypeStock, data)
}

// PublishOrderCreated publishes an order.created event.
func (p *Producer) PublishOrderCreated(ctx context.Context, o *domain.Order) error {
	data := OrderCreatedData{
		OrderID:        o.ID,
		UserID:         o.UserID,
		Status:         string(o.Status),
		Total:          o.Total,
		ReservationFee: o.ReservationFee,
		Items:          o.Items,
	}
	return p.publish(ctx, TopicOrderCreated, o.ID, AggregateTypeOrder, data)
}

// PublishOrderStatusChanged publishes an order.status_changed event.
func (p *Producer) PublishOrderStatusChanged(ctx context.Context, o *domain.Order, oldStatus domain.OrderStatus, actor domain.Actor) error {
	data := OrderStatusChangedData{
		OrderID:   o.ID,
		OldStatus: string(oldStatus),
		NewStatus: string(o.Status),
		ChangedBy: actor.UserID,
		Role:      string(actor.Role),
	}
	return p.publish(ctx, TopicOrderStatusChanged, o.ID, AggregateTypeOrder, data)
}

// PublishOrderRefunded publishes an order.refunded event.
func (p *Producer) PublishOrderRefunded(ctx context.Context, o *domain.Order) error {
	if o.Refund == nil {
		return fmt.Errorf("order %s has no refund details", o.ID)
	}
	data := OrderRefundedData{
		OrderID:       o.ID,
		Amount:        o.Refund.RefundAmount,
		Method:        o.Refund.RefundMethod,
		Full:          o.Refund.IsFull(),
		ItemsRefunded: o.Refund.ItemsRefunded,
		ProcessedBy:   o.Refund.ProcessedBy.UserID,
	}
	return p.publish(ctx, TopicOrderRefunded, o.ID, AggregateTypeOrder, data)
}
