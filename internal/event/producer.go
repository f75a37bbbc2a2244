package event

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/utafrali/RelistGo/internal/domain"
	pkgkafka "github.com/utafrali/RelistGo/pkg/kafka"
)

// Topics for relist domain events, named <prefix>.<domain>.<action>.
var (
	TopicProductHarvested    = pkgkafka.Topic("product", "harvested")
	TopicProductMaterialized = pkgkafka.Topic("product", "materialized")
	TopicProductRegistered   = pkgkafka.Topic("product", "registered")
	TopicRegistrationFailed  = pkgkafka.Topic("product", "registration_failed")
	TopicProductDeleted      = pkgkafka.Topic("product", "deleted")
	TopicCategoryUpdated     = pkgkafka.Topic("category", "updated")
)

// Aggregate type constants.
const (
	AggregateTypeProduct  = "product"
	AggregateTypeCategory = "category"
)

// Source identifier for events originating from the relist service.
const SourceRelistService = "relist-service"

// ProductHarvestedData is the payload for a product.harvested event.
// One event is published per completed harvest page.
type ProductHarvestedData struct {
	Query    string `json:"query"`
	Page     int    `json:"page"`
	Upserted int    `json:"upserted"`
	Skipped  int    `json:"skipped"`
}

// ProductMaterializedData is the payload for a product.materialized event.
type ProductMaterializedData struct {
	ItemNumber   string `json:"item_number"`
	Title        string `json:"title"`
	ImageCount   int    `json:"image_count"`
	VariantCount int    `json:"variant_count"`
}

// ProductRegisteredData is the payload for a product.registered event.
type ProductRegisteredData struct {
	ItemNumber string `json:"item_number"`
	Update     bool   `json:"update"`
}

// RegistrationFailedData is the payload for a product.registration_failed event.
type RegistrationFailedData struct {
	ItemNumber string `json:"item_number"`
	Reason     string `json:"reason"`
}

// ProductDeletedData is the payload for a product.deleted event.
type ProductDeletedData struct {
	ItemNumber string `json:"item_number"`
}

// CategoryUpdatedData is the payload for a category.updated event.
type CategoryUpdatedData struct {
	ID           int64  `json:"id"`
	CategoryName string `json:"category_name"`
	Action       string `json:"action"`
}

// Producer publishes relist domain events to Kafka. A Producer with a
// nil Kafka handle is a no-op, which keeps publishing optional in
// deployments that run without a broker.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the relist service.
// kafka may be nil when event publishing is disabled.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

func (p *Producer) disabled() bool {
	return p == nil || p.kafka == nil
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	if p.disabled() {
		return nil
	}

	event, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, SourceRelistService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)

	return nil
}

// PublishProductHarvested publishes a product.harvested event for one
// harvest page.
func (p *Producer) PublishProductHarvested(ctx context.Context, query string, page, upserted, skipped int) error {
	data := ProductHarvestedData{
		Query:    query,
		Page:     page,
		Upserted: upserted,
		Skipped:  skipped,
	}
	return p.publish(ctx, TopicProductHarvested, query, AggregateTypeProduct, data)
}

// PublishProductMaterialized publishes a product.materialized event.
func (p *Producer) PublishProductMaterialized(ctx context.Context, product *domain.CanonicalProduct) error {
	data := ProductMaterializedData{
		ItemNumber:   product.ItemNumber,
		Title:        product.Title,
		ImageCount:   len(product.Images),
		VariantCount: len(product.Variants),
	}
	return p.publish(ctx, TopicProductMaterialized, product.ItemNumber, AggregateTypeProduct, data)
}

// PublishProductRegistered publishes a product.registered event.
func (p *Producer) PublishProductRegistered(ctx context.Context, itemNumber string, update bool) error {
	data := ProductRegisteredData{ItemNumber: itemNumber, Update: update}
	return p.publish(ctx, TopicProductRegistered, itemNumber, AggregateTypeProduct, data)
}

// PublishRegistrationFailed publishes a product.registration_failed event.
func (p *Producer) PublishRegistrationFailed(ctx context.Context, itemNumber, reason string) error {
	data := RegistrationFailedData{ItemNumber: itemNumber, Reason: reason}
	return p.publish(ctx, TopicRegistrationFailed, itemNumber, AggregateTypeProduct, data)
}

// PublishProductDeleted publishes a product.deleted event.
func (p *Producer) PublishProductDeleted(ctx context.Context, itemNumber string) error {
	data := ProductDeletedData{ItemNumber: itemNumber}
	return p.publish(ctx, TopicProductDeleted, itemNumber, AggregateTypeProduct, data)
}

// PublishCategoryUpdated publishes a category.updated event. action is
// one of "created", "updated" or "deleted".
func (p *Producer) PublishCategoryUpdated(ctx context.Context, category *domain.Category, action string) error {
	data := CategoryUpdatedData{
		ID:           category.ID,
		CategoryName: category.CategoryName,
		Action:       action,
	}
	return p.publish(ctx, TopicCategoryUpdated, strconv.FormatInt(category.ID, 10), AggregateTypeCategory, data)
}
