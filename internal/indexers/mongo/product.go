package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rustokhq/eventpipeline/internal/events"
)

// ProductDocument is the read model for a commerce product, indexed by
// product_id only (no locale dimension).
type ProductDocument struct {
	ProductID      string `bson:"product_id"`
	SKU            string `bson:"sku,omitempty"`
	Name           string `bson:"name,omitempty"`
	InventoryLevel int    `bson:"inventory_level"`
	Price          string `bson:"price,omitempty"`
	Currency       string `bson:"currency,omitempty"`
}

// ProductSnapshot is the authoritative state of a commerce product, read
// fresh at reindex time.
type ProductSnapshot struct {
	ProductID      string
	SKU            string
	Name           string
	InventoryLevel int
	Price          string
	Currency       string
	Deleted        bool
}

// ProductSource is the external collaborator (the product domain
// service's read path) a ProductIndexer uses to rebuild a document without
// relying on any single event.
type ProductSource interface {
	Product(ctx context.Context, productID string) (ProductSnapshot, error)
	AllProductIDs(ctx context.Context) ([]string, error)
}

// ProductIndexer projects product/inventory/price events into the
// product_documents collection.
type ProductIndexer struct {
	collection *mongo.Collection
	source     ProductSource
}

// NewProductIndexer builds a ProductIndexer over the given collection.
// source may be nil for deployments that only ever run the event-driven
// Handle path.
func NewProductIndexer(collection *mongo.Collection, source ProductSource) *ProductIndexer {
	return &ProductIndexer{collection: collection, source: source}
}

func (i *ProductIndexer) Name() string { return "product" }

func (i *ProductIndexer) Handle(ctx context.Context, env events.EventEnvelope, event events.DomainEvent) error {
	switch e := event.(type) {
	case events.ProductCreated:
		return i.upsert(ctx, e.ProductID.String(), bson.M{
			"sku":  e.SKU,
			"name": e.Name,
		})

	case events.InventoryUpdated:
		return i.upsert(ctx, e.ProductID.String(), bson.M{
			"inventory_level": e.NewLevel,
		})

	case events.PriceUpdated:
		return i.upsert(ctx, e.ProductID.String(), bson.M{
			"price":    e.NewPrice.String(),
			"currency": e.Currency,
		})

	default:
		return nil
	}
}

func (i *ProductIndexer) upsert(ctx context.Context, productID string, set bson.M) error {
	set["product_id"] = productID

	_, err := i.collection.UpdateOne(ctx,
		bson.M{"product_id": productID},
		bson.M{"$set": set},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("product indexer upsert: %w", err)
	}

	return nil
}

// IndexOne rebuilds productID's document by re-reading it from source.
func (i *ProductIndexer) IndexOne(ctx context.Context, productID string) error {
	if i.source == nil {
		return fmt.Errorf("product indexer: no product source configured for reindex")
	}

	snap, err := i.source.Product(ctx, productID)
	if err != nil {
		return fmt.Errorf("product indexer: read product %s: %w", productID, err)
	}

	if snap.Deleted {
		return i.RemoveOne(ctx, productID)
	}

	return i.upsert(ctx, productID, bson.M{
		"sku":             snap.SKU,
		"name":            snap.Name,
		"inventory_level": snap.InventoryLevel,
		"price":           snap.Price,
		"currency":        snap.Currency,
	})
}

// IndexLocale has no locale dimension for products, so it is equivalent
// to IndexOne.
func (i *ProductIndexer) IndexLocale(ctx context.Context, productID, _ string) error {
	return i.IndexOne(ctx, productID)
}

// RemoveOne deletes productID's document.
func (i *ProductIndexer) RemoveOne(ctx context.Context, productID string) error {
	_, err := i.collection.DeleteOne(ctx, bson.M{"product_id": productID})
	return err
}

// RemoveLocale has no locale dimension for products, so it is equivalent
// to RemoveOne.
func (i *ProductIndexer) RemoveLocale(ctx context.Context, productID, _ string) error {
	return i.RemoveOne(ctx, productID)
}

// ReindexAll rebuilds the product_documents collection from every product
// source reports.
func (i *ProductIndexer) ReindexAll(ctx context.Context) (int, error) {
	if i.source == nil {
		return 0, fmt.Errorf("product indexer: no product source configured for reindex")
	}

	ids, err := i.source.AllProductIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("product indexer: list product ids: %w", err)
	}

	processed := 0

	for _, id := range ids {
		if err := i.IndexOne(ctx, id); err != nil {
			return processed, fmt.Errorf("product indexer: reindex product %s: %w", id, err)
		}

		processed++
	}

	return processed, nil
}
