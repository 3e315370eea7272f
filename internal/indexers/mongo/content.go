// Package mongo implements projection.Indexer against MongoDB read models,
// the way the teacher's mongodb adapters persist denormalized documents
// behind an idempotent upsert.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rustokhq/eventpipeline/internal/events"
)

// ContentDocument is the read model for a published content node in one
// locale. Indexed by (node_id, locale) so a NodeDeleted can remove every
// locale's copy in one call and a TranslationUpdated only ever touches its
// own locale's document.
type ContentDocument struct {
	NodeID     string    `bson:"node_id"`
	Locale     string    `bson:"locale"`
	Kind       string    `bson:"kind,omitempty"`
	Title      string    `bson:"title,omitempty"`
	Body       string    `bson:"body,omitempty"`
	Published  bool      `bson:"published"`
	CategoryID string    `bson:"category_id,omitempty"`
	Tags       []string  `bson:"tags,omitempty"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

// NodeTranslation is one locale's authoritative content for a node, as
// re-read from the system of record during IndexOne/ReindexAll.
type NodeTranslation struct {
	Title     string
	Body      string
	Published bool
}

// NodeSnapshot is the authoritative state of a content node, read fresh at
// reindex time rather than assembled from event history — projectors
// derive their state by re-reading, per §9's note on Node.version.
type NodeSnapshot struct {
	NodeID       string
	Kind         string
	CategoryID   string
	TagIDs       []string
	Deleted      bool
	Translations map[string]NodeTranslation
}

// NodeSource is the external collaborator (the node domain service's
// read path) that lets a ContentIndexer rebuild a document without relying
// on any single event. It is intentionally the only place this package
// depends on something outside the event pipeline's own scope.
type NodeSource interface {
	Node(ctx context.Context, nodeID string) (NodeSnapshot, error)
	AllNodeIDs(ctx context.Context) ([]string, error)
}

// ContentIndexer projects node/translation/tag/category events into the
// content_documents collection.
type ContentIndexer struct {
	collection *mongo.Collection
	source     NodeSource
}

// NewContentIndexer builds a ContentIndexer over the given collection.
// source may be nil for deployments that only ever run the event-driven
// Handle path and never call IndexOne/ReindexAll (e.g. tests).
func NewContentIndexer(collection *mongo.Collection, source NodeSource) *ContentIndexer {
	return &ContentIndexer{collection: collection, source: source}
}

func (i *ContentIndexer) Name() string { return "content" }

// Handle upserts or removes the content_documents row(s) affected by event.
// Every branch is idempotent: replaying the same event twice converges on
// the same document state rather than compounding a side effect like tag
// list growth.
func (i *ContentIndexer) Handle(ctx context.Context, env events.EventEnvelope, event events.DomainEvent) error {
	switch e := event.(type) {
	case events.NodeCreated:
		return i.upsert(ctx, e.NodeID.String(), e.Locale, bson.M{
			"kind":       e.Kind,
			"title":      e.Title,
			"updated_at": env.OccurredAt,
		})

	case events.TranslationUpdated:
		return i.upsert(ctx, e.NodeID.String(), e.Locale, bson.M{
			"body":       e.Body,
			"updated_at": env.OccurredAt,
		})

	case events.NodePublished:
		return i.upsert(ctx, e.NodeID.String(), e.Locale, bson.M{
			"published":  true,
			"updated_at": env.OccurredAt,
		})

	case events.CategoryChanged:
		_, err := i.collection.UpdateMany(ctx,
			bson.M{"node_id": e.NodeID.String()},
			bson.M{"$set": bson.M{"category_id": e.NewCategoryID.String(), "updated_at": env.OccurredAt}},
		)

		return err

	case events.TagAttached:
		_, err := i.collection.UpdateMany(ctx,
			bson.M{"node_id": e.NodeID.String()},
			bson.M{"$addToSet": bson.M{"tags": e.TagID.String()}, "$set": bson.M{"updated_at": env.OccurredAt}},
		)

		return err

	case events.TagDetached:
		_, err := i.collection.UpdateMany(ctx,
			bson.M{"node_id": e.NodeID.String()},
			bson.M{"$pull": bson.M{"tags": e.TagID.String()}, "$set": bson.M{"updated_at": env.OccurredAt}},
		)

		return err

	case events.NodeDeleted:
		_, err := i.collection.DeleteMany(ctx, bson.M{"node_id": e.NodeID.String()})
		return err

	default:
		return nil
	}
}

func (i *ContentIndexer) upsert(ctx context.Context, nodeID, locale string, set bson.M) error {
	set["node_id"] = nodeID
	set["locale"] = locale

	_, err := i.collection.UpdateOne(ctx,
		bson.M{"node_id": nodeID, "locale": locale},
		bson.M{"$set": set},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("content indexer upsert: %w", err)
	}

	return nil
}

// IndexOne rebuilds every locale's document for nodeID by re-reading the
// node from source, rather than trusting any single buffered event.
func (i *ContentIndexer) IndexOne(ctx context.Context, nodeID string) error {
	if i.source == nil {
		return fmt.Errorf("content indexer: no node source configured for reindex")
	}

	snap, err := i.source.Node(ctx, nodeID)
	if err != nil {
		return fmt.Errorf("content indexer: read node %s: %w", nodeID, err)
	}

	if snap.Deleted {
		return i.RemoveOne(ctx, nodeID)
	}

	for locale := range snap.Translations {
		if err := i.writeSnapshotLocale(ctx, snap, locale); err != nil {
			return err
		}
	}

	return nil
}

// IndexLocale rebuilds only nodeID's locale document.
func (i *ContentIndexer) IndexLocale(ctx context.Context, nodeID, locale string) error {
	if i.source == nil {
		return fmt.Errorf("content indexer: no node source configured for reindex")
	}

	snap, err := i.source.Node(ctx, nodeID)
	if err != nil {
		return fmt.Errorf("content indexer: read node %s: %w", nodeID, err)
	}

	if snap.Deleted {
		return i.RemoveLocale(ctx, nodeID, locale)
	}

	if _, ok := snap.Translations[locale]; !ok {
		return i.RemoveLocale(ctx, nodeID, locale)
	}

	return i.writeSnapshotLocale(ctx, snap, locale)
}

func (i *ContentIndexer) writeSnapshotLocale(ctx context.Context, snap NodeSnapshot, locale string) error {
	tr := snap.Translations[locale]

	return i.upsert(ctx, snap.NodeID, locale, bson.M{
		"kind":        snap.Kind,
		"category_id": snap.CategoryID,
		"tags":        snap.TagIDs,
		"title":       tr.Title,
		"body":        tr.Body,
		"published":   tr.Published,
		"updated_at":  time.Now().UTC(),
	})
}

// RemoveOne deletes every locale document for nodeID.
func (i *ContentIndexer) RemoveOne(ctx context.Context, nodeID string) error {
	_, err := i.collection.DeleteMany(ctx, bson.M{"node_id": nodeID})
	return err
}

// RemoveLocale deletes only nodeID's locale document.
func (i *ContentIndexer) RemoveLocale(ctx context.Context, nodeID, locale string) error {
	_, err := i.collection.DeleteOne(ctx, bson.M{"node_id": nodeID, "locale": locale})
	return err
}

// ReindexAll rebuilds the content_documents collection from every node
// source reports, for the operator "reindex everything" recovery path.
func (i *ContentIndexer) ReindexAll(ctx context.Context) (int, error) {
	if i.source == nil {
		return 0, fmt.Errorf("content indexer: no node source configured for reindex")
	}

	ids, err := i.source.AllNodeIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("content indexer: list node ids: %w", err)
	}

	processed := 0

	for _, id := range ids {
		if err := i.IndexOne(ctx, id); err != nil {
			return processed, fmt.Errorf("content indexer: reindex node %s: %w", id, err)
		}

		processed++
	}

	return processed, nil
}
