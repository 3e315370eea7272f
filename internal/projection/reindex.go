package projection

import "context"

// Reindexer is the operator-facing half of an Indexer's contract (§4.8):
// targeted rebuild/removal of one entity or locale, and a full rebuild used
// by the backfill command when the consistency checker finds a read-model
// row missing or stale. Handle (from Indexer) serves the hot event path;
// Reindexer serves recovery.
type Reindexer interface {
	Indexer

	// IndexOne rebuilds every read-model row for entityID (all locales,
	// for indexers that have a locale dimension) by re-reading the current
	// authoritative state rather than replaying history.
	IndexOne(ctx context.Context, entityID string) error
	// IndexLocale narrows IndexOne to a single locale, for an indexer that
	// has one; indexers without a locale dimension treat this the same as
	// IndexOne.
	IndexLocale(ctx context.Context, entityID, locale string) error
	// RemoveOne deletes every read-model row for entityID.
	RemoveOne(ctx context.Context, entityID string) error
	// RemoveLocale deletes only entityID's locale row.
	RemoveLocale(ctx context.Context, entityID, locale string) error
	// ReindexAll rebuilds every row this indexer owns and reports how many
	// entities were processed.
	ReindexAll(ctx context.Context) (int, error)
}
