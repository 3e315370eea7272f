package bootstrap

import (
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/google/uuid"

	"github.com/rustokhq/eventpipeline/internal/consistency"
	"github.com/rustokhq/eventpipeline/internal/outbox"
	"github.com/rustokhq/eventpipeline/internal/projection"
	"github.com/rustokhq/eventpipeline/internal/telemetry"
	"github.com/rustokhq/eventpipeline/pkg/mlog"
	"github.com/rustokhq/eventpipeline/pkg/mmigration"
)

// adminDLQListLimit bounds how many DLQ rows a single GET returns; an
// operator paging through more uses the underlying repository directly.
const adminDLQListLimit = 200

// NewRouter builds the admin HTTP surface: DLQ inspection/replay, outbox
// stats, reindex/backfill, Prometheus metrics, and liveness/readiness.
// There is no JWT/tenant auth middleware here, unlike the teacher's public
// API router: this surface is operator-only and expected to sit behind a
// private network or a reverse-proxy auth layer, never exposed the way the
// ledger API is. rbac and staleIndexRepairer may be nil (disables the
// backfill-stale-index route); reindexers maps an indexer's Name() to
// itself for the per-indexer reindex_all route.
func NewRouter(logger mlog.Logger, repo outbox.Repository, rbac *consistency.RBACAuditRepository,
	staleIndexRepairer projection.Reindexer, reindexers map[string]projection.Reindexer,
	metrics *telemetry.Metrics, migration *mmigration.MigrationWrapper,
) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Use(cors.New())

	app.Get("/health", ping)
	app.Get("/ready", readiness(migration))
	app.Get("/version", version)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	admin := app.Group("/admin/events")
	admin.Get("/outbox/stats", outboxStats(repo))
	admin.Get("/dlq", listDLQ(repo))
	admin.Post("/dlq/:id/replay", replayDLQ(logger, repo))
	admin.Post("/backfill/:tenant_id", backfillRoute(logger, repo))
	admin.Post("/reindex/:indexer", reindexAllRoute(reindexers))
	admin.Post("/reindex/:indexer/:entity_id", reindexOneRoute(reindexers))

	if rbac != nil && staleIndexRepairer != nil {
		admin.Post("/backfill-stale-index", backfillStaleIndexRoute(logger, rbac, staleIndexRepairer))
	}

	return app
}

func ping(c *fiber.Ctx) error {
	return c.SendString("healthy")
}

func version(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"version":     os.Getenv("APP_VERSION"),
		"requestDate": time.Now().UTC(),
	})
}

func readiness(migration *mmigration.MigrationWrapper) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if migration == nil || !mmigration.FiberReadinessCheck(migration) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"ready": false})
		}

		return c.JSON(fiber.Map{"ready": true})
	}
}

func outboxStats(repo outbox.Repository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var tenantID *uuid.UUID

		if raw := c.Query("tenant_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid tenant_id"})
			}

			tenantID = &id
		}

		stats, err := repo.Stats(c.Context(), tenantID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}

		return c.JSON(stats)
	}
}

func listDLQ(repo outbox.Repository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var tenantID uuid.UUID

		if raw := c.Query("tenant_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid tenant_id"})
			}

			tenantID = id
		}

		records, err := repo.ListDLQ(c.Context(), tenantID, adminDLQListLimit)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}

		return c.JSON(records)
	}
}

func replayDLQ(logger mlog.Logger, repo outbox.Repository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid id"})
		}

		if err := repo.Requeue(c.Context(), id, time.Now().UTC()); err != nil {
			logger.Errorw("admin: requeue dlq record failed", "outbox_id", id, "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}

		return c.SendStatus(fiber.StatusAccepted)
	}
}

// backfillRoute exposes consistency.Backfill for an operator who wants to
// requeue every orphaned DLQ row for a tenant in one call rather than
// replaying records one at a time.
func backfillRoute(logger mlog.Logger, repo outbox.Repository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tenantID, err := uuid.Parse(c.Params("tenant_id"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid tenant_id"})
		}

		n, err := consistency.Backfill(c.Context(), repo, logger, tenantID, adminDLQListLimit)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}

		return c.JSON(fiber.Map{"requeued": n})
	}
}

// reindexAllRoute exposes Reindexer.ReindexAll for the named indexer, the
// operator recovery path §4.10 calls out for repairing stale read-model
// rows a sweep flagged.
func reindexAllRoute(reindexers map[string]projection.Reindexer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		idx, ok := reindexers[c.Params("indexer")]
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown indexer"})
		}

		processed, err := idx.ReindexAll(c.Context())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}

		return c.JSON(fiber.Map{"indexer": c.Params("indexer"), "rows_processed": processed})
	}
}

// reindexOneRoute exposes Reindexer.IndexOne for a single entity, the
// narrower counterpart to reindexAllRoute for an operator who already knows
// which row is wrong.
func reindexOneRoute(reindexers map[string]projection.Reindexer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		idx, ok := reindexers[c.Params("indexer")]
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown indexer"})
		}

		if err := idx.IndexOne(c.Context(), c.Params("entity_id")); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}

		return c.SendStatus(fiber.StatusAccepted)
	}
}

// backfillStaleIndexRoute repairs consistency audit (c) — content index
// rows missing or older than their node's updated_at — by calling
// IndexOne for every node the audit flags.
func backfillStaleIndexRoute(logger mlog.Logger, rbac *consistency.RBACAuditRepository, indexer projection.Reindexer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		n, err := consistency.BackfillStaleContentIndex(c.Context(), rbac, indexer, logger, adminDLQListLimit)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}

		return c.JSON(fiber.Map{"reindexed": n})
	}
}
