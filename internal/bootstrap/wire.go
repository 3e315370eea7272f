package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/rustokhq/eventpipeline/internal/consistency"
	"github.com/rustokhq/eventpipeline/internal/eventbus"
	"github.com/rustokhq/eventpipeline/internal/indexers/mongo"
	"github.com/rustokhq/eventpipeline/internal/outbox"
	outboxpg "github.com/rustokhq/eventpipeline/internal/outbox/postgres"
	"github.com/rustokhq/eventpipeline/internal/projection"
	"github.com/rustokhq/eventpipeline/internal/relay"
	"github.com/rustokhq/eventpipeline/internal/tenantcache"
	"github.com/rustokhq/eventpipeline/internal/telemetry"
	"github.com/rustokhq/eventpipeline/internal/transport/memory"
	"github.com/rustokhq/eventpipeline/internal/transport/streaming"
	"github.com/rustokhq/eventpipeline/pkg/mlog"
	"github.com/rustokhq/eventpipeline/pkg/mmigration"
	"github.com/rustokhq/eventpipeline/pkg/mmongo"
	"github.com/rustokhq/eventpipeline/pkg/mpostgres"
	"github.com/rustokhq/eventpipeline/pkg/mrabbitmq"
	"github.com/rustokhq/eventpipeline/pkg/mredis"
	"github.com/rustokhq/eventpipeline/pkg/mzap"
)

// App holds every long-lived component the entrypoint starts and stops.
// It is the event pipeline's equivalent of the teacher's *common.Server
// bundle, just scoped to this module's own components instead of a ledger
// service's handlers.
type App struct {
	Config *Config
	Logger mlog.Logger

	Postgres *mpostgres.Connection
	Mongo    *mmongo.Connection
	Redis    *mredis.Connection
	RabbitMQ *mrabbitmq.Connection

	Metrics   *telemetry.Metrics
	Telemetry *telemetry.Telemetry

	OutboxRepo          outbox.Repository
	Bus                 *eventbus.Bus
	Streaming           *streaming.Transport
	TenantCache         *tenantcache.Cache
	TenantInvalidator   *tenantcache.RedisInvalidator
	TenantManagerClient *tenantcache.RemoteResolver
	Dispatcher          *projection.Dispatcher
	ContentIndexer      *mongo.ContentIndexer
	ProductIndexer      *mongo.ProductIndexer
	RBACAudit           *consistency.RBACAuditRepository
	Relay               *relay.Worker
	Checker             *consistency.Checker
	Migration           *mmigration.MigrationWrapper

	migrationDB   *sql.DB
	HTTPServer    *fiber.App
	projectionSub transportSubscription
}

// transportSubscription is the subset of transport.Subscription App needs
// to tear down the projection consumer group on shutdown.
type transportSubscription interface {
	Unsubscribe() error
}

// migrationLoggerAdapter bridges mlog.Logger (this module's shared logging
// interface) to mmigration.Logger (mmigration's own narrower interface),
// since mmigration was adapted as a standalone teacher package with its own
// Logger contract rather than depending on mlog directly.
type migrationLoggerAdapter struct {
	mlog.Logger
}

func (a migrationLoggerAdapter) Infoln(args ...any)  { a.Logger.Info(args...) }
func (a migrationLoggerAdapter) Warnln(args ...any)  { a.Logger.Warn(args...) }
func (a migrationLoggerAdapter) Errorln(args ...any) { a.Logger.Error(args...) }
func (a migrationLoggerAdapter) Debugln(args ...any) { a.Logger.Debug(args...) }
func (a migrationLoggerAdapter) Fatalln(args ...any) { a.Logger.Fatal(args...) }

func (a migrationLoggerAdapter) WithFields(fields ...any) mmigration.Logger {
	return migrationLoggerAdapter{Logger: a.Logger.WithFields(fields...)}
}

func (a migrationLoggerAdapter) WithDefaultMessageTemplate(string) mmigration.Logger { return a }

// NewApp builds every component described by cfg but does not start any
// background loop; cmd/eventpipeline's main starts them. Building is split from running so
// the admin HTTP router can reference components (outbox repo, metrics,
// migration wrapper) that must already exist before the server starts
// accepting requests.
func NewApp(ctx context.Context, cfg *Config) (*App, error) {
	logger, err := mzap.New(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: build logger: %w", err)
	}

	app := &App{Config: cfg, Logger: logger}

	app.Telemetry, err = telemetry.Init(ctx, telemetry.Config{
		ServiceName:     ApplicationName,
		ServiceVersion:  "dev",
		DeploymentEnv:   cfg.EnvName,
		OTLPEndpoint:    cfg.OtelColExporterEndpoint,
		EnableTelemetry: cfg.OtelColExporterEndpoint != "",
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: init telemetry: %w", err)
	}

	app.Metrics = telemetry.NewMetrics()

	if err := app.connectPostgres(ctx); err != nil {
		return nil, err
	}

	if err := app.runMigrations(ctx); err != nil {
		return nil, err
	}

	if err := app.connectMongo(ctx); err != nil {
		return nil, err
	}

	if err := app.connectRedis(ctx); err != nil {
		return nil, err
	}

	if err := app.connectRabbitMQ(ctx); err != nil {
		return nil, err
	}

	app.OutboxRepo = outboxpg.New(*app.Postgres.DB)

	bestEffort := memory.New(logger, 256)
	app.Bus = eventbus.New(logger, bestEffort, time.Now)

	auditRepo := consistency.NewAuditRepository(*app.Postgres.DB)

	app.Streaming, err = streaming.New(ctx, logger, app.RabbitMQ, streaming.Topology{
		Stream:         cfg.StreamName,
		PartitionCount: cfg.PartitionCount,
	}, auditRepo)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: build streaming transport: %w", err)
	}

	positiveTTL, negativeTTL := cfg.tenantCacheTTLs()

	var tenantResolver tenantcache.Resolver = app.resolveTenant

	if cfg.TenantManagerURL != "" {
		app.TenantManagerClient = tenantcache.NewRemoteResolver(cfg.TenantManagerURL, logger,
			tenantcache.WithCircuitBreaker(cfg.TenantManagerCBFailure, time.Duration(cfg.TenantManagerCBTimeout)*time.Second),
		)
		tenantResolver = app.TenantManagerClient.Resolve

		logger.Infow("tenant cache resolving against remote tenant manager", "url", cfg.TenantManagerURL)
	}

	app.TenantCache = tenantcache.New(logger, tenantResolver, app.Metrics, positiveTTL, negativeTTL)

	redisClient, err := app.Redis.DB(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open redis client: %w", err)
	}

	app.TenantInvalidator = tenantcache.NewRedisInvalidator(redisClient, logger)

	mongoDB, err := app.Mongo.DB(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open mongo database: %w", err)
	}

	app.ContentIndexer = mongo.NewContentIndexer(mongoDB.Collection("content_documents"), app)
	app.ProductIndexer = mongo.NewProductIndexer(mongoDB.Collection("product_documents"), app)

	app.Dispatcher = projection.New(logger, app.Metrics,
		app.ContentIndexer,
		app.ProductIndexer,
		tenantcache.NewInvalidationIndexer(app.TenantCache, app.TenantInvalidator),
	)

	app.Relay = relay.New(logger, app.OutboxRepo, app.Streaming, app.Metrics, "eventpipeline-relay",
		cfg.RelayMaxWorkers,
		relay.WithBatchSize(cfg.RelayBatchSize),
		relay.WithPollInterval(cfg.relayPollInterval()),
	)

	app.RBACAudit = consistency.NewRBACAuditRepository(*app.Postgres.DB)
	app.Checker = consistency.NewChecker(logger, app.OutboxRepo, app.RBACAudit, app.Metrics, 5*time.Minute)

	sub, err := app.Streaming.Subscribe(ctx, "projection-indexers", app.Dispatcher.Dispatch)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: subscribe projection indexers: %w", err)
	}

	app.projectionSub = sub

	reindexers := map[string]projection.Reindexer{
		app.ContentIndexer.Name(): app.ContentIndexer,
		app.ProductIndexer.Name(): app.ProductIndexer,
	}

	app.HTTPServer = NewRouter(logger, app.OutboxRepo, app.RBACAudit, app.ContentIndexer, reindexers, app.Metrics, app.Migration)

	return app, nil
}

func (a *App) connectPostgres(ctx context.Context) error {
	a.Postgres = &mpostgres.Connection{
		ConnectionStringPrimary: a.Config.postgresDSN(a.Config.PostgresPrimaryHost),
		ConnectionStringReplica: a.Config.postgresDSN(firstNonEmpty(a.Config.PostgresReplicaHost, a.Config.PostgresPrimaryHost)),
		MaxOpenConns:            20,
		MaxIdleConns:            5,
	}

	if err := a.Postgres.Connect(ctx); err != nil {
		return fmt.Errorf("bootstrap: connect postgres: %w", err)
	}

	return nil
}

// runMigrations opens a dedicated *sql.DB (mmigration's constructor takes a
// raw *sql.DB, not a dbresolver.DB, since the advisory lock it takes must be
// held on a single connection) and runs the preflight dirty-check before any
// other component touches the schema.
func (a *App) runMigrations(ctx context.Context) error {
	db, err := sql.Open("pgx", a.Config.postgresDSN(a.Config.PostgresPrimaryHost))
	if err != nil {
		return fmt.Errorf("bootstrap: open migration connection: %w", err)
	}

	a.migrationDB = db

	migrationCfg := mmigration.DefaultConfig()
	migrationCfg.Component = ApplicationName
	migrationCfg.MigrationsPath = a.Config.MigrationsPath
	migrationCfg.AutoRecoverDirty = a.Config.AutoRecoverDirty

	wrapper, err := mmigration.NewMigrationWrapper(db, migrationCfg, migrationLoggerAdapter{Logger: a.Logger})
	if err != nil {
		return fmt.Errorf("bootstrap: build migration wrapper: %w", err)
	}

	if err := wrapper.AcquireAdvisoryLock(ctx, db); err != nil {
		return fmt.Errorf("bootstrap: acquire migration lock: %w", err)
	}
	defer wrapper.ReleaseAdvisoryLock(ctx, db)

	if _, err := wrapper.PreflightCheck(ctx, db); err != nil {
		return fmt.Errorf("bootstrap: migration preflight: %w", err)
	}

	a.Migration = wrapper

	return nil
}

func (a *App) connectMongo(ctx context.Context) error {
	a.Mongo = &mmongo.Connection{
		ConnectionString: a.Config.mongoURI(),
		Database:         a.Config.MongoDatabase,
		Logger:           a.Logger,
	}

	return a.Mongo.Connect(ctx)
}

func (a *App) connectRedis(ctx context.Context) error {
	a.Redis = &mredis.Connection{
		ConnectionString: a.Config.redisURL(),
		Logger:           a.Logger,
	}

	return a.Redis.Connect(ctx)
}

func (a *App) connectRabbitMQ(ctx context.Context) error {
	a.RabbitMQ = &mrabbitmq.Connection{
		ConnectionString: a.Config.rabbitMQURL(),
		Logger:           a.Logger,
	}

	return a.RabbitMQ.Connect(ctx)
}

// resolveTenant is the tenantcache.Resolver backing the tenant cache: a
// lookup against the replica connection, kept here rather than in
// tenantcache itself so the SQL stays app-specific and the cache package
// stays storage-agnostic.
func (a *App) resolveTenant(ctx context.Context, key string) (uuid.UUID, error) {
	row := (*a.Postgres.DB).QueryRowContext(ctx, `SELECT id FROM tenants WHERE slug = $1 OR custom_domain = $1`, key)

	var tenantID uuid.UUID

	if scanErr := row.Scan(&tenantID); scanErr != nil {
		if scanErr == sql.ErrNoRows {
			return uuid.Nil, tenantcache.ErrNotFound
		}

		return uuid.Nil, fmt.Errorf("resolve tenant %q: %w", key, scanErr)
	}

	return tenantID, nil
}

// Node implements mongo.NodeSource by re-reading a node and its
// translations from the replica connection, so ContentIndexer.IndexOne can
// rebuild a read-model document without depending on event history.
func (a *App) Node(ctx context.Context, nodeID string) (mongo.NodeSnapshot, error) {
	var snap mongo.NodeSnapshot

	row := (*a.Postgres.DB).QueryRowContext(ctx,
		`SELECT id, kind, category_id, deleted_at IS NOT NULL FROM nodes WHERE id = $1`, nodeID)

	var categoryID sql.NullString

	if err := row.Scan(&snap.NodeID, &snap.Kind, &categoryID, &snap.Deleted); err != nil {
		return mongo.NodeSnapshot{}, fmt.Errorf("bootstrap: read node %s: %w", nodeID, err)
	}

	snap.CategoryID = categoryID.String

	tagRows, err := (*a.Postgres.DB).QueryContext(ctx, `SELECT tag_id FROM node_tags WHERE node_id = $1`, nodeID)
	if err != nil {
		return mongo.NodeSnapshot{}, fmt.Errorf("bootstrap: read node tags %s: %w", nodeID, err)
	}
	defer tagRows.Close()

	for tagRows.Next() {
		var tagID string
		if err := tagRows.Scan(&tagID); err != nil {
			return mongo.NodeSnapshot{}, fmt.Errorf("bootstrap: scan node tag %s: %w", nodeID, err)
		}

		snap.TagIDs = append(snap.TagIDs, tagID)
	}

	trRows, err := (*a.Postgres.DB).QueryContext(ctx,
		`SELECT locale, title, body, published FROM node_translations WHERE node_id = $1`, nodeID)
	if err != nil {
		return mongo.NodeSnapshot{}, fmt.Errorf("bootstrap: read node translations %s: %w", nodeID, err)
	}
	defer trRows.Close()

	snap.Translations = make(map[string]mongo.NodeTranslation)

	for trRows.Next() {
		var (
			locale string
			tr     mongo.NodeTranslation
		)

		if err := trRows.Scan(&locale, &tr.Title, &tr.Body, &tr.Published); err != nil {
			return mongo.NodeSnapshot{}, fmt.Errorf("bootstrap: scan node translation %s: %w", nodeID, err)
		}

		snap.Translations[locale] = tr
	}

	return snap, trRows.Err()
}

// AllNodeIDs implements mongo.NodeSource for the reindex_all backfill path.
func (a *App) AllNodeIDs(ctx context.Context) ([]string, error) {
	rows, err := (*a.Postgres.DB).QueryContext(ctx, `SELECT id FROM nodes WHERE deleted_at IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: list node ids: %w", err)
	}
	defer rows.Close()

	var ids []string

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("bootstrap: scan node id: %w", err)
		}

		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// Product implements mongo.ProductSource by re-reading a product's
// authoritative row.
func (a *App) Product(ctx context.Context, productID string) (mongo.ProductSnapshot, error) {
	var (
		snap  mongo.ProductSnapshot
		price sql.NullString
	)

	row := (*a.Postgres.DB).QueryRowContext(ctx,
		`SELECT id, sku, name, inventory_level, price, currency, deleted_at IS NOT NULL
		 FROM products WHERE id = $1`, productID)

	if err := row.Scan(&snap.ProductID, &snap.SKU, &snap.Name, &snap.InventoryLevel, &price, &snap.Currency, &snap.Deleted); err != nil {
		return mongo.ProductSnapshot{}, fmt.Errorf("bootstrap: read product %s: %w", productID, err)
	}

	snap.Price = price.String

	return snap, nil
}

// AllProductIDs implements mongo.ProductSource for the reindex_all
// backfill path.
func (a *App) AllProductIDs(ctx context.Context) ([]string, error) {
	rows, err := (*a.Postgres.DB).QueryContext(ctx, `SELECT id FROM products WHERE deleted_at IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: list product ids: %w", err)
	}
	defer rows.Close()

	var ids []string

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("bootstrap: scan product id: %w", err)
		}

		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// Close tears down every connection in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	if a.projectionSub != nil {
		_ = a.projectionSub.Unsubscribe()
	}

	if a.RabbitMQ != nil {
		_ = a.RabbitMQ.Close()
	}

	if a.Redis != nil {
		_ = a.Redis.Close()
	}

	if a.Mongo != nil {
		_ = a.Mongo.Close(ctx)
	}

	if a.migrationDB != nil {
		_ = a.migrationDB.Close()
	}

	if a.Postgres != nil {
		_ = a.Postgres.Close()
	}

	return a.Logger.Sync()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
