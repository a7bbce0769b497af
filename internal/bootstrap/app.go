package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"justice-backend/internal/agents"
	"justice-backend/internal/benchmark"
	"justice-backend/internal/cases"
	"justice-backend/internal/envelope"
	"justice-backend/internal/events"
	"justice-backend/internal/services/health"
	"justice-backend/internal/shared/config"
	"justice-backend/internal/shared/server"
	"justice-backend/internal/shared/storage/db"
	"justice-backend/internal/shared/storage/object"
	localstore "justice-backend/internal/shared/storage/object/local"
	s3store "justice-backend/internal/shared/storage/object/s3"
	"justice-backend/internal/shared/telemetry"
	"justice-backend/internal/workflow"
)

// App holds shared dependencies.
type App struct {
	Config    config.Config
	Router    *gin.Engine
	DB        *sql.DB
	Store     workflow.Store
	Files     object.ObjectStore
	Codec     *envelope.Codec
	Hub       *events.Hub
	Agents    *agents.Client
	Cases     *cases.Service
	Health    *health.Service
	Benchmark *benchmark.Runner
}

// Build prepares dependencies and routes.
func Build(cfg config.Config) (*App, error) {
	ctx := context.Background()

	codec, err := buildCodec(cfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	files, err := buildFileStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Files:  files,
		Codec:  codec,
		Hub:    events.NewHub(cfg.EventsScoped),
	}
	if sqlDB != nil {
		app.Store = workflow.NewPGStore(sqlDB)
	} else {
		app.Store = workflow.NewMemoryStore()
	}

	app.Agents = &agents.Client{
		Analyzer:       agents.Endpoint{Name: "agent1", BaseURL: cfg.Agent1URL, Timeout: cfg.Agent1Timeout},
		Reviewer:       agents.Endpoint{Name: "agent2", BaseURL: cfg.Agent2URL, Timeout: cfg.Agent2Timeout},
		Synthesizer:    agents.Endpoint{Name: "agent3", BaseURL: cfg.Agent3URL, Timeout: cfg.Agent3Timeout},
		Store:          files,
		StorageMethod:  cfg.ObjectStoreType,
		MaxUploadBytes: cfg.MaxUploadBytes,
		ProbeTimeout:   cfg.ProbeTimeout,
	}
	app.Cases = cases.NewService(app.Store, app.Agents, codec, app.Hub)
	app.Health = health.NewService(app.Agents)
	app.Benchmark = benchmark.NewRunner(app.Store, app.Agents, app.Hub)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:           cfg,
		CaseHandler:      cases.NewHandler(app.Cases, cfg.MaxUploadBytes),
		HealthHandler:    health.NewHandler(app.Health),
		BenchmarkHandler: benchmark.NewHandler(app.Benchmark),
		EventsHandler:    events.NewHandler(app.Hub, cfg.CORSAllowOrigin),
	})

	return app, nil
}

// Close waits for background tasks and releases the database.
func (a *App) Close() error {
	a.Benchmark.Wait()
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}

func buildCodec(cfg config.Config) (*envelope.Codec, error) {
	mode, err := envelope.ParseMode(cfg.EncryptionMode)
	if err != nil {
		return nil, err
	}
	key, generated, err := envelope.ResolveKey(cfg.EncryptionKeyHex)
	if err != nil {
		return nil, fmt.Errorf("ENCRYPTION_KEY: %w", err)
	}
	if generated {
		telemetry.Warn("bootstrap.ephemeral_key", map[string]any{
			"message": "ENCRYPTION_KEY not set; verdicts encrypted now cannot be decrypted after a restart",
		})
	}
	return envelope.NewCodec(key, mode)
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		telemetry.Info("bootstrap.store", map[string]any{"store": "memory"})
		return nil, nil
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.db_fallback", map[string]any{"error": err.Error()})
			return nil, nil
		}
		return nil, err
	}
	version, err := db.RunMigrations(ctx, sqlDB)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	telemetry.Info("bootstrap.store", map[string]any{"store": "postgres", "schema_version": version})
	return sqlDB, nil
}

func buildFileStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, s3store.Options{
			Region:          cfg.AWSRegion,
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			KMSKeyID:        cfg.SSEKMSKeyID,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretKey,
		})
	case "none":
		return nil, nil
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
