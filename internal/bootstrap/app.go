// Package bootstrap builds shared dependencies for the API and worker
// binaries from configuration.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"statement-backend/internal/analyses"
	googleauth "statement-backend/internal/auth"
	"statement-backend/internal/llm"
	"statement-backend/internal/llm/gemini"
	"statement-backend/internal/queue"
	"statement-backend/internal/services/health"
	"statement-backend/internal/shared/config"
	"statement-backend/internal/shared/server"
	"statement-backend/internal/shared/storage/db"
	"statement-backend/internal/shared/storage/object"
	localstore "statement-backend/internal/shared/storage/object/local"
	s3store "statement-backend/internal/shared/storage/object/s3"
	"statement-backend/internal/uploads"
	"statement-backend/internal/users"
)

// App holds shared dependencies for the binaries.
type App struct {
	Config          config.Config
	Router          *gin.Engine
	DB              *sql.DB
	Store           object.ObjectStore
	Queue           queue.Client
	AnalysesRepo    analyses.Repo
	UsersRepo       users.Repo
	AnalysesService *analyses.Service
	AnalysisHandler *analyses.Handler
	UploadHandler   *uploads.Handler
	GoogleAuth      *googleauth.GoogleService
}

// Build prepares shared dependencies and wires the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		Queue:  queueClient,
	}
	if err := buildServices(app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          app.Config,
		AnalysisHandler: app.AnalysisHandler,
		UploadHandler:   app.UploadHandler,
		GoogleAuth:      app.GoogleAuth,
		Health:          health.NewServiceWithDB(app.DB),
	})
	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		opts := db.OptionsFromEnv(db.DefaultLambdaOptions())
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, opts)
	} else {
		opts := db.OptionsFromEnv(db.DefaultServerOptions())
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, opts)
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context) (queue.Client, error) {
	if strings.TrimSpace(os.Getenv("SB_SQS_QUEUE_URL")) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func buildServices(app *App) error {
	var analysisRepo analyses.Repo
	var userRepo users.Repo
	if app.DB != nil {
		analysisRepo = &analyses.PGRepo{DB: app.DB}
		userRepo = &users.PGRepo{DB: app.DB}
	} else {
		analysisRepo = analyses.NewMemoryRepo()
		userRepo = users.NewMemoryRepo()
	}

	var llmClient llm.Client
	if strings.TrimSpace(app.Config.GeminiAPIKey) != "" {
		client, err := gemini.NewClient(app.Config.GeminiAPIKey, app.Config.LLMModel)
		if err != nil {
			return err
		}
		llmClient = client
	} else {
		log.Printf("bootstrap: GEMINI_API_KEY empty; analyses return placeholder results")
	}

	mode := analyses.ParseDocumentMode(app.Config.LLMDocumentMode)
	maxAttempts := 5
	if mode == analyses.ModeText {
		maxAttempts = 3
	}

	analysisSvc := &analyses.Service{
		Repo:  analysisRepo,
		Users: userRepo,
		Store: app.Store,
		Analyzer: &analyses.Analyzer{
			LLM:         llmClient,
			Timeout:     llmTimeout(),
			MaxAttempts: maxAttempts,
		},
		JobQueue:     app.Queue,
		DocumentMode: mode,
	}

	app.AnalysesRepo = analysisRepo
	app.UsersRepo = userRepo
	app.AnalysesService = analysisSvc
	app.AnalysisHandler = analyses.NewHandler(analysisSvc)
	app.UploadHandler = uploads.NewHandler(app.Store)
	app.GoogleAuth = googleauth.NewGoogleService(
		app.Config.GoogleClientID,
		app.Config.GoogleClientSecret,
		app.Config.GoogleRedirectURL,
		app.Config.UIRedirectURL,
		userRepo,
	)
	return nil
}

func llmTimeout() time.Duration {
	raw := strings.TrimSpace(os.Getenv("LLM_TIMEOUT_SECONDS"))
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw + "s")
	if err != nil {
		return 0
	}
	return d
}
