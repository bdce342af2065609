package main

import (
  "context"
  "fmt"
  "os"

  "github.com/pathshala-ai/tutor-backend/internal/db"
  "github.com/pathshala-ai/tutor-backend/internal/handlers"
  "github.com/pathshala-ai/tutor-backend/internal/logger"
  "github.com/pathshala-ai/tutor-backend/internal/middleware"
  "github.com/pathshala-ai/tutor-backend/internal/repos"
  "github.com/pathshala-ai/tutor-backend/internal/server"
  "github.com/pathshala-ai/tutor-backend/internal/services"
  "github.com/pathshala-ai/tutor-backend/internal/utils"
)

func main() {
  // Logger
  logMode := os.Getenv("LOG_MODE")
  if logMode == "" {
    logMode = "development"
  }
  log, err := logger.New(logMode)
  if err != nil {
    fmt.Printf("Failed to init logger: %v\n", err)
    os.Exit(1)
  }
  defer log.Sync()

  // Env
  log.Info("Loading environment variables from main...")
  relevanceThreshold := utils.GetEnvAsFloat("RELEVANCE_THRESHOLD", 1.5, log)
  lookaheadQueueSize := utils.GetEnvAsInt("LOOKAHEAD_QUEUE_SIZE", 64, log)
  subjectConfigPath := utils.GetEnv("SUBJECT_CONFIG_PATH", "", log)
  substringDiagramMatch := utils.GetEnv("DIAGRAM_SUBSTRING_MATCH", "false", log) == "true"

  // Postgres
  postgresService, err := db.NewPostgresService(log)
  if err != nil {
    log.Error("Postgres init failed", "error", err)
    os.Exit(1)
  }
  if err = postgresService.AutoMigrateAll(); err != nil {
    log.Error("Postgres auto migration failed", "error", err)
    os.Exit(1)
  }
  thePG := postgresService.DB()

  // Repos
  log.Info("Setting up Repos from main...")
  unitRepo := repos.NewUnitRepo(thePG, log)
  progressRepo := repos.NewSessionProgressRepo(thePG, log)
  diagramRepo := repos.NewDiagramRepo(thePG, log)

  // Services
  log.Info("Setting up Services from main...")
  geminiClient, err := services.NewGeminiClient(log)
  if err != nil {
    log.Error("Could not init GeminiClient", "error", err)
    os.Exit(1)
  }
  embedClient, err := services.NewEmbeddingClient(log)
  if err != nil {
    log.Error("Could not init EmbeddingClient", "error", err)
    os.Exit(1)
  }
  subjectConfigs, err := services.LoadSubjectConfigs(subjectConfigPath, log)
  if err != nil {
    log.Error("Could not load subject configs", "error", err)
    os.Exit(1)
  }
  retrievalService := services.NewRetrievalService(log, embedClient, relevanceThreshold)
  imageResolver := services.NewImageResolver(log, diagramRepo, substringDiagramMatch)
  lookaheadManager := services.NewLookAheadManager(log, progressRepo, imageResolver, geminiClient, subjectConfigs, lookaheadQueueSize)
  lookaheadManager.StartWorker(context.Background())
  explainService := services.NewExplainService(
    log,
    unitRepo,
    progressRepo,
    imageResolver,
    retrievalService,
    geminiClient,
    subjectConfigs,
    lookaheadManager,
  )

  // Handlers
  log.Info("Setting up handlers from main...")
  explainHandler := handlers.NewExplainHandler(log, explainService)

  // Middleware
  log.Info("Setting up middleware from main...")
  identityMiddleware := middleware.NewIdentityMiddleware(log)

  // Router
  log.Info("Setting up router from main...")
  router := server.NewRouter(server.RouterConfig{
    ExplainHandler:     explainHandler,
    IdentityMiddleware: identityMiddleware,
  })

  port := utils.GetEnv("PORT", "8080", log)
  fmt.Printf("Server listening on :%s\n", port)
  if err := router.Run(":" + port); err != nil {
    log.Warn("Server failed", "error", err)
  }
}
