package main

import (
  "context"
  "encoding/json"
  "flag"
  "fmt"
  "os"
  "path/filepath"

  "gorm.io/datatypes"

  "github.com/pathshala-ai/tutor-backend/internal/db"
  "github.com/pathshala-ai/tutor-backend/internal/logger"
  "github.com/pathshala-ai/tutor-backend/internal/repos"
  "github.com/pathshala-ai/tutor-backend/internal/types"
)

// diagramManifestEntry pairs a diagram description with its image file,
// relative to the manifest's directory.
type diagramManifestEntry struct {
  Description string `json:"description"`
  Image       string `json:"image"`
}

func main() {
  var subject, topic, subtopic, chunksPath, diagramsPath string
  flag.StringVar(&subject, "subject", "", "subject name")
  flag.StringVar(&topic, "topic", "", "topic name")
  flag.StringVar(&subtopic, "subtopic", "", "subtopic name")
  flag.StringVar(&chunksPath, "chunks", "", "path to a JSON array of chunk strings")
  flag.StringVar(&diagramsPath, "diagrams", "", "path to a diagram manifest JSON (optional)")
  flag.Parse()

  if subject == "" || topic == "" || subtopic == "" || chunksPath == "" {
    fmt.Println("usage: seed -subject S -topic T -subtopic ST -chunks chunks.json [-diagrams manifest.json]")
    os.Exit(1)
  }

  log, err := logger.New(os.Getenv("LOG_MODE"))
  if err != nil {
    fmt.Printf("Failed to init logger: %v\n", err)
    os.Exit(1)
  }
  defer log.Sync()

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

  unitRepo := repos.NewUnitRepo(thePG, log)
  diagramRepo := repos.NewDiagramRepo(thePG, log)

  raw, err := os.ReadFile(chunksPath)
  if err != nil {
    log.Error("Failed to read chunks file", "path", chunksPath, "error", err)
    os.Exit(1)
  }
  var chunks []string
  if err := json.Unmarshal(raw, &chunks); err != nil {
    log.Error("Chunks file is not a JSON string array", "path", chunksPath, "error", err)
    os.Exit(1)
  }
  if len(chunks) == 0 {
    log.Error("Chunks file is empty", "path", chunksPath)
    os.Exit(1)
  }

  ctx := context.Background()
  subtopicRow, err := unitRepo.EnsureTaxonomy(ctx, nil, subject, topic, subtopic)
  if err != nil {
    log.Error("Failed to ensure taxonomy", "error", err)
    os.Exit(1)
  }

  encoded, err := json.Marshal(chunks)
  if err != nil {
    log.Error("Failed to encode chunks", "error", err)
    os.Exit(1)
  }
  if _, err := unitRepo.UpsertUnit(ctx, nil, subtopicRow.ID, datatypes.JSON(encoded)); err != nil {
    log.Error("Failed to upsert unit", "error", err)
    os.Exit(1)
  }
  log.Info("Seeded unit", "subject", subject, "topic", topic, "subtopic", subtopic, "chunks", len(chunks))

  if diagramsPath == "" {
    return
  }

  manifestRaw, err := os.ReadFile(diagramsPath)
  if err != nil {
    log.Error("Failed to read diagram manifest", "path", diagramsPath, "error", err)
    os.Exit(1)
  }
  var entries []diagramManifestEntry
  if err := json.Unmarshal(manifestRaw, &entries); err != nil {
    log.Error("Diagram manifest is not valid JSON", "path", diagramsPath, "error", err)
    os.Exit(1)
  }

  baseDir := filepath.Dir(diagramsPath)
  rows := make([]*types.Diagram, 0, len(entries))
  for _, entry := range entries {
    imagePath := entry.Image
    if !filepath.IsAbs(imagePath) {
      imagePath = filepath.Join(baseDir, imagePath)
    }
    content, err := os.ReadFile(imagePath)
    if err != nil {
      log.Error("Failed to read diagram image", "path", imagePath, "error", err)
      os.Exit(1)
    }
    rows = append(rows, &types.Diagram{
      SubtopicID:   subtopicRow.ID,
      Description:  entry.Description,
      ImageContent: content,
    })
  }
  if _, err := diagramRepo.Create(ctx, nil, rows); err != nil {
    log.Error("Failed to insert diagrams", "error", err)
    os.Exit(1)
  }
  log.Info("Seeded diagrams", "subtopic", subtopic, "count", len(rows))
}
