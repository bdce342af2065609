package repos

import (
  "context"
  "errors"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/pathshala-ai/tutor-backend/internal/logger"
  "github.com/pathshala-ai/tutor-backend/internal/types"
)

type DiagramRepo interface {
  Create(ctx context.Context, tx *gorm.DB, rows []*types.Diagram) ([]*types.Diagram, error)
  GetByTitle(ctx context.Context, tx *gorm.DB, subtopicID uuid.UUID, title string) (*types.Diagram, error)
  GetByTitleContains(ctx context.Context, tx *gorm.DB, subtopicID uuid.UUID, title string) (*types.Diagram, error)
}

type diagramRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewDiagramRepo(db *gorm.DB, baseLog *logger.Logger) DiagramRepo {
  repoLog := baseLog.With("repo", "DiagramRepo")
  return &diagramRepo{db: db, log: repoLog}
}

func (r *diagramRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.Diagram) ([]*types.Diagram, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if len(rows) == 0 {
    return []*types.Diagram{}, nil
  }

  if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
    return nil, err
  }
  return rows, nil
}

func (r *diagramRepo) GetByTitle(ctx context.Context, tx *gorm.DB, subtopicID uuid.UUID, title string) (*types.Diagram, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var row types.Diagram
  err := transaction.WithContext(ctx).
    Where("subtopic_id = ? AND LOWER(description) = LOWER(?)", subtopicID, title).
    First(&row).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    return nil, nil
  }
  if err != nil {
    return nil, err
  }
  return &row, nil
}

func (r *diagramRepo) GetByTitleContains(ctx context.Context, tx *gorm.DB, subtopicID uuid.UUID, title string) (*types.Diagram, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var row types.Diagram
  err := transaction.WithContext(ctx).
    Where("subtopic_id = ? AND LOWER(description) LIKE '%' || LOWER(?) || '%'", subtopicID, title).
    First(&row).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    return nil, nil
  }
  if err != nil {
    return nil, err
  }
  return &row, nil
}
