package repos

import (
  "context"
  "errors"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"

  "github.com/pathshala-ai/tutor-backend/internal/logger"
  "github.com/pathshala-ai/tutor-backend/internal/types"
)

// UnitRepo reads the subject/topic/subtopic taxonomy and the chunk list for
// a unit. Missing rows come back as (nil, nil); the service layer decides
// what "not found" means for the caller.
type UnitRepo interface {
  GetSubjectByName(ctx context.Context, tx *gorm.DB, name string) (*types.Subject, error)
  GetTopicByName(ctx context.Context, tx *gorm.DB, subjectID uuid.UUID, name string) (*types.Topic, error)
  GetSubtopicByName(ctx context.Context, tx *gorm.DB, topicID uuid.UUID, name string) (*types.Subtopic, error)
  GetUnitBySubtopicID(ctx context.Context, tx *gorm.DB, subtopicID uuid.UUID) (*types.ContentUnit, error)
  EnsureTaxonomy(ctx context.Context, tx *gorm.DB, subject, topic, subtopic string) (*types.Subtopic, error)
  UpsertUnit(ctx context.Context, tx *gorm.DB, subtopicID uuid.UUID, chunks datatypes.JSON) (*types.ContentUnit, error)
}

type unitRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewUnitRepo(db *gorm.DB, baseLog *logger.Logger) UnitRepo {
  repoLog := baseLog.With("repo", "UnitRepo")
  return &unitRepo{db: db, log: repoLog}
}

func (r *unitRepo) GetSubjectByName(ctx context.Context, tx *gorm.DB, name string) (*types.Subject, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var row types.Subject
  err := transaction.WithContext(ctx).
    Where("name = ?", name).
    First(&row).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    return nil, nil
  }
  if err != nil {
    return nil, err
  }
  return &row, nil
}

func (r *unitRepo) GetTopicByName(ctx context.Context, tx *gorm.DB, subjectID uuid.UUID, name string) (*types.Topic, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var row types.Topic
  err := transaction.WithContext(ctx).
    Where("subject_id = ? AND name = ?", subjectID, name).
    First(&row).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    return nil, nil
  }
  if err != nil {
    return nil, err
  }
  return &row, nil
}

func (r *unitRepo) GetSubtopicByName(ctx context.Context, tx *gorm.DB, topicID uuid.UUID, name string) (*types.Subtopic, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var row types.Subtopic
  err := transaction.WithContext(ctx).
    Where("topic_id = ? AND name = ?", topicID, name).
    First(&row).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    return nil, nil
  }
  if err != nil {
    return nil, err
  }
  return &row, nil
}

func (r *unitRepo) GetUnitBySubtopicID(ctx context.Context, tx *gorm.DB, subtopicID uuid.UUID) (*types.ContentUnit, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var row types.ContentUnit
  err := transaction.WithContext(ctx).
    Where("subtopic_id = ?", subtopicID).
    First(&row).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    return nil, nil
  }
  if err != nil {
    return nil, err
  }
  return &row, nil
}

func (r *unitRepo) EnsureTaxonomy(ctx context.Context, tx *gorm.DB, subject, topic, subtopic string) (*types.Subtopic, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  subjectRow := types.Subject{Name: subject}
  if err := transaction.WithContext(ctx).
    Where("name = ?", subject).
    FirstOrCreate(&subjectRow).Error; err != nil {
    return nil, err
  }

  topicRow := types.Topic{Name: topic, SubjectID: subjectRow.ID}
  if err := transaction.WithContext(ctx).
    Where("subject_id = ? AND name = ?", subjectRow.ID, topic).
    FirstOrCreate(&topicRow).Error; err != nil {
    return nil, err
  }

  subtopicRow := types.Subtopic{Name: subtopic, TopicID: topicRow.ID}
  if err := transaction.WithContext(ctx).
    Where("topic_id = ? AND name = ?", topicRow.ID, subtopic).
    FirstOrCreate(&subtopicRow).Error; err != nil {
    return nil, err
  }
  return &subtopicRow, nil
}

func (r *unitRepo) UpsertUnit(ctx context.Context, tx *gorm.DB, subtopicID uuid.UUID, chunks datatypes.JSON) (*types.ContentUnit, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  row := types.ContentUnit{SubtopicID: subtopicID, Chunks: chunks}
  if err := transaction.WithContext(ctx).
    Where("subtopic_id = ?", subtopicID).
    Assign(map[string]any{"chunks": chunks}).
    FirstOrCreate(&row).Error; err != nil {
    return nil, err
  }
  return &row, nil
}
