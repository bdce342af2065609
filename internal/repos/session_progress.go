package repos

import (
  "context"
  "errors"
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"

  "github.com/pathshala-ai/tutor-backend/internal/logger"
  "github.com/pathshala-ai/tutor-backend/internal/types"
)

// SessionProgressRepo mutates per-(user, subtopic) pacing rows. All writes
// are field-scoped so the foreground path and the look-ahead worker never
// clobber each other's columns. The compare-and-swap variants guard on
// chunk_index and report whether the row was actually written.
type SessionProgressRepo interface {
  GetFor(ctx context.Context, tx *gorm.DB, userID, subtopicID uuid.UUID) (*types.SessionProgress, error)
  EnsureFor(ctx context.Context, tx *gorm.DB, userID, subtopicID uuid.UUID) (*types.SessionProgress, error)
  UpdateFields(ctx context.Context, tx *gorm.DB, userID, subtopicID uuid.UUID, fields map[string]any) error
  CompareAndSetCursor(ctx context.Context, tx *gorm.DB, userID, subtopicID uuid.UUID, expectIndex, newIndex int, memory datatypes.JSON) (bool, error)
  StoreCachedNext(ctx context.Context, tx *gorm.DB, userID, subtopicID uuid.UUID, targetIndex int, response string, image []byte) (bool, error)
  ClearCachedNext(ctx context.Context, tx *gorm.DB, userID, subtopicID uuid.UUID) error
}

type sessionProgressRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewSessionProgressRepo(db *gorm.DB, baseLog *logger.Logger) SessionProgressRepo {
  repoLog := baseLog.With("repo", "SessionProgressRepo")
  return &sessionProgressRepo{db: db, log: repoLog}
}

func (r *sessionProgressRepo) GetFor(ctx context.Context, tx *gorm.DB, userID, subtopicID uuid.UUID) (*types.SessionProgress, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var row types.SessionProgress
  err := transaction.WithContext(ctx).
    Where("user_id = ? AND subtopic_id = ?", userID, subtopicID).
    First(&row).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    return nil, nil
  }
  if err != nil {
    return nil, err
  }
  return &row, nil
}

func (r *sessionProgressRepo) EnsureFor(ctx context.Context, tx *gorm.DB, userID, subtopicID uuid.UUID) (*types.SessionProgress, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  row := types.SessionProgress{
    UserID:     userID,
    SubtopicID: subtopicID,
    ChunkIndex: 0,
    ChatMemory: datatypes.JSON([]byte(`[]`)),
  }
  if err := transaction.WithContext(ctx).
    Where("user_id = ? AND subtopic_id = ?", userID, subtopicID).
    FirstOrCreate(&row).Error; err != nil {
    return nil, err
  }
  return &row, nil
}

func (r *sessionProgressRepo) UpdateFields(ctx context.Context, tx *gorm.DB, userID, subtopicID uuid.UUID, fields map[string]any) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if len(fields) == 0 {
    return nil
  }
  fields["updated_at"] = time.Now().UTC()

  if err := transaction.WithContext(ctx).
    Model(&types.SessionProgress{}).
    Where("user_id = ? AND subtopic_id = ?", userID, subtopicID).
    Updates(fields).Error; err != nil {
    return err
  }
  return nil
}

// CompareAndSetCursor moves the cursor from expectIndex to newIndex and
// writes the new chat memory in one guarded update. A false return means a
// concurrent request already moved the cursor.
func (r *sessionProgressRepo) CompareAndSetCursor(ctx context.Context, tx *gorm.DB, userID, subtopicID uuid.UUID, expectIndex, newIndex int, memory datatypes.JSON) (bool, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  now := time.Now().UTC()
  res := transaction.WithContext(ctx).
    Model(&types.SessionProgress{}).
    Where("user_id = ? AND subtopic_id = ? AND chunk_index = ?", userID, subtopicID, expectIndex).
    Updates(map[string]any{
      "chunk_index":  newIndex,
      "chat_memory":  memory,
      "last_updated": now,
      "updated_at":   now,
    })
  if res.Error != nil {
    return false, res.Error
  }
  return res.RowsAffected > 0, nil
}

// StoreCachedNext fills the speculative slot, but only while the cursor
// still sits one step behind targetIndex. A false return means the session
// moved on and the result must be dropped.
func (r *sessionProgressRepo) StoreCachedNext(ctx context.Context, tx *gorm.DB, userID, subtopicID uuid.UUID, targetIndex int, response string, image []byte) (bool, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  res := transaction.WithContext(ctx).
    Model(&types.SessionProgress{}).
    Where("user_id = ? AND subtopic_id = ? AND chunk_index = ?", userID, subtopicID, targetIndex-1).
    Updates(map[string]any{
      "cached_next_response": response,
      "cached_next_image":    image,
      "cached_next_index":    targetIndex,
      "updated_at":           time.Now().UTC(),
    })
  if res.Error != nil {
    return false, res.Error
  }
  return res.RowsAffected > 0, nil
}

func (r *sessionProgressRepo) ClearCachedNext(ctx context.Context, tx *gorm.DB, userID, subtopicID uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if err := transaction.WithContext(ctx).
    Model(&types.SessionProgress{}).
    Where("user_id = ? AND subtopic_id = ?", userID, subtopicID).
    Updates(map[string]any{
      "cached_next_response": nil,
      "cached_next_image":    nil,
      "cached_next_index":    nil,
      "updated_at":           time.Now().UTC(),
    }).Error; err != nil {
    return err
  }
  return nil
}
