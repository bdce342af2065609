package services

import (
  "context"

  "github.com/google/uuid"

  "github.com/pathshala-ai/tutor-backend/internal/logger"
  "github.com/pathshala-ai/tutor-backend/internal/repos"
)

// LookAheadJob asks the worker to pre-generate the response for the chunk
// after the session's current cursor. Chunks is carried with the job so the
// worker does not reload content; the cursor itself is re-read at execution
// time because the session may have moved since scheduling.
type LookAheadJob struct {
  UserID     uuid.UUID
  SubtopicID uuid.UUID
  Subject    string
  Chunks     []string
}

type LookAheadScheduler interface {
  Schedule(job LookAheadJob)
}

// LookAheadManager runs a single background worker that fills the per-session
// speculative cache. It is best-effort throughout: any failure clears the
// cache slot and is logged, never surfaced to a request.
type LookAheadManager struct {
  log *logger.Logger

  progressRepo repos.SessionProgressRepo
  images       ImageResolver
  gemini       GeminiClient
  configs      *SubjectConfigTable

  jobs chan LookAheadJob
}

func NewLookAheadManager(
  baseLog *logger.Logger,
  progressRepo repos.SessionProgressRepo,
  images ImageResolver,
  gemini GeminiClient,
  configs *SubjectConfigTable,
  queueSize int,
) *LookAheadManager {
  if queueSize <= 0 {
    queueSize = 64
  }
  return &LookAheadManager{
    log:          baseLog.With("service", "LookAheadManager"),
    progressRepo: progressRepo,
    images:       images,
    gemini:       gemini,
    configs:      configs,
    jobs:         make(chan LookAheadJob, queueSize),
  }
}

// Schedule enqueues a job without blocking; when the queue is full the job is
// dropped and the next advance falls back to synchronous generation.
func (m *LookAheadManager) Schedule(job LookAheadJob) {
  select {
  case m.jobs <- job:
  default:
    m.log.Warn("Look-ahead queue full, dropping job", "user_id", job.UserID, "subtopic_id", job.SubtopicID)
  }
}

// StartWorker consumes jobs until ctx is cancelled.
func (m *LookAheadManager) StartWorker(ctx context.Context) {
  go func() {
    for {
      select {
      case <-ctx.Done():
        return
      case job := <-m.jobs:
        m.run(ctx, job)
      }
    }
  }()
}

func (m *LookAheadManager) run(ctx context.Context, job LookAheadJob) {
  // The cursor may have moved between scheduling and execution; always work
  // from the row as it is now.
  progress, err := m.progressRepo.GetFor(ctx, nil, job.UserID, job.SubtopicID)
  if err != nil {
    m.log.Warn("Look-ahead progress read failed", "user_id", job.UserID, "subtopic_id", job.SubtopicID, "error", err)
    return
  }
  if progress == nil {
    return
  }

  next := progress.ChunkIndex + 1
  if next >= len(job.Chunks) {
    if err := m.progressRepo.ClearCachedNext(ctx, nil, job.UserID, job.SubtopicID); err != nil {
      m.log.Warn("Look-ahead cache clear failed", "user_id", job.UserID, "subtopic_id", job.SubtopicID, "error", err)
    }
    return
  }
  chunk := job.Chunks[next]

  image, err := m.images.Resolve(ctx, nil, job.SubtopicID, chunk)
  if err != nil {
    m.log.Warn("Look-ahead diagram lookup failed", "subtopic_id", job.SubtopicID, "error", err)
    image = nil
  }

  cfg := m.configs.Lookup(job.Subject)
  memory := decodeMemory(progress.ChatMemory)
  prompt, system := BuildPrompt("", memory, nil, chunk, cfg)

  answer, err := m.gemini.GenerateText(ctx, GenerateRequest{
    Prompt:            prompt,
    SystemInstruction: system,
    Temperature:       cfg.Temperature,
    ImageData:         image,
  })
  if err != nil {
    m.log.Warn("Look-ahead generation failed", "user_id", job.UserID, "subtopic_id", job.SubtopicID, "error", err)
    if clearErr := m.progressRepo.ClearCachedNext(ctx, nil, job.UserID, job.SubtopicID); clearErr != nil {
      m.log.Warn("Look-ahead cache clear failed", "user_id", job.UserID, "subtopic_id", job.SubtopicID, "error", clearErr)
    }
    return
  }

  // Guarded write: stores only while the cursor still sits at next-1. A
  // session that advanced or reset in the meantime leaves the slot untouched.
  stored, err := m.progressRepo.StoreCachedNext(ctx, nil, job.UserID, job.SubtopicID, next, answer, image)
  if err != nil {
    m.log.Warn("Look-ahead cache store failed", "user_id", job.UserID, "subtopic_id", job.SubtopicID, "error", err)
    return
  }
  if !stored {
    m.log.Debug("Look-ahead result discarded, cursor moved", "user_id", job.UserID, "subtopic_id", job.SubtopicID, "target_index", next)
  }
}
