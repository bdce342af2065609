package services

import (
  "context"
  "encoding/json"
  "strings"
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"

  "github.com/pathshala-ai/tutor-backend/internal/logger"
  "github.com/pathshala-ai/tutor-backend/internal/repos"
  "github.com/pathshala-ai/tutor-backend/internal/types"
)

type ExplainRequest struct {
  UserID    uuid.UUID
  Subject   string
  Topic     string
  Subtopic  string
  Query     string
  IsInitial bool
}

// ExplainResult is the final payload for one request: either a generated or
// canned answer (optionally with a diagram), or on idempotent resume the
// recap of prior answers in InitialResponse.
type ExplainResult struct {
  Answer          string
  Image           []byte
  InitialResponse []string
}

// ExplainService routes one user input through the session state machine:
// advance, re-explain, reset, or free-form query. HandleStream emits partial
// text through onDelta while producing the same final result as Handle.
type ExplainService interface {
  Handle(ctx context.Context, req ExplainRequest) (*ExplainResult, error)
  HandleStream(ctx context.Context, req ExplainRequest, onDelta func(delta string) error) (*ExplainResult, error)
}

type transitionKind int

const (
  transitionAdvance transitionKind = iota
  transitionReExplain
  transitionReset
  transitionFreeForm
)

// routeQuery classifies normalized user input into a transition.
func routeQuery(raw string) transitionKind {
  switch strings.ToLower(strings.TrimSpace(raw)) {
  case "continue":
    return transitionAdvance
  case "explain":
    return transitionReExplain
  case "refresh":
    return transitionReset
  default:
    return transitionFreeForm
  }
}

type explainService struct {
  log *logger.Logger

  unitRepo     repos.UnitRepo
  progressRepo repos.SessionProgressRepo

  images    ImageResolver
  retrieval RetrievalService
  gemini    GeminiClient
  configs   *SubjectConfigTable
  lookahead LookAheadScheduler
}

func NewExplainService(
  baseLog *logger.Logger,
  unitRepo repos.UnitRepo,
  progressRepo repos.SessionProgressRepo,
  images ImageResolver,
  retrieval RetrievalService,
  gemini GeminiClient,
  configs *SubjectConfigTable,
  lookahead LookAheadScheduler,
) ExplainService {
  return &explainService{
    log:          baseLog.With("service", "ExplainService"),
    unitRepo:     unitRepo,
    progressRepo: progressRepo,
    images:       images,
    retrieval:    retrieval,
    gemini:       gemini,
    configs:      configs,
    lookahead:    lookahead,
  }
}

func (s *explainService) Handle(ctx context.Context, req ExplainRequest) (*ExplainResult, error) {
  return s.handle(ctx, req, nil)
}

func (s *explainService) HandleStream(ctx context.Context, req ExplainRequest, onDelta func(delta string) error) (*ExplainResult, error) {
  return s.handle(ctx, req, onDelta)
}

func (s *explainService) handle(ctx context.Context, req ExplainRequest, onDelta func(delta string) error) (*ExplainResult, error) {
  if req.UserID == uuid.Nil {
    return nil, ErrUnauthorized
  }

  subtopic, err := s.resolveSubtopic(ctx, req)
  if err != nil {
    return nil, err
  }

  chunks, err := s.loadChunks(ctx, req, subtopic.ID)
  if err != nil {
    return nil, err
  }

  cfg := s.configs.Lookup(req.Subject)
  kind := routeQuery(req.Query)

  // Language and subject gating happens before any session state is touched
  // and never costs a generation call.
  if kind == transitionFreeForm {
    if !cfg.FreeFormAllowed {
      return &ExplainResult{Answer: cfg.RestrictedMessage}, nil
    }
    if !matchesScript(req.Query, cfg.QueryScript) {
      return &ExplainResult{Answer: cfg.LanguageMismatchMessage}, nil
    }
  }

  progress, err := s.progressRepo.GetFor(ctx, nil, req.UserID, subtopic.ID)
  if err != nil {
    return nil, err
  }

  // Idempotent resume: an initial "explain" against existing history replays
  // the prior answers without generating or mutating anything.
  if kind == transitionReExplain && req.IsInitial && progress != nil {
    if memory := decodeMemory(progress.ChatMemory); len(memory) > 0 {
      answers := make([]string, len(memory))
      for i, pair := range memory {
        answers[i] = pair.Answer
      }
      return &ExplainResult{InitialResponse: answers}, nil
    }
  }

  cursor := 0
  if progress != nil {
    cursor = progress.ChunkIndex
  }

  // Advancing past the last chunk is terminal: emit the completion message,
  // leave the cursor alone, drop any speculative slot.
  if kind == transitionAdvance && cursor >= len(chunks)-1 {
    if progress != nil {
      if err := s.progressRepo.ClearCachedNext(ctx, nil, req.UserID, subtopic.ID); err != nil {
        s.log.Warn("Failed to clear look-ahead cache at completion", "error", err)
      }
    }
    return &ExplainResult{Answer: cfg.CompletionMessage}, nil
  }

  if progress == nil {
    progress, err = s.progressRepo.EnsureFor(ctx, nil, req.UserID, subtopic.ID)
    if err != nil {
      return nil, err
    }
  }
  memory := decodeMemory(progress.ChatMemory)

  // Speculative path: consume the pre-generated answer when it targets
  // exactly cursor+1; a slot aimed anywhere else is dropped before the
  // synchronous fallback regenerates.
  if kind == transitionAdvance && progress.CachedNextIndex != nil {
    if progress.HasValidCache() {
      return s.consumeCachedNext(ctx, req, subtopic.ID, chunks, progress, memory, onDelta)
    }
    if err := s.progressRepo.ClearCachedNext(ctx, nil, req.UserID, subtopic.ID); err != nil {
      s.log.Warn("Failed to clear stale look-ahead cache", "error", err)
    }
  }

  var (
    genQuery    string
    retrieved   []string
    chunk       string
    targetIndex = progress.ChunkIndex
  )

  switch kind {
  case transitionAdvance:
    targetIndex = progress.ChunkIndex + 1
    chunk = chunks[targetIndex]
  case transitionReExplain:
    genQuery = cfg.ReExplainQuery
    // A re-seeded unit can shrink under a live session; clamp rather than
    // index past the new end.
    current := progress.ChunkIndex
    if current >= len(chunks) {
      current = len(chunks) - 1
    }
    chunk = chunks[current]
  case transitionReset:
    if err := s.progressRepo.UpdateFields(ctx, nil, req.UserID, subtopic.ID, map[string]any{
      "chunk_index":          0,
      "chat_memory":          datatypes.JSON([]byte(`[]`)),
      "cached_next_response": nil,
      "cached_next_image":    nil,
      "cached_next_index":    nil,
      "last_updated":         time.Now().UTC(),
    }); err != nil {
      return nil, err
    }
    progress.ChunkIndex = 0
    memory = nil
    targetIndex = 0
    genQuery = cfg.ResetQuery
    chunk = chunks[0]
  case transitionFreeForm:
    result, err := s.retrieval.Retrieve(ctx, subtopic.ID, chunks, req.Query, 3)
    if err != nil {
      return nil, err
    }
    if !result.Relevant {
      return &ExplainResult{Answer: cfg.IrrelevantMessage}, nil
    }
    genQuery = req.Query
    retrieved = result.Chunks
  }

  var image []byte
  if chunk != "" {
    image, err = s.images.Resolve(ctx, nil, subtopic.ID, chunk)
    if err != nil {
      s.log.Warn("Diagram lookup failed, continuing without image", "error", err)
      image = nil
    }
  }

  prompt, system := BuildPrompt(genQuery, memory, retrieved, chunk, cfg)
  genReq := GenerateRequest{
    Prompt:            prompt,
    SystemInstruction: system,
    Temperature:       cfg.Temperature,
    ImageData:         image,
  }

  var answer string
  if onDelta != nil {
    answer, err = s.gemini.GenerateTextStream(ctx, genReq, onDelta)
  } else {
    answer, err = s.gemini.GenerateText(ctx, genReq)
  }
  if err != nil {
    // No history is written on generation failure.
    return nil, err
  }

  updated := encodeMemory(appendMemory(memory, req.Query, answer))
  if kind == transitionAdvance {
    ok, err := s.progressRepo.CompareAndSetCursor(ctx, nil, req.UserID, subtopic.ID, progress.ChunkIndex, targetIndex, updated)
    if err != nil {
      return nil, err
    }
    if !ok {
      return nil, ErrConflict
    }
  } else {
    if err := s.progressRepo.UpdateFields(ctx, nil, req.UserID, subtopic.ID, map[string]any{
      "chat_memory":  updated,
      "last_updated": time.Now().UTC(),
    }); err != nil {
      return nil, err
    }
  }

  // Free-form leaves the cursor alone, so an existing look-ahead slot is
  // still valid and no new job is needed.
  if kind != transitionFreeForm && s.lookahead != nil {
    s.lookahead.Schedule(LookAheadJob{
      UserID:     req.UserID,
      SubtopicID: subtopic.ID,
      Subject:    req.Subject,
      Chunks:     chunks,
    })
  }

  return &ExplainResult{Answer: answer, Image: image}, nil
}

func (s *explainService) consumeCachedNext(
  ctx context.Context,
  req ExplainRequest,
  subtopicID uuid.UUID,
  chunks []string,
  progress *types.SessionProgress,
  memory []types.QAPair,
  onDelta func(delta string) error,
) (*ExplainResult, error) {
  answer := *progress.CachedNextResponse
  image := progress.CachedNextImage
  target := *progress.CachedNextIndex

  updated := encodeMemory(appendMemory(memory, req.Query, answer))
  ok, err := s.progressRepo.CompareAndSetCursor(ctx, nil, req.UserID, subtopicID, progress.ChunkIndex, target, updated)
  if err != nil {
    return nil, err
  }
  if !ok {
    return nil, ErrConflict
  }
  if err := s.progressRepo.ClearCachedNext(ctx, nil, req.UserID, subtopicID); err != nil {
    s.log.Warn("Failed to clear consumed look-ahead cache", "error", err)
  }

  if s.lookahead != nil {
    s.lookahead.Schedule(LookAheadJob{
      UserID:     req.UserID,
      SubtopicID: subtopicID,
      Subject:    req.Subject,
      Chunks:     chunks,
    })
  }

  if onDelta != nil {
    if err := onDelta(answer); err != nil {
      return nil, err
    }
  }
  return &ExplainResult{Answer: answer, Image: image}, nil
}

func (s *explainService) resolveSubtopic(ctx context.Context, req ExplainRequest) (*types.Subtopic, error) {
  subject, err := s.unitRepo.GetSubjectByName(ctx, nil, req.Subject)
  if err != nil {
    return nil, err
  }
  if subject == nil {
    return nil, &NotFoundError{Resource: "subject", Name: req.Subject}
  }

  topic, err := s.unitRepo.GetTopicByName(ctx, nil, subject.ID, req.Topic)
  if err != nil {
    return nil, err
  }
  if topic == nil {
    return nil, &NotFoundError{Resource: "topic", Name: req.Topic}
  }

  subtopic, err := s.unitRepo.GetSubtopicByName(ctx, nil, topic.ID, req.Subtopic)
  if err != nil {
    return nil, err
  }
  if subtopic == nil {
    return nil, &NotFoundError{Resource: "subtopic", Name: req.Subtopic}
  }
  return subtopic, nil
}

func (s *explainService) loadChunks(ctx context.Context, req ExplainRequest, subtopicID uuid.UUID) ([]string, error) {
  unit, err := s.unitRepo.GetUnitBySubtopicID(ctx, nil, subtopicID)
  if err != nil {
    return nil, err
  }
  if unit == nil {
    return nil, &NotFoundError{Resource: "content for subtopic", Name: req.Subtopic}
  }
  chunks := decodeChunks(unit.Chunks)
  if len(chunks) == 0 {
    return nil, &NotFoundError{Resource: "chunks for subtopic", Name: req.Subtopic}
  }
  return chunks, nil
}

func decodeChunks(raw datatypes.JSON) []string {
  if len(raw) == 0 {
    return nil
  }
  var chunks []string
  if err := json.Unmarshal(raw, &chunks); err != nil {
    return nil
  }
  return chunks
}
