package services

import (
  "context"
  "fmt"
  "sort"
  "sync"

  "github.com/google/uuid"
  "golang.org/x/sync/singleflight"

  "github.com/pathshala-ai/tutor-backend/internal/logger"
)

// RetrievalResult holds the top-k chunks for a free-form query and the
// squared L2 distance of the closest match. Relevant is false when that
// distance exceeds the configured threshold, in which case Chunks is empty
// and no generation call should be made.
type RetrievalResult struct {
  Chunks      []string
  MinDistance float32
  Relevant    bool
}

type RetrievalService interface {
  Retrieve(ctx context.Context, unitID uuid.UUID, chunks []string, query string, topK int) (*RetrievalResult, error)
  // Invalidate drops a unit's cached index, e.g. after reseeding content.
  Invalidate(unitID uuid.UUID)
}

type unitIndex struct {
  vectors [][]float32
  count   int
}

type retrievalService struct {
  log       *logger.Logger
  embed     EmbeddingClient
  threshold float32

  mu      sync.RWMutex
  indexes map[uuid.UUID]*unitIndex
  group   singleflight.Group
}

func NewRetrievalService(log *logger.Logger, embed EmbeddingClient, threshold float64) RetrievalService {
  return &retrievalService{
    log:       log.With("service", "RetrievalService"),
    embed:     embed,
    threshold: float32(threshold),
    indexes:   make(map[uuid.UUID]*unitIndex),
  }
}

func (s *retrievalService) Retrieve(ctx context.Context, unitID uuid.UUID, chunks []string, query string, topK int) (*RetrievalResult, error) {
  if len(chunks) == 0 {
    return nil, fmt.Errorf("no chunks to search")
  }
  if topK <= 0 {
    topK = 3
  }
  if topK > len(chunks) {
    topK = len(chunks)
  }

  idx, err := s.indexFor(ctx, unitID, chunks)
  if err != nil {
    return nil, err
  }

  queryVecs, err := s.embed.Embed(ctx, []string{query})
  if err != nil {
    return nil, err
  }
  queryVec := queryVecs[0]

  type hit struct {
    pos  int
    dist float32
  }
  hits := make([]hit, len(idx.vectors))
  for i, v := range idx.vectors {
    hits[i] = hit{pos: i, dist: l2Squared(queryVec, v)}
  }
  sort.Slice(hits, func(a, b int) bool { return hits[a].dist < hits[b].dist })

  minDist := hits[0].dist
  if minDist > s.threshold {
    s.log.Debug("Query gated as irrelevant", "unit_id", unitID, "min_distance", minDist, "threshold", s.threshold)
    return &RetrievalResult{MinDistance: minDist, Relevant: false}, nil
  }

  selected := make([]string, 0, topK)
  for _, h := range hits[:topK] {
    selected = append(selected, chunks[h.pos])
  }
  return &RetrievalResult{Chunks: selected, MinDistance: minDist, Relevant: true}, nil
}

func (s *retrievalService) Invalidate(unitID uuid.UUID) {
  s.mu.Lock()
  delete(s.indexes, unitID)
  s.mu.Unlock()
}

// indexFor returns the unit's embedded chunk index, building it at most once
// per process even under concurrent free-form queries.
func (s *retrievalService) indexFor(ctx context.Context, unitID uuid.UUID, chunks []string) (*unitIndex, error) {
  s.mu.RLock()
  idx, ok := s.indexes[unitID]
  s.mu.RUnlock()
  if ok && idx.count == len(chunks) {
    return idx, nil
  }

  built, err, _ := s.group.Do(unitID.String(), func() (any, error) {
    s.mu.RLock()
    cached, ok := s.indexes[unitID]
    s.mu.RUnlock()
    if ok && cached.count == len(chunks) {
      return cached, nil
    }

    vectors, err := s.embed.Embed(ctx, chunks)
    if err != nil {
      return nil, err
    }
    fresh := &unitIndex{vectors: vectors, count: len(chunks)}

    s.mu.Lock()
    s.indexes[unitID] = fresh
    s.mu.Unlock()

    s.log.Debug("Built retrieval index", "unit_id", unitID, "chunks", len(chunks))
    return fresh, nil
  })
  if err != nil {
    return nil, err
  }
  return built.(*unitIndex), nil
}

func l2Squared(a, b []float32) float32 {
  n := len(a)
  if len(b) < n {
    n = len(b)
  }
  var sum float32
  for i := 0; i < n; i++ {
    d := a[i] - b[i]
    sum += d * d
  }
  return sum
}
