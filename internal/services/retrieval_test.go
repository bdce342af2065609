package services

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/pathshala-ai/tutor-backend/internal/logger"
)

type fakeEmbed struct {
	mu         sync.Mutex
	vectors    map[string][]float32
	batchCalls int
}

func (f *fakeEmbed) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(inputs) > 1 {
		f.batchCalls++
	}
	out := make([][]float32, len(inputs))
	for i, input := range inputs {
		if v, ok := f.vectors[input]; ok {
			out[i] = v
		} else {
			out[i] = []float32{0, 0}
		}
	}
	return out, nil
}

func TestRetrieve_RanksByDistance(t *testing.T) {
	chunks := []string{"near", "nearer", "far"}
	embed := &fakeEmbed{vectors: map[string][]float32{
		"near":   {0.4, 0},
		"nearer": {0.1, 0},
		"far":    {5, 0},
		"query":  {0, 0},
	}}
	svc := NewRetrievalService(logger.NewNop(), embed, 1.5)

	result, err := svc.Retrieve(context.Background(), uuid.New(), chunks, "query", 2)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if !result.Relevant {
		t.Fatalf("expected relevant result, min distance %v", result.MinDistance)
	}
	if len(result.Chunks) != 2 || result.Chunks[0] != "nearer" || result.Chunks[1] != "near" {
		t.Fatalf("unexpected ranking %+v", result.Chunks)
	}
}

func TestRetrieve_GatesIrrelevantQuery(t *testing.T) {
	chunks := []string{"a", "b"}
	embed := &fakeEmbed{vectors: map[string][]float32{
		"a":     {10, 0},
		"b":     {12, 0},
		"query": {0, 0},
	}}
	svc := NewRetrievalService(logger.NewNop(), embed, 1.5)

	result, err := svc.Retrieve(context.Background(), uuid.New(), chunks, "query", 3)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if result.Relevant {
		t.Fatalf("expected gated result, got %+v", result)
	}
	if len(result.Chunks) != 0 {
		t.Fatalf("gated result must carry no chunks")
	}
	if result.MinDistance < 1.5 {
		t.Fatalf("min distance should exceed threshold, got %v", result.MinDistance)
	}
}

func TestRetrieve_TopKClampedToChunkCount(t *testing.T) {
	chunks := []string{"only"}
	embed := &fakeEmbed{vectors: map[string][]float32{
		"only":  {0.1, 0},
		"query": {0, 0},
	}}
	svc := NewRetrievalService(logger.NewNop(), embed, 1.5)

	result, err := svc.Retrieve(context.Background(), uuid.New(), chunks, "query", 5)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(result.Chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(result.Chunks))
	}
}

func TestRetrieve_IndexBuiltOncePerUnit(t *testing.T) {
	chunks := []string{"a", "b", "c"}
	embed := &fakeEmbed{vectors: map[string][]float32{"query": {0, 0}}}
	svc := NewRetrievalService(logger.NewNop(), embed, 100)
	unitID := uuid.New()

	for i := 0; i < 3; i++ {
		if _, err := svc.Retrieve(context.Background(), unitID, chunks, "query", 3); err != nil {
			t.Fatalf("Retrieve: %v", err)
		}
	}
	if embed.batchCalls != 1 {
		t.Fatalf("expected 1 index build, got %d", embed.batchCalls)
	}
}

func TestRetrieve_RebuildsWhenChunkCountChanges(t *testing.T) {
	embed := &fakeEmbed{vectors: map[string][]float32{"query": {0, 0}}}
	svc := NewRetrievalService(logger.NewNop(), embed, 100)
	unitID := uuid.New()

	if _, err := svc.Retrieve(context.Background(), unitID, []string{"a", "b"}, "query", 2); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if _, err := svc.Retrieve(context.Background(), unitID, []string{"a", "b", "c"}, "query", 2); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if embed.batchCalls != 2 {
		t.Fatalf("expected rebuild on changed content, got %d builds", embed.batchCalls)
	}
}

func TestRetrieve_EmptyChunksFails(t *testing.T) {
	embed := &fakeEmbed{vectors: map[string][]float32{}}
	svc := NewRetrievalService(logger.NewNop(), embed, 1.5)
	if _, err := svc.Retrieve(context.Background(), uuid.New(), nil, "query", 3); err == nil {
		t.Fatalf("expected error for empty chunk list")
	}
}

func TestInvalidate_DropsCachedIndex(t *testing.T) {
	chunks := []string{"a", "b"}
	embed := &fakeEmbed{vectors: map[string][]float32{"query": {0, 0}}}
	svc := NewRetrievalService(logger.NewNop(), embed, 100)
	unitID := uuid.New()

	if _, err := svc.Retrieve(context.Background(), unitID, chunks, "query", 2); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	svc.Invalidate(unitID)
	if _, err := svc.Retrieve(context.Background(), unitID, chunks, "query", 2); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if embed.batchCalls != 2 {
		t.Fatalf("expected rebuild after Invalidate, got %d builds", embed.batchCalls)
	}
}
