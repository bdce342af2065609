package services

import (
	"strings"
	"testing"

	"github.com/pathshala-ai/tutor-backend/internal/types"
)

func TestAppendMemory_EvictsOldestBeyondCap(t *testing.T) {
	pairs := make([]types.QAPair, maxMemoryPairs)
	for i := range pairs {
		pairs[i] = types.QAPair{Question: "old", Answer: "old"}
	}
	out := appendMemory(pairs, "new question", "new answer")
	if len(out) != maxMemoryPairs {
		t.Fatalf("expected %d pairs, got %d", maxMemoryPairs, len(out))
	}
	if out[len(out)-1].Question != "new question" {
		t.Fatalf("newest pair must be last, got %+v", out[len(out)-1])
	}
}

func TestEncodeDecodeMemory_RoundTrip(t *testing.T) {
	in := []types.QAPair{{Question: "q1", Answer: "a1"}, {Question: "q2", Answer: "a2"}}
	out := decodeMemory(encodeMemory(in))
	if len(out) != 2 || out[0] != in[0] || out[1] != in[1] {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestDecodeMemory_GarbageYieldsNil(t *testing.T) {
	if got := decodeMemory([]byte(`{not json`)); got != nil {
		t.Fatalf("expected nil for garbage, got %+v", got)
	}
}

func TestMemoryText_EmptyHistory(t *testing.T) {
	if got := memoryText(nil); got != "No prior conversation." {
		t.Fatalf("unexpected empty-history text %q", got)
	}
}

func TestMemoryText_FormatsPairs(t *testing.T) {
	got := memoryText([]types.QAPair{{Question: "what?", Answer: "that."}})
	if !strings.Contains(got, "User: what?") || !strings.Contains(got, "Assistant: that.") {
		t.Fatalf("unexpected memory text %q", got)
	}
}

func TestBuildPrompt_ChunkMode(t *testing.T) {
	cfg := DefaultSubjectConfigs().Lookup("English")
	prompt, system := BuildPrompt("continue please", nil, nil, "the lesson chunk", cfg)
	if !strings.Contains(prompt, "the lesson chunk") {
		t.Fatalf("prompt missing chunk: %q", prompt)
	}
	if !strings.Contains(prompt, "continue please") {
		t.Fatalf("prompt missing query: %q", prompt)
	}
	if system != cfg.SystemInstruction {
		t.Fatalf("system instruction should come from the subject config")
	}
}

func TestBuildPrompt_ContextOverridesChunk(t *testing.T) {
	cfg := DefaultSubjectConfigs().Lookup("English")
	prompt, _ := BuildPrompt("q", nil, []string{"retrieved one", "retrieved two"}, "ignored chunk", cfg)
	if !strings.Contains(prompt, "retrieved one") || !strings.Contains(prompt, "retrieved two") {
		t.Fatalf("prompt missing retrieved context: %q", prompt)
	}
	if strings.Contains(prompt, "ignored chunk") {
		t.Fatalf("retrieved context must replace the chunk")
	}
}

func TestBuildPrompt_BengaliTemplate(t *testing.T) {
	cfg := DefaultSubjectConfigs().Lookup("গণিত")
	prompt, _ := BuildPrompt("", nil, nil, "পাঠ", cfg)
	if !strings.Contains(prompt, "পাঠের অংশ") {
		t.Fatalf("expected Bengali template, got %q", prompt)
	}
}

func TestMatchesScript(t *testing.T) {
	cases := []struct {
		query    string
		required string
		want     bool
	}{
		{"what is a noun?", scriptLatin, true},
		{"এটা কী?", scriptLatin, false},
		{"mixed এটা", scriptLatin, false},
		{"এটা কী?", scriptBengali, true},
		{"plain english", scriptBengali, false},
		{"anything at all", "", true},
	}
	for _, tc := range cases {
		if got := matchesScript(tc.query, tc.required); got != tc.want {
			t.Fatalf("matchesScript(%q, %q) = %v, want %v", tc.query, tc.required, got, tc.want)
		}
	}
}
