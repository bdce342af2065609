package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pathshala-ai/tutor-backend/internal/logger"
)

func TestDefaultSubjectConfigs_KnownSubjects(t *testing.T) {
	table := DefaultSubjectConfigs()

	math := table.Lookup("গণিত")
	if math.FreeFormAllowed {
		t.Fatalf("math must reject free-form queries")
	}
	if math.PromptLanguage != "bn" {
		t.Fatalf("math prompts must be Bengali, got %q", math.PromptLanguage)
	}

	english := table.Lookup("English")
	if !english.FreeFormAllowed {
		t.Fatalf("English must allow free-form queries")
	}
	if english.QueryScript != scriptLatin {
		t.Fatalf("English queries must require Latin script, got %q", english.QueryScript)
	}

	if table.Lookup("উচ্চতর গণিত").SystemInstruction != math.SystemInstruction {
		t.Fatalf("higher math should share the math profile")
	}
}

func TestLookup_UnknownSubjectFallsBack(t *testing.T) {
	cfg := DefaultSubjectConfigs().Lookup("Chemistry")
	if cfg.FreeFormAllowed {
		t.Fatalf("fallback must be restricted")
	}
	if cfg.CompletionMessage != completionMessage {
		t.Fatalf("fallback must keep the completion message")
	}
}

func TestLoadSubjectConfigs_EmptyPathUsesDefaults(t *testing.T) {
	table, err := LoadSubjectConfigs("", nil)
	if err != nil {
		t.Fatalf("LoadSubjectConfigs: %v", err)
	}
	if !table.Lookup("English").FreeFormAllowed {
		t.Fatalf("defaults must survive an empty path")
	}
}

func TestLoadSubjectConfigs_MergesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subjects.yaml")
	contents := `
Physics:
  system_instruction: "Teach physics simply."
  prompt_language: en
  re_explain_query: "again please"
  reset_query: "start over"
  free_form_allowed: true
  query_script: latin
  completion_message: "Done!"
  temperature: 0.5
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}

	table, err := LoadSubjectConfigs(path, logger.NewNop())
	if err != nil {
		t.Fatalf("LoadSubjectConfigs: %v", err)
	}

	physics := table.Lookup("Physics")
	if physics.SystemInstruction != "Teach physics simply." {
		t.Fatalf("override not applied: %+v", physics)
	}
	if physics.Temperature != 0.5 {
		t.Fatalf("expected temperature 0.5, got %v", physics.Temperature)
	}
	if !table.Lookup("English").FreeFormAllowed {
		t.Fatalf("untouched subjects must keep their defaults")
	}
}

func TestLoadSubjectConfigs_BadYAMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subjects.yaml")
	if err := os.WriteFile(path, []byte("{not yaml"), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	if _, err := LoadSubjectConfigs(path, nil); err == nil {
		t.Fatalf("expected parse error")
	}
}
