package services

import (
  "encoding/json"
  "fmt"
  "strings"
  "unicode"

  "gorm.io/datatypes"

  "github.com/pathshala-ai/tutor-backend/internal/types"
)

// maxMemoryPairs bounds the conversation history carried in a session row
// and in every prompt.
const maxMemoryPairs = 30

func decodeMemory(raw datatypes.JSON) []types.QAPair {
  if len(raw) == 0 {
    return nil
  }
  var pairs []types.QAPair
  if err := json.Unmarshal(raw, &pairs); err != nil {
    return nil
  }
  return pairs
}

func encodeMemory(pairs []types.QAPair) datatypes.JSON {
  if pairs == nil {
    pairs = []types.QAPair{}
  }
  raw, err := json.Marshal(pairs)
  if err != nil {
    return datatypes.JSON([]byte(`[]`))
  }
  return datatypes.JSON(raw)
}

// appendMemory adds one pair and evicts the oldest entries beyond the cap.
func appendMemory(pairs []types.QAPair, question, answer string) []types.QAPair {
  out := append(pairs, types.QAPair{Question: question, Answer: answer})
  if len(out) > maxMemoryPairs {
    out = out[len(out)-maxMemoryPairs:]
  }
  return out
}

func memoryText(pairs []types.QAPair) string {
  if len(pairs) == 0 {
    return "No prior conversation."
  }
  if len(pairs) > maxMemoryPairs {
    pairs = pairs[len(pairs)-maxMemoryPairs:]
  }
  lines := make([]string, 0, len(pairs))
  for _, pair := range pairs {
    lines = append(lines, fmt.Sprintf("User: %s\nAssistant: %s", pair.Question, pair.Answer))
  }
  return strings.Join(lines, "\n\n")
}

// BuildPrompt assembles the user prompt and the system instruction for one
// generation call. context carries retrieved chunks for free-form queries;
// chunk carries the active lesson chunk otherwise.
func BuildPrompt(query string, memory []types.QAPair, context []string, chunk string, cfg SubjectConfig) (prompt string, systemInstruction string) {
  lesson := chunk
  if len(context) > 0 {
    lesson = strings.Join(context, "\n\n")
  }

  if cfg.PromptLanguage == "bn" {
    prompt = fmt.Sprintf(`ব্যবহারকারী:
%s

সাম্প্রতিক কথোপকথনের ইতিহাস:
%s

পাঠের অংশ:
%s

পাঠের অংশ ধাপে ধাপে ভেঙে বুঝাও। উদাহরণ থাকলে সেটিও সহজ করে উপস্থাপন করো।
শুধু টেক্সট ব্যবহার করুন, কোনো ASCII আর্ট নয়
`, query, memoryText(memory), lesson)
  } else {
    prompt = fmt.Sprintf(`User Input:
%s

Recent Chat History:
%s

Relevant Text:
%s`, query, memoryText(memory), lesson)
  }

  return prompt, cfg.SystemInstruction
}

// matchesScript reports whether a free-form query is written in the script
// the unit expects. An empty required script accepts anything.
func matchesScript(query, required string) bool {
  switch required {
  case scriptLatin:
    return !containsBengali(query)
  case scriptBengali:
    return containsBengali(query)
  default:
    return true
  }
}

func containsBengali(s string) bool {
  for _, r := range s {
    if unicode.Is(unicode.Bengali, r) {
      return true
    }
  }
  return false
}
