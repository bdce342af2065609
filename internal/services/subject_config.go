package services

import (
  "fmt"
  "os"

  "gopkg.in/yaml.v3"

  "github.com/pathshala-ai/tutor-backend/internal/logger"
)

// SubjectConfig is the per-subject tutoring profile: tone and formatting of
// the system instruction, canned rewrites for the fixed commands, the fixed
// rejection/completion strings, and whether free-form questions are allowed
// at all. Subjects are configuration rows, not code branches.
type SubjectConfig struct {
  SystemInstruction       string  `yaml:"system_instruction"`
  PromptLanguage          string  `yaml:"prompt_language"` // "bn" or "en"
  ReExplainQuery          string  `yaml:"re_explain_query"`
  ResetQuery              string  `yaml:"reset_query"`
  FreeFormAllowed         bool    `yaml:"free_form_allowed"`
  QueryScript             string  `yaml:"query_script"` // script required of free-form queries; "" = any
  RestrictedMessage       string  `yaml:"restricted_message"`
  LanguageMismatchMessage string  `yaml:"language_mismatch_message"`
  IrrelevantMessage       string  `yaml:"irrelevant_message"`
  CompletionMessage       string  `yaml:"completion_message"`
  Temperature             float64 `yaml:"temperature"`
}

type SubjectConfigTable struct {
  configs  map[string]SubjectConfig
  fallback SubjectConfig
}

const (
  scriptLatin   = "latin"
  scriptBengali = "bengali"

  completionMessage = "Congratulations, you have mastered the topic!"

  bengaliRestrictedMessage = "দুঃখিত, এই সেবাটি শুধুমাত্র English বিষয়ের জন্য প্রযোজ্য। অনুগ্রহ করে 'নতুনভাবে ও সহজভাবে বলুন(AI)' বা 'পরবর্তী অংশে যান' ব্যবহার করুন।"

  englishMismatchMessage = "Sorry, this service is only applicable for English subject in English language. Please ask questions in English related to the English subject matter."

  englishIrrelevantMessage = "I'm sorry, but your question seems to be out of context for the current English topic we're studying. Please ask questions related to the English subject matter we're covering."
)

const bengaliMathSystemInstruction = `আপনি বাংলাদেশের ৯-১০ শ্রেণির শিক্ষাগত সহকারী। সহজ ভাষায় ধাপে ধাপে পাঠের অংশ শেখান।

নির্দেশিকা:
1. মজার ও আকর্ষণীয় ব্যাখ্যা, প্রয়োজনে গল্প
2. কথোপকথনের স্মৃতি ব্যবহার করে ব্যক্তিগতকরণ
3. মার্কডাউন ব্যবহার করুন
4. শুধু টেক্সট ব্যবহার করুন, কোনো ASCII আর্ট নয়
5. সাধারণ লেখা ও তালিকার জন্য সহজ টেক্সট ফরম্যাটিং ব্যবহার করুন। শুধু গাণিতিক প্রকাশের জন্য ল্যাটেক্স ব্যবহার করবেন
6. গাণিতিক প্রকাশ:
   - ইনলাইন: $x = 5$, $x^2 = 25$
   - সমীকরণ: $\frac{a + b}{c - d} = \frac{10}{5}$
7. টেবিল দরকার হলে মার্কডাউন টেবিল ব্যবহার করুন

লক্ষ্য: আনন্দের সাথে সহজে শেখানো।`

const englishSystemInstruction = `You are an educational assistant tasked with creating a step-by-step learning guide for a user. Your sentences should be simple.

Your teaching approach:
1. Explain content in fun and interesting ways
2. Make explanations engaging, use stories if necessary
3. Use memory of recent conversations to personalize responses
4. Reply in very simple English and write meanings around difficult words if necessary
5. Use Markdown for formatting when appropriate`

func DefaultSubjectConfigs() *SubjectConfigTable {
  bengaliMath := SubjectConfig{
    SystemInstruction: bengaliMathSystemInstruction,
    PromptLanguage:    "bn",
    ReExplainQuery:    "please explain more easily and elaborately",
    ResetQuery:        "Explain the context easy fun way",
    FreeFormAllowed:   false,
    RestrictedMessage: bengaliRestrictedMessage,
    CompletionMessage: completionMessage,
    Temperature:       0.3,
  }

  english := SubjectConfig{
    SystemInstruction:       englishSystemInstruction,
    PromptLanguage:          "en",
    ReExplainQuery:          "please explain in easier english and easily",
    ResetQuery:              "Explain the context easy fun way",
    FreeFormAllowed:         true,
    QueryScript:             scriptLatin,
    LanguageMismatchMessage: englishMismatchMessage,
    IrrelevantMessage:       englishIrrelevantMessage,
    CompletionMessage:       completionMessage,
    Temperature:             0.3,
  }

  fallback := SubjectConfig{
    SystemInstruction: "Explain in easy and fun way",
    PromptLanguage:    "en",
    ReExplainQuery:    "please explain more easily and elaborately",
    ResetQuery:        "Explain the context easy fun way",
    FreeFormAllowed:   false,
    RestrictedMessage: "Sorry, open-ended questions are not available for this subject. Please use the explain or continue options.",
    CompletionMessage: completionMessage,
    Temperature:       0.3,
  }

  return &SubjectConfigTable{
    configs: map[string]SubjectConfig{
      "গণিত":       bengaliMath,
      "উচ্চতর গণিত": bengaliMath,
      "English":    english,
    },
    fallback: fallback,
  }
}

// LoadSubjectConfigs merges a YAML override file over the built-in table.
// Subjects present in the file replace the defaults wholesale.
func LoadSubjectConfigs(path string, log *logger.Logger) (*SubjectConfigTable, error) {
  table := DefaultSubjectConfigs()
  if path == "" {
    return table, nil
  }

  raw, err := os.ReadFile(path)
  if err != nil {
    return nil, fmt.Errorf("read subject config %s: %w", path, err)
  }

  var overrides map[string]SubjectConfig
  if err := yaml.Unmarshal(raw, &overrides); err != nil {
    return nil, fmt.Errorf("parse subject config %s: %w", path, err)
  }

  for name, cfg := range overrides {
    table.configs[name] = cfg
    if log != nil {
      log.Info("Subject config overridden", "subject", name)
    }
  }
  return table, nil
}

func (t *SubjectConfigTable) Lookup(subject string) SubjectConfig {
  if cfg, ok := t.configs[subject]; ok {
    return cfg
  }
  return t.fallback
}
