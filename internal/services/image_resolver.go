package services

import (
  "context"
  "regexp"
  "strings"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/pathshala-ai/tutor-backend/internal/logger"
  "github.com/pathshala-ai/tutor-backend/internal/repos"
)

// imageMarker flags chunks that reference a stored diagram.
const imageMarker = "image description"

var (
  headingTitlePattern = regexp.MustCompile(`^\\(section|subsection|textbf)\*?\{([^}]*)\}`)
  boldTitlePattern    = regexp.MustCompile(`^\*\*(.+?)\*\*`)
)

// ImageResolver maps a chunk's image marker to a stored diagram asset for
// its unit. Returns nil bytes when the chunk carries no marker or no
// matching diagram exists.
type ImageResolver interface {
  Resolve(ctx context.Context, tx *gorm.DB, subtopicID uuid.UUID, chunkText string) ([]byte, error)
}

type imageResolver struct {
  log  *logger.Logger
  repo repos.DiagramRepo

  // substringMatch switches the title lookup from exact equality to
  // contains. Policy knob, off by default.
  substringMatch bool
}

func NewImageResolver(log *logger.Logger, repo repos.DiagramRepo, substringMatch bool) ImageResolver {
  return &imageResolver{
    log:            log.With("service", "ImageResolver"),
    repo:           repo,
    substringMatch: substringMatch,
  }
}

func (s *imageResolver) Resolve(ctx context.Context, tx *gorm.DB, subtopicID uuid.UUID, chunkText string) ([]byte, error) {
  if !strings.Contains(strings.ToLower(chunkText), imageMarker) {
    return nil, nil
  }

  title := extractDiagramTitle(chunkText)
  if title == "" {
    return nil, nil
  }

  diagram, err := s.repo.GetByTitle(ctx, tx, subtopicID, title)
  if err != nil {
    return nil, err
  }
  if diagram == nil && s.substringMatch {
    diagram, err = s.repo.GetByTitleContains(ctx, tx, subtopicID, title)
    if err != nil {
      return nil, err
    }
  }
  if diagram == nil || len(diagram.ImageContent) == 0 {
    s.log.Debug("No diagram matched chunk title", "subtopic_id", subtopicID, "title", title)
    return nil, nil
  }
  return diagram.ImageContent, nil
}

// extractDiagramTitle pulls a lookup title from the chunk's first line:
// a LaTeX heading command with a braced title, a bold-markup title, or as a
// fallback the line with bracket and brace characters stripped.
func extractDiagramTitle(chunkText string) string {
  lines := strings.SplitN(chunkText, "\n", 2)
  if len(lines) == 0 {
    return ""
  }
  firstLine := strings.TrimSpace(lines[0])
  if firstLine == "" {
    return ""
  }

  if m := headingTitlePattern.FindStringSubmatch(firstLine); m != nil {
    return strings.TrimSpace(m[2])
  }
  if m := boldTitlePattern.FindStringSubmatch(firstLine); m != nil {
    return strings.TrimSpace(m[1])
  }

  replacer := strings.NewReplacer("{", "", "}", "", "[", "", "]", "")
  return strings.TrimSpace(replacer.Replace(firstLine))
}
