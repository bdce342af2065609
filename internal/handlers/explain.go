package handlers

import (
  "encoding/base64"
  "encoding/json"
  "fmt"
  "net/http"

  "github.com/gin-gonic/gin"

  "github.com/pathshala-ai/tutor-backend/internal/logger"
  "github.com/pathshala-ai/tutor-backend/internal/middleware"
  "github.com/pathshala-ai/tutor-backend/internal/services"
)

type ExplainHandler struct {
  log *logger.Logger
  svc services.ExplainService
}

func NewExplainHandler(log *logger.Logger, svc services.ExplainService) *ExplainHandler {
  return &ExplainHandler{log: log.With("handler", "ExplainHandler"), svc: svc}
}

type explainRequestBody struct {
  Query     string `json:"query" binding:"required"`
  IsInitial bool   `json:"is_initial"`
  Stream    bool   `json:"stream"`
}

type explainResponseBody struct {
  Answer          string   `json:"answer,omitempty"`
  Image           []byte   `json:"image,omitempty"`
  InitialResponse []string `json:"initial_response,omitempty"`
}

// POST /api/:subject/:topic/:subtopic/explains
func (h *ExplainHandler) Explain(c *gin.Context) {
  var body explainRequestBody
  if err := c.ShouldBindJSON(&body); err != nil {
    RespondError(c, http.StatusBadRequest, "bad_request", err)
    return
  }

  req := services.ExplainRequest{
    UserID:    middleware.UserID(c),
    Subject:   c.Param("subject"),
    Topic:     c.Param("topic"),
    Subtopic:  c.Param("subtopic"),
    Query:     body.Query,
    IsInitial: body.IsInitial,
  }

  if body.Stream {
    h.explainStream(c, req)
    return
  }

  result, err := h.svc.Handle(c.Request.Context(), req)
  if err != nil {
    status, code := statusForError(err)
    h.log.Error("Explain request failed", "status", status, "error", err)
    RespondError(c, status, code, err)
    return
  }

  RespondOK(c, explainResponseBody{
    Answer:          result.Answer,
    Image:           result.Image,
    InitialResponse: result.InitialResponse,
  })
}

// explainStream replays the same state machine over SSE: content events carry
// text deltas, a trailing image event carries the diagram when one matched,
// and a status event closes the stream.
func (h *ExplainHandler) explainStream(c *gin.Context, req services.ExplainRequest) {
  c.Writer.Header().Set("Content-Type", "text/event-stream")
  c.Writer.Header().Set("Cache-Control", "no-cache")
  c.Writer.Header().Set("Connection", "keep-alive")
  c.Writer.WriteHeader(http.StatusOK)
  c.Writer.Flush()

  streamed := false
  onDelta := func(delta string) error {
    streamed = true
    return writeEvent(c, "content", gin.H{"text": delta})
  }

  result, err := h.svc.HandleStream(c.Request.Context(), req, onDelta)
  if err != nil {
    _, code := statusForError(err)
    h.log.Error("Explain stream failed", "code", code, "error", err)
    _ = writeEvent(c, "error", gin.H{"code": code, "message": err.Error()})
    return
  }

  if len(result.InitialResponse) > 0 {
    _ = writeEvent(c, "initial", gin.H{"initial_response": result.InitialResponse})
  } else if !streamed && result.Answer != "" {
    // Canned answers (gating, completion, cached consume fallbacks) arrive
    // whole rather than as deltas.
    _ = writeEvent(c, "content", gin.H{"text": result.Answer})
  }

  if len(result.Image) > 0 {
    _ = writeEvent(c, "image", gin.H{"data": base64.StdEncoding.EncodeToString(result.Image)})
  }
  _ = writeEvent(c, "status", gin.H{"state": "complete"})
}

func writeEvent(c *gin.Context, event string, payload any) error {
  data, err := json.Marshal(payload)
  if err != nil {
    return err
  }
  if _, err := fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, data); err != nil {
    return err
  }
  c.Writer.Flush()
  return nil
}
