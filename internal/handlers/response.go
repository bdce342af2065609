package handlers

import (
  "errors"
  "net/http"

  "github.com/gin-gonic/gin"

  "github.com/pathshala-ai/tutor-backend/internal/services"
)

type APIError struct {
  Message string `json:"message"`
  Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
  Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
  msg := "unknown error"
  if err != nil {
    msg = err.Error()
  }
  c.JSON(status, ErrorEnvelope{
    Error: APIError{
      Message: msg,
      Code:    code,
    },
  })
}

func RespondOK(c *gin.Context, payload any) {
  c.JSON(http.StatusOK, payload)
}

// statusForError maps service-layer errors onto HTTP statuses.
func statusForError(err error) (int, string) {
  switch {
  case errors.Is(err, services.ErrUnauthorized):
    return http.StatusUnauthorized, "unauthorized"
  case errors.Is(err, services.ErrConflict):
    return http.StatusConflict, "conflict"
  case services.IsNotFound(err):
    return http.StatusNotFound, "not_found"
  case services.IsGenerationError(err):
    return http.StatusBadGateway, "generation_failed"
  default:
    return http.StatusInternalServerError, "internal"
  }
}
