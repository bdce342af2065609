package services

import (
  "errors"
  "fmt"
)

var (
  ErrUnauthorized = errors.New("unauthorized")

  // ErrConflict is returned when an optimistic cursor update loses a race
  // against a concurrent request for the same session. The caller can simply
  // retry; no state was corrupted.
  ErrConflict = errors.New("session progress changed concurrently")
)

// NotFoundError identifies a missing taxonomy row or unit.
type NotFoundError struct {
  Resource string
  Name     string
}

func (e *NotFoundError) Error() string {
  if e.Name == "" {
    return fmt.Sprintf("%s not found", e.Resource)
  }
  return fmt.Sprintf("%s %q not found", e.Resource, e.Name)
}

func IsNotFound(err error) bool {
  var nf *NotFoundError
  return errors.As(err, &nf)
}

// GenerationError wraps a failed or timed-out call to the generative-text
// service. Foreground callers surface it; the look-ahead worker absorbs it.
type GenerationError struct {
  Op  string
  Err error
}

func (e *GenerationError) Error() string {
  return fmt.Sprintf("generation %s: %v", e.Op, e.Err)
}

func (e *GenerationError) Unwrap() error {
  return e.Err
}

func IsGenerationError(err error) bool {
  var ge *GenerationError
  return errors.As(err, &ge)
}
