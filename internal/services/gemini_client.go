package services

import (
  "bufio"
  "bytes"
  "context"
  "encoding/base64"
  "encoding/json"
  "errors"
  "fmt"
  "io"
  "math/rand"
  "net"
  "net/http"
  "net/url"
  "os"
  "strconv"
  "strings"
  "time"

  "github.com/pathshala-ai/tutor-backend/internal/logger"
)

// GenerateRequest carries one prompt to the generative-text service. The
// optional inline image rides along as raw bytes.
type GenerateRequest struct {
  Prompt            string
  SystemInstruction string
  Temperature       float64
  ImageData         []byte
  ImageMIME         string
}

// GeminiClient is the Generation Adapter. GenerateText blocks until the full
// answer is available (used by the look-ahead worker); GenerateTextStream
// emits partial text through onDelta and returns the same final content.
type GeminiClient interface {
  GenerateText(ctx context.Context, req GenerateRequest) (string, error)
  GenerateTextStream(ctx context.Context, req GenerateRequest, onDelta func(delta string) error) (string, error)
}

type geminiClient struct {
  log        *logger.Logger
  baseURL    string
  apiKey     string
  model      string
  httpClient *http.Client

  maxRetries int
}

func NewGeminiClient(log *logger.Logger) (GeminiClient, error) {
  apiKey := os.Getenv("GEMINI_API_KEY")
  if apiKey == "" {
    return nil, fmt.Errorf("missing GEMINI_API_KEY")
  }

  baseURL := os.Getenv("GEMINI_BASE_URL")
  if baseURL == "" {
    baseURL = "https://generativelanguage.googleapis.com/v1beta"
  }

  model := os.Getenv("GEMINI_MODEL")
  if model == "" {
    model = "gemini-2.5-flash"
  }

  timeoutSec := 120
  if v := os.Getenv("GEMINI_TIMEOUT_SECONDS"); v != "" {
    if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
      timeoutSec = parsed
    }
  }

  maxRetries := 3
  if v := os.Getenv("GEMINI_MAX_RETRIES"); v != "" {
    if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed >= 0 {
      maxRetries = parsed
    }
  }

  return &geminiClient{
    log:        log.With("service", "GeminiClient"),
    baseURL:    strings.TrimRight(baseURL, "/"),
    apiKey:     apiKey,
    model:      model,
    httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
    maxRetries: maxRetries,
  }, nil
}

type geminiHTTPError struct {
  StatusCode int
  Body       string
}

func (e *geminiHTTPError) Error() string {
  return fmt.Sprintf("gemini http %d: %s", e.StatusCode, e.Body)
}

func isRetryableHTTP(code int) bool {
  if code == 408 || code == 429 {
    return true
  }
  if code >= 500 && code <= 599 {
    return true
  }
  return false
}

func isRetryableErr(err error) bool {
  if err == nil {
    return false
  }
  if errors.Is(err, context.DeadlineExceeded) {
    return true
  }
  if errors.Is(err, context.Canceled) {
    return false
  }
  var netErr net.Error
  if errors.As(err, &netErr) && netErr.Timeout() {
    return true
  }
  var httpErr *geminiHTTPError
  if errors.As(err, &httpErr) {
    return isRetryableHTTP(httpErr.StatusCode)
  }
  return false
}

func jitterSleep(base time.Duration) time.Duration {
  // +/- 20%
  if base <= 0 {
    return 0
  }
  j := 0.2
  delta := base.Seconds() * j
  low := base.Seconds() - delta
  high := base.Seconds() + delta
  if low < 0 {
    low = 0
  }
  v := low + rand.Float64()*(high-low)
  return time.Duration(v * float64(time.Second))
}

type geminiPart struct {
  Text       string            `json:"text,omitempty"`
  InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
  MIMEType string `json:"mime_type"`
  Data     string `json:"data"`
}

type geminiContent struct {
  Role  string       `json:"role,omitempty"`
  Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
  Temperature float64 `json:"temperature"`
}

type geminiRequest struct {
  SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
  Contents          []geminiContent         `json:"contents"`
  GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
  Candidates []struct {
    Content geminiContent `json:"content"`
  } `json:"candidates"`
}

func (c *geminiClient) buildPayload(req GenerateRequest) geminiRequest {
  parts := make([]geminiPart, 0, 2)
  if len(req.ImageData) > 0 {
    mime := req.ImageMIME
    if mime == "" {
      mime = "image/jpeg"
    }
    parts = append(parts, geminiPart{InlineData: &geminiInlineData{
      MIMEType: mime,
      Data:     base64.StdEncoding.EncodeToString(req.ImageData),
    }})
  }
  parts = append(parts, geminiPart{Text: req.Prompt})

  payload := geminiRequest{
    Contents:         []geminiContent{{Role: "user", Parts: parts}},
    GenerationConfig: &geminiGenerationConfig{Temperature: req.Temperature},
  }
  if strings.TrimSpace(req.SystemInstruction) != "" {
    payload.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.SystemInstruction}}}
  }
  return payload
}

func (c *geminiClient) endpoint(method string, stream bool) string {
  ep := fmt.Sprintf("%s/models/%s:%s?key=%s", c.baseURL, c.model, method, url.QueryEscape(c.apiKey))
  if stream {
    ep += "&alt=sse"
  }
  return ep
}

func (c *geminiClient) doOnce(ctx context.Context, endpoint string, payload geminiRequest) (*http.Response, []byte, error) {
  raw, err := json.Marshal(payload)
  if err != nil {
    return nil, nil, err
  }

  req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
  if err != nil {
    return nil, nil, err
  }
  req.Header.Set("Content-Type", "application/json")

  resp, err := c.httpClient.Do(req)
  if err != nil {
    return nil, nil, err
  }

  body, readErr := io.ReadAll(resp.Body)
  _ = resp.Body.Close()
  if readErr != nil {
    return resp, nil, readErr
  }

  if resp.StatusCode < 200 || resp.StatusCode >= 300 {
    return resp, body, &geminiHTTPError{StatusCode: resp.StatusCode, Body: string(body)}
  }
  return resp, body, nil
}

func (c *geminiClient) GenerateText(ctx context.Context, genReq GenerateRequest) (string, error) {
  payload := c.buildPayload(genReq)
  endpoint := c.endpoint("generateContent", false)

  backoff := 1 * time.Second

  var lastErr error
  for attempt := 0; attempt <= c.maxRetries; attempt++ {
    if ctx.Err() != nil {
      return "", &GenerationError{Op: "generateContent", Err: ctx.Err()}
    }

    resp, raw, err := c.doOnce(ctx, endpoint, payload)
    if err == nil {
      var out geminiResponse
      if uErr := json.Unmarshal(raw, &out); uErr != nil {
        return "", &GenerationError{Op: "generateContent", Err: fmt.Errorf("decode: %w", uErr)}
      }
      text := joinCandidateText(out)
      if text == "" {
        return "", &GenerationError{Op: "generateContent", Err: fmt.Errorf("empty candidates")}
      }
      return text, nil
    }
    lastErr = err

    if !isRetryableErr(err) || attempt == c.maxRetries {
      break
    }

    sleepFor := backoff
    if resp != nil {
      ra := strings.TrimSpace(resp.Header.Get("Retry-After"))
      if ra != "" {
        if secs, parseErr := strconv.Atoi(ra); parseErr == nil && secs > 0 {
          sleepFor = time.Duration(secs) * time.Second
        }
      }
    }
    if sleepFor > 10*time.Second {
      sleepFor = 10 * time.Second
    }
    sleepFor = jitterSleep(sleepFor)

    c.log.Warn("Gemini request retrying",
      "attempt", attempt+1,
      "max_retries", c.maxRetries,
      "sleep", sleepFor.String(),
      "error", err.Error(),
    )

    time.Sleep(sleepFor)
    backoff *= 2
  }

  return "", &GenerationError{Op: "generateContent", Err: lastErr}
}

func (c *geminiClient) GenerateTextStream(ctx context.Context, genReq GenerateRequest, onDelta func(delta string) error) (string, error) {
  payload := c.buildPayload(genReq)
  endpoint := c.endpoint("streamGenerateContent", true)

  resp, _, err := c.doStream(ctx, endpoint, payload)
  if err != nil {
    return "", &GenerationError{Op: "streamGenerateContent", Err: err}
  }
  defer resp.Body.Close()

  var full strings.Builder
  if err := readSSE(resp.Body, func(data []byte) error {
    var out geminiResponse
    if err := json.Unmarshal(data, &out); err != nil {
      return err
    }
    delta := joinCandidateText(out)
    if delta == "" {
      return nil
    }
    full.WriteString(delta)
    if onDelta != nil {
      return onDelta(delta)
    }
    return nil
  }); err != nil {
    return "", &GenerationError{Op: "streamGenerateContent", Err: err}
  }

  if full.Len() == 0 {
    return "", &GenerationError{Op: "streamGenerateContent", Err: fmt.Errorf("empty stream")}
  }
  return full.String(), nil
}

func (c *geminiClient) doStream(ctx context.Context, endpoint string, payload geminiRequest) (*http.Response, []byte, error) {
  raw, err := json.Marshal(payload)
  if err != nil {
    return nil, nil, err
  }

  req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
  if err != nil {
    return nil, nil, err
  }
  req.Header.Set("Content-Type", "application/json")

  resp, err := c.httpClient.Do(req)
  if err != nil {
    return nil, nil, err
  }
  if resp.StatusCode < 200 || resp.StatusCode >= 300 {
    body, _ := io.ReadAll(resp.Body)
    _ = resp.Body.Close()
    return nil, body, &geminiHTTPError{StatusCode: resp.StatusCode, Body: string(body)}
  }
  return resp, nil, nil
}

func joinCandidateText(out geminiResponse) string {
  if len(out.Candidates) == 0 {
    return ""
  }
  textParts := make([]string, 0, len(out.Candidates[0].Content.Parts))
  for _, part := range out.Candidates[0].Content.Parts {
    if part.Text != "" {
      textParts = append(textParts, part.Text)
    }
  }
  return strings.Join(textParts, "")
}

func readSSE(reader io.Reader, onData func([]byte) error) error {
  scanner := bufio.NewScanner(reader)
  scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

  var dataLines [][]byte
  flush := func() error {
    if len(dataLines) == 0 {
      return nil
    }
    payload := bytes.Join(dataLines, []byte("\n"))
    dataLines = dataLines[:0]
    chunk := strings.TrimSpace(string(payload))
    if chunk == "" || chunk == "[DONE]" {
      return nil
    }
    return onData([]byte(chunk))
  }

  for scanner.Scan() {
    line := scanner.Text()
    if strings.TrimSpace(line) == "" {
      if err := flush(); err != nil {
        return err
      }
      continue
    }
    if strings.HasPrefix(line, "data:") {
      data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
      dataLines = append(dataLines, []byte(data))
    }
  }
  if err := scanner.Err(); err != nil {
    return fmt.Errorf("sse scanner: %w", err)
  }
  return flush()
}
