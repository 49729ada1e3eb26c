// Package remote talks to the try-on generation service.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/tryon-ai/tryon/internal/logger"
	"github.com/tryon-ai/tryon/pkg/types"
)

// ErrTaskNotFound is returned when the service no longer knows a task id.
var ErrTaskNotFound = errors.New("task not found on remote service")

// Credential headers sent in manual configuration mode.
const (
	HeaderVLAPIKey    = "X-VL-API-Key"
	HeaderImageAPIKey = "X-Image-API-Key"
)

// FilePart is one image uploaded as a multipart file field.
type FilePart struct {
	Field    string
	FileName string
	MimeType string
	Data     []byte
}

// Submission is the multipart body of a submit or resubmit request.
type Submission struct {
	Files   []FilePart
	Params  url.Values
	Headers http.Header
}

// StatusError is returned for non-2xx responses other than 404.
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("remote returned %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("remote returned %d", e.StatusCode)
}

// Client is an HTTP client for the generation service.
type Client struct {
	baseURL string
	http    *retryablehttp.Client
	log     logger.Logger
}

// NewClient creates a Client from the remote configuration.
func NewClient(cfg types.RemoteConfig, log logger.Logger) *Client {
	hc := retryablehttp.NewClient()
	hc.RetryMax = cfg.RetryMax
	if cfg.TimeoutSeconds > 0 {
		hc.HTTPClient.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	hc.Logger = leveledLogger{log: log}
	hc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    hc,
		log:     log,
	}
}

// Submit creates a new task under prefix.
func (c *Client) Submit(ctx context.Context, prefix string, sub *Submission) (*types.SubmitResponse, error) {
	var resp types.SubmitResponse
	if err := c.sendMultipart(ctx, http.MethodPost, c.endpoint(prefix, "submit"), sub, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Resubmit replaces the inputs of an existing task and restarts it.
func (c *Client) Resubmit(ctx context.Context, prefix, taskID string, sub *Submission) (*types.SubmitResponse, error) {
	var resp types.SubmitResponse
	if err := c.sendMultipart(ctx, http.MethodPut, c.endpoint(prefix, "resubmit", taskID), sub, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status returns the processing status of a task.
func (c *Client) Status(ctx context.Context, prefix, taskID string) (*types.StatusResponse, error) {
	var resp types.StatusResponse
	if err := c.send(ctx, http.MethodGet, c.endpoint(prefix, "status", taskID), nil, "", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Result returns the outcome of a task.
func (c *Client) Result(ctx context.Context, prefix, taskID string) (*types.ResultResponse, error) {
	var resp types.ResultResponse
	if err := c.send(ctx, http.MethodGet, c.endpoint(prefix, "result", taskID), nil, "", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Delete removes a task from the service.
func (c *Client) Delete(ctx context.Context, prefix, taskID string) (*types.DeleteResponse, error) {
	var resp types.DeleteResponse
	if err := c.send(ctx, http.MethodDelete, c.endpoint(prefix, "task", taskID), nil, "", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) endpoint(prefix string, parts ...string) string {
	escaped := make([]string, 0, len(parts)+1)
	escaped = append(escaped, prefix)
	for _, p := range parts {
		escaped = append(escaped, url.PathEscape(p))
	}
	return c.baseURL + "/" + strings.Join(escaped, "/")
}

func (c *Client) sendMultipart(ctx context.Context, method, target string, sub *Submission, out any) error {
	if sub == nil {
		sub = &Submission{}
	}
	body, contentType, err := encodeMultipart(sub)
	if err != nil {
		return err
	}
	return c.send(ctx, method, target, body, contentType, sub.Headers, out)
}

func (c *Client) send(ctx context.Context, method, target string, body []byte, contentType string, headers http.Header, out any) error {
	var raw any
	if body != nil {
		raw = body
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, target, raw)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for name, values := range headers {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to %s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrTaskNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &StatusError{StatusCode: resp.StatusCode, Detail: errorDetail(data)}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func encodeMultipart(sub *Submission) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, f := range sub.Files {
		mimeType := f.MimeType
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(f.Field), quoteEscaper.Replace(f.FileName)))
		h.Set("Content-Type", mimeType)

		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create part %s: %w", f.Field, err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", fmt.Errorf("failed to write part %s: %w", f.Field, err)
		}
	}

	for name, values := range sub.Params {
		for _, v := range values {
			if err := w.WriteField(name, v); err != nil {
				return nil, "", fmt.Errorf("failed to write field %s: %w", name, err)
			}
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart body: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// errorDetail extracts the service's error message from a JSON error body.
func errorDetail(data []byte) string {
	var body struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err != nil || body.Detail == nil {
		return strings.TrimSpace(string(data))
	}
	if s, ok := body.Detail.(string); ok {
		return s
	}
	detail, _ := json.Marshal(body.Detail)
	return string(detail)
}

// leveledLogger routes retryablehttp diagnostics to the application logger.
type leveledLogger struct {
	log logger.Logger
}

func (l leveledLogger) Error(msg string, kv ...any) { l.log.Errorf("%s%s", msg, formatKV(kv)) }
func (l leveledLogger) Info(msg string, kv ...any)  { l.log.Debugf("%s%s", msg, formatKV(kv)) }
func (l leveledLogger) Debug(msg string, kv ...any) { l.log.Debugf("%s%s", msg, formatKV(kv)) }
func (l leveledLogger) Warn(msg string, kv ...any)  { l.log.Warnf("%s%s", msg, formatKV(kv)) }

func formatKV(kv []any) string {
	var b strings.Builder
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&b, " %v=%v", kv[i], kv[i+1])
	}
	return b.String()
}
