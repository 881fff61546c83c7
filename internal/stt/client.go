// Package stt is a thin client for the speech analytics HTTP API. It owns no
// retry or caching policy; callers decide what to do with failures.
package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/alkime/callboard/internal/calls"
	"github.com/alkime/callboard/pkg/collections"
)

const defaultTimeout = 30 * time.Second

// ClientConfig configures a Client.
type ClientConfig struct {
	BaseURL string
	Token   string
	// Timeout bounds every request except uploads, which are bounded by the
	// caller's context.
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to the /stt endpoints.
type Client struct {
	base    *url.URL
	token   string
	timeout time.Duration
	http    *http.Client
	logger  *slog.Logger
}

// AudioUpload is a recording to submit.
type AudioUpload struct {
	FileName    string
	ContentType string
	Body        io.Reader
	// Size is the body length in bytes, used for progress reporting.
	Size int64
}

// NewClient builds a client. The base URL must be absolute.
func NewClient(cfg ClientConfig) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid API base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid API base URL %q: must be absolute", cfg.BaseURL)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		base:    base,
		token:   cfg.Token,
		timeout: timeout,
		http:    hc,
		logger:  logger.With("component", "stt"),
	}, nil
}

// ListCalls fetches the call list with server-side filtering and sorting.
func (c *Client) ListCalls(ctx context.Context, q calls.Query) ([]calls.Record, error) {
	params := url.Values{}
	if q.Status != nil {
		params.Set("status", q.Status.String())
	}
	if q.Sentiment != "" {
		params.Set("sentiment", q.Sentiment)
	}
	if q.Resolution != "" {
		params.Set("resolution", q.Resolution)
	}
	if q.SortBy != "" {
		params.Set("sort_by", string(q.SortBy))
	}
	if q.Order != "" {
		params.Set("sort_order", string(q.Order))
	}

	var dtos []callDTO
	if err := c.getJSON(ctx, "list calls", "/stt/calls", params, &dtos); err != nil {
		return nil, err
	}

	return collections.Apply(dtos, func(d callDTO) calls.Record {
		return d.toRecord(c.logger)
	}), nil
}

// GetCall fetches a call together with its analysis, if any.
func (c *Client) GetCall(ctx context.Context, id string) (calls.Detail, error) {
	var dto callDTO
	if err := c.getJSON(ctx, "get call", "/stt/call/"+id, nil, &dto); err != nil {
		return calls.Detail{}, err
	}

	detail := calls.Detail{Record: dto.toRecord(c.logger)}
	if dto.SpeechAnalysis != nil {
		detail.Analysis = dto.SpeechAnalysis.toAnalysis()
	}

	return detail, nil
}

// TaskStatus queries the processing job behind a call. An unrecognised
// status is reported as calls.ErrUnknownStatus.
func (c *Client) TaskStatus(ctx context.Context, taskID string) (calls.TaskStatus, error) {
	params := url.Values{"task_id": {taskID}}

	var dto taskStatusDTO
	if err := c.getJSON(ctx, "task status", "/stt/task-status", params, &dto); err != nil {
		return calls.TaskStatus{}, err
	}

	status, err := calls.ParseStatus(dto.Status)
	if err != nil {
		return calls.TaskStatus{}, fmt.Errorf("task %s: %w", taskID, err)
	}

	return calls.TaskStatus{Status: status, Detail: dto.detail()}, nil
}

// DeleteCall removes a call and returns the server's confirmation message.
func (c *Client) DeleteCall(ctx context.Context, id string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodDelete, "/stt/call/"+id, nil, nil)
	if err != nil {
		return "", err
	}

	var msg messageDTO
	if err := c.do(req, "delete call", &msg); err != nil {
		return "", err
	}

	return msg.Message, nil
}

// SubmitAudio streams a recording as multipart form data. onBytes, when set,
// is called from the upload goroutine with the number of body bytes handed to
// the transport so far and upload.Size.
func (c *Client) SubmitAudio(
	ctx context.Context,
	upload AudioUpload,
	onBytes func(sent, total int64),
) (calls.Record, error) {
	const op = "submit audio"

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeAudioPart(mw, upload, onBytes))
	}()

	req, err := c.newRequest(ctx, http.MethodPost, "/stt/submit-audio", nil, pr)
	if err != nil {
		pr.CloseWithError(err)
		return calls.Record{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var dto callDTO
	if err := c.do(req, op, &dto); err != nil {
		pr.CloseWithError(err)
		return calls.Record{}, err
	}

	return dto.toRecord(c.logger), nil
}

func writeAudioPart(mw *multipart.Writer, upload AudioUpload, onBytes func(sent, total int64)) error {
	contentType := upload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, upload.FileName))
	header.Set("Content-Type", contentType)

	part, err := mw.CreatePart(header)
	if err != nil {
		return err
	}

	body := upload.Body
	if onBytes != nil {
		body = &countingReader{r: upload.Body, total: upload.Size, onRead: onBytes}
	}

	if _, err := io.Copy(part, body); err != nil {
		return fmt.Errorf("failed to read audio: %w", err)
	}

	return mw.Close()
}

type countingReader struct {
	r      io.Reader
	sent   int64
	total  int64
	onRead func(sent, total int64)
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.sent += int64(n)
		c.onRead(c.sent, c.total)
	}

	return n, err
}

func (c *Client) getJSON(ctx context.Context, op, path string, params url.Values, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, path, params, nil)
	if err != nil {
		return err
	}

	return c.do(req, op, out)
}

func (c *Client) newRequest(
	ctx context.Context,
	method, path string,
	params url.Values,
	body io.Reader,
) (*http.Request, error) {
	u := *c.base
	u.Path = c.base.Path + path
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	return req, nil
}

func (c *Client) do(req *http.Request, op string, out any) error {
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("api request",
		"op", op,
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e errorDTO
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = json.Unmarshal(body, &e)

		return &APIError{Op: op, StatusCode: resp.StatusCode, Detail: e.message()}
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", op, err)
	}

	return nil
}
