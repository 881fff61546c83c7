// Package upload drives a single recording upload through its lifecycle:
// placeholder, progress, then exactly one of completion or failure.
package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/alkime/callboard/internal/calls"
	"github.com/alkime/callboard/internal/metrics"
	"github.com/alkime/callboard/internal/stt"
)

// Submitter sends a recording to the API.
type Submitter interface {
	SubmitAudio(ctx context.Context, upload stt.AudioUpload, onBytes func(sent, total int64)) (calls.Record, error)
}

// Sink receives the lifecycle events of an upload.
type Sink interface {
	ApplyUploadStart(fileName string) string
	ApplyUploadProgress(tempID string, percent int)
	ApplyUploadComplete(tempID string, rec calls.Record)
	ApplyUploadError(tempID string)
}

// Error is the failure of one upload.
type Error struct {
	FileName string
	// Message is suitable for showing to the user.
	Message string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("upload of %s failed: %s", e.FileName, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Config configures a Tracker.
type Config struct {
	// Timeout bounds each upload. Zero means no limit besides the context.
	Timeout time.Duration
	// MaxBytes caps the size accepted by UploadPath. Zero means no limit.
	MaxBytes int64
	Logger   *slog.Logger
}

// Tracker uploads files and reports their lifecycle to a Sink.
type Tracker struct {
	submitter Submitter
	sink      Sink
	timeout   time.Duration
	maxBytes  int64
	logger    *slog.Logger
}

// New creates a Tracker.
func New(submitter Submitter, sink Sink, cfg Config) *Tracker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Tracker{
		submitter: submitter,
		sink:      sink,
		timeout:   cfg.Timeout,
		maxBytes:  cfg.MaxBytes,
		logger:    logger.With("component", "upload"),
	}
}

// Upload submits f. The placeholder is created before the network call.
// onProgress, when set, receives the same percentages as the sink. The
// returned error is always an *Error.
func (t *Tracker) Upload(ctx context.Context, f *File, onProgress func(percent int)) (calls.Record, error) {
	tempID := t.sink.ApplyUploadStart(f.Name)
	logger := t.logger.With("file", f.Name, "temp_id", tempID, "bytes", f.Size)
	logger.Info("upload started", "content_type", f.ContentType)

	prog := newProgress(func(percent int) {
		t.sink.ApplyUploadProgress(tempID, percent)
		if onProgress != nil {
			onProgress(percent)
		}
	})
	prog.report(0)

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	start := time.Now()
	var sentBytes int64

	rec, err := t.submitter.SubmitAudio(ctx, stt.AudioUpload{
		FileName:    f.Name,
		ContentType: f.ContentType,
		Body:        f.Body,
		Size:        f.Size,
	}, func(sent, total int64) {
		metrics.UploadBytes.Add(float64(sent - sentBytes))
		sentBytes = sent
		prog.bytes(sent, total)
	})
	if err != nil {
		prog.finish(false)
		t.sink.ApplyUploadError(tempID)
		metrics.Uploads.WithLabelValues(metrics.OutcomeError).Inc()

		uerr := &Error{FileName: f.Name, Message: message(ctx, err), Err: err}
		logger.Error("upload failed", "error", err, "elapsed", time.Since(start))

		return calls.Record{}, uerr
	}

	prog.finish(true)
	t.sink.ApplyUploadComplete(tempID, rec)
	metrics.Uploads.WithLabelValues(metrics.OutcomeOK).Inc()
	logger.Info("upload complete", "id", rec.ID, "job_id", rec.JobID, "elapsed", time.Since(start))

	return rec, nil
}

// UploadPath opens the file at path, checks it and uploads it. A file that
// fails the checks never gets a placeholder.
func (t *Tracker) UploadPath(ctx context.Context, path string, onProgress func(percent int)) (calls.Record, error) {
	f, err := OpenFile(path, t.maxBytes)
	if err != nil {
		metrics.Uploads.WithLabelValues(metrics.OutcomeError).Inc()
		t.logger.Warn("upload rejected", "path", path, "error", err)

		return calls.Record{}, &Error{FileName: filepath.Base(path), Message: rejectMessage(err), Err: err}
	}
	defer f.Close()

	return t.Upload(ctx, f, onProgress)
}

func rejectMessage(err error) string {
	for _, sentinel := range []error{ErrNotAudio, ErrTooLarge, ErrEmptyFile} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}

	return "could not read the file"
}

func message(ctx context.Context, err error) string {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return "upload timed out"
	case errors.Is(ctx.Err(), context.Canceled):
		return "upload cancelled"
	default:
		return stt.UserMessage(err)
	}
}
