package stt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alkime/callboard/internal/calls"
	"github.com/alkime/callboard/pkg/collections"
)

// flexID accepts ids encoded as JSON numbers or strings.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id is neither string nor number: %w", err)
	}
	*f = flexID(n.String())

	return nil
}

// apiTime accepts RFC 3339 timestamps and the zone-less ISO form the
// backend emits. Zone-less values are read as UTC.
type apiTime time.Time

var apiTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (t *apiTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	if s == "" {
		*t = apiTime{}
		return nil
	}

	for _, layout := range apiTimeLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			*t = apiTime(parsed)
			return nil
		}
	}

	return fmt.Errorf("unrecognized timestamp %q", s)
}

type callDTO struct {
	ID             flexID       `json:"id"`
	FileID         string       `json:"file_id"`
	FileName       string       `json:"file_name"`
	CallDuration   *float64     `json:"call_duration"`
	Status         string       `json:"status"`
	CeleryTaskID   *string      `json:"celery_task_id"`
	CreatedAt      apiTime      `json:"created_at"`
	SpeechAnalysis *analysisDTO `json:"speech_analysis"`
}

type segmentDTO struct {
	Speaker string  `json:"speaker"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    *string `json:"text"`
}

type keypointDTO struct {
	Point string `json:"point"`
}

type analysisDTO struct {
	Language          string  `json:"language"`
	Transcript        string  `json:"transcript"`
	CustomerSentiment *string `json:"customer_sentiment"`
	AgentSentiment    *string `json:"agent_sentiment"`
	OverallSentiment  *string `json:"overall_sentiment"`
	CallEfficiency    *string `json:"call_efficiency"`
	ResolutionStatus  *string `json:"resolution_status"`

	RawDiarization []segmentDTO   `json:"raw_diarization"`
	Intents        []calls.Intent `json:"intents"`
	Entities       []calls.Entity `json:"extracted_entities"`
	Issues         []calls.Issue  `json:"issues"`
	Actions        []calls.Action `json:"actions"`
	Keypoints      []keypointDTO  `json:"keypoints"`
}

type taskStatusDTO struct {
	Status string          `json:"status"`
	Result json.RawMessage `json:"result"`
}

type messageDTO struct {
	Message string `json:"message"`
}

type errorDTO struct {
	Detail json.RawMessage `json:"detail"`
}

// toRecord maps the wire call onto a record. An unrecognised status is
// logged and mapped to Pending so the poller becomes the authority for it.
func (d callDTO) toRecord(logger *slog.Logger) calls.Record {
	status, err := calls.ParseStatus(d.Status)
	if err != nil {
		logger.Warn("unrecognized call status", "id", string(d.ID), "status", d.Status)
	}

	rec := calls.Record{
		ID:        string(d.ID),
		FileName:  d.FileName,
		AudioURL:  d.FileID,
		Duration:  d.CallDuration,
		CreatedAt: time.Time(d.CreatedAt),
		Status:    status,
	}
	if d.CeleryTaskID != nil {
		rec.JobID = *d.CeleryTaskID
	}

	return rec
}

func (d analysisDTO) toAnalysis() *calls.Analysis {
	segments := collections.Apply(d.RawDiarization, func(s segmentDTO) calls.Segment {
		seg := calls.Segment{Speaker: s.Speaker, Start: s.Start, End: s.End}
		if s.Text != nil {
			seg.Text = *s.Text
		}
		return seg
	})
	segments = collections.Filter(segments, func(s calls.Segment) bool {
		return s.End > s.Start
	})
	calls.SortSegments(segments)

	return &calls.Analysis{
		Language:          d.Language,
		Transcript:        d.Transcript,
		CustomerSentiment: deref(d.CustomerSentiment),
		AgentSentiment:    deref(d.AgentSentiment),
		OverallSentiment:  deref(d.OverallSentiment),
		CallEfficiency:    deref(d.CallEfficiency),
		ResolutionStatus:  deref(d.ResolutionStatus),
		Intents:           d.Intents,
		Entities:          d.Entities,
		Issues:            d.Issues,
		Actions:           d.Actions,
		Keypoints:         collections.Apply(d.Keypoints, func(k keypointDTO) string { return k.Point }),
		Segments:          segments,
	}
}

// detail pulls a progress message out of a task result. Running tasks carry
// {"detail": "..."}; other shapes yield an empty string.
func (d taskStatusDTO) detail() string {
	if len(d.Result) == 0 {
		return ""
	}

	var meta struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(d.Result, &meta); err != nil {
		return ""
	}

	return strings.TrimSpace(meta.Detail)
}

// message renders FastAPI's detail, which is a string for HTTPException and
// a list of objects for validation errors.
func (e errorDTO) message() string {
	if len(e.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(e.Detail, &s); err == nil {
		return s
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(e.Detail, &items); err == nil {
		msgs := collections.Apply(items, func(i struct {
			Msg string `json:"msg"`
		}) string {
			return i.Msg
		})
		return strings.Join(msgs, "; ")
	}

	return string(e.Detail)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}
