// Package calls defines the call record, analysis and transcript types shared
// by the reconciler, the playback layer and the UI.
package calls

import (
	"sort"
	"strings"
	"time"
)

// TempIDPrefix marks ids generated locally for uploads the server has not
// confirmed yet. Server ids never carry it.
const TempIDPrefix = "upload-"

// IsTempID reports whether id belongs to an upload placeholder.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// Record is one row of the call list.
type Record struct {
	ID           string    `json:"id"`
	FileName     string    `json:"file_name"`
	AudioURL     string    `json:"audio_url,omitempty"`
	Duration     *float64  `json:"duration_seconds,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	Status       Status    `json:"status"`
	StatusDetail string    `json:"status_detail,omitempty"`
	JobID        string    `json:"job_id,omitempty"`

	IsUploading    bool `json:"is_uploading,omitempty"`
	UploadProgress int  `json:"upload_progress,omitempty"`
}

// Pollable reports whether the row should be included in status polling.
func (r Record) Pollable() bool {
	return !r.IsUploading && r.JobID != "" && !r.Status.IsTerminal()
}

// DurationSeconds returns the duration, or 0 when unknown.
func (r Record) DurationSeconds() float64 {
	if r.Duration == nil {
		return 0
	}

	return *r.Duration
}

// Placeholder builds the optimistic row shown while a file uploads.
func Placeholder(id, fileName string, now time.Time) Record {
	return Record{
		ID:          id,
		FileName:    fileName,
		CreatedAt:   now,
		IsUploading: true,
	}
}

// TaskStatus is one answer from the task status endpoint.
type TaskStatus struct {
	Status Status
	// Detail is the pipeline's progress message, if any.
	Detail string
}

// Segment is a diarized span of speech.
type Segment struct {
	Speaker string  `json:"speaker"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text,omitempty"`
}

// Contains reports whether t falls inside the half-open interval [Start, End).
func (s Segment) Contains(t float64) bool {
	return s.Start <= t && t < s.End
}

// SortSegments orders segments by start time, keeping the original order
// of equal starts.
func SortSegments(segs []Segment) {
	sort.SliceStable(segs, func(i, j int) bool {
		return segs[i].Start < segs[j].Start
	})
}

// Intent is a detected customer intent.
type Intent struct {
	Intent     string   `json:"intent"`
	Confidence *float64 `json:"confidence_score,omitempty"`
}

// Entity is a named entity extracted from the conversation.
type Entity struct {
	Type       string   `json:"entity_type"`
	Value      string   `json:"value"`
	Confidence *float64 `json:"confidence_score,omitempty"`
}

// Issue is a problem raised during the call.
type Issue struct {
	Type        string `json:"issue_type"`
	Description string `json:"description"`
}

// Action is a recommended follow-up.
type Action struct {
	Type    string `json:"action_type"`
	Details string `json:"details"`
}

// Analysis is the pipeline output for a completed call.
type Analysis struct {
	Language          string
	Transcript        string
	CustomerSentiment string
	AgentSentiment    string
	OverallSentiment  string
	CallEfficiency    string
	ResolutionStatus  string

	Intents   []Intent
	Entities  []Entity
	Issues    []Issue
	Actions   []Action
	Keypoints []string

	// Segments are sorted by start time and must not be modified.
	Segments []Segment
}

// Detail is a record together with its analysis. Analysis is nil until the
// job succeeds.
type Detail struct {
	Record
	Analysis *Analysis
}
