// package research drives a server-executed research job to completion.
//
// The [Controller] starts a job through the resilient client, then reconciles
// two independent views of its progress: a periodically polled status
// snapshot and a push event stream. Polling is the authority for terminal
// detection; the stream supplies fine-grained interim events.
package research

import (
	"fmt"
	"strings"

	"github.com/desertthunder/scout/internal/shared"
)

// Status is a task's lifecycle state as reported by the backend.
type Status string

const (
	StatusSubmitted    Status = "submitted"
	StatusPending      Status = "pending"
	StatusSearching    Status = "searching"
	StatusFetching     Status = "fetching"
	StatusSynthesizing Status = "synthesizing"
	StatusGenerating   Status = "generating"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
	StatusCancelled    Status = "cancelled"
)

// Terminal reports whether no further transition can occur from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Research depth presets accepted by the backend.
const (
	DepthQuick         = "quick"
	DepthStandard      = "standard"
	DepthComprehensive = "comprehensive"
)

// Bounds enforced before a request leaves the client.
const (
	MinQueryLen   = 5
	MaxQueryLen   = 1000
	MinSources    = 5
	MaxSources    = 50
	DefaultDepth  = DepthStandard
	DefaultMaxSrc = 20
)

// Request describes a research job to submit.
type Request struct {
	Query      string `json:"query"`
	Depth      string `json:"depth"`
	MaxSources int    `json:"maxSources"`
}

// Validate normalizes the request in place and rejects out-of-range fields
// before any network call is made.
func (r *Request) Validate() error {
	r.Query = strings.TrimSpace(r.Query)
	if len(r.Query) < MinQueryLen {
		return fmt.Errorf("%w: query must be at least %d characters", shared.ErrInvalidInput, MinQueryLen)
	}
	if len(r.Query) > MaxQueryLen {
		return fmt.Errorf("%w: query must be at most %d characters", shared.ErrInvalidInput, MaxQueryLen)
	}

	if r.Depth == "" {
		r.Depth = DefaultDepth
	}
	switch r.Depth {
	case DepthQuick, DepthStandard, DepthComprehensive:
	default:
		return fmt.Errorf("%w: depth must be one of quick, standard, comprehensive", shared.ErrInvalidInput)
	}

	if r.MaxSources == 0 {
		r.MaxSources = DefaultMaxSrc
	}
	if r.MaxSources < MinSources || r.MaxSources > MaxSources {
		return fmt.Errorf("%w: maxSources must be between %d and %d", shared.ErrInvalidInput, MinSources, MaxSources)
	}
	return nil
}

// startResponse is the backend's acknowledgement of a submitted task.
type startResponse struct {
	TaskID string            `json:"taskId"`
	Links  map[string]string `json:"links,omitempty"`
}

// statusResponse is one polled snapshot of a task.
type statusResponse struct {
	Status   Status          `json:"status"`
	Progress progressPayload `json:"progress"`
	Error    string          `json:"error,omitempty"`
}

// progressPayload is the wire form of a progress snapshot, shared by the
// status endpoint and the stream's progress events.
type progressPayload struct {
	Percentage       float64  `json:"percentage"`
	CurrentStep      string   `json:"currentStep"`
	StepsCompleted   []string `json:"stepsCompleted"`
	SourcesFound     *int     `json:"sourcesFound,omitempty"`
	SourcesProcessed *int     `json:"sourcesProcessed,omitempty"`
}

// Result is the final report of a completed task.
type Result struct {
	TaskID      string   `json:"taskId"`
	Query       string   `json:"query"`
	Report      string   `json:"report"`
	Sources     []Source `json:"sources,omitempty"`
	CompletedAt string   `json:"completedAt,omitempty"`
}

// Source is one reference consulted during research.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}
