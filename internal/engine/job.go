package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/teemow/inboxsweeper/internal/gmail"
)

// Kind identifies the type of work a job performs.
type Kind string

// Supported job kinds.
const (
	KindAnalysis             Kind = "analysis"
	KindDelete               Kind = "delete"
	KindDeleteWithExceptions Kind = "deleteWithExceptions"
	KindMarkRead             Kind = "markRead"
	KindApplyLabel           Kind = "applyLabel"
	KindModifyLabel          Kind = "modifyLabel"
	KindCreateFilter         Kind = "createFilter"
	KindUnsubscribe          Kind = "unsubscribe"
)

// Valid reports whether k is a known job kind.
func (k Kind) Valid() bool {
	switch k {
	case KindAnalysis, KindDelete, KindDeleteWithExceptions, KindMarkRead,
		KindApplyLabel, KindModifyLabel, KindCreateFilter, KindUnsubscribe:
		return true
	}
	return false
}

// Status is a job's lifecycle state. Transitions are monotonic:
// queued -> running -> one of the terminal states.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusError || s == StatusCancelled
}

// Progress tracks cumulative attempted items against the job total.
// Current never decreases and never exceeds Total.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// Request describes the work to enqueue. Which fields are required
// depends on the Kind; Validate enforces the combinations.
type Request struct {
	Kind Kind `json:"kind"`

	// Sender scopes the job to one sender's messages. Either Sender or
	// Query must be set for message-scoped kinds.
	Sender string `json:"sender,omitempty"`

	// Query is a Gmail search query used instead of, or in addition
	// to, the sender scope.
	Query string `json:"query,omitempty"`

	// ExcludedIDs are message IDs spared by deleteWithExceptions.
	ExcludedIDs []string `json:"excludedIds,omitempty"`

	// LabelName is the label applied by applyLabel, created on demand.
	LabelName string `json:"labelName,omitempty"`

	// AddLabelIDs and RemoveLabelIDs drive modifyLabel jobs.
	AddLabelIDs    []string `json:"addLabelIds,omitempty"`
	RemoveLabelIDs []string `json:"removeLabelIds,omitempty"`

	// FilterCriteria and FilterAction drive createFilter jobs.
	FilterCriteria gmail.FilterCriteria `json:"filterCriteria,omitempty"`
	FilterAction   gmail.FilterAction   `json:"filterAction,omitempty"`

	// MessageID selects the message whose List-Unsubscribe header an
	// unsubscribe job follows. When empty the newest message from
	// Sender is used.
	MessageID string `json:"messageId,omitempty"`

	// MaxMessages caps how many messages the job touches. Zero means
	// no limit.
	MaxMessages int64 `json:"maxMessages,omitempty"`
}

// ErrInvalidRequest wraps all request validation failures.
var ErrInvalidRequest = errors.New("invalid job request")

// Validate checks that the request carries the fields its kind needs.
func (r Request) Validate() error {
	if !r.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRequest, r.Kind)
	}
	switch r.Kind {
	case KindDelete, KindDeleteWithExceptions, KindMarkRead, KindApplyLabel, KindModifyLabel:
		if r.Sender == "" && r.Query == "" {
			return fmt.Errorf("%w: %s requires a sender or query", ErrInvalidRequest, r.Kind)
		}
	case KindUnsubscribe:
		if r.Sender == "" && r.MessageID == "" {
			return fmt.Errorf("%w: unsubscribe requires a sender or message id", ErrInvalidRequest)
		}
	}
	switch r.Kind {
	case KindApplyLabel:
		if r.LabelName == "" {
			return fmt.Errorf("%w: applyLabel requires a label name", ErrInvalidRequest)
		}
	case KindModifyLabel:
		if len(r.AddLabelIDs) == 0 && len(r.RemoveLabelIDs) == 0 {
			return fmt.Errorf("%w: modifyLabel requires labels to add or remove", ErrInvalidRequest)
		}
	case KindCreateFilter:
		if r.FilterCriteria == (gmail.FilterCriteria{}) {
			return fmt.Errorf("%w: createFilter requires criteria", ErrInvalidRequest)
		}
	}
	return nil
}

// searchQuery builds the Gmail query selecting the job's messages.
func (r Request) searchQuery() string {
	switch {
	case r.Sender != "" && r.Query != "":
		return fmt.Sprintf("from:%s %s", r.Sender, r.Query)
	case r.Sender != "":
		return "from:" + r.Sender
	default:
		return r.Query
	}
}

// Job is the queue's record of one unit of work.
type Job struct {
	ID       string   `json:"id"`
	Kind     Kind     `json:"kind"`
	Request  Request  `json:"request"`
	Status   Status   `json:"status"`
	Progress Progress `json:"progress"`

	// FailedBatches lists the zero-based indices of batches that
	// failed while the job as a whole succeeded.
	FailedBatches []int `json:"failedBatches,omitempty"`

	// ETA is the estimated remaining runtime, refreshed on every
	// progress tick. Zero when unknown.
	ETA time.Duration `json:"eta,omitempty"`

	EnqueuedAt time.Time `json:"enqueuedAt"`
	StartedAt  time.Time `json:"startedAt,omitempty"`
	FinishedAt time.Time `json:"finishedAt,omitempty"`

	// Error holds the failure message for jobs in the error state.
	Error string `json:"error,omitempty"`
}

// clone returns a copy safe to hand out while the original keeps
// mutating under the queue lock.
func (j *Job) clone() Job {
	c := *j
	if j.FailedBatches != nil {
		c.FailedBatches = append([]int(nil), j.FailedBatches...)
	}
	return c
}
