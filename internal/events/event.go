package events

import (
	"time"

	"github.com/edgecomet/blogkeywords/pkg/types"
)

// PageEvent records the outcome of fetching and saving one page
type PageEvent struct {
	CreatedAt    time.Time
	RunID        string
	URL          string
	Kind         types.PageKind
	StatusCode   int
	Bytes        int
	Duration     time.Duration
	Outcome      string
	Cached       bool
	Title        string
	File         string
	ErrorMessage string
}

// NewPageEvent creates an event stamped with the current time
func NewPageEvent(runID, url string, kind types.PageKind) *PageEvent {
	return &PageEvent{
		CreatedAt: time.Now().UTC(),
		RunID:     runID,
		URL:       url,
		Kind:      kind,
	}
}

// Fail marks the event as failed with err
func (e *PageEvent) Fail(outcome string, err error) *PageEvent {
	e.Outcome = outcome
	if err != nil {
		e.ErrorMessage = err.Error()
	}
	return e
}
