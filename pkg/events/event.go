// Package events carries the lifecycle events of completion requests: a
// request starting, retries and rate-limit pauses, continuation rounds, and
// the final outcome. Events are published to a Sink; publishing never
// affects the outcome of the request itself.
package events

import (
	"time"
)

type EventType string

const (
	EventTypeStart        EventType = "start"
	EventTypeRetry        EventType = "retry"
	EventTypeRateLimited  EventType = "rate-limited"
	EventTypeContinuation EventType = "continuation"
	EventTypeFinal        EventType = "final"
	EventTypeError        EventType = "error"
)

// Event describes one step of a completion request. Candidate and Piece are
// only meaningful for continuation events.
type Event struct {
	Type      EventType `json:"type"`
	RequestID string    `json:"request_id"`
	// Op is "chat" or "completion".
	Op           string        `json:"op"`
	Access       string        `json:"access,omitempty"`
	Model        string        `json:"model,omitempty"`
	Attempt      int           `json:"attempt,omitempty"`
	Candidate    int           `json:"candidate,omitempty"`
	Piece        int           `json:"piece,omitempty"`
	FinishReason string        `json:"finish_reason,omitempty"`
	Delay        time.Duration `json:"delay,omitempty"`
	Error        string        `json:"error,omitempty"`
	Time         time.Time     `json:"time"`
}

func NewEvent(t EventType, requestID string, op string) Event {
	return Event{
		Type:      t,
		RequestID: requestID,
		Op:        op,
		Time:      time.Now(),
	}
}
