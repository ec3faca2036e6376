// Package pipeline runs one worker goroutine per live session. The worker
// owns the session context, drains a bounded inbound queue and runs the fixed
// processor chain on every message batch.
package pipeline

import "time"

// FeedType identifies the wire protocol of an inbound message.
type FeedType string

// The string values are the wire `type` names the ingestion edges send; they
// are part of the envelope contract, not free to change.
const (
	FeedRMonitor      FeedType = "rmonitor"
	FeedMultiloop     FeedType = "multiloop"
	FeedPassings      FeedType = "x2pass"
	FeedLoops         FeedType = "x2loop"
	FeedVideo         FeedType = "video"
	FeedSessionChange FeedType = "session-change"
	FeedReset         FeedType = "reset-request"
)

// Message is the envelope handed to a session worker.
type Message struct {
	Feed       FeedType
	EventID    int
	SessionID  int
	Data       []byte
	ReceivedAt time.Time
}
