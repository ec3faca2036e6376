package dispatch

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gridpulse/gridpulse/internal/timing/pipeline"
)

// Envelope is the transport-level wrapper around one feed payload. It is what
// ingestion consumers decode off the wire before handing to the dispatcher.
type Envelope struct {
	Feed       pipeline.FeedType `json:"feed"`
	EventID    int               `json:"eventId"`
	SessionID  int               `json:"sessionId"`
	Data       []byte            `json:"data"`
	ReceivedAt time.Time         `json:"receivedAt"`

	// AssignedPod pins the session to one processing instance. Empty means
	// any instance may process it.
	AssignedPod string `json:"assignedPod,omitempty"`
}

// DecodeEnvelope parses a wire envelope.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return Envelope{}, fmt.Errorf("dispatch: decoding envelope: %w", err)
	}
	if e.Feed == "" {
		return Envelope{}, fmt.Errorf("dispatch: envelope missing feed type")
	}
	return e, nil
}

// Encode renders the envelope for the wire.
func (e Envelope) Encode() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("dispatch: encoding envelope: %w", err)
	}
	return b, nil
}
