package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldEventID   = "event_id"
	FieldSessionID = "session_id"
	FieldCarNumber = "car"
	FieldFeed      = "feed"

	// Pipeline fields
	FieldComponent = "component"
	FieldRecord    = "record"
	FieldBlock     = "block"

	// State fields
	FieldOldFlag = "old_flag"
	FieldNewFlag = "new_flag"
	FieldLap     = "lap"
)
