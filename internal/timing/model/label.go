package model

import "strconv"

// SessionLabel renders the canonical "<eventId>:<sessionId>" key used for
// metric labels and routing.
func SessionLabel(eventID, sessionID int) string {
	return strconv.Itoa(eventID) + ":" + strconv.Itoa(sessionID)
}
