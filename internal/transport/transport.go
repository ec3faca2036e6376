// Package transport moves envelopes and updates over Redis pub/sub. Inbound
// feed traffic arrives on a single channel; consolidated updates fan out on a
// per-session channel that downstream scoreboards subscribe to.
package transport

import "github.com/gridpulse/gridpulse/internal/timing/model"

// FeedChannel is the inbound channel carrying dispatch envelopes.
const FeedChannel = "gridpulse:feed"

// UpdateChannel names the outbound channel for one session's updates.
func UpdateChannel(eventID, sessionID int) string {
	return "gridpulse:updates:" + model.SessionLabel(eventID, sessionID)
}
