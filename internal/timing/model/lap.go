package model

import "time"

// CarLapData is one finalized lap, as handed to the lap log sink. Laps that
// had to be interpolated for a missing range carry unset times.
type CarLapData struct {
	EventID    int           `json:"eventId"`
	SessionID  int           `json:"sessionId"`
	Number     string        `json:"number"`
	Lap        int           `json:"lap"`
	LapTime    time.Duration `json:"lapTime"`
	TotalTime  time.Duration `json:"totalTime"`
	Position   int           `json:"position"`
	Class      string        `json:"class,omitempty"`
	Flag       Flag          `json:"flag"`
	Pitted     bool          `json:"pitted"`
	// Interpolated marks placeholder records emitted for skipped lap numbers.
	Interpolated bool `json:"interpolated,omitempty"`
	FinalizedAt  time.Time `json:"finalizedAt"`
}
