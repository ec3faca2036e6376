// Package x2 decodes the transponder feeds: loop passings, the loop role map,
// in-car video metadata and session-change notifications.
package x2

import (
	"encoding/json"
	"fmt"
	"time"
)

// LoopRole classifies a trackside loop.
type LoopRole string

const (
	RolePitIn          LoopRole = "PitIn"
	RolePitOut         LoopRole = "PitOut"
	RolePitStartFinish LoopRole = "PitStartFinish"
	RoleTimingLine     LoopRole = "TimingLine"
	RoleIntermediate   LoopRole = "Intermediate"
)

// Passing is one transponder read at a loop.
type Passing struct {
	TransponderID uint32    `json:"transponderId"`
	LoopID        uint32    `json:"loopId"`
	Timestamp     time.Time `json:"timestamp"`
}

// Loop describes one trackside loop and its role.
type Loop struct {
	LoopID uint32   `json:"loopId"`
	Role   LoopRole `json:"role"`
}

// VideoDestination is one delivery target for in-car video.
type VideoDestination struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// Video is the in-car video metadata message.
type Video struct {
	EventID       int                `json:"eventId"`
	CarNumber     string             `json:"carNumber"`
	TransponderID uint32             `json:"transponderId"`
	SystemType    string             `json:"systemType"`
	Destinations  []VideoDestination `json:"destinations"`
}

// SessionChange is the external notification of a new session.
type SessionChange struct {
	ID                   int       `json:"id"`
	EventID              int       `json:"eventId"`
	Name                 string    `json:"name"`
	IsLive               bool      `json:"isLive"`
	StartTime            time.Time `json:"startTime"`
	LastUpdated          time.Time `json:"lastUpdated"`
	LocalTimeZoneOffset  float64   `json:"localTimeZoneOffset"`
	IsPracticeQualifying bool      `json:"isPracticeQualifying"`
}

// ParsePassings decodes an x2pass payload.
func ParsePassings(data []byte) ([]Passing, error) {
	var out []Passing
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("x2: decoding passings: %w", err)
	}
	return out, nil
}

// ParseLoops decodes an x2loop payload.
func ParseLoops(data []byte) ([]Loop, error) {
	var out []Loop
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("x2: decoding loops: %w", err)
	}
	return out, nil
}

// ParseVideo decodes a video payload.
func ParseVideo(data []byte) (*Video, error) {
	var out Video
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("x2: decoding video: %w", err)
	}
	return &out, nil
}

// ParseSessionChange decodes a session-change payload.
func ParseSessionChange(data []byte) (*SessionChange, error) {
	var out SessionChange
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("x2: decoding session change: %w", err)
	}
	return &out, nil
}
