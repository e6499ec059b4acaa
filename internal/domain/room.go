// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"time"
)

const (
	MinTTLSeconds     = 60
	MaxTTLSeconds     = 24 * 3600
	DefaultTTLSeconds = 3600

	// MaxParticipants is a hard cap: a room holds at most two connections.
	MaxParticipants = 2
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFull     = errors.New("room full")
	ErrInvalidCode  = errors.New("invalid access code")
)

type (
	RoomID     string
	AccessCode string
	ConnID     string
)

// Room is an ephemeral two-party chat room. The registry is the only
// component allowed to mutate it; Expiry is the room's pending teardown
// timer and must be stopped on every non-timer deletion path.
type Room struct {
	ID           RoomID
	Codes        map[AccessCode]struct{}
	Participants map[ConnID]struct{}
	TTL          time.Duration
	ExpiresAt    time.Time
	Expiry       *time.Timer
}

// ClampTTL normalizes a requested ttl in seconds. Zero or negative input
// falls back to the default; out-of-range input is clamped, never rejected.
func ClampTTL(seconds int) int {
	if seconds <= 0 {
		seconds = DefaultTTLSeconds
	}
	if seconds < MinTTLSeconds {
		return MinTTLSeconds
	}
	if seconds > MaxTTLSeconds {
		return MaxTTLSeconds
	}
	return seconds
}
