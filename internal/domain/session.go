package domain

import "time"

// SessionState represents the lifecycle state of a player session
type SessionState string

const (
	SessionPlaying  SessionState = "playing"
	SessionGameOver SessionState = "game_over"
)

// SessionSnapshot is a read-only view of a session, safe to serve to the
// rendering layer. The rendering layer reads from it but never owns the
// transitions.
type SessionSnapshot struct {
	ID             string       `json:"id"`
	PlayerName     string       `json:"player_name"`
	FID            int64        `json:"fid"`
	State          SessionState `json:"state"`
	Lives          int          `json:"lives"`
	Credits        int          `json:"credits"`
	Score          int64        `json:"score"`
	Difficulty     float64      `json:"difficulty"`
	HasEntitlement bool         `json:"has_entitlement"`
	StartedAt      time.Time    `json:"started_at"`
}

// StartSessionRequest begins a new game session for a player.
type StartSessionRequest struct {
	PlayerName string `json:"player_name"`
	FID        int64  `json:"fid"`
}
