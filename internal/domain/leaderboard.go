package domain

import (
	"time"
)

// StandingsEntry is one player's row in the current leaderboard window.
// Entries are unique by player name within a window; BestAt records when the
// player first reached their current best score and is the tie-break input.
type StandingsEntry struct {
	Rank       int64     `json:"rank,omitempty"`
	PlayerName string    `json:"player_name"`
	Score      int64     `json:"score"`
	BestAt     time.Time `json:"best_at,omitempty"`
}

// ScoreSubmission is a request to record a finished run's score.
type ScoreSubmission struct {
	PlayerName string `json:"player_name"`
	Score      int64  `json:"score"`
	GameID     string `json:"game_id,omitempty"`
}

// ScoreEvent is the durable audit record of a score submission.
type ScoreEvent struct {
	PlayerName string    `json:"player_name"`
	Score      int64     `json:"score"`
	GameID     string    `json:"game_id,omitempty"`
	EventType  string    `json:"event_type"`
	Timestamp  time.Time `json:"timestamp"`
}

// WindowStatus describes the active leaderboard window.
type WindowStatus struct {
	ResetAt      time.Time `json:"reset_at"`
	TotalPlayers int64     `json:"total_players"`
}

// AwardRecord is the durable outcome of one window reset: who won, with what
// score, and whether the bounty payout went through.
type AwardRecord struct {
	ID          int64     `json:"id,omitempty"`
	WindowEnd   time.Time `json:"window_end"`
	PlayerName  string    `json:"player_name"`
	FID         int64     `json:"fid,omitempty"`
	Address     string    `json:"address,omitempty"`
	Score       int64     `json:"score"`
	PayoutOK    bool      `json:"payout_ok"`
	PayoutError string    `json:"payout_error,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}
