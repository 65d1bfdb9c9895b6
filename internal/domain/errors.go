package domain

import "errors"

// Domain errors
var (
	ErrLookupFailed    = errors.New("identity lookup failed or returned no result")
	ErrPurchaseFailed  = errors.New("purchase declined by payment collaborator")
	ErrMessagingFailed = errors.New("message send failed")
	ErrConfigMissing   = errors.New("required configuration value is missing")
	ErrSessionNotFound = errors.New("session not found")
	ErrPlayerNotFound  = errors.New("player not found in standings")
	ErrSessionOver     = errors.New("session is over")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrInternalError   = errors.New("internal server error")
)

// IsCollaboratorError checks if an error came from an external collaborator.
// Collaborator failures never abort a session or the leaderboard cycle; the
// caller degrades and the game stays playable.
func IsCollaboratorError(err error) bool {
	return errors.Is(err, ErrLookupFailed) ||
		errors.Is(err, ErrPurchaseFailed) ||
		errors.Is(err, ErrMessagingFailed)
}
