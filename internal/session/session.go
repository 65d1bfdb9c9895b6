package session

import (
	"sync"
	"time"

	"github.com/sunshinevendetta/frame/internal/config"
	"github.com/sunshinevendetta/frame/internal/domain"
)

// Session is one player's in-progress game: lives, credits, score and
// difficulty, with the collision/score/grant transitions. It is plain state,
// owned by the Manager and read by the rendering layer through Snapshot; no
// rendering object ever mutates it.
type Session struct {
	mu sync.Mutex

	id         string
	playerName string
	fid        int64
	startedAt  time.Time

	state          domain.SessionState
	lives          int
	credits        int
	score          int64
	difficulty     float64
	hasEntitlement bool

	difficultyStep  float64
	difficultyEvery int64
}

// New creates a session in the playing state with the configured defaults.
func New(cfg *config.GameConfig, id, playerName string, fid int64) *Session {
	return &Session{
		id:              id,
		playerName:      playerName,
		fid:             fid,
		startedAt:       time.Now(),
		state:           domain.SessionPlaying,
		lives:           cfg.InitialLives,
		credits:         cfg.InitialCredits,
		difficulty:      1,
		difficultyStep:  cfg.DifficultyStep,
		difficultyEvery: cfg.DifficultyEvery,
	}
}

// OnCollision handles the player hitting an obstacle. While lives remain the
// run restarts: score and difficulty reset, credits and entitlement carry
// over. When the last life goes, the session transitions to its terminal
// game-over state. Returns whether the session ended and the score of the
// run that just finished.
func (s *Session) OnCollision() (over bool, finalScore int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.SessionPlaying {
		return false, 0, domain.ErrSessionOver
	}

	finalScore = s.score
	s.lives--
	if s.lives > 0 {
		s.score = 0
		s.difficulty = 1
		return false, finalScore, nil
	}

	s.lives = 0
	s.state = domain.SessionGameOver
	return true, finalScore, nil
}

// OnScoreTick advances the score by one and ratchets difficulty. Score is
// monotonically non-decreasing within a run; difficulty never goes down
// except at the run boundary.
func (s *Session) OnScoreTick() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.SessionPlaying {
		return domain.ErrSessionOver
	}

	s.score++
	if s.difficultyEvery > 0 && s.score%s.difficultyEvery == 0 {
		s.difficulty += s.difficultyStep
	}
	return nil
}

// ApplyStipend records the entitlement result computed at session start.
// In replace mode the stipend overwrites the balance; add mode tops it up.
func (s *Session) ApplyStipend(mode config.StipendMode, stipend int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hasEntitlement = true
	switch mode {
	case config.StipendAdd:
		s.credits += stipend
	default:
		s.credits = stipend
	}
}

// AddCredits applies a successful purchase. Purchases survive game over: a
// continue spends them on the next run.
func (s *Session) AddCredits(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credits += n
}

// GrantLife adds one life if the session is still playing. Returns false if
// the session ended while the grant was in flight; the caller decides what
// to log, the state stays consistent either way.
func (s *Session) GrantLife() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.SessionPlaying {
		return false
	}
	s.lives++
	return true
}

// Playing reports whether the session is still in its playing state.
func (s *Session) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == domain.SessionPlaying
}

// Snapshot returns a read-only view of the session.
func (s *Session) Snapshot() domain.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return domain.SessionSnapshot{
		ID:             s.id,
		PlayerName:     s.playerName,
		FID:            s.fid,
		State:          s.state,
		Lives:          s.lives,
		Credits:        s.credits,
		Score:          s.score,
		Difficulty:     s.difficulty,
		HasEntitlement: s.hasEntitlement,
		StartedAt:      s.startedAt,
	}
}
