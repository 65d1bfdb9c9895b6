package leaderboard

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/sunshinevendetta/frame/internal/config"
	"github.com/sunshinevendetta/frame/internal/domain"
)

// Standings is the store holding the current window's entries. DrainWindow
// must be atomic: an entry either lands in the returned snapshot or in the
// fresh window that follows, never nowhere.
type Standings interface {
	RecordScore(ctx context.Context, playerName string, score int64, at time.Time) error
	TopN(ctx context.Context, n int) ([]domain.StandingsEntry, error)
	PlayerEntry(ctx context.Context, playerName string) (*domain.StandingsEntry, error)
	Count(ctx context.Context) (int64, error)
	Snapshot(ctx context.Context) ([]domain.StandingsEntry, error)
	DrainWindow(ctx context.Context) ([]domain.StandingsEntry, error)
}

// IdentityResolver resolves the winner's identity for the payout.
type IdentityResolver interface {
	FIDForName(ctx context.Context, name string) (int64, error)
	AddressForFID(ctx context.Context, fid int64) (string, error)
}

// BountyPayer sends the window bounty to the winner's wallet.
type BountyPayer interface {
	SendBounty(ctx context.Context, address string, amount float64, memo string) error
}

// History persists what the live store forgets at each reset.
type History interface {
	RecordEvent(ctx context.Context, event domain.ScoreEvent) error
	RecordAward(ctx context.Context, award domain.AwardRecord) error
	ArchiveStandings(ctx context.Context, windowEnd time.Time, entries []domain.StandingsEntry) error
}

// Broadcaster pushes window activity to connected spectators.
type Broadcaster interface {
	BroadcastStandings(entries []domain.StandingsEntry, totalPlayers int64)
	BroadcastWindowReset(resetAt time.Time)
	BroadcastAward(award domain.AwardRecord)
}

// WinnerNotifier sends the winner a direct message. May be nil when the
// messaging client is not configured.
type WinnerNotifier interface {
	Send(ctx context.Context, recipient, text string) error
}

// CycleManager owns the daily leaderboard window: it keeps the ranked
// standings, schedules its own reset at the next UTC midnight, and pays the
// bounty to the top entry at each boundary. It runs decoupled from any
// single session's lifetime.
type CycleManager struct {
	store       Standings
	history     History
	resolver    IdentityResolver
	payer       BountyPayer
	broadcaster Broadcaster
	notifier    WinnerNotifier
	cfg         *config.CycleConfig
	logger      *slog.Logger

	now func() time.Time

	mu       sync.Mutex
	deadline time.Time
	timer    *time.Timer
	stopped  bool
}

// NewCycleManager creates a cycle manager. broadcaster and notifier may be
// nil; history and payer must not be.
func NewCycleManager(
	store Standings,
	history History,
	resolver IdentityResolver,
	payer BountyPayer,
	broadcaster Broadcaster,
	notifier WinnerNotifier,
	cfg *config.CycleConfig,
	logger *slog.Logger,
) *CycleManager {
	return &CycleManager{
		store:       store,
		history:     history,
		resolver:    resolver,
		payer:       payer,
		broadcaster: broadcaster,
		notifier:    notifier,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// NextResetDeadline returns the UTC midnight strictly after now, regardless
// of now's time of day.
func NextResetDeadline(now time.Time) time.Time {
	return now.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
}

// Start computes the current window's deadline and arms the wake timer.
func (m *CycleManager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deadline = NextResetDeadline(m.now())
	m.scheduleLocked(ctx)
	m.logger.Info("leaderboard window open", "reset_at", m.deadline)
}

// Stop cancels the pending wake timer.
func (m *CycleManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopped = true
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// scheduleLocked replaces the wake timer with a one-shot at the current
// deadline. Callers hold m.mu; the old timer is always stopped first so a
// reset can never fire twice for one boundary.
func (m *CycleManager) scheduleLocked(ctx context.Context) {
	if m.timer != nil {
		m.timer.Stop()
	}
	if m.stopped {
		return
	}
	wait := m.deadline.Sub(m.now())
	if wait < 0 {
		wait = 0
	}
	m.timer = time.AfterFunc(wait, func() {
		m.maybeReset(ctx)
	})
}

// maybeReset runs the reset if the deadline has passed, otherwise re-arms
// the timer for the remaining wait.
func (m *CycleManager) maybeReset(ctx context.Context) {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	if m.now().Before(m.deadline) {
		m.scheduleLocked(ctx)
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.resetCycle(ctx)
}

// RecordScore inserts or raises the entry for playerName. Scores are
// monotonic per player within a window: a lower submission leaves the
// stored score untouched.
func (m *CycleManager) RecordScore(ctx context.Context, playerName string, score int64) error {
	if playerName == "" || score < 0 {
		return domain.ErrInvalidRequest
	}

	if err := m.store.RecordScore(ctx, playerName, score, m.now()); err != nil {
		return fmt.Errorf("recording score: %w", err)
	}

	event := domain.ScoreEvent{
		PlayerName: playerName,
		Score:      score,
		EventType:  "submit",
		Timestamp:  m.now(),
	}
	if err := m.history.RecordEvent(ctx, event); err != nil {
		m.logger.Warn("failed to record score event", "error", err)
	}

	if m.broadcaster != nil {
		top, err := m.store.TopN(ctx, 10)
		if err == nil {
			count, _ := m.store.Count(ctx)
			m.broadcaster.BroadcastStandings(top, count)
		}
	}

	return nil
}

// TopN returns the window's top n entries.
func (m *CycleManager) TopN(ctx context.Context, n int) ([]domain.StandingsEntry, error) {
	return m.store.TopN(ctx, n)
}

// PlayerEntry returns one player's entry in the current window.
func (m *CycleManager) PlayerEntry(ctx context.Context, playerName string) (*domain.StandingsEntry, error) {
	return m.store.PlayerEntry(ctx, playerName)
}

// Window describes the active window: its deadline and population.
func (m *CycleManager) Window(ctx context.Context) (domain.WindowStatus, error) {
	m.mu.Lock()
	deadline := m.deadline
	m.mu.Unlock()

	count, err := m.store.Count(ctx)
	if err != nil {
		return domain.WindowStatus{}, fmt.Errorf("counting entries: %w", err)
	}
	return domain.WindowStatus{ResetAt: deadline, TotalPlayers: count}, nil
}

// ResetNow forces the cycle boundary immediately. Used by the admin surface
// and by tests; the scheduled path arrives here through maybeReset.
func (m *CycleManager) ResetNow(ctx context.Context) {
	m.resetCycle(ctx)
}

// resetCycle is the window boundary. Under the manager lock it drains the
// store (atomic snapshot+clear), advances the deadline and re-arms the
// timer; the award then runs on the drained snapshot. A payout failure is
// logged and recorded, never allowed to stall the new window.
func (m *CycleManager) resetCycle(ctx context.Context) {
	m.mu.Lock()
	entries, err := m.store.DrainWindow(ctx)
	if err != nil {
		m.logger.Error("failed to drain window, standings may carry over", "error", err)
		entries = nil
	}
	windowEnd := m.deadline
	if windowEnd.IsZero() {
		windowEnd = NextResetDeadline(m.now())
	}
	m.deadline = NextResetDeadline(m.now())
	m.scheduleLocked(ctx)
	newDeadline := m.deadline
	m.mu.Unlock()

	m.logger.Info("leaderboard window reset",
		"window_end", windowEnd,
		"entries", len(entries),
		"next_reset", newDeadline,
	)

	if len(entries) > 0 {
		if err := m.history.ArchiveStandings(ctx, windowEnd, entries); err != nil {
			m.logger.Warn("failed to archive standings", "error", err)
		}
		m.award(ctx, windowEnd, pickWinner(entries))
	}

	if m.broadcaster != nil {
		m.broadcaster.BroadcastWindowReset(newDeadline)
	}
}

// pickWinner applies the deterministic tie-break: highest score, then the
// earliest instant that score was first reached, then the lexicographically
// smallest name.
func pickWinner(entries []domain.StandingsEntry) domain.StandingsEntry {
	winner := entries[0]
	for _, e := range entries[1:] {
		if beats(e, winner) {
			winner = e
		}
	}
	return winner
}

func beats(a, b domain.StandingsEntry) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if !a.BestAt.Equal(b.BestAt) {
		return a.BestAt.Before(b.BestAt)
	}
	return a.PlayerName < b.PlayerName
}

// award resolves the winner's identity and pays the bounty with a bounded
// retry. Every outcome lands in the award history.
func (m *CycleManager) award(ctx context.Context, windowEnd time.Time, winner domain.StandingsEntry) {
	award := domain.AwardRecord{
		WindowEnd:  windowEnd,
		PlayerName: winner.PlayerName,
		Score:      winner.Score,
	}

	fid, err := m.resolver.FIDForName(ctx, winner.PlayerName)
	if err != nil {
		award.PayoutError = fmt.Sprintf("resolving winner fid: %v", err)
	} else {
		award.FID = fid
		address, err := m.resolver.AddressForFID(ctx, fid)
		if err != nil {
			award.PayoutError = fmt.Sprintf("resolving winner address: %v", err)
		} else {
			award.Address = address
			award.PayoutOK, award.PayoutError = m.payBounty(ctx, address, winner)
		}
	}

	if award.PayoutOK {
		m.logger.Info("bounty awarded",
			"player", winner.PlayerName,
			"score", winner.Score,
			"address", award.Address,
		)
	} else {
		m.logger.Error("bounty payout failed",
			"player", winner.PlayerName,
			"score", winner.Score,
			"error", award.PayoutError,
		)
	}

	if err := m.history.RecordAward(ctx, award); err != nil {
		m.logger.Warn("failed to record award", "error", err)
	}
	if m.broadcaster != nil {
		m.broadcaster.BroadcastAward(award)
	}
	if award.PayoutOK && m.notifier != nil {
		text := fmt.Sprintf("You topped today's leaderboard with %d points. The bounty is on its way to %s.", winner.Score, award.Address)
		if err := m.notifier.Send(ctx, award.Address, text); err != nil {
			m.logger.Warn("failed to notify winner", "error", err)
		}
	}
}

// payBounty retries the payout up to the configured bound. It returns
// whether a payout went through and the last error text when none did.
func (m *CycleManager) payBounty(ctx context.Context, address string, winner domain.StandingsEntry) (bool, string) {
	memo := fmt.Sprintf("daily bounty for %s (%d points)", winner.PlayerName, winner.Score)

	var lastErr error
	for attempt := 1; attempt <= m.cfg.PayoutAttempts; attempt++ {
		lastErr = m.payer.SendBounty(ctx, address, m.cfg.BountyAmount, memo)
		if lastErr == nil {
			return true, ""
		}
		m.logger.Warn("payout attempt failed",
			"attempt", attempt,
			"of", m.cfg.PayoutAttempts,
			"error", lastErr,
		)
		if attempt < m.cfg.PayoutAttempts {
			select {
			case <-ctx.Done():
				return false, ctx.Err().Error()
			case <-time.After(m.cfg.PayoutDelay):
			}
		}
	}
	return false, lastErr.Error()
}

// SortStandings orders entries by the same total order the winner pick
// uses. Stores that cannot rank server-side use it before assigning ranks.
func SortStandings(entries []domain.StandingsEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return beats(entries[i], entries[j])
	})
}
