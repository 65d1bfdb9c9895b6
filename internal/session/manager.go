package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sunshinevendetta/frame/internal/config"
	"github.com/sunshinevendetta/frame/internal/domain"
)

// AddressResolver resolves a FID to its primary wallet address.
type AddressResolver interface {
	AddressForFID(ctx context.Context, fid int64) (string, error)
}

// EntitlementChecker answers the NFT gate and promo recast questions.
type EntitlementChecker interface {
	HasRequiredAsset(ctx context.Context, fid int64) bool
	HasRecasted(ctx context.Context, address string) (bool, error)
	SetRecasted(ctx context.Context, address string) error
}

// CreditPurchaser charges the player and returns credits granted.
type CreditPurchaser interface {
	PurchaseCredits(ctx context.Context, address string) (int, error)
}

// ScoreRecorder lands a finished run's score in the leaderboard window.
type ScoreRecorder interface {
	RecordScore(ctx context.Context, playerName string, score int64) error
}

// Manager owns every live session and all collaborator calls made on their
// behalf. Collaborator handles are injected here by the composition root;
// nothing in this package reaches for a global client.
type Manager struct {
	cfg         *config.GameConfig
	resolver    AddressResolver
	entitlement EntitlementChecker
	payments    CreditPurchaser
	recorder    ScoreRecorder
	logger      *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	tickers  map[string]chan struct{}

	// addrLocks serializes the recast check-then-set per address so a racing
	// pair of extra-life requests cannot both see "not recast".
	addrMu    sync.Mutex
	addrLocks map[string]*sync.Mutex
}

// NewManager creates a new session manager
func NewManager(
	cfg *config.GameConfig,
	resolver AddressResolver,
	entitlement EntitlementChecker,
	payments CreditPurchaser,
	recorder ScoreRecorder,
	logger *slog.Logger,
) *Manager {
	return &Manager{
		cfg:         cfg,
		resolver:    resolver,
		entitlement: entitlement,
		payments:    payments,
		recorder:    recorder,
		logger:      logger,
		sessions:    make(map[string]*Session),
		tickers:     make(map[string]chan struct{}),
		addrLocks:   make(map[string]*sync.Mutex),
	}
}

// Start creates a fresh session for a player. The entitlement check runs
// once here and its result is cached on the session for its whole lifetime;
// a failed check means no stipend, never a blocked session.
func (m *Manager) Start(ctx context.Context, req domain.StartSessionRequest) (domain.SessionSnapshot, error) {
	if req.PlayerName == "" {
		return domain.SessionSnapshot{}, domain.ErrInvalidRequest
	}

	sess := New(m.cfg, uuid.New().String(), req.PlayerName, req.FID)

	if m.entitlement.HasRequiredAsset(ctx, req.FID) {
		sess.ApplyStipend(m.cfg.StipendMode, m.cfg.Stipend)
		m.logger.Info("entitlement stipend applied",
			"player", req.PlayerName,
			"fid", req.FID,
			"mode", string(m.cfg.StipendMode),
		)
	}

	snap := sess.Snapshot()

	m.mu.Lock()
	m.sessions[snap.ID] = sess
	stop := make(chan struct{})
	m.tickers[snap.ID] = stop
	m.mu.Unlock()

	go m.runTicker(sess, stop)

	return snap, nil
}

// runTicker drives the periodic score tick while the session is playing.
func (m *Manager) runTicker(sess *Session, stop chan struct{}) {
	ticker := time.NewTicker(m.cfg.ScoreInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := sess.OnScoreTick(); err != nil {
				return
			}
		}
	}
}

// Get returns a snapshot of a session.
func (m *Manager) Get(id string) (domain.SessionSnapshot, error) {
	sess, err := m.lookup(id)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	return sess.Snapshot(), nil
}

// Collision applies an obstacle hit. When the hit ends the session, the
// run's final score is recorded into the leaderboard window; a recording
// failure is logged, never surfaced to the player.
func (m *Manager) Collision(ctx context.Context, id string) (domain.SessionSnapshot, error) {
	sess, err := m.lookup(id)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}

	over, finalScore, err := sess.OnCollision()
	if err != nil {
		return domain.SessionSnapshot{}, err
	}

	if over {
		m.stopTicker(id)
		snap := sess.Snapshot()
		if err := m.recorder.RecordScore(ctx, snap.PlayerName, finalScore); err != nil {
			m.logger.Error("failed to record final score",
				"player", snap.PlayerName,
				"score", finalScore,
				"error", err,
			)
		}
	}

	return sess.Snapshot(), nil
}

// Tick applies an explicit score tick for clients that drive their own loop
// instead of relying on the manager's timer.
func (m *Manager) Tick(id string) (domain.SessionSnapshot, error) {
	sess, err := m.lookup(id)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	if err := sess.OnScoreTick(); err != nil {
		return domain.SessionSnapshot{}, err
	}
	return sess.Snapshot(), nil
}

// PurchaseCredits resolves the player's address and charges the fixed price.
// On any failure the balance is untouched and ErrPurchaseFailed comes back.
// The session is re-validated after the collaborator call: the payment may
// take arbitrarily long and the session can be discarded meanwhile.
func (m *Manager) PurchaseCredits(ctx context.Context, id string) (domain.SessionSnapshot, error) {
	sess, err := m.lookup(id)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	fid := sess.Snapshot().FID

	address, err := m.resolver.AddressForFID(ctx, fid)
	if err != nil {
		return domain.SessionSnapshot{}, fmt.Errorf("%w: resolving address: %w", domain.ErrPurchaseFailed, err)
	}

	granted, err := m.payments.PurchaseCredits(ctx, address)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}

	if _, err := m.lookup(id); err != nil {
		m.logger.Warn("session discarded during purchase, credits dropped",
			"session_id", id,
			"credits", granted,
		)
		return domain.SessionSnapshot{}, err
	}
	sess.AddCredits(granted)

	return sess.Snapshot(), nil
}

// EarnExtraLife grants the one-time recast bonus. The check-then-set across
// the two collaborator calls is serialized per address, so the grant happens
// exactly once per address no matter how the requests race.
func (m *Manager) EarnExtraLife(ctx context.Context, id string) (granted bool, snap domain.SessionSnapshot, err error) {
	sess, err := m.lookup(id)
	if err != nil {
		return false, domain.SessionSnapshot{}, err
	}
	fid := sess.Snapshot().FID

	address, err := m.resolver.AddressForFID(ctx, fid)
	if err != nil {
		return false, sess.Snapshot(), err
	}

	lock := m.addressLock(address)
	lock.Lock()
	defer lock.Unlock()

	if !sess.Playing() {
		return false, sess.Snapshot(), domain.ErrSessionOver
	}

	already, err := m.entitlement.HasRecasted(ctx, address)
	if err != nil {
		// Could not tell; granting here risks a double grant later.
		return false, sess.Snapshot(), err
	}
	if already {
		return false, sess.Snapshot(), nil
	}

	if err := m.entitlement.SetRecasted(ctx, address); err != nil {
		return false, sess.Snapshot(), err
	}

	if !sess.GrantLife() {
		m.logger.Warn("session ended during extra-life grant", "session_id", id, "address", address)
		return false, sess.Snapshot(), nil
	}

	return true, sess.Snapshot(), nil
}

// End discards a session. Game over is terminal; a new game is a new Start.
func (m *Manager) End(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(m.sessions, id)
	if stop, ok := m.tickers[id]; ok {
		close(stop)
		delete(m.tickers, id)
	}
	return nil
}

// Stop discards all sessions and stops their tickers.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, stop := range m.tickers {
		close(stop)
		delete(m.tickers, id)
	}
	m.sessions = make(map[string]*Session)
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) lookup(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}

func (m *Manager) stopTicker(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if stop, ok := m.tickers[id]; ok {
		close(stop)
		delete(m.tickers, id)
	}
}

func (m *Manager) addressLock(address string) *sync.Mutex {
	m.addrMu.Lock()
	defer m.addrMu.Unlock()

	lock, ok := m.addrLocks[address]
	if !ok {
		lock = &sync.Mutex{}
		m.addrLocks[address] = lock
	}
	return lock
}
