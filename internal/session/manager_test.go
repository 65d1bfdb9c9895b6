package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/sunshinevendetta/frame/internal/domain"
)

type fakeResolver struct {
	address string
	err     error
}

func (f *fakeResolver) AddressForFID(ctx context.Context, fid int64) (string, error) {
	return f.address, f.err
}

type fakeEntitlement struct {
	mu          sync.Mutex
	hasAsset    bool
	recasted    bool
	recastErr   error
	checkCalls  int
	recastCalls int
}

func (f *fakeEntitlement) HasRequiredAsset(ctx context.Context, fid int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkCalls++
	return f.hasAsset
}

func (f *fakeEntitlement) HasRecasted(ctx context.Context, address string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recastErr != nil {
		return false, f.recastErr
	}
	return f.recasted, nil
}

func (f *fakeEntitlement) SetRecasted(ctx context.Context, address string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recasted = true
	f.recastCalls++
	return nil
}

type fakePurchaser struct {
	granted int
	err     error
}

func (f *fakePurchaser) PurchaseCredits(ctx context.Context, address string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.granted, nil
}

type fakeRecorder struct {
	mu     sync.Mutex
	scores map[string]int64
	err    error
}

func (f *fakeRecorder) RecordScore(ctx context.Context, playerName string, score int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.scores == nil {
		f.scores = make(map[string]int64)
	}
	f.scores[playerName] = score
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(ent *fakeEntitlement, pur *fakePurchaser, rec *fakeRecorder) *Manager {
	return NewManager(
		testGameConfig(),
		&fakeResolver{address: "0xabc"},
		ent,
		pur,
		rec,
		discardLogger(),
	)
}

func TestStartAppliesStipendOnEntitlement(t *testing.T) {
	ent := &fakeEntitlement{hasAsset: true}
	m := newTestManager(ent, &fakePurchaser{}, &fakeRecorder{})
	defer m.Stop()

	snap, err := m.Start(context.Background(), domain.StartSessionRequest{PlayerName: "alice", FID: 42})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !snap.HasEntitlement {
		t.Fatal("expected entitlement flag set")
	}
	if snap.Credits != 3 {
		t.Fatalf("expected stipend of 3 credits, got %d", snap.Credits)
	}
	if ent.checkCalls != 1 {
		t.Fatalf("entitlement must be checked exactly once, got %d calls", ent.checkCalls)
	}

	// The cached result never changes mid-session: no further checks on
	// later operations.
	if _, err := m.Get(snap.ID); err != nil {
		t.Fatalf("get: %v", err)
	}
	if ent.checkCalls != 1 {
		t.Fatalf("entitlement re-checked mid-session: %d calls", ent.checkCalls)
	}
}

func TestStartWithoutEntitlementKeepsDefaults(t *testing.T) {
	m := newTestManager(&fakeEntitlement{hasAsset: false}, &fakePurchaser{}, &fakeRecorder{})
	defer m.Stop()

	snap, err := m.Start(context.Background(), domain.StartSessionRequest{PlayerName: "bob", FID: 7})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if snap.HasEntitlement {
		t.Fatal("entitlement flag set without the asset")
	}
	if snap.Credits != 3 || snap.Lives != 3 {
		t.Fatalf("expected default 3 lives / 3 credits, got %d / %d", snap.Lives, snap.Credits)
	}
	if snap.State != domain.SessionPlaying {
		t.Fatal("session must start playable regardless of entitlement")
	}
}

func TestStartRejectsEmptyName(t *testing.T) {
	m := newTestManager(&fakeEntitlement{}, &fakePurchaser{}, &fakeRecorder{})
	defer m.Stop()

	if _, err := m.Start(context.Background(), domain.StartSessionRequest{FID: 7}); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestCollisionRecordsFinalScoreOnGameOver(t *testing.T) {
	rec := &fakeRecorder{}
	m := newTestManager(&fakeEntitlement{}, &fakePurchaser{}, rec)
	defer m.Stop()

	ctx := context.Background()
	snap, _ := m.Start(ctx, domain.StartSessionRequest{PlayerName: "alice", FID: 42})

	for i := 0; i < 5; i++ {
		if _, err := m.Tick(snap.ID); err != nil {
			t.Fatalf("tick: %v", err)
		}
	}
	// Burn two lives; those runs' scores never reach the leaderboard.
	m.Collision(ctx, snap.ID)
	m.Tick(snap.ID)
	m.Tick(snap.ID)
	m.Collision(ctx, snap.ID)

	if len(rec.scores) != 0 {
		t.Fatalf("score recorded before game over: %v", rec.scores)
	}

	m.Tick(snap.ID)
	final, err := m.Collision(ctx, snap.ID)
	if err != nil {
		t.Fatalf("final collision: %v", err)
	}
	if final.State != domain.SessionGameOver {
		t.Fatalf("expected game over, got %s", final.State)
	}
	if got := rec.scores["alice"]; got != 1 {
		t.Fatalf("expected final run's score 1 recorded, got %d", got)
	}
}

func TestCollisionRecordingFailureNotSurfaced(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("window store down")}
	m := newTestManager(&fakeEntitlement{}, &fakePurchaser{}, rec)
	defer m.Stop()

	ctx := context.Background()
	snap, _ := m.Start(ctx, domain.StartSessionRequest{PlayerName: "alice", FID: 42})

	var last domain.SessionSnapshot
	var err error
	for i := 0; i < 3; i++ {
		last, err = m.Collision(ctx, snap.ID)
		if err != nil {
			t.Fatalf("collision %d must not surface the recording failure: %v", i, err)
		}
	}
	if last.State != domain.SessionGameOver {
		t.Fatalf("expected game over, got %s", last.State)
	}
}

func TestPurchaseFailureLeavesBalance(t *testing.T) {
	pur := &fakePurchaser{err: domain.ErrPurchaseFailed}
	m := newTestManager(&fakeEntitlement{}, pur, &fakeRecorder{})
	defer m.Stop()

	ctx := context.Background()
	snap, _ := m.Start(ctx, domain.StartSessionRequest{PlayerName: "alice", FID: 42})

	if _, err := m.PurchaseCredits(ctx, snap.ID); !errors.Is(err, domain.ErrPurchaseFailed) {
		t.Fatalf("expected ErrPurchaseFailed, got %v", err)
	}
	after, _ := m.Get(snap.ID)
	if after.Credits != snap.Credits {
		t.Fatalf("balance changed on failed purchase: %d -> %d", snap.Credits, after.Credits)
	}
}

func TestPurchaseAddsCredits(t *testing.T) {
	m := newTestManager(&fakeEntitlement{}, &fakePurchaser{granted: 3}, &fakeRecorder{})
	defer m.Stop()

	ctx := context.Background()
	snap, _ := m.Start(ctx, domain.StartSessionRequest{PlayerName: "alice", FID: 42})

	after, err := m.PurchaseCredits(ctx, snap.ID)
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if after.Credits != snap.Credits+3 {
		t.Fatalf("expected %d credits, got %d", snap.Credits+3, after.Credits)
	}
}

func TestExtraLifeGrantedOncePerAddress(t *testing.T) {
	ent := &fakeEntitlement{}
	m := newTestManager(ent, &fakePurchaser{}, &fakeRecorder{})
	defer m.Stop()

	ctx := context.Background()
	snap, _ := m.Start(ctx, domain.StartSessionRequest{PlayerName: "alice", FID: 42})

	granted, after, err := m.EarnExtraLife(ctx, snap.ID)
	if err != nil {
		t.Fatalf("extra life: %v", err)
	}
	if !granted {
		t.Fatal("first request must grant")
	}
	if after.Lives != snap.Lives+1 {
		t.Fatalf("expected %d lives, got %d", snap.Lives+1, after.Lives)
	}

	granted, again, err := m.EarnExtraLife(ctx, snap.ID)
	if err != nil {
		t.Fatalf("second extra life: %v", err)
	}
	if granted {
		t.Fatal("second request must not grant")
	}
	if again.Lives != after.Lives {
		t.Fatalf("lives changed on repeat request: %d -> %d", after.Lives, again.Lives)
	}
	if ent.recastCalls != 1 {
		t.Fatalf("recast marked %d times, want 1", ent.recastCalls)
	}
}

func TestExtraLifeConcurrentRequestsGrantOnce(t *testing.T) {
	ent := &fakeEntitlement{}
	m := newTestManager(ent, &fakePurchaser{}, &fakeRecorder{})
	defer m.Stop()

	ctx := context.Background()
	snap, _ := m.Start(ctx, domain.StartSessionRequest{PlayerName: "alice", FID: 42})

	const racers = 8
	grants := make(chan bool, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			granted, _, err := m.EarnExtraLife(ctx, snap.ID)
			if err != nil {
				t.Errorf("extra life: %v", err)
				return
			}
			grants <- granted
		}()
	}
	wg.Wait()
	close(grants)

	total := 0
	for g := range grants {
		if g {
			total++
		}
	}
	if total != 1 {
		t.Fatalf("expected exactly one grant across racers, got %d", total)
	}
	after, _ := m.Get(snap.ID)
	if after.Lives != snap.Lives+1 {
		t.Fatalf("expected %d lives, got %d", snap.Lives+1, after.Lives)
	}
}

func TestExtraLifeUncertaintyDoesNotGrant(t *testing.T) {
	ent := &fakeEntitlement{recastErr: errors.New("promo service unreachable")}
	m := newTestManager(ent, &fakePurchaser{}, &fakeRecorder{})
	defer m.Stop()

	ctx := context.Background()
	snap, _ := m.Start(ctx, domain.StartSessionRequest{PlayerName: "alice", FID: 42})

	granted, after, err := m.EarnExtraLife(ctx, snap.ID)
	if err == nil {
		t.Fatal("expected the lookup failure to surface")
	}
	if granted {
		t.Fatal("grant on an unanswerable recast check")
	}
	if after.Lives != snap.Lives {
		t.Fatalf("lives changed on failed check: %d -> %d", snap.Lives, after.Lives)
	}
	if ent.recastCalls != 0 {
		t.Fatal("recast marked despite the failed check")
	}
}

func TestEndDiscardsSession(t *testing.T) {
	m := newTestManager(&fakeEntitlement{}, &fakePurchaser{}, &fakeRecorder{})
	defer m.Stop()

	ctx := context.Background()
	snap, _ := m.Start(ctx, domain.StartSessionRequest{PlayerName: "alice", FID: 42})

	if m.Count() != 1 {
		t.Fatalf("expected 1 session, got %d", m.Count())
	}
	if err := m.End(snap.ID); err != nil {
		t.Fatalf("end: %v", err)
	}
	if m.Count() != 0 {
		t.Fatalf("expected 0 sessions, got %d", m.Count())
	}
	if _, err := m.Get(snap.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if err := m.End(snap.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("double end: expected ErrSessionNotFound, got %v", err)
	}
}
