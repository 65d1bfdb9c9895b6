package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sunshinevendetta/frame/internal/config"
	"github.com/sunshinevendetta/frame/internal/domain"
)

// Repository is the durable side of the leaderboard: score events, window
// award rows, and periodic standings archives. The live window lives in
// Redis; everything here survives it.
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{pool: pool, logger: logger}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS score_events (
			id BIGSERIAL PRIMARY KEY,
			player_name VARCHAR(255) NOT NULL,
			score BIGINT NOT NULL,
			game_id VARCHAR(64),
			event_type VARCHAR(20) NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS window_awards (
			id BIGSERIAL PRIMARY KEY,
			window_end TIMESTAMP NOT NULL,
			player_name VARCHAR(255) NOT NULL,
			fid BIGINT,
			address VARCHAR(128),
			score BIGINT NOT NULL,
			payout_ok BOOLEAN NOT NULL DEFAULT FALSE,
			payout_error TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS standings_archive (
			id BIGSERIAL PRIMARY KEY,
			window_end TIMESTAMP NOT NULL,
			player_name VARCHAR(255) NOT NULL,
			score BIGINT NOT NULL,
			best_at TIMESTAMP,
			archived_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(window_end, player_name)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_score_events_player ON score_events(player_name, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_window_awards_end ON window_awards(window_end DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_standings_archive_window ON standings_archive(window_end, score DESC)`,
	}

	for _, migration := range migrations {
		if _, err := r.pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// RecordEvent appends a score event for auditing
func (r *Repository) RecordEvent(ctx context.Context, event domain.ScoreEvent) error {
	query := `
		INSERT INTO score_events (player_name, score, game_id, event_type, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query,
		event.PlayerName,
		event.Score,
		event.GameID,
		event.EventType,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("recording event: %w", err)
	}
	return nil
}

// RecordAward persists the outcome of one window reset
func (r *Repository) RecordAward(ctx context.Context, award domain.AwardRecord) error {
	query := `
		INSERT INTO window_awards (window_end, player_name, fid, address, score, payout_ok, payout_error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		award.WindowEnd,
		award.PlayerName,
		award.FID,
		award.Address,
		award.Score,
		award.PayoutOK,
		award.PayoutError,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("recording award: %w", err)
	}
	return nil
}

// ListAwards returns the most recent window awards
func (r *Repository) ListAwards(ctx context.Context, limit int) ([]domain.AwardRecord, error) {
	query := `
		SELECT id, window_end, player_name, COALESCE(fid, 0), COALESCE(address, ''), score, payout_ok, COALESCE(payout_error, ''), created_at
		FROM window_awards
		ORDER BY window_end DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("listing awards: %w", err)
	}
	defer rows.Close()

	var awards []domain.AwardRecord
	for rows.Next() {
		var a domain.AwardRecord
		err := rows.Scan(
			&a.ID,
			&a.WindowEnd,
			&a.PlayerName,
			&a.FID,
			&a.Address,
			&a.Score,
			&a.PayoutOK,
			&a.PayoutError,
			&a.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning award: %w", err)
		}
		awards = append(awards, a)
	}
	return awards, nil
}

// ArchiveStandings upserts a window's entries. The archiver calls this on a
// timer with the live deadline, and the cycle manager calls it once more at
// the boundary with the final standings; the upsert makes both idempotent.
func (r *Repository) ArchiveStandings(ctx context.Context, windowEnd time.Time, entries []domain.StandingsEntry) error {
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO standings_archive (window_end, player_name, score, best_at, archived_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (window_end, player_name)
		DO UPDATE SET score = $3, best_at = $4, archived_at = $5
	`
	now := time.Now()
	for _, entry := range entries {
		batch.Queue(query, windowEnd, entry.PlayerName, entry.Score, entry.BestAt, now)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range entries {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("archiving standings: %w", err)
		}
	}
	return nil
}

// ArchivedStandings returns a past window's final standings
func (r *Repository) ArchivedStandings(ctx context.Context, windowEnd time.Time) ([]domain.StandingsEntry, error) {
	query := `
		SELECT player_name, score, COALESCE(best_at, 'epoch'::timestamp)
		FROM standings_archive
		WHERE window_end = $1
		ORDER BY score DESC, best_at ASC, player_name ASC
	`
	rows, err := r.pool.Query(ctx, query, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("getting archived standings: %w", err)
	}
	defer rows.Close()

	var entries []domain.StandingsEntry
	rank := int64(0)
	for rows.Next() {
		var entry domain.StandingsEntry
		if err := rows.Scan(&entry.PlayerName, &entry.Score, &entry.BestAt); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		rank++
		entry.Rank = rank
		entries = append(entries, entry)
	}
	return entries, nil
}
