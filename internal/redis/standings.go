package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sunshinevendetta/frame/internal/config"
	"github.com/sunshinevendetta/frame/internal/domain"
)

const (
	standingsKey = "frame:standings"
	bestAtKey    = "frame:standings:bestat"
)

// Store keeps the current window's standings in a sorted set, with a
// companion hash recording when each player first reached their best score.
// The hash is the tie-break input at the window boundary.
type Store struct {
	client *redis.Client
	logger *slog.Logger
}

// NewStore connects to Redis and returns a standings store
func NewStore(cfg *config.RedisConfig, logger *slog.Logger) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &Store{client: client, logger: logger}, nil
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// RecordScore raises the player's stored score if the submission beats it.
// ZADD GT makes the per-entry read-modify-write atomic on the server; the
// best-at timestamp is only written when the score actually moved.
func (s *Store) RecordScore(ctx context.Context, playerName string, score int64, at time.Time) error {
	changed, err := s.client.ZAddArgs(ctx, standingsKey, redis.ZAddArgs{
		GT: true,
		Ch: true,
		Members: []redis.Z{
			{Score: float64(score), Member: playerName},
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("recording score: %w", err)
	}

	if changed > 0 {
		if err := s.client.HSet(ctx, bestAtKey, playerName, at.UTC().UnixNano()).Err(); err != nil {
			return fmt.Errorf("recording best-at: %w", err)
		}
	}
	return nil
}

// TopN returns the top n entries in rank order.
func (s *Store) TopN(ctx context.Context, n int) ([]domain.StandingsEntry, error) {
	results, err := s.client.ZRevRangeWithScores(ctx, standingsKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting top n: %w", err)
	}

	entries := make([]domain.StandingsEntry, len(results))
	for i, result := range results {
		entries[i] = domain.StandingsEntry{
			Rank:       int64(i + 1),
			PlayerName: result.Member.(string),
			Score:      int64(result.Score),
		}
	}
	return entries, nil
}

// PlayerEntry returns one player's rank and score.
func (s *Store) PlayerEntry(ctx context.Context, playerName string) (*domain.StandingsEntry, error) {
	pipe := s.client.Pipeline()
	rankCmd := pipe.ZRevRank(ctx, standingsKey, playerName)
	scoreCmd := pipe.ZScore(ctx, standingsKey, playerName)
	_, err := pipe.Exec(ctx)
	if err != nil {
		if err == redis.Nil {
			return nil, domain.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("getting player entry: %w", err)
	}

	rank, err := rankCmd.Result()
	if err != nil {
		if err == redis.Nil {
			return nil, domain.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("getting rank: %w", err)
	}
	score, err := scoreCmd.Result()
	if err != nil {
		return nil, fmt.Errorf("getting score: %w", err)
	}

	return &domain.StandingsEntry{
		Rank:       rank + 1,
		PlayerName: playerName,
		Score:      int64(score),
	}, nil
}

// Count returns the number of players in the current window.
func (s *Store) Count(ctx context.Context) (int64, error) {
	count, err := s.client.ZCard(ctx, standingsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("counting entries: %w", err)
	}
	return count, nil
}

// Snapshot returns all entries with their best-at timestamps, without
// clearing anything. The archiver uses it between resets.
func (s *Store) Snapshot(ctx context.Context) ([]domain.StandingsEntry, error) {
	pipe := s.client.TxPipeline()
	rangeCmd := pipe.ZRevRangeWithScores(ctx, standingsKey, 0, -1)
	bestAtCmd := pipe.HGetAll(ctx, bestAtKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("snapshotting standings: %w", err)
	}
	return s.assemble(rangeCmd.Val(), bestAtCmd.Val()), nil
}

// DrainWindow atomically snapshots and clears the window. MULTI/EXEC
// guarantees a concurrent RecordScore lands either before the snapshot or
// after the clear; nothing can fall between them.
func (s *Store) DrainWindow(ctx context.Context) ([]domain.StandingsEntry, error) {
	pipe := s.client.TxPipeline()
	rangeCmd := pipe.ZRevRangeWithScores(ctx, standingsKey, 0, -1)
	bestAtCmd := pipe.HGetAll(ctx, bestAtKey)
	pipe.Del(ctx, standingsKey)
	pipe.Del(ctx, bestAtKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("draining window: %w", err)
	}
	return s.assemble(rangeCmd.Val(), bestAtCmd.Val()), nil
}

func (s *Store) assemble(results []redis.Z, bestAt map[string]string) []domain.StandingsEntry {
	entries := make([]domain.StandingsEntry, len(results))
	for i, result := range results {
		name := result.Member.(string)
		entry := domain.StandingsEntry{
			Rank:       int64(i + 1),
			PlayerName: name,
			Score:      int64(result.Score),
		}
		if raw, ok := bestAt[name]; ok {
			if nanos, err := strconv.ParseInt(raw, 10, 64); err == nil {
				entry.BestAt = time.Unix(0, nanos).UTC()
			}
		}
		entries[i] = entry
	}
	return entries
}
