package kv

import (
	"context"
	"errors"
	"time"

	"github.com/neynartodes/contesthub/pkg/contest"
)

// ErrNotFound is returned when a key does not exist. Callers distinguish a
// cache miss from a store failure by this sentinel.
var ErrNotFound = errors.New("kv: not found")

// ErrUnconfigured is returned by NewRedis when KV_REST_API_URL is unset.
var ErrUnconfigured = errors.New("kv: KV_REST_API_URL not configured")

// Store is the typed persistence surface of the backend. The redis
// implementation is the production path; the memory implementation backs
// tests and the documented display-string fallback.
type Store interface {
	// Contest cache.
	PutContest(ctx context.Context, c *contest.Contest) error
	GetContest(ctx context.Context, k contest.Key) (*contest.Contest, error)

	// Cast snapshots.
	PutCastSnapshot(ctx context.Context, k contest.Key, s *contest.CastSnapshot) error
	GetCastSnapshot(ctx context.Context, k contest.Key) (*contest.CastSnapshot, error)
	DeleteCastSnapshot(ctx context.Context, k contest.Key) error

	// Price snapshots, token and NFT-floor variants.
	PutPriceSnapshot(ctx context.Context, k contest.Key, s *contest.PriceSnapshot) error
	GetPriceSnapshot(ctx context.Context, k contest.Key) (*contest.PriceSnapshot, error)
	PutNFTPriceSnapshot(ctx context.Context, k contest.Key, s *contest.PriceSnapshot) error
	GetNFTPriceSnapshot(ctx context.Context, k contest.Key) (*contest.PriceSnapshot, error)

	// Entry ledger primitives. PutEntryNX is the atomicity point for the
	// at-most-one-entry invariant: when the key already exists the stored
	// record is returned with created=false and nothing is written.
	PutEntryNX(ctx context.Context, key string, e *contest.Entry) (existing *contest.Entry, created bool, err error)
	GetEntryRaw(ctx context.Context, key string) (*contest.Entry, error)
	DeleteEntry(ctx context.Context, key string) error
	AddContestEntrant(ctx context.Context, contestKey string, fid uint64) error
	ContestEntrants(ctx context.Context, contestKey string) ([]uint64, error)

	// Season index: sorted set scored by contest end time.
	SeasonIndexAdd(ctx context.Context, seasonID uint64, contestKey string, endTime int64) error
	SeasonIndexRange(ctx context.Context, seasonID uint64) ([]string, error)
	DeleteSeasonIndex(ctx context.Context, seasonID uint64) error

	// Leaderboard memos.
	PutLeaderboard(ctx context.Context, lb *contest.Leaderboard, ttl time.Duration) error
	GetLeaderboard(ctx context.Context, seasonID uint64, limit int) (*contest.Leaderboard, error)
	DeleteLeaderboards(ctx context.Context, seasonID uint64) (int, error)

	// Season archives.
	PutSeasonArchive(ctx context.Context, a *contest.SeasonArchive) error
	GetSeasonArchive(ctx context.Context, seasonID uint64) (*contest.SeasonArchive, error)

	// Finalization side-records (announced_*, finalize_tx_*) and display
	// message strings.
	SetString(ctx context.Context, key, value string) error
	GetString(ctx context.Context, key string) (string, error)
	SetMessage(ctx context.Context, id, value string) error
	GetMessage(ctx context.Context, id string) (string, error)

	// Keys enumerates keys matching a glob pattern, bounded by scanLimit.
	Keys(ctx context.Context, pattern string, limit int) ([]string, error)
	DeleteKeys(ctx context.Context, keys []string) (int, error)

	// Publish is best-effort; failures are logged, never returned.
	Publish(ctx context.Context, channel string, payload any)

	Health(ctx context.Context) error
	Close() error
}
