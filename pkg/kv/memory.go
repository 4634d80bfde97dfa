package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	"github.com/neynartodes/contesthub/pkg/contest"
)

// Memory is the in-process fallback Store. It is NOT durable: a fresh
// process loses everything. Production only ever runs it when
// KV_REST_API_URL is unset, and then only for display message strings;
// entries, prices and signatures must never land here outside tests.
type Memory struct {
	values *xsync.Map[string, []byte]

	mu   sync.Mutex
	sets map[string]map[uint64]struct{}
	zset map[string]map[string]int64

	logger *zap.Logger
}

var _ Store = (*Memory)(nil)

func NewMemory(logger *zap.Logger) *Memory {
	return &Memory{
		values: xsync.NewMap[string, []byte](),
		sets:   make(map[string]map[uint64]struct{}),
		zset:   make(map[string]map[string]int64),
		logger: logger,
	}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) Health(context.Context) error { return nil }

func (m *Memory) putJSON(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	m.values.Store(key, raw)
	return nil
}

func memGetJSON[T any](m *Memory, key string) (*T, error) {
	raw, ok := m.values.Load(key)
	if !ok {
		return nil, ErrNotFound
	}
	out := new(T)
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return out, nil
}

func (m *Memory) PutContest(_ context.Context, c *contest.Contest) error {
	return m.putJSON(contestKey(c.Key()), c)
}

func (m *Memory) GetContest(_ context.Context, k contest.Key) (*contest.Contest, error) {
	return memGetJSON[contest.Contest](m, contestKey(k))
}

func (m *Memory) PutCastSnapshot(_ context.Context, k contest.Key, s *contest.CastSnapshot) error {
	return m.putJSON(socialKey(k), s)
}

func (m *Memory) GetCastSnapshot(_ context.Context, k contest.Key) (*contest.CastSnapshot, error) {
	return memGetJSON[contest.CastSnapshot](m, socialKey(k))
}

func (m *Memory) DeleteCastSnapshot(_ context.Context, k contest.Key) error {
	m.values.Delete(socialKey(k))
	return nil
}

func (m *Memory) PutPriceSnapshot(_ context.Context, k contest.Key, s *contest.PriceSnapshot) error {
	return m.putJSON(priceKey(k), s)
}

func (m *Memory) GetPriceSnapshot(_ context.Context, k contest.Key) (*contest.PriceSnapshot, error) {
	return memGetJSON[contest.PriceSnapshot](m, priceKey(k))
}

func (m *Memory) PutNFTPriceSnapshot(_ context.Context, k contest.Key, s *contest.PriceSnapshot) error {
	return m.putJSON(nftPriceKey(k), s)
}

func (m *Memory) GetNFTPriceSnapshot(_ context.Context, k contest.Key) (*contest.PriceSnapshot, error) {
	return memGetJSON[contest.PriceSnapshot](m, nftPriceKey(k))
}

func (m *Memory) PutEntryNX(_ context.Context, key string, e *contest.Entry) (*contest.Entry, bool, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, false, fmt.Errorf("marshal %s: %w", key, err)
	}
	stored, loaded := m.values.LoadOrStore(key, raw)
	if !loaded {
		return e, true, nil
	}
	existing := new(contest.Entry)
	if err := json.Unmarshal(stored, existing); err != nil {
		return nil, false, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return existing, false, nil
}

func (m *Memory) GetEntryRaw(_ context.Context, key string) (*contest.Entry, error) {
	return memGetJSON[contest.Entry](m, key)
}

func (m *Memory) DeleteEntry(_ context.Context, key string) error {
	m.values.Delete(key)
	return nil
}

func (m *Memory) AddContestEntrant(_ context.Context, contestKey string, fid uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := entrantsKey(contestKey)
	if m.sets[k] == nil {
		m.sets[k] = make(map[uint64]struct{})
	}
	m.sets[k][fid] = struct{}{}
	return nil
}

func (m *Memory) ContestEntrants(_ context.Context, contestKey string) ([]uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.sets[entrantsKey(contestKey)]
	fids := make([]uint64, 0, len(set))
	for fid := range set {
		fids = append(fids, fid)
	}
	sort.Slice(fids, func(i, j int) bool { return fids[i] < fids[j] })
	return fids, nil
}

func (m *Memory) SeasonIndexAdd(_ context.Context, seasonID uint64, contestKey string, endTime int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := seasonIndexKey(seasonID)
	if m.zset[k] == nil {
		m.zset[k] = make(map[string]int64)
	}
	m.zset[k][contestKey] = endTime
	return nil
}

func (m *Memory) SeasonIndexRange(_ context.Context, seasonID uint64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	members := m.zset[seasonIndexKey(seasonID)]
	keys := make([]string, 0, len(members))
	for k := range members {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if members[keys[i]] == members[keys[j]] {
			return keys[i] < keys[j]
		}
		return members[keys[i]] < members[keys[j]]
	})
	return keys, nil
}

func (m *Memory) DeleteSeasonIndex(_ context.Context, seasonID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.zset, seasonIndexKey(seasonID))
	return nil
}

// PutLeaderboard ignores the TTL: memory mode only expires memos through
// explicit invalidation, which is acceptable for tests and local dev.
func (m *Memory) PutLeaderboard(_ context.Context, lb *contest.Leaderboard, _ time.Duration) error {
	return m.putJSON(leaderboardKey(lb.SeasonID, lb.Limit), lb)
}

func (m *Memory) GetLeaderboard(_ context.Context, seasonID uint64, limit int) (*contest.Leaderboard, error) {
	return memGetJSON[contest.Leaderboard](m, leaderboardKey(seasonID, limit))
}

func (m *Memory) DeleteLeaderboards(ctx context.Context, seasonID uint64) (int, error) {
	keys, err := m.Keys(ctx, leaderboardPattern(seasonID), 0)
	if err != nil {
		return 0, err
	}
	return m.DeleteKeys(ctx, keys)
}

func (m *Memory) PutSeasonArchive(_ context.Context, a *contest.SeasonArchive) error {
	return m.putJSON(seasonArchiveKey(a.Season.SeasonID), a)
}

func (m *Memory) GetSeasonArchive(_ context.Context, seasonID uint64) (*contest.SeasonArchive, error) {
	return memGetJSON[contest.SeasonArchive](m, seasonArchiveKey(seasonID))
}

func (m *Memory) SetString(_ context.Context, key, value string) error {
	m.values.Store(key, []byte(value))
	return nil
}

func (m *Memory) GetString(_ context.Context, key string) (string, error) {
	raw, ok := m.values.Load(key)
	if !ok {
		return "", ErrNotFound
	}
	return string(raw), nil
}

func (m *Memory) SetMessage(ctx context.Context, id, value string) error {
	return m.SetString(ctx, messageKey(id), value)
}

func (m *Memory) GetMessage(ctx context.Context, id string) (string, error) {
	return m.GetString(ctx, messageKey(id))
}

func (m *Memory) Keys(_ context.Context, pattern string, limit int) ([]string, error) {
	var out []string
	m.values.Range(func(k string, _ []byte) bool {
		if ok, _ := path.Match(pattern, k); ok {
			out = append(out, k)
		}
		return limit <= 0 || len(out) < limit
	})
	sort.Strings(out)
	return out, nil
}

func (m *Memory) DeleteKeys(_ context.Context, keys []string) (int, error) {
	n := 0
	for _, k := range keys {
		if _, ok := m.values.LoadAndDelete(k); ok {
			n++
		}
	}
	return n, nil
}

// Publish is a no-op in memory mode; there are no subscribers to feed.
func (m *Memory) Publish(_ context.Context, channel string, _ any) {
	if m.logger != nil {
		m.logger.Debug("Dropping pub/sub message in memory mode", zap.String("channel", channel))
	}
}
