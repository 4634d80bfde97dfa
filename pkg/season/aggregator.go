package season

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/neynartodes/contesthub/pkg/contest"
	"github.com/neynartodes/contesthub/pkg/kv"
	"github.com/neynartodes/contesthub/pkg/social"
)

// memoTTL keeps leaderboards warm between finalization invalidations.
const memoTTL = 5 * time.Minute

type fidResolver interface {
	ResolveByAddress(ctx context.Context, addr string) (*social.User, error)
}

type chainFallback interface {
	GetContest(ctx context.Context, k contest.Key, block *big.Int) (*contest.Contest, error)
	HostVotes(ctx context.Context, host common.Address) (up, down uint64, err error)
}

// Aggregator computes season leaderboards from the season index, the
// contest caches, and the frozen cast snapshots.
type Aggregator struct {
	store    kv.Store
	social   fidResolver
	chain    chainFallback
	schedule *Schedule
	logger   *zap.Logger
}

func NewAggregator(store kv.Store, socialClient fidResolver, chainClient chainFallback, schedule *Schedule, logger *zap.Logger) *Aggregator {
	return &Aggregator{store: store, social: socialClient, chain: chainClient, schedule: schedule, logger: logger}
}

// Leaderboard returns the top limit hosts for a season, serving the memo
// when one is present and rebuilding otherwise.
func (a *Aggregator) Leaderboard(ctx context.Context, seasonID uint64, limit int) (*contest.Leaderboard, error) {
	if memo, err := a.store.GetLeaderboard(ctx, seasonID, limit); err == nil {
		return memo, nil
	} else if !errors.Is(err, kv.ErrNotFound) {
		a.logger.Warn("Leaderboard memo read failed, rebuilding",
			zap.Uint64("season", seasonID), zap.Error(err))
	}

	lb, err := a.Rebuild(ctx, seasonID, limit)
	if err != nil {
		return nil, err
	}
	if err := a.store.PutLeaderboard(ctx, lb, memoTTL); err != nil {
		a.logger.Warn("Failed to memoize leaderboard",
			zap.Uint64("season", seasonID), zap.Error(err))
	}
	return lb, nil
}

// Rebuild recomputes a leaderboard from scratch, bypassing the memo.
func (a *Aggregator) Rebuild(ctx context.Context, seasonID uint64, limit int) (*contest.Leaderboard, error) {
	if _, ok := a.schedule.ByID(seasonID); !ok {
		return nil, fmt.Errorf("unknown season %d", seasonID)
	}

	keys, err := a.store.SeasonIndexRange(ctx, seasonID)
	if err != nil {
		return nil, fmt.Errorf("read season %d index: %w", seasonID, err)
	}

	stats := make(map[string]*contest.HostStats)
	total := 0

	for _, raw := range keys {
		key, err := contest.ParseKey(raw)
		if err != nil {
			a.logger.Warn("Skipping malformed season index entry",
				zap.String("entry", raw), zap.Error(err))
			continue
		}
		c, err := a.loadContest(ctx, key)
		if err != nil {
			a.logger.Warn("Skipping unreadable contest",
				zap.String("contest", raw), zap.Error(err))
			continue
		}
		total++

		host := strings.ToLower(c.Host)
		hs := stats[host]
		if hs == nil {
			hs = &contest.HostStats{Address: host}
			stats[host] = hs

			user, err := a.social.ResolveByAddress(ctx, host)
			if err != nil {
				a.logger.Warn("Failed to resolve host fid",
					zap.String("host", host), zap.Error(err))
			} else if user != nil {
				hs.Fid = user.Fid
				hs.Username = user.Username
			}
		}

		if c.Status == contest.StatusCompleted {
			hs.CompletedContests++
		}
		hs.Volume += c.TotalVolumeUSD

		snapshot, err := a.store.GetCastSnapshot(ctx, key)
		if errors.Is(err, kv.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read snapshot %s: %w", key, err)
		}
		// Authorship check: engagement only counts on casts the host
		// actually authored.
		if hs.Fid == 0 || snapshot.HostFid != hs.Fid {
			continue
		}
		hs.OwnedCasts++
		hs.Likes += snapshot.Likes
		hs.Recasts += snapshot.Recasts
		hs.Replies += snapshot.Replies
	}

	rows := make([]contest.HostScore, 0, len(stats))
	for host, hs := range stats {
		up, down, err := a.chain.HostVotes(ctx, common.HexToAddress(host))
		if err != nil {
			a.logger.Warn("Failed to read host votes, scoring zero",
				zap.String("host", host), zap.Error(err))
		}
		hs.Upvotes, hs.Downvotes = up, down
		rows = append(rows, score(*hs))
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].TotalScore != rows[j].TotalScore {
			return rows[i].TotalScore > rows[j].TotalScore
		}
		return rows[i].Stats.Address < rows[j].Stats.Address
	})
	assignDenseRanks(rows)
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	return &contest.Leaderboard{
		SeasonID:      seasonID,
		Limit:         limit,
		Hosts:         rows,
		TotalContests: total,
		Formula:       contest.ScoreFormula,
		GeneratedAt:   time.Now().Unix(),
	}, nil
}

func (a *Aggregator) loadContest(ctx context.Context, key contest.Key) (*contest.Contest, error) {
	c, err := a.store.GetContest(ctx, key)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, kv.ErrNotFound) {
		return nil, err
	}
	return a.chain.GetContest(ctx, key, nil)
}

// score applies the season formula to one host's stats.
func score(hs contest.HostStats) contest.HostScore {
	hostBonus := 100 * float64(hs.CompletedContests)
	socialRaw := float64(hs.Likes+2*hs.Recasts+3*hs.Replies) * 100
	tokenScore := hs.Volume * 50
	contestScore := hostBonus + 3*socialRaw + tokenScore
	voteScore := float64(int64(hs.Upvotes)-int64(hs.Downvotes)) * 200

	return contest.HostScore{
		Stats:        hs,
		HostBonus:    hostBonus,
		SocialScore:  socialRaw,
		TokenScore:   tokenScore,
		ContestScore: contestScore,
		VoteScore:    voteScore,
		TotalScore:   contestScore + voteScore,
	}
}

// assignDenseRanks gives equal scores equal ranks, with the next distinct
// score taking rank+1.
func assignDenseRanks(rows []contest.HostScore) {
	rank := uint32(0)
	for i := range rows {
		if i == 0 || rows[i].TotalScore != rows[i-1].TotalScore {
			rank++
		}
		rows[i].Rank = rank
	}
}
