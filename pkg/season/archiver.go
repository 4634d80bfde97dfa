package season

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/neynartodes/contesthub/pkg/contest"
	"github.com/neynartodes/contesthub/pkg/kv"
	"github.com/neynartodes/contesthub/pkg/utils"
)

// archiveLeaderboardLimit is how many hosts the frozen archive carries.
const archiveLeaderboardLimit = 50

type contestEnumerator interface {
	NextContestID(ctx context.Context, fam contest.Family) (uint64, error)
}

type leaderboardSource interface {
	Rebuild(ctx context.Context, seasonID uint64, limit int) (*contest.Leaderboard, error)
}

// ArchiveOptions control an archive run. DryRun composes the document
// without persisting anything; ClearAfter deletes the season's working
// records once the archive is durable. The archive itself is never deleted.
type ArchiveOptions struct {
	DryRun     bool
	ClearAfter bool
}

// Archiver freezes a finished season. It enumerates every contest cache
// bounded by the on-chain next-ids for each family, not just the season
// index, so contests that were never indexed still make it into the
// archive.
type Archiver struct {
	store       kv.Store
	chain       contestEnumerator
	leaderboard leaderboardSource
	schedule    *Schedule
	pool        pond.Pool
	logger      *zap.Logger
}

func NewArchiver(store kv.Store, chainClient contestEnumerator, leaderboard leaderboardSource, schedule *Schedule, logger *zap.Logger) *Archiver {
	workers := utils.EnvInt("ARCHIVE_WORKERS", 16)
	return &Archiver{
		store:       store,
		chain:       chainClient,
		leaderboard: leaderboard,
		schedule:    schedule,
		pool:        pond.NewPool(workers),
		logger:      logger,
	}
}

func (a *Archiver) Close() {
	a.pool.StopAndWait()
}

// Archive composes and persists the archive document for one season.
func (a *Archiver) Archive(ctx context.Context, seasonID uint64, opts ArchiveOptions) (*contest.SeasonArchive, error) {
	season, ok := a.schedule.ByID(seasonID)
	if !ok {
		return nil, fmt.Errorf("unknown season %d", seasonID)
	}

	contests, err := a.collectContests(ctx, season)
	if err != nil {
		return nil, err
	}

	lb, err := a.leaderboard.Rebuild(ctx, seasonID, archiveLeaderboardLimit)
	if err != nil {
		return nil, fmt.Errorf("rebuild leaderboard for season %d: %w", seasonID, err)
	}

	archive := &contest.SeasonArchive{
		Season:      season,
		Contests:    contests,
		Leaderboard: lb.Hosts,
		Stats:       computeStats(contests),
		ArchivedAt:  time.Now().Unix(),
	}

	if opts.DryRun {
		a.logger.Info("Archive dry run, not persisting",
			zap.Uint64("season", seasonID), zap.Int("contests", len(contests)))
		return archive, nil
	}

	if err := a.store.PutSeasonArchive(ctx, archive); err != nil {
		return nil, fmt.Errorf("persist archive for season %d: %w", seasonID, err)
	}
	a.logger.Info("Persisted season archive",
		zap.Uint64("season", seasonID), zap.Int("contests", len(contests)))

	if opts.ClearAfter {
		a.clearWorkingState(ctx, seasonID, contests)
	}
	return archive, nil
}

// collectContests enumerates the contest caches of every family up to its
// on-chain next-id and keeps those ending inside the season window.
func (a *Archiver) collectContests(ctx context.Context, season contest.Season) ([]contest.ArchivedContest, error) {
	var (
		mu  sync.Mutex
		out []contest.ArchivedContest
	)
	group := a.pool.NewGroupContext(ctx)

	for _, fam := range contest.Families {
		next, err := a.chain.NextContestID(ctx, fam)
		if err != nil {
			// A family without a configured escrow has no contests.
			a.logger.Debug("Skipping family in archive enumeration",
				zap.String("family", string(fam)), zap.Error(err))
			continue
		}
		for id := uint64(1); id < next; id++ {
			key := contest.Key{Family: fam, ID: id}
			group.SubmitErr(func() error {
				archived, err := a.loadArchived(ctx, key, season)
				if err != nil {
					return err
				}
				if archived == nil {
					return nil
				}
				mu.Lock()
				out = append(out, *archived)
				mu.Unlock()
				return nil
			})
		}
	}
	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("enumerate contest caches: %w", err)
	}

	sortArchived(out)
	return out, nil
}

func (a *Archiver) loadArchived(ctx context.Context, key contest.Key, season contest.Season) (*contest.ArchivedContest, error) {
	c, err := a.store.GetContest(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read contest %s: %w", key, err)
	}
	if !season.Contains(c.EndTime) {
		return nil, nil
	}

	archived := &contest.ArchivedContest{Contest: c}
	if snapshot, err := a.store.GetCastSnapshot(ctx, key); err == nil {
		archived.Social = snapshot
	} else if !errors.Is(err, kv.ErrNotFound) {
		return nil, fmt.Errorf("read snapshot %s: %w", key, err)
	}
	if price, err := a.priceSnapshot(ctx, key, c); err == nil {
		archived.Price = price
	} else if !errors.Is(err, kv.ErrNotFound) {
		return nil, fmt.Errorf("read price snapshot %s: %w", key, err)
	}
	return archived, nil
}

func (a *Archiver) priceSnapshot(ctx context.Context, key contest.Key, c *contest.Contest) (*contest.PriceSnapshot, error) {
	if c.PrizeKind == contest.PrizeNFT {
		return a.store.GetNFTPriceSnapshot(ctx, key)
	}
	return a.store.GetPriceSnapshot(ctx, key)
}

// clearWorkingState deletes the per-season social snapshots, the season
// index, and the leaderboard memos. Failures are logged, not fatal: the
// archive is already durable and a partial clear just leaves stale keys.
func (a *Archiver) clearWorkingState(ctx context.Context, seasonID uint64, contests []contest.ArchivedContest) {
	for _, archived := range contests {
		key := archived.Contest.Key()
		if err := a.store.DeleteCastSnapshot(ctx, key); err != nil {
			a.logger.Warn("Failed to delete cast snapshot",
				zap.String("contest", key.String()), zap.Error(err))
		}
	}
	if err := a.store.DeleteSeasonIndex(ctx, seasonID); err != nil {
		a.logger.Warn("Failed to delete season index",
			zap.Uint64("season", seasonID), zap.Error(err))
	}
	if _, err := a.store.DeleteLeaderboards(ctx, seasonID); err != nil {
		a.logger.Warn("Failed to delete leaderboard memos",
			zap.Uint64("season", seasonID), zap.Error(err))
	}
	a.logger.Info("Cleared season working state", zap.Uint64("season", seasonID))
}

// sortArchived orders the archive deterministically by end time, then key.
func sortArchived(contests []contest.ArchivedContest) {
	sort.Slice(contests, func(i, j int) bool {
		a, b := contests[i].Contest, contests[j].Contest
		if a.EndTime != b.EndTime {
			return a.EndTime < b.EndTime
		}
		return a.Key().String() < b.Key().String()
	})
}

func computeStats(contests []contest.ArchivedContest) contest.ArchiveStats {
	stats := contest.ArchiveStats{TotalContests: len(contests)}
	hosts := make(map[string]struct{})
	for _, archived := range contests {
		switch archived.Contest.Status {
		case contest.StatusCompleted:
			stats.CompletedCount++
		case contest.StatusCancelled:
			stats.CancelledCount++
		}
		hosts[archived.Contest.Host] = struct{}{}
		if archived.Price != nil {
			stats.TotalPrizeUSD += archived.Price.PrizeValueUSD
		}
	}
	stats.UniqueHosts = len(hosts)
	return stats
}
