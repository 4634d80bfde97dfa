package season

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/neynartodes/contesthub/pkg/contest"
	"github.com/neynartodes/contesthub/pkg/kv"
	"github.com/neynartodes/contesthub/pkg/social"
	"github.com/neynartodes/contesthub/pkg/volume"
)

type castReader interface {
	GetCast(ctx context.Context, hash string) (*social.Cast, error)
}

type volumeCalculator interface {
	During(ctx context.Context, token common.Address, addresses []string, startTime, endTime int64) (*volume.Result, error)
}

// Finalizer captures a contest's terminal state: the frozen cast snapshot,
// the measured entrant volume, the season index membership, and the
// leaderboard invalidation. Every write is keyed by contest identity, so
// running it twice converges to the same state.
type Finalizer struct {
	store    kv.Store
	casts    castReader
	volumes  volumeCalculator
	schedule *Schedule
	logger   *zap.Logger
}

func NewFinalizer(store kv.Store, casts castReader, volumes volumeCalculator, schedule *Schedule, logger *zap.Logger) *Finalizer {
	return &Finalizer{store: store, casts: casts, volumes: volumes, schedule: schedule, logger: logger}
}

// Finalize records a contest that has reached Completed or Cancelled.
func (f *Finalizer) Finalize(ctx context.Context, c *contest.Contest) error {
	if !c.Status.Terminal() {
		return fmt.Errorf("contest %s is %s, not terminal", c.Key(), c.Status)
	}
	key := c.Key()

	if err := f.captureSnapshot(ctx, c); err != nil {
		// Social outages must not block finalization; the snapshot can be
		// backfilled and the archive tolerates its absence.
		f.logger.Warn("Failed to capture cast snapshot",
			zap.String("contest", key.String()), zap.Error(err))
	}

	if err := f.measureVolume(ctx, c); err != nil {
		f.logger.Warn("Failed to measure contest volume",
			zap.String("contest", key.String()), zap.Error(err))
	}

	if err := f.store.PutContest(ctx, c); err != nil {
		return fmt.Errorf("cache contest %s: %w", key, err)
	}

	season, ok := f.schedule.For(c.EndTime)
	if !ok {
		f.logger.Warn("Contest ends outside every configured season",
			zap.String("contest", key.String()), zap.Int64("endTime", c.EndTime))
		return nil
	}

	if err := f.store.SeasonIndexAdd(ctx, season.SeasonID, key.String(), c.EndTime); err != nil {
		return fmt.Errorf("index contest %s in season %d: %w", key, season.SeasonID, err)
	}

	if _, err := f.store.DeleteLeaderboards(ctx, season.SeasonID); err != nil {
		f.logger.Warn("Failed to invalidate leaderboard memos",
			zap.Uint64("season", season.SeasonID), zap.Error(err))
	}
	f.store.Publish(ctx, kv.LeaderboardChannel(season.SeasonID), map[string]any{
		"contestKey": key.String(),
		"season":     season.SeasonID,
		"status":     c.Status.String(),
	})

	marker := fmt.Sprintf("announced_%s_%d", key.Family, key.ID)
	if _, err := f.store.GetString(ctx, marker); errors.Is(err, kv.ErrNotFound) {
		if err := f.store.SetString(ctx, marker, strconv.FormatInt(time.Now().Unix(), 10)); err != nil {
			f.logger.Warn("Failed to write announce marker", zap.String("key", marker), zap.Error(err))
		}
	}

	f.logger.Info("Finalized contest",
		zap.String("contest", key.String()),
		zap.String("status", c.Status.String()),
		zap.Uint64("season", season.SeasonID))
	return nil
}

// captureSnapshot freezes the cast counters. An existing snapshot with
// CapturedAt set is frozen and never re-fetched.
func (f *Finalizer) captureSnapshot(ctx context.Context, c *contest.Contest) error {
	key := c.Key()
	existing, err := f.store.GetCastSnapshot(ctx, key)
	if err == nil && existing.CapturedAt > 0 {
		return nil
	}
	if err != nil && !errors.Is(err, kv.ErrNotFound) {
		return err
	}

	cast, err := f.casts.GetCast(ctx, c.CastHash())
	if err != nil {
		return err
	}
	return f.store.PutCastSnapshot(ctx, key, &contest.CastSnapshot{
		CastHash:   c.CastHash(),
		HostFid:    cast.AuthorFid,
		Likes:      cast.Likes,
		Recasts:    cast.Recasts,
		Replies:    cast.Replies,
		CapturedAt: time.Now().Unix(),
	})
}

// measureVolume sums every entrant's trading volume over the contest window
// and caches it on the contest record, so the aggregator never rescans logs.
func (f *Finalizer) measureVolume(ctx context.Context, c *contest.Contest) error {
	if !c.RequiresVolume() || c.TotalVolumeUSD > 0 {
		return nil
	}

	fids, err := f.store.ContestEntrants(ctx, c.Key().String())
	if err != nil {
		return fmt.Errorf("list entrants: %w", err)
	}

	var addresses []string
	for _, fid := range fids {
		record, err := f.store.GetEntryRaw(ctx, kv.EntryKey(c.Key().String(), fid))
		if errors.Is(err, kv.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("read entry for fid %d: %w", fid, err)
		}
		addresses = append(addresses, record.Addresses...)
	}
	if len(addresses) == 0 {
		return nil
	}

	result, err := f.volumes.During(ctx, common.HexToAddress(c.TokenRequirement),
		addresses, c.StartTime, c.EndTime)
	if err != nil {
		return err
	}
	c.TotalVolumeUSD = result.USDVolume
	return nil
}
