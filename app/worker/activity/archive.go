package activity

import (
	"context"
	"fmt"

	"github.com/neynartodes/contesthub/app/worker/types"
	"github.com/neynartodes/contesthub/pkg/season"
)

// ArchiveSeason composes and persists the archive document for a season.
func (c *Context) ArchiveSeason(ctx context.Context, in types.ArchiveSeasonInput) (*types.ArchiveSeasonOutput, error) {
	archive, err := c.Archiver.Archive(ctx, in.SeasonID, season.ArchiveOptions{
		DryRun:     in.DryRun,
		ClearAfter: in.ClearAfter,
	})
	if err != nil {
		return nil, fmt.Errorf("archive season %d: %w", in.SeasonID, err)
	}
	return &types.ArchiveSeasonOutput{
		Contests:      len(archive.Contests),
		Hosts:         len(archive.Leaderboard),
		TotalPrizeUSD: archive.Stats.TotalPrizeUSD,
		DryRun:        in.DryRun,
	}, nil
}
