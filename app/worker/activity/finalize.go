package activity

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/neynartodes/contesthub/app/worker/types"
	"github.com/neynartodes/contesthub/pkg/contest"
)

// FetchContest reads the contest's current on-chain state. The chain is the
// source of truth for status; the cache may be stale or absent.
func (c *Context) FetchContest(ctx context.Context, in types.FinalizeContestInput) (*contest.Contest, error) {
	key, err := contest.ParseKey(in.ContestKey)
	if err != nil {
		return nil, fmt.Errorf("parse contest key: %w", err)
	}
	return c.Chain.GetContest(ctx, key, nil)
}

// FinalizeContest runs the finalization capture for a terminal contest.
func (c *Context) FinalizeContest(ctx context.Context, in *contest.Contest) (*types.FinalizeContestOutput, error) {
	if !in.Status.Terminal() {
		// The reconciler fires on end-time approximations; a contest still
		// waiting on VRF simply is not ready yet.
		c.Logger.Debug("Contest not terminal yet, skipping finalize",
			zap.String("contest", in.Key().String()),
			zap.String("status", in.Status.String()))
		return &types.FinalizeContestOutput{Finalized: false, Status: in.Status.String()}, nil
	}

	if err := c.Finalizer.Finalize(ctx, in); err != nil {
		return nil, err
	}
	return &types.FinalizeContestOutput{Finalized: true, Status: in.Status.String()}, nil
}

// CacheContest refreshes the cache record for a contest the reconciler
// discovered on chain.
func (c *Context) CacheContest(ctx context.Context, in *contest.Contest) error {
	return c.Store.PutContest(ctx, in)
}
