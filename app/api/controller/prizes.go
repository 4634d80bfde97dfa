package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/neynartodes/contesthub/pkg/contest"
)

const prizeCacheTTL = time.Hour

type allTimePrizes struct {
	TotalUSD  float64            `json:"totalUSD"`
	Breakdown map[string]float64 `json:"breakdown"`
	Contests  int                `json:"contests"`
	EthPrice  float64            `json:"ethPrice"`
	CachedAt  int64              `json:"cachedAt"`
}

type cachedPrizes struct {
	resp    *allTimePrizes
	expires int64
}

// HandleAllTimePrizes totals the prize value committed across every contest
// ever created, per family. The walk touches one cache read per contest, so
// the response is memoized for an hour.
func (c *Controller) HandleAllTimePrizes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if hit, ok := c.prizeCache.Load("all"); ok && hit.expires > time.Now().Unix() {
		writeJSON(w, http.StatusOK, hit.resp)
		return
	}

	resp, err := c.collectPrizes(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	c.prizeCache.Store("all", &cachedPrizes{
		resp:    resp,
		expires: time.Now().Add(prizeCacheTTL).Unix(),
	})
	writeJSON(w, http.StatusOK, resp)
}

func (c *Controller) collectPrizes(ctx context.Context) (*allTimePrizes, error) {
	out := &allTimePrizes{
		Breakdown: map[string]float64{},
		CachedAt:  time.Now().Unix(),
	}

	if ethUSD, err := c.App.Prices.EthUSD(ctx); err == nil {
		out.EthPrice = ethUSD
	}

	for _, fam := range contest.Families {
		next, err := c.App.Chain.NextContestID(ctx, fam)
		if err != nil {
			// Families without a configured escrow are expected to miss.
			continue
		}
		for id := uint64(1); id < next; id++ {
			key := contest.Key{Family: fam, ID: id}
			snap, snapErr := c.prizeSnapshot(ctx, key)
			if snapErr != nil || snap == nil || snap.PrizeValueUSD <= 0 {
				continue
			}
			out.Breakdown[string(fam)] += snap.PrizeValueUSD
			out.TotalUSD += snap.PrizeValueUSD
			out.Contests++
		}
	}
	return out, nil
}

func (c *Controller) prizeSnapshot(ctx context.Context, key contest.Key) (*contest.PriceSnapshot, error) {
	if key.Family == contest.FamilyNFT {
		return c.App.Store.GetNFTPriceSnapshot(ctx, key)
	}
	return c.App.Store.GetPriceSnapshot(ctx, key)
}
