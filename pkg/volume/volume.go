package volume

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"sync"

	"github.com/alitto/pond/v2"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/neynartodes/contesthub/pkg/chain"
	"github.com/neynartodes/contesthub/pkg/price"
	"github.com/neynartodes/contesthub/pkg/utils"
)

// chainReader is the slice of the chain client the calculator needs.
type chainReader interface {
	QueryTransfers(ctx context.Context, token, addr common.Address, fromBlock, toBlock uint64) ([]chain.Transfer, error)
	ApproxBlockAt(ctx context.Context, ts int64) (uint64, error)
	BlockTimestamp(ctx context.Context, number uint64) (int64, error)
	TokenDecimals(ctx context.Context, token common.Address) (uint8, error)
}

// priceQuoter resolves a token's USD price at a given block.
type priceQuoter interface {
	PriceAt(ctx context.Context, token common.Address, block uint64) (*price.Quote, error)
}

// Result is the trading volume attributed to one entrant over a window.
type Result struct {
	TokenVolume float64 `json:"tokenVolume"`
	USDVolume   float64 `json:"usdVolume"`
	Transfers   int     `json:"transfers"`
}

// Calculator measures per-entrant trading volume from ERC-20 transfer logs.
// Transfers are gathered concurrently per address, then priced sequentially
// so each block's price is resolved once.
type Calculator struct {
	reader chainReader
	quotes priceQuoter
	pool   pond.Pool
	logger *zap.Logger
}

func NewCalculator(reader chainReader, quotes priceQuoter, logger *zap.Logger) *Calculator {
	workers := utils.EnvInt("VOLUME_WORKERS", 8)
	return &Calculator{
		reader: reader,
		quotes: quotes,
		pool:   pond.NewPool(workers),
		logger: logger,
	}
}

func (c *Calculator) Close() {
	c.pool.StopAndWait()
}

// During sums the volume on token across the entrant's addresses within
// [startTime, endTime]. The block range is approximated from timestamps and
// every transfer is re-checked against its block's actual timestamp, so the
// approximation cannot leak out-of-window trades in.
func (c *Calculator) During(ctx context.Context, token common.Address, addresses []string, startTime, endTime int64) (*Result, error) {
	if len(addresses) == 0 {
		return &Result{}, nil
	}

	fromBlock, err := c.reader.ApproxBlockAt(ctx, startTime)
	if err != nil {
		return nil, fmt.Errorf("resolve window start: %w", err)
	}
	toBlock, err := c.reader.ApproxBlockAt(ctx, endTime)
	if err != nil {
		return nil, fmt.Errorf("resolve window end: %w", err)
	}
	if toBlock < fromBlock {
		return &Result{}, nil
	}

	var (
		mu        sync.Mutex
		transfers []chain.Transfer
	)
	group := c.pool.NewGroupContext(ctx)
	for _, addr := range utils.DedupLower(addresses) {
		entrant := common.HexToAddress(addr)
		group.SubmitErr(func() error {
			found, err := c.reader.QueryTransfers(ctx, token, entrant, fromBlock, toBlock)
			if err != nil {
				return err
			}
			mu.Lock()
			transfers = append(transfers, found...)
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("scan transfers: %w", err)
	}

	decimals, err := c.reader.TokenDecimals(ctx, token)
	if err != nil {
		decimals = 18
	}

	out := &Result{}
	seen := make(map[string]struct{}, len(transfers))
	blockTimes := make(map[uint64]int64)
	blockPrices := make(map[uint64]float64)

	for _, tr := range transfers {
		// A transfer between two of the entrant's own addresses shows up
		// in both address scans; count each event once by log position so
		// batch trades emitting several transfers in one tx all count.
		dedupe := fmt.Sprintf("%s:%d", tr.TxHash, tr.Index)
		if _, ok := seen[dedupe]; ok {
			continue
		}
		seen[dedupe] = struct{}{}

		ts, ok := blockTimes[tr.BlockNumber]
		if !ok {
			ts, err = c.reader.BlockTimestamp(ctx, tr.BlockNumber)
			if err != nil {
				return nil, fmt.Errorf("block %d timestamp: %w", tr.BlockNumber, err)
			}
			blockTimes[tr.BlockNumber] = ts
		}
		if ts < startTime || ts > endTime {
			continue
		}

		usdPrice, ok := blockPrices[tr.BlockNumber]
		if !ok {
			quote, err := c.quotes.PriceAt(ctx, token, tr.BlockNumber)
			if err != nil {
				return nil, fmt.Errorf("price at block %d: %w", tr.BlockNumber, err)
			}
			usdPrice = quote.TokenPriceUSD
			blockPrices[tr.BlockNumber] = usdPrice
		}

		amount := rawToHuman(tr.Amount, decimals)
		out.TokenVolume += amount
		out.USDVolume += amount * usdPrice
		out.Transfers++
	}

	c.logger.Debug("Computed entrant volume",
		zap.String("token", token.Hex()),
		zap.Int("addresses", len(addresses)),
		zap.Int("transfers", out.Transfers),
		zap.Float64("usdVolume", out.USDVolume))
	return out, nil
}

func rawToHuman(raw *big.Int, decimals uint8) float64 {
	if raw == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(raw).Float64()
	return f / math.Pow10(int(decimals))
}
