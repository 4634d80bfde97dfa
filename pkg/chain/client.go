package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/neynartodes/contesthub/pkg/contest"
	"github.com/neynartodes/contesthub/pkg/retry"
	"github.com/neynartodes/contesthub/pkg/utils"
)

// ErrChainUnavailable wraps RPC failures that survived the retry budget.
// The reader never silently returns zero values instead.
var ErrChainUnavailable = errors.New("chain: rpc unavailable")

// Opts configures a Client. Zero values fall back to env-driven defaults.
type Opts struct {
	RPCURL string
	// Escrows maps each contest family to its escrow contract address.
	// token is the legacy token-prize escrow, nft the NFT escrow, and
	// v2/m/t are unified-escrow deployments.
	Escrows    map[contest.Family]string
	VotingAddr string
	// BlockPeriod is the chain's average seconds per block, used to
	// approximate block ranges from timestamps.
	BlockPeriod time.Duration
	Timeout     time.Duration
}

// OptsFromEnv reads CHAIN_RPC_URL and the contract address set.
func OptsFromEnv() Opts {
	return Opts{
		RPCURL: utils.Env("CHAIN_RPC_URL", "http://localhost:8545"),
		Escrows: map[contest.Family]string{
			contest.FamilyToken:   utils.Env("ESCROW_ADDRESS_TOKEN", ""),
			contest.FamilyNFT:     utils.Env("ESCROW_ADDRESS_NFT", ""),
			contest.FamilyV2:      utils.Env("ESCROW_ADDRESS_V2", ""),
			contest.FamilyMilestn: utils.Env("ESCROW_ADDRESS_M", ""),
			contest.FamilyTrade:   utils.Env("ESCROW_ADDRESS_T", ""),
		},
		VotingAddr:  utils.Env("VOTING_ADDRESS", ""),
		BlockPeriod: time.Duration(utils.EnvInt("BLOCK_PERIOD_SECONDS", 2)) * time.Second,
		Timeout:     time.Duration(utils.EnvInt("CHAIN_TIMEOUT_SECONDS", 10)) * time.Second,
	}
}

// Client is the typed view over the escrow, token and voting contracts. It is
// the single site that knows how each escrow family decodes; callers work
// over contest.Contest common fields.
type Client struct {
	eth    *ethclient.Client
	logger *zap.Logger

	escrows map[contest.Family]common.Address
	voting  common.Address

	blockPeriod time.Duration
	timeout     time.Duration
	retryCfg    retry.Config
}

// Dial connects to the JSON-RPC endpoint and verifies it responds.
func Dial(ctx context.Context, logger *zap.Logger, o Opts) (*Client, error) {
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.BlockPeriod <= 0 {
		o.BlockPeriod = 2 * time.Second
	}

	eth, err := ethclient.DialContext(ctx, o.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", o.RPCURL, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, o.Timeout)
	defer cancel()
	if _, err := eth.ChainID(pingCtx); err != nil {
		return nil, fmt.Errorf("chain id probe: %w", err)
	}

	logger.Info("Connected to chain RPC", zap.String("url", o.RPCURL))

	escrows := make(map[contest.Family]common.Address, len(o.Escrows))
	for fam, addr := range o.Escrows {
		if addr != "" {
			escrows[fam] = common.HexToAddress(addr)
		}
	}

	return &Client{
		eth:         eth,
		logger:      logger,
		escrows:     escrows,
		voting:      common.HexToAddress(o.VotingAddr),
		blockPeriod: o.BlockPeriod,
		timeout:     o.Timeout,
		retryCfg:    retry.ChainConfig(),
	}, nil
}

func (c *Client) Close() {
	c.eth.Close()
}

// BlockPeriod exposes the configured seconds-per-block approximation.
func (c *Client) BlockPeriod() time.Duration {
	return c.blockPeriod
}

// withRetry runs fn under the chain retry policy, wrapping terminal failures
// in ErrChainUnavailable.
func (c *Client) withRetry(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	err := retry.WithBackoff(ctx, c.retryCfg, c.logger, operation, func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		return fn(callCtx)
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrChainUnavailable, operation, err)
	}
	return nil
}

// Call executes a read-only contract call, optionally pinned to a block.
// block == nil reads the latest state.
func (c *Client) Call(ctx context.Context, to common.Address, data []byte, block *big.Int) ([]byte, error) {
	var out []byte
	err := c.withRetry(ctx, fmt.Sprintf("eth_call %s", to.Hex()), func(ctx context.Context) error {
		raw, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, block)
		if err != nil {
			return err
		}
		out = raw
		return nil
	})
	return out, err
}

// FilterLogs queries event logs under the retry policy.
func (c *Client) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	var out []types.Log
	err := c.withRetry(ctx, "eth_getLogs", func(ctx context.Context) error {
		logs, err := c.eth.FilterLogs(ctx, q)
		if err != nil {
			return err
		}
		out = logs
		return nil
	})
	return out, err
}

// BlockNumber returns the current head height.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var out uint64
	err := c.withRetry(ctx, "eth_blockNumber", func(ctx context.Context) error {
		n, err := c.eth.BlockNumber(ctx)
		if err != nil {
			return err
		}
		out = n
		return nil
	})
	return out, err
}

// BlockTimestamp returns the UNIX timestamp of a block header.
func (c *Client) BlockTimestamp(ctx context.Context, number uint64) (int64, error) {
	var out int64
	err := c.withRetry(ctx, "eth_getHeaderByNumber", func(ctx context.Context) error {
		h, err := c.eth.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
		if err != nil {
			return err
		}
		out = int64(h.Time)
		return nil
	})
	return out, err
}

// ApproxBlockAt estimates the block height at a past timestamp by walking
// back from the head using the configured block period. Good enough for
// volume windows; exactness is not required because events are re-checked
// against their block timestamps.
func (c *Client) ApproxBlockAt(ctx context.Context, ts int64) (uint64, error) {
	head, err := c.BlockNumber(ctx)
	if err != nil {
		return 0, err
	}
	headTime, err := c.BlockTimestamp(ctx, head)
	if err != nil {
		return 0, err
	}
	if ts >= headTime {
		return head, nil
	}
	delta := uint64(float64(headTime-ts) / c.blockPeriod.Seconds())
	if delta >= head {
		return 0, nil
	}
	return head - delta, nil
}
