package price

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/neynartodes/contesthub/pkg/utils"
)

// ErrInsufficientLiquidity is returned by AcceptancePrice when every
// discoverable pool for the token sits under the TVL floor.
var ErrInsufficientLiquidity = errors.New("price: insufficient pool liquidity")

// Source markers carried on quotes. Callers treat SourceFallback as
// "unknown token" and must not accept it for prize valuation.
const (
	SourceNative       = "native"
	SourceKnownV4      = "v4-known"
	SourceV2           = "v2"
	SourceAerodrome    = "aerodrome"
	SourceV3           = "v3"
	SourceDiscoveredV4 = "v4-discovered"
	SourceFallback     = "fallback"
)

// fallbackPriceUSD is the constant placeholder for tokens no source can
// price. Non-zero so downstream ratios stay finite.
const fallbackPriceUSD = 0.000001

// minPoolTVLUSD is the acceptance floor for discovered V2/V3 pools.
const minPoolTVLUSD = 1000.0

// Quote is one priced result. LiquidityUSD is nil for vetted sources
// (native, known pools) which are not liquidity-gated.
type Quote struct {
	TokenPriceUSD float64
	PriceInETH    float64
	EthPriceUSD   float64
	Source        string
	LiquidityUSD  *float64
}

// V2Factory describes one V2-style factory to probe. Aerodrome keeps the
// x*y=k pair shape but looks pools up through getPool(tokenA,tokenB,stable).
type V2Factory struct {
	Name      string
	Addr      common.Address
	Aerodrome bool
}

// Config wires the engine to the chain's DEX deployments.
type Config struct {
	WrappedNative common.Address
	EthUsdFeed    common.Address
	V2Factories   []V2Factory
	V3Factory     common.Address
	V3FeeTiers    []uint32
	V4PoolManager common.Address
	V4StateView   common.Address
	// KnownV4Pools maps lowercase token addresses to vetted V4 pool ids.
	KnownV4Pools map[string]common.Hash
	// V4DeployBlock bounds the Initialize event scan.
	V4DeployBlock uint64
}

// ConfigFromEnv returns the engine config for the configured chain.
// Defaults target Base mainnet.
func ConfigFromEnv() Config {
	return Config{
		WrappedNative: common.HexToAddress(utils.Env("WRAPPED_NATIVE_ADDRESS", "0x4200000000000000000000000000000000000006")),
		EthUsdFeed:    common.HexToAddress(utils.Env("ETH_USD_FEED_ADDRESS", "0x71041dddad3595F9CEd3DcCFBe3D1F4b0a16Bb70")),
		V2Factories: []V2Factory{
			{Name: "uniswap-v2", Addr: common.HexToAddress(utils.Env("V2_FACTORY_ADDRESS", "0x8909Dc15e40173Ff4699343b6eB8132c65e18eC6"))},
			{Name: "aerodrome", Addr: common.HexToAddress(utils.Env("AERODROME_FACTORY_ADDRESS", "0x420DD381b31aEf6683db6B902084cB0FFECe40Da")), Aerodrome: true},
		},
		V3Factory:     common.HexToAddress(utils.Env("V3_FACTORY_ADDRESS", "0x33128a8fC17869897dcE68Ed026d694621f6FDfD")),
		V3FeeTiers:    []uint32{100, 500, 3000, 10000},
		V4PoolManager: common.HexToAddress(utils.Env("V4_POOL_MANAGER_ADDRESS", "0x498581fF718922c3f8e6A244956aF099B2652b2b")),
		V4StateView:   common.HexToAddress(utils.Env("V4_STATE_VIEW_ADDRESS", "0xA3c0c9b65baD0b08107Aa264b0f3dB444b867A71")),
		KnownV4Pools:  map[string]common.Hash{},
		V4DeployBlock: uint64(utils.EnvInt64("V4_DEPLOY_BLOCK", 25350988)),
	}
}

// chainReader is the slice of the chain client the engine needs.
type chainReader interface {
	Call(ctx context.Context, to common.Address, data []byte, block *big.Int) ([]byte, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	TokenDecimals(ctx context.Context, token common.Address) (uint8, error)
	BalanceOf(ctx context.Context, token, owner common.Address, block *big.Int) (*big.Int, error)
}

// Engine resolves token prices through an ordered source cascade. Sources
// return (nil, nil) when they have nothing; the first hit wins. No source
// uses errors for control flow.
type Engine struct {
	reader chainReader
	cfg    Config
	logger *zap.Logger

	feedOnce     sync.Once
	feedDecimals uint8
}

func NewEngine(reader chainReader, cfg Config, logger *zap.Logger) *Engine {
	if len(cfg.V3FeeTiers) == 0 {
		cfg.V3FeeTiers = []uint32{100, 500, 3000, 10000}
	}
	return &Engine{reader: reader, cfg: cfg, logger: logger}
}

// RegisterKnownPool adds a vetted V4 pool for a token. Vetted pools skip
// the liquidity gate.
func (e *Engine) RegisterKnownPool(token string, poolID common.Hash) {
	e.cfg.KnownV4Pools[strings.ToLower(token)] = poolID
}

type sourceFn struct {
	name string
	fn   func(ctx context.Context, token common.Address, block *big.Int) (*Quote, error)
}

func (e *Engine) sources() []sourceFn {
	return []sourceFn{
		{SourceNative, e.fromNative},
		{SourceKnownV4, e.fromKnownV4},
		{SourceV2, e.fromV2Factories},
		{SourceV3, e.fromV3},
		{SourceDiscoveredV4, e.fromV4Discovery},
	}
}

// isNative reports whether token is the wrapped-native sentinel or one of
// the ETH-native markers.
func (e *Engine) isNative(token common.Address) bool {
	if token == e.cfg.WrappedNative || token == (common.Address{}) {
		return true
	}
	return token == common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")
}

// EthUSD reads the ETH/USD oracle feed. The feed has no historical
// adapter, so historical quotes reuse the latest reading; this is a
// documented approximation.
func (e *Engine) EthUSD(ctx context.Context) (float64, error) {
	e.feedOnce.Do(func() {
		e.feedDecimals = 8
		data, err := feedABI.Pack("decimals")
		if err != nil {
			return
		}
		raw, err := e.reader.Call(ctx, e.cfg.EthUsdFeed, data, nil)
		if err != nil || len(raw) == 0 {
			return
		}
		if out, err := feedABI.Unpack("decimals", raw); err == nil {
			e.feedDecimals = out[0].(uint8)
		}
	})

	data, err := feedABI.Pack("latestRoundData")
	if err != nil {
		return 0, err
	}
	raw, err := e.reader.Call(ctx, e.cfg.EthUsdFeed, data, nil)
	if err != nil {
		return 0, fmt.Errorf("eth/usd feed: %w", err)
	}
	out, err := feedABI.Unpack("latestRoundData", raw)
	if err != nil {
		return 0, fmt.Errorf("decode eth/usd feed: %w", err)
	}
	answer := out[1].(*big.Int)
	if answer.Sign() <= 0 {
		return 0, fmt.Errorf("eth/usd feed returned %s", answer)
	}
	return rawToHuman(answer, e.feedDecimals), nil
}

// Price resolves the current USD price of a token, falling back to the
// constant unknown-price marker when no source can serve it.
func (e *Engine) Price(ctx context.Context, token common.Address) (*Quote, error) {
	return e.resolve(ctx, token, nil)
}

// PriceAt repeats the cascade with pool reads pinned to blockNumber.
func (e *Engine) PriceAt(ctx context.Context, token common.Address, blockNumber uint64) (*Quote, error) {
	return e.resolve(ctx, token, new(big.Int).SetUint64(blockNumber))
}

func (e *Engine) resolve(ctx context.Context, token common.Address, block *big.Int) (*Quote, error) {
	for _, src := range e.sources() {
		q, err := src.fn(ctx, token, block)
		if err != nil {
			e.logger.Debug("Price source failed, falling through",
				zap.String("source", src.name),
				zap.String("token", token.Hex()),
				zap.Error(err))
			continue
		}
		if q != nil {
			return q, nil
		}
	}

	ethUSD, _ := e.EthUSD(ctx)
	return &Quote{
		TokenPriceUSD: fallbackPriceUSD,
		EthPriceUSD:   ethUSD,
		Source:        SourceFallback,
	}, nil
}

// AcceptancePrice resolves a price that will be used to accept the token as
// a prize. Discovered pools under the TVL floor are rejected; if nothing
// acceptable remains the call fails with ErrInsufficientLiquidity rather
// than handing back the fallback marker.
func (e *Engine) AcceptancePrice(ctx context.Context, token common.Address) (*Quote, error) {
	sawThin := false
	for _, src := range e.sources() {
		q, err := src.fn(ctx, token, nil)
		if err != nil {
			e.logger.Debug("Price source failed, falling through",
				zap.String("source", src.name),
				zap.String("token", token.Hex()),
				zap.Error(err))
			continue
		}
		if q == nil {
			continue
		}
		if q.LiquidityUSD != nil && *q.LiquidityUSD < minPoolTVLUSD {
			sawThin = true
			e.logger.Info("Rejecting thin pool for prize acceptance",
				zap.String("source", q.Source),
				zap.String("token", token.Hex()),
				zap.Float64("tvlUsd", *q.LiquidityUSD))
			continue
		}
		return q, nil
	}
	if sawThin {
		return nil, ErrInsufficientLiquidity
	}
	return nil, fmt.Errorf("%w: no pool found for %s", ErrInsufficientLiquidity, token.Hex())
}
