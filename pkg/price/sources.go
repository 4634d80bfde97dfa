package price

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// fromNative short-circuits the cascade for the native asset itself.
func (e *Engine) fromNative(ctx context.Context, token common.Address, _ *big.Int) (*Quote, error) {
	if !e.isNative(token) {
		return nil, nil
	}
	ethUSD, err := e.EthUSD(ctx)
	if err != nil {
		return nil, err
	}
	return &Quote{
		TokenPriceUSD: ethUSD,
		PriceInETH:    1,
		EthPriceUSD:   ethUSD,
		Source:        SourceNative,
	}, nil
}

// fromKnownV4 prices through the vetted pool registry. Registry pools pair
// the token against native ETH, which V4 encodes as currency0; the token is
// always currency1. Vetted pools skip the liquidity gate.
func (e *Engine) fromKnownV4(ctx context.Context, token common.Address, block *big.Int) (*Quote, error) {
	poolID, ok := e.cfg.KnownV4Pools[strings.ToLower(token.Hex())]
	if !ok {
		return nil, nil
	}

	sqrtPrice, err := e.v4Slot0(ctx, poolID, block)
	if err != nil {
		return nil, err
	}
	if sqrtPrice.Sign() == 0 {
		return nil, nil
	}

	ethUSD, err := e.EthUSD(ctx)
	if err != nil {
		return nil, err
	}
	decimals, err := e.reader.TokenDecimals(ctx, token)
	if err != nil {
		decimals = 18
	}

	priceETH := sqrtPriceToETH(sqrtPrice, false, decimals)
	return &Quote{
		TokenPriceUSD: priceETH * ethUSD,
		PriceInETH:    priceETH,
		EthPriceUSD:   ethUSD,
		Source:        SourceKnownV4,
	}, nil
}

// fromV2Factories probes each configured V2-style factory for a
// token/wrapped-native pair and prices from its reserves. TVL is estimated
// as twice the native side of the pool.
func (e *Engine) fromV2Factories(ctx context.Context, token common.Address, block *big.Int) (*Quote, error) {
	ethUSD, err := e.EthUSD(ctx)
	if err != nil {
		return nil, err
	}
	decimals, err := e.reader.TokenDecimals(ctx, token)
	if err != nil {
		decimals = 18
	}

	for _, factory := range e.cfg.V2Factories {
		pairs, err := e.v2Pairs(ctx, factory, token, block)
		if err != nil {
			e.logger.Debug("V2 factory probe failed",
				zap.String("factory", factory.Name), zap.Error(err))
			continue
		}
		for _, pair := range pairs {
			tokenRes, nativeRes, err := e.pairReserves(ctx, pair, token, block)
			if err != nil || nativeRes.Sign() == 0 {
				continue
			}
			priceETH := reservesToETH(tokenRes, nativeRes, decimals)
			if priceETH == 0 {
				continue
			}
			tvl := 2 * weiToEth(nativeRes) * ethUSD
			source := SourceV2
			if factory.Aerodrome {
				source = SourceAerodrome
			}
			return &Quote{
				TokenPriceUSD: priceETH * ethUSD,
				PriceInETH:    priceETH,
				EthPriceUSD:   ethUSD,
				Source:        source,
				LiquidityUSD:  &tvl,
			}, nil
		}
	}
	return nil, nil
}

// v2Pairs resolves the candidate pair addresses for token/wnative on one
// factory. Aerodrome distinguishes volatile and stable pools; volatile is
// probed first.
func (e *Engine) v2Pairs(ctx context.Context, factory V2Factory, token common.Address, block *big.Int) ([]common.Address, error) {
	lookup := func(method string, args ...any) (common.Address, error) {
		data, err := v2FactoryABI.Pack(method, args...)
		if err != nil {
			return common.Address{}, err
		}
		raw, err := e.reader.Call(ctx, factory.Addr, data, block)
		if err != nil {
			return common.Address{}, err
		}
		out, err := v2FactoryABI.Unpack(method, raw)
		if err != nil {
			return common.Address{}, err
		}
		return out[0].(common.Address), nil
	}

	var candidates []common.Address
	if factory.Aerodrome {
		for _, stable := range []bool{false, true} {
			pool, err := lookup("getPool", token, e.cfg.WrappedNative, stable)
			if err != nil {
				return nil, err
			}
			if pool != (common.Address{}) {
				candidates = append(candidates, pool)
			}
		}
		return candidates, nil
	}

	pair, err := lookup("getPair", token, e.cfg.WrappedNative)
	if err != nil {
		return nil, err
	}
	if pair != (common.Address{}) {
		candidates = append(candidates, pair)
	}
	return candidates, nil
}

// pairReserves reads a V2 pair's reserves and splits them into the token
// side and the wrapped-native side.
func (e *Engine) pairReserves(ctx context.Context, pair, token common.Address, block *big.Int) (tokenRes, nativeRes *big.Int, err error) {
	data, err := v2PairABI.Pack("token0")
	if err != nil {
		return nil, nil, err
	}
	raw, err := e.reader.Call(ctx, pair, data, block)
	if err != nil {
		return nil, nil, err
	}
	out, err := v2PairABI.Unpack("token0", raw)
	if err != nil {
		return nil, nil, err
	}
	token0 := out[0].(common.Address)

	data, err = v2PairABI.Pack("getReserves")
	if err != nil {
		return nil, nil, err
	}
	raw, err = e.reader.Call(ctx, pair, data, block)
	if err != nil {
		return nil, nil, err
	}
	out, err = v2PairABI.Unpack("getReserves", raw)
	if err != nil {
		return nil, nil, err
	}
	reserve0 := out[0].(*big.Int)
	reserve1 := out[1].(*big.Int)

	if token0 == token {
		return reserve0, reserve1, nil
	}
	return reserve1, reserve0, nil
}

// fromV3 walks the standard fee tiers looking for a token/wrapped-native V3
// pool. TVL is estimated from the pool's wrapped-native balance.
func (e *Engine) fromV3(ctx context.Context, token common.Address, block *big.Int) (*Quote, error) {
	if e.cfg.V3Factory == (common.Address{}) {
		return nil, nil
	}
	ethUSD, err := e.EthUSD(ctx)
	if err != nil {
		return nil, err
	}
	decimals, err := e.reader.TokenDecimals(ctx, token)
	if err != nil {
		decimals = 18
	}

	for _, fee := range e.cfg.V3FeeTiers {
		data, err := v3FactoryABI.Pack("getPool", token, e.cfg.WrappedNative, big.NewInt(int64(fee)))
		if err != nil {
			return nil, err
		}
		raw, err := e.reader.Call(ctx, e.cfg.V3Factory, data, block)
		if err != nil {
			continue
		}
		out, err := v3FactoryABI.Unpack("getPool", raw)
		if err != nil {
			continue
		}
		pool := out[0].(common.Address)
		if pool == (common.Address{}) {
			continue
		}

		sqrtPrice, token0, err := e.v3Slot0(ctx, pool, block)
		if err != nil || sqrtPrice.Sign() == 0 {
			continue
		}
		priceETH := sqrtPriceToETH(sqrtPrice, token0 == token, decimals)
		if priceETH == 0 {
			continue
		}

		nativeBal, err := e.reader.BalanceOf(ctx, e.cfg.WrappedNative, pool, block)
		if err != nil {
			continue
		}
		tvl := 2 * weiToEth(nativeBal) * ethUSD
		return &Quote{
			TokenPriceUSD: priceETH * ethUSD,
			PriceInETH:    priceETH,
			EthPriceUSD:   ethUSD,
			Source:        SourceV3,
			LiquidityUSD:  &tvl,
		}, nil
	}
	return nil, nil
}

func (e *Engine) v3Slot0(ctx context.Context, pool common.Address, block *big.Int) (*big.Int, common.Address, error) {
	data, err := v3PoolABI.Pack("token0")
	if err != nil {
		return nil, common.Address{}, err
	}
	raw, err := e.reader.Call(ctx, pool, data, block)
	if err != nil {
		return nil, common.Address{}, err
	}
	out, err := v3PoolABI.Unpack("token0", raw)
	if err != nil {
		return nil, common.Address{}, err
	}
	token0 := out[0].(common.Address)

	data, err = v3PoolABI.Pack("slot0")
	if err != nil {
		return nil, common.Address{}, err
	}
	raw, err = e.reader.Call(ctx, pool, data, block)
	if err != nil {
		return nil, common.Address{}, err
	}
	out, err = v3PoolABI.Unpack("slot0", raw)
	if err != nil {
		return nil, common.Address{}, err
	}
	return out[0].(*big.Int), token0, nil
}

// fromV4Discovery scans the PoolManager's Initialize events for a pool
// pairing the token against native ETH, then prices it through the state
// view. In-range liquidity approximates the TVL gate.
func (e *Engine) fromV4Discovery(ctx context.Context, token common.Address, block *big.Int) (*Quote, error) {
	if e.cfg.V4PoolManager == (common.Address{}) || e.cfg.V4StateView == (common.Address{}) {
		return nil, nil
	}

	tokenTopic := common.BytesToHash(token.Bytes())
	from := new(big.Int).SetUint64(e.cfg.V4DeployBlock)

	// Native ETH is currency0 in V4, so the token can appear in either
	// indexed currency slot depending on the counterpart.
	queries := []ethereum.FilterQuery{
		{FromBlock: from, Addresses: []common.Address{e.cfg.V4PoolManager},
			Topics: [][]common.Hash{{v4InitializeTopic}, nil, {tokenTopic}}},
		{FromBlock: from, Addresses: []common.Address{e.cfg.V4PoolManager},
			Topics: [][]common.Hash{{v4InitializeTopic}, nil, nil, {tokenTopic}}},
	}

	nativeTopic := common.Hash{}
	wnativeTopic := common.BytesToHash(e.cfg.WrappedNative.Bytes())

	for _, q := range queries {
		logs, err := e.reader.FilterLogs(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("v4 discovery scan: %w", err)
		}
		for _, lg := range logs {
			if len(lg.Topics) < 4 {
				continue
			}
			currency0, currency1 := lg.Topics[2], lg.Topics[3]
			counterpart := currency0
			tokenIsCurrency0 := false
			if bytes.Equal(currency0[:], tokenTopic[:]) {
				counterpart = currency1
				tokenIsCurrency0 = true
			}
			if counterpart != nativeTopic && counterpart != wnativeTopic {
				continue
			}

			quote, err := e.priceV4Pool(ctx, lg.Topics[1], token, tokenIsCurrency0, block)
			if err != nil || quote == nil {
				continue
			}
			return quote, nil
		}
	}
	return nil, nil
}

func (e *Engine) priceV4Pool(ctx context.Context, poolID common.Hash, token common.Address, tokenIsCurrency0 bool, block *big.Int) (*Quote, error) {
	sqrtPrice, err := e.v4Slot0(ctx, poolID, block)
	if err != nil || sqrtPrice.Sign() == 0 {
		return nil, err
	}

	ethUSD, err := e.EthUSD(ctx)
	if err != nil {
		return nil, err
	}
	decimals, err := e.reader.TokenDecimals(ctx, token)
	if err != nil {
		decimals = 18
	}

	priceETH := sqrtPriceToETH(sqrtPrice, tokenIsCurrency0, decimals)
	if priceETH == 0 {
		return nil, nil
	}

	tvl := e.v4TVLEstimate(ctx, poolID, sqrtPrice, tokenIsCurrency0, ethUSD, block)
	return &Quote{
		TokenPriceUSD: priceETH * ethUSD,
		PriceInETH:    priceETH,
		EthPriceUSD:   ethUSD,
		Source:        SourceDiscoveredV4,
		LiquidityUSD:  &tvl,
	}, nil
}

func (e *Engine) v4Slot0(ctx context.Context, poolID common.Hash, block *big.Int) (*big.Int, error) {
	data, err := v4StateViewABI.Pack("getSlot0", poolID)
	if err != nil {
		return nil, err
	}
	raw, err := e.reader.Call(ctx, e.cfg.V4StateView, data, block)
	if err != nil {
		return nil, err
	}
	out, err := v4StateViewABI.Unpack("getSlot0", raw)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// v4TVLEstimate approximates pool depth from in-range liquidity. The
// singleton pool manager holds every pool's balance, so per-pool token
// balances are not observable; amount1 = L * sqrtP and amount0 = L / sqrtP
// give the active-range sides instead.
func (e *Engine) v4TVLEstimate(ctx context.Context, poolID common.Hash, sqrtPrice *big.Int, tokenIsCurrency0 bool, ethUSD float64, block *big.Int) float64 {
	data, err := v4StateViewABI.Pack("getLiquidity", poolID)
	if err != nil {
		return 0
	}
	raw, err := e.reader.Call(ctx, e.cfg.V4StateView, data, block)
	if err != nil {
		return 0
	}
	out, err := v4StateViewABI.Unpack("getLiquidity", raw)
	if err != nil {
		return 0
	}
	liquidity := new(big.Float).SetInt(out[0].(*big.Int))

	sqrt := new(big.Float).Quo(new(big.Float).SetInt(sqrtPrice), q96)
	var nativeSide *big.Float
	if tokenIsCurrency0 {
		// native is currency1: amount1 = L * sqrtP
		nativeSide = new(big.Float).Mul(liquidity, sqrt)
	} else {
		// native is currency0: amount0 = L / sqrtP
		if sqrt.Sign() == 0 {
			return 0
		}
		nativeSide = new(big.Float).Quo(liquidity, sqrt)
	}
	side, _ := nativeSide.Float64()
	return 2 * (side / 1e18) * ethUSD
}
