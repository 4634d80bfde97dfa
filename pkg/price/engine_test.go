package price

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	testWNative = common.HexToAddress("0x4200000000000000000000000000000000000006")
	testFeed    = common.HexToAddress("0x0000000000000000000000000000000000000feed")
	testFactory = common.HexToAddress("0x00000000000000000000000000000000000000f2")
	testPair    = common.HexToAddress("0x0000000000000000000000000000000000000a12")
	testToken   = common.HexToAddress("0x000000000000000000000000000000000000c0de")
)

// fakeReader serves canned ABI-encoded responses keyed by target contract
// and 4-byte selector.
type fakeReader struct {
	responses map[string][]byte
	decimals  uint8
}

func newFakeReader() *fakeReader {
	return &fakeReader{responses: map[string][]byte{}, decimals: 18}
}

func callKey(to common.Address, data []byte) string {
	return fmt.Sprintf("%s:%x", to.Hex(), data[:4])
}

func (f *fakeReader) stub(t *testing.T, to common.Address, contract abi.ABI, method string, outs ...any) {
	t.Helper()
	encoded, err := contract.Methods[method].Outputs.Pack(outs...)
	require.NoError(t, err)
	selector := contract.Methods[method].ID
	f.responses[fmt.Sprintf("%s:%x", to.Hex(), selector)] = encoded
}

func (f *fakeReader) Call(_ context.Context, to common.Address, data []byte, _ *big.Int) ([]byte, error) {
	if resp, ok := f.responses[callKey(to, data)]; ok {
		return resp, nil
	}
	return nil, errors.New("no contract at address")
}

func (f *fakeReader) FilterLogs(context.Context, ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}

func (f *fakeReader) TokenDecimals(context.Context, common.Address) (uint8, error) {
	return f.decimals, nil
}

func (f *fakeReader) BalanceOf(context.Context, common.Address, common.Address, *big.Int) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (f *fakeReader) stubFeed(t *testing.T, ethUSD float64) {
	t.Helper()
	f.stub(t, testFeed, feedABI, "decimals", uint8(8))
	answer := new(big.Int).SetInt64(int64(ethUSD * 1e8))
	f.stub(t, testFeed, feedABI, "latestRoundData",
		big.NewInt(1), answer, big.NewInt(0), big.NewInt(0), big.NewInt(1))
}

func newTestEngine(reader chainReader) *Engine {
	cfg := Config{
		WrappedNative: testWNative,
		EthUsdFeed:    testFeed,
		V2Factories:   []V2Factory{{Name: "uniswap-v2", Addr: testFactory}},
		KnownV4Pools:  map[string]common.Hash{},
	}
	return NewEngine(reader, cfg, zap.NewNop())
}

func eth(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

func TestSqrtPriceToETH(t *testing.T) {
	one := new(big.Int).Lsh(big.NewInt(1), 96)

	// sqrtPrice == 2^96 means 1:1 in raw units.
	assert.InDelta(t, 1.0, sqrtPriceToETH(one, true, 18), 1e-12)
	assert.InDelta(t, 1.0, sqrtPriceToETH(one, false, 18), 1e-12)

	// 6-decimal token as currency0: raw 1:1 is 1e12 human.
	assert.InDelta(t, 1e-12, sqrtPriceToETH(one, true, 6), 1e-24)

	assert.Zero(t, sqrtPriceToETH(nil, true, 18))
	assert.Zero(t, sqrtPriceToETH(big.NewInt(0), true, 18))
}

func TestReservesToETH(t *testing.T) {
	// 1000 tokens against 10 native: 0.01 ETH each.
	assert.InDelta(t, 0.01, reservesToETH(eth(1000), eth(10), 18), 1e-12)

	// 6-decimal token: 1000 raw-human tokens against 10 native.
	tokenRes := new(big.Int).Mul(big.NewInt(1000), big.NewInt(1e6))
	assert.InDelta(t, 0.01, reservesToETH(tokenRes, eth(10), 6), 1e-12)

	assert.Zero(t, reservesToETH(big.NewInt(0), eth(10), 18))
}

func TestPrice_NativeShortcut(t *testing.T) {
	reader := newFakeReader()
	reader.stubFeed(t, 4000)
	engine := newTestEngine(reader)

	for _, token := range []common.Address{
		testWNative,
		{},
		common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE"),
	} {
		q, err := engine.Price(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, SourceNative, q.Source)
		assert.Equal(t, 4000.0, q.TokenPriceUSD)
		assert.Equal(t, 1.0, q.PriceInETH)
		assert.Nil(t, q.LiquidityUSD)
	}
}

func TestPrice_V2Discovery(t *testing.T) {
	reader := newFakeReader()
	reader.stubFeed(t, 4000)
	reader.stub(t, testFactory, v2FactoryABI, "getPair", testPair)
	reader.stub(t, testPair, v2PairABI, "token0", testToken)
	// 1,000,000 tokens against 100 ETH: 0.0001 ETH per token.
	reader.stub(t, testPair, v2PairABI, "getReserves", eth(1_000_000), eth(100), uint32(0))

	engine := newTestEngine(reader)
	q, err := engine.Price(context.Background(), testToken)
	require.NoError(t, err)

	assert.Equal(t, SourceV2, q.Source)
	assert.InDelta(t, 0.0001, q.PriceInETH, 1e-12)
	assert.InDelta(t, 0.4, q.TokenPriceUSD, 1e-9)
	assert.Equal(t, 4000.0, q.EthPriceUSD)
	require.NotNil(t, q.LiquidityUSD)
	assert.InDelta(t, 800_000.0, *q.LiquidityUSD, 1e-3)
}

func TestAcceptancePrice_RejectsThinPool(t *testing.T) {
	reader := newFakeReader()
	reader.stubFeed(t, 4000)
	reader.stub(t, testFactory, v2FactoryABI, "getPair", testPair)
	reader.stub(t, testPair, v2PairABI, "token0", testToken)
	// 0.1 ETH of depth: $800 TVL, under the floor.
	reader.stub(t, testPair, v2PairABI, "getReserves",
		eth(1000), big.NewInt(1e17), uint32(0))

	engine := newTestEngine(reader)

	_, err := engine.AcceptancePrice(context.Background(), testToken)
	assert.ErrorIs(t, err, ErrInsufficientLiquidity)

	// The display cascade still serves the quote, gated callers do not.
	q, err := engine.Price(context.Background(), testToken)
	require.NoError(t, err)
	assert.Equal(t, SourceV2, q.Source)
}

func TestAcceptancePrice_KnownV4SkipsGate(t *testing.T) {
	reader := newFakeReader()
	reader.stubFeed(t, 4000)
	poolID := common.HexToHash("0x01")
	// Raw 1:1 against native currency0.
	reader.stub(t, common.Address{}, v4StateViewABI, "getSlot0",
		new(big.Int).Lsh(big.NewInt(1), 96), big.NewInt(0), big.NewInt(0), big.NewInt(0))

	engine := newTestEngine(reader)
	engine.RegisterKnownPool(testToken.Hex(), poolID)

	q, err := engine.AcceptancePrice(context.Background(), testToken)
	require.NoError(t, err)
	assert.Equal(t, SourceKnownV4, q.Source)
	assert.Nil(t, q.LiquidityUSD)
	assert.InDelta(t, 1.0, q.PriceInETH, 1e-12)
}

func TestPrice_FallbackMarker(t *testing.T) {
	reader := newFakeReader()
	reader.stubFeed(t, 4000)
	engine := newTestEngine(reader)

	q, err := engine.Price(context.Background(), testToken)
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, q.Source)
	assert.Equal(t, fallbackPriceUSD, q.TokenPriceUSD)
	assert.Equal(t, 4000.0, q.EthPriceUSD)

	_, err = engine.AcceptancePrice(context.Background(), testToken)
	assert.ErrorIs(t, err, ErrInsufficientLiquidity)
}
