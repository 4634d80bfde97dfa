package volume

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/neynartodes/contesthub/pkg/chain"
	"github.com/neynartodes/contesthub/pkg/price"
)

var (
	volToken = common.HexToAddress("0x000000000000000000000000000000000000c0de")
	addrA    = common.HexToAddress("0x000000000000000000000000000000000000aaa1")
	addrB    = common.HexToAddress("0x000000000000000000000000000000000000bbb2")
	other    = common.HexToAddress("0x000000000000000000000000000000000000dddd")
)

type fakeChain struct {
	transfers  map[common.Address][]chain.Transfer
	blockTimes map[uint64]int64
	blocksAt   map[int64]uint64
	priceCalls int
}

func (f *fakeChain) QueryTransfers(_ context.Context, _ common.Address, addr common.Address, _, _ uint64) ([]chain.Transfer, error) {
	return f.transfers[addr], nil
}

func (f *fakeChain) ApproxBlockAt(_ context.Context, ts int64) (uint64, error) {
	return f.blocksAt[ts], nil
}

func (f *fakeChain) BlockTimestamp(_ context.Context, number uint64) (int64, error) {
	return f.blockTimes[number], nil
}

func (f *fakeChain) TokenDecimals(context.Context, common.Address) (uint8, error) {
	return 18, nil
}

func (f *fakeChain) PriceAt(context.Context, common.Address, uint64) (*price.Quote, error) {
	f.priceCalls++
	return &price.Quote{TokenPriceUSD: 2.0}, nil
}

func tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

func transfer(from, to common.Address, amount int64, block uint64, tx byte) chain.Transfer {
	return chain.Transfer{
		Token:       volToken,
		From:        from,
		To:          to,
		Amount:      tokens(amount),
		BlockNumber: block,
		TxHash:      common.Hash{tx},
	}
}

func TestDuring_SumsAndPrices(t *testing.T) {
	fake := &fakeChain{
		blocksAt:   map[int64]uint64{1000: 10, 2000: 20},
		blockTimes: map[uint64]int64{12: 1200, 15: 1500},
		transfers: map[common.Address][]chain.Transfer{
			addrA: {
				transfer(addrA, other, 100, 12, 1),
				transfer(other, addrA, 50, 15, 2),
			},
		},
	}
	calc := NewCalculator(fake, fake, zap.NewNop())
	defer calc.Close()

	result, err := calc.During(context.Background(), volToken, []string{addrA.Hex()}, 1000, 2000)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Transfers)
	assert.InDelta(t, 150.0, result.TokenVolume, 1e-9)
	assert.InDelta(t, 300.0, result.USDVolume, 1e-9)
	// Distinct blocks each priced once.
	assert.Equal(t, 2, fake.priceCalls)
}

func TestDuring_FiltersByBlockTimestamp(t *testing.T) {
	fake := &fakeChain{
		blocksAt:   map[int64]uint64{1000: 10, 2000: 20},
		blockTimes: map[uint64]int64{12: 1200, 20: 2500},
		transfers: map[common.Address][]chain.Transfer{
			addrA: {
				transfer(addrA, other, 100, 12, 1),
				// Approximated range overshoots; the block timestamp
				// sits past the window and must be excluded.
				transfer(addrA, other, 999, 20, 2),
			},
		},
	}
	calc := NewCalculator(fake, fake, zap.NewNop())
	defer calc.Close()

	result, err := calc.During(context.Background(), volToken, []string{addrA.Hex()}, 1000, 2000)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Transfers)
	assert.InDelta(t, 100.0, result.TokenVolume, 1e-9)
}

func TestDuring_DedupesSelfTransfers(t *testing.T) {
	// A transfer between two of the entrant's own addresses appears in
	// both address scans.
	tr := transfer(addrA, addrB, 100, 12, 1)
	fake := &fakeChain{
		blocksAt:   map[int64]uint64{1000: 10, 2000: 20},
		blockTimes: map[uint64]int64{12: 1200},
		transfers: map[common.Address][]chain.Transfer{
			addrA: {tr},
			addrB: {tr},
		},
	}
	calc := NewCalculator(fake, fake, zap.NewNop())
	defer calc.Close()

	result, err := calc.During(context.Background(), volToken,
		[]string{addrA.Hex(), addrB.Hex()}, 1000, 2000)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Transfers)
	assert.InDelta(t, 100.0, result.TokenVolume, 1e-9)
}

func TestDuring_CountsDistinctTransfersInOneTx(t *testing.T) {
	// A batch or multi-hop trade emits several Transfer events in a single
	// transaction, possibly with identical from/to pairs. Each log is a
	// distinct event and must be summed.
	first := transfer(addrA, other, 100, 12, 1)
	second := transfer(addrA, other, 200, 12, 1)
	second.Index = 1
	fake := &fakeChain{
		blocksAt:   map[int64]uint64{1000: 10, 2000: 20},
		blockTimes: map[uint64]int64{12: 1200},
		transfers: map[common.Address][]chain.Transfer{
			addrA: {first, second},
		},
	}
	calc := NewCalculator(fake, fake, zap.NewNop())
	defer calc.Close()

	result, err := calc.During(context.Background(), volToken, []string{addrA.Hex()}, 1000, 2000)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Transfers)
	assert.InDelta(t, 300.0, result.TokenVolume, 1e-9)
	assert.InDelta(t, 600.0, result.USDVolume, 1e-9)
}

func TestDuring_NoAddresses(t *testing.T) {
	calc := NewCalculator(&fakeChain{}, &fakeChain{}, zap.NewNop())
	defer calc.Close()

	result, err := calc.During(context.Background(), volToken, nil, 1000, 2000)
	require.NoError(t, err)
	assert.Zero(t, result.Transfers)
	assert.Zero(t, result.USDVolume)
}
