package chain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neynartodes/contesthub/pkg/contest"
)

func packOutputs(t *testing.T, escrow string, values ...any) []any {
	t.Helper()
	var parsed = unifiedEscrowABI
	switch escrow {
	case "token":
		parsed = tokenEscrowABI
	case "nft":
		parsed = nftEscrowABI
	}
	raw, err := parsed.Methods["getContest"].Outputs.Pack(values...)
	require.NoError(t, err)
	out, err := parsed.Unpack("getContest", raw)
	require.NoError(t, err)
	return out
}

func TestDecodeContest_Unified(t *testing.T) {
	host := common.HexToAddress("0xAbC0000000000000000000000000000000000001")
	token := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	req := common.HexToAddress("0x00000000000000000000000000000000000000b2")
	winner := common.HexToAddress("0x00000000000000000000000000000000000000c3")

	out := packOutputs(t, "unified",
		host, token, big.NewInt(5000),
		big.NewInt(100), big.NewInt(200),
		"0xcast|R1L0P1",
		req, big.NewInt(25),
		uint8(contest.StatusCompleted),
		[]common.Address{winner},
	)

	k := contest.Key{Family: contest.FamilyV2, ID: 7}
	c, err := decodeContest(k, out)
	require.NoError(t, err)

	assert.Equal(t, contest.FamilyV2, c.Family)
	assert.Equal(t, uint64(7), c.ID)
	assert.Equal(t, "0xabc0000000000000000000000000000000000001", c.Host)
	assert.Equal(t, contest.PrizeERC20, c.PrizeKind)
	assert.Equal(t, int64(100), c.StartTime)
	assert.Equal(t, int64(200), c.EndTime)
	assert.Equal(t, "0xcast", c.CastHash())
	assert.Equal(t, contest.Flags{Recast: true, Like: false, Reply: true}, c.Flags())
	assert.Equal(t, "0x00000000000000000000000000000000000000b2", c.TokenRequirement)
	assert.Equal(t, float64(25), c.VolumeRequirementUSD)
	assert.True(t, c.RequiresVolume())
	assert.Equal(t, contest.StatusCompleted, c.Status)
	assert.Equal(t, []string{"0x00000000000000000000000000000000000000c3"}, c.Winners)
}

func TestDecodeContest_TokenLegacy_EthPrize(t *testing.T) {
	host := common.HexToAddress("0x00000000000000000000000000000000000000d4")

	out := packOutputs(t, "token",
		host, common.Address{}, big.NewInt(1e18),
		big.NewInt(10), big.NewInt(20),
		"0xdeadbeef",
		uint8(contest.StatusActive),
		[]common.Address{},
	)

	k := contest.Key{Family: contest.FamilyToken, ID: 3}
	c, err := decodeContest(k, out)
	require.NoError(t, err)

	assert.Equal(t, contest.PrizeETH, c.PrizeKind)
	assert.Empty(t, c.PrizeToken)
	assert.False(t, c.RequiresVolume())
	// No flag suffix: recast + reply required, like optional.
	assert.Equal(t, contest.DefaultFlags, c.Flags())
	assert.False(t, c.Status.Terminal())
}

func TestDecodeContest_NFT(t *testing.T) {
	host := common.HexToAddress("0x00000000000000000000000000000000000000e5")
	collection := common.HexToAddress("0x00000000000000000000000000000000000000f6")

	out := packOutputs(t, "nft",
		host, collection, big.NewInt(42),
		big.NewInt(1), big.NewInt(2),
		"0xcast|R1L1P0|https://img.example/x.png",
		uint8(contest.StatusCancelled),
		[]common.Address{},
	)

	k := contest.Key{Family: contest.FamilyNFT, ID: 9}
	c, err := decodeContest(k, out)
	require.NoError(t, err)

	assert.Equal(t, contest.PrizeNFT, c.PrizeKind)
	require.NotNil(t, c.NFT)
	assert.Equal(t, "0x00000000000000000000000000000000000000f6", c.NFT.Collection)
	assert.Equal(t, "42", c.NFT.TokenID)
	assert.Equal(t, contest.Flags{Recast: true, Like: true, Reply: false}, c.Flags())
	assert.True(t, c.Status.Terminal())
}
