package price

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

const feedABIJSON = `[
	{"type":"function","name":"latestRoundData","stateMutability":"view",
		"inputs":[],
		"outputs":[
			{"name":"roundId","type":"uint80"},
			{"name":"answer","type":"int256"},
			{"name":"startedAt","type":"uint256"},
			{"name":"updatedAt","type":"uint256"},
			{"name":"answeredInRound","type":"uint80"}]},
	{"type":"function","name":"decimals","stateMutability":"view",
		"inputs":[],"outputs":[{"name":"","type":"uint8"}]}
]`

const v2FactoryABIJSON = `[
	{"type":"function","name":"getPair","stateMutability":"view",
		"inputs":[{"name":"tokenA","type":"address"},{"name":"tokenB","type":"address"}],
		"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"getPool","stateMutability":"view",
		"inputs":[{"name":"tokenA","type":"address"},{"name":"tokenB","type":"address"},{"name":"stable","type":"bool"}],
		"outputs":[{"name":"","type":"address"}]}
]`

const v2PairABIJSON = `[
	{"type":"function","name":"getReserves","stateMutability":"view",
		"inputs":[],
		"outputs":[
			{"name":"reserve0","type":"uint112"},
			{"name":"reserve1","type":"uint112"},
			{"name":"blockTimestampLast","type":"uint32"}]},
	{"type":"function","name":"token0","stateMutability":"view",
		"inputs":[],"outputs":[{"name":"","type":"address"}]}
]`

const v3FactoryABIJSON = `[
	{"type":"function","name":"getPool","stateMutability":"view",
		"inputs":[
			{"name":"tokenA","type":"address"},
			{"name":"tokenB","type":"address"},
			{"name":"fee","type":"uint24"}],
		"outputs":[{"name":"","type":"address"}]}
]`

const v3PoolABIJSON = `[
	{"type":"function","name":"slot0","stateMutability":"view",
		"inputs":[],
		"outputs":[
			{"name":"sqrtPriceX96","type":"uint160"},
			{"name":"tick","type":"int24"},
			{"name":"observationIndex","type":"uint16"},
			{"name":"observationCardinality","type":"uint16"},
			{"name":"observationCardinalityNext","type":"uint16"},
			{"name":"feeProtocol","type":"uint8"},
			{"name":"unlocked","type":"bool"}]},
	{"type":"function","name":"token0","stateMutability":"view",
		"inputs":[],"outputs":[{"name":"","type":"address"}]}
]`

const v4StateViewABIJSON = `[
	{"type":"function","name":"getSlot0","stateMutability":"view",
		"inputs":[{"name":"poolId","type":"bytes32"}],
		"outputs":[
			{"name":"sqrtPriceX96","type":"uint160"},
			{"name":"tick","type":"int24"},
			{"name":"protocolFee","type":"uint24"},
			{"name":"lpFee","type":"uint24"}]},
	{"type":"function","name":"getLiquidity","stateMutability":"view",
		"inputs":[{"name":"poolId","type":"bytes32"}],
		"outputs":[{"name":"liquidity","type":"uint128"}]}
]`

var (
	feedABI        = mustABI(feedABIJSON)
	v2FactoryABI   = mustABI(v2FactoryABIJSON)
	v2PairABI      = mustABI(v2PairABIJSON)
	v3FactoryABI   = mustABI(v3FactoryABIJSON)
	v3PoolABI      = mustABI(v3PoolABIJSON)
	v4StateViewABI = mustABI(v4StateViewABIJSON)

	// v4InitializeTopic is the PoolManager's pool-creation event:
	// Initialize(bytes32 indexed, address indexed, address indexed, uint24, int24, address, uint160, int24)
	v4InitializeTopic = crypto.Keccak256Hash([]byte(
		"Initialize(bytes32,address,address,uint24,int24,address,uint160,int24)"))
)

func mustABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}
