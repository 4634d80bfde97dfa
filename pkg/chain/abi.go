package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Contract ABIs, one per escrow generation. Only the read surface the
// backend consumes is declared.

const tokenEscrowABIJSON = `[
	{"type":"function","name":"getContest","stateMutability":"view",
		"inputs":[{"name":"contestId","type":"uint256"}],
		"outputs":[
			{"name":"host","type":"address"},
			{"name":"prizeToken","type":"address"},
			{"name":"prizeAmount","type":"uint256"},
			{"name":"startTime","type":"uint256"},
			{"name":"endTime","type":"uint256"},
			{"name":"castId","type":"string"},
			{"name":"status","type":"uint8"},
			{"name":"winners","type":"address[]"}]},
	{"type":"function","name":"nextContestId","stateMutability":"view",
		"inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"nonces","stateMutability":"view",
		"inputs":[{"name":"entrant","type":"address"}],
		"outputs":[{"name":"","type":"uint256"}]}
]`

const nftEscrowABIJSON = `[
	{"type":"function","name":"getContest","stateMutability":"view",
		"inputs":[{"name":"contestId","type":"uint256"}],
		"outputs":[
			{"name":"host","type":"address"},
			{"name":"collection","type":"address"},
			{"name":"tokenId","type":"uint256"},
			{"name":"startTime","type":"uint256"},
			{"name":"endTime","type":"uint256"},
			{"name":"castId","type":"string"},
			{"name":"status","type":"uint8"},
			{"name":"winners","type":"address[]"}]},
	{"type":"function","name":"nextContestId","stateMutability":"view",
		"inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"nonces","stateMutability":"view",
		"inputs":[{"name":"entrant","type":"address"}],
		"outputs":[{"name":"","type":"uint256"}]}
]`

const unifiedEscrowABIJSON = `[
	{"type":"function","name":"getContest","stateMutability":"view",
		"inputs":[{"name":"contestId","type":"uint256"}],
		"outputs":[
			{"name":"host","type":"address"},
			{"name":"prizeToken","type":"address"},
			{"name":"prizeAmount","type":"uint256"},
			{"name":"startTime","type":"uint256"},
			{"name":"endTime","type":"uint256"},
			{"name":"castId","type":"string"},
			{"name":"tokenRequirement","type":"address"},
			{"name":"volumeRequirement","type":"uint256"},
			{"name":"status","type":"uint8"},
			{"name":"winners","type":"address[]"}]},
	{"type":"function","name":"nextContestId","stateMutability":"view",
		"inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"nonces","stateMutability":"view",
		"inputs":[{"name":"entrant","type":"address"}],
		"outputs":[{"name":"","type":"uint256"}]}
]`

const erc20ABIJSON = `[
	{"type":"function","name":"balanceOf","stateMutability":"view",
		"inputs":[{"name":"owner","type":"address"}],
		"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"decimals","stateMutability":"view",
		"inputs":[],"outputs":[{"name":"","type":"uint8"}]},
	{"type":"event","name":"Transfer","anonymous":false,
		"inputs":[
			{"name":"from","type":"address","indexed":true},
			{"name":"to","type":"address","indexed":true},
			{"name":"value","type":"uint256","indexed":false}]}
]`

const votingABIJSON = `[
	{"type":"function","name":"hostVotes","stateMutability":"view",
		"inputs":[{"name":"host","type":"address"}],
		"outputs":[
			{"name":"upvotes","type":"uint256"},
			{"name":"downvotes","type":"uint256"}]}
]`

var (
	tokenEscrowABI   = mustABI(tokenEscrowABIJSON)
	nftEscrowABI     = mustABI(nftEscrowABIJSON)
	unifiedEscrowABI = mustABI(unifiedEscrowABIJSON)
	erc20ABI         = mustABI(erc20ABIJSON)
	votingABI        = mustABI(votingABIJSON)
)

func mustABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}
