package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/neynartodes/contesthub/pkg/contest"
)

func (c *Client) escrowFor(fam contest.Family) (common.Address, abi.ABI, error) {
	addr, ok := c.escrows[fam]
	if !ok {
		return common.Address{}, abi.ABI{}, fmt.Errorf("no escrow configured for family %q", fam)
	}
	switch fam {
	case contest.FamilyNFT:
		return addr, nftEscrowABI, nil
	case contest.FamilyToken:
		return addr, tokenEscrowABI, nil
	default:
		return addr, unifiedEscrowABI, nil
	}
}

// GetContest reads and decodes one contest. block pins the read; nil reads
// latest state.
func (c *Client) GetContest(ctx context.Context, k contest.Key, block *big.Int) (*contest.Contest, error) {
	addr, escrowABI, err := c.escrowFor(k.Family)
	if err != nil {
		return nil, err
	}
	data, err := escrowABI.Pack("getContest", new(big.Int).SetUint64(k.ID))
	if err != nil {
		return nil, fmt.Errorf("pack getContest: %w", err)
	}
	raw, err := c.Call(ctx, addr, data, block)
	if err != nil {
		return nil, err
	}
	out, err := escrowABI.Unpack("getContest", raw)
	if err != nil {
		return nil, fmt.Errorf("decode getContest %s: %w", k, err)
	}
	return decodeContest(k, out)
}

// decodeContest maps the unpacked escrow tuple to the common contest shape.
// This is the only place family-specific decoding lives.
func decodeContest(k contest.Key, out []any) (*contest.Contest, error) {
	if k.Family == contest.FamilyNFT {
		if len(out) != 8 {
			return nil, fmt.Errorf("nft escrow returned %d fields", len(out))
		}
		return &contest.Contest{
			Family:    k.Family,
			ID:        k.ID,
			Host:      strings.ToLower(out[0].(common.Address).Hex()),
			PrizeKind: contest.PrizeNFT,
			NFT: &contest.NFTPrize{
				Collection: strings.ToLower(out[1].(common.Address).Hex()),
				TokenID:    out[2].(*big.Int).String(),
			},
			StartTime: out[3].(*big.Int).Int64(),
			EndTime:   out[4].(*big.Int).Int64(),
			CastID:    out[5].(string),
			Status:    contest.Status(out[6].(uint8)),
			Winners:   lowerAddrs(out[7].([]common.Address)),
		}, nil
	}

	// Token and unified escrows share a prefix; the unified tuple carries
	// two extra requirement fields before status.
	var (
		tokenReq  common.Address
		volumeReq *big.Int
		statusIdx = 6
	)
	switch len(out) {
	case 8: // legacy token escrow
	case 10: // unified escrow
		tokenReq = out[6].(common.Address)
		volumeReq = out[7].(*big.Int)
		statusIdx = 8
	default:
		return nil, fmt.Errorf("escrow returned %d fields", len(out))
	}

	prizeToken := out[1].(common.Address)
	kind := contest.PrizeERC20
	tokenField := strings.ToLower(prizeToken.Hex())
	if prizeToken == (common.Address{}) {
		kind = contest.PrizeETH
		tokenField = ""
	}

	cst := &contest.Contest{
		Family:      k.Family,
		ID:          k.ID,
		Host:        strings.ToLower(out[0].(common.Address).Hex()),
		PrizeKind:   kind,
		PrizeToken:  tokenField,
		PrizeAmount: out[2].(*big.Int),
		StartTime:   out[3].(*big.Int).Int64(),
		EndTime:     out[4].(*big.Int).Int64(),
		CastID:      out[5].(string),
		Status:      contest.Status(out[statusIdx].(uint8)),
		Winners:     lowerAddrs(out[statusIdx+1].([]common.Address)),
	}
	if tokenReq != (common.Address{}) {
		cst.TokenRequirement = strings.ToLower(tokenReq.Hex())
	}
	if volumeReq != nil {
		// The unified escrow stores the requirement in whole USD.
		cst.VolumeRequirementUSD, _ = new(big.Float).SetInt(volumeReq).Float64()
	}
	return cst, nil
}

func lowerAddrs(in []common.Address) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, a := range in {
		out = append(out, strings.ToLower(a.Hex()))
	}
	return out
}

// NextContestID returns the next unassigned contest id for a family; valid
// ids are 1..next-1.
func (c *Client) NextContestID(ctx context.Context, fam contest.Family) (uint64, error) {
	addr, escrowABI, err := c.escrowFor(fam)
	if err != nil {
		return 0, err
	}
	data, err := escrowABI.Pack("nextContestId")
	if err != nil {
		return 0, fmt.Errorf("pack nextContestId: %w", err)
	}
	raw, err := c.Call(ctx, addr, data, nil)
	if err != nil {
		return 0, err
	}
	out, err := escrowABI.Unpack("nextContestId", raw)
	if err != nil {
		return 0, fmt.Errorf("decode nextContestId %s: %w", fam, err)
	}
	return out[0].(*big.Int).Uint64(), nil
}

// Nonce reads the escrow's per-entrant entry counter. This read must
// succeed for authorization; there is no degraded path.
func (c *Client) Nonce(ctx context.Context, fam contest.Family, entrant common.Address) (*big.Int, error) {
	addr, escrowABI, err := c.escrowFor(fam)
	if err != nil {
		return nil, err
	}
	data, err := escrowABI.Pack("nonces", entrant)
	if err != nil {
		return nil, fmt.Errorf("pack nonces: %w", err)
	}
	raw, err := c.Call(ctx, addr, data, nil)
	if err != nil {
		return nil, err
	}
	out, err := escrowABI.Unpack("nonces", raw)
	if err != nil {
		return nil, fmt.Errorf("decode nonces: %w", err)
	}
	return out[0].(*big.Int), nil
}

// HostVotes reads the voting contract's running tallies for a host. Missing
// voting contract degrades to zero votes.
func (c *Client) HostVotes(ctx context.Context, host common.Address) (up, down uint64, err error) {
	if c.voting == (common.Address{}) {
		return 0, 0, nil
	}
	data, err := votingABI.Pack("hostVotes", host)
	if err != nil {
		return 0, 0, fmt.Errorf("pack hostVotes: %w", err)
	}
	raw, err := c.Call(ctx, c.voting, data, nil)
	if err != nil {
		return 0, 0, err
	}
	out, err := votingABI.Unpack("hostVotes", raw)
	if err != nil {
		return 0, 0, fmt.Errorf("decode hostVotes: %w", err)
	}
	return out[0].(*big.Int).Uint64(), out[1].(*big.Int).Uint64(), nil
}
