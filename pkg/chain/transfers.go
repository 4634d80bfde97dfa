package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/neynartodes/contesthub/pkg/contest"
)

// transferTopic is keccak256("Transfer(address,address,uint256)").
var transferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// Transfer is one decoded ERC-20 Transfer event.
type Transfer struct {
	Token       common.Address
	From        common.Address
	To          common.Address
	Amount      *big.Int
	BlockNumber uint64
	TxHash      common.Hash
	// Index is the log index within the block. (TxHash, Index) uniquely
	// identifies the event; a transaction can emit several transfers with
	// identical from/to pairs.
	Index uint
}

// QueryTransfers returns every Transfer on token where addr is sender or
// receiver within [fromBlock, toBlock]. Two log queries, deduplicated by
// (tx, log index) for self-transfers.
func (c *Client) QueryTransfers(ctx context.Context, token, addr common.Address, fromBlock, toBlock uint64) ([]Transfer, error) {
	addrTopic := common.BytesToHash(addr.Bytes())

	asSender := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{token},
		Topics:    [][]common.Hash{{transferTopic}, {addrTopic}, nil},
	}
	asReceiver := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{token},
		Topics:    [][]common.Hash{{transferTopic}, nil, {addrTopic}},
	}

	sent, err := c.FilterLogs(ctx, asSender)
	if err != nil {
		return nil, err
	}
	received, err := c.FilterLogs(ctx, asReceiver)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(sent)+len(received))
	out := make([]Transfer, 0, len(sent)+len(received))
	for _, lg := range append(sent, received...) {
		if len(lg.Topics) != 3 || len(lg.Data) < 32 {
			continue
		}
		dedupe := fmt.Sprintf("%s:%d", lg.TxHash, lg.Index)
		if _, ok := seen[dedupe]; ok {
			continue
		}
		seen[dedupe] = struct{}{}
		out = append(out, Transfer{
			Token:       lg.Address,
			From:        common.BytesToAddress(lg.Topics[1].Bytes()),
			To:          common.BytesToAddress(lg.Topics[2].Bytes()),
			Amount:      new(big.Int).SetBytes(lg.Data[:32]),
			BlockNumber: lg.BlockNumber,
			TxHash:      lg.TxHash,
			Index:       lg.Index,
		})
	}
	return out, nil
}

// BalanceOf reads an ERC-20 balance, optionally pinned to a block.
func (c *Client) BalanceOf(ctx context.Context, token, owner common.Address, block *big.Int) (*big.Int, error) {
	data, err := erc20ABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("pack balanceOf: %w", err)
	}
	raw, err := c.Call(ctx, token, data, block)
	if err != nil {
		return nil, err
	}
	out, err := erc20ABI.Unpack("balanceOf", raw)
	if err != nil {
		return nil, fmt.Errorf("decode balanceOf: %w", err)
	}
	return out[0].(*big.Int), nil
}

// TokenDecimals reads an ERC-20 decimals value. Tokens without the optional
// decimals method report 18.
func (c *Client) TokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	data, err := erc20ABI.Pack("decimals")
	if err != nil {
		return 18, fmt.Errorf("pack decimals: %w", err)
	}
	raw, err := c.Call(ctx, token, data, nil)
	if err != nil || len(raw) == 0 {
		return 18, nil
	}
	out, err := erc20ABI.Unpack("decimals", raw)
	if err != nil {
		return 18, nil
	}
	return out[0].(uint8), nil
}

// EscrowAddress exposes the configured escrow for a family; the signer uses
// it to scope nonce reads.
func (c *Client) EscrowAddress(fam contest.Family) (common.Address, bool) {
	addr, ok := c.escrows[fam]
	return addr, ok
}
