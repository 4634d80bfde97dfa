package signer

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/neynartodes/contesthub/pkg/contest"
	"github.com/neynartodes/contesthub/pkg/utils"
)

// ErrNoKey is returned when ENTRY_SIGNER_KEY is not configured.
var ErrNoKey = errors.New("signer: ENTRY_SIGNER_KEY not configured")

type nonceReader interface {
	Nonce(ctx context.Context, fam contest.Family, entrant common.Address) (*big.Int, error)
}

// Authorization is the signature tuple the escrow's enter call expects,
// alongside the nonce it was issued for.
type Authorization struct {
	V     uint8  `json:"v"`
	R     string `json:"r"`
	S     string `json:"s"`
	Nonce uint64 `json:"nonce"`
}

// Signer issues entry authorizations. The escrow verifies an EIP-191
// personal-message signature over keccak256(packed(entrant, host, nonce)),
// so this key is the sole gate against entries minted off-server.
type Signer struct {
	key    *ecdsa.PrivateKey
	nonces nonceReader
	logger *zap.Logger
}

// New loads the signing key from ENTRY_SIGNER_KEY.
func New(nonces nonceReader, logger *zap.Logger) (*Signer, error) {
	raw := strings.TrimPrefix(utils.Env("ENTRY_SIGNER_KEY", ""), "0x")
	if raw == "" {
		return nil, ErrNoKey
	}
	key, err := crypto.HexToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("parse signer key: %w", err)
	}
	return NewWithKey(key, nonces, logger), nil
}

func NewWithKey(key *ecdsa.PrivateKey, nonces nonceReader, logger *zap.Logger) *Signer {
	return &Signer{key: key, nonces: nonces, logger: logger}
}

// Address returns the signer's account, the address the escrow must be
// deployed with as its trusted authorizer.
func (s *Signer) Address() common.Address {
	return crypto.PubkeyToAddress(s.key.PublicKey)
}

// Authorize reads the entrant's current escrow nonce and signs the entry
// digest. Two concurrent calls may observe the same nonce and both get
// valid signatures; the contract consumes one and reverts the other, which
// is accepted behavior.
func (s *Signer) Authorize(ctx context.Context, fam contest.Family, entrant, host common.Address) (*Authorization, error) {
	nonce, err := s.nonces.Nonce(ctx, fam, entrant)
	if err != nil {
		return nil, fmt.Errorf("read nonce for %s: %w", entrant.Hex(), err)
	}

	sig, err := s.sign(entrant, host, nonce)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Issued entry authorization",
		zap.String("entrant", entrant.Hex()),
		zap.String("host", host.Hex()),
		zap.Uint64("nonce", nonce.Uint64()))

	return &Authorization{
		V:     sig[64] + 27,
		R:     hexutil.Encode(sig[:32]),
		S:     hexutil.Encode(sig[32:64]),
		Nonce: nonce.Uint64(),
	}, nil
}

// sign produces the 65-byte signature over the personal-message digest of
// keccak256(abi.encodePacked(entrant, host, nonce)).
func (s *Signer) sign(entrant, host common.Address, nonce *big.Int) ([]byte, error) {
	inner := crypto.Keccak256Hash(packEntry(entrant, host, nonce))
	digest := personalDigest(inner)
	sig, err := crypto.Sign(digest.Bytes(), s.key)
	if err != nil {
		return nil, fmt.Errorf("sign entry digest: %w", err)
	}
	return sig, nil
}

// packEntry mirrors solidity's abi.encodePacked(address, address, uint256).
func packEntry(entrant, host common.Address, nonce *big.Int) []byte {
	out := make([]byte, 0, 72)
	out = append(out, entrant.Bytes()...)
	out = append(out, host.Bytes()...)
	out = append(out, common.LeftPadBytes(nonce.Bytes(), 32)...)
	return out
}

// personalDigest applies the EIP-191 personal-message prefix to a 32-byte
// hash.
func personalDigest(inner common.Hash) common.Hash {
	return crypto.Keccak256Hash(
		[]byte("\x19Ethereum Signed Message:\n32"),
		inner.Bytes(),
	)
}
