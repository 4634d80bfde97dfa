package signer

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/neynartodes/contesthub/pkg/contest"
)

type fakeNonces struct {
	nonce *big.Int
	calls int
}

func (f *fakeNonces) Nonce(context.Context, contest.Family, common.Address) (*big.Int, error) {
	f.calls++
	return f.nonce, nil
}

func TestAuthorize_SignatureRecovers(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	entrant := common.HexToAddress("0x000000000000000000000000000000000000aaa1")
	host := common.HexToAddress("0x000000000000000000000000000000000000bbb2")
	nonces := &fakeNonces{nonce: big.NewInt(5)}

	s := NewWithKey(key, nonces, zap.NewNop())
	auth, err := s.Authorize(context.Background(), contest.FamilyV2, entrant, host)
	require.NoError(t, err)

	assert.Equal(t, uint64(5), auth.Nonce)
	assert.Contains(t, []uint8{27, 28}, auth.V)

	// Rebuild the digest the contract checks and recover the signer.
	digest := personalDigest(crypto.Keccak256Hash(packEntry(entrant, host, big.NewInt(5))))

	r, err := hexutil.Decode(auth.R)
	require.NoError(t, err)
	sVal, err := hexutil.Decode(auth.S)
	require.NoError(t, err)
	sig := make([]byte, 65)
	copy(sig[:32], r)
	copy(sig[32:64], sVal)
	sig[64] = auth.V - 27

	pub, err := crypto.SigToPub(digest.Bytes(), sig)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), crypto.PubkeyToAddress(*pub))
}

func TestAuthorize_ConcurrentCallsShareNonce(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	entrant := common.HexToAddress("0x000000000000000000000000000000000000aaa1")
	host := common.HexToAddress("0x000000000000000000000000000000000000bbb2")
	nonces := &fakeNonces{nonce: big.NewInt(5)}
	s := NewWithKey(key, nonces, zap.NewNop())

	first, err := s.Authorize(context.Background(), contest.FamilyV2, entrant, host)
	require.NoError(t, err)
	second, err := s.Authorize(context.Background(), contest.FamilyV2, entrant, host)
	require.NoError(t, err)

	// Both observe nonce 5 and carry identical signatures; the chain
	// settles which one lands.
	assert.Equal(t, first.Nonce, second.Nonce)
	assert.Equal(t, first.R, second.R)
	assert.Equal(t, first.S, second.S)
	assert.Equal(t, 2, nonces.calls)
}

func TestPackEntry(t *testing.T) {
	entrant := common.HexToAddress("0x000000000000000000000000000000000000aaa1")
	host := common.HexToAddress("0x000000000000000000000000000000000000bbb2")

	packed := packEntry(entrant, host, big.NewInt(1))
	require.Len(t, packed, 72)
	assert.Equal(t, entrant.Bytes(), packed[:20])
	assert.Equal(t, host.Bytes(), packed[20:40])
	assert.Equal(t, byte(1), packed[71])
}
