package entry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/neynartodes/contesthub/pkg/contest"
	"github.com/neynartodes/contesthub/pkg/kv"
)

func newTestLedger(t *testing.T, deny Denylist) (*Ledger, *kv.Memory) {
	t.Helper()
	store := kv.NewMemory(zap.NewNop())
	return NewLedger(store, deny, zap.NewNop()), store
}

func TestEnter_DuplicateIsIdempotent(t *testing.T) {
	ledger, _ := newTestLedger(t, nil)
	key := contest.Key{Family: contest.FamilyMilestn, ID: 3}
	ctx := context.Background()

	first, err := ledger.Enter(ctx, 7, key, []string{"0xAAA1"})
	require.NoError(t, err)
	assert.True(t, first.Success)
	assert.False(t, first.AlreadyEntered)
	assert.Equal(t, uint64(7), first.Entry.Fid)
	assert.Equal(t, "m-3", first.Entry.ContestKey)

	second, err := ledger.Enter(ctx, 7, key, []string{"0xBBB2"})
	require.NoError(t, err)
	// Both calls report success; the repeat is flagged, not failed.
	assert.True(t, second.Success)
	assert.True(t, second.AlreadyEntered)
	// The first record survives; the second call's addresses do not win.
	assert.Equal(t, first.Entry.Addresses, second.Entry.Addresses)
	assert.Equal(t, first.Entry.EnteredAt, second.Entry.EnteredAt)
}

func TestEnter_AddsToEntrantSet(t *testing.T) {
	ledger, store := newTestLedger(t, nil)
	key := contest.Key{Family: contest.FamilyV2, ID: 9}
	ctx := context.Background()

	_, err := ledger.Enter(ctx, 7, key, nil)
	require.NoError(t, err)
	_, err = ledger.Enter(ctx, 8, key, nil)
	require.NoError(t, err)

	fids, err := store.ContestEntrants(ctx, key.String())
	require.NoError(t, err)
	assert.Equal(t, []uint64{7, 8}, fids)
}

func TestEnter_DeniedFid(t *testing.T) {
	ledger, _ := newTestLedger(t, Denylist{666: {}})

	_, err := ledger.Enter(context.Background(), 666,
		contest.Key{Family: contest.FamilyV2, ID: 1}, nil)
	assert.ErrorIs(t, err, ErrDenied)
}

func TestCheck_LegacyKeyFallback(t *testing.T) {
	ledger, store := newTestLedger(t, nil)
	ctx := context.Background()
	key := contest.Key{Family: contest.FamilyV2, ID: 17}

	// A record written before family prefixes existed.
	_, created, err := store.PutEntryNX(ctx, kv.EntryKey("17", 7),
		&contest.Entry{Fid: 7, ContestKey: "17", EnteredAt: 123})
	require.NoError(t, err)
	require.True(t, created)

	results, err := ledger.Check(ctx, 7, []contest.Key{key})
	require.NoError(t, err)
	assert.True(t, results["v2-17"].Entered)
	assert.Equal(t, int64(123), results["v2-17"].Timestamp)
}

func TestCheck_CanonicalWinsOverLegacy(t *testing.T) {
	ledger, store := newTestLedger(t, nil)
	ctx := context.Background()
	key := contest.Key{Family: contest.FamilyV2, ID: 17}

	_, _, err := store.PutEntryNX(ctx, kv.EntryKey("17", 7),
		&contest.Entry{Fid: 7, ContestKey: "17", EnteredAt: 100})
	require.NoError(t, err)
	_, _, err = store.PutEntryNX(ctx, kv.EntryKey("v2-17", 7),
		&contest.Entry{Fid: 7, ContestKey: "v2-17", EnteredAt: 200})
	require.NoError(t, err)

	results, err := ledger.Check(ctx, 7, []contest.Key{key})
	require.NoError(t, err)
	assert.Equal(t, int64(200), results["v2-17"].Timestamp)
}

func TestCheck_NotEntered(t *testing.T) {
	ledger, _ := newTestLedger(t, nil)

	results, err := ledger.Check(context.Background(), 7,
		[]contest.Key{{Family: contest.FamilyToken, ID: 1}})
	require.NoError(t, err)
	assert.False(t, results["token-1"].Entered)
	assert.Nil(t, results["token-1"].HasReplied)
}

func TestClear_ScopedRemovesBothShapes(t *testing.T) {
	ledger, store := newTestLedger(t, nil)
	ctx := context.Background()
	key := contest.Key{Family: contest.FamilyV2, ID: 17}

	_, _, err := store.PutEntryNX(ctx, kv.EntryKey("17", 7), &contest.Entry{Fid: 7})
	require.NoError(t, err)
	_, _, err = store.PutEntryNX(ctx, kv.EntryKey("v2-17", 7), &contest.Entry{Fid: 7})
	require.NoError(t, err)

	deleted, err := ledger.Clear(ctx, 7, &key)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	results, err := ledger.Check(ctx, 7, []contest.Key{key})
	require.NoError(t, err)
	assert.False(t, results["v2-17"].Entered)
}

func TestClear_UnscopedEnumerates(t *testing.T) {
	ledger, _ := newTestLedger(t, nil)
	ctx := context.Background()

	for _, key := range []contest.Key{
		{Family: contest.FamilyV2, ID: 1},
		{Family: contest.FamilyMilestn, ID: 2},
	} {
		_, err := ledger.Enter(ctx, 7, key, nil)
		require.NoError(t, err)
	}
	_, err := ledger.Enter(ctx, 8, contest.Key{Family: contest.FamilyV2, ID: 1}, nil)
	require.NoError(t, err)

	deleted, err := ledger.Clear(ctx, 7, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	// The other fid's record is untouched.
	results, err := ledger.Check(ctx, 8, []contest.Key{{Family: contest.FamilyV2, ID: 1}})
	require.NoError(t, err)
	assert.True(t, results["v2-1"].Entered)
}
