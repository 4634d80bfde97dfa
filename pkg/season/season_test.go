package season

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/neynartodes/contesthub/pkg/contest"
	"github.com/neynartodes/contesthub/pkg/kv"
	"github.com/neynartodes/contesthub/pkg/social"
	"github.com/neynartodes/contesthub/pkg/volume"
)

const (
	hostOne = "0x000000000000000000000000000000000000aaa1"
	hostTwo = "0x000000000000000000000000000000000000bbb2"
)

type fakeCasts struct {
	casts map[string]*social.Cast
	calls int
}

func (f *fakeCasts) GetCast(_ context.Context, hash string) (*social.Cast, error) {
	f.calls++
	cast, ok := f.casts[hash]
	if !ok {
		return nil, fmt.Errorf("cast %s not found", hash)
	}
	return cast, nil
}

type fakeVolumes struct {
	result *volume.Result
}

func (f *fakeVolumes) During(context.Context, common.Address, []string, int64, int64) (*volume.Result, error) {
	if f.result == nil {
		return &volume.Result{}, nil
	}
	return f.result, nil
}

type fakeChain struct {
	votes   map[string][2]uint64
	nextIDs map[contest.Family]uint64
}

func (f *fakeChain) GetContest(_ context.Context, k contest.Key, _ *big.Int) (*contest.Contest, error) {
	return nil, fmt.Errorf("contest %s not on chain", k)
}

func (f *fakeChain) HostVotes(_ context.Context, host common.Address) (uint64, uint64, error) {
	v := f.votes[host.Hex()]
	return v[0], v[1], nil
}

func (f *fakeChain) NextContestID(_ context.Context, fam contest.Family) (uint64, error) {
	next, ok := f.nextIDs[fam]
	if !ok {
		return 0, fmt.Errorf("no escrow for family %s", fam)
	}
	return next, nil
}

type fakeResolver struct {
	users map[string]*social.User
}

func (f *fakeResolver) ResolveByAddress(_ context.Context, addr string) (*social.User, error) {
	return f.users[addr], nil
}

func testSchedule() *Schedule {
	return NewSchedule([]contest.Season{
		{SeasonID: 1, StartTime: 0, EndTime: 999},
		{SeasonID: 2, StartTime: 1000, EndTime: 1999},
	})
}

func terminalContest(fam contest.Family, id uint64, host string, endTime int64) *contest.Contest {
	return &contest.Contest{
		Family:    fam,
		ID:        id,
		Host:      host,
		StartTime: endTime - 100,
		EndTime:   endTime,
		CastID:    fmt.Sprintf("0xcast%s%d|R1L0P1|", fam, id),
		Status:    contest.StatusCompleted,
	}
}

func TestFinalize_CapturesAndIndexes(t *testing.T) {
	store := kv.NewMemory(zap.NewNop())
	casts := &fakeCasts{casts: map[string]*social.Cast{
		"0xcastv21": {Hash: "0xcastv21", AuthorFid: 42, Likes: 10, Recasts: 4, Replies: 7},
	}}
	f := NewFinalizer(store, casts, &fakeVolumes{}, testSchedule(), zap.NewNop())
	ctx := context.Background()

	c := terminalContest(contest.FamilyV2, 1, hostOne, 1500)
	require.NoError(t, f.Finalize(ctx, c))

	snapshot, err := store.GetCastSnapshot(ctx, c.Key())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), snapshot.HostFid)
	assert.Equal(t, uint64(10), snapshot.Likes)
	assert.Positive(t, snapshot.CapturedAt)

	keys, err := store.SeasonIndexRange(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"v2-1"}, keys)

	cached, err := store.GetContest(ctx, c.Key())
	require.NoError(t, err)
	assert.Equal(t, contest.StatusCompleted, cached.Status)
}

func TestFinalize_SecondRunIsNoOp(t *testing.T) {
	store := kv.NewMemory(zap.NewNop())
	casts := &fakeCasts{casts: map[string]*social.Cast{
		"0xcastv21": {AuthorFid: 42, Likes: 10},
	}}
	f := NewFinalizer(store, casts, &fakeVolumes{}, testSchedule(), zap.NewNop())
	ctx := context.Background()

	c := terminalContest(contest.FamilyV2, 1, hostOne, 1500)
	require.NoError(t, f.Finalize(ctx, c))
	first, err := store.GetCastSnapshot(ctx, c.Key())
	require.NoError(t, err)

	// Counters move upstream, but the frozen snapshot must not refetch.
	casts.casts["0xcastv21"] = &social.Cast{AuthorFid: 42, Likes: 999}
	require.NoError(t, f.Finalize(ctx, c))

	second, err := store.GetCastSnapshot(ctx, c.Key())
	require.NoError(t, err)
	assert.Equal(t, first.Likes, second.Likes)
	assert.Equal(t, 1, casts.calls)

	keys, err := store.SeasonIndexRange(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}

func TestFinalize_RejectsActiveContest(t *testing.T) {
	f := NewFinalizer(kv.NewMemory(zap.NewNop()), &fakeCasts{}, &fakeVolumes{},
		testSchedule(), zap.NewNop())

	c := terminalContest(contest.FamilyV2, 1, hostOne, 1500)
	c.Status = contest.StatusActive
	assert.Error(t, f.Finalize(context.Background(), c))
}

func TestFinalize_MeasuresEntrantVolume(t *testing.T) {
	store := kv.NewMemory(zap.NewNop())
	ctx := context.Background()

	c := terminalContest(contest.FamilyV2, 1, hostOne, 1500)
	c.TokenRequirement = "0x000000000000000000000000000000000000c0de"
	c.VolumeRequirementUSD = 10

	_, _, err := store.PutEntryNX(ctx, kv.EntryKey("v2-1", 7),
		&contest.Entry{Fid: 7, ContestKey: "v2-1", Addresses: []string{hostTwo}})
	require.NoError(t, err)
	require.NoError(t, store.AddContestEntrant(ctx, "v2-1", 7))

	casts := &fakeCasts{casts: map[string]*social.Cast{"0xcastv21": {AuthorFid: 42}}}
	volumes := &fakeVolumes{result: &volume.Result{USDVolume: 123.45}}
	f := NewFinalizer(store, casts, volumes, testSchedule(), zap.NewNop())

	require.NoError(t, f.Finalize(ctx, c))
	cached, err := store.GetContest(ctx, c.Key())
	require.NoError(t, err)
	assert.Equal(t, 123.45, cached.TotalVolumeUSD)
}

func seedSeasonTwo(t *testing.T, store kv.Store) {
	t.Helper()
	ctx := context.Background()

	// Host one: two completed contests, one cast authored by them.
	a := terminalContest(contest.FamilyV2, 1, hostOne, 1100)
	b := terminalContest(contest.FamilyV2, 2, hostOne, 1200)
	require.NoError(t, store.PutContest(ctx, a))
	require.NoError(t, store.PutContest(ctx, b))
	require.NoError(t, store.SeasonIndexAdd(ctx, 2, "v2-1", 1100))
	require.NoError(t, store.SeasonIndexAdd(ctx, 2, "v2-2", 1200))

	// Contest A's cast is authored by host one (fid 42).
	require.NoError(t, store.PutCastSnapshot(ctx, a.Key(), &contest.CastSnapshot{
		CastHash: "0xcastv21", HostFid: 42,
		Likes: 1, Recasts: 1, Replies: 1, CapturedAt: 1101,
	}))
	// Contest B's cast was authored by someone else.
	require.NoError(t, store.PutCastSnapshot(ctx, b.Key(), &contest.CastSnapshot{
		CastHash: "0xcastv22", HostFid: 777,
		Likes: 50, Recasts: 50, Replies: 50, CapturedAt: 1201,
	}))
}

func TestLeaderboard_AuthorshipFilter(t *testing.T) {
	store := kv.NewMemory(zap.NewNop())
	seedSeasonTwo(t, store)

	resolver := &fakeResolver{users: map[string]*social.User{
		hostOne: {Fid: 42, Username: "alice"},
	}}
	agg := NewAggregator(store, resolver, &fakeChain{}, testSchedule(), zap.NewNop())

	lb, err := agg.Leaderboard(context.Background(), 2, 10)
	require.NoError(t, err)
	require.Len(t, lb.Hosts, 1)

	row := lb.Hosts[0]
	assert.Equal(t, uint32(1), row.Rank)
	assert.Equal(t, uint64(42), row.Stats.Fid)
	// Both contests pay the host bonus.
	assert.Equal(t, 200.0, row.HostBonus)
	// Only contest A's engagement counts: (1 + 2 + 3) * 100.
	assert.Equal(t, 600.0, row.SocialScore)
	assert.Equal(t, uint64(1), row.Stats.OwnedCasts)
	// contestScore = 200 + 3*600.
	assert.Equal(t, 2000.0, row.ContestScore)
	assert.Equal(t, 2000.0, row.TotalScore)
	assert.Equal(t, 2, lb.TotalContests)
	assert.Equal(t, contest.ScoreFormula, lb.Formula)
}

func TestLeaderboard_VotesAndRanking(t *testing.T) {
	store := kv.NewMemory(zap.NewNop())
	ctx := context.Background()

	// Two hosts, one completed contest each, no snapshots.
	require.NoError(t, store.PutContest(ctx, terminalContest(contest.FamilyV2, 1, hostOne, 1100)))
	require.NoError(t, store.PutContest(ctx, terminalContest(contest.FamilyV2, 2, hostTwo, 1200)))
	require.NoError(t, store.SeasonIndexAdd(ctx, 2, "v2-1", 1100))
	require.NoError(t, store.SeasonIndexAdd(ctx, 2, "v2-2", 1200))

	chainVotes := &fakeChain{votes: map[string][2]uint64{
		common.HexToAddress(hostTwo).Hex(): {3, 1},
	}}
	agg := NewAggregator(store, &fakeResolver{}, chainVotes, testSchedule(), zap.NewNop())

	lb, err := agg.Leaderboard(ctx, 2, 10)
	require.NoError(t, err)
	require.Len(t, lb.Hosts, 2)

	// Host two leads on votes: 100 + (3-1)*200 = 500 vs 100.
	assert.Equal(t, hostTwo, lb.Hosts[0].Stats.Address)
	assert.Equal(t, 500.0, lb.Hosts[0].TotalScore)
	assert.Equal(t, 400.0, lb.Hosts[0].VoteScore)
	assert.Equal(t, uint32(1), lb.Hosts[0].Rank)
	assert.Equal(t, uint32(2), lb.Hosts[1].Rank)
}

func TestLeaderboard_TieBreakAndDenseRanks(t *testing.T) {
	store := kv.NewMemory(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, store.PutContest(ctx, terminalContest(contest.FamilyV2, 1, hostTwo, 1100)))
	require.NoError(t, store.PutContest(ctx, terminalContest(contest.FamilyV2, 2, hostOne, 1200)))
	require.NoError(t, store.SeasonIndexAdd(ctx, 2, "v2-1", 1100))
	require.NoError(t, store.SeasonIndexAdd(ctx, 2, "v2-2", 1200))

	agg := NewAggregator(store, &fakeResolver{}, &fakeChain{}, testSchedule(), zap.NewNop())
	lb, err := agg.Leaderboard(ctx, 2, 10)
	require.NoError(t, err)
	require.Len(t, lb.Hosts, 2)

	// Equal scores: address ascending, both rank 1.
	assert.Equal(t, hostOne, lb.Hosts[0].Stats.Address)
	assert.Equal(t, hostTwo, lb.Hosts[1].Stats.Address)
	assert.Equal(t, uint32(1), lb.Hosts[0].Rank)
	assert.Equal(t, uint32(1), lb.Hosts[1].Rank)
}

func TestLeaderboard_Memoizes(t *testing.T) {
	store := kv.NewMemory(zap.NewNop())
	seedSeasonTwo(t, store)
	resolver := &fakeResolver{users: map[string]*social.User{hostOne: {Fid: 42}}}
	agg := NewAggregator(store, resolver, &fakeChain{}, testSchedule(), zap.NewNop())
	ctx := context.Background()

	first, err := agg.Leaderboard(ctx, 2, 10)
	require.NoError(t, err)
	second, err := agg.Leaderboard(ctx, 2, 10)
	require.NoError(t, err)
	assert.Equal(t, first.GeneratedAt, second.GeneratedAt)

	// Rebuilds are deterministic.
	again, err := agg.Rebuild(ctx, 2, 10)
	require.NoError(t, err)
	assert.Equal(t, first.Hosts, again.Hosts)
}

func TestArchive_SupersetOfIndex(t *testing.T) {
	store := kv.NewMemory(zap.NewNop())
	ctx := context.Background()

	indexed := terminalContest(contest.FamilyV2, 1, hostOne, 1100)
	require.NoError(t, store.PutContest(ctx, indexed))
	require.NoError(t, store.SeasonIndexAdd(ctx, 2, "v2-1", 1100))

	// Cached but never indexed; enumeration must still find it.
	stray := terminalContest(contest.FamilyV2, 2, hostTwo, 1200)
	require.NoError(t, store.PutContest(ctx, stray))

	// Outside the season window.
	other := terminalContest(contest.FamilyV2, 3, hostOne, 500)
	require.NoError(t, store.PutContest(ctx, other))

	chainIDs := &fakeChain{nextIDs: map[contest.Family]uint64{contest.FamilyV2: 4}}
	agg := NewAggregator(store, &fakeResolver{}, chainIDs, testSchedule(), zap.NewNop())
	arch := NewArchiver(store, chainIDs, agg, testSchedule(), zap.NewNop())
	defer arch.Close()

	archive, err := arch.Archive(ctx, 2, ArchiveOptions{})
	require.NoError(t, err)
	require.Len(t, archive.Contests, 2)
	assert.Equal(t, "v2-1", archive.Contests[0].Contest.Key().String())
	assert.Equal(t, "v2-2", archive.Contests[1].Contest.Key().String())
	assert.Equal(t, 2, archive.Stats.TotalContests)
	assert.Equal(t, 2, archive.Stats.CompletedCount)
	assert.Equal(t, 2, archive.Stats.UniqueHosts)

	stored, err := store.GetSeasonArchive(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, archive.ArchivedAt, stored.ArchivedAt)
}

func TestArchive_DryRunDoesNotPersist(t *testing.T) {
	store := kv.NewMemory(zap.NewNop())
	ctx := context.Background()
	require.NoError(t, store.PutContest(ctx, terminalContest(contest.FamilyV2, 1, hostOne, 1100)))

	chainIDs := &fakeChain{nextIDs: map[contest.Family]uint64{contest.FamilyV2: 2}}
	agg := NewAggregator(store, &fakeResolver{}, chainIDs, testSchedule(), zap.NewNop())
	arch := NewArchiver(store, chainIDs, agg, testSchedule(), zap.NewNop())
	defer arch.Close()

	archive, err := arch.Archive(ctx, 2, ArchiveOptions{DryRun: true})
	require.NoError(t, err)
	assert.Len(t, archive.Contests, 1)

	_, err = store.GetSeasonArchive(ctx, 2)
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestArchive_ClearAfterKeepsArchive(t *testing.T) {
	store := kv.NewMemory(zap.NewNop())
	ctx := context.Background()

	c := terminalContest(contest.FamilyV2, 1, hostOne, 1100)
	require.NoError(t, store.PutContest(ctx, c))
	require.NoError(t, store.SeasonIndexAdd(ctx, 2, "v2-1", 1100))
	require.NoError(t, store.PutCastSnapshot(ctx, c.Key(),
		&contest.CastSnapshot{HostFid: 42, CapturedAt: 1101}))

	chainIDs := &fakeChain{nextIDs: map[contest.Family]uint64{contest.FamilyV2: 2}}
	agg := NewAggregator(store, &fakeResolver{}, chainIDs, testSchedule(), zap.NewNop())
	arch := NewArchiver(store, chainIDs, agg, testSchedule(), zap.NewNop())
	defer arch.Close()

	_, err := arch.Archive(ctx, 2, ArchiveOptions{ClearAfter: true})
	require.NoError(t, err)

	_, err = store.GetCastSnapshot(ctx, c.Key())
	assert.ErrorIs(t, err, kv.ErrNotFound)
	keys, err := store.SeasonIndexRange(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, keys)

	// The archive itself survives the clear.
	stored, err := store.GetSeasonArchive(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, stored.Contests, 1)
}

func TestScheduleLookups(t *testing.T) {
	s := testSchedule()

	season, ok := s.For(1500)
	require.True(t, ok)
	assert.Equal(t, uint64(2), season.SeasonID)

	_, ok = s.For(5000)
	assert.False(t, ok)

	season, ok = s.ByID(1)
	require.True(t, ok)
	assert.Equal(t, int64(999), season.EndTime)
}
