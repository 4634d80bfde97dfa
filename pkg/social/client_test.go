package social

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(zap.NewNop(), Opts{BaseURL: srv.URL, APIKey: "test-key"})
}

func TestResolveUser_Success(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/farcaster/user/bulk", r.URL.Path)
		assert.Equal(t, "42", r.URL.Query().Get("fids"))
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"users": []map[string]any{{
				"fid":             42,
				"username":        "alice",
				"custody_address": "0xAAA0000000000000000000000000000000000001",
				"verified_addresses": map[string]any{
					"eth_addresses": []string{
						"0xBBB0000000000000000000000000000000000002",
						"0xAAA0000000000000000000000000000000000001",
					},
				},
				"score": 0.91,
			}},
		})
	})

	client := newTestClient(t, handler)
	user, err := client.ResolveUser(context.Background(), 42)
	require.NoError(t, err)
	require.NotNil(t, user)

	assert.Equal(t, uint64(42), user.Fid)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, 0.91, user.Score)
	// Custody + verified, lowercased, deduped.
	assert.Equal(t, []string{
		"0xaaa0000000000000000000000000000000000001",
		"0xbbb0000000000000000000000000000000000002",
	}, user.Addresses())
}

func TestResolveByAddress_NoMatch(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{})
	})

	client := newTestClient(t, handler)
	user, err := client.ResolveByAddress(context.Background(), "0xdead")
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestReactionsOn_Paginates(t *testing.T) {
	calls := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/v2/farcaster/reactions/cast", r.URL.Path)
		if r.URL.Query().Get("cursor") == "" {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"reactions": []map[string]any{
					{"reaction_type": "like", "user": map[string]any{"fid": 1}},
					{"reaction_type": "recast", "user": map[string]any{"fid": 2}},
				},
				"next": map[string]any{"cursor": "page2"},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"reactions": []map[string]any{
				{"reaction_type": "like", "user": map[string]any{"fid": 3}},
			},
			"next": map[string]any{"cursor": ""},
		})
	})

	client := newTestClient(t, handler)
	reactions := client.ReactionsOn(context.Background(), "0xcast")

	assert.Equal(t, 2, calls)
	require.Len(t, reactions, 3)
	assert.Equal(t, Reaction{Fid: 1, Kind: ReactionLike}, reactions[0])
	assert.Equal(t, Reaction{Fid: 2, Kind: ReactionRecast}, reactions[1])
	assert.Equal(t, Reaction{Fid: 3, Kind: ReactionLike}, reactions[2])
}

func TestSequenceReads_DegradeToEmpty(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	client := newTestClient(t, handler)
	ctx := context.Background()

	assert.Empty(t, client.ReactionsOn(ctx, "0xcast"))
	assert.Empty(t, client.RepliesOn(ctx, "0xcast"))
	assert.Empty(t, client.QuotesOf(ctx, "0xcast"))

	// Identity reads surface the failure instead.
	_, err := client.ResolveUser(ctx, 7)
	assert.Error(t, err)
}

func TestGetCast(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/farcaster/cast", r.URL.Path)
		assert.Equal(t, "0xcast", r.URL.Query().Get("identifier"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"cast": map[string]any{
				"hash":   "0xcast",
				"author": map[string]any{"fid": 99},
				"text":   "gm",
				"reactions": map[string]any{
					"likes_count":   10,
					"recasts_count": 4,
				},
				"replies": map[string]any{"count": 7},
			},
		})
	})

	client := newTestClient(t, handler)
	cast, err := client.GetCast(context.Background(), "0xcast")
	require.NoError(t, err)

	assert.Equal(t, uint64(99), cast.AuthorFid)
	assert.Equal(t, uint64(10), cast.Likes)
	assert.Equal(t, uint64(4), cast.Recasts)
	assert.Equal(t, uint64(7), cast.Replies)
}
