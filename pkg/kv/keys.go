package kv

import (
	"fmt"

	"github.com/neynartodes/contesthub/pkg/contest"
)

// Key grammar. These shapes are a stable external surface shared with the
// frame frontend and one-shot scripts; treat renames as breaking changes.
func contestKey(k contest.Key) string {
	return fmt.Sprintf("contest:%s:%d", k.Family, k.ID)
}

func socialKey(k contest.Key) string {
	return fmt.Sprintf("contest:social:%s", k)
}

func priceKey(k contest.Key) string {
	return fmt.Sprintf("contest_price_%s", k)
}

func nftPriceKey(k contest.Key) string {
	return fmt.Sprintf("nft_price_%s", k)
}

// EntryKey is exported because the entry ledger probes the legacy unprefixed
// shape on reads.
func EntryKey(contestKey string, fid uint64) string {
	return fmt.Sprintf("entry:%s:%d", contestKey, fid)
}

func entrantsKey(contestKey string) string {
	return fmt.Sprintf("contest_entries:%s", contestKey)
}

func seasonIndexKey(seasonID uint64) string {
	return fmt.Sprintf("season:%d:contests", seasonID)
}

func seasonArchiveKey(seasonID uint64) string {
	return fmt.Sprintf("season_archive:%d", seasonID)
}

func leaderboardKey(seasonID uint64, limit int) string {
	return fmt.Sprintf("leaderboard:s%d:l%d", seasonID, limit)
}

func leaderboardPattern(seasonID uint64) string {
	return fmt.Sprintf("leaderboard:s%d:l*", seasonID)
}

func messageKey(id string) string {
	return fmt.Sprintf("contest_message_%s", id)
}

// LeaderboardChannel is the pub/sub channel carrying leaderboard
// invalidation events for one season.
func LeaderboardChannel(seasonID uint64) string {
	return fmt.Sprintf("contests:%d:leaderboard.invalidated", seasonID)
}

// LeaderboardChannelPattern matches invalidation events for all seasons.
const LeaderboardChannelPattern = "contests:*:leaderboard.invalidated"
