package contest

// CastSnapshot freezes a contest's social counters at finalization. Once the
// contest is terminal and CapturedAt is set, the record only changes through
// an explicit archive rebuild.
type CastSnapshot struct {
	CastHash   string `json:"castHash"`
	HostFid    uint64 `json:"hostFid"`
	Likes      uint64 `json:"likes"`
	Recasts    uint64 `json:"recasts"`
	Replies    uint64 `json:"replies"`
	CapturedAt int64  `json:"capturedAt"`
}

// PriceSnapshot is written once at contest creation and feeds the leaderboard
// and all-time-prize aggregations.
type PriceSnapshot struct {
	TokenAddress  string   `json:"tokenAddress"`
	TokenPriceUSD float64  `json:"tokenPriceUsd"`
	EthPriceUSD   float64  `json:"ethPriceUsd"`
	PriceInETH    float64  `json:"priceInEth"`
	PrizeValueUSD float64  `json:"prizeValueUsd"`
	Source        string   `json:"source"`
	LiquidityUSD  *float64 `json:"liquidityUsd"`
	Timestamp     int64    `json:"timestamp"`
}

// Season is a time-bounded leaderboard window.
type Season struct {
	SeasonID    uint64  `json:"seasonId"`
	Theme       string  `json:"theme"`
	StartTime   int64   `json:"startTime"`
	EndTime     int64   `json:"endTime"`
	HostPool    float64 `json:"hostPool"`
	VoterPool   float64 `json:"voterPool"`
	Distributed bool    `json:"distributed"`
}

// Contains reports whether a contest ending at endTime belongs to the season.
func (s Season) Contains(endTime int64) bool {
	return endTime >= s.StartTime && endTime <= s.EndTime
}

// HostStats are the per-host facts the aggregator derives for one season.
// Likes/recasts/replies only accumulate from casts authored by the host's FID.
type HostStats struct {
	Address           string  `json:"address"`
	Fid               uint64  `json:"fid,omitempty"`
	Username          string  `json:"username,omitempty"`
	CompletedContests uint64  `json:"completedContests"`
	OwnedCasts        uint64  `json:"ownedCasts"`
	Likes             uint64  `json:"likes"`
	Recasts           uint64  `json:"recasts"`
	Replies           uint64  `json:"replies"`
	Volume            float64 `json:"volume"`
	Upvotes           uint64  `json:"upvotes"`
	Downvotes         uint64  `json:"downvotes"`
}
