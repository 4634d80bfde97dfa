package contest

// HostScore is one leaderboard row. Ranks are dense: hosts with equal
// TotalScore share a rank and the next distinct score takes rank+1.
type HostScore struct {
	Rank         uint32    `json:"rank"`
	Stats        HostStats `json:"stats"`
	HostBonus    float64   `json:"hostBonus"`
	SocialScore  float64   `json:"socialScore"`
	TokenScore   float64   `json:"tokenScore"`
	ContestScore float64   `json:"contestScore"`
	VoteScore    float64   `json:"voteScore"`
	TotalScore   float64   `json:"totalScore"`
}

// Leaderboard is the memoized aggregation result for one (season, limit).
type Leaderboard struct {
	SeasonID      uint64      `json:"season"`
	Limit         int         `json:"limit"`
	Hosts         []HostScore `json:"hosts"`
	TotalContests int         `json:"totalContests"`
	Formula       string      `json:"formula"`
	GeneratedAt   int64       `json:"generatedAt"`
}

// ScoreFormula is surfaced verbatim on the leaderboard endpoint so clients
// can render how scores are derived.
const ScoreFormula = "total = 100*contests + 3*(100*(likes + 2*recasts + 3*replies)) + 50*volume + 200*(upvotes - downvotes)"

// ArchivedContest pairs a contest cache with its snapshots for the archive
// document.
type ArchivedContest struct {
	Contest *Contest       `json:"contest"`
	Social  *CastSnapshot  `json:"social,omitempty"`
	Price   *PriceSnapshot `json:"price,omitempty"`
}

// SeasonArchive freezes a finished season. It is a superset of the season
// index: mis-indexed contests recovered by enumeration appear here too.
type SeasonArchive struct {
	Season      Season            `json:"season"`
	Contests    []ArchivedContest `json:"contests"`
	Leaderboard []HostScore       `json:"leaderboard"`
	Stats       ArchiveStats      `json:"stats"`
	ArchivedAt  int64             `json:"archivedAt"`
}

// ArchiveStats summarizes a season for display without walking the contests.
type ArchiveStats struct {
	TotalContests  int     `json:"totalContests"`
	CompletedCount int     `json:"completedCount"`
	CancelledCount int     `json:"cancelledCount"`
	TotalPrizeUSD  float64 `json:"totalPrizeUsd"`
	UniqueHosts    int     `json:"uniqueHosts"`
}
