package types

// FinalizeContestInput names the contest a finalize workflow run covers.
// The workflow id is derived from ContestKey, so one terminal contest only
// ever has one finalize run in flight.
type FinalizeContestInput struct {
	ContestKey string `json:"contestKey"`
}

// FinalizeContestOutput reports what the run did.
type FinalizeContestOutput struct {
	Finalized bool   `json:"finalized"`
	Status    string `json:"status"`
}

// ArchiveSeasonInput parametrizes an archive workflow run.
type ArchiveSeasonInput struct {
	SeasonID   uint64 `json:"seasonId"`
	DryRun     bool   `json:"dryRun"`
	ClearAfter bool   `json:"clearAfter"`
}

// ArchiveSeasonOutput summarizes the archived document.
type ArchiveSeasonOutput struct {
	Contests      int     `json:"contests"`
	Hosts         int     `json:"hosts"`
	TotalPrizeUSD float64 `json:"totalPrizeUsd"`
	DryRun        bool    `json:"dryRun"`
}
