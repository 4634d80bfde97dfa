package contest

// Entry is the raffle-entry record for one (contest, fid) pair. At most one
// exists per pair for the lifetime of the contest.
type Entry struct {
	Fid        uint64   `json:"fid"`
	ContestKey string   `json:"contestId"`
	Addresses  []string `json:"addresses"`
	EnteredAt  int64    `json:"enteredAt"`
	HasReplied *bool    `json:"hasReplied,omitempty"`
}
