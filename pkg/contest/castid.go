package contest

import (
	"regexp"
	"strings"
)

// Flags are the engagement kinds a contest requires, parsed from the RxLxPx
// suffix of the cast id.
type Flags struct {
	Recast bool `json:"recast"`
	Like   bool `json:"like"`
	Reply  bool `json:"reply"`
}

// DefaultFlags is the policy for contests without a flag suffix: recast and
// reply are required, a like is optional. A legacy code path used R1L1P0;
// this implementation standardizes on R1L0P1.
var DefaultFlags = Flags{Recast: true, Like: false, Reply: true}

// Any reports whether at least one engagement kind is required.
func (f Flags) Any() bool { return f.Recast || f.Like || f.Reply }

var flagsRe = regexp.MustCompile(`^R([01])L([01])P([01])$`)

// ParseCastID splits a cast id of the form "hash", "hash|flags" or
// "hash|flags|imageUrl". Malformed flag segments fall back to DefaultFlags.
func ParseCastID(castID string) (hash string, flags Flags, imageURL string) {
	parts := strings.SplitN(castID, "|", 3)
	hash = parts[0]
	flags = DefaultFlags
	if len(parts) >= 2 {
		if m := flagsRe.FindStringSubmatch(parts[1]); m != nil {
			flags = Flags{
				Recast: m[1] == "1",
				Like:   m[2] == "1",
				Reply:  m[3] == "1",
			}
		}
	}
	if len(parts) == 3 {
		imageURL = parts[2]
	}
	return hash, flags, imageURL
}
