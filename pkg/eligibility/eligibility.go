package eligibility

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/neynartodes/contesthub/pkg/contest"
	"github.com/neynartodes/contesthub/pkg/social"
	"github.com/neynartodes/contesthub/pkg/volume"
)

// maxQuoteCasts bounds how many quote-casts the social pass scans.
const maxQuoteCasts = 100

// ReasonNoIdentity marks a subject that resolves to neither a FID nor any
// addresses.
const ReasonNoIdentity = "no-identity"

type socialReader interface {
	ResolveUser(ctx context.Context, fid uint64) (*social.User, error)
	ResolveByAddress(ctx context.Context, addr string) (*social.User, error)
	ReactionsOn(ctx context.Context, hash string) []social.Reaction
	RepliesOn(ctx context.Context, hash string) []social.Reply
	QuotesOf(ctx context.Context, hash string) []string
}

type volumeCalculator interface {
	During(ctx context.Context, token common.Address, addresses []string, startTime, endTime int64) (*volume.Result, error)
}

// Subject identifies who is being evaluated: a FID, or an address to
// resolve back to one.
type Subject struct {
	Fid     uint64
	Address string
}

// SocialStatus reports which engagement flags the subject has satisfied.
type SocialStatus struct {
	Recasted bool `json:"recasted"`
	Liked    bool `json:"liked"`
	Replied  bool `json:"replied"`
	Met      bool `json:"met"`
}

// VolumeStatus reports the subject's trading volume against the contest's
// requirement.
type VolumeStatus struct {
	RequiredUSD float64 `json:"requiredUsd"`
	USD         float64 `json:"usd"`
	Tokens      float64 `json:"tokens"`
	Met         bool    `json:"met"`
}

// Result is the full qualification verdict for one (contest, subject) pair.
type Result struct {
	Qualified    bool          `json:"qualified"`
	Reason       string        `json:"reason,omitempty"`
	Fid          uint64        `json:"fid,omitempty"`
	Social       SocialStatus  `json:"social"`
	Volume       VolumeStatus  `json:"volume"`
	Requirements contest.Flags `json:"requirements"`
}

// Evaluator decides whether a subject qualifies for a contest. It is
// read-only and idempotent; concurrent calls for the same subject agree
// modulo upstream freshness.
type Evaluator struct {
	social  socialReader
	volumes volumeCalculator
	logger  *zap.Logger
}

func NewEvaluator(socialClient socialReader, volumes volumeCalculator, logger *zap.Logger) *Evaluator {
	return &Evaluator{social: socialClient, volumes: volumes, logger: logger}
}

// Evaluate runs the social and volume passes for a subject against a
// contest. now caps the volume window for still-running contests.
func (e *Evaluator) Evaluate(ctx context.Context, c *contest.Contest, subject Subject, now int64) (*Result, error) {
	flags := c.Flags()
	user, err := e.resolveSubject(ctx, subject)
	if err != nil {
		return nil, err
	}

	var result *Result
	var addresses []string
	switch {
	case user != nil:
		result = &Result{Fid: user.Fid, Requirements: flags}
		result.Social = e.socialPass(ctx, c.CastHash(), user.Fid, flags)
		addresses = user.Addresses()
	case subject.Address != "" && !flags.Any():
		// No engagement required, so a bare address with no Farcaster
		// account can still clear a volume-only contest.
		result = &Result{Requirements: flags, Social: SocialStatus{Met: true}}
		addresses = []string{strings.ToLower(subject.Address)}
	default:
		return &Result{Reason: ReasonNoIdentity, Requirements: flags}, nil
	}

	result.Volume = VolumeStatus{RequiredUSD: c.VolumeRequirementUSD, Met: true}
	if c.RequiresVolume() {
		end := now
		if c.EndTime < end {
			end = c.EndTime
		}
		vol, err := e.volumes.During(ctx, common.HexToAddress(c.TokenRequirement),
			addresses, c.StartTime, end)
		if err != nil {
			return nil, fmt.Errorf("volume pass: %w", err)
		}
		result.Volume.USD = vol.USDVolume
		result.Volume.Tokens = vol.TokenVolume
		result.Volume.Met = vol.USDVolume >= c.VolumeRequirementUSD
	}

	result.Qualified = result.Social.Met && result.Volume.Met
	return result, nil
}

func (e *Evaluator) resolveSubject(ctx context.Context, subject Subject) (*social.User, error) {
	if subject.Fid != 0 {
		return e.social.ResolveUser(ctx, subject.Fid)
	}
	if subject.Address != "" {
		return e.social.ResolveByAddress(ctx, subject.Address)
	}
	return nil, nil
}

// socialPass scans the original cast and, for flags still unsatisfied, up
// to maxQuoteCasts quote-casts. Engagement on a quote counts toward the
// original. Stops as soon as every required flag is satisfied.
func (e *Evaluator) socialPass(ctx context.Context, castHash string, fid uint64, flags contest.Flags) SocialStatus {
	status := SocialStatus{}
	e.scanCast(ctx, castHash, fid, &status)

	if !met(flags, status) {
		for i, quote := range e.social.QuotesOf(ctx, castHash) {
			if i >= maxQuoteCasts {
				break
			}
			e.scanCast(ctx, quote, fid, &status)
			if met(flags, status) {
				break
			}
		}
	}

	status.Met = met(flags, status)
	return status
}

// scanCast marks reaction and reply flags for the subject on one cast. A
// reply counts only when its trimmed text has at least two words.
func (e *Evaluator) scanCast(ctx context.Context, castHash string, fid uint64, status *SocialStatus) {
	if !status.Recasted || !status.Liked {
		for _, r := range e.social.ReactionsOn(ctx, castHash) {
			if r.Fid != fid {
				continue
			}
			switch r.Kind {
			case social.ReactionRecast:
				status.Recasted = true
			case social.ReactionLike:
				status.Liked = true
			}
		}
	}
	if !status.Replied {
		for _, r := range e.social.RepliesOn(ctx, castHash) {
			if r.Fid == fid && len(strings.Fields(r.Text)) >= 2 {
				status.Replied = true
				break
			}
		}
	}
}

// met reports whether every required flag has been satisfied.
func met(flags contest.Flags, status SocialStatus) bool {
	if flags.Recast && !status.Recasted {
		return false
	}
	if flags.Like && !status.Liked {
		return false
	}
	if flags.Reply && !status.Replied {
		return false
	}
	return true
}
