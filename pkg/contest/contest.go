package contest

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// Family distinguishes escrow contract generations. The unified escrow serves
// token, v2, m and t; NFT prizes live in their own contract.
type Family string

const (
	FamilyToken   Family = "token"
	FamilyNFT     Family = "nft"
	FamilyV2      Family = "v2"
	FamilyMilestn Family = "m"
	FamilyTrade   Family = "t"
)

// Families lists every known family, in archive enumeration order.
var Families = []Family{FamilyToken, FamilyNFT, FamilyV2, FamilyMilestn, FamilyTrade}

func ParseFamily(s string) (Family, bool) {
	switch Family(s) {
	case FamilyToken, FamilyNFT, FamilyV2, FamilyMilestn, FamilyTrade:
		return Family(s), true
	}
	return "", false
}

// Status of a contest on the escrow contract.
type Status uint8

const (
	StatusActive Status = iota
	StatusPendingVRF
	StatusCompleted
	StatusCancelled
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusPendingVRF:
		return "pending_vrf"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	}
	return "unknown"
}

// PrizeKind tags what the escrow is holding.
type PrizeKind string

const (
	PrizeETH   PrizeKind = "ETH"
	PrizeERC20 PrizeKind = "ERC20"
	PrizeNFT   PrizeKind = "NFT"
)

// Key is the rendered contest identity, "{family}-{id}".
type Key struct {
	Family Family
	ID     uint64
}

func (k Key) String() string {
	return fmt.Sprintf("%s-%d", k.Family, k.ID)
}

// ParseKey accepts the canonical "{family}-{id}" form. Legacy bare numeric ids
// predate families and map to the token escrow.
func ParseKey(s string) (Key, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Key{}, fmt.Errorf("empty contest id")
	}
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return Key{Family: FamilyToken, ID: n}, nil
	}
	idx := strings.LastIndexByte(s, '-')
	if idx <= 0 || idx == len(s)-1 {
		return Key{}, fmt.Errorf("invalid contest id %q", s)
	}
	fam, ok := ParseFamily(s[:idx])
	if !ok {
		return Key{}, fmt.Errorf("unknown contest family %q", s[:idx])
	}
	n, err := strconv.ParseUint(s[idx+1:], 10, 64)
	if err != nil {
		return Key{}, fmt.Errorf("invalid contest id %q: %w", s, err)
	}
	return Key{Family: fam, ID: n}, nil
}

// NFTPrize carries the fields only the NFT escrow has.
type NFTPrize struct {
	Collection string `json:"collection"`
	TokenID    string `json:"tokenId"`
}

// Contest is the cached view of an on-chain contest. The chain reader is the
// single site that decodes escrow variants into this shape; everything else
// works over the common fields.
type Contest struct {
	Family Family `json:"family"`
	ID     uint64 `json:"id"`

	Host        string    `json:"host"`
	PrizeKind   PrizeKind `json:"prizeKind"`
	PrizeToken  string    `json:"prizeToken,omitempty"`
	PrizeAmount *big.Int  `json:"prizeAmount,omitempty"`

	StartTime int64 `json:"startTime"`
	EndTime   int64 `json:"endTime"`

	// CastID encodes "hash|flags|imageUrl"; Flags() is the source of truth
	// for social gating.
	CastID string `json:"castId"`

	TokenRequirement     string  `json:"tokenRequirement,omitempty"`
	VolumeRequirementUSD float64 `json:"volumeRequirementUsd,omitempty"`

	// TotalVolumeUSD is the entrant trading volume measured at finalization
	// and cached here so aggregation never rescans chain logs.
	TotalVolumeUSD float64 `json:"totalVolumeUsd,omitempty"`

	Status  Status   `json:"status"`
	Winners []string `json:"winners,omitempty"`

	NFT *NFTPrize `json:"nft,omitempty"`
}

func (c *Contest) Key() Key {
	return Key{Family: c.Family, ID: c.ID}
}

// Flags parses the social-gating flags out of the cast id.
func (c *Contest) Flags() Flags {
	_, flags, _ := ParseCastID(c.CastID)
	return flags
}

// CastHash returns the bare cast hash without flag or image suffixes.
func (c *Contest) CastHash() string {
	hash, _, _ := ParseCastID(c.CastID)
	return hash
}

// RequiresVolume reports whether entrants must show trading volume.
func (c *Contest) RequiresVolume() bool {
	return c.TokenRequirement != "" && c.VolumeRequirementUSD > 0
}
