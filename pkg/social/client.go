package social

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/neynartodes/contesthub/pkg/utils"
)

// Client talks to the Farcaster data provider. Sequence reads (reactions,
// replies, quotes) degrade to empty results on any failure so eligibility
// resolves to "no engagement found" instead of failing the request; identity
// and cast reads surface their errors to the caller.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger

	pageLimit int
	maxPages  int
}

// Opts is the option set for a new Client.
type Opts struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	PageLimit  int
	MaxPages   int
	HTTPClient *http.Client
}

// OptsFromEnv builds Opts from SOCIAL_API_URL / SOCIAL_API_KEY.
func OptsFromEnv() Opts {
	return Opts{
		BaseURL: utils.Env("SOCIAL_API_URL", "https://api.neynar.com"),
		APIKey:  utils.Env("SOCIAL_API_KEY", ""),
	}
}

// New creates a new Client with the given options.
func New(logger *zap.Logger, o Opts) *Client {
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	if o.PageLimit <= 0 {
		o.PageLimit = 100
	}
	if o.MaxPages <= 0 {
		o.MaxPages = 10
	}
	client := o.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: o.Timeout}
	}
	return &Client{
		baseURL:   o.BaseURL,
		apiKey:    o.APIKey,
		client:    client,
		logger:    logger,
		pageLimit: o.PageLimit,
		maxPages:  o.MaxPages,
	}
}

// User is the resolved identity of a Farcaster account.
type User struct {
	Fid           uint64   `json:"fid"`
	Username      string   `json:"username"`
	CustodyAddr   string   `json:"custodyAddress"`
	VerifiedAddrs []string `json:"verifiedAddresses"`
	Score         float64  `json:"score"`
}

// Addresses returns custody plus verified addresses, lowercased and deduped.
func (u *User) Addresses() []string {
	all := make([]string, 0, len(u.VerifiedAddrs)+1)
	if u.CustodyAddr != "" {
		all = append(all, u.CustodyAddr)
	}
	all = append(all, u.VerifiedAddrs...)
	return utils.DedupLower(all)
}

// Cast is a social post with its engagement counters.
type Cast struct {
	Hash      string `json:"hash"`
	AuthorFid uint64 `json:"authorFid"`
	Text      string `json:"text"`
	Likes     uint64 `json:"likes"`
	Recasts   uint64 `json:"recasts"`
	Replies   uint64 `json:"replies"`
}

// ReactionKind is like or recast.
type ReactionKind string

const (
	ReactionLike   ReactionKind = "like"
	ReactionRecast ReactionKind = "recast"
)

// Reaction is one user's like or recast on a cast.
type Reaction struct {
	Fid  uint64
	Kind ReactionKind
}

// Reply is one direct reply on a cast.
type Reply struct {
	Fid  uint64
	Text string
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = utils.DrainAndClose(resp.Body) }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("social api %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ResolveUser looks up an account by FID.
func (c *Client) ResolveUser(ctx context.Context, fid uint64) (*User, error) {
	var body struct {
		Users []apiUser `json:"users"`
	}
	q := url.Values{"fids": {strconv.FormatUint(fid, 10)}}
	if err := c.get(ctx, "/v2/farcaster/user/bulk", q, &body); err != nil {
		return nil, err
	}
	if len(body.Users) == 0 {
		return nil, nil
	}
	return body.Users[0].toUser(), nil
}

// ResolveByAddress looks up the account that verified or holds an address.
// Returns (nil, nil) when no account matches.
func (c *Client) ResolveByAddress(ctx context.Context, addr string) (*User, error) {
	var body map[string][]apiUser
	q := url.Values{"addresses": {addr}}
	if err := c.get(ctx, "/v2/farcaster/user/bulk-by-address", q, &body); err != nil {
		return nil, err
	}
	for _, users := range body {
		if len(users) > 0 {
			return users[0].toUser(), nil
		}
	}
	return nil, nil
}

// GetCast fetches a cast and its counters by hash.
func (c *Client) GetCast(ctx context.Context, hash string) (*Cast, error) {
	var body struct {
		Cast apiCast `json:"cast"`
	}
	q := url.Values{"identifier": {hash}, "type": {"hash"}}
	if err := c.get(ctx, "/v2/farcaster/cast", q, &body); err != nil {
		return nil, err
	}
	return body.Cast.toCast(), nil
}

// ReactionsOn enumerates likes and recasts on a cast. Degrades to empty on
// failure; pagination is bounded by MaxPages.
func (c *Client) ReactionsOn(ctx context.Context, hash string) []Reaction {
	var out []Reaction
	cursor := ""
	for page := 0; page < c.maxPages; page++ {
		var body struct {
			Reactions []struct {
				ReactionType string  `json:"reaction_type"`
				User         apiUser `json:"user"`
			} `json:"reactions"`
			Next struct {
				Cursor string `json:"cursor"`
			} `json:"next"`
		}
		q := url.Values{
			"hash":  {hash},
			"types": {"likes,recasts"},
			"limit": {strconv.Itoa(c.pageLimit)},
		}
		if cursor != "" {
			q.Set("cursor", cursor)
		}
		if err := c.get(ctx, "/v2/farcaster/reactions/cast", q, &body); err != nil {
			c.logger.Warn("Failed to fetch reactions, treating as none",
				zap.String("cast", hash), zap.Error(err))
			return out
		}
		for _, r := range body.Reactions {
			kind := ReactionLike
			if r.ReactionType == "recast" {
				kind = ReactionRecast
			}
			out = append(out, Reaction{Fid: r.User.Fid, Kind: kind})
		}
		cursor = body.Next.Cursor
		if cursor == "" {
			break
		}
	}
	return out
}

// RepliesOn enumerates direct replies on a cast. Degrades to empty.
func (c *Client) RepliesOn(ctx context.Context, hash string) []Reply {
	var out []Reply
	cursor := ""
	for page := 0; page < c.maxPages; page++ {
		var body struct {
			Conversation struct {
				Cast struct {
					DirectReplies []apiCast `json:"direct_replies"`
				} `json:"cast"`
			} `json:"conversation"`
			Next struct {
				Cursor string `json:"cursor"`
			} `json:"next"`
		}
		q := url.Values{
			"identifier":  {hash},
			"type":        {"hash"},
			"reply_depth": {"1"},
			"limit":       {strconv.Itoa(c.pageLimit)},
		}
		if cursor != "" {
			q.Set("cursor", cursor)
		}
		if err := c.get(ctx, "/v2/farcaster/cast/conversation", q, &body); err != nil {
			c.logger.Warn("Failed to fetch replies, treating as none",
				zap.String("cast", hash), zap.Error(err))
			return out
		}
		for _, r := range body.Conversation.Cast.DirectReplies {
			out = append(out, Reply{Fid: r.Author.Fid, Text: r.Text})
		}
		cursor = body.Next.Cursor
		if cursor == "" {
			break
		}
	}
	return out
}

// QuotesOf enumerates hashes of casts quoting the given cast. Degrades to
// empty; the caller bounds how many it scans.
func (c *Client) QuotesOf(ctx context.Context, hash string) []string {
	var out []string
	cursor := ""
	for page := 0; page < c.maxPages; page++ {
		var body struct {
			Casts []apiCast `json:"casts"`
			Next  struct {
				Cursor string `json:"cursor"`
			} `json:"next"`
		}
		q := url.Values{
			"identifier": {hash},
			"type":       {"hash"},
			"limit":      {strconv.Itoa(c.pageLimit)},
		}
		if cursor != "" {
			q.Set("cursor", cursor)
		}
		if err := c.get(ctx, "/v2/farcaster/cast/quotes", q, &body); err != nil {
			c.logger.Warn("Failed to fetch quote casts, treating as none",
				zap.String("cast", hash), zap.Error(err))
			return out
		}
		for _, qc := range body.Casts {
			out = append(out, qc.Hash)
		}
		cursor = body.Next.Cursor
		if cursor == "" {
			break
		}
	}
	return out
}

// Wire shapes of the provider API, kept separate from the exported types so
// provider renames stay contained here.

type apiUser struct {
	Fid             uint64 `json:"fid"`
	Username        string `json:"username"`
	CustodyAddress  string `json:"custody_address"`
	VerifiedAddrs   struct {
		EthAddresses []string `json:"eth_addresses"`
	} `json:"verified_addresses"`
	Score float64 `json:"score"`
}

func (u apiUser) toUser() *User {
	return &User{
		Fid:           u.Fid,
		Username:      u.Username,
		CustodyAddr:   u.CustodyAddress,
		VerifiedAddrs: u.VerifiedAddrs.EthAddresses,
		Score:         u.Score,
	}
}

type apiCast struct {
	Hash   string `json:"hash"`
	Author struct {
		Fid uint64 `json:"fid"`
	} `json:"author"`
	Text      string `json:"text"`
	Reactions struct {
		LikesCount   uint64 `json:"likes_count"`
		RecastsCount uint64 `json:"recasts_count"`
	} `json:"reactions"`
	Replies struct {
		Count uint64 `json:"count"`
	} `json:"replies"`
}

func (c apiCast) toCast() *Cast {
	return &Cast{
		Hash:      c.Hash,
		AuthorFid: c.Author.Fid,
		Text:      c.Text,
		Likes:     c.Reactions.LikesCount,
		Recasts:   c.Reactions.RecastsCount,
		Replies:   c.Replies.Count,
	}
}
