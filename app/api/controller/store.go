package controller

import (
	"context"
	"errors"
	"math"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-jose/go-jose/v4/json"

	"github.com/neynartodes/contesthub/pkg/contest"
	"github.com/neynartodes/contesthub/pkg/price"
)

// HandleStoreSnapshot persists a price snapshot for a contest at creation
// time. type=price runs the full discovery cascade with the liquidity gate;
// type=nft-price values a floor quoted in ETH. Re-posting overwrites the
// snapshot in place, the contest binding never changes.
func (c *Controller) HandleStoreSnapshot(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("type") {
	case "price":
		c.storeTokenPrice(w, r)
	case "nft-price":
		c.storeNFTPrice(w, r)
	default:
		writeError(w, http.StatusBadRequest, "type must be price or nft-price")
	}
}

func (c *Controller) storeTokenPrice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var in struct {
		ContestID    string `json:"contestId"`
		TokenAddress string `json:"tokenAddress"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	key, err := contest.ParseKey(in.ContestID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid contestId")
		return
	}
	if !common.IsHexAddress(in.TokenAddress) {
		writeError(w, http.StatusBadRequest, "invalid tokenAddress")
		return
	}
	token := common.HexToAddress(in.TokenAddress)

	cst, err := c.loadContest(ctx, key)
	if err != nil {
		writeError(w, http.StatusNotFound, "contest not found")
		return
	}

	quote, err := c.App.Prices.AcceptancePrice(ctx, token)
	if errors.Is(err, price.ErrInsufficientLiquidity) {
		writeError(w, http.StatusBadRequest, "insufficient liquidity")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	snap := &contest.PriceSnapshot{
		TokenAddress:  strings.ToLower(token.Hex()),
		TokenPriceUSD: quote.TokenPriceUSD,
		EthPriceUSD:   quote.EthPriceUSD,
		PriceInETH:    quote.PriceInETH,
		Source:        quote.Source,
		LiquidityUSD:  quote.LiquidityUSD,
		Timestamp:     time.Now().Unix(),
	}
	snap.PrizeValueUSD = c.prizeValue(ctx, cst, token, quote.TokenPriceUSD)

	if err := c.App.Store.PutPriceSnapshot(ctx, key, snap); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (c *Controller) storeNFTPrice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var in struct {
		ContestID  string  `json:"contestId"`
		Collection string  `json:"collection"`
		FloorEth   float64 `json:"floorEth"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	key, err := contest.ParseKey(in.ContestID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid contestId")
		return
	}
	if in.FloorEth <= 0 {
		writeError(w, http.StatusBadRequest, "floorEth must be positive")
		return
	}

	ethUSD, err := c.App.Prices.EthUSD(ctx)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	snap := &contest.PriceSnapshot{
		TokenAddress:  strings.ToLower(in.Collection),
		EthPriceUSD:   ethUSD,
		PriceInETH:    in.FloorEth,
		PrizeValueUSD: in.FloorEth * ethUSD,
		Source:        "nft-floor",
		Timestamp:     time.Now().Unix(),
	}
	if err := c.App.Store.PutNFTPriceSnapshot(ctx, key, snap); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// prizeValue converts the on-chain prize amount to USD when the priced
// token is the prize token. Decimals failures leave the value at zero
// rather than failing the snapshot.
func (c *Controller) prizeValue(ctx context.Context, cst *contest.Contest, token common.Address, priceUSD float64) float64 {
	if cst.PrizeAmount == nil || cst.PrizeAmount.Sign() == 0 {
		return 0
	}
	if !strings.EqualFold(cst.PrizeToken, token.Hex()) {
		return 0
	}
	decimals, err := c.App.Chain.TokenDecimals(ctx, token)
	if err != nil {
		return 0
	}
	scale := new(big.Float).SetFloat64(math.Pow10(int(decimals)))
	human, _ := new(big.Float).Quo(new(big.Float).SetInt(cst.PrizeAmount), scale).Float64()
	return human * priceUSD
}
