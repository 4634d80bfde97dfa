package controller

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-jose/go-jose/v4/json"

	"github.com/neynartodes/contesthub/pkg/contest"
)

// HandleAuthorize issues the EIP-191 entry authorization the escrow's
// enter call verifies. Denied FIDs and FIDs that already hold an entry
// never get a signature.
func (c *Controller) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if c.App.Signer == nil {
		writeError(w, http.StatusServiceUnavailable, "entry signing is not configured")
		return
	}

	var in struct {
		Fid            uint64 `json:"fid"`
		Host           string `json:"host"`
		EntrantAddress string `json:"entrantAddress"`
		ContestID      string `json:"contestId"`
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
	if !common.IsHexAddress(in.EntrantAddress) || !common.IsHexAddress(in.Host) {
		writeError(w, http.StatusBadRequest, "invalid address")
		return
	}

	if c.App.Denylist.Blocked(in.Fid) {
		writeError(w, http.StatusForbidden, "fid is not allowed to enter")
		return
	}

	entered, err := c.App.Ledger.Check(ctx, in.Fid, []contest.Key{key})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entered[key.String()].Entered {
		writeError(w, http.StatusConflict, "already entered")
		return
	}

	auth, err := c.App.Signer.Authorize(ctx, key.Family,
		common.HexToAddress(in.EntrantAddress), common.HexToAddress(in.Host))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, auth)
}
