package controller

import (
	"errors"
	"net/http"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/mux"

	"github.com/neynartodes/contesthub/pkg/kv"
)

// Contest message strings are display copy only, the one record allowed to
// live on the in-memory fallback.

func (c *Controller) HandleGetMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	msg, err := c.App.Store.GetMessage(ctx, id)
	if errors.Is(err, kv.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no message")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "message": msg})
}

func (c *Controller) HandlePutMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	var in struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if in.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	if err := c.App.Store.SetMessage(ctx, id, in.Message); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "message": in.Message})
}
