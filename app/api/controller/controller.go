package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/mux"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	"github.com/neynartodes/contesthub/app/api/types"
	"github.com/neynartodes/contesthub/pkg/contest"
	"github.com/neynartodes/contesthub/pkg/kv"
	"github.com/neynartodes/contesthub/pkg/utils"
)

type Controller struct {
	App        *types.App
	AdminToken string
	AuthUser   string
	Users      map[string]types.User
	JWTSecret  []byte

	prizeCache *xsync.Map[string, *cachedPrizes]
}

// NewController returns a new controller.
func NewController(app *types.App) *Controller {
	adminToken := utils.Env("CRON_SECRET", "devtoken")
	adminUser := utils.Env("ADMIN_USER", "admin")
	adminUsersJSON := utils.Env("ADMIN_USERS", "")
	adminPass := utils.Env("ADMIN_PASSWORD", "admin")
	jwtSecret := []byte(utils.Env("SESSION_SECRET", "change-me-please"))

	phash, _ := utils.HashOrRead(adminPass)
	users := map[string]types.User{}
	users[adminUser] = types.User{Username: adminUser, Hash: phash, Role: "admin"}
	if adminUsersJSON != "" {
		_ = json.Unmarshal([]byte(adminUsersJSON), &users)
	}

	return &Controller{
		App:        app,
		AdminToken: adminToken,
		AuthUser:   adminUser,
		Users:      users,
		JWTSecret:  jwtSecret,
		prizeCache: xsync.NewMap[string, *cachedPrizes](),
	}
}

// NewRouter returns a new router with all the routes defined in this file.
func (c *Controller) NewRouter() (*mux.Router, error) {
	r := mux.NewRouter()

	r.Handle("/health", http.HandlerFunc(c.HandleHealth)).Methods("GET")

	// Public reads.
	r.HandleFunc("/eligibility", c.HandleEligibility).Methods("GET")
	r.HandleFunc("/check-entries", c.HandleCheckEntries).Methods("GET")
	r.HandleFunc("/leaderboard", c.HandleLeaderboard).Methods("GET")
	r.HandleFunc("/all-time-prizes", c.HandleAllTimePrizes).Methods("GET")
	r.HandleFunc("/contests/{key}", c.HandleGetContest).Methods("GET")
	r.HandleFunc("/ws", c.HandleWebSocket).Methods("GET")

	// Public writes, guarded by their own invariants rather than auth.
	r.HandleFunc("/entry", c.HandleEnter).Methods("POST")
	r.HandleFunc("/authorize", c.HandleAuthorize).Methods("POST")

	// Admin surface: bearer CRON_SECRET or a session cookie.
	r.HandleFunc("/admin/login", c.HandleAdminLogin).Methods("POST")
	r.HandleFunc("/admin/logout", c.HandleAdminLogout).Methods("POST")
	r.Handle("/store", c.RequireAdmin(http.HandlerFunc(c.HandleStoreSnapshot))).Methods("POST")
	r.Handle("/archive-season", c.RequireAdmin(http.HandlerFunc(c.HandleArchiveSeason))).Methods("POST")
	r.Handle("/finalize", c.RequireAdmin(http.HandlerFunc(c.HandleFinalize))).Methods("POST")
	r.Handle("/admin/entries", c.RequireAdmin(http.HandlerFunc(c.HandleClearEntries))).Methods("DELETE")
	r.Handle("/admin/messages/{id}", c.RequireAdmin(http.HandlerFunc(c.HandleGetMessage))).Methods("GET")
	r.Handle("/admin/messages/{id}", c.RequireAdmin(http.HandlerFunc(c.HandlePutMessage))).Methods("PUT")

	return r, nil
}

// WithCORS is a middleware that adds CORS headers to the response.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		// Development: Echo back the origin to allow credentials with any origin
		// TODO: Restrict this in production to specific domains
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", http.MethodGet+", "+http.MethodPost+", "+http.MethodPut+", "+http.MethodDelete+", "+http.MethodOptions)

		// Fast-path the preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loadContest reads the cached contest and falls through to the chain on a
// miss, warming the cache on the way back.
func (c *Controller) loadContest(ctx context.Context, key contest.Key) (*contest.Contest, error) {
	cached, err := c.App.Store.GetContest(ctx, key)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, kv.ErrNotFound) {
		return nil, err
	}
	fresh, err := c.App.Chain.GetContest(ctx, key, nil)
	if err != nil {
		return nil, err
	}
	if putErr := c.App.Store.PutContest(ctx, fresh); putErr != nil {
		c.App.Logger.Warn("Failed to cache contest", zap.String("contest", key.String()), zap.Error(putErr))
	}
	return fresh, nil
}
