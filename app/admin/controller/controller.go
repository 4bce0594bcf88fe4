package controller

import (
	"net/http"

	"github.com/canopy-network/stakedrop/app/admin/types"
	"github.com/canopy-network/stakedrop/pkg/utils"
	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/mux"
)

type Controller struct {
	App        *types.App
	AdminToken string
	Users      map[string]types.User
	JWTSecret  []byte
}

// NewController reads credentials from ADMIN_TOKEN, ADMIN_USER / ADMIN_PASSWORD, ADMIN_USERS
// (a JSON map of extra users) and SESSION_SECRET.
func NewController(app *types.App) *Controller {
	adminUser := utils.Env("ADMIN_USER", "admin")
	phash, _ := utils.PasswordHash(utils.Env("ADMIN_PASSWORD", "admin"))

	users := map[string]types.User{}
	users[adminUser] = types.User{Username: adminUser, Hash: phash, Role: "admin"}
	if extra := utils.Env("ADMIN_USERS", ""); extra != "" {
		_ = json.Unmarshal([]byte(extra), &users)
	}

	return &Controller{
		App:        app,
		AdminToken: utils.Env("ADMIN_TOKEN", "devtoken"),
		Users:      users,
		JWTSecret:  []byte(utils.Env("SESSION_SECRET", "change-me-please")),
	}
}

// WithCORS echoes the request origin so cookie sessions work from the dashboard.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", http.MethodGet+", "+http.MethodPost+", "+http.MethodOptions)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (c *Controller) NewRouter() (*mux.Router, error) {
	r := mux.NewRouter()

	r.Handle("/api/health", http.HandlerFunc(c.HandleHealth)).Methods(http.MethodGet)

	r.HandleFunc("/api/auth/login", c.HandleAdminLogin).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/logout", c.HandleAdminLogout).Methods(http.MethodPost)

	r.Handle("/api/chains/{id}/snapshots", c.RequireAuth(http.HandlerFunc(c.HandleSnapshotsList))).Methods(http.MethodGet)
	r.Handle("/api/chains/{id}/snapshots/{root}", c.RequireAuth(http.HandlerFunc(c.HandleSnapshotDetail))).Methods(http.MethodGet)
	r.Handle("/api/snapshots", c.RequireAdmin(http.HandlerFunc(c.HandleSnapshotStart))).Methods(http.MethodPost)
	r.Handle("/api/schedules", c.RequireAdmin(http.HandlerFunc(c.HandleScheduleUpsert))).Methods(http.MethodPost)

	return r, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
