package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/canopy-network/stakedrop/app/query/types"
	"github.com/canopy-network/stakedrop/pkg/db/postgres/snapshots"
	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/mux"
)

type Controller struct {
	App *types.App
}

func NewController(app *types.App) *Controller {
	return &Controller{App: app}
}

// WithCORS allows read access from any origin.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
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

	r.Handle("/health", http.HandlerFunc(c.HandleHealth)).Methods(http.MethodGet)

	r.HandleFunc("/chains/{id}/snapshots", c.HandleSnapshots).Methods(http.MethodGet)
	// registered before {root} so "latest" is not taken for a root
	r.HandleFunc("/chains/{id}/snapshots/latest", c.HandleLatest).Methods(http.MethodGet)
	r.HandleFunc("/chains/{id}/snapshots/{root}", c.HandleSnapshot).Methods(http.MethodGet)
	r.HandleFunc("/chains/{id}/snapshots/{root}/manifest", c.HandleManifest).Methods(http.MethodGet)
	r.HandleFunc("/chains/{id}/snapshots/{root}/claims/{address}", c.HandleClaim).Methods(http.MethodGet)
	r.HandleFunc("/verify", c.HandleVerify).Methods(http.MethodPost)

	r.HandleFunc("/ws", c.HandleWebSocket).Methods(http.MethodGet)

	return r, nil
}

func chainID(r *http.Request) (uint64, error) {
	return strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeLookupError maps store errors: a missing snapshot is a 404, anything else a 500.
func (c *Controller) writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, snapshots.ErrNotFound) {
		writeError(w, http.StatusNotFound, "snapshot not found")
		return
	}
	writeError(w, http.StatusInternalServerError, "query failed")
}
