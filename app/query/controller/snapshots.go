package controller

import (
	"math/big"
	"net/http"

	"github.com/canopy-network/stakedrop/pkg/airdrop"
	"github.com/canopy-network/stakedrop/pkg/db/postgres/snapshots"
	"github.com/canopy-network/stakedrop/pkg/merkle"
	"github.com/canopy-network/stakedrop/pkg/twab"
	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

func (c *Controller) HandleSnapshots(w http.ResponseWriter, r *http.Request) {
	id, err := chainID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chain id")
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	list, err := c.App.Store.ListSnapshots(r.Context(), id, limit)
	if err != nil {
		c.App.Logger.Error("List snapshots failed", zap.Uint64("chainID", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if list == nil {
		list = []snapshots.Snapshot{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (c *Controller) HandleLatest(w http.ResponseWriter, r *http.Request) {
	id, err := chainID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chain id")
		return
	}
	root, err := c.App.LatestRoot(r.Context(), id)
	if err != nil {
		c.writeLookupError(w, err)
		return
	}
	s, err := c.App.Store.GetSnapshot(r.Context(), id, root)
	if err != nil {
		c.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (c *Controller) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	id, err := chainID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chain id")
		return
	}
	s, err := c.App.Store.GetSnapshot(r.Context(), id, mux.Vars(r)["root"])
	if err != nil {
		c.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (c *Controller) HandleManifest(w http.ResponseWriter, r *http.Request) {
	id, err := chainID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chain id")
		return
	}
	m, err := c.App.Manifest(r.Context(), id, mux.Vars(r)["root"])
	if err != nil {
		c.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// HandleClaim returns the claim and proof of one address. The address may be given in any
// casing, with or without 0x.
func (c *Controller) HandleClaim(w http.ResponseWriter, r *http.Request) {
	id, err := chainID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chain id")
		return
	}
	vars := mux.Vars(r)
	if _, err := twab.CanonicalAddress(vars["address"]); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	m, err := c.App.Manifest(r.Context(), id, vars["root"])
	if err != nil {
		c.writeLookupError(w, err)
		return
	}
	claim, ok := m.ClaimFor(vars["address"])
	if !ok {
		writeError(w, http.StatusNotFound, "address has no claim in this snapshot")
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

type verifyRequest struct {
	Root    merkle.Hash   `json:"root"`
	Address string        `json:"address"`
	Value   string        `json:"value"`
	Proof   []merkle.Hash `json:"proof"`
}

type verifyResponse struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// HandleVerify checks a claim against a root the way the claim contract does.
func (c *Controller) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var in verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	value, ok := new(big.Int).SetString(in.Value, 10)
	if !ok || value.Sign() < 0 {
		writeError(w, http.StatusBadRequest, "value must be a non-negative base-10 integer")
		return
	}
	if err := airdrop.VerifyClaim(in.Root, in.Address, value, in.Proof); err != nil {
		writeJSON(w, http.StatusOK, verifyResponse{Valid: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, verifyResponse{Valid: true})
}
