package airdrop

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/canopy-network/stakedrop/pkg/merkle"
	"github.com/canopy-network/stakedrop/pkg/twab"
)

// Manifest is the published description of one distribution.
type Manifest struct {
	MerkleTree         MerkleTree `json:"merkleTree"`
	ChainID            uint64     `json:"chainId"`
	StartHeight        uint64     `json:"startBlockHeight"`
	EndHeight          uint64     `json:"endBlockHeight"`
	StartDate          *time.Time `json:"startDate,omitempty"`
	EndDate            *time.Time `json:"endDate,omitempty"`
	AverageTotalStaked Amount     `json:"averageTotalStaked"`
	DroppedAmount      Amount     `json:"droppedAmount"`
	TotalClaimable     Amount     `json:"totalClaimable"`
	APY                float64    `json:"apy"`
}

type MerkleTree struct {
	Root   merkle.Hash `json:"root"`
	Width  int         `json:"width"`
	Height int         `json:"height"`
	Claims []Claim     `json:"claims"`
}

// Claim is what a participant submits to the claim contract.
type Claim struct {
	Address      string        `json:"address"`
	AverageStake Amount        `json:"averageStake"`
	Value        Amount        `json:"value"`
	Node         merkle.Hash   `json:"node"`
	Proof        []merkle.Hash `json:"proof"`
}

// ManifestParams describes the window a manifest covers.
type ManifestParams struct {
	ChainID   uint64
	Interval  twab.Interval
	StartDate time.Time
	EndDate   time.Time
	Dropped   *big.Int
}

// BuildManifest builds the Merkle tree over the claim leaves and attaches a proof to every claim.
func BuildManifest(claims []ClaimRecord, p ManifestParams) (*Manifest, error) {
	if err := p.Interval.Validate(); err != nil {
		return nil, err
	}
	if p.Dropped == nil || p.Dropped.Sign() < 0 {
		return nil, ErrNegativeAmount
	}

	leaves := make([]merkle.Hash, len(claims))
	for i, c := range claims {
		leaves[i] = c.Leaf
	}
	tree := merkle.New(leaves)

	out := make([]Claim, 0, len(claims))
	for _, c := range claims {
		proof, err := tree.Proof(c.Leaf)
		if err != nil {
			return nil, fmt.Errorf("proof for %s: %w", c.Address, err)
		}
		out = append(out, Claim{
			Address:      c.Address,
			AverageStake: NewAmount(c.Average),
			Value:        NewAmount(c.Value),
			Node:         c.Leaf,
			Proof:        proof,
		})
	}

	averageTotal, claimable := Totals(claims)
	m := &Manifest{
		MerkleTree: MerkleTree{
			Root:   tree.Root(),
			Width:  tree.Width(),
			Height: tree.Height(),
			Claims: out,
		},
		ChainID:            p.ChainID,
		StartHeight:        p.Interval.Start,
		EndHeight:          p.Interval.End,
		AverageTotalStaked: NewAmount(averageTotal),
		DroppedAmount:      NewAmount(p.Dropped),
		TotalClaimable:     NewAmount(claimable),
	}
	if !p.StartDate.IsZero() && !p.EndDate.IsZero() {
		start, end := p.StartDate.UTC(), p.EndDate.UTC()
		m.StartDate, m.EndDate = &start, &end
		m.APY = APY(p.Dropped, averageTotal, end.Sub(start))
	}
	return m, nil
}

// Build runs allocation and manifest construction in one step.
func Build(averages []twab.Result, p ManifestParams) (*Manifest, error) {
	claims, err := Allocate(averages, p.Dropped)
	if err != nil {
		return nil, err
	}
	return BuildManifest(claims, p)
}

// ClaimFor looks up the claim of address, accepting any casing or a 0x prefix.
func (m *Manifest) ClaimFor(address string) (Claim, bool) {
	addr, err := twab.CanonicalAddress(address)
	if err != nil {
		return Claim{}, false
	}
	for _, c := range m.MerkleTree.Claims {
		if c.Address == addr {
			return c, true
		}
	}
	return Claim{}, false
}

var ErrInvalidProof = errors.New("airdrop: proof does not match root")

// VerifyClaim recomputes the leaf from address and value and checks it against root using proof.
func VerifyClaim(root merkle.Hash, address string, value *big.Int, proof []merkle.Hash) error {
	leaf, err := LeafHash(address, value)
	if err != nil {
		return err
	}
	if !merkle.Verify(proof, root, leaf) {
		return ErrInvalidProof
	}
	return nil
}

// Verify checks every claim of the manifest against its root.
func (m *Manifest) Verify() error {
	for _, c := range m.MerkleTree.Claims {
		if err := VerifyClaim(m.MerkleTree.Root, c.Address, c.Value.Int(), c.Proof); err != nil {
			return fmt.Errorf("claim %s: %w", c.Address, err)
		}
	}
	return nil
}
