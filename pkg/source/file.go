package source

import (
	"context"
	"fmt"
	"math/big"
	"os"

	"github.com/canopy-network/stakedrop/pkg/twab"
	"github.com/go-jose/go-jose/v4/json"
)

// FileEvent is the on-disk form of a change event. Value is a base-10 string so amounts above
// 2^53 survive JSON tooling.
type FileEvent struct {
	Address  string `json:"address"`
	Position uint64 `json:"position"`
	Tiebreak uint64 `json:"tiebreak,omitempty"`
	Value    string `json:"value"`
}

// File serves events from a JSON array, for offline runs and replays.
type File struct {
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (s *File) Events(_ context.Context, iv twab.Interval) ([]twab.ChangeEvent, error) {
	if err := iv.Validate(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read events file: %w", err)
	}
	var in []FileEvent
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("decode events file %s: %w", s.path, err)
	}

	out := make([]twab.ChangeEvent, 0, len(in))
	for _, e := range in {
		if e.Position >= iv.End {
			continue
		}
		ev := twab.ChangeEvent{Address: e.Address, Position: e.Position, Tiebreak: e.Tiebreak}
		if v, ok := new(big.Int).SetString(e.Value, 10); ok {
			ev.Value = v
		}
		// unparsable values stay nil and are rejected by twab.Normalize
		out = append(out, ev)
	}
	return out, nil
}
