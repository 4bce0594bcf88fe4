package twab

import (
	"cmp"
	"math/big"
	"slices"
)

// ChangeEvent records the balance an address held from Position onwards.
// Value is the new total, never a delta. Tiebreak orders events that share a position.
type ChangeEvent struct {
	Address  string
	Position uint64
	Tiebreak uint64
	Value    *big.Int
}

// compareEvents orders events by (Position, Tiebreak).
func compareEvents(a, b ChangeEvent) int {
	if c := cmp.Compare(a.Position, b.Position); c != 0 {
		return c
	}
	return cmp.Compare(a.Tiebreak, b.Tiebreak)
}

// Normalize validates raw events, groups them by canonical address and sorts each group by
// (Position, Tiebreak). When several events share a position only the last one survives.
// The input slice is not modified.
func Normalize(events []ChangeEvent) (map[string][]ChangeEvent, error) {
	grouped := make(map[string][]ChangeEvent)
	for _, e := range events {
		addr, err := CanonicalAddress(e.Address)
		if err != nil {
			return nil, &MalformedEventError{Address: e.Address, Position: e.Position, Reason: err.Error()}
		}
		if e.Value == nil {
			return nil, &MalformedEventError{Address: e.Address, Position: e.Position, Reason: "missing value"}
		}
		if e.Value.Sign() < 0 {
			return nil, &MalformedEventError{Address: e.Address, Position: e.Position, Reason: "negative value"}
		}
		e.Address = addr
		grouped[addr] = append(grouped[addr], e)
	}

	for addr, evs := range grouped {
		slices.SortStableFunc(evs, compareEvents)
		grouped[addr] = lastPerPosition(evs)
	}
	return grouped, nil
}

// lastPerPosition compacts a sorted slice in place, keeping the final event of each position.
func lastPerPosition(evs []ChangeEvent) []ChangeEvent {
	out := evs[:0]
	for i, e := range evs {
		if i+1 < len(evs) && evs[i+1].Position == e.Position {
			continue
		}
		out = append(out, e)
	}
	return out
}
