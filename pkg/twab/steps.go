package twab

import (
	"math/big"
)

// StepSegment is one constant-value piece of a balance step function.
type StepSegment struct {
	Weight *big.Int
	Value  *big.Int
}

// BuildSteps turns the sorted, deduplicated events of one address into step segments over iv.
// It reports false when no event happens before iv.End, meaning the address holds nothing in the
// interval.
//
// A single relevant event yields one segment of full width carrying its value, even if that
// event lands after iv.Start. Otherwise the balance before the first event is zero, the last
// value is carried to iv.End, and every position is clamped to [iv.Start, iv.End].
func BuildSteps(events []ChangeEvent, iv Interval) ([]StepSegment, bool) {
	firstIdx, lastIdx := -1, -1
	for i, e := range events {
		if e.Position >= iv.End {
			break
		}
		if e.Position < iv.Start {
			firstIdx = i
		}
		lastIdx = i
	}
	if lastIdx < 0 {
		return nil, false
	}

	from := max(firstIdx, 0)
	relevant := lastPerPosition(append([]ChangeEvent(nil), events[from:lastIdx+1]...))
	if len(relevant) == 1 {
		return []StepSegment{{
			Weight: new(big.Int).SetUint64(iv.Width()),
			Value:  relevant[0].Value,
		}}, true
	}

	points := make([]ChangeEvent, 0, len(relevant)+2)
	if firstIdx < 0 {
		points = append(points, ChangeEvent{Address: relevant[0].Address, Position: iv.Start, Value: new(big.Int)})
	}
	points = append(points, relevant...)
	last := relevant[len(relevant)-1]
	points = append(points, ChangeEvent{Address: last.Address, Position: iv.End, Tiebreak: last.Tiebreak, Value: last.Value})
	points = lastPerPosition(points)

	segments := make([]StepSegment, 0, len(points)-1)
	for i := 0; i+1 < len(points); i++ {
		w := iv.clamp(points[i+1].Position) - iv.clamp(points[i].Position)
		segments = append(segments, StepSegment{
			Weight: new(big.Int).SetUint64(w),
			Value:  points[i].Value,
		})
	}
	return segments, true
}
