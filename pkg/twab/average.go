package twab

import (
	"math/big"
)

// WeightedAverage returns floor(sum(value*weight) / sum(weight)).
func WeightedAverage(segments []StepSegment) (*big.Int, error) {
	num, den := new(big.Int), new(big.Int)
	term := new(big.Int)
	for _, s := range segments {
		num.Add(num, term.Mul(s.Value, s.Weight))
		den.Add(den, s.Weight)
	}
	if den.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	return num.Quo(num, den), nil
}

// Average is the time weighted average of one address over iv. Addresses with no event before
// iv.End average to zero.
func Average(events []ChangeEvent, iv Interval) (*big.Int, error) {
	if err := iv.Validate(); err != nil {
		return nil, err
	}
	segments, ok := BuildSteps(events, iv)
	if !ok {
		return new(big.Int), nil
	}
	return WeightedAverage(segments)
}
