package twab

// Interval is the half-open position range [Start, End).
type Interval struct {
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
}

func NewInterval(start, end uint64) (Interval, error) {
	iv := Interval{Start: start, End: end}
	if err := iv.Validate(); err != nil {
		return Interval{}, err
	}
	return iv, nil
}

func (iv Interval) Validate() error {
	if iv.End <= iv.Start {
		return ErrInvalidInterval
	}
	return nil
}

// Width is End - Start.
func (iv Interval) Width() uint64 {
	if iv.End <= iv.Start {
		return 0
	}
	return iv.End - iv.Start
}

// clamp bounds p to the closed range [Start, End] so segment weights always sum to Width.
func (iv Interval) clamp(p uint64) uint64 {
	if p < iv.Start {
		return iv.Start
	}
	if p > iv.End {
		return iv.End
	}
	return p
}
