package airdrop

import "errors"

var (
	// ErrNoParticipants is returned when every average is zero so nothing can be split.
	ErrNoParticipants = errors.New("airdrop: total average is zero, no participants")
	ErrNegativeAmount = errors.New("airdrop: amount must not be negative")
	// ErrAmountOverflow is returned when a claim does not fit the 32 byte leaf encoding.
	ErrAmountOverflow = errors.New("airdrop: amount exceeds 256 bits")
)
