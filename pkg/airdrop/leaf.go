package airdrop

import (
	"math/big"

	"github.com/canopy-network/stakedrop/pkg/merkle"
	"github.com/canopy-network/stakedrop/pkg/twab"
)

// AmountLength is the width of the big-endian amount inside a leaf.
const AmountLength = 32

// LeafHash encodes keccak256(address[20] ++ uint256be(amount)), the layout claim contracts verify.
func LeafHash(address string, amount *big.Int) (merkle.Hash, error) {
	addr, err := twab.AddressBytes(address)
	if err != nil {
		return merkle.Hash{}, err
	}
	if amount == nil || amount.Sign() < 0 {
		return merkle.Hash{}, ErrNegativeAmount
	}
	if amount.BitLen() > AmountLength*8 {
		return merkle.Hash{}, ErrAmountOverflow
	}
	var buf [twab.AddressLength + AmountLength]byte
	copy(buf[:twab.AddressLength], addr[:])
	amount.FillBytes(buf[twab.AddressLength:])
	return merkle.Keccak256(buf[:]), nil
}
