package twab

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AddressLength is the size in bytes of a participant address.
const AddressLength = 20

// CanonicalAddress lowercases s, drops an optional 0x prefix and checks it encodes AddressLength bytes.
func CanonicalAddress(s string) (string, error) {
	a := strings.ToLower(strings.TrimSpace(s))
	a = strings.TrimPrefix(a, "0x")
	if len(a) != AddressLength*2 {
		return "", fmt.Errorf("address must be %d hex characters, got %d", AddressLength*2, len(a))
	}
	if _, err := hex.DecodeString(a); err != nil {
		return "", fmt.Errorf("address is not hex: %w", err)
	}
	return a, nil
}

// AddressBytes decodes a canonical (or prefixed) address into its raw bytes.
func AddressBytes(s string) ([AddressLength]byte, error) {
	var out [AddressLength]byte
	a, err := CanonicalAddress(s)
	if err != nil {
		return out, err
	}
	b, _ := hex.DecodeString(a)
	copy(out[:], b)
	return out, nil
}
