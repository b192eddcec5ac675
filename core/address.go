package core

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Address is a wallet address in its normalized (lower-case, 0x-prefixed) form.
// Two addresses that differ only in case are the same Address.
type Address string

// NormalizeAddress canonicalizes raw into the stored and compared form.
// It does not validate; use ParseAddress for untrusted input.
func NormalizeAddress(raw string) Address {
	return Address(strings.ToLower(strings.TrimSpace(raw)))
}

// ParseAddress validates raw as a hex wallet address and returns it normalized.
func ParseAddress(raw string) (Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return "", ErrInvalidAddress
	}
	if !strings.HasPrefix(trimmed, "0x") && !strings.HasPrefix(trimmed, "0X") {
		trimmed = "0x" + trimmed
	}
	return NormalizeAddress(trimmed), nil
}

// AddressFromCommon converts a go-ethereum address (checksummed) into an Address.
func AddressFromCommon(a common.Address) Address {
	return NormalizeAddress(a.Hex())
}

// Common returns the go-ethereum representation of the address.
func (a Address) Common() common.Address {
	return common.HexToAddress(string(a))
}

// Equal reports whether a and other denote the same wallet.
func (a Address) Equal(other Address) bool {
	return NormalizeAddress(string(a)) == NormalizeAddress(string(other))
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool {
	return a == ""
}

func (a Address) String() string {
	return string(a)
}
