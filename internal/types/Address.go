package types

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var ErrInvalidAddress = errors.New("address is not a valid 20-byte hex account identifier")

// NormalizeAddress validates a chain account identifier and returns the
// canonical lowercased form used as the aggregation key for all upstream
// queries.
func NormalizeAddress(raw string) (string, error) {
	if !common.IsHexAddress(raw) {
		return "", ErrInvalidAddress
	}
	return strings.ToLower(common.HexToAddress(raw).Hex()), nil
}

// ChecksumAddress validates a chain account identifier and returns the
// EIP-55 checksummed form used for display and contract calls.
func ChecksumAddress(raw string) (string, error) {
	if !common.IsHexAddress(raw) {
		return "", ErrInvalidAddress
	}
	return common.HexToAddress(raw).Hex(), nil
}
