/*

This file contains the ENS reverse resolver used by the social proof factor.

*/

package social

import (
	"context"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	ens "github.com/wealdtech/go-ens/v3"

	"github.com/openscore/engine/internal/logger"
)

var ensLogger = logger.GetForComponent("ens_resolver")

var ErrEnsBackendNil = errors.New("ENS backend cannot be nil")

// EnsResolver reverse-resolves addresses to their primary ENS name.
type EnsResolver struct {
	backend *ethclient.Client
}

// NewEnsResolver creates an ENS resolver on the given chain client.
func NewEnsResolver(backend *ethclient.Client) (*EnsResolver, error) {
	if backend == nil {
		return nil, ErrEnsBackendNil
	}
	return &EnsResolver{backend: backend}, nil
}

// ResolveName returns the primary ENS name for the address, or an empty
// string when no name is configured. Only genuine lookup failures return an
// error; "no name set" is valid input.
func (r *EnsResolver) ResolveName(ctx context.Context, address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", errors.New("address is not a valid hex account identifier")
	}

	name, err := ens.ReverseResolve(r.backend, common.HexToAddress(address))
	if err != nil {
		if isNoResolution(err) {
			ensLogger.Debug().
				Str("address", address).
				Msg("No ENS name configured for address")
			return "", nil
		}
		ensLogger.Error().
			Err(err).
			Str("address", address).
			Msg("ENS reverse resolution failed")
		return "", err
	}

	ensLogger.Debug().
		Str("address", address).
		Str("name", name).
		Msg("ENS name resolved")

	return name, nil
}

// isNoResolution distinguishes "address has no reverse record" from a real
// lookup failure.
func isNoResolution(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "no resolver") ||
		strings.Contains(msg, "no resolution") ||
		strings.Contains(msg, "not a resolver")
}
