/*

This file contains the social proof extractor: a weighted union of three
independent identity signals (ENS name, POAP count, NFT contract diversity).
The three services are unrelated; each sub-signal is best-effort, and a
failed fetch degrades that contribution to zero instead of failing the
factor.

*/

package extractor

import (
	"context"
	"math"
	"strings"
	"sync"

	"github.com/openscore/engine/internal/logger"
	"github.com/openscore/engine/internal/types"
)

var socialLogger = logger.GetForComponent("social_extractor")

const (
	// ensContribution is the flat contribution of a resolved ENS name.
	ensContribution = 0.3
	// poapMaxContribution saturates at ten POAPs.
	poapMaxContribution = 0.4
	poapSaturationCount = 10.0
	// nftMaxContribution saturates at five distinct NFT contracts.
	nftMaxContribution     = 0.3
	nftSaturationContracts = 5.0
)

// SocialProof sums three capped sub-signals and clamps to one: a resolved
// ENS name contributes 0.3 flat, POAP count contributes up to 0.4, and NFT
// contract diversity contributes up to 0.3. The sub-signals run
// concurrently; a nil client or a fetch failure contributes zero.
func (e *Extractor) SocialProof(ctx context.Context, user string) (float64, error) {
	var ensPart, poapPart, nftPart float64

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		if e.ens == nil {
			return
		}
		name, err := e.ens.ResolveName(ctx, user)
		if err != nil {
			socialLogger.Warn().
				Err(err).
				Str("user", user).
				Msg("ENS resolution failed, sub-signal contributes zero")
			return
		}
		if name != "" {
			ensPart = ensContribution
		}
	}()

	go func() {
		defer wg.Done()
		if e.poap == nil {
			return
		}
		poaps, err := e.poap.ListPoaps(ctx, user)
		if err != nil {
			socialLogger.Warn().
				Err(err).
				Str("user", user).
				Msg("POAP fetch failed, sub-signal contributes zero")
			return
		}
		poapPart = math.Min(float64(len(poaps))/poapSaturationCount*poapMaxContribution, poapMaxContribution)
	}()

	go func() {
		defer wg.Done()
		if e.nft == nil {
			return
		}
		nfts, err := e.nft.ListOwnedNfts(ctx, user)
		if err != nil {
			socialLogger.Warn().
				Err(err).
				Str("user", user).
				Msg("NFT fetch failed, sub-signal contributes zero")
			return
		}
		contracts := make(map[string]struct{})
		for _, nft := range nfts {
			if nft.ContractAddress == "" {
				continue
			}
			contracts[strings.ToLower(nft.ContractAddress)] = struct{}{}
		}
		nftPart = math.Min(float64(len(contracts))/nftSaturationContracts*nftMaxContribution, nftMaxContribution)
	}()

	wg.Wait()

	value := math.Min(ensPart+poapPart+nftPart, 1.0)

	socialLogger.Debug().
		Str("user", user).
		Float64("ensPart", ensPart).
		Float64("poapPart", poapPart).
		Float64("nftPart", nftPart).
		Float64("factor", value).
		Msg("Social proof calculated")

	return checkFactor(types.FactorSocial, value)
}
