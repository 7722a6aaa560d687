/*

This file contains the raw upstream signal shapes consumed by the factor
extractors. None of these are persisted by the engine; they are fetched fresh
per request from the subgraph gateway and the NFT/POAP/ENS services.

*/

package types

// UserReserve is one lending position row from the subgraph. Balances are
// protocol-internal scaled amounts and require division by 10^Decimals to
// reach human token units.
type UserReserve struct {
	ReserveID                string `json:"reserve_id"`
	Symbol                   string `json:"symbol"`
	Decimals                 int    `json:"decimals"`
	ScaledATokenBalance      string `json:"scaled_atoken_balance"`
	ScaledVariableDebt       string `json:"scaled_variable_debt"`
	PrincipalStableDebt      string `json:"principal_stable_debt"`
	UsageAsCollateralEnabled bool   `json:"usage_as_collateral_enabled"`
}

// RepayEvent is one repay record from the subgraph, newest-first ordering.
type RepayEvent struct {
	Timestamp int64  `json:"timestamp"`
	Amount    string `json:"amount"`
	TxHash    string `json:"tx_hash"`
}

// ActivityRecord is one protocol interaction (supply, withdraw, borrow,
// repay or liquidation call). Only the timestamp matters for scoring.
type ActivityRecord struct {
	Timestamp int64 `json:"timestamp"`
}

// OwnedNft is one NFT ownership row from the NFT-ownership service.
type OwnedNft struct {
	ContractAddress string `json:"contract_address"`
	TokenID         string `json:"token_id"`
}

// PoapToken is one POAP ownership row.
type PoapToken struct {
	TokenID string    `json:"token_id"`
	Owner   string    `json:"owner"`
	Created string    `json:"created"`
	Event   PoapEvent `json:"event"`
}

// PoapEvent describes the event a POAP was minted for.
type PoapEvent struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
