/*

This is a custom type for the tokens making up a DLMM pool.

*/

package types

// TokenInfo describes one side of a pool.
type TokenInfo struct {
	Symbol   string `json:"symbol"`   // e.g., "SOL"
	Mint     string `json:"mint"`     // SPL mint address
	Decimals int    `json:"decimals"` // e.g., 9 for SOL, 6 for USDC
}
