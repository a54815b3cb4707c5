package types

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// ValidateAddress checks that addr is a base58 encoded Solana public key.
func ValidateAddress(addr string) error {
	if addr == "" {
		return errors.Join(ErrInvalidInput, errors.New("address is empty"))
	}
	if _, err := solana.PublicKeyFromBase58(addr); err != nil {
		return errors.Join(ErrInvalidInput, fmt.Errorf("address %q: %w", addr, err))
	}
	return nil
}
