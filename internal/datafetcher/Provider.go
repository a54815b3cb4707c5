package datafetcher

import (
	"context"

	"github.com/rainman456/Dllm-Demo-Saros/internal/types"
)

// Provider is the source of position and bin state. Implementations wrap fetch
// failures with types.ErrDataUnavailable.
type Provider interface {
	// FetchPositions returns the wallet's positions, restricted to poolFilter when it is not empty.
	FetchPositions(ctx context.Context, wallet, poolFilter string) ([]types.Position, error)

	// FetchBinSamples returns the bins of poolAddress in [fromBin, toBin], ordered by bin id.
	FetchBinSamples(ctx context.Context, poolAddress string, fromBin, toBin int) ([]types.BinSample, error)
}
