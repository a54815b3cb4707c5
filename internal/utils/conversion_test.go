package utils

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountToFloat64(t *testing.T) {
	tests := []struct {
		name     string
		amount   sdkmath.Int
		decimals int
		want     float64
		wantErr  error
	}{
		{"usdc", sdkmath.NewInt(1_500_000), 6, 1.5, nil},
		{"sol", sdkmath.NewInt(2_000_000_000), 9, 2, nil},
		{"zero decimals", sdkmath.NewInt(42), 0, 42, nil},
		{"negative", sdkmath.NewInt(-1), 6, 0, ErrAmountNegative},
		{"nil", sdkmath.Int{}, 6, 0, ErrAmountNil},
		{"bad decimals", sdkmath.NewInt(1), 19, 0, ErrInvalidDecimals},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AmountToFloat64(tt.amount, tt.decimals)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestFloat64ToAmount(t *testing.T) {
	got, err := Float64ToAmount(1.5, 6)
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(1_500_000).String(), got.String())

	got, err = Float64ToAmount(0.1234567891, 6)
	require.NoError(t, err)
	assert.Equal(t, "123457", got.String())

	_, err = Float64ToAmount(-1, 6)
	assert.ErrorIs(t, err, ErrAmountNegative)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "1.5 USDC", FormatAmount(sdkmath.NewInt(1_500_000), 6, "USDC"))
	assert.Equal(t, "0 SOL", FormatAmount(sdkmath.Int{}, 9, "SOL"))
}
