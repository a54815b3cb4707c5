// Package rangemath converts between DLMM bin ids and prices.
//
// Bins are priced geometrically: price(binId) = (1 + binStep/10000)^binId, with binStep in basis points.
package rangemath

import (
	"errors"
	"fmt"
	"math"

	"github.com/rainman456/Dllm-Demo-Saros/internal/types"
)

// snapEpsilon absorbs log/pow rounding so that exact bin prices map back onto their own bin.
const snapEpsilon = 1e-9

// PriceFromBinID returns the price of binID.
func PriceFromBinID(binID, binStep int) (float64, error) {
	base, err := binBase(binStep)
	if err != nil {
		return 0, err
	}
	return math.Pow(base, float64(binID)), nil
}

// BinIDFromPrice returns the bin whose price band contains price (floor of the log quotient).
func BinIDFromPrice(price float64, binStep int) (int, error) {
	q, err := logQuotient(price, binStep)
	if err != nil {
		return 0, err
	}
	return int(math.Floor(snap(q))), nil
}

// ComputeRange returns the bin band covering price*(1-width/2) .. price*(1+width/2).
// The bin of price itself always lies inside the returned band.
func ComputeRange(price, width float64, binStep int) (types.BinRange, error) {
	if math.IsNaN(width) || width <= 0 || width >= 2 {
		return types.BinRange{}, errors.Join(types.ErrInvalidInput, fmt.Errorf("range width must be in (0, 2), got %v", width))
	}
	if _, err := logQuotient(price, binStep); err != nil {
		return types.BinRange{}, err
	}

	lower, err := BinIDFromPrice(price*(1-width/2), binStep)
	if err != nil {
		return types.BinRange{}, err
	}
	q, err := logQuotient(price*(1+width/2), binStep)
	if err != nil {
		return types.BinRange{}, err
	}
	return types.BinRange{Lower: lower, Upper: int(math.Ceil(snap(q)))}, nil
}

func binBase(binStep int) (float64, error) {
	if binStep <= 0 {
		return 0, errors.Join(types.ErrInvalidInput, fmt.Errorf("bin step must be positive, got %d", binStep))
	}
	return 1 + float64(binStep)/10000, nil
}

func logQuotient(price float64, binStep int) (float64, error) {
	base, err := binBase(binStep)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return 0, errors.Join(types.ErrInvalidInput, fmt.Errorf("price must be positive and finite, got %v", price))
	}
	return math.Log(price) / math.Log(base), nil
}

func snap(q float64) float64 {
	if r := math.Round(q); math.Abs(q-r) < snapEpsilon {
		return r
	}
	return q
}
