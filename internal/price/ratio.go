package price

import (
	"math"
	"strconv"

	"github.com/pkg/errors"

	"pair-alert-bot/internal/types"
)

// MinDenominator is the smallest quote price a ratio is computed against
const MinDenominator = 1e-18

var (
	ErrInstrumentMissing   = errors.New("instrument missing from snapshot")
	ErrDenominatorTooSmall = errors.New("quote instrument price is too small")
)

// Ratio returns price(a) / price(b) for the snapshot.
// Both errors mean the data is unavailable for this snapshot only.
func Ratio(s types.Snapshot, a, b string) (float64, error) {
	pa, ok := s[a]
	if !ok {
		return 0, errors.Wrap(ErrInstrumentMissing, a)
	}
	pb, ok := s[b]
	if !ok {
		return 0, errors.Wrap(ErrInstrumentMissing, b)
	}
	if pb <= MinDenominator {
		return 0, errors.Wrap(ErrDenominatorTooSmall, b)
	}
	return pa / pb, nil
}

// IsUnavailable reports whether err is one of the data-unavailable kinds
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrInstrumentMissing) || errors.Is(err, ErrDenominatorTooSmall)
}

// DisplayRatio rounds to 3 decimals unless that would hide a tiny value
func DisplayRatio(v float64) float64 {
	rounded := math.Round(v*1000) / 1000
	if math.Abs(rounded) <= 0.001 {
		return v
	}
	return rounded
}

// FormatRatio renders v with DisplayRatio applied
func FormatRatio(v float64) string {
	return strconv.FormatFloat(DisplayRatio(v), 'f', -1, 64)
}
