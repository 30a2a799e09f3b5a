package dialog

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MaxValue is the largest threshold a user may enter
var MaxValue = decimal.New(1, 18)

// maxExponent bounds the scientific exponent of an input; comparing a
// decimal rescales it by 10^|exp|
const maxExponent = 40

// ParseValue reads a user-entered price. It accepts a decimal comma, one
// leading "$" and one trailing " SYMBOL" naming a known instrument.
// Valid values lie in [0, 1e18].
func ParseValue(raw string, symbols []string) (float64, bool) {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, ",", ".")
	s = strings.TrimPrefix(s, "$")

	for _, symbol := range symbols {
		if suffix := " " + symbol; strings.HasSuffix(s, suffix) {
			s = strings.TrimSpace(strings.TrimSuffix(s, suffix))
			break
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	if exp := d.Exponent(); exp < -maxExponent || exp > maxExponent {
		return 0, false
	}
	if d.IsNegative() || d.GreaterThan(MaxValue) {
		return 0, false
	}

	v, _ := d.Float64()
	return v, true
}
