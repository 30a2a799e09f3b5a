package commands

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"pair-alert-bot/internal/price"
	"pair-alert-bot/internal/types"
	"pair-alert-bot/lib/helpers"
	"pair-alert-bot/lib/translation"
)

// Telegram limits for setMyShortDescription and setMyDescription
const (
	ShortDescriptionLimit = 120
	DescriptionLimit      = 512
)

var (
	headlineSymbols = []string{"BTC", "ETH", "BNB", "SOL", "XRP"}
	stablecoins     = []string{"USDT", "USDC", "DAI"}
)

// CommandDescription is the static description used until the first snapshot arrives
func CommandDescription() string {
	return translation.Translate("A simple bot for displaying cryptocurrency rates and setting notifications")
}

// CommandShortDescription lists the headline instruments quoted in quote
func CommandShortDescription(s types.Snapshot, quote string) string {
	return listing(headlineSymbols, s, quote, ShortDescriptionLimit)
}

// CommandLongDescription lists every instrument except stablecoins
func CommandLongDescription(s types.Snapshot, quote string) string {
	symbols := lo.Filter(sortedSymbols(s), func(symbol string, _ int) bool {
		return !lo.Contains(stablecoins, symbol)
	})
	return listing(symbols, s, quote, DescriptionLimit)
}

// CommandRates renders the full MarkdownV2 rates listing with exchange links
func CommandRates(s types.Snapshot, quote string, updated time.Time) string {
	var b strings.Builder
	b.WriteString("*" + helpers.EscapeMarkdownV2(translation.Translate("Cryptocurrency rates:")) + "*")

	for _, symbol := range sortedSymbols(s) {
		if symbol == quote {
			continue
		}

		pair := helpers.EscapeMarkdownV2(fmt.Sprintf("%s/%s", symbol, quote))
		value, ok := quoteValue(s, symbol, quote)
		if !ok {
			b.WriteString(fmt.Sprintf("\n*%s*: %s", pair, helpers.EscapeMarkdownV2(translation.Translate("Not found"))))
			continue
		}

		b.WriteString(fmt.Sprintf("\n*%s*: [%s %s](https://www.binance.com/en/trade/%s_%s?type=spot)",
			pair, helpers.FormatPriceUS(value, true), helpers.EscapeMarkdownV2(quote), symbol, quote))
	}

	if !updated.IsZero() {
		b.WriteString("\n\n_" + helpers.EscapeMarkdownV2(translation.Translate("Updated %s", humanize.Time(updated))) + "_")
	}
	return b.String()
}

// CommandPairRate renders the current a/b rate as the tail of a sentence,
// e.g. ": 60000 USDC", or explains why it is unavailable.
func CommandPairRate(s types.Snapshot, a, b string) string {
	v, err := price.Ratio(s, a, b)
	switch {
	case err == nil:
		return fmt.Sprintf(": %s %s", price.FormatRatio(v), b)
	case errors.Is(err, price.ErrDenominatorTooSmall):
		return translation.Translate("... The value of the cryptocurrency \"%s\" is 0, calculation cannot be performed", b)
	}

	missing := a
	if _, ok := s[a]; ok {
		missing = b
	}
	return translation.Translate("... The specified cryptocurrency pair was not found! I couldn't find \"%s\"", missing)
}

func listing(symbols []string, s types.Snapshot, quote string, limit int) string {
	var b strings.Builder
	b.WriteString(translation.Translate("Cryptocurrency rates:"))

	for _, symbol := range symbols {
		text := translation.Translate("Not found")
		if value, ok := quoteValue(s, symbol, quote); ok {
			text = helpers.FormatPriceUS(value, false)
		}

		item := fmt.Sprintf(" %s/%s: %s,", symbol, quote, text)
		if utf8.RuneCountInString(b.String())+utf8.RuneCountInString(item) >= limit {
			break
		}
		b.WriteString(item)
	}
	return strings.TrimSuffix(b.String(), ",")
}

// quoteValue prices symbol in quote; a quote missing from the snapshot counts as 1
func quoteValue(s types.Snapshot, symbol, quote string) (float64, bool) {
	p, ok := s[symbol]
	if !ok {
		return 0, false
	}
	q, ok := s[quote]
	if !ok {
		q = 1
	}
	if q <= price.MinDenominator {
		return 0, false
	}
	return p / q, true
}

func sortedSymbols(s types.Snapshot) []string {
	symbols := s.Symbols()
	sort.Strings(symbols)
	return symbols
}
