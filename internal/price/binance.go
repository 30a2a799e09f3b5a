package price

import (
	"context"
	"strconv"
	"strings"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"pair-alert-bot/internal/types"
)

// BinanceProvider prices instruments in a single quote asset using spot tickers
type BinanceProvider struct {
	client      *binance.Client
	quote       string
	instruments []string
}

// NewBinanceProvider creates a provider quoting every instrument in quote.
// An empty instruments list keeps every asset traded against quote.
func NewBinanceProvider(client *binance.Client, quote string, instruments []string) *BinanceProvider {
	return &BinanceProvider{
		client:      client,
		quote:       strings.ToUpper(quote),
		instruments: instruments,
	}
}

func (p *BinanceProvider) Name() string {
	return "binance"
}

func (p *BinanceProvider) Prices(ctx context.Context) (types.Snapshot, error) {
	prices, err := p.client.NewListPricesService().Do(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "could not list binance prices")
	}
	return p.snapshot(prices), nil
}

func (p *BinanceProvider) snapshot(prices []*binance.SymbolPrice) types.Snapshot {
	snapshot := types.Snapshot{p.quote: 1}

	for _, sp := range prices {
		if !strings.HasSuffix(sp.Symbol, p.quote) {
			continue
		}
		asset := strings.TrimSuffix(sp.Symbol, p.quote)
		if asset == "" {
			continue
		}
		if len(p.instruments) > 0 && !lo.Contains(p.instruments, asset) {
			continue
		}

		value, err := strconv.ParseFloat(sp.Price, 64)
		if err != nil {
			continue
		}
		snapshot[asset] = value
	}

	if len(p.instruments) > 0 && !lo.Contains(p.instruments, p.quote) {
		delete(snapshot, p.quote)
	}
	return snapshot
}
