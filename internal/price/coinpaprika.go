package price

import (
	"context"
	"strings"

	"github.com/coinpaprika/coinpaprika-api-go-client/v2/coinpaprika"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"pair-alert-bot/internal/types"
)

// CoinpaprikaProvider prices instruments in USD from the coinpaprika tickers endpoint
type CoinpaprikaProvider struct {
	client      *coinpaprika.Client
	instruments []string
}

func NewCoinpaprikaProvider(client *coinpaprika.Client, instruments []string) *CoinpaprikaProvider {
	return &CoinpaprikaProvider{client: client, instruments: instruments}
}

// NewCoinpaprikaClient builds the API client, using the pro key when one is set
func NewCoinpaprikaClient(apiProKey string) *coinpaprika.Client {
	if apiProKey != "" {
		return coinpaprika.NewClient(nil, coinpaprika.WithAPIKey(apiProKey))
	}
	return coinpaprika.NewClient(nil)
}

func (p *CoinpaprikaProvider) Name() string {
	return "coinpaprika"
}

func (p *CoinpaprikaProvider) Prices(ctx context.Context) (types.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tickers, err := p.client.Tickers.List(&coinpaprika.TickersOptions{Quotes: "USD"})
	if err != nil {
		return nil, errors.Wrap(err, "could not list coinpaprika tickers")
	}
	return p.snapshot(tickers), nil
}

func (p *CoinpaprikaProvider) snapshot(tickers []*coinpaprika.Ticker) types.Snapshot {
	snapshot := types.Snapshot{}
	for _, ticker := range tickers {
		if ticker.Symbol == nil {
			continue
		}
		symbol := strings.ToUpper(*ticker.Symbol)
		if len(p.instruments) > 0 && !lo.Contains(p.instruments, symbol) {
			continue
		}
		// tickers are ranked, the first symbol match is the main coin
		if _, seen := snapshot[symbol]; seen {
			continue
		}

		quote, ok := ticker.Quotes["USD"]
		if !ok || quote.Price == nil {
			continue
		}
		snapshot[symbol] = *quote.Price
	}
	return snapshot
}
