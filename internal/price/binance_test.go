package price

import (
	"testing"

	"github.com/adshao/go-binance/v2"
	"github.com/stretchr/testify/assert"

	"pair-alert-bot/internal/types"
)

func TestBinanceProvider_Snapshot(t *testing.T) {
	prices := []*binance.SymbolPrice{
		{Symbol: "BTCUSDC", Price: "60000.50"},
		{Symbol: "ETHUSDC", Price: "3000"},
		{Symbol: "ETHBTC", Price: "0.05"},
		{Symbol: "PEPEUSDC", Price: "0.00001"},
		{Symbol: "BADUSDC", Price: "n/a"},
	}

	all := NewBinanceProvider(nil, "usdc", nil).snapshot(prices)
	assert.Equal(t, types.Snapshot{"USDC": 1, "BTC": 60000.50, "ETH": 3000, "PEPE": 0.00001}, all)

	filtered := NewBinanceProvider(nil, "USDC", []string{"BTC", "USDC"}).snapshot(prices)
	assert.Equal(t, types.Snapshot{"USDC": 1, "BTC": 60000.50}, filtered)

	noQuote := NewBinanceProvider(nil, "USDC", []string{"BTC"}).snapshot(prices)
	assert.Equal(t, types.Snapshot{"BTC": 60000.50}, noQuote)
}
