package source

import (
	"context"
	"fmt"

	"github.com/r3e-network/price-oracle/internal/symbolmap"
	"github.com/r3e-network/price-oracle/internal/types"
)

// BinanceAdapter fetches spot ticker data from Binance's public REST API.
type BinanceAdapter struct {
	cfg     Config
	client  httpClient
	symbols *symbolmap.SymbolMap
}

// NewBinanceAdapter builds a Binance adapter.
func NewBinanceAdapter(cfg Config, client httpClient, symbols *symbolmap.SymbolMap) *BinanceAdapter {
	return &BinanceAdapter{cfg: cfg, client: client, symbols: symbols}
}

func (a *BinanceAdapter) SourceName() string { return "binance" }
func (a *BinanceAdapter) IsEnabled() bool    { return a.cfg.Enabled && a.cfg.BaseURL != "" }

func (a *BinanceAdapter) GetSupportedSymbols(ctx context.Context) ([]string, error) {
	return a.symbols.GetSymbolsForDataSource(a.SourceName()), nil
}

func (a *BinanceAdapter) GetPriceData(ctx context.Context, symbol string) (types.PriceObservation, error) {
	obs, err := a.GetPriceDataBatch(ctx, []string{symbol})
	if err != nil {
		return types.PriceObservation{}, err
	}
	if len(obs) == 0 {
		return types.PriceObservation{}, fmt.Errorf("binance: no data for %s", symbol)
	}
	return obs[0], nil
}

func (a *BinanceAdapter) GetPriceDataBatch(ctx context.Context, symbols []string) ([]types.PriceObservation, error) {
	var out []types.PriceObservation
	for _, symbol := range symbols {
		if !a.symbols.IsSymbolSupportedBySource(symbol, a.SourceName()) {
			continue
		}
		sourceSymbol := a.symbols.GetSourceSymbol(symbol, a.SourceName())

		var data struct {
			LastPrice string `json:"lastPrice"`
			Volume    string `json:"volume"`
		}
		url := fmt.Sprintf("%s/ticker/24hr?symbol=%s", a.cfg.BaseURL, sourceSymbol)
		if err := fetchJSON(ctx, a.client, a.SourceName(), url, nil, &data); err != nil {
			continue // adapter errors are per-symbol omissions, not cycle failures
		}

		price, err := parseDecimal(data.LastPrice)
		if err != nil {
			continue
		}
		volume, _ := parseDecimal(data.Volume)

		out = append(out, types.PriceObservation{
			Symbol:    symbol,
			Source:    a.SourceName(),
			Price:     price,
			Volume:    volume,
			Timestamp: now().UTC(),
			Metadata:  map[string]string{"pair": sourceSymbol},
		})
	}
	return out, nil
}
