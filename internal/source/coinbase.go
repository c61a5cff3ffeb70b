package source

import (
	"context"
	"fmt"

	"github.com/r3e-network/price-oracle/internal/symbolmap"
	"github.com/r3e-network/price-oracle/internal/types"
)

// CoinbaseAdapter fetches spot prices from Coinbase's public REST API.
type CoinbaseAdapter struct {
	cfg     Config
	client  httpClient
	symbols *symbolmap.SymbolMap
}

func NewCoinbaseAdapter(cfg Config, client httpClient, symbols *symbolmap.SymbolMap) *CoinbaseAdapter {
	return &CoinbaseAdapter{cfg: cfg, client: client, symbols: symbols}
}

func (a *CoinbaseAdapter) SourceName() string { return "coinbase" }
func (a *CoinbaseAdapter) IsEnabled() bool    { return a.cfg.Enabled && a.cfg.BaseURL != "" }

func (a *CoinbaseAdapter) GetSupportedSymbols(ctx context.Context) ([]string, error) {
	return a.symbols.GetSymbolsForDataSource(a.SourceName()), nil
}

func (a *CoinbaseAdapter) GetPriceData(ctx context.Context, symbol string) (types.PriceObservation, error) {
	obs, err := a.GetPriceDataBatch(ctx, []string{symbol})
	if err != nil {
		return types.PriceObservation{}, err
	}
	if len(obs) == 0 {
		return types.PriceObservation{}, fmt.Errorf("coinbase: no data for %s", symbol)
	}
	return obs[0], nil
}

func (a *CoinbaseAdapter) GetPriceDataBatch(ctx context.Context, symbols []string) ([]types.PriceObservation, error) {
	var out []types.PriceObservation
	for _, symbol := range symbols {
		if !a.symbols.IsSymbolSupportedBySource(symbol, a.SourceName()) {
			continue
		}
		sourceSymbol := a.symbols.GetSourceSymbol(symbol, a.SourceName())

		var data struct {
			Data struct {
				Amount string `json:"amount"`
			} `json:"data"`
		}
		url := fmt.Sprintf("%s/prices/%s/spot", a.cfg.BaseURL, sourceSymbol)
		if err := fetchJSON(ctx, a.client, a.SourceName(), url, nil, &data); err != nil {
			continue
		}

		price, err := parseDecimal(data.Data.Amount)
		if err != nil {
			continue
		}

		out = append(out, types.PriceObservation{
			Symbol:    symbol,
			Source:    a.SourceName(),
			Price:     price,
			Timestamp: now().UTC(),
			Metadata:  map[string]string{"pair": sourceSymbol},
		})
	}
	return out, nil
}
