package source

import (
	"context"
	"fmt"

	"github.com/r3e-network/price-oracle/internal/symbolmap"
	"github.com/r3e-network/price-oracle/internal/types"
)

// OKExAdapter fetches spot ticker data from OKX's public REST API.
type OKExAdapter struct {
	cfg     Config
	client  httpClient
	symbols *symbolmap.SymbolMap
}

func NewOKExAdapter(cfg Config, client httpClient, symbols *symbolmap.SymbolMap) *OKExAdapter {
	return &OKExAdapter{cfg: cfg, client: client, symbols: symbols}
}

func (a *OKExAdapter) SourceName() string { return "okex" }
func (a *OKExAdapter) IsEnabled() bool    { return a.cfg.Enabled && a.cfg.BaseURL != "" }

func (a *OKExAdapter) GetSupportedSymbols(ctx context.Context) ([]string, error) {
	return a.symbols.GetSymbolsForDataSource(a.SourceName()), nil
}

func (a *OKExAdapter) GetPriceData(ctx context.Context, symbol string) (types.PriceObservation, error) {
	obs, err := a.GetPriceDataBatch(ctx, []string{symbol})
	if err != nil {
		return types.PriceObservation{}, err
	}
	if len(obs) == 0 {
		return types.PriceObservation{}, fmt.Errorf("okex: no data for %s", symbol)
	}
	return obs[0], nil
}

func (a *OKExAdapter) GetPriceDataBatch(ctx context.Context, symbols []string) ([]types.PriceObservation, error) {
	var out []types.PriceObservation
	for _, symbol := range symbols {
		if !a.symbols.IsSymbolSupportedBySource(symbol, a.SourceName()) {
			continue
		}
		sourceSymbol := a.symbols.GetSourceSymbol(symbol, a.SourceName())

		var data struct {
			Data []struct {
				Last   string `json:"last"`
				Vol24h string `json:"vol24h"`
			} `json:"data"`
		}
		url := fmt.Sprintf("%s/api/v5/market/ticker?instId=%s", a.cfg.BaseURL, sourceSymbol)
		if err := fetchJSON(ctx, a.client, a.SourceName(), url, nil, &data); err != nil {
			continue
		}
		if len(data.Data) == 0 {
			continue
		}

		price, err := parseDecimal(data.Data[0].Last)
		if err != nil {
			continue
		}
		volume, _ := parseDecimal(data.Data[0].Vol24h)

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
