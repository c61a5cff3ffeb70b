package source

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cockroachdb/apd/v3"

	"github.com/r3e-network/price-oracle/internal/symbolmap"
	"github.com/r3e-network/price-oracle/internal/types"
)

// CoinMarketCapAdapter fetches latest quotes from the CoinMarketCap Pro
// API. Requires an API key; disabled without one.
type CoinMarketCapAdapter struct {
	cfg     Config
	client  httpClient
	symbols *symbolmap.SymbolMap
}

func NewCoinMarketCapAdapter(cfg Config, client httpClient, symbols *symbolmap.SymbolMap) *CoinMarketCapAdapter {
	return &CoinMarketCapAdapter{cfg: cfg, client: client, symbols: symbols}
}

func (a *CoinMarketCapAdapter) SourceName() string { return "coinmarketcap" }
func (a *CoinMarketCapAdapter) IsEnabled() bool {
	return a.cfg.Enabled && a.cfg.BaseURL != "" && a.cfg.APIKey != ""
}

func (a *CoinMarketCapAdapter) GetSupportedSymbols(ctx context.Context) ([]string, error) {
	return a.symbols.GetSymbolsForDataSource(a.SourceName()), nil
}

func (a *CoinMarketCapAdapter) GetPriceData(ctx context.Context, symbol string) (types.PriceObservation, error) {
	obs, err := a.GetPriceDataBatch(ctx, []string{symbol})
	if err != nil {
		return types.PriceObservation{}, err
	}
	if len(obs) == 0 {
		return types.PriceObservation{}, fmt.Errorf("coinmarketcap: no data for %s", symbol)
	}
	return obs[0], nil
}

func (a *CoinMarketCapAdapter) GetPriceDataBatch(ctx context.Context, symbols []string) ([]types.PriceObservation, error) {
	var out []types.PriceObservation
	headers := map[string]string{"X-CMC_PRO_API_KEY": a.cfg.APIKey}

	for _, symbol := range symbols {
		if !a.symbols.IsSymbolSupportedBySource(symbol, a.SourceName()) {
			continue
		}
		sourceSymbol := a.symbols.GetSourceSymbol(symbol, a.SourceName())

		var data struct {
			Data map[string]struct {
				Quote map[string]struct {
					Price  float64 `json:"price"`
					Volume float64 `json:"volume_24h"`
				} `json:"quote"`
			} `json:"data"`
		}
		url := fmt.Sprintf("%s/v2/cryptocurrency/quotes/latest?symbol=%s&convert=USD", a.cfg.BaseURL, sourceSymbol)
		if err := fetchJSON(ctx, a.client, a.SourceName(), url, headers, &data); err != nil {
			continue
		}
		entry, ok := data.Data[sourceSymbol]
		if !ok {
			continue
		}
		quote, ok := entry.Quote["USD"]
		if !ok {
			continue
		}

		price := apd.New(0, 0)
		if _, _, err := price.SetString(strconv.FormatFloat(quote.Price, 'f', -1, 64)); err != nil {
			continue
		}
		volume := apd.New(0, 0)
		volume.SetString(strconv.FormatFloat(quote.Volume, 'f', -1, 64))

		out = append(out, types.PriceObservation{
			Symbol:    symbol,
			Source:    a.SourceName(),
			Price:     price,
			Volume:    volume,
			Timestamp: now().UTC(),
			Metadata:  map[string]string{"pair": sourceSymbol, "quoteCurrency": "USD"},
		})
	}
	return out, nil
}
