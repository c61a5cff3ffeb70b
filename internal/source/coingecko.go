package source

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cockroachdb/apd/v3"

	"github.com/r3e-network/price-oracle/internal/symbolmap"
	"github.com/r3e-network/price-oracle/internal/types"
)

// CoinGeckoAdapter fetches simple prices from the CoinGecko API. The API
// key, when present, is sent in the x-cg-demo-api-key request header.
type CoinGeckoAdapter struct {
	cfg     Config
	client  httpClient
	symbols *symbolmap.SymbolMap
}

func NewCoinGeckoAdapter(cfg Config, client httpClient, symbols *symbolmap.SymbolMap) *CoinGeckoAdapter {
	return &CoinGeckoAdapter{cfg: cfg, client: client, symbols: symbols}
}

func (a *CoinGeckoAdapter) SourceName() string { return "coingecko" }
func (a *CoinGeckoAdapter) IsEnabled() bool    { return a.cfg.Enabled && a.cfg.BaseURL != "" }

func (a *CoinGeckoAdapter) GetSupportedSymbols(ctx context.Context) ([]string, error) {
	return a.symbols.GetSymbolsForDataSource(a.SourceName()), nil
}

func (a *CoinGeckoAdapter) GetPriceData(ctx context.Context, symbol string) (types.PriceObservation, error) {
	obs, err := a.GetPriceDataBatch(ctx, []string{symbol})
	if err != nil {
		return types.PriceObservation{}, err
	}
	if len(obs) == 0 {
		return types.PriceObservation{}, fmt.Errorf("coingecko: no data for %s", symbol)
	}
	return obs[0], nil
}

func (a *CoinGeckoAdapter) GetPriceDataBatch(ctx context.Context, symbols []string) ([]types.PriceObservation, error) {
	var out []types.PriceObservation
	for _, symbol := range symbols {
		if !a.symbols.IsSymbolSupportedBySource(symbol, a.SourceName()) {
			continue
		}
		// CoinGecko identifies coins by "id" (e.g. "bitcoin"), which the
		// SymbolMap carries as the source-specific string.
		coinID := a.symbols.GetSourceSymbol(symbol, a.SourceName())

		var data map[string]struct {
			USD       float64 `json:"usd"`
			USD24hVol float64 `json:"usd_24h_vol"`
		}
		url := fmt.Sprintf("%s/api/v3/simple/price?ids=%s&vs_currencies=usd&include_24hr_vol=true", a.cfg.BaseURL, coinID)
		headers := map[string]string{}
		if a.cfg.APIKey != "" {
			headers["x-cg-demo-api-key"] = a.cfg.APIKey
		}
		if err := fetchJSON(ctx, a.client, a.SourceName(), url, headers, &data); err != nil {
			continue
		}
		entry, ok := data[coinID]
		if !ok || entry.USD <= 0 {
			continue
		}

		price := apd.New(0, 0)
		if _, _, err := price.SetString(strconv.FormatFloat(entry.USD, 'f', -1, 64)); err != nil {
			continue
		}
		volume := apd.New(0, 0)
		volume.SetString(strconv.FormatFloat(entry.USD24hVol, 'f', -1, 64))

		out = append(out, types.PriceObservation{
			Symbol:    symbol,
			Source:    a.SourceName(),
			Price:     price,
			Volume:    volume,
			Timestamp: now().UTC(),
			Metadata:  map[string]string{"pair": coinID, "quoteCurrency": "USD"},
		})
	}
	return out, nil
}
