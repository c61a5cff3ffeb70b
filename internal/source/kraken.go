package source

import (
	"context"
	"fmt"

	"github.com/r3e-network/price-oracle/internal/symbolmap"
	"github.com/r3e-network/price-oracle/internal/types"
)

// KrakenAdapter fetches ticker data from Kraken's public REST API. Kraken
// optionally signs private endpoints with APIKey/APISecret, but the public
// Ticker endpoint used here needs neither.
type KrakenAdapter struct {
	cfg     Config
	client  httpClient
	symbols *symbolmap.SymbolMap
}

func NewKrakenAdapter(cfg Config, client httpClient, symbols *symbolmap.SymbolMap) *KrakenAdapter {
	return &KrakenAdapter{cfg: cfg, client: client, symbols: symbols}
}

func (a *KrakenAdapter) SourceName() string { return "kraken" }
func (a *KrakenAdapter) IsEnabled() bool    { return a.cfg.Enabled && a.cfg.BaseURL != "" }

func (a *KrakenAdapter) GetSupportedSymbols(ctx context.Context) ([]string, error) {
	return a.symbols.GetSymbolsForDataSource(a.SourceName()), nil
}

func (a *KrakenAdapter) GetPriceData(ctx context.Context, symbol string) (types.PriceObservation, error) {
	obs, err := a.GetPriceDataBatch(ctx, []string{symbol})
	if err != nil {
		return types.PriceObservation{}, err
	}
	if len(obs) == 0 {
		return types.PriceObservation{}, fmt.Errorf("kraken: no data for %s", symbol)
	}
	return obs[0], nil
}

func (a *KrakenAdapter) GetPriceDataBatch(ctx context.Context, symbols []string) ([]types.PriceObservation, error) {
	var out []types.PriceObservation
	for _, symbol := range symbols {
		if !a.symbols.IsSymbolSupportedBySource(symbol, a.SourceName()) {
			continue
		}
		sourceSymbol := a.symbols.GetSourceSymbol(symbol, a.SourceName())

		var data struct {
			Result map[string]struct {
				LastTrade []string `json:"c"`
				Volume    []string `json:"v"`
			} `json:"result"`
			Error []string `json:"error"`
		}
		url := fmt.Sprintf("%s/0/public/Ticker?pair=%s", a.cfg.BaseURL, sourceSymbol)
		if err := fetchJSON(ctx, a.client, a.SourceName(), url, nil, &data); err != nil {
			continue
		}
		if len(data.Error) > 0 {
			continue
		}

		var lastTrade, volume []string
		for _, v := range data.Result {
			lastTrade, volume = v.LastTrade, v.Volume
			break
		}
		if len(lastTrade) == 0 || len(volume) == 0 {
			continue
		}

		price, err := parseDecimal(lastTrade[0])
		if err != nil {
			continue
		}
		vol, _ := parseDecimal(volume[0])

		out = append(out, types.PriceObservation{
			Symbol:    symbol,
			Source:    a.SourceName(),
			Price:     price,
			Volume:    vol,
			Timestamp: now().UTC(),
			Metadata:  map[string]string{"pair": sourceSymbol},
		})
	}
	return out, nil
}
