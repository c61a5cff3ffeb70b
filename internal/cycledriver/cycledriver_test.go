package cycledriver

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-network/price-oracle/internal/aggregator"
	"github.com/r3e-network/price-oracle/internal/cache"
	"github.com/r3e-network/price-oracle/internal/oerrors"
	"github.com/r3e-network/price-oracle/internal/source"
	"github.com/r3e-network/price-oracle/internal/types"
)

type fakeAdapter struct {
	name  string
	price string
}

func (f fakeAdapter) SourceName() string { return f.name }
func (f fakeAdapter) IsEnabled() bool    { return true }
func (f fakeAdapter) GetSupportedSymbols(ctx context.Context) ([]string, error) {
	return []string{"BTCUSDT"}, nil
}
func (f fakeAdapter) GetPriceData(ctx context.Context, symbol string) (types.PriceObservation, error) {
	obs, err := f.GetPriceDataBatch(ctx, []string{symbol})
	return obs[0], err
}
func (f fakeAdapter) GetPriceDataBatch(ctx context.Context, symbols []string) ([]types.PriceObservation, error) {
	p, _, _ := apd.NewFromString(f.price)
	out := make([]types.PriceObservation, len(symbols))
	for i, s := range symbols {
		out[i] = types.PriceObservation{Symbol: s, Source: f.name, Price: p, Timestamp: time.Now()}
	}
	return out, nil
}

// TestRunCycle_AggregatesAcrossAdapters exercises the concurrent fan-out and
// per-symbol aggregation stages of a cycle. RunCycle itself goes on to the
// batch builder and submitter once anything aggregates, and neither is
// wired here, so this test calls fetchAll and AggregateBatch directly.
func TestRunCycle_AggregatesAcrossAdapters(t *testing.T) {
	registry := source.NewRegistry(
		fakeAdapter{name: "binance", price: "50000"},
		fakeAdapter{name: "kraken", price: "50100"},
	)
	priceCache := cache.New(30*time.Second, time.Hour)
	agg := aggregator.New()

	driver := &Driver{
		registry:   registry,
		cache:      priceCache,
		aggregator: agg,
		log:        zerolog.Nop(),
	}

	observations := driver.fetchAll(context.Background(), []string{"BTCUSDT"})
	require.Len(t, observations, 2)

	aggregated := agg.AggregateBatch(observations)
	require.Len(t, aggregated, 1)
	assert.Equal(t, "50050", aggregated[0].Price.Text('f'))
}

func TestFetchFromAdapter_UsesCacheOnSecondCall(t *testing.T) {
	registry := source.NewRegistry(fakeAdapter{name: "binance", price: "50000"})
	priceCache := cache.New(time.Minute, time.Hour)
	driver := &Driver{registry: registry, cache: priceCache, log: zerolog.Nop()}

	first := driver.fetchFromAdapter(context.Background(), registry.Adapters()[0], []string{"BTCUSDT"})
	require.Len(t, first, 1)

	second := driver.fetchFromAdapter(context.Background(), registry.Adapters()[0], []string{"BTCUSDT"})
	require.Len(t, second, 1)
	assert.Equal(t, "50000", second[0].Price.Text('f'))
}

func TestRunCycle_NoObservationsReturnsNoResults(t *testing.T) {
	registry := source.NewRegistry()
	priceCache := cache.New(time.Minute, time.Hour)
	driver := &Driver{registry: registry, cache: priceCache, aggregator: aggregator.New(), log: zerolog.Nop()}

	results, err := driver.RunCycle(context.Background(), []string{"BTCUSDT"})
	require.ErrorIs(t, err, oerrors.ErrNoData)
	assert.Nil(t, results)
}

func TestCIMetadataFromEnv_DefaultsToEmptyOutsideCI(t *testing.T) {
	meta := ciMetadataFromEnv()
	assert.Equal(t, ciMetadata{}, meta)
}

func TestNew_PopulatesAttestationRecordsFromCIEnvironment(t *testing.T) {
	t.Setenv("GITHUB_RUN_ID", "4242")
	t.Setenv("GITHUB_RUN_NUMBER", "7")
	t.Setenv("GITHUB_REPOSITORY_OWNER", "r3e-network")
	t.Setenv("GITHUB_REPOSITORY", "r3e-network/price-oracle")
	t.Setenv("GITHUB_WORKFLOW", "ci")

	driver := New(source.NewRegistry(), cache.New(time.Minute, time.Hour), aggregator.New(), nil, nil, nil, nil, zerolog.Nop())

	rec := driver.recordFor(types.PriceBatch{BatchID: "b1"}, types.BatchStatusInfo{TransactionHash: "0xabc"})
	assert.Equal(t, "4242", rec.RunID)
	assert.Equal(t, "7", rec.RunNumber)
	assert.Equal(t, "r3e-network", rec.RepoOwner)
	assert.Equal(t, "r3e-network/price-oracle", rec.RepoName)
	assert.Equal(t, "ci", rec.Workflow)
}
