// Package cycledriver runs one logical collection-aggregation-submission
// cycle: concurrent fan-out fetch across enabled adapters, per-symbol
// aggregation, batch construction, a sequential sweep -> submit -> attest
// pipeline per sub-batch, with confirmation polling decoupled from cycle
// completion.
package cycledriver

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/r3e-network/price-oracle/internal/aggregator"
	"github.com/r3e-network/price-oracle/internal/attestation"
	"github.com/r3e-network/price-oracle/internal/batch"
	"github.com/r3e-network/price-oracle/internal/cache"
	"github.com/r3e-network/price-oracle/internal/oerrors"
	"github.com/r3e-network/price-oracle/internal/source"
	"github.com/r3e-network/price-oracle/internal/submitter"
	"github.com/r3e-network/price-oracle/internal/sweeper"
	"github.com/r3e-network/price-oracle/internal/types"
)

// ciMetadata is the run-provenance information CI injects via environment
// variables. Outside CI every field is the empty string.
type ciMetadata struct {
	RunID     string
	RunNumber string
	RepoOwner string
	RepoName  string
	Workflow  string
}

// ciMetadataFromEnv reads the GitHub Actions-style environment variables a
// CI-triggered run sets, defaulting every field to "" when absent.
func ciMetadataFromEnv() ciMetadata {
	return ciMetadata{
		RunID:     os.Getenv("GITHUB_RUN_ID"),
		RunNumber: os.Getenv("GITHUB_RUN_NUMBER"),
		RepoOwner: os.Getenv("GITHUB_REPOSITORY_OWNER"),
		RepoName:  os.Getenv("GITHUB_REPOSITORY"),
		Workflow:  os.Getenv("GITHUB_WORKFLOW"),
	}
}

// Driver wires together every component exercised by one cycle.
type Driver struct {
	registry   *source.Registry
	cache      *cache.PriceCache
	aggregator *aggregator.Aggregator
	builder    *batch.Builder
	sweeper    *sweeper.Sweeper
	submitter  *submitter.Submitter
	attest     *attestation.Store
	log        zerolog.Logger
	ci         ciMetadata
}

func New(
	registry *source.Registry,
	priceCache *cache.PriceCache,
	agg *aggregator.Aggregator,
	builder *batch.Builder,
	sw *sweeper.Sweeper,
	sub *submitter.Submitter,
	attest *attestation.Store,
	log zerolog.Logger,
) *Driver {
	return &Driver{
		registry:   registry,
		cache:      priceCache,
		aggregator: agg,
		builder:    builder,
		sweeper:    sw,
		submitter:  sub,
		attest:     attest,
		log:        log,
		ci:         ciMetadataFromEnv(),
	}
}

// RunCycle executes one full cycle for the given canonical symbols. Fetch
// across adapters is concurrent; submission and sweeping for the resulting
// sub-batches run sequentially as the spec's concurrency model requires.
// Submit itself returns as soon as the node accepts each sub-batch's
// transaction, so this never blocks on confirmation: the next cycle can
// start while earlier sub-batches are still being confirmed.
func (d *Driver) RunCycle(ctx context.Context, symbols []string) ([]types.BatchStatusInfo, error) {
	observations := d.fetchAll(ctx, symbols)
	aggregated := d.aggregator.AggregateBatch(observations)
	if len(aggregated) == 0 {
		return nil, oerrors.ErrNoData
	}

	batches := d.builder.Build(aggregated)

	var results []types.BatchStatusInfo
	for _, b := range batches {
		if d.sweeper != nil {
			d.sweeper.Sweep(ctx)
		}
		info, err := d.submitter.Submit(ctx, b)
		if err != nil {
			d.log.Error().Err(err).Str("batchId", b.BatchID).Msg("cycle: sub-batch submission failed")
		}
		switch info.Status {
		case types.BatchConfirmed:
			// The empty-batch no-op path resolves synchronously.
			d.recordIfAttesting(b, info)
		case types.BatchSent, types.BatchProcessing, types.BatchPending:
			go d.attestWhenConfirmed(ctx, b)
		}
		results = append(results, info)
	}
	return results, nil
}

// attestWhenConfirmed watches the submitter's status table for the
// eventual outcome of a sub-batch's confirmation poller (run in its own
// goroutine by Submit) and records an attestation once — and only if —
// the batch actually confirms. It runs detached from RunCycle's caller.
func (d *Driver) attestWhenConfirmed(ctx context.Context, b types.PriceBatch) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		info := d.submitter.GetBatchStatus(b.BatchID)
		switch info.Status {
		case types.BatchConfirmed:
			d.recordIfAttesting(b, info)
			return
		case types.BatchFailed, types.BatchRejected:
			return
		}
	}
}

func (d *Driver) recordIfAttesting(b types.PriceBatch, info types.BatchStatusInfo) {
	if d.attest == nil {
		return
	}
	d.attest.Record(d.recordFor(b, info))
}

// fetchAll runs GetPriceDataBatch concurrently across every enabled
// adapter, consulting the cache first. One adapter's failure or timeout
// never blocks the others: each fan-out branch writes into its own slot.
func (d *Driver) fetchAll(ctx context.Context, symbols []string) []types.PriceObservation {
	adapters := d.registry.Adapters()
	perAdapter := make([][]types.PriceObservation, len(adapters))

	var wg sync.WaitGroup
	for i, a := range adapters {
		wg.Add(1)
		go func(i int, a source.Adapter) {
			defer wg.Done()
			perAdapter[i] = d.fetchFromAdapter(ctx, a, symbols)
		}(i, a)
	}
	wg.Wait()

	var all []types.PriceObservation
	for _, obs := range perAdapter {
		all = append(all, obs...)
	}
	return all
}

func (d *Driver) fetchFromAdapter(ctx context.Context, a source.Adapter, symbols []string) []types.PriceObservation {
	sourceName := a.SourceName()
	missing := d.cache.MissingSymbols(sourceName, symbols)

	var fresh []types.PriceObservation
	if len(missing) > 0 {
		obs, err := a.GetPriceDataBatch(ctx, missing)
		if err != nil {
			d.log.Warn().Err(err).Str("source", sourceName).Msg("cycle: adapter batch fetch failed")
		} else {
			for _, o := range obs {
				d.cache.PutPrice(o)
			}
			fresh = obs
		}
	}

	out := make([]types.PriceObservation, 0, len(symbols))
	out = append(out, fresh...)
	fetchedSet := make(map[string]bool, len(fresh))
	for _, o := range fresh {
		fetchedSet[o.Symbol] = true
	}
	for _, symbol := range symbols {
		if fetchedSet[symbol] {
			continue
		}
		if cached, ok := d.cache.GetPrice(sourceName, symbol); ok {
			out = append(out, cached)
		}
	}
	return out
}

func (d *Driver) recordFor(b types.PriceBatch, info types.BatchStatusInfo) types.AttestationRecord {
	summaries := make([]types.PriceSummary, len(b.Prices))
	for i, p := range b.Prices {
		summaries[i] = types.PriceSummary{Symbol: p.Symbol, Price: p.Price, Confidence: p.Confidence}
	}
	return types.AttestationRecord{
		AttestationType: types.AttestationPriceFeed,
		RunID:           d.ci.RunID,
		RunNumber:       d.ci.RunNumber,
		RepoOwner:       d.ci.RepoOwner,
		RepoName:        d.ci.RepoName,
		Workflow:        d.ci.Workflow,
		BatchID:         b.BatchID,
		TransactionHash: info.TransactionHash,
		CreatedAt:       time.Now().UTC(),
		PriceCount:      len(b.Prices),
		PriceSummaries:  summaries,
	}
}
