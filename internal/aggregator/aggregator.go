// Package aggregator reconciles per-source price observations into a single
// AggregatedPrice per symbol: outlier rejection, a central value, a spread
// measure, and a confidence score.
package aggregator

import (
	"sort"
	"time"

	"github.com/cockroachdb/apd/v3"

	"github.com/r3e-network/price-oracle/internal/oerrors"
	"github.com/r3e-network/price-oracle/internal/types"
)

var decCtx = apd.BaseContext.WithPrecision(40)

// Aggregator turns PriceObservations into AggregatedPrices.
type Aggregator struct {
	now func() time.Time
}

func New() *Aggregator {
	return &Aggregator{now: time.Now}
}

// Aggregate reconciles observations for a single symbol. Every observation
// must share the same symbol, or ErrMixedSymbols is returned.
func (a *Aggregator) Aggregate(obs []types.PriceObservation) (types.AggregatedPrice, error) {
	if len(obs) == 0 {
		return types.AggregatedPrice{}, oerrors.ErrNoData
	}
	symbol := obs[0].Symbol
	for _, o := range obs[1:] {
		if o.Symbol != symbol {
			return types.AggregatedPrice{}, oerrors.ErrMixedSymbols
		}
	}

	survivors := rejectOutliers(obs)
	central, err := centralValue(survivors)
	if err != nil {
		return types.AggregatedPrice{}, err
	}
	stdDev, err := standardDeviation(survivors, central)
	if err != nil {
		return types.AggregatedPrice{}, err
	}

	return types.AggregatedPrice{
		Symbol:             symbol,
		Price:              central,
		Timestamp:          a.now().UTC(),
		SourceObservations: survivors,
		StandardDeviation:  stdDev,
		Confidence:         types.ConfidenceForCount(len(survivors)),
	}, nil
}

// AggregateBatch groups a mixed-symbol observation list by symbol and
// aggregates each group independently. A symbol whose observations fail to
// aggregate is dropped; the rest of the batch proceeds.
func (a *Aggregator) AggregateBatch(obs []types.PriceObservation) []types.AggregatedPrice {
	bySymbol := make(map[string][]types.PriceObservation)
	var order []string
	for _, o := range obs {
		if _, seen := bySymbol[o.Symbol]; !seen {
			order = append(order, o.Symbol)
		}
		bySymbol[o.Symbol] = append(bySymbol[o.Symbol], o)
	}

	out := make([]types.AggregatedPrice, 0, len(order))
	for _, symbol := range order {
		agg, err := a.Aggregate(bySymbol[symbol])
		if err != nil {
			continue
		}
		out = append(out, agg)
	}
	return out
}

// rejectOutliers applies the median-absolute-deviation filter when there are
// at least three observations. It never returns an empty slice for a
// non-empty input: if the MAD threshold would reject everything, the full
// input is kept instead.
func rejectOutliers(obs []types.PriceObservation) []types.PriceObservation {
	if len(obs) < 3 {
		return obs
	}

	prices := make([]*apd.Decimal, len(obs))
	for i, o := range obs {
		prices[i] = o.Price
	}
	m := medianOf(prices)

	deviations := make([]*apd.Decimal, len(prices))
	for i, p := range prices {
		d := new(apd.Decimal)
		decCtx.Sub(d, p, m)
		d.Abs(d)
		deviations[i] = d
	}
	mad := medianOf(deviations)

	threshold := new(apd.Decimal)
	decCtx.Mul(threshold, mad, apd.New(3, 0))

	var kept []types.PriceObservation
	for i, o := range obs {
		if deviations[i].Cmp(threshold) <= 0 {
			kept = append(kept, o)
		}
	}
	if len(kept) == 0 {
		return obs
	}
	return kept
}

// centralValue picks the reconciled price per §4.5: median for three or
// more survivors, the arithmetic mean for two, passthrough for one.
func centralValue(obs []types.PriceObservation) (*apd.Decimal, error) {
	prices := make([]*apd.Decimal, len(obs))
	for i, o := range obs {
		prices[i] = o.Price
	}
	switch len(prices) {
	case 0:
		return nil, oerrors.ErrNoData
	case 1:
		return new(apd.Decimal).Set(prices[0]), nil
	case 2:
		sum := new(apd.Decimal)
		decCtx.Add(sum, prices[0], prices[1])
		mean := new(apd.Decimal)
		decCtx.Quo(mean, sum, apd.New(2, 0))
		return mean, nil
	default:
		return new(apd.Decimal).Set(medianOf(prices)), nil
	}
}

// medianOf returns the median of a set of decimals without mutating the
// input slice.
func medianOf(values []*apd.Decimal) *apd.Decimal {
	sorted := make([]*apd.Decimal, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Cmp(sorted[j]) < 0 })

	n := len(sorted)
	mid := n / 2
	if n%2 == 1 {
		return sorted[mid]
	}
	sum := new(apd.Decimal)
	decCtx.Add(sum, sorted[mid-1], sorted[mid])
	mean := new(apd.Decimal)
	decCtx.Quo(mean, sum, apd.New(2, 0))
	return mean
}

// standardDeviation computes the population standard deviation of the
// surviving observations around the reconciled central value. Singletons
// carry zero spread.
func standardDeviation(obs []types.PriceObservation, central *apd.Decimal) (*apd.Decimal, error) {
	if len(obs) <= 1 {
		return apd.New(0, 0), nil
	}

	sumSq := new(apd.Decimal)
	for _, o := range obs {
		diff := new(apd.Decimal)
		decCtx.Sub(diff, o.Price, central)
		sq := new(apd.Decimal)
		decCtx.Mul(sq, diff, diff)
		decCtx.Add(sumSq, sumSq, sq)
	}

	variance := new(apd.Decimal)
	if _, err := decCtx.Quo(variance, sumSq, apd.New(int64(len(obs)), 0)); err != nil {
		return nil, err
	}
	stdDev := new(apd.Decimal)
	if _, err := decCtx.Sqrt(stdDev, variance); err != nil {
		return nil, err
	}
	return stdDev, nil
}
