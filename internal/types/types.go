// Package types holds the data model shared by every component of the
// collection, aggregation, and submission pipeline.
package types

import (
	"fmt"
	"regexp"
	"time"

	"github.com/cockroachdb/apd/v3"
)

// Decimal is the fixed-point type used for every price-bearing field. It
// wraps apd so arithmetic never loses precision the way float64 would across
// repeated median/MAD/variance passes.
type Decimal = apd.Decimal

var symbolPattern = regexp.MustCompile(`^[A-Z0-9]{3,10}$`)

// ValidSymbol reports whether s matches the canonical symbol form.
func ValidSymbol(s string) bool {
	return symbolPattern.MatchString(s)
}

// PriceObservation is a single observed value from one source.
type PriceObservation struct {
	Symbol    string
	Source    string
	Price     *Decimal
	Timestamp time.Time
	Volume    *Decimal // optional, nil when the source does not report it
	Metadata  map[string]string
}

// Validate enforces the invariants from the data model: price > 0 and the
// symbol matches the canonical form.
func (o PriceObservation) Validate() error {
	if o.Price == nil || o.Price.Sign() <= 0 {
		return fmt.Errorf("price observation for %s/%s: price must be > 0", o.Symbol, o.Source)
	}
	if !ValidSymbol(o.Symbol) {
		return fmt.Errorf("price observation: symbol %q is not canonical", o.Symbol)
	}
	return nil
}

// AggregatedPrice is the reconciled value for one symbol at one tick.
type AggregatedPrice struct {
	Symbol             string
	Price              *Decimal
	Timestamp          time.Time
	SourceObservations []PriceObservation
	StandardDeviation  *Decimal
	Confidence         int
}

// Confidence ladder constants, part of the public contract (spec §3).
const (
	ConfidenceOneSource   = 60
	ConfidenceTwoSources  = 80
	ConfidenceThreeOrMore = 100
)

// ConfidenceForCount implements the fixed confidence ladder.
func ConfidenceForCount(n int) int {
	switch {
	case n >= 3:
		return ConfidenceThreeOrMore
	case n == 2:
		return ConfidenceTwoSources
	case n == 1:
		return ConfidenceOneSource
	default:
		return 0
	}
}

// PriceBatch is a submission unit: an ordered, duplicate-free set of
// AggregatedPrice values sharing one logical batch identity.
type PriceBatch struct {
	BatchID   string
	CreatedAt time.Time
	Prices    []AggregatedPrice
}

// Validate checks the PriceBatch invariant that every symbol is distinct.
func (b PriceBatch) Validate() error {
	seen := make(map[string]struct{}, len(b.Prices))
	for _, p := range b.Prices {
		if _, dup := seen[p.Symbol]; dup {
			return fmt.Errorf("price batch %s: duplicate symbol %s", b.BatchID, p.Symbol)
		}
		seen[p.Symbol] = struct{}{}
	}
	return nil
}

// BatchStatus is the state machine over a submission's lifecycle.
type BatchStatus string

const (
	BatchPending    BatchStatus = "Pending"
	BatchProcessing BatchStatus = "Processing"
	BatchSent       BatchStatus = "Sent"
	BatchConfirmed  BatchStatus = "Confirmed"
	BatchFailed     BatchStatus = "Failed"
	BatchRejected   BatchStatus = "Rejected"
	BatchUnknown    BatchStatus = "Unknown"
)

// BatchStatusInfo is the observable outcome record for a batch submission.
type BatchStatusInfo struct {
	BatchID          string
	Status           BatchStatus
	TransactionHash  string // empty when not yet sent
	Timestamp        time.Time
	ErrorMessage     string // empty on success
	ProcessedCount   int
	TotalCount       int
	BlockNumber      uint64 // 0 when unknown
	FeeCost          *Decimal
}

// AttestationType distinguishes the kind of evidence a record carries.
type AttestationType string

const (
	AttestationAccount   AttestationType = "Account"
	AttestationPriceFeed AttestationType = "PriceFeed"
)

// PriceSummary is the compact per-price entry stored inside an
// AttestationRecord.
type PriceSummary struct {
	Symbol     string
	Price      *Decimal
	Confidence int
}

// AttestationRecord is durable evidence of a submitted batch.
type AttestationRecord struct {
	AttestationType AttestationType
	RunID           string
	RunNumber       string
	RepoOwner       string
	RepoName        string
	Workflow        string
	BatchID         string
	TransactionHash string
	CreatedAt       time.Time
	PriceCount      int
	PriceSummaries  []PriceSummary
	Signature       string // hex-encoded, empty until signed
}

// StoredPrice is the on-chain representation for one symbol.
type StoredPrice struct {
	PriceScaled *apd.BigInt // price * 10^8, rounded
	Timestamp   int64       // unix seconds
	Confidence  int
}

// PriceScale is the on-chain fixed-point scale factor (10^8).
var PriceScale = apd.New(1, 8)

// ScalePrice converts a Decimal price into its on-chain integer
// representation: round(price * 10^8).
func ScalePrice(price *Decimal) (*apd.BigInt, error) {
	ctx := apd.BaseContext.WithPrecision(40)
	scaled := new(apd.Decimal)
	if _, err := ctx.Mul(scaled, price, PriceScale); err != nil {
		return nil, fmt.Errorf("scale price: %w", err)
	}
	rounded := new(apd.Decimal)
	if _, err := ctx.RoundToIntegralValue(rounded, scaled); err != nil {
		return nil, fmt.Errorf("round scaled price: %w", err)
	}
	coeff := new(apd.BigInt).Set(&rounded.Coeff)
	switch {
	case rounded.Exponent > 0:
		factor := new(apd.BigInt).Exp(apd.NewBigInt(10), apd.NewBigInt(int64(rounded.Exponent)), nil)
		coeff.Mul(coeff, factor)
	case rounded.Exponent < 0:
		factor := new(apd.BigInt).Exp(apd.NewBigInt(10), apd.NewBigInt(int64(-rounded.Exponent)), nil)
		coeff.Quo(coeff, factor)
	}
	if rounded.Negative {
		coeff.Neg(coeff)
	}
	return coeff, nil
}
