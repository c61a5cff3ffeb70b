// Package source defines the SourceAdapter capability and one adapter per
// exchange, normalizing each source's payload into types.PriceObservation.
package source

import (
	"context"

	"github.com/r3e-network/price-oracle/internal/types"
)

// Adapter is the uniform capability every exchange integration exposes
// (spec.md §4.2).
type Adapter interface {
	SourceName() string
	IsEnabled() bool
	GetSupportedSymbols(ctx context.Context) ([]string, error)
	GetPriceData(ctx context.Context, symbol string) (types.PriceObservation, error)
	GetPriceDataBatch(ctx context.Context, symbols []string) ([]types.PriceObservation, error)
}

// Registry holds the enabled adapters, built once at startup from
// configuration; disabled adapters are excluded eagerly (spec.md §4.2/§9).
type Registry struct {
	adapters []Adapter
}

// NewRegistry filters candidates down to the enabled ones.
func NewRegistry(candidates ...Adapter) *Registry {
	r := &Registry{}
	for _, a := range candidates {
		if a != nil && a.IsEnabled() {
			r.adapters = append(r.adapters, a)
		}
	}
	return r
}

// Adapters returns the enabled adapter set.
func (r *Registry) Adapters() []Adapter { return r.adapters }

// Len reports how many adapters are enabled.
func (r *Registry) Len() int { return len(r.adapters) }
