package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cockroachdb/apd/v3"

	"github.com/r3e-network/price-oracle/internal/oerrors"
	"github.com/r3e-network/price-oracle/internal/resilience"
)

// httpClient is the capability every adapter needs from ResilientHTTP: a
// per-source client that already composes retry/breaker/timeout/bulkhead.
type httpClient interface {
	Do(ctx context.Context, req *http.Request) ([]byte, int, error)
}

// fetchJSON issues a GET against url through client and decodes the JSON
// body into out.
func fetchJSON(ctx context.Context, client httpClient, source, url string, headers map[string]string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return oerrors.NewHTTPError(source, oerrors.HTTPPermanent, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	body, status, err := client.Do(ctx, req)
	if err != nil {
		return err
	}
	if status >= 400 {
		return oerrors.NewHTTPError(source, oerrors.HTTPPermanent, fmt.Errorf("status %d: %s", status, string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return oerrors.NewHTTPError(source, oerrors.HTTPPermanent, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// parseDecimal converts a string price/volume field into an apd.Decimal.
func parseDecimal(s string) (*apd.Decimal, error) {
	if s == "" {
		return nil, fmt.Errorf("empty numeric field")
	}
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("parse decimal %q: %w", s, err)
	}
	return d, nil
}

// now is overridable in tests.
var now = time.Now
