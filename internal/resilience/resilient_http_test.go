package resilience

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/r3e-network/price-oracle/internal/oerrors"
)

func TestDoSucceedsFirstTry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	reg := NewRegistry(DefaultTestProfile(), zerolog.Nop())
	client := reg.For("test-source")

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	body, status, err := client.Do(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 200, status)
	require.Equal(t, "ok", string(body))
}

func TestDoRetriesTransientThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("recovered"))
	}))
	defer srv.Close()

	reg := NewRegistry(DefaultTestProfile(), zerolog.Nop())
	client := reg.For("flaky-source")

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	body, _, err := client.Do(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "recovered", string(body))
	require.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(3))
}

func TestDoDoesNotRetryPermanent(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	reg := NewRegistry(DefaultTestProfile(), zerolog.Nop())
	client := reg.For("bad-request-source")

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	_, _, err := client.Do(context.Background(), req)
	require.Error(t, err)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls), "4xx other than 408/429 must not retry")
}

func TestBulkheadRejectsOverflow(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
		w.Write([]byte("done"))
	}))
	defer srv.Close()
	defer close(block)

	profile := DefaultTestProfile()
	profile.BulkheadInFlight = 1
	reg := NewRegistry(profile, zerolog.Nop())
	client := reg.For("slow-source")

	errCh := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
			_, _, err := client.Do(context.Background(), req)
			errCh <- err
		}()
	}

	// One request holds the single slot until its attempts time out, so the
	// other is turned away by the bulkhead.
	var rejected int
	for i := 0; i < 2; i++ {
		if err := <-errCh; errors.Is(err, oerrors.ErrBulkheadRejected) {
			rejected++
		}
	}
	require.Equal(t, 1, rejected)
}

func TestCircuitBreakerIsolatedPerSource(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("healthy"))
	}))
	defer healthy.Close()

	profile := DefaultTestProfile()
	profile.MaxRetries = 0
	profile.BreakerFailures = 1
	reg := NewRegistry(profile, zerolog.Nop())

	failingClient := reg.For("failing-source")
	req, _ := http.NewRequest(http.MethodGet, failing.URL, nil)
	_, _, err := failingClient.Do(context.Background(), req)
	require.Error(t, err)

	healthyClient := reg.For("healthy-source")
	req2, _ := http.NewRequest(http.MethodGet, healthy.URL, nil)
	body, _, err := healthyClient.Do(context.Background(), req2)
	require.NoError(t, err)
	require.Equal(t, "healthy", string(body))
}
