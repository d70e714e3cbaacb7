package resilience

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBreakerOpensOnFailureRatio(t *testing.T) {
	b := NewBreaker(4, 0.5, time.Minute)
	for i := 0; i < 2; i++ {
		require.True(t, b.Allow())
		b.Report(true)
	}
	for i := 0; i < 2; i++ {
		require.True(t, b.Allow())
		b.Report(false)
	}
	require.False(t, b.Allow(), "breaker should be open after 50%% failures")
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	b := NewBreaker(1, 0.5, 10*time.Millisecond)
	require.True(t, b.Allow())
	b.Report(false)
	require.False(t, b.Allow())

	time.Sleep(15 * time.Millisecond)
	require.True(t, b.Allow(), "cool-off elapsed, probe allowed")
	b.Report(true)
	require.True(t, b.Allow(), "breaker closed after successful probe")
}

func TestHTTPClientRetriesOn5xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cl := HTTPClient{
		Client:      srv.Client(),
		Breaker:     NewBreaker(10, 0.9, time.Minute),
		BaseBackoff: time.Millisecond,
		MaxAttempts: 3,
	}
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := cl.Do(context.Background(), req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 3, calls.Load())
}

func TestHTTPClientOpenCircuit(t *testing.T) {
	b := NewBreaker(1, 0.5, time.Minute)
	b.Report(false)

	cl := HTTPClient{Client: &http.Client{}, Breaker: b, MaxAttempts: 2}
	req, err := http.NewRequest(http.MethodGet, "http://127.0.0.1:0", nil)
	require.NoError(t, err)
	_, err = cl.Do(context.Background(), req)
	require.ErrorIs(t, err, ErrOpenCircuit)
}
