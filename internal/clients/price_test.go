package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/vadiminshakov/lendscope/internal/domain"
)

func TestPriceClient_CachesForAnHour(t *testing.T) {
	var calls atomic.Int32
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		assert.Equal(t, "/ethereum:"+domain.MorphoTokenAddress.Hex(), r.URL.Path)
		_, _ = w.Write([]byte(`{"coins":{"ethereum:` + domain.MorphoTokenAddress.Hex() + `":{"price":1.85,"symbol":"MORPHO"}}}`))
	}))
	defer srv.Close()

	now := time.Unix(1_700_000_000, 0)
	c := NewPriceClient(zap.NewNop(), srv.URL, fastRetrier())
	c.now = func() time.Time { return now }

	assert.Equal(t, "1.85", c.MorphoPrice(context.Background()).String())
	assert.Equal(t, "1.85", c.MorphoPrice(context.Background()).String())
	assert.Equal(t, int32(1), calls.Load())

	now = now.Add(time.Hour + time.Second)
	fail.Store(true)
	assert.Equal(t, "1.85", c.MorphoPrice(context.Background()).String(), "last cached price on failure")
	assert.Greater(t, calls.Load(), int32(1))
}

func TestPriceClient_ZeroWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewPriceClient(zap.NewNop(), srv.URL, fastRetrier())
	assert.True(t, c.MorphoPrice(context.Background()).IsZero())
}

func TestPriceClient_UnknownCoinIsZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"coins":{}}`))
	}))
	defer srv.Close()

	c := NewPriceClient(zap.NewNop(), srv.URL, fastRetrier())
	assert.True(t, c.MorphoPrice(context.Background()).IsZero())
}
