package entropy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSource(t *testing.T, h http.HandlerFunc) *Source {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	s := NewSource("key")
	require.NotNil(t, s)
	s.endpoint = ts.URL
	return s
}

func TestNilSourceUsesCrypto(t *testing.T) {
	var s *Source
	assert.False(t, s.Enabled())
	assert.Nil(t, NewSource(""))
	assert.GreaterOrEqual(t, s.Seed(context.Background()), int64(0))
}

func TestSeedDrainsPool(t *testing.T) {
	calls := 0
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req struct {
			Method string         `json:"method"`
			Params map[string]any `json:"params"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "generateIntegers", req.Method)
		assert.Equal(t, "key", req.Params["apiKey"])
		w.Write([]byte(`{"jsonrpc":"2.0","result":{"random":{"data":[11,22]}},"id":1}`))
	})

	ctx := context.Background()
	assert.Equal(t, int64(11), s.Seed(ctx))
	assert.Equal(t, int64(22), s.Seed(ctx))
	assert.Equal(t, 1, calls)
	assert.Equal(t, int64(11), s.Seed(ctx))
	assert.Equal(t, 2, calls)
}

func TestSeedFallsBackOnError(t *testing.T) {
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","error":{"message":"quota exceeded"},"id":1}`))
	})
	assert.GreaterOrEqual(t, s.Seed(context.Background()), int64(0))

	down := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	assert.GreaterOrEqual(t, down.Seed(context.Background()), int64(0))
}
