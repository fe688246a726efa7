package tiling_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fruit-freedom/logsy/pkg/logsy/tiling"
)

func TestCreateTilesSuccess(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/tiles", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotPath = body["path"]

		json.NewEncoder(w).Encode(map[string]string{
			"path": "tiles/abc",
			"meta": `{"extension":"png","zoom":14}`,
		})
	}))
	defer server.Close()

	client := tiling.NewClient(server.URL)
	result, err := client.CreateTiles(context.Background(), "abc.tif")
	require.NoError(t, err)

	assert.Equal(t, "abc.tif", gotPath)
	assert.Equal(t, "tiles/abc", result.Path)
	assert.Equal(t, "png", result.Meta["extension"])
	assert.Equal(t, float64(14), result.Meta["zoom"])
}

func TestCreateTilesServiceError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "not a raster",
		})
	}))
	defer server.Close()

	client := tiling.NewClient(server.URL, tiling.WithRetry(3, time.Millisecond))
	_, err := client.CreateTiles(context.Background(), "abc.tif")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a raster")

	// A rejected raster is final, not retried.
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCreateTilesRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"path": "tiles/abc",
			"meta": `{"extension":"png"}`,
		})
	}))
	defer server.Close()

	client := tiling.NewClient(server.URL, tiling.WithRetry(3, time.Millisecond))
	result, err := client.CreateTiles(context.Background(), "abc.tif")
	require.NoError(t, err)
	assert.Equal(t, "tiles/abc", result.Path)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestCreateTilesExhaustsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := tiling.NewClient(server.URL, tiling.WithRetry(2, time.Millisecond))
	_, err := client.CreateTiles(context.Background(), "abc.tif")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
}

func TestCreateTilesZeroRetryStillAttempts(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := tiling.NewClient(server.URL, tiling.WithRetry(0, time.Millisecond))
	_, err := client.CreateTiles(context.Background(), "abc.tif")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 1 attempts")
	assert.Contains(t, err.Error(), http.StatusText(http.StatusBadGateway))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCreateTilesClientErrorNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := tiling.NewClient(server.URL, tiling.WithRetry(3, time.Millisecond))
	_, err := client.CreateTiles(context.Background(), "abc.tif")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCreateTilesMissingPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"meta": `{"extension":"png"}`})
	}))
	defer server.Close()

	client := tiling.NewClient(server.URL)
	_, err := client.CreateTiles(context.Background(), "abc.tif")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing path")
}

func TestCreateTilesBadMeta(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"path": "tiles/abc",
			"meta": "not-json",
		})
	}))
	defer server.Close()

	client := tiling.NewClient(server.URL)
	_, err := client.CreateTiles(context.Background(), "abc.tif")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "meta")
}

func TestCreateTilesContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := tiling.NewClient(server.URL, tiling.WithRetry(5, time.Second))
	_, err := client.CreateTiles(ctx, "abc.tif")
	assert.ErrorIs(t, err, context.Canceled)
}
