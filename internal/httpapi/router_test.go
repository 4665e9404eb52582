package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"callIndexer/internal/indexer"
)

func TestHealthz(t *testing.T) {
	h := NewRouter(Deps{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestMetricsExposed(t *testing.T) {
	h := NewRouter(Deps{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "indexer_cycles_total")
}

func TestStatus(t *testing.T) {
	h := NewRouter(Deps{Status: func(context.Context) (indexer.Status, error) {
		return indexer.Status{Checkpoint: 42, HasCheckpoint: true, CheckpointSource: "explicit", TotalRecords: 7}, nil
	}})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got indexer.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, uint32(42), got.Checkpoint)
	assert.True(t, got.HasCheckpoint)
	assert.Equal(t, int64(7), got.TotalRecords)
}

func TestStatusError(t *testing.T) {
	h := NewRouter(Deps{Status: func(context.Context) (indexer.Status, error) {
		return indexer.Status{}, errors.New("db down")
	}})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
