package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledConstructorsReturnNil(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	assert.False(t, IsEnabled())
	assert.Nil(t, GetRegistry())
	assert.Nil(t, NewCacheMetrics())
	assert.Nil(t, NewWorkerMetrics())
	assert.Nil(t, NewPipelineMetrics())
}

func TestInitRegistryIsIdempotent(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	first := InitRegistry()
	second := InitRegistry()
	require.NotNil(t, first)
	assert.Same(t, first, second)
	assert.True(t, IsEnabled())
}

func TestHandler(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	InitRegistry()
	rec = httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
