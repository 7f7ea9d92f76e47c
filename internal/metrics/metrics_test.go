package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageCountsByOutcome(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Message(OutcomeSaved)
	m.Message(OutcomeSaved)
	m.Message(OutcomeNotJSON)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.WSMessagesTotal.WithLabelValues(OutcomeSaved)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WSMessagesTotal.WithLabelValues(OutcomeNotJSON)))
}

func TestHandlerExposesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.FilesMovedTotal.Add(3)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "fireworks_files_moved_total 3")
}
