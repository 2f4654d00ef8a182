package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jrsteele09/go-login-portal/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestHandler_ExposesCounters(t *testing.T) {
	before := testutil.ToFloat64(metrics.ForcedLogouts)
	metrics.ForcedLogouts.Inc()
	require.Equal(t, before+1, testutil.ToFloat64(metrics.ForcedLogouts))

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "login_portal_forced_logouts_total")
}
