package telemetry

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetup_ExposesCounters(t *testing.T) {
	tel, err := Setup("ratefeed_test")
	require.NoError(t, err)

	IncrProviderAttempt("frankfurter.app")
	IncrProviderFailure("frankfurter.app", "timeout")
	SetConnectedClients(3)

	rec := httptest.NewRecorder()
	tel.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "ratefeed_test_provider_failures")
	require.Contains(t, string(body), `kind="timeout"`)
	require.Contains(t, string(body), "ratefeed_test_channel_clients")

	require.NotEmpty(t, tel.Inmem().Data())
}
