package observability

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveRequestCountsErrors(t *testing.T) {
	before := testutil.ToFloat64(HTTPErrors().WithLabelValues("PATCH", "/api/v2/admin/complaints/:id", "403"))

	ObserveRequest("PATCH", "/api/v2/admin/complaints/:id", fiber.StatusForbidden, 12*time.Millisecond)
	ObserveRequest("PATCH", "/api/v2/admin/complaints/:id", fiber.StatusOK, 8*time.Millisecond)

	after := testutil.ToFloat64(HTTPErrors().WithLabelValues("PATCH", "/api/v2/admin/complaints/:id", "403"))
	require.Equal(t, before+1, after)
}

func TestMetricsHandlerExposesCollectors(t *testing.T) {
	ComplaintsSubmitted().WithLabelValues("platform_bug").Inc()

	app := fiber.New()
	app.Get("/metrics", MetricsHandler())

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "brovoice_complaints_submitted_total")
}
