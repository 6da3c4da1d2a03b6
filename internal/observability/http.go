package observability

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler exposes the Prometheus scrape endpoint via Fiber.
func MetricsHandler() fiber.Handler {
	RegisterMetrics()
	return adaptor.HTTPHandler(promhttp.Handler())
}

// RouteLabel returns the registered route template so path parameters do not explode label cardinality.
func RouteLabel(c *fiber.Ctx) string {
	if route := c.Route(); route != nil && route.Path != "" {
		return route.Path
	}
	return c.Path()
}

// ObserveRequest records one finished request.
func ObserveRequest(method, route string, status int, duration time.Duration) {
	statusLabel := fmt.Sprintf("%d", status)
	HTTPRequests().WithLabelValues(method, route, statusLabel).Inc()
	HTTPLatency().WithLabelValues(method, route).Observe(duration.Seconds())
	if status >= fiber.StatusBadRequest {
		HTTPErrors().WithLabelValues(method, route, statusLabel).Inc()
	}
}
