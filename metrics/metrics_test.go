package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterMetricsEndpoint(t *testing.T) {
	counter := NewCounter("test", "unit", "total", "unit test counter", []string{"k"})
	counter.WithLabelValues("v").Inc()
	BehaviorEventTotal.WithLabelValues("sluggable", "pre_persist", "articles").Inc()

	app := fiber.New()
	RegisterMetricsEndpoint(app)

	req := httptest.NewRequest("GET", "/metrics", nil)
	resp, err := app.Test(req, fiber.TestConfig{Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), "test_unit_total") {
		t.Fatalf("expected metrics output to include test_unit_total")
	}
	if !strings.Contains(string(body), "app_behaviors_event_total") {
		t.Fatalf("expected metrics output to include app_behaviors_event_total")
	}
}

func TestSoftDeleteCounter(t *testing.T) {
	before := testutil.ToFloat64(SoftDeleteTotal.WithLabelValues("metrics_test"))
	SoftDeleteTotal.WithLabelValues("metrics_test").Inc()
	if got := testutil.ToFloat64(SoftDeleteTotal.WithLabelValues("metrics_test")); got != before+1 {
		t.Fatalf("unexpected counter value: %v", got)
	}
}
