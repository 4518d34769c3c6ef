package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakePoolStat struct{ acquired, idle, total int32 }

func (s fakePoolStat) AcquiredConns() int32 { return s.acquired }
func (s fakePoolStat) IdleConns() int32     { return s.idle }
func (s fakePoolStat) TotalConns() int32    { return s.total }

func TestUpdateDBPoolMetrics(t *testing.T) {
	UpdateDBPoolMetrics(fakePoolStat{acquired: 2, idle: 3, total: 5})

	if v := testutil.ToFloat64(DBPoolConnsAcquired); v != 2 {
		t.Errorf("acquired = %v, want 2", v)
	}
	if v := testutil.ToFloat64(DBPoolConnsIdle); v != 3 {
		t.Errorf("idle = %v, want 3", v)
	}
	if v := testutil.ToFloat64(DBPoolConnsOpen); v != 5 {
		t.Errorf("open = %v, want 5", v)
	}

	// Values that are not pool stats are ignored.
	UpdateDBPoolMetrics("not a pool")
	if v := testutil.ToFloat64(DBPoolConnsOpen); v != 5 {
		t.Errorf("open changed to %v", v)
	}
}

func TestMiddlewareAndHandler(t *testing.T) {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(Middleware())
	app.Get("/metrics", Handler())
	app.Get("/v1/sessions/:id/boundary", func(c *fiber.Ctx) error { return c.SendString("ok") })

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/v1/sessions/:id/boundary", "200"))
	if _, err := app.Test(httptest.NewRequest("GET", "/v1/sessions/site-1/boundary", nil), -1); err != nil {
		t.Fatal(err)
	}
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/v1/sessions/:id/boundary", "200"))
	if after != before+1 {
		t.Errorf("expected request counted under the route pattern, got %v -> %v", before, after)
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), "siteboundary_http_requests_total") {
		t.Error("expected siteboundary metrics in exposition")
	}
}
