package httpadapter

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kirillkom/health-report-analyzer/internal/config"
	"github.com/kirillkom/health-report-analyzer/internal/core/domain"
	"github.com/kirillkom/health-report-analyzer/internal/observability/metrics"
)

const rejectedHeader = `
# HELP health_http_rejected_total Requests refused by traffic control before reaching a handler.
# TYPE health_http_rejected_total counter
`

func assertRejected(t *testing.T, m *metrics.HTTPServerMetrics, series string) {
	t.Helper()
	if err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(rejectedHeader+series), "health_http_rejected_total"); err != nil {
		t.Fatalf("unexpected rejected_total: %v", err)
	}
}

func TestRateLimitedRequestsAreCountedAsRejected(t *testing.T) {
	m := metrics.NewHTTPServerMetrics("api")
	handler := NewRouter(config.Config{APIRateLimitRPS: 1, APIRateLimitBurst: 1},
		newSessionManagerFake(), &presenterFake{}, WithMetrics(m)).Handler()

	if res := serve(t, handler, http.MethodGet, "/v1/fields", nil, ""); res.Code != http.StatusOK {
		t.Fatalf("first request expected 200, got %d", res.Code)
	}
	for i := 0; i < 2; i++ {
		res := serve(t, handler, http.MethodPost, "/v1/sessions", nil, "")
		if res.Code != http.StatusTooManyRequests {
			t.Fatalf("request %d expected 429, got %d", i+2, res.Code)
		}
		if res.Header().Get("Retry-After") == "" {
			t.Fatalf("expected Retry-After on 429")
		}
	}

	assertRejected(t, m, `health_http_rejected_total{reason="rate_limited",service="api"} 2
`)
}

func TestSaturatedAPIRejectsWithBackpressure(t *testing.T) {
	session := newSessionFake("s1")
	session.view.Stage = domain.StageReview
	session.started = make(chan struct{}, 1)
	session.release = make(chan struct{})

	m := metrics.NewHTTPServerMetrics("api")
	handler := NewRouter(config.Config{APIMaxInFlight: 1},
		newSessionManagerFake(session), &presenterFake{}, WithMetrics(m)).Handler()

	done := make(chan int, 1)
	go func() {
		done <- serve(t, handler, http.MethodPost, "/v1/sessions/s1/analysis", nil, "").Code
	}()
	<-session.started

	res := serve(t, handler, http.MethodGet, "/v1/sessions/s1", nil, "")
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 while the only slot is held, got %d", res.Code)
	}
	if res.Header().Get("Retry-After") != "1" {
		t.Fatalf("expected Retry-After: 1, got %q", res.Header().Get("Retry-After"))
	}
	var body errorResponse
	decodeBody(t, res, &body)
	if body.Error == "" {
		t.Fatalf("expected error message in 503 body")
	}

	close(session.release)
	select {
	case code := <-done:
		if code != http.StatusAccepted {
			t.Fatalf("held analysis request expected 202, got %d", code)
		}
	case <-time.After(time.Second):
		t.Fatalf("held request never completed")
	}

	assertRejected(t, m, `health_http_rejected_total{reason="backpressure",service="api"} 1
`)
}

func TestTrafficControlDisabledByZeroLimits(t *testing.T) {
	m := metrics.NewHTTPServerMetrics("api")
	handler := NewRouter(config.Config{}, newSessionManagerFake(), &presenterFake{}, WithMetrics(m)).Handler()

	for i := 0; i < 20; i++ {
		if res := serve(t, handler, http.MethodGet, "/v1/fields", nil, ""); res.Code != http.StatusOK {
			t.Fatalf("request %d expected 200, got %d", i+1, res.Code)
		}
	}
	n, err := testutil.GatherAndCount(m.Registry(), "health_http_rejected_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no rejected series, got %d", n)
	}
}

func TestBackpressureMiddlewareReportsReason(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	var reasons []string
	handler := backpressureMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		entered <- struct{}{}
		<-release
		w.WriteHeader(http.StatusNoContent)
	}), 1, 10*time.Millisecond, func(reason string) { reasons = append(reasons, reason) })

	done := make(chan struct{})
	go func() {
		defer close(done)
		serve(t, handler, http.MethodGet, "/v1/fields", nil, "")
	}()
	<-entered

	if res := serve(t, handler, http.MethodGet, "/v1/fields", nil, ""); res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
	close(release)
	<-done

	if len(reasons) != 1 || reasons[0] != "backpressure" {
		t.Fatalf("unexpected reject reasons %v", reasons)
	}
}
