package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func find(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s not found", name)
	return nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

func TestRecordDestination(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordDestination("success")
	c.RecordDestination("success")
	c.RecordDestination("failed")

	got := map[string]float64{}
	for _, m := range find(t, reg, "broadcaster_publish_destinations_total").GetMetric() {
		got[labelValue(m, "status")] = m.GetCounter().GetValue()
	}
	if got["success"] != 2 || got["failed"] != 1 {
		t.Errorf("destinations = %v", got)
	}
}

func TestRecordBatch(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordBatch(2, 1, 150*time.Millisecond)

	mf := find(t, reg, "broadcaster_publish_batches_total")
	if len(mf.GetMetric()) != 1 || labelValue(mf.GetMetric()[0], "outcome") != OutcomePartial {
		t.Errorf("batches = %v", mf.GetMetric())
	}
	h := find(t, reg, "broadcaster_publish_latency_seconds").GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 1 {
		t.Errorf("latency samples = %d", h.GetSampleCount())
	}
}

func TestBatchOutcome(t *testing.T) {
	tests := []struct {
		succeeded, failed int
		want              string
	}{
		{3, 0, OutcomeFull},
		{2, 1, OutcomePartial},
		{0, 3, OutcomeFailed},
		{0, 0, OutcomeFailed},
	}
	for _, tt := range tests {
		if got := BatchOutcome(tt.succeeded, tt.failed); got != tt.want {
			t.Errorf("BatchOutcome(%d, %d) = %q, want %q", tt.succeeded, tt.failed, got, tt.want)
		}
	}
}

func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordCMSPublish("success")

	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body, _ := io.ReadAll(w.Result().Body)
	if !strings.Contains(string(body), "broadcaster_cms_publish_total") {
		t.Error("scrape output missing broadcaster_cms_publish_total")
	}
}
