package observe

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumFor returns the value of the counter data point whose attributes
// include every given key/value pair.
func sumFor(t *testing.T, met *metricdata.Metrics, want ...attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not an int64 sum", met.Name)
	}
	for _, dp := range sum.DataPoints {
		match := true
		for _, kv := range want {
			v, found := dp.Attributes.Value(kv.Key)
			if !found || v != kv.Value {
				match = false
				break
			}
		}
		if match {
			return dp.Value
		}
	}
	return 0
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestHistogramObservation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	histograms := []struct {
		name string
		h    metric.Float64Histogram
	}{
		{"prosodia.synthesis.duration", m.SynthesisDuration},
		{"prosodia.effects.duration", m.EffectsDuration},
		{"prosodia.analysis.duration", m.AnalysisDuration},
		{"prosodia.generation.duration", m.GenerationDuration},
	}

	for _, tc := range histograms {
		tc.h.Record(ctx, 0.123)
		tc.h.Record(ctx, 12.5)
	}

	rm := collect(t, reader)

	for _, tc := range histograms {
		t.Run(tc.name, func(t *testing.T) {
			met := findMetric(rm, tc.name)
			if met == nil {
				t.Fatalf("metric %q not found", tc.name)
			}
			hist, ok := met.Data.(metricdata.Histogram[float64])
			if !ok {
				t.Fatalf("metric %q is not a histogram", tc.name)
			}
			if len(hist.DataPoints) == 0 {
				t.Fatalf("metric %q has no data points", tc.name)
			}
			dp := hist.DataPoints[0]
			if got := dp.Count; got != 2 {
				t.Errorf("sample count = %d, want 2", got)
			}
			if got, want := len(dp.Bounds), len(latencyBuckets); got != want {
				t.Errorf("bucket bounds = %d, want %d", got, want)
			}
		})
	}
}

func TestSince(t *testing.T) {
	m, reader := newTestMetrics(t)
	Since(context.Background(), m.AnalysisDuration, time.Now().Add(-2*time.Second), Attr("file", "a.wav"))

	met := findMetric(collect(t, reader), "prosodia.analysis.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist := met.Data.(metricdata.Histogram[float64])
	if got := hist.DataPoints[0].Sum; got < 2 {
		t.Errorf("recorded sum = %v, want >= 2", got)
	}
}

func TestRecordProviderRequest(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordProviderRequest(ctx, "coqui", "ok")
	m.RecordProviderRequest(ctx, "coqui", "ok")
	m.RecordProviderRequest(ctx, "coqui", "error")

	rm := collect(t, reader)
	req := findMetric(rm, "prosodia.provider.requests")
	if req == nil {
		t.Fatal("requests metric not found")
	}
	if got := sumFor(t, req, Attr("provider", "coqui"), Attr("status", "ok")); got != 2 {
		t.Errorf("ok requests = %d, want 2", got)
	}
	if got := sumFor(t, req, Attr("provider", "coqui"), Attr("status", "error")); got != 1 {
		t.Errorf("error requests = %d, want 1", got)
	}

	errs := findMetric(rm, "prosodia.provider.errors")
	if errs == nil {
		t.Fatal("errors metric not found")
	}
	if got := sumFor(t, errs, Attr("provider", "coqui")); got != 1 {
		t.Errorf("provider errors = %d, want 1", got)
	}
}

func TestRecordSample(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordSample(ctx, true)
	m.RecordSample(ctx, true)
	m.RecordSample(ctx, false)

	met := findMetric(collect(t, reader), "prosodia.samples.generated")
	if met == nil {
		t.Fatal("metric not found")
	}
	if got := sumFor(t, met, Attr("status", "ok")); got != 2 {
		t.Errorf("ok samples = %d, want 2", got)
	}
	if got := sumFor(t, met, Attr("status", "failed")); got != 1 {
		t.Errorf("failed samples = %d, want 1", got)
	}
}

func TestRecordCheck(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordCheck(ctx, "Pitch Reduction", true)
	m.RecordCheck(ctx, "Speaking Rate", false)

	met := findMetric(collect(t, reader), "prosodia.validation.checks")
	if met == nil {
		t.Fatal("metric not found")
	}
	if got := sumFor(t, met, Attr("metric", "Pitch Reduction"), attribute.Bool("pass", true)); got != 1 {
		t.Errorf("passing pitch checks = %d, want 1", got)
	}
	if got := sumFor(t, met, Attr("metric", "Speaking Rate"), attribute.Bool("pass", false)); got != 1 {
		t.Errorf("failing rate checks = %d, want 1", got)
	}
}

func TestDefaultMetrics_Singleton(t *testing.T) {
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a == nil {
		t.Fatal("DefaultMetrics returned nil")
	}
	if a != b {
		t.Error("DefaultMetrics returned different instances")
	}
}
