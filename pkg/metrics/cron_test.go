package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsExportsRunsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	job := "price-sync"
	m.ObserveRun(job, 250*time.Millisecond, nil)
	m.ObserveRun(job, time.Second, errors.New("fx down"))
	m.ObserveRun(job, time.Second, fmt.Errorf("run: %w", context.DeadlineExceeded))
	m.IncSkipped()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	for outcome, want := range map[string]float64{OutcomeSuccess: 1, OutcomeFailure: 1, OutcomeTimeout: 1} {
		if got, err := fetchCounterValue(mfs, "pricesync_cron_job_runs_total", "outcome", outcome); err != nil {
			t.Fatalf("fetch %s: %v", outcome, err)
		} else if got != want {
			t.Fatalf("expected %s=%v, got %f", outcome, want, got)
		}
	}
	if got, err := fetchHistogramSum(mfs, "pricesync_cron_job_duration_seconds", "job", job); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got != 2.25 {
		t.Fatalf("expected duration sum 2.25, got %f", got)
	}
	if mf := findMetricFamily(mfs, "pricesync_cron_job_last_success_timestamp_seconds"); mf == nil || mf.GetMetric()[0].GetGauge().GetValue() <= 0 {
		t.Fatal("expected last success timestamp to be set")
	}
	if got := fetchPlainCounter(mfs, "pricesync_cron_cycles_skipped_total"); got != 1 {
		t.Fatalf("expected skipped=1, got %f", got)
	}
}

func TestPricingMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPricingMetrics(reg)
	m.IncProduct("updated")
	m.IncProduct("updated")
	m.IncProduct("failed")
	m.IncProduct("")
	m.IncFXFailure()
	m.IncRestored()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, _ := fetchCounterValue(mfs, "pricesync_products_total", "status", "updated"); got != 2 {
		t.Fatalf("expected updated=2, got %f", got)
	}
	if got, _ := fetchCounterValue(mfs, "pricesync_products_total", "status", "unknown"); got != 1 {
		t.Fatalf("expected unknown=1, got %f", got)
	}
	if got := fetchPlainCounter(mfs, "pricesync_fx_failures_total"); got != 1 {
		t.Fatalf("expected fx failures=1, got %f", got)
	}
	if got := fetchPlainCounter(mfs, "sale_expiry_restored_total"); got != 1 {
		t.Fatalf("expected restored=1, got %f", got)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var cron *CronJobMetrics
	cron.ObserveRun("x", time.Second, nil)
	cron.IncSkipped()
	NewCronJobMetrics(nil).ObserveRun("x", time.Second, nil)
	var pricing *PricingMetrics
	pricing.IncProduct("updated")
	NewPricingMetrics(nil).IncRestored()
}

func fetchPlainCounter(mfs []*dto.MetricFamily, name string) float64 {
	mf := findMetricFamily(mfs, name)
	if mf == nil || len(mf.GetMetric()) == 0 {
		return -1
	}
	return mf.GetMetric()[0].GetCounter().GetValue()
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
