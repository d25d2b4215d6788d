package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestJobMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewJobMetricsWithRegisterer(reg, Config{ServiceName: "test", Environment: "ci"})

	m.ObserveJobRun("reauthorization", true, 10*time.Millisecond)
	m.ObserveJobRun("reauthorization", false, 5*time.Millisecond)
	m.IncRetryOutcome("dead_lettered")
	m.SetRetryBacklog(3)
	m.IncDepositTransition("captured", "webhook")
	m.SetDedupeEntries(7)

	if got := testutil.ToFloat64(m.jobRuns.WithLabelValues("reauthorization", "failure")); got != 1 {
		t.Fatalf("expected 1 failed run, got %v", got)
	}
	if got := testutil.ToFloat64(m.retryOutcomes.WithLabelValues("dead_lettered")); got != 1 {
		t.Fatalf("expected 1 dead letter, got %v", got)
	}
	if got := testutil.ToFloat64(m.retryBacklog); got != 3 {
		t.Fatalf("expected backlog 3, got %v", got)
	}
	if got := testutil.ToFloat64(m.depositTransitions.WithLabelValues("captured", "webhook")); got != 1 {
		t.Fatalf("expected 1 captured transition, got %v", got)
	}
	if got := testutil.ToFloat64(m.dedupeEntries); got != 7 {
		t.Fatalf("expected 7 dedupe entries, got %v", got)
	}
}

func TestNilJobMetricsIsSafe(t *testing.T) {
	var m *JobMetrics
	m.ObserveJobRun("x", true, time.Second)
	m.IncRetryOutcome("processed")
	m.SetRetryBacklog(1)
	m.IncDepositTransition("authorized", "engine")
	m.IncWebhookEvent("payment_intent.succeeded", "applied")
	m.SetDedupeEntries(2)
}
