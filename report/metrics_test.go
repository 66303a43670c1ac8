package report

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	start := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	l := newLog("backup", func() time.Time { return start })
	l.Add(Entry{Kind: KindUpload, Subject: "a", Outcome: OutcomeSucceeded})
	l.Add(Entry{Kind: KindUpload, Subject: "b", Outcome: OutcomeSucceeded})
	l.Fail(KindFetch, "entities", errors.New("down"))
	m.Observe(l)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.items.WithLabelValues("upload", "succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.items.WithLabelValues("fetch", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("backup", "true")))
	assert.Equal(t, float64(start.Unix()), testutil.ToFloat64(m.lastRun.WithLabelValues("backup")))
}
