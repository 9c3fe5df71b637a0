package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	require.NoError(t, m.Track("scan").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("scan").End(boom), boom)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("scan", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("scan", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("scan")))
}

func TestAddFindingsIgnoresEmpty(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddFindings("expiry", "red", 3)
	m.AddFindings("expiry", "red", 0)
	require.Equal(t, 3.0, testutil.ToFloat64(m.findings.WithLabelValues("expiry", "red")))

	var nilMetrics *Metrics
	nilMetrics.AddFindings("expiry", "red", 1)
	require.NoError(t, nilMetrics.Track("x").End(nil))
}
