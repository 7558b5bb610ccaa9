package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func sweepResult(passed, failed int, avgMs int64) *TestResult {
	r := NewTestResult(ProbeEndpointTest)
	for i := 0; i < passed; i++ {
		r.Endpoints = append(r.Endpoints, EndpointResult{Success: true, ResponseTimeMs: avgMs})
	}
	for i := 0; i < failed; i++ {
		r.Endpoints = append(r.Endpoints, EndpointResult{Success: false, ResponseTimeMs: avgMs, Error: "status 500"})
	}
	r.Finalize(time.Now())
	return r
}

func TestFinalize_SummarizesEndpoints(t *testing.T) {
	r := sweepResult(3, 1, 100)

	assert.Equal(t, 4, r.Summary.Total)
	assert.Equal(t, 3, r.Summary.Passed)
	assert.Equal(t, 1, r.Summary.Failed)
	assert.Equal(t, int64(100), r.Summary.AvgResponseTimeMs)
	assert.Equal(t, 0.25, r.ErrorRate())
}

func TestErrorRate_EmptyResultIsZero(t *testing.T) {
	r := NewTestResult(ProbeHealthCheck)
	r.Finalize(time.Now())

	assert.Equal(t, 0.0, r.ErrorRate())
}

func TestIngest_CountWeightedAverage(t *testing.T) {
	var m ProbeMetrics

	// 10 probes at 100ms, then 2 probes at 700ms:
	// (10*100 + 2*700) / 12 = 200ms.
	m.Ingest(sweepResult(10, 0, 100))
	m.Ingest(sweepResult(2, 0, 700))

	assert.Equal(t, int64(12), m.TotalProbes)
	assert.InDelta(t, 200.0, m.AvgResponseTimeMs, 0.001)
}

func TestIngest_UptimeIsLifetimeRatio(t *testing.T) {
	var m ProbeMetrics

	for i := 0; i < 19; i++ {
		m.Ingest(sweepResult(5, 0, 50))
	}
	m.Ingest(sweepResult(4, 1, 50))

	assert.Equal(t, 20, m.TotalTests)
	assert.Equal(t, 1, m.TotalFailures)
	assert.InDelta(t, 0.95, m.Uptime, 0.001)
}

func TestIngest_StampsLastTestTime(t *testing.T) {
	var m ProbeMetrics
	r := sweepResult(1, 0, 10)

	m.Ingest(r)

	assert.Equal(t, r.Timestamp, m.LastTestTime)
}
