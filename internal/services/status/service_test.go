package status

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/autoforgehq/autoforge/internal/models"
)

func metricsWithUptime(uptime float64) models.ProbeMetrics {
	return models.ProbeMetrics{TotalTests: 100, Uptime: uptime}
}

func TestDerive_UptimeThresholds(t *testing.T) {
	tests := []struct {
		name   string
		uptime float64
		want   models.HealthStatus
	}{
		{"perfect", 1.0, models.HealthHealthy},
		{"at healthy boundary", 0.95, models.HealthHealthy},
		{"between boundaries", 0.93, models.HealthDegraded},
		{"at degraded boundary", 0.90, models.HealthDegraded},
		{"below degraded", 0.89, models.HealthUnhealthy},
		{"down", 0.10, models.HealthUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Derive(metricsWithUptime(tt.uptime), 0, 5)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDerive_AlertBurstForcesUnhealthy(t *testing.T) {
	// Lifetime uptime is fine but six alerts landed inside the window.
	got := Derive(metricsWithUptime(1.0), 6, 5)
	assert.Equal(t, models.HealthUnhealthy, got)
}

func TestDerive_AlertCountAtLimitNotUnhealthy(t *testing.T) {
	got := Derive(metricsWithUptime(1.0), 5, 5)
	assert.Equal(t, models.HealthHealthy, got)
}

func TestDerive_NoHistoryIsHealthy(t *testing.T) {
	got := Derive(models.ProbeMetrics{}, 0, 5)
	assert.Equal(t, models.HealthHealthy, got)
}
