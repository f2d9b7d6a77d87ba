package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceStatus_Severity(t *testing.T) {
	assert.Equal(t, 0, ServiceStatusOperational.Severity())
	assert.Equal(t, 1, ServiceStatusDegraded.Severity())
	assert.Equal(t, 2, ServiceStatusPartialOutage.Severity())
	assert.Equal(t, 3, ServiceStatusMajorOutage.Severity())
	assert.Equal(t, -1, ServiceStatus("maintenance").Severity())
	assert.False(t, ServiceStatus("maintenance").IsValid())
}

func TestHighestSeverityStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []ServiceStatus
		want     ServiceStatus
	}{
		{"empty", nil, ServiceStatusOperational},
		{"all operational", []ServiceStatus{ServiceStatusOperational, ServiceStatusOperational}, ServiceStatusOperational},
		{"mixed", []ServiceStatus{ServiceStatusOperational, ServiceStatusMajorOutage, ServiceStatusDegraded}, ServiceStatusMajorOutage},
		{"partial beats degraded", []ServiceStatus{ServiceStatusDegraded, ServiceStatusPartialOutage}, ServiceStatusPartialOutage},
		{"unknown ignored", []ServiceStatus{"bogus"}, ServiceStatusOperational},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HighestSeverityStatus(tt.statuses))
		})
	}
}

func TestService_Apply(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := &Service{ID: "s1", Name: "API", Description: "public api", Status: ServiceStatusDegraded, UpdatedAt: t0}

	require.NoError(t, svc.Apply(ServicePatch{IsPublic: Some(true), Description: Null[string]()}, t0.Add(time.Minute)))

	assert.Equal(t, "API", svc.Name)
	assert.Equal(t, "", svc.Description)
	assert.True(t, svc.IsPublic)
	assert.Equal(t, ServiceStatusDegraded, svc.Status)
	assert.Equal(t, t0.Add(time.Minute), svc.UpdatedAt)

	require.Error(t, svc.Apply(ServicePatch{IsPublic: Null[bool]()}, t0))
}
