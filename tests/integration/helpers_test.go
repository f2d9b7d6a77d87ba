//go:build integration

package integration

import (
	"net/http"
	"testing"
	"time"

	"github.com/bissquit/status-garden/internal/testutil"
	"github.com/stretchr/testify/require"
)

const testPassword = "password123"

// newUser registers a fresh account and returns a client logged in as it.
func newUser(t *testing.T, prefix string) (*testutil.Client, string) {
	t.Helper()
	client := newTestClient(t)
	userID := client.Register(t, testutil.RandomEmail(prefix), testPassword)
	return client, userID
}

// createOrganization creates an organization owned by the client's user.
func createOrganization(t *testing.T, client *testutil.Client, name string) (id, slug string) {
	t.Helper()

	resp, err := client.POST("/api/v1/organizations", map[string]interface{}{
		"name": name,
		"slug": testutil.RandomSlug("org"),
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result struct {
		Data struct {
			ID   string `json:"id"`
			Slug string `json:"slug"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return result.Data.ID, result.Data.Slug
}

func orgPath(orgID, rest string) string {
	return "/api/v1/organizations/" + orgID + rest
}

type serviceOption func(map[string]interface{})

func withPublic(public bool) serviceOption {
	return func(m map[string]interface{}) {
		m["is_public"] = public
	}
}

func withStatus(status string) serviceOption {
	return func(m map[string]interface{}) {
		m["status"] = status
	}
}

// createService creates a service in the organization and returns its id.
func createService(t *testing.T, client *testutil.Client, orgID, name string, opts ...serviceOption) string {
	t.Helper()

	payload := map[string]interface{}{
		"name": name,
	}
	for _, opt := range opts {
		opt(payload)
	}

	resp, err := client.POST(orgPath(orgID, "/services"), payload)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return result.Data.ID
}

// getServiceStatus returns the current status of a service.
func getServiceStatus(t *testing.T, client *testutil.Client, orgID, serviceID string) string {
	t.Helper()

	resp, err := client.GET(orgPath(orgID, "/services/"+serviceID))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return result.Data.Status
}

type incidentResult struct {
	ID         string   `json:"id"`
	Status     string   `json:"status"`
	Impact     string   `json:"impact"`
	ResolvedAt *string  `json:"resolved_at"`
	ServiceIDs []string `json:"service_ids"`
}

// createIncident opens an incident affecting the given services.
func createIncident(t *testing.T, client *testutil.Client, orgID, title, impact string, serviceIDs ...string) incidentResult {
	t.Helper()

	resp, err := client.POST(orgPath(orgID, "/incidents"), map[string]interface{}{
		"title":       title,
		"impact":      impact,
		"service_ids": serviceIDs,
		"message":     "We are investigating.",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result struct {
		Data incidentResult `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return result.Data
}

type maintenanceResult struct {
	ID              string   `json:"id"`
	Status          string   `json:"status"`
	ActualStartTime *string  `json:"actual_start_time"`
	ActualEndTime   *string  `json:"actual_end_time"`
	ServiceIDs      []string `json:"service_ids"`
}

// createMaintenance schedules a window starting at start and lasting an hour.
func createMaintenance(t *testing.T, client *testutil.Client, orgID, title string, start time.Time, serviceIDs ...string) maintenanceResult {
	t.Helper()

	payload := map[string]interface{}{
		"title":                title,
		"scheduled_start_time": start.UTC().Format(time.RFC3339),
		"scheduled_end_time":   start.Add(time.Hour).UTC().Format(time.RFC3339),
	}
	if len(serviceIDs) > 0 {
		payload["service_ids"] = serviceIDs
	}

	resp, err := client.POST(orgPath(orgID, "/maintenances"), payload)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result struct {
		Data maintenanceResult `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return result.Data
}

// requireStatus checks the status code and closes the body.
func requireStatus(t *testing.T, resp *http.Response, err error, want int) {
	t.Helper()
	require.NoError(t, err)
	body := testutil.ReadBody(t, resp)
	require.Equal(t, want, resp.StatusCode, "body: %s", body)
}
