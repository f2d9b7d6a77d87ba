//go:build integration

package integration

import (
	"net/http"
	"testing"

	"github.com/bissquit/status-garden/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncidents_Lifecycle(t *testing.T) {
	client, _ := newUser(t, "incident")
	orgID, _ := createOrganization(t, client, "Incidents")
	api := createService(t, client, orgID, "API")
	db := createService(t, client, orgID, "Database")

	incident := createIncident(t, client, orgID, "API errors", "major_outage", api, db, api)
	assert.Equal(t, "investigating", incident.Status)
	assert.ElementsMatch(t, []string{api, db}, incident.ServiceIDs)
	assert.Equal(t, "major_outage", getServiceStatus(t, client, orgID, api))
	assert.Equal(t, "major_outage", getServiceStatus(t, client, orgID, db))

	updatesPath := orgPath(orgID, "/incidents/"+incident.ID+"/updates")

	resp, err := client.POST(updatesPath, map[string]string{"status": "identified", "message": "Root cause found"})
	requireStatus(t, resp, err, http.StatusCreated)

	resp, err = client.POST(updatesPath, map[string]string{})
	requireStatus(t, resp, err, http.StatusBadRequest)

	// Repeating the current status without a message adds nothing to the log.
	resp, err = client.POST(updatesPath, map[string]string{"status": "identified"})
	requireStatus(t, resp, err, http.StatusBadRequest)

	resp, err = client.POST(updatesPath, map[string]string{"message": "Still working on it"})
	requireStatus(t, resp, err, http.StatusCreated)

	resp, err = client.POST(updatesPath, map[string]string{"status": "resolved", "message": "Fixed"})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var resolved struct {
		Data struct {
			Update struct {
				Status string `json:"status"`
			} `json:"update"`
			Incident incidentResult `json:"incident"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &resolved)
	assert.Equal(t, "resolved", resolved.Data.Update.Status)
	assert.NotNil(t, resolved.Data.Incident.ResolvedAt)

	assert.Equal(t, "operational", getServiceStatus(t, client, orgID, api))
	assert.Equal(t, "operational", getServiceStatus(t, client, orgID, db))

	// A resolved incident can only be reopened.
	resp, err = client.POST(updatesPath, map[string]string{"status": "monitoring"})
	requireStatus(t, resp, err, http.StatusConflict)

	resp, err = client.GET(orgPath(orgID, "/incidents/"+incident.ID))
	require.NoError(t, err)
	var detail struct {
		Data struct {
			Status  string `json:"status"`
			Updates []struct {
				Status  string `json:"status"`
				Message string `json:"message"`
			} `json:"updates"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &detail)
	assert.Equal(t, "resolved", detail.Data.Status)
	require.Len(t, detail.Data.Updates, 4)
	assert.Equal(t, "investigating", detail.Data.Updates[0].Status)
	assert.Equal(t, "identified", detail.Data.Updates[2].Status)
	assert.Equal(t, "Still working on it", detail.Data.Updates[2].Message)
	assert.Equal(t, "resolved", detail.Data.Updates[3].Status)
}

func TestIncidents_ServicesAndImpact(t *testing.T) {
	client, _ := newUser(t, "impact")
	orgID, _ := createOrganization(t, client, "Impact")
	api := createService(t, client, orgID, "API")
	web := createService(t, client, orgID, "Web")

	incident := createIncident(t, client, orgID, "Slow pages", "degraded", api)
	incidentPath := orgPath(orgID, "/incidents/"+incident.ID)

	resp, err := client.POST(incidentPath+"/services", map[string]interface{}{"service_ids": []string{web}})
	requireStatus(t, resp, err, http.StatusOK)
	assert.Equal(t, "degraded", getServiceStatus(t, client, orgID, web))

	resp, err = client.PATCH(incidentPath, map[string]string{"impact": "partial_outage"})
	requireStatus(t, resp, err, http.StatusOK)
	assert.Equal(t, "partial_outage", getServiceStatus(t, client, orgID, api))
	assert.Equal(t, "partial_outage", getServiceStatus(t, client, orgID, web))

	resp, err = client.DELETE(incidentPath + "/services/" + web)
	requireStatus(t, resp, err, http.StatusOK)
	assert.Equal(t, "operational", getServiceStatus(t, client, orgID, web))

	resp, err = client.DELETE(incidentPath + "/services/" + web)
	requireStatus(t, resp, err, http.StatusNotFound)

	resp, err = client.POST(incidentPath+"/services", map[string]interface{}{
		"service_ids": []string{"00000000-0000-0000-0000-000000000000"},
	})
	requireStatus(t, resp, err, http.StatusBadRequest)
}

func TestIncidents_ListFilters(t *testing.T) {
	client, _ := newUser(t, "filters")
	orgID, _ := createOrganization(t, client, "Filters")

	open := createIncident(t, client, orgID, "Open", "degraded")
	closed := createIncident(t, client, orgID, "Closed", "degraded")
	resp, err := client.POST(orgPath(orgID, "/incidents/"+closed.ID+"/updates"), map[string]string{"status": "resolved"})
	requireStatus(t, resp, err, http.StatusCreated)

	tests := []struct {
		query string
		want  []string
	}{
		{query: "", want: []string{open.ID, closed.ID}},
		{query: "?status=active", want: []string{open.ID}},
		{query: "?status=resolved", want: []string{closed.ID}},
	}

	for _, tt := range tests {
		t.Run("status"+tt.query, func(t *testing.T) {
			resp, err := client.GET(orgPath(orgID, "/incidents"+tt.query))
			require.NoError(t, err)
			var list struct {
				Data []struct {
					ID string `json:"id"`
				} `json:"data"`
			}
			testutil.DecodeJSON(t, resp, &list)

			ids := make([]string, 0, len(list.Data))
			for _, inc := range list.Data {
				ids = append(ids, inc.ID)
			}
			assert.ElementsMatch(t, tt.want, ids)
		})
	}

	resp, err = client.GET(orgPath(orgID, "/incidents?status=bogus"))
	requireStatus(t, resp, err, http.StatusBadRequest)
}
