//go:build integration

package integration

import (
	"net/http"
	"testing"
	"time"

	"github.com/bissquit/status-garden/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaintenances_Lifecycle(t *testing.T) {
	client, _ := newUser(t, "maint")
	orgID, _ := createOrganization(t, client, "Maintenance")
	db := createService(t, client, orgID, "Database")

	m := createMaintenance(t, client, orgID, "DB upgrade", time.Now().Add(time.Hour), db)
	assert.Equal(t, "scheduled", m.Status)
	assert.Equal(t, []string{db}, m.ServiceIDs)
	assert.Nil(t, m.ActualStartTime)

	statusPath := orgPath(orgID, "/maintenances/"+m.ID+"/status")

	resp, err := client.POST(statusPath, map[string]string{"status": "in_progress"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var started struct {
		Data maintenanceResult `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &started)
	assert.Equal(t, "in_progress", started.Data.Status)
	assert.NotNil(t, started.Data.ActualStartTime)
	assert.Nil(t, started.Data.ActualEndTime)

	resp, err = client.POST(statusPath, map[string]string{"status": "scheduled"})
	requireStatus(t, resp, err, http.StatusConflict)

	resp, err = client.POST(statusPath, map[string]string{"status": "completed"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var completed struct {
		Data maintenanceResult `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &completed)
	assert.Equal(t, "completed", completed.Data.Status)
	assert.NotNil(t, completed.Data.ActualStartTime)
	assert.NotNil(t, completed.Data.ActualEndTime)

	resp, err = client.POST(statusPath, map[string]string{"status": "in_progress"})
	requireStatus(t, resp, err, http.StatusConflict)
}

func TestMaintenances_CompleteBackfillsStart(t *testing.T) {
	client, _ := newUser(t, "backfill")
	orgID, _ := createOrganization(t, client, "Backfill")

	m := createMaintenance(t, client, orgID, "Quick fix", time.Now().Add(time.Hour))

	resp, err := client.POST(orgPath(orgID, "/maintenances/"+m.ID+"/status"), map[string]string{"status": "completed"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result struct {
		Data maintenanceResult `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	require.NotNil(t, result.Data.ActualStartTime)
	require.NotNil(t, result.Data.ActualEndTime)
	assert.Equal(t, *result.Data.ActualEndTime, *result.Data.ActualStartTime)
}

func TestMaintenances_InvalidWindow(t *testing.T) {
	client, _ := newUser(t, "window")
	orgID, _ := createOrganization(t, client, "Window")

	start := time.Now().Add(time.Hour).UTC()
	resp, err := client.POST(orgPath(orgID, "/maintenances"), map[string]interface{}{
		"title":                "Backwards",
		"scheduled_start_time": start.Format(time.RFC3339),
		"scheduled_end_time":   start.Add(-time.Minute).Format(time.RFC3339),
	})
	requireStatus(t, resp, err, http.StatusBadRequest)
}

func TestMaintenances_Services(t *testing.T) {
	client, _ := newUser(t, "maint-svc")
	orgID, _ := createOrganization(t, client, "Maintenance Services")
	api := createService(t, client, orgID, "API")

	m := createMaintenance(t, client, orgID, "Network", time.Now().Add(time.Hour))
	path := orgPath(orgID, "/maintenances/"+m.ID)

	resp, err := client.POST(path+"/services", map[string]interface{}{"service_ids": []string{api, api}})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var attached struct {
		Data maintenanceResult `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &attached)
	assert.Equal(t, []string{api}, attached.Data.ServiceIDs)

	resp, err = client.DELETE(path + "/services/" + api)
	requireStatus(t, resp, err, http.StatusOK)

	resp, err = client.DELETE(path + "/services/" + api)
	requireStatus(t, resp, err, http.StatusNotFound)
}

func TestMaintenances_Comments(t *testing.T) {
	owner, _ := newUser(t, "comment-owner")
	orgID, _ := createOrganization(t, owner, "Comments")
	colleague, colleagueID := newUser(t, "comment-colleague")

	resp, err := owner.GET(orgPath(orgID, "/teams"))
	require.NoError(t, err)
	var teams struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &teams)
	require.Len(t, teams.Data, 1)

	resp, err = owner.POST(orgPath(orgID, "/teams/"+teams.Data[0].ID+"/members"), map[string]string{"user_id": colleagueID})
	requireStatus(t, resp, err, http.StatusCreated)

	m := createMaintenance(t, owner, orgID, "Storage migration", time.Now().Add(time.Hour))
	commentsPath := orgPath(orgID, "/maintenances/"+m.ID+"/comments")

	resp, err = owner.POST(commentsPath, map[string]string{"content": "Starting soon"})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var comment struct {
		Data struct {
			ID      string `json:"id"`
			Content string `json:"content"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &comment)
	assert.Equal(t, "Starting soon", comment.Data.Content)

	resp, err = colleague.POST(commentsPath, map[string]string{"content": "Thanks"})
	requireStatus(t, resp, err, http.StatusCreated)

	resp, err = colleague.GET(commentsPath)
	require.NoError(t, err)
	var list struct {
		Data []struct {
			Content string `json:"content"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &list)
	require.Len(t, list.Data, 2)
	assert.Equal(t, "Starting soon", list.Data[0].Content)
	assert.Equal(t, "Thanks", list.Data[1].Content)

	resp, err = colleague.DELETE(commentsPath + "/" + comment.Data.ID)
	requireStatus(t, resp, err, http.StatusForbidden)

	resp, err = owner.DELETE(commentsPath + "/" + comment.Data.ID)
	requireStatus(t, resp, err, http.StatusNoContent)

	resp, err = owner.DELETE(commentsPath + "/" + comment.Data.ID)
	requireStatus(t, resp, err, http.StatusNotFound)

	resp, err = owner.POST(commentsPath, map[string]string{"content": ""})
	requireStatus(t, resp, err, http.StatusBadRequest)
}

func TestMaintenances_ListFilters(t *testing.T) {
	client, _ := newUser(t, "maint-filter")
	orgID, _ := createOrganization(t, client, "Maintenance Filters")

	upcoming := createMaintenance(t, client, orgID, "Upcoming", time.Now().Add(2*time.Hour))
	running := createMaintenance(t, client, orgID, "Running", time.Now().Add(-30*time.Minute))
	done := createMaintenance(t, client, orgID, "Done", time.Now().Add(-3*time.Hour))

	resp, err := client.POST(orgPath(orgID, "/maintenances/"+running.ID+"/status"), map[string]string{"status": "in_progress"})
	requireStatus(t, resp, err, http.StatusOK)
	resp, err = client.POST(orgPath(orgID, "/maintenances/"+done.ID+"/status"), map[string]string{"status": "completed"})
	requireStatus(t, resp, err, http.StatusOK)

	tests := []struct {
		query string
		want  []string
	}{
		{query: "", want: []string{done.ID, running.ID, upcoming.ID}},
		{query: "?status=active", want: []string{running.ID, upcoming.ID}},
		{query: "?status=upcoming", want: []string{upcoming.ID}},
		{query: "?status=completed", want: []string{done.ID}},
	}

	for _, tt := range tests {
		t.Run("status"+tt.query, func(t *testing.T) {
			resp, err := client.GET(orgPath(orgID, "/maintenances"+tt.query))
			require.NoError(t, err)
			var list struct {
				Data []struct {
					ID string `json:"id"`
				} `json:"data"`
			}
			testutil.DecodeJSON(t, resp, &list)

			ids := make([]string, 0, len(list.Data))
			for _, m := range list.Data {
				ids = append(ids, m.ID)
			}
			// Ordered by scheduled start.
			assert.Equal(t, tt.want, ids)
		})
	}
}
