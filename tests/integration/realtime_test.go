//go:build integration

package integration

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wsMessage struct {
	Type           string          `json:"type"`
	OrganizationID string          `json:"organization_id"`
	Payload        json.RawMessage `json:"payload"`
}

func dialRealtime(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(testServer.URL, "http") + "/api/v1/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntil reads messages until one of the given type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) wsMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg wsMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == msgType {
			return msg
		}
	}
}

func TestRealtime_ServiceStatusChange(t *testing.T) {
	client, _ := newUser(t, "realtime")
	orgID, _ := createOrganization(t, client, "Realtime")
	serviceID := createService(t, client, orgID, "API")

	conn := dialRealtime(t)
	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type":    "join:organization",
		"payload": map[string]string{"organization_id": orgID},
	}))
	joined := readUntil(t, conn, "organization:joined")
	assert.Equal(t, orgID, joined.OrganizationID)

	resp, err := client.POST(orgPath(orgID, "/services/"+serviceID+"/status"), map[string]string{"status": "partial_outage"})
	requireStatus(t, resp, err, http.StatusOK)

	msg := readUntil(t, conn, "service:status:change")
	assert.Equal(t, orgID, msg.OrganizationID)

	var payload struct {
		ServiceID      string `json:"service_id"`
		Status         string `json:"status"`
		PreviousStatus string `json:"previous_status"`
	}
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, serviceID, payload.ServiceID)
	assert.Equal(t, "partial_outage", payload.Status)
	assert.Equal(t, "operational", payload.PreviousStatus)
}

func TestRealtime_IncidentEventsInOrder(t *testing.T) {
	client, _ := newUser(t, "realtime-inc")
	orgID, _ := createOrganization(t, client, "Realtime Incidents")
	serviceID := createService(t, client, orgID, "API")

	conn := dialRealtime(t)
	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type":    "join:organization",
		"payload": map[string]string{"organization_id": orgID},
	}))
	readUntil(t, conn, "organization:joined")

	createIncident(t, client, orgID, "Outage", "major_outage", serviceID)

	// The incident is announced before the services it drives.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var first, second wsMessage
	require.NoError(t, conn.ReadJSON(&first))
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, "incident:create", first.Type)
	assert.Equal(t, "service:status:change", second.Type)
}

func TestRealtime_InvalidJoin(t *testing.T) {
	conn := dialRealtime(t)
	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type":    "join:organization",
		"payload": map[string]string{"organization_id": "not-a-uuid"},
	}))
	readUntil(t, conn, "error")
}
