package report

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alarm-triage-agent/internal/domain/port"
)

func samplePayload() port.NotificationPayload {
	return port.NotificationPayload{
		InvestigationID:  "inv-123",
		AlarmIdentity:    "prod-api-latency",
		AlarmState:       "ALARM",
		Status:           "COMPLETED",
		Summary:          "Latency spike caused by connection pool exhaustion.",
		ArtifactLocation: "gs://triage-reports/reports/2026/08/25/prod-api-latency.json",
	}
}

func TestWebhookNotifier_Notify(t *testing.T) {
	var got port.NotificationPayload
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n, err := NewWebhookNotifier(WebhookNotifierConfig{URL: server.URL, AuthToken: "s3cret"}, nil)
	require.NoError(t, err)

	require.NoError(t, n.Notify(context.Background(), samplePayload()))
	assert.Equal(t, samplePayload(), got)
	assert.Equal(t, "Bearer s3cret", gotAuth)
}

func TestWebhookNotifier_EndpointFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "downstream unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	n, err := NewWebhookNotifier(WebhookNotifierConfig{URL: server.URL}, nil)
	require.NoError(t, err)

	err = n.Notify(context.Background(), samplePayload())
	assert.ErrorContains(t, err, "502")
}

func TestWebhookNotifier_Validation(t *testing.T) {
	_, err := NewWebhookNotifier(WebhookNotifierConfig{}, nil)
	assert.Error(t, err)
}
