package port

import "context"

// ArtifactStore persists serialized investigation reports. Put writes the
// payload under the given key and returns the durable location (e.g. a
// gs:// or s3:// URL) for inclusion in notifications.
type ArtifactStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// NotificationPayload is the condensed message sent for every terminal
// outcome. It carries an executive summary and a pointer to the full
// artifact, never raw data retrieved by tool calls.
type NotificationPayload struct {
	InvestigationID  string `json:"investigation_id"`
	AlarmIdentity    string `json:"alarm_identity"`
	AlarmState       string `json:"alarm_state"`
	Status           string `json:"status"`
	Summary          string `json:"summary"`
	ArtifactLocation string `json:"artifact_location,omitempty"`
}

// Notifier delivers exactly one notification per terminal outcome.
type Notifier interface {
	Notify(ctx context.Context, payload NotificationPayload) error
}
