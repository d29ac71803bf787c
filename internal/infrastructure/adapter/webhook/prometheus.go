package webhook

import (
	"encoding/json"
	"errors"
	"time"

	"alarm-triage-agent/internal/domain/entity"
)

// alertmanagerPayload represents the JSON structure of Alertmanager
// webhooks.
type alertmanagerPayload struct {
	Alerts []alertmanagerAlert `json:"alerts"`
}

type alertmanagerAlert struct {
	Status      string            `json:"status"`
	Labels      map[string]string `json:"labels"`
	Annotations map[string]string `json:"annotations"`
	StartsAt    time.Time         `json:"startsAt"`
	EndsAt      time.Time         `json:"endsAt"`
}

// parseAlertmanager translates an Alertmanager webhook payload into alarm
// events. Firing alerts map to ALARM and resolved alerts to OK, so
// recoveries flow through and get skipped by the handler like any other
// non-alarming transition. Alerts without an alertname label are dropped.
func parseAlertmanager(payload []byte) ([]*entity.AlarmEvent, error) {
	if len(payload) == 0 {
		return nil, errors.New("empty payload")
	}

	var am alertmanagerPayload
	if err := json.Unmarshal(payload, &am); err != nil {
		return nil, err
	}

	var alarms []*entity.AlarmEvent
	for _, alert := range am.Alerts {
		name := alert.Labels["alertname"]
		if name == "" {
			continue
		}

		state := entity.AlarmStateAlarm
		timestamp := alert.StartsAt
		if alert.Status == "resolved" {
			state = entity.AlarmStateOK
			timestamp = alert.EndsAt
		}
		if timestamp.IsZero() {
			timestamp = time.Now().UTC()
		}

		metadata := map[string]any{"source": "alertmanager"}
		for k, v := range alert.Labels {
			if k != "alertname" {
				metadata[k] = v
			}
		}
		for k, v := range alert.Annotations {
			metadata[k] = v
		}

		alarm, err := entity.NewAlarmEvent(name, state, timestamp, metadata)
		if err != nil {
			continue
		}
		alarms = append(alarms, alarm)
	}

	return alarms, nil
}
