// Package service contains application services shared across use cases.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"alarm-triage-agent/internal/domain/entity"
	"alarm-triage-agent/internal/domain/port"
)

// Sentinel errors for ReportService construction and emission.
var (
	ErrNilArtifactStore = errors.New("artifact store cannot be nil")
	ErrNilNotifier      = errors.New("notifier cannot be nil")
	ErrNilResult        = errors.New("investigation result cannot be nil")
)

const reportContentType = "application/json"

// failedAnalysisNotice replaces the analysis body when an investigation ends
// FAILED. The report never carries fabricated findings.
const failedAnalysisNotice = `No analysis available: the investigation failed before producing findings.

Manual investigation required:
1. Check the alarm details in the monitoring console
2. Review the affected resource logs
3. Examine recent changes or deployments
4. Verify permissions and resource configurations`

// ReportService turns a terminal investigation result into a stored report
// and exactly one notification. Storage failures do not suppress the
// notification; both outcomes are reported to the caller.
type ReportService struct {
	store    port.ArtifactStore
	notifier port.Notifier
	logger   *zap.Logger
	now      func() time.Time
	suffix   func() string
	onStore  func(stored bool)
}

// SetStoreObserver registers a callback invoked once per Emit with whether
// the report write succeeded. Used to record write outcomes in the metric
// set.
func (s *ReportService) SetStoreObserver(observe func(stored bool)) {
	s.onStore = observe
}

// NewReportService creates a ReportService.
// A nil logger falls back to a no-op logger.
func NewReportService(store port.ArtifactStore, notifier port.Notifier, logger *zap.Logger) (*ReportService, error) {
	if store == nil {
		return nil, ErrNilArtifactStore
	}
	if notifier == nil {
		return nil, ErrNilNotifier
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		store:    store,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		suffix:   func() string { return uuid.NewString()[:8] },
	}, nil
}

// reportDocument is the stored report shape.
type reportDocument struct {
	InvestigationID        string                  `json:"investigation_id"`
	AlarmName              string                  `json:"alarm_name"`
	AlarmState             string                  `json:"alarm_state"`
	Status                 string                  `json:"status"`
	InvestigationTimestamp string                  `json:"investigation_timestamp"`
	Analysis               string                  `json:"analysis"`
	Error                  string                  `json:"error,omitempty"`
	TruncatedReason        string                  `json:"truncated_reason,omitempty"`
	Iterations             int                     `json:"iterations"`
	ElapsedSeconds         float64                 `json:"elapsed_seconds"`
	Invocations            []entity.ToolInvocation `json:"invocations,omitempty"`
	Transcript             []entity.Message        `json:"transcript,omitempty"`
}

// Emit stores the report for the result and sends its notification.
// It returns the stored report location; an empty location with a non-nil
// error means storage failed but the notification may still have gone out.
func (s *ReportService) Emit(
	ctx context.Context,
	result *entity.InvestigationResult,
	alarm *entity.AlarmEvent,
) (string, error) {
	if result == nil {
		return "", ErrNilResult
	}
	if alarm == nil {
		return "", entity.ErrNilAlarmEvent
	}

	analysis := s.analysisText(result)
	key := s.reportKey(alarm.Identity())

	doc := reportDocument{
		InvestigationID:        result.ID,
		AlarmName:              alarm.Identity(),
		AlarmState:             alarm.State(),
		Status:                 result.Status,
		InvestigationTimestamp: s.now().UTC().Format(time.RFC3339),
		Analysis:               analysis,
		Error:                  result.ErrorDetail,
		TruncatedReason:        result.TruncatedReason,
		Iterations:             result.Iterations,
		ElapsedSeconds:         result.Elapsed.Seconds(),
		Invocations:            result.Invocations,
	}
	if result.Transcript != nil {
		doc.Transcript = result.Transcript.Messages()
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding report: %w", err)
	}

	location, storeErr := s.store.Put(ctx, key, data, reportContentType)
	if s.onStore != nil {
		s.onStore(storeErr == nil)
	}
	if storeErr != nil {
		s.logger.Error("report storage failed",
			zap.String("investigation_id", result.ID),
			zap.String("key", key),
			zap.Error(storeErr),
		)
		location = ""
	} else {
		s.logger.Info("report stored",
			zap.String("investigation_id", result.ID),
			zap.String("location", location),
		)
	}

	payload := port.NotificationPayload{
		InvestigationID:  result.ID,
		AlarmIdentity:    alarm.Identity(),
		AlarmState:       alarm.State(),
		Status:           result.Status,
		Summary:          extractExecutiveSummary(analysis),
		ArtifactLocation: location,
	}
	notifyErr := s.notifier.Notify(ctx, payload)
	if notifyErr != nil {
		s.logger.Error("notification failed",
			zap.String("investigation_id", result.ID),
			zap.Error(notifyErr),
		)
	}

	return location, errors.Join(storeErr, notifyErr)
}

// analysisText picks the analysis body for the report. FAILED runs get the
// fixed no-analysis notice; truncated runs keep whatever partial analysis the
// model produced, flagged with the truncation reason.
func (s *ReportService) analysisText(result *entity.InvestigationResult) string {
	if result.Status == entity.StatusFailed {
		return failedAnalysisNotice
	}
	if result.Status == entity.StatusTruncated && !result.HasAnalysis() {
		return "Investigation truncated before a final analysis was produced: " + result.TruncatedReason
	}
	return result.Analysis
}

// reportKey builds a time-partitioned, collision-resistant object key:
// reports/YYYY/MM/DD/<alarm>-<timestamp>-<suffix>.json.
func (s *ReportService) reportKey(alarmIdentity string) string {
	now := s.now().UTC()
	return fmt.Sprintf("reports/%s/%s-%s-%s.json",
		now.Format("2006/01/02"),
		cleanName(alarmIdentity),
		now.Format("20060102-150405"),
		s.suffix(),
	)
}

// cleanName keeps alphanumerics, dashes, and underscores; everything else
// becomes an underscore.
func cleanName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// extractExecutiveSummary pulls the EXECUTIVE SUMMARY section out of a
// structured analysis, falling back to a prefix of the whole text.
func extractExecutiveSummary(analysis string) string {
	const marker = "EXECUTIVE SUMMARY"
	idx := strings.Index(analysis, marker)
	if idx >= 0 {
		rest := analysis[idx+len(marker):]
		if end := strings.Index(rest, "###"); end >= 0 {
			rest = rest[:end]
		}
		if summary := strings.TrimSpace(rest); summary != "" {
			return summary
		}
	}
	const limit = 300
	trimmed := strings.TrimSpace(analysis)
	if len(trimmed) > limit {
		// Back up to a rune boundary so the cut never splits a multibyte
		// character.
		cut := limit
		for cut > 0 && !utf8.RuneStart(trimmed[cut]) {
			cut--
		}
		return trimmed[:cut] + "..."
	}
	return trimmed
}
