package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alarm-triage-agent/internal/domain/entity"
	"alarm-triage-agent/internal/domain/port"
)

var (
	errStoreDown  = errors.New("bucket unavailable")
	errNotifyDown = errors.New("webhook unreachable")
)

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}}
}

func (m *memoryStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.objects[key] = data
	return "mem://" + key, nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	payloads []port.NotificationPayload
	err      error
}

func (n *recordingNotifier) Notify(_ context.Context, payload port.NotificationPayload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.payloads = append(n.payloads, payload)
	return n.err
}

func fixedClockService(t *testing.T, store port.ArtifactStore, notifier port.Notifier) *ReportService {
	t.Helper()
	svc, err := NewReportService(store, notifier, nil)
	require.NoError(t, err)
	svc.now = func() time.Time {
		return time.Date(2026, 8, 25, 14, 30, 5, 0, time.UTC)
	}
	svc.suffix = func() string { return "abcd1234" }
	return svc
}

func terminalResult(t *testing.T, terminate func(*entity.Investigation) error) (*entity.InvestigationResult, *entity.AlarmEvent) {
	t.Helper()
	alarm, err := entity.NewAlarmEvent("prod/api latency!", entity.AlarmStateAlarm, time.Now(), nil)
	require.NoError(t, err)
	inv, err := entity.NewInvestigation("inv-007", alarm)
	require.NoError(t, err)
	require.NoError(t, inv.AwaitModel())
	require.NoError(t, terminate(inv))
	return inv.Result(entity.NewConversation()), alarm
}

func TestNewReportService_Validation(t *testing.T) {
	store := newMemoryStore()
	notifier := &recordingNotifier{}

	_, err := NewReportService(nil, notifier, nil)
	assert.ErrorIs(t, err, ErrNilArtifactStore)

	_, err = NewReportService(store, nil, nil)
	assert.ErrorIs(t, err, ErrNilNotifier)
}

func TestReportService_EmitCompleted(t *testing.T) {
	store := newMemoryStore()
	notifier := &recordingNotifier{}
	svc := fixedClockService(t, store, notifier)

	analysis := "### EXECUTIVE SUMMARY\nThe API pool was exhausted by a retry storm.\n\n### ROOT CAUSE ANALYSIS\ndetails"
	result, alarm := terminalResult(t, func(inv *entity.Investigation) error {
		return inv.Complete(analysis)
	})

	location, err := svc.Emit(context.Background(), result, alarm)
	require.NoError(t, err)

	wantKey := "reports/2026/08/25/prod_api_latency_-20260825-143005-abcd1234.json"
	assert.Equal(t, "mem://"+wantKey, location)

	stored, ok := store.objects[wantKey]
	require.True(t, ok, "report must be stored under the time-partitioned key")

	var doc map[string]any
	require.NoError(t, json.Unmarshal(stored, &doc))
	assert.Equal(t, "inv-007", doc["investigation_id"])
	assert.Equal(t, "prod/api latency!", doc["alarm_name"])
	assert.Equal(t, entity.StatusCompleted, doc["status"])
	assert.Contains(t, doc["analysis"], "retry storm")

	require.Len(t, notifier.payloads, 1, "exactly one notification per terminal outcome")
	payload := notifier.payloads[0]
	assert.Equal(t, "The API pool was exhausted by a retry storm.", payload.Summary)
	assert.Equal(t, location, payload.ArtifactLocation)
	assert.Equal(t, entity.StatusCompleted, payload.Status)
}

func TestReportService_EmitFailedUsesNoAnalysisNotice(t *testing.T) {
	store := newMemoryStore()
	notifier := &recordingNotifier{}
	svc := fixedClockService(t, store, notifier)

	result, alarm := terminalResult(t, func(inv *entity.Investigation) error {
		return inv.Fail(errors.New("model backend unavailable"))
	})

	_, err := svc.Emit(context.Background(), result, alarm)
	require.NoError(t, err)

	require.Len(t, notifier.payloads, 1)
	assert.Contains(t, notifier.payloads[0].Summary, "No analysis available")
	assert.NotContains(t, notifier.payloads[0].Summary, "root cause", "failed runs must not fabricate findings")
}

func TestReportService_EmitTruncatedWithoutAnalysis(t *testing.T) {
	store := newMemoryStore()
	notifier := &recordingNotifier{}
	svc := fixedClockService(t, store, notifier)

	result, alarm := terminalResult(t, func(inv *entity.Investigation) error {
		return inv.Truncate("iteration cap of 100 reached")
	})

	_, err := svc.Emit(context.Background(), result, alarm)
	require.NoError(t, err)

	require.Len(t, notifier.payloads, 1)
	assert.Contains(t, notifier.payloads[0].Summary, "iteration cap")
}

func TestReportService_StoreFailureStillNotifies(t *testing.T) {
	store := newMemoryStore()
	store.err = errStoreDown
	notifier := &recordingNotifier{}
	svc := fixedClockService(t, store, notifier)

	result, alarm := terminalResult(t, func(inv *entity.Investigation) error {
		return inv.Complete("analysis")
	})

	location, err := svc.Emit(context.Background(), result, alarm)
	require.ErrorIs(t, err, errStoreDown)
	assert.Empty(t, location)
	require.Len(t, notifier.payloads, 1, "storage failure must not suppress the notification")
	assert.Empty(t, notifier.payloads[0].ArtifactLocation)
}

func TestReportService_NotifyFailureSurfaces(t *testing.T) {
	store := newMemoryStore()
	notifier := &recordingNotifier{err: errNotifyDown}
	svc := fixedClockService(t, store, notifier)

	result, alarm := terminalResult(t, func(inv *entity.Investigation) error {
		return inv.Complete("analysis")
	})

	location, err := svc.Emit(context.Background(), result, alarm)
	require.ErrorIs(t, err, errNotifyDown)
	assert.NotEmpty(t, location, "the stored location is still returned")
}

func TestReportService_StoreObserver(t *testing.T) {
	store := newMemoryStore()
	notifier := &recordingNotifier{}
	svc := fixedClockService(t, store, notifier)

	var outcomes []bool
	svc.SetStoreObserver(func(stored bool) { outcomes = append(outcomes, stored) })

	result, alarm := terminalResult(t, func(inv *entity.Investigation) error {
		return inv.Complete("analysis")
	})

	_, err := svc.Emit(context.Background(), result, alarm)
	require.NoError(t, err)

	store.err = errStoreDown
	_, err = svc.Emit(context.Background(), result, alarm)
	require.ErrorIs(t, err, errStoreDown)

	assert.Equal(t, []bool{true, false}, outcomes)
	assert.Len(t, notifier.payloads, 2, "the observer must not change notification behavior")
}

func TestCleanName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"lambda-errors", "lambda-errors"},
		{"prod/api latency!", "prod_api_latency_"},
		{"a.b:c", "a_b_c"},
		{"already_clean_123", "already_clean_123"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanName(tt.in))
	}
}

func TestExtractExecutiveSummary(t *testing.T) {
	t.Run("structured analysis", func(t *testing.T) {
		analysis := "preamble\n### EXECUTIVE SUMMARY\nShort summary here.\n### INVESTIGATION DETAILS\nmore"
		assert.Equal(t, "Short summary here.", extractExecutiveSummary(analysis))
	})

	t.Run("unstructured analysis falls back to prefix", func(t *testing.T) {
		long := make([]byte, 400)
		for i := range long {
			long[i] = 'x'
		}
		got := extractExecutiveSummary(string(long))
		assert.Len(t, got, 303)
		assert.Contains(t, got, "...")
	})

	t.Run("truncation never splits a multibyte character", func(t *testing.T) {
		// A three-byte rune straddling the 300-byte cut point.
		long := strings.Repeat("x", 299) + "→" + strings.Repeat("y", 100)
		got := extractExecutiveSummary(long)
		assert.True(t, utf8.ValidString(got))
		assert.Equal(t, strings.Repeat("x", 299)+"...", got)
	})
}
