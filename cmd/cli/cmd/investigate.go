package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"alarm-triage-agent/internal/domain/entity"
	"alarm-triage-agent/internal/infrastructure/config"
)

// investigateCmd represents the investigate command.
//
//nolint:gochecknoglobals // cobra command pattern requires global variable
var investigateCmd = &cobra.Command{
	Use:   "investigate [alarm-file]",
	Short: "Investigate a single alarm event",
	Long: `Run one investigation for an alarm event and print the outcome.

The alarm event is read as JSON from the given file, or from stdin when no
file is provided:

  triage-agent investigate alarm.json
  cat alarm.json | triage-agent investigate

The expected shape matches the webhook intake payload:

  {
    "alarm_name": "prod-api-latency",
    "state": "ALARM",
    "timestamp": "2026-08-25T12:00:00Z",
    "metadata": {"region": "us-east-1"}
  }`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInvestigate,
}

func init() {
	rootCmd.AddCommand(investigateCmd)
}

type alarmFile struct {
	AlarmName string         `json:"alarm_name"`
	State     string         `json:"state"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata"`
}

func readAlarm(args []string) (*entity.AlarmEvent, error) {
	var raw []byte
	var err error
	if len(args) == 1 {
		raw, err = os.ReadFile(args[0])
	} else {
		raw, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return nil, fmt.Errorf("reading alarm event: %w", err)
	}

	var payload alarmFile
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("parsing alarm event: %w", err)
	}
	if payload.Timestamp.IsZero() {
		payload.Timestamp = time.Now().UTC()
	}
	return entity.NewAlarmEvent(payload.AlarmName, payload.State, payload.Timestamp, payload.Metadata)
}

// runInvestigate executes the investigate command.
func runInvestigate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := GetConfig(cmd)

	alarm, err := readAlarm(args)
	if err != nil {
		return err
	}

	container, err := config.NewContainer(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = container.Close() }()

	outcome, err := container.AlarmHandler().Handle(ctx, alarm)
	if err != nil {
		return err
	}

	summary := map[string]any{
		"alarm": alarm.Identity(),
		"state": alarm.State(),
	}
	switch {
	case outcome.Skipped:
		summary["skipped"] = true
		summary["reason"] = outcome.SkipReason
	default:
		summary["investigation_id"] = outcome.InvestigationID
		summary["status"] = outcome.Result.Status
		summary["iterations"] = outcome.Result.Iterations
		summary["elapsed"] = outcome.Result.Elapsed.String()
		summary["report"] = outcome.ReportLocation
	}

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
