package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"alarm-triage-agent/internal/domain/entity"
	"alarm-triage-agent/internal/domain/port"
)

// Mock errors used by mock implementations.
var (
	errMockProvider = errors.New("model backend unavailable")
	errMockGate     = errors.New("gate backend unreachable")
	errMockSandbox  = errors.New("interpreter wedged")
	errMockEmit     = errors.New("report store unavailable")
)

// providerStep is one scripted turn of the mock model provider.
type providerStep struct {
	reply *entity.Message
	err   error
}

// MockModelProvider replays a scripted sequence of assistant replies and
// records every request it receives. When the script runs out it keeps
// returning a plain completion message.
type MockModelProvider struct {
	mu       sync.Mutex
	steps    []providerStep
	calls    int
	requests [][]entity.Message
	systems  []string
	tools    []entity.Tool
}

func NewMockModelProvider(steps ...providerStep) *MockModelProvider {
	return &MockModelProvider{steps: steps}
}

func (m *MockModelProvider) SendMessage(
	_ context.Context,
	system string,
	messages []entity.Message,
	tools []entity.Tool,
) (*entity.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := make([]entity.Message, len(messages))
	copy(snapshot, messages)
	m.requests = append(m.requests, snapshot)
	m.systems = append(m.systems, system)
	m.tools = tools

	idx := m.calls
	m.calls++
	if idx < len(m.steps) {
		return m.steps[idx].reply, m.steps[idx].err
	}
	reply, _ := entity.NewMessage(entity.RoleAssistant, "investigation complete")
	return reply, nil
}

func (m *MockModelProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockModelProvider) LastRequest() []entity.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1]
}

// textStep scripts a plain assistant reply.
func textStep(content string) providerStep {
	msg, err := entity.NewMessage(entity.RoleAssistant, content)
	if err != nil {
		panic(err)
	}
	return providerStep{reply: msg}
}

// toolStep scripts an assistant reply requesting one script execution.
func toolStep(toolID, code string) providerStep {
	msg, err := entity.NewAssistantMessage("", []entity.ToolCall{{
		ID:    toolID,
		Name:  ScriptToolName,
		Input: map[string]any{"code": code},
	}})
	if err != nil {
		panic(err)
	}
	return providerStep{reply: msg}
}

// callStep scripts an assistant reply with an arbitrary tool call.
func callStep(tc entity.ToolCall) providerStep {
	msg, err := entity.NewAssistantMessage("", []entity.ToolCall{tc})
	if err != nil {
		panic(err)
	}
	return providerStep{reply: msg}
}

// errStep scripts a provider failure.
func errStep(err error) providerStep {
	return providerStep{err: err}
}

// MockSandbox records executed code and returns a configurable result.
type MockSandbox struct {
	mu       sync.Mutex
	executed []string
	result   *port.ExecutionResult
	err      error
}

func NewMockSandbox() *MockSandbox {
	return &MockSandbox{
		result: &port.ExecutionResult{
			Value:    "ok",
			Duration: 5 * time.Millisecond,
		},
	}
}

func NewMockSandboxWithResult(res *port.ExecutionResult) *MockSandbox {
	return &MockSandbox{result: res}
}

func NewMockSandboxWithError(err error) *MockSandbox {
	return &MockSandbox{err: err}
}

func (m *MockSandbox) Execute(
	_ context.Context,
	code string,
	_ time.Duration,
) (*port.ExecutionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executed = append(m.executed, code)
	if m.err != nil {
		return nil, m.err
	}
	res := *m.result
	res.SanitizedCode = code
	return &res, nil
}

func (m *MockSandbox) Executed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.executed))
	copy(out, m.executed)
	return out
}

// MockAdmissionGate returns a fixed admission decision.
type MockAdmissionGate struct {
	mu        sync.Mutex
	admission port.Admission
	err       error
	calls     int
	lastKey   string
}

func NewMockAdmissionGate(admitted bool) *MockAdmissionGate {
	return &MockAdmissionGate{admission: port.Admission{Admitted: admitted}}
}

func NewMockAdmissionGateWithError(err error) *MockAdmissionGate {
	return &MockAdmissionGate{err: err}
}

func (m *MockAdmissionGate) Admit(
	_ context.Context,
	alarmIdentity string,
	_ time.Duration,
) (port.Admission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastKey = alarmIdentity
	if m.err != nil {
		return port.Admission{}, m.err
	}
	return m.admission, nil
}

func (m *MockAdmissionGate) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockReportEmitter records emissions and returns a fixed location.
type MockReportEmitter struct {
	mu       sync.Mutex
	location string
	err      error
	emitted  []*entity.InvestigationResult
}

func NewMockReportEmitter(location string) *MockReportEmitter {
	return &MockReportEmitter{location: location}
}

func NewMockReportEmitterWithError(err error) *MockReportEmitter {
	return &MockReportEmitter{err: err}
}

func (m *MockReportEmitter) Emit(
	_ context.Context,
	result *entity.InvestigationResult,
	_ *entity.AlarmEvent,
) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emitted = append(m.emitted, result)
	if m.err != nil {
		return "", m.err
	}
	return m.location, nil
}

func (m *MockReportEmitter) Emitted() []*entity.InvestigationResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entity.InvestigationResult, len(m.emitted))
	copy(out, m.emitted)
	return out
}

// MockRunner returns a fixed result for AlarmHandler tests.
type MockRunner struct {
	mu     sync.Mutex
	result *entity.InvestigationResult
	err    error
	calls  int
	lastID string
}

func NewMockRunner(result *entity.InvestigationResult, err error) *MockRunner {
	return &MockRunner{result: result, err: err}
}

func (m *MockRunner) Run(
	_ context.Context,
	_ *entity.AlarmEvent,
	investigationID string,
) (*entity.InvestigationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastID = investigationID
	return m.result, m.err
}

func (m *MockRunner) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
