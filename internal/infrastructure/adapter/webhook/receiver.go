// Package webhook provides the inbound HTTP surface: monitoring services
// POST alarm state transitions here and investigations run in the
// background.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"alarm-triage-agent/internal/domain/entity"
)

// maxBodySize caps inbound alarm payloads at 1MB.
const maxBodySize = 1 << 20

// AlarmHandler is the callback invoked for each accepted alarm event.
type AlarmHandler func(ctx context.Context, alarm *entity.AlarmEvent) error

// ReceiverConfig configures the alarm receiver server.
type ReceiverConfig struct {
	// Addr is the address to listen on (e.g. ":8080").
	Addr string
	// ReadTimeout is the maximum duration for reading a request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing a response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the grace period for graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultReceiverConfig returns a configuration with sensible defaults.
func DefaultReceiverConfig() ReceiverConfig {
	return ReceiverConfig{
		Addr:            ":8080",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Receiver accepts alarm webhooks, acknowledges them immediately, and
// runs each investigation in a background goroutine. In-flight
// investigations are drained on shutdown.
type Receiver struct {
	handler AlarmHandler
	config  ReceiverConfig
	logger  *zap.Logger
	router  *mux.Router
	server  *http.Server
	mu      sync.Mutex
	wg      sync.WaitGroup
	started bool
}

// NewReceiver creates a receiver dispatching to the given handler.
// A nil logger falls back to a no-op logger.
func NewReceiver(handler AlarmHandler, config ReceiverConfig, logger *zap.Logger) (*Receiver, error) {
	if handler == nil {
		return nil, errors.New("alarm handler cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Receiver{
		handler: handler,
		config:  config,
		logger:  logger,
		router:  mux.NewRouter(),
	}
	r.registerRoutes()
	return r, nil
}

func (r *Receiver) registerRoutes() {
	r.router.HandleFunc("/health", r.handleHealth).Methods(http.MethodGet)
	r.router.HandleFunc("/alarms", r.handleAlarm).Methods(http.MethodPost)
	r.router.HandleFunc("/alarms/prometheus", r.handlePrometheus).Methods(http.MethodPost)
}

func (r *Receiver) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// alarmPayload is the wire shape monitoring services POST to /alarms.
type alarmPayload struct {
	AlarmName string         `json:"alarm_name"`
	State     string         `json:"state"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata"`
}

func (r *Receiver) handleAlarm(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	req.Body = http.MaxBytesReader(w, req.Body, maxBodySize)

	var payload alarmPayload
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid alarm payload: %v", err))
		return
	}
	if payload.Timestamp.IsZero() {
		payload.Timestamp = time.Now().UTC()
	}

	alarm, err := entity.NewAlarmEvent(payload.AlarmName, payload.State, payload.Timestamp, payload.Metadata)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	r.dispatch(alarm)

	w.WriteHeader(http.StatusAccepted)
	resp, _ := json.Marshal(map[string]string{
		"status": "accepted",
		"alarm":  alarm.Identity(),
	})
	_, _ = w.Write(resp)
}

// handlePrometheus accepts Alertmanager webhook payloads, which may carry
// several alerts per request.
func (r *Receiver) handlePrometheus(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	req.Body = http.MaxBytesReader(w, req.Body, maxBodySize)

	payload, err := io.ReadAll(req.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	alarms, err := parseAlertmanager(payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid alertmanager payload: %v", err))
		return
	}

	for _, alarm := range alarms {
		r.dispatch(alarm)
	}

	w.WriteHeader(http.StatusAccepted)
	resp, _ := json.Marshal(map[string]any{
		"status":   "accepted",
		"received": len(alarms),
	})
	_, _ = w.Write(resp)
}

// dispatch runs the handler in the background; the investigation outlives
// the request, so it runs on a background context.
func (r *Receiver) dispatch(alarm *entity.AlarmEvent) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.handler(context.Background(), alarm); err != nil {
			r.logger.Error("alarm handling failed",
				zap.String("alarm", alarm.Identity()),
				zap.Error(err),
			)
		}
	}()
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	resp, _ := json.Marshal(map[string]string{"error": msg})
	_, _ = w.Write(resp)
}

// Start begins listening. It blocks until the context is cancelled or the
// server fails.
func (r *Receiver) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return nil
	}
	r.server = &http.Server{
		Addr:         r.config.Addr,
		Handler:      r.router,
		ReadTimeout:  r.config.ReadTimeout,
		WriteTimeout: r.config.WriteTimeout,
	}
	r.started = true
	r.mu.Unlock()

	r.logger.Info("alarm receiver listening", zap.String("addr", r.config.Addr))

	errCh := make(chan error, 1)
	go func() {
		if err := r.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		return r.Shutdown()
	case err := <-errCh:
		return err
	}
}

// Shutdown drains in-flight investigations, then stops the server.
func (r *Receiver) Shutdown() error {
	r.wg.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started || r.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.config.ShutdownTimeout)
	defer cancel()

	err := r.server.Shutdown(ctx)
	r.started = false
	return err
}

// Router exposes the route table for testing.
func (r *Receiver) Router() *mux.Router { return r.router }
