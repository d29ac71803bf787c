// Package signal provides signal handling utilities for the triage agent
// server.
package signal

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// ReloadHandler invokes a callback whenever SIGHUP is received. The serve
// command wires it to log file rotation so logrotate-style setups work.
type ReloadHandler struct {
	ctx      context.Context
	cancel   context.CancelFunc
	onReload func(ctx context.Context)
	mu       sync.Mutex
	running  bool
	sigCh    chan os.Signal
	stopCh   chan struct{}
}

// NewReloadHandler creates a handler with the given callback. A nil
// callback turns received signals into no-ops.
func NewReloadHandler(onReload func(ctx context.Context)) *ReloadHandler {
	ctx, cancel := context.WithCancel(context.Background())
	return &ReloadHandler{
		ctx:      ctx,
		cancel:   cancel,
		onReload: onReload,
	}
}

// Start begins listening for SIGHUP. Safe to call more than once.
func (h *ReloadHandler) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}
	h.running = true

	h.sigCh = make(chan os.Signal, 1)
	h.stopCh = make(chan struct{})
	signal.Notify(h.sigCh, syscall.SIGHUP)

	sigCh, stopCh := h.sigCh, h.stopCh
	go func() {
		for {
			select {
			case <-stopCh:
				return
			case <-sigCh:
				h.handle()
			}
		}
	}()
}

func (h *ReloadHandler) handle() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running || h.onReload == nil {
		return
	}
	h.onReload(h.ctx)
}

// Stop unregisters the signal listener. Safe to call more than once.
func (h *ReloadHandler) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return
	}
	h.running = false

	close(h.stopCh)
	h.stopCh = nil
	signal.Stop(h.sigCh)
	close(h.sigCh)
	h.sigCh = nil
	h.cancel()
}

// Simulate delivers a synthetic SIGHUP. Intended for tests.
func (h *ReloadHandler) Simulate() { h.handle() }
