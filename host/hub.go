package host

import (
	"context"
	"sync"
)

// Hub is an EventSource that fans emitted events out to every registered
// handler. Handlers run on the emitting goroutine.
type Hub struct {
	mu     sync.RWMutex
	report []ReportHandler
	load   []LoadHandler
}

func NewHub() *Hub {
	return &Hub{}
}

func (h *Hub) OnReport(fn ReportHandler) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	h.report = append(h.report, fn)
	h.mu.Unlock()
}

func (h *Hub) OnLoad(fn LoadHandler) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	h.load = append(h.load, fn)
	h.mu.Unlock()
}

// EmitReport invokes every report handler with evt.
func (h *Hub) EmitReport(ctx context.Context, evt ReportEvent) {
	h.mu.RLock()
	handlers := append([]ReportHandler(nil), h.report...)
	h.mu.RUnlock()
	for _, fn := range handlers {
		fn(ctx, evt)
	}
}

// EmitLoad invokes every load handler.
func (h *Hub) EmitLoad(ctx context.Context) {
	h.mu.RLock()
	handlers := append([]LoadHandler(nil), h.load...)
	h.mu.RUnlock()
	for _, fn := range handlers {
		fn(ctx)
	}
}
