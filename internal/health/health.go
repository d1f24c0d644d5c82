// Package health serves the last published home state as a health endpoint.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/clambin/wiser-home/internal/controller"
)

// Publisher provides home state snapshots.
type Publisher interface {
	Subscribe() chan controller.HomeSnapshot
	Unsubscribe(ch chan controller.HomeSnapshot)
}

type Health struct {
	Publisher
	logger  *slog.Logger
	update  controller.HomeSnapshot
	updated bool
	lock    sync.RWMutex
}

func New(p Publisher, logger *slog.Logger) *Health {
	return &Health{
		Publisher: p,
		logger:    logger,
	}
}

func (h *Health) Run(ctx context.Context) error {
	h.logger.Debug("started")
	defer h.logger.Debug("stopped")

	ch := h.Publisher.Subscribe()
	defer h.Publisher.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-ch:
			h.lock.Lock()
			h.update = update
			h.updated = true
			h.lock.Unlock()
		}
	}
}

func (h *Health) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h.lock.RLock()
	defer h.lock.RUnlock()
	if !h.updated {
		http.Error(w, "no update yet", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(h.update); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
