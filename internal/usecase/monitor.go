package usecase

import (
	"context"
	"log/slog"

	"StreamLookup/internal/ports"
)

// ChangeMonitor consumes the reference change marker.
type ChangeMonitor struct {
	store  ports.ChangeMarkerStore
	logger *slog.Logger
}

// NewChangeMonitor wires the marker store.
func NewChangeMonitor(store ports.ChangeMarkerStore, logger *slog.Logger) *ChangeMonitor {
	return &ChangeMonitor{store: store, logger: logger}
}

// DetectAndClear reports whether the marker was present and removes it.
//
// Errors never reach the caller. A failed existence check counts as no
// change; a failed delete leaves the marker for the next batch to see again.
func (m *ChangeMonitor) DetectAndClear(ctx context.Context) bool {
	if m.store == nil {
		return false
	}

	present, err := m.store.Exists(ctx)
	if err != nil {
		m.warn("change marker check failed, assuming no change", "error", err)
		return false
	}
	if !present {
		return false
	}

	if err := m.store.Delete(ctx); err != nil {
		m.warn("change marker delete failed, it will be seen again", "error", err)
	}
	return true
}

func (m *ChangeMonitor) warn(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Warn(msg, args...)
	}
}
