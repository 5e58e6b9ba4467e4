package sandbox

import "log/slog"

// WasmLabel marks results produced by the wasm sandbox, which currently
// runs every line on the host
const WasmLabel = "wasm(host-fallback)"

// Fallback is the wasm sandbox. No wasm runtime is wired yet, so it keeps
// the selectable kind stable and delegates to a Host.
type Fallback struct {
	*Host
}

// NewFallback creates a wasm sandbox that executes on the host
func NewFallback(cfg Config, logger *slog.Logger) *Fallback {
	logger = orDiscard(logger)
	logger.Warn("wasm sandbox has no isolation yet; commands run on the host")
	return &Fallback{Host: NewHost(cfg, logger)}
}

func (f *Fallback) Label() string { return WasmLabel }
