// Package observability provides hooks for progress reporting, metrics and
// tracing of an inspection.
//
// The pipeline emits events through the registered hooks; nothing is
// recorded unless the application registers an implementation at startup.
// The CLI uses this to drive its spinner without the pipeline knowing
// about terminals.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetPipelineHooks(&myPipelineHooks{})
//	    observability.SetToolHooks(&myToolHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Pipeline().OnStageStart(ctx, "collect_progs")
//	// ... run stage ...
//	observability.Pipeline().OnStageComplete(ctx, "collect_progs", duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Pipeline Hooks
// =============================================================================

// PipelineHooks receives events from the inspection pipeline.
type PipelineHooks interface {
	// Whole-run events
	OnInspectStart(ctx context.Context, buildDir, destination string)
	OnInspectComplete(ctx context.Context, buildDir, destination string, duration time.Duration, err error)

	// Stage events
	OnStageStart(ctx context.Context, stage string)
	OnStageComplete(ctx context.Context, stage string, duration time.Duration, err error)
}

// =============================================================================
// Tool Hooks
// =============================================================================

// ToolHooks receives events from external tool invocations.
type ToolHooks interface {
	// OnToolStart records a tool about to be started.
	OnToolStart(ctx context.Context, tool string, args []string)

	// OnToolExit records a tool that ran to completion, whatever its status.
	OnToolExit(ctx context.Context, tool string, exitCode int, duration time.Duration)

	// OnToolError records a tool that could not be run.
	OnToolError(ctx context.Context, tool string, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopPipelineHooks is a no-op implementation of PipelineHooks.
type NoopPipelineHooks struct{}

func (NoopPipelineHooks) OnInspectStart(context.Context, string, string) {}
func (NoopPipelineHooks) OnInspectComplete(context.Context, string, string, time.Duration, error) {
}
func (NoopPipelineHooks) OnStageStart(context.Context, string)                          {}
func (NoopPipelineHooks) OnStageComplete(context.Context, string, time.Duration, error) {}

// NoopToolHooks is a no-op implementation of ToolHooks.
type NoopToolHooks struct{}

func (NoopToolHooks) OnToolStart(context.Context, string, []string)          {}
func (NoopToolHooks) OnToolExit(context.Context, string, int, time.Duration) {}
func (NoopToolHooks) OnToolError(context.Context, string, error)             {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	pipelineHooks PipelineHooks = NoopPipelineHooks{}
	toolHooks     ToolHooks     = NoopToolHooks{}
	hooksMu       sync.RWMutex
)

// SetPipelineHooks registers custom pipeline hooks.
// This should be called once at application startup before any inspection.
func SetPipelineHooks(h PipelineHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		pipelineHooks = h
	}
}

// SetToolHooks registers custom tool hooks.
// This should be called once at application startup before any inspection.
func SetToolHooks(h ToolHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		toolHooks = h
	}
}

// Pipeline returns the registered pipeline hooks.
func Pipeline() PipelineHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return pipelineHooks
}

// Tools returns the registered tool hooks.
func Tools() ToolHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return toolHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	pipelineHooks = NoopPipelineHooks{}
	toolHooks = NoopToolHooks{}
}
