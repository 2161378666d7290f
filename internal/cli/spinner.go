package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fossensics/fossensics/pkg/observability"
	"github.com/fossensics/fossensics/pkg/pipeline"
)

// Spinner provides a simple progress indicator with context cancellation support.
type Spinner struct {
	w       io.Writer
	message string
	width   int // widest message drawn, for clearing
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
	frames  []string
	mu      sync.Mutex
}

// newSpinner creates a spinner drawing on w that stops when ctx is cancelled.
func newSpinner(ctx context.Context, w io.Writer, message string) *Spinner {
	spinnerCtx, cancel := context.WithCancel(ctx)
	return &Spinner{
		w:       w,
		message: message,
		ctx:     spinnerCtx,
		cancel:  cancel,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		frames:  []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
	}
}

// Start begins the spinner animation.
func (s *Spinner) Start() {
	go func() {
		defer close(s.stopped)
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		i := 0
		for {
			select {
			case <-s.ctx.Done():
				s.clearLine()
				return
			case <-s.done:
				return
			case <-ticker.C:
				s.draw(s.frames[i%len(s.frames)])
				i++
			}
		}
	}()
}

func (s *Spinner) draw(frame string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width = max(s.width, len(s.message))
	pad := strings.Repeat(" ", s.width-len(s.message))
	fmt.Fprintf(s.w, "\r%s %s%s", styleIconSpinner.Render(frame), StyleDim.Render(s.message), pad)
}

// SetMessage replaces the text shown next to the spinner.
func (s *Spinner) SetMessage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = message
}

// Stop stops the spinner and clears the line. It may be called more than once.
func (s *Spinner) Stop() {
	s.cancel()
	s.once.Do(func() { close(s.done) })
	<-s.stopped
	s.clearLine()
}

func (s *Spinner) clearLine() {
	s.mu.Lock()
	defer s.mu.Unlock()
	width := max(s.width, len(s.message))
	fmt.Fprintf(s.w, "\r%s\r", strings.Repeat(" ", width+4))
}

// StopWithSuccess stops the spinner and shows a success message.
func (s *Spinner) StopWithSuccess(message string) {
	s.Stop()
	printSuccess(s.w, "%s", message)
}

// StopWithError stops the spinner and shows an error message.
func (s *Spinner) StopWithError(message string) {
	s.Stop()
	printError(s.w, "%s", message)
}

// Cancelled reports whether the spinner's context was cancelled.
func (s *Spinner) Cancelled() bool {
	return s.ctx.Err() != nil
}

// =============================================================================
// Stage Hooks
// =============================================================================

// stageDescriptions label pipeline stages for the spinner.
var stageDescriptions = map[string]string{
	pipeline.StageCollectProgs:    "Listing programs",
	pipeline.StageCollectDeps:     "Listing library dependencies",
	pipeline.StageCollectOrigins:  "Tracing programs to packages",
	pipeline.StageRefineOrigins:   "Naming packages",
	pipeline.StageCollectLicenses: "Querying legal information",
	pipeline.StageComputeStats:    "Computing statistics",
}

// spinnerHooks moves a spinner along the pipeline stages.
type spinnerHooks struct {
	observability.NoopPipelineHooks
	spinner *Spinner
}

func (h spinnerHooks) OnStageStart(_ context.Context, stage string) {
	h.spinner.SetMessage(stageMessage(stage))
}

// stageMessage formats a stage as "Listing programs (1/6)".
func stageMessage(stage string) string {
	desc, ok := stageDescriptions[stage]
	if !ok {
		desc = stage
	}
	for i, s := range pipeline.Stages {
		if s == stage {
			return fmt.Sprintf("%s (%d/%d)", desc, i+1, len(pipeline.Stages))
		}
	}
	return desc
}
