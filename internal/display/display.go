// Package display drains the frame store on a fixed tick and hands the
// newest frame, or a placeholder, to whatever renders it.
package display

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/shehryarbajwa/camdroid/pkg/models"
)

const (
	// DefaultInterval is the display refresh tick
	DefaultInterval = 50 * time.Millisecond
	// WaitingText is shown while the store is empty
	WaitingText = "Waiting for frames..."
)

// Renderer presents frames. Implementations must not block for long.
type Renderer interface {
	RenderFrame(frame *models.Frame)
	RenderPlaceholder(text string)
}

// FrameSource is the read side of the frame store
type FrameSource interface {
	TakeLatest() (*models.Frame, bool)
}

// Loop refreshes a Renderer from a FrameSource
type Loop struct {
	frames   FrameSource
	renderer Renderer
	interval time.Duration
}

// NewLoop creates a display loop. A non-positive interval uses DefaultInterval.
func NewLoop(frames FrameSource, renderer Renderer, interval time.Duration) *Loop {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Loop{
		frames:   frames,
		renderer: renderer,
		interval: interval,
	}
}

// Tick renders the newest frame, or the placeholder when there is none
func (l *Loop) Tick() {
	if frame, ok := l.frames.TakeLatest(); ok {
		l.renderer.RenderFrame(frame)
		return
	}
	l.renderer.RenderPlaceholder(WaitingText)
}

// Run ticks until ctx is cancelled
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.Tick()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.Tick()
		}
	}
}

// Multi fans out to several renderers in order
type Multi []Renderer

func (m Multi) RenderFrame(frame *models.Frame) {
	for _, r := range m {
		r.RenderFrame(frame)
	}
}

func (m Multi) RenderPlaceholder(text string) {
	for _, r := range m {
		r.RenderPlaceholder(text)
	}
}

// LogRenderer writes a short line when the picture changes state,
// and at most once per Every while frames keep arriving.
type LogRenderer struct {
	Every time.Duration

	mu       sync.Mutex
	lastSeq  uint64
	lastText string
	lastLog  time.Time
	frames   int
}

// NewLogRenderer creates a LogRenderer that summarizes frames every interval
func NewLogRenderer(every time.Duration) *LogRenderer {
	return &LogRenderer{Every: every}
}

func (r *LogRenderer) RenderFrame(frame *models.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if frame.Seq == r.lastSeq {
		return
	}
	r.lastSeq = frame.Seq
	r.frames++

	first := r.lastText != ""
	r.lastText = ""
	if first || time.Since(r.lastLog) >= r.Every {
		log.Printf("📺 Frame #%d %dx%d (%d new)", frame.Seq, frame.Width, frame.Height, r.frames)
		r.lastLog = time.Now()
		r.frames = 0
	}
}

func (r *LogRenderer) RenderPlaceholder(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if text == r.lastText {
		return
	}
	r.lastText = text
	r.lastSeq = 0
	log.Printf("📺 %s", text)
}
