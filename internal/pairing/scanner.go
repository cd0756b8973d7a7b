package pairing

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"
)

// DefaultScanInterval polls at roughly camera rate
const DefaultScanInterval = time.Second / 30

var (
	// ErrScanInProgress is returned by Begin while a scan is already running
	ErrScanInProgress = errors.New("scan already in progress")
	// ErrScanCancelled is returned by Run when Cancel ends the scan
	ErrScanCancelled = errors.New("scan cancelled")
)

// ScanState is the sender-side scan lifecycle
type ScanState int

const (
	Idle ScanState = iota
	Scanning
	Connected
)

func (s ScanState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scanning:
		return "scanning"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// FrameSource supplies frames to scan
type FrameSource interface {
	ReadFrame() (image.Image, error)
}

// Scanner drives Idle → Scanning → Connected. Each Poll is an independent
// decode and parse attempt; the first one that yields a Target wins.
// There is no timeout: scanning runs until success or Cancel.
type Scanner struct {
	mu       sync.Mutex
	state    ScanState
	target   Target
	stop     chan struct{}
	interval time.Duration
	decode   func(image.Image) (string, bool)
}

// NewScanner creates an idle scanner polling at interval
func NewScanner(interval time.Duration) *Scanner {
	if interval <= 0 {
		interval = DefaultScanInterval
	}
	return &Scanner{
		interval: interval,
		decode:   ScanFrame,
	}
}

// State returns the current lifecycle state
func (s *Scanner) State() ScanState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Target returns the resolved target once Connected
func (s *Scanner) Target() (Target, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target, s.state == Connected
}

// Begin moves to Scanning. A previous result is discarded.
func (s *Scanner) Begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Scanning {
		return ErrScanInProgress
	}
	s.state = Scanning
	s.target = Target{}
	s.stop = make(chan struct{})
	return nil
}

// Cancel returns a running scan to Idle. It is a no-op in any other state.
func (s *Scanner) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Scanning {
		return
	}
	s.state = Idle
	close(s.stop)
}

// Poll makes one attempt on img. It only acts while Scanning.
func (s *Scanner) Poll(img image.Image) (Target, bool) {
	if s.State() != Scanning {
		return Target{}, false
	}

	text, ok := s.decode(img)
	if !ok {
		return Target{}, false
	}
	target, err := ParsePayload(text)
	if err != nil {
		return Target{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Scanning {
		// cancelled while decoding
		return Target{}, false
	}
	s.state = Connected
	s.target = target
	close(s.stop)
	return target, true
}

// Run begins a scan and polls src until a code resolves, Cancel is called or
// ctx ends. Frame read errors are skipped.
func (s *Scanner) Run(ctx context.Context, src FrameSource) (Target, error) {
	if err := s.Begin(); err != nil {
		return Target{}, err
	}

	s.mu.Lock()
	stop := s.stop
	s.mu.Unlock()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Cancel()
			return Target{}, ctx.Err()
		case <-stop:
			if t, ok := s.Target(); ok {
				return t, nil
			}
			return Target{}, ErrScanCancelled
		case <-ticker.C:
			img, err := src.ReadFrame()
			if err != nil {
				continue
			}
			if t, ok := s.Poll(img); ok {
				return t, nil
			}
		}
	}
}
