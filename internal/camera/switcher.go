package camera

import (
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/semaphore"
)

// DefaultDeviceCount is how many device indices Switch cycles through
const DefaultDeviceCount = 3

// SwitchResult describes the outcome of a camera switch
type SwitchResult struct {
	Index     int  // device now selected
	Requested int  // device Switch tried to open
	FellBack  bool // Requested failed and Index fell back to device 0
}

// Switcher owns the selected device index and the single camera handle.
// Only one holder may have the camera open at a time, so a scan and a
// stream can never share a device.
type Switcher struct {
	open  Opener
	count int

	mu    sync.Mutex
	index int

	sem *semaphore.Weighted
}

// NewSwitcher creates a switcher over count device indices starting at 0
func NewSwitcher(open Opener, count int) *Switcher {
	if count <= 0 {
		count = DefaultDeviceCount
	}
	return &Switcher{
		open:  open,
		count: count,
		sem:   semaphore.NewWeighted(1),
	}
}

// Index returns the selected device index
func (s *Switcher) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// Acquire opens the selected device. The returned release closes it and
// frees the camera; calling it more than once is safe.
func (s *Switcher) Acquire() (Device, func(), error) {
	if !s.sem.TryAcquire(1) {
		return nil, nil, ErrBusy
	}

	idx := s.Index()
	dev, err := s.open(idx)
	if err != nil {
		s.sem.Release(1)
		return nil, nil, fmt.Errorf("failed to open camera %d: %w", idx, err)
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			if err := dev.Close(); err != nil {
				log.Printf("⚠️ Failed to close camera %d: %v", idx, err)
			}
			s.sem.Release(1)
		})
	}
	return dev, release, nil
}

// Switch selects the next device index, probing that it opens. A device
// that fails to open sends the selection back to device 0.
func (s *Switcher) Switch() (SwitchResult, error) {
	if !s.sem.TryAcquire(1) {
		return SwitchResult{}, ErrBusy
	}
	defer s.sem.Release(1)

	s.mu.Lock()
	next := (s.index + 1) % s.count
	s.mu.Unlock()

	dev, err := s.open(next)
	if err != nil {
		s.mu.Lock()
		s.index = 0
		s.mu.Unlock()
		return SwitchResult{Index: 0, Requested: next, FellBack: true}, nil
	}
	if err := dev.Close(); err != nil {
		log.Printf("⚠️ Failed to close camera %d after probe: %v", next, err)
	}

	s.mu.Lock()
	s.index = next
	s.mu.Unlock()
	return SwitchResult{Index: next, Requested: next}, nil
}
