package framestore

import (
	"sync/atomic"

	"github.com/shehryarbajwa/camdroid/pkg/models"
)

// Store holds the newest decoded frame. Writers replace it wholesale and
// readers get the same pointer until the next write, so no frame is ever
// observed half-written.
type Store struct {
	latest atomic.Pointer[models.Frame]
	seq    atomic.Uint64
}

// New creates an empty frame store
func New() *Store {
	return &Store{}
}

// Put replaces the stored frame and stamps it with the next sequence number.
// The caller must not touch the frame afterwards.
func (s *Store) Put(frame *models.Frame) {
	if frame == nil {
		return
	}
	frame.Seq = s.seq.Add(1)
	s.latest.Store(frame)
}

// TakeLatest returns the current frame without removing it
func (s *Store) TakeLatest() (*models.Frame, bool) {
	f := s.latest.Load()
	return f, f != nil
}

// Clear drops the stored frame
func (s *Store) Clear() {
	s.latest.Store(nil)
}
