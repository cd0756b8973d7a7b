package session

import (
	"crypto/subtle"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shehryarbajwa/camdroid/pkg/models"
)

// ErrInvalidInput is returned when a receiver id is blank
var ErrInvalidInput = errors.New("invalid input: receiver id must not be empty")

// FrameClearer is the part of the frame store a disconnect needs
type FrameClearer interface {
	Clear()
}

// Option configures an Authority
type Option func(*Authority)

// WithTokenGenerator replaces the UUID token source
func WithTokenGenerator(gen func() string) Option {
	return func(a *Authority) {
		a.newToken = gen
	}
}

// WithReceiverID sets the initial receiver id. Blank values are ignored.
func WithReceiverID(id string) Option {
	return func(a *Authority) {
		if id = strings.TrimSpace(id); id != "" {
			a.receiverID = id
		}
	}
}

// WithClock overrides time.Now for IssuedAt stamps
func WithClock(now func() time.Time) Option {
	return func(a *Authority) {
		a.now = now
	}
}

// Authority owns the live pairing token and the receiver's identity.
// At most one token is valid at a time; it lives until Disconnect or the
// next GenerateToken.
type Authority struct {
	mu         sync.RWMutex
	token      string
	issuedAt   time.Time
	receiverID string

	frames   FrameClearer
	newToken func() string
	now      func() time.Time
}

// NewAuthority creates an authority with no live token
func NewAuthority(frames FrameClearer, opts ...Option) *Authority {
	a := &Authority{
		receiverID: models.UnknownReceiverID,
		frames:     frames,
		newToken:   func() string { return uuid.New().String() },
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// GenerateToken mints a new token, silently invalidating the previous one
func (a *Authority) GenerateToken() string {
	token := a.newToken()

	a.mu.Lock()
	a.token = token
	a.issuedAt = a.now()
	a.mu.Unlock()

	log.Printf("🔑 Pairing token issued for receiver %q", a.ReceiverID())
	return token
}

// ValidateToken reports whether candidate matches the live token.
// With no live token every candidate is rejected.
func (a *Authority) ValidateToken(candidate string) bool {
	a.mu.RLock()
	token := a.token
	a.mu.RUnlock()

	if token == "" || candidate == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(candidate)) == 1
}

// Disconnect revokes the live token and clears the displayed frame
func (a *Authority) Disconnect() {
	a.mu.Lock()
	wasActive := a.token != ""
	a.token = ""
	a.issuedAt = time.Time{}
	a.mu.Unlock()

	if a.frames != nil {
		a.frames.Clear()
	}

	if wasActive {
		log.Println("🔌 Session disconnected")
	}
}

// SetReceiverID renames the receiver. The live token is unaffected.
func (a *Authority) SetReceiverID(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidInput
	}

	a.mu.Lock()
	a.receiverID = name
	a.mu.Unlock()

	return nil
}

// ReceiverID returns the current receiver id
func (a *Authority) ReceiverID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.receiverID
}

// Snapshot returns the token, receiver id and issue time as one consistent read
func (a *Authority) Snapshot() models.Session {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return models.Session{
		Token:      a.token,
		ReceiverID: a.receiverID,
		IssuedAt:   a.issuedAt,
	}
}
