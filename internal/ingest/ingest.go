package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"time"

	"github.com/shehryarbajwa/camdroid/pkg/models"
)

// Outcome is the result of one upload
type Outcome int

const (
	Success Outcome = iota
	Unauthorized
	BadInput
)

var (
	// ErrUnauthorized is returned when the upload token is missing or stale
	ErrUnauthorized = errors.New("unauthorized")
	// ErrBadInput is returned when the payload is not a decodable image
	ErrBadInput = errors.New("bad input")
)

// StatusCode maps an outcome to its HTTP status
func (o Outcome) StatusCode() int {
	switch o {
	case Success:
		return http.StatusOK
	case Unauthorized:
		return http.StatusForbidden
	default:
		return http.StatusBadRequest
	}
}

func (o Outcome) String() string {
	switch o {
	case Success:
		return "OK"
	case Unauthorized:
		return "Unauthorized"
	case BadInput:
		return "Bad Input"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Validator checks upload tokens
type Validator interface {
	ValidateToken(candidate string) bool
}

// FrameSink receives accepted frames
type FrameSink interface {
	Put(frame *models.Frame)
}

// Endpoint authorizes, decodes and commits uploaded frames
type Endpoint struct {
	auth   Validator
	frames FrameSink
	now    func() time.Time
}

// NewEndpoint creates an ingestion endpoint
func NewEndpoint(auth Validator, frames FrameSink) *Endpoint {
	return &Endpoint{
		auth:   auth,
		frames: frames,
		now:    time.Now,
	}
}

// Authorized reports whether token would be accepted right now
func (e *Endpoint) Authorized(token string) bool {
	return e.auth.ValidateToken(token)
}

// Ingest handles one upload. Unauthorized uploads are rejected before the
// payload is looked at; undecodable payloads never reach the frame store.
//
// Validation and commit are separate steps: a token regenerated in between
// still lets this one frame through.
func (e *Endpoint) Ingest(token string, payload []byte) (Outcome, error) {
	if !e.auth.ValidateToken(token) {
		return Unauthorized, ErrUnauthorized
	}

	frame, err := Decode(payload)
	if err != nil {
		return BadInput, err
	}
	frame.ReceivedAt = e.now()

	e.frames.Put(frame)
	return Success, nil
}

// Decode turns an encoded image into a frame
func Decode(payload []byte) (*models.Frame, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrBadInput)
	}

	img, _, err := image.Decode(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadInput, err)
	}

	b := img.Bounds()
	return &models.Frame{
		Image:   img,
		Width:   b.Dx(),
		Height:  b.Dy(),
		Encoded: payload,
	}, nil
}
