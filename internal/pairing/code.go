package pairing

import (
	"errors"
	"fmt"
	"image"

	"github.com/skip2/go-qrcode"

	"github.com/shehryarbajwa/camdroid/pkg/models"
)

// DefaultCodeSize is the rendered QR edge length in pixels
const DefaultCodeSize = 256

// ErrNoSession is returned when a code is requested without a live token
var ErrNoSession = errors.New("no active pairing session")

// Code is a rendered pairing payload
type Code struct {
	Payload string
	qr      *qrcode.QRCode
}

// CreatePairingCode encodes the session's current token into a QR code
func CreatePairingCode(sess models.Session, hostPort string) (*Code, error) {
	if !sess.Active() {
		return nil, ErrNoSession
	}

	payload := BuildPayload(sess, hostPort)
	qr, err := qrcode.New(payload, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("failed to encode pairing code: %w", err)
	}

	return &Code{Payload: payload, qr: qr}, nil
}

// Image renders the code as a square image of roughly size pixels
func (c *Code) Image(size int) image.Image {
	return c.qr.Image(size)
}

// PNG renders the code as PNG bytes
func (c *Code) PNG(size int) ([]byte, error) {
	return c.qr.PNG(size)
}

// Terminal renders the code with half-block characters for a console
func (c *Code) Terminal() string {
	return c.qr.ToSmallString(false)
}
