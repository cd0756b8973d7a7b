package camera

import (
	"errors"
	"image"
)

var (
	// ErrNoDevice is returned when a device index cannot be opened
	ErrNoDevice = errors.New("camera device not found")
	// ErrBusy is returned while another user holds the camera
	ErrBusy = errors.New("camera is busy")
)

// Device is an open capture device
type Device interface {
	ReadFrame() (image.Image, error)
	Close() error
}

// Opener opens the device at index
type Opener func(index int) (Device, error)
