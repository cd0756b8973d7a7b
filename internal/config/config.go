// Package config loads receiver and sender settings from the environment.
// A .env file in the working directory is read first when present.
package config

import (
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Receiver configures the desktop side
type Receiver struct {
	// UploadAddr is where senders post frames. ENV: CAMDROID_UPLOAD_ADDR
	UploadAddr string `env:"CAMDROID_UPLOAD_ADDR,default=0.0.0.0:5000"`
	// ControlAddr serves the local control API. ENV: CAMDROID_CONTROL_ADDR
	ControlAddr string `env:"CAMDROID_CONTROL_ADDR,default=127.0.0.1:5001"`
	// AdvertiseHost replaces LAN discovery in pairing payloads. ENV: CAMDROID_ADVERTISE_HOST
	AdvertiseHost string `env:"CAMDROID_ADVERTISE_HOST"`
	// ReceiverID is shown to the sender after pairing. ENV: CAMDROID_RECEIVER_ID
	ReceiverID string `env:"CAMDROID_RECEIVER_ID,default=Unknown"`
	// MaxUploadBytes caps one upload body. ENV: CAMDROID_MAX_UPLOAD_BYTES
	MaxUploadBytes int64 `env:"CAMDROID_MAX_UPLOAD_BYTES,default=33554432"`
	// QRSize is the default PNG edge in pixels. ENV: CAMDROID_QR_SIZE
	QRSize int `env:"CAMDROID_QR_SIZE,default=256"`
	// DisplayInterval is the display refresh tick. ENV: CAMDROID_DISPLAY_INTERVAL
	DisplayInterval time.Duration `env:"CAMDROID_DISPLAY_INTERVAL,default=50ms"`
	// ControlRequestsPerMinute limits each control API client. ENV: CAMDROID_CONTROL_RPM
	ControlRequestsPerMinute int `env:"CAMDROID_CONTROL_RPM,default=120"`
	// ControlBurst is the control API burst size. ENV: CAMDROID_CONTROL_BURST
	ControlBurst int `env:"CAMDROID_CONTROL_BURST,default=20"`
	// PairOnStart issues a token and prints its code at startup. ENV: CAMDROID_PAIR_ON_START
	PairOnStart bool `env:"CAMDROID_PAIR_ON_START,default=true"`
}

// Sender configures the camera side
type Sender struct {
	// Payload skips scanning when set. ENV: CAMDROID_PAYLOAD
	Payload string `env:"CAMDROID_PAYLOAD"`
	// CameraDirs are image directories used as cameras, separated by ';'. ENV: CAMDROID_CAMERA_DIRS
	CameraDirs []string `env:"CAMDROID_CAMERA_DIRS"`
	// CameraCount is how many indices Switch cycles through. ENV: CAMDROID_CAMERA_COUNT
	CameraCount int `env:"CAMDROID_CAMERA_COUNT,default=3"`
	// FrameWidth and FrameHeight size the test pattern. ENV: CAMDROID_FRAME_WIDTH, CAMDROID_FRAME_HEIGHT
	FrameWidth  int `env:"CAMDROID_FRAME_WIDTH,default=640"`
	FrameHeight int `env:"CAMDROID_FRAME_HEIGHT,default=480"`
	// FPS is the upload rate. ENV: CAMDROID_FPS
	FPS float64 `env:"CAMDROID_FPS,default=25"`
	// RequestTimeout bounds each upload. ENV: CAMDROID_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"CAMDROID_REQUEST_TIMEOUT,default=2s"`
	// ScanInterval is the QR polling period. ENV: CAMDROID_SCAN_INTERVAL
	ScanInterval time.Duration `env:"CAMDROID_SCAN_INTERVAL,default=33ms"`
	// JPEGQuality is used when encoding frames. ENV: CAMDROID_JPEG_QUALITY
	JPEGQuality int `env:"CAMDROID_JPEG_QUALITY,default=80"`
}

// LoadReceiver reads .env and the environment into a validated Receiver
func LoadReceiver() (*Receiver, error) {
	var cfg Receiver
	if err := load(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadSender reads .env and the environment into a validated Sender
func LoadSender() (*Sender, error) {
	var cfg Sender
	if err := load(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func load(target interface{}) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("⚠️ Ignoring unreadable .env file: %v", err)
	}
	if err := envdecode.Decode(target); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return fmt.Errorf("failed to decode environment: %w", err)
	}
	return nil
}

// Validate checks addresses and ranges
func (c *Receiver) Validate() error {
	if _, _, err := net.SplitHostPort(c.UploadAddr); err != nil {
		return fmt.Errorf("invalid CAMDROID_UPLOAD_ADDR %q: %w", c.UploadAddr, err)
	}
	if _, _, err := net.SplitHostPort(c.ControlAddr); err != nil {
		return fmt.Errorf("invalid CAMDROID_CONTROL_ADDR %q: %w", c.ControlAddr, err)
	}
	if strings.TrimSpace(c.ReceiverID) == "" {
		return errors.New("CAMDROID_RECEIVER_ID must not be blank")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("CAMDROID_MAX_UPLOAD_BYTES must be positive")
	}
	if c.QRSize < 64 || c.QRSize > 2048 {
		return fmt.Errorf("CAMDROID_QR_SIZE must be between 64 and 2048, got %d", c.QRSize)
	}
	if c.DisplayInterval <= 0 {
		return errors.New("CAMDROID_DISPLAY_INTERVAL must be positive")
	}
	if c.ControlRequestsPerMinute <= 0 || c.ControlBurst <= 0 {
		return errors.New("control rate limit and burst must be positive")
	}
	return nil
}

// Validate checks ranges
func (c *Sender) Validate() error {
	if c.CameraCount < 1 {
		return fmt.Errorf("CAMDROID_CAMERA_COUNT must be at least 1, got %d", c.CameraCount)
	}
	if c.FrameWidth <= 0 || c.FrameHeight <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", c.FrameWidth, c.FrameHeight)
	}
	if c.FPS <= 0 {
		return errors.New("CAMDROID_FPS must be positive")
	}
	if c.RequestTimeout <= 0 || c.ScanInterval <= 0 {
		return errors.New("timeouts and intervals must be positive")
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("CAMDROID_JPEG_QUALITY must be between 1 and 100, got %d", c.JPEGQuality)
	}
	return nil
}

// Cameras returns the effective device count. Directory cameras set it.
func (c *Sender) Cameras() int {
	if len(c.CameraDirs) > 0 {
		return len(c.CameraDirs)
	}
	return c.CameraCount
}
