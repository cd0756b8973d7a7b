package models

import (
	"image"
	"time"
)

// Frame is one decoded upload. Frames are not modified once handed to the
// frame store; readers share the same value.
type Frame struct {
	Image      image.Image
	Width      int
	Height     int
	Encoded    []byte // bytes as received, forwarded to viewers without re-encoding
	Seq        uint64
	ReceivedAt time.Time
}

// FrameField is the multipart form field carrying an uploaded frame
const FrameField = "frame"
