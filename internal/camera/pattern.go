package camera

import (
	"fmt"
	"image"
	"sync"
)

// PatternDevice renders a moving test card. It stands in for a real camera
// on machines without one.
type PatternDevice struct {
	mu     sync.Mutex
	index  int
	width  int
	height int
	tick   int
	closed bool
}

// PatternOpener opens synthetic devices for indices below count
func PatternOpener(count, width, height int) Opener {
	return func(index int) (Device, error) {
		if index < 0 || index >= count {
			return nil, fmt.Errorf("%w: index %d", ErrNoDevice, index)
		}
		return &PatternDevice{index: index, width: width, height: height}, nil
	}
}

// ReadFrame returns the next test card frame
func (d *PatternDevice) ReadFrame() (image.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, fmt.Errorf("camera %d: device closed", d.index)
	}

	img := image.NewRGBA(image.Rect(0, 0, d.width, d.height))
	shift := d.tick * 4
	w, h := max(d.width, 1), max(d.height, 1)
	for y := 0; y < d.height; y++ {
		for x := 0; x < d.width; x++ {
			i := img.PixOffset(x, y)
			img.Pix[i+0] = uint8((x + shift) % w * 255 / w)
			img.Pix[i+1] = uint8(y * 255 / h)
			img.Pix[i+2] = uint8(d.index * 80)
			img.Pix[i+3] = 255
		}
	}
	d.tick++

	return img, nil
}

// Close releases the device
func (d *PatternDevice) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}
