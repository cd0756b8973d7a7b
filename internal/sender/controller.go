package sender

import (
	"context"
	"errors"
	"fmt"

	"github.com/shehryarbajwa/camdroid/internal/camera"
	"github.com/shehryarbajwa/camdroid/internal/pairing"
)

// Controller is what a sender UI drives: scan a pairing code, switch
// cameras, start and stop streaming.
type Controller struct {
	cams    *camera.Switcher
	scanner *pairing.Scanner
	loop    *Loop
	sink    StatusSink
}

// NewController wires a scanner and a stream loop around one camera switcher
func NewController(cams *camera.Switcher, scanner *pairing.Scanner, loop *Loop, sink StatusSink) *Controller {
	if sink == nil {
		sink = LogSink{}
	}
	return &Controller{
		cams:    cams,
		scanner: scanner,
		loop:    loop,
		sink:    sink,
	}
}

// Scan holds the camera and polls it for a pairing code until one resolves,
// CancelScan is called or ctx ends.
func (c *Controller) Scan(ctx context.Context) (pairing.Target, error) {
	if c.loop.Running() {
		return pairing.Target{}, camera.ErrBusy
	}

	dev, release, err := c.cams.Acquire()
	if err != nil {
		return pairing.Target{}, fmt.Errorf("failed to start scan: %w", err)
	}
	defer release()

	c.sink.Report(Status{Phase: PhaseScanning, Message: "Scanning QR..."})

	target, err := c.scanner.Run(ctx, dev)
	if err != nil {
		if errors.Is(err, pairing.ErrScanCancelled) || errors.Is(err, context.Canceled) {
			c.sink.Report(Status{Phase: PhaseIdle, Message: "QR Scan cancelled"})
		}
		return pairing.Target{}, err
	}

	c.connect(target)
	return target, nil
}

// CancelScan stops a running scan
func (c *Controller) CancelScan() {
	c.scanner.Cancel()
}

// ConnectPayload resolves a payload obtained without the camera, such as a
// pasted URL.
func (c *Controller) ConnectPayload(text string) (pairing.Target, error) {
	target, err := pairing.ParsePayload(text)
	if err != nil {
		return pairing.Target{}, err
	}
	c.connect(target)
	return target, nil
}

func (c *Controller) connect(target pairing.Target) {
	c.loop.Connect(target)
	c.sink.Report(Status{Phase: PhaseConnected, Message: "Connected to ID: " + target.ReceiverID})
}

// SwitchCamera moves to the next camera, falling back to the first one if
// the next cannot be opened.
func (c *Controller) SwitchCamera() (camera.SwitchResult, error) {
	res, err := c.cams.Switch()
	if err != nil {
		return res, err
	}
	if res.FellBack {
		c.sink.Report(Status{Phase: PhaseIdle, Message: fmt.Sprintf("Camera %d not found. Switching back.", res.Requested)})
	}
	c.sink.Report(Status{Phase: PhaseIdle, Message: fmt.Sprintf("Switched to Camera %d", res.Index)})
	return res, nil
}

// StartStream begins streaming to the connected receiver
func (c *Controller) StartStream(ctx context.Context) error {
	return c.loop.Start(ctx)
}

// StopStream stops streaming
func (c *Controller) StopStream() {
	c.loop.Stop()
}

// Loop exposes the underlying stream loop
func (c *Controller) Loop() *Loop {
	return c.loop
}
