package sender

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/shehryarbajwa/camdroid/internal/camera"
	"github.com/shehryarbajwa/camdroid/internal/pairing"
	"github.com/shehryarbajwa/camdroid/pkg/models"
)

const (
	// DefaultFPS is the target upload rate
	DefaultFPS = 25
	// DefaultTimeout bounds each upload request
	DefaultTimeout = 2 * time.Second
	// DefaultJPEGQuality is used when encoding captured frames
	DefaultJPEGQuality = 80
	// FormField is the multipart field carrying the frame
	FormField = models.FrameField
)

var (
	// ErrNotConnected is returned when streaming starts before a pairing code was resolved
	ErrNotConnected = errors.New("not connected: no stream URL")
	// ErrAlreadyRunning is returned by Start while a stream is running
	ErrAlreadyRunning = errors.New("stream already running")
	// ErrUnauthorized is returned when the receiver rejects the token
	ErrUnauthorized = errors.New("disconnected by receiver")
	// ErrTransport wraps network failures while sending
	ErrTransport = errors.New("transport error")
)

// StatusError is a non-200, non-403 response. The loop keeps going on these.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("receiver answered %d %s", e.Code, http.StatusText(e.Code))
}

// Options tune a Loop. Zero values take the defaults.
type Options struct {
	FPS         float64
	Timeout     time.Duration
	JPEGQuality int
	Client      *http.Client
}

// Loop captures, encodes and posts frames to a paired receiver
type Loop struct {
	cams    *camera.Switcher
	sink    StatusSink
	client  *http.Client
	fps     float64
	quality int

	mu      sync.Mutex
	target  *pairing.Target
	cancel  context.CancelFunc
	done    chan struct{}
	running atomic.Bool
}

// NewLoop creates a stopped loop with no target
func NewLoop(cams *camera.Switcher, sink StatusSink, opts Options) *Loop {
	if opts.FPS <= 0 {
		opts.FPS = DefaultFPS
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = DefaultJPEGQuality
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: opts.Timeout}
	}
	if sink == nil {
		sink = LogSink{}
	}

	return &Loop{
		cams:    cams,
		sink:    sink,
		client:  opts.Client,
		fps:     opts.FPS,
		quality: opts.JPEGQuality,
	}
}

// Connect records the receiver to stream to
func (l *Loop) Connect(target pairing.Target) {
	l.mu.Lock()
	l.target = &target
	l.mu.Unlock()
}

// Target returns the resolved receiver, if any
func (l *Loop) Target() (pairing.Target, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.target == nil {
		return pairing.Target{}, false
	}
	return *l.target, true
}

// Running reports whether the loop is streaming
func (l *Loop) Running() bool {
	return l.running.Load()
}

// Start opens the camera and begins streaming in the background
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.target == nil {
		l.sink.Report(Status{Phase: PhaseIdle, Message: "No stream URL"})
		return ErrNotConnected
	}
	if l.running.Load() {
		return ErrAlreadyRunning
	}
	// a previous run may still be releasing the camera
	if l.done != nil {
		<-l.done
	}

	dev, release, err := l.cams.Acquire()
	if err != nil {
		return fmt.Errorf("failed to start stream: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})
	l.running.Store(true)

	go l.run(runCtx, cancel, dev, release, *l.target, l.done)

	l.sink.Report(Status{Phase: PhaseStreaming, Message: "Streaming..."})
	return nil
}

// Stop ends the stream. The loop notices before its next frame.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running.CompareAndSwap(true, false) {
		return
	}
	l.cancel()
	l.sink.Report(Status{Phase: PhaseStopped, Message: "Stopped"})
}

// Done is closed when the current run ends. It is nil before the first Start.
func (l *Loop) Done() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done
}

// Wait blocks until the current run has released the camera
func (l *Loop) Wait() {
	l.mu.Lock()
	done := l.done
	l.mu.Unlock()

	if done != nil {
		<-done
	}
}

func (l *Loop) run(ctx context.Context, cancel context.CancelFunc, dev camera.Device, release func(), target pairing.Target, done chan struct{}) {
	defer close(done)
	defer release()
	defer cancel()
	defer l.running.Store(false)

	limiter := rate.NewLimiter(rate.Limit(l.fps), 1)
	uploadURL := target.UploadURL()

	for l.running.Load() {
		if err := limiter.Wait(ctx); err != nil {
			return
		}

		img, err := dev.ReadFrame()
		if err != nil {
			continue
		}

		err = l.send(ctx, uploadURL, img)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return
		}

		var statusErr *StatusError
		switch {
		case errors.Is(err, ErrUnauthorized):
			l.fail(Status{Phase: PhaseDisconnected, Message: "Disconnected by Receiver"})
			return
		case errors.Is(err, ErrTransport):
			log.Printf("❌ Stream to %s failed: %v", target.Endpoint, err)
			l.fail(Status{Phase: PhaseFailed, Message: "Stream Error"})
			return
		case errors.As(err, &statusErr):
			log.Printf("⚠️ Frame rejected: %v", err)
		default:
			log.Printf("⚠️ Frame skipped: %v", err)
		}
	}
}

// fail ends the run unless Stop got there first
func (l *Loop) fail(s Status) {
	if l.running.CompareAndSwap(true, false) {
		l.sink.Report(s)
	}
}

// SendFrame posts one frame to the connected receiver
func (l *Loop) SendFrame(ctx context.Context, img image.Image) error {
	target, ok := l.Target()
	if !ok {
		return ErrNotConnected
	}
	return l.send(ctx, target.UploadURL(), img)
}

func (l *Loop) send(ctx context.Context, uploadURL string, img image.Image) error {
	body, contentType, err := encodeFrame(img, l.quality)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusForbidden:
		return ErrUnauthorized
	default:
		return &StatusError{Code: resp.StatusCode}
	}
}

// encodeFrame wraps img as a JPEG in a multipart form
func encodeFrame(img image.Image, quality int) (*bytes.Buffer, string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename="frame.jpg"`, FormField))
	header.Set("Content-Type", "image/jpeg")

	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form part: %w", err)
	}
	if err := jpeg.Encode(part, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, "", fmt.Errorf("failed to encode frame: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish form: %w", err)
	}

	return &body, mw.FormDataContentType(), nil
}
