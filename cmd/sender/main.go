package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/shehryarbajwa/camdroid/internal/camera"
	"github.com/shehryarbajwa/camdroid/internal/config"
	"github.com/shehryarbajwa/camdroid/internal/pairing"
	"github.com/shehryarbajwa/camdroid/internal/sender"
)

const usage = "Commands: scan, cancel, pair <url>, start, stop, switch, quit"

type app struct {
	ctx        context.Context
	ctrl       *sender.Controller
	loop       *sender.Loop
	scanDone   chan error
	scanning   bool
	streamDone <-chan struct{}

	// set when a pasted payload interrupts a scan
	startAfterScan bool
}

func main() {
	payload := flag.String("payload", "", "pairing URL to use instead of scanning a code")
	flag.Parse()

	cfg, err := config.LoadSender()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *payload != "" {
		cfg.Payload = *payload
	}

	log.Println("Starting CamDroid sender...")

	cams := camera.NewSwitcher(opener(cfg), cfg.Cameras())
	log.Printf("✓ Camera switcher initialized (%d cameras)", cfg.Cameras())

	sink := sender.LogSink{}
	loop := sender.NewLoop(cams, sink, sender.Options{
		FPS:         cfg.FPS,
		Timeout:     cfg.RequestTimeout,
		JPEGQuality: cfg.JPEGQuality,
	})
	ctrl := sender.NewController(cams, pairing.NewScanner(cfg.ScanInterval), loop, sink)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{
		ctx:      ctx,
		ctrl:     ctrl,
		loop:     loop,
		scanDone: make(chan error, 1),
	}

	if cfg.Payload != "" {
		a.pair(cfg.Payload)
	} else {
		a.scan()
	}

	log.Println(usage)
	commands := readCommands(os.Stdin)

	for {
		select {
		case <-ctx.Done():
			a.shutdown()
			return

		case err := <-a.scanDone:
			a.scanning = false
			if err == nil || a.startAfterScan {
				a.startAfterScan = false
				a.start()
			} else if !errors.Is(err, pairing.ErrScanCancelled) && !errors.Is(err, context.Canceled) {
				log.Printf("❌ Scan failed: %v", err)
			}

		case <-a.streamDone:
			a.streamDone = nil
			log.Println("Stream ended. Type 'start' to resume or 'scan' to pair again.")

		case line, ok := <-commands:
			if !ok {
				commands = nil
				continue
			}
			if !a.handle(line) {
				a.shutdown()
				return
			}
		}
	}
}

func opener(cfg *config.Sender) camera.Opener {
	if len(cfg.CameraDirs) > 0 {
		return camera.DirOpener(cfg.CameraDirs)
	}
	return camera.PatternOpener(cfg.CameraCount, cfg.FrameWidth, cfg.FrameHeight)
}

// handle runs one command and reports whether to keep going
func (a *app) handle(line string) bool {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")

	switch strings.ToLower(cmd) {
	case "":
	case "scan":
		a.scan()
	case "cancel":
		a.ctrl.CancelScan()
	case "pair":
		a.pair(strings.TrimSpace(arg))
	case "start":
		a.start()
	case "stop":
		a.ctrl.StopStream()
	case "switch":
		a.switchCamera()
	case "quit", "exit":
		return false
	default:
		log.Printf("⚠️ Unknown command %q. %s", cmd, usage)
	}
	return true
}

func (a *app) scan() {
	if a.scanning {
		log.Println("⚠️ Already scanning")
		return
	}
	a.scanning = true
	go func() {
		_, err := a.ctrl.Scan(a.ctx)
		a.scanDone <- err
	}()
}

func (a *app) pair(payload string) {
	if _, err := a.ctrl.ConnectPayload(payload); err != nil {
		log.Printf("❌ Invalid pairing payload: %v", err)
		return
	}
	if a.scanning {
		a.startAfterScan = true
		a.ctrl.CancelScan()
		return
	}
	a.start()
}

func (a *app) start() {
	if err := a.ctrl.StartStream(a.ctx); err != nil {
		if !errors.Is(err, sender.ErrNotConnected) {
			log.Printf("❌ Failed to start stream: %v", err)
		}
		return
	}
	a.streamDone = a.loop.Done()
}

// switchCamera restarts a running stream on the next camera
func (a *app) switchCamera() {
	wasRunning := a.loop.Running()
	if wasRunning {
		a.ctrl.StopStream()
		a.loop.Wait()
		a.streamDone = nil
	}

	if _, err := a.ctrl.SwitchCamera(); err != nil {
		log.Printf("❌ Failed to switch camera: %v", err)
	}

	if wasRunning {
		a.start()
	}
}

func (a *app) shutdown() {
	log.Println("⏳ Shutting down...")
	a.ctrl.CancelScan()
	a.ctrl.StopStream()
	a.loop.Wait()
	log.Println("✅ Sender stopped cleanly")
}

func readCommands(r io.Reader) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			out <- scanner.Text()
		}
	}()
	return out
}
