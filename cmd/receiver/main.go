package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shehryarbajwa/camdroid/internal/api"
	"github.com/shehryarbajwa/camdroid/internal/config"
	"github.com/shehryarbajwa/camdroid/internal/display"
	"github.com/shehryarbajwa/camdroid/internal/framestore"
	"github.com/shehryarbajwa/camdroid/internal/ingest"
	"github.com/shehryarbajwa/camdroid/internal/live"
	"github.com/shehryarbajwa/camdroid/internal/netaddr"
	"github.com/shehryarbajwa/camdroid/internal/pairing"
	"github.com/shehryarbajwa/camdroid/internal/ratelimit"
	"github.com/shehryarbajwa/camdroid/internal/session"
)

func main() {
	cfg, err := config.LoadReceiver()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Println("Starting CamDroid receiver...")

	frames := framestore.New()
	auth := session.NewAuthority(frames, session.WithReceiverID(cfg.ReceiverID))
	log.Printf("✓ Session authority initialized (receiver %q)", auth.ReceiverID())

	advertise, err := netaddr.AdvertiseAddr(cfg.AdvertiseHost, cfg.UploadAddr)
	if err != nil {
		log.Fatalf("Failed to resolve advertised address: %v", err)
	}
	log.Printf("✓ Advertising uploads at %s", advertise)

	handler := api.NewHandler(auth, frames, ingest.NewEndpoint(auth, frames), api.Config{
		AdvertiseAddr:  advertise,
		MaxUploadBytes: cfg.MaxUploadBytes,
		QRSize:         cfg.QRSize,
		OnPairing:      printPairingCode,
	})

	hub := live.NewHub()
	rateLimiter := ratelimit.NewLimiter(cfg.ControlRequestsPerMinute, cfg.ControlBurst)
	log.Printf("✓ Rate limiter initialized (%d req/min per client)", cfg.ControlRequestsPerMinute)

	screen := display.NewLoop(frames, display.Multi{hub, display.NewLogRenderer(5 * time.Second)}, cfg.DisplayInterval)

	uploadSrv := &http.Server{
		Addr:         cfg.UploadAddr,
		Handler:      handler.UploadRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	// no WriteTimeout: live viewers hold their connection open
	controlSrv := &http.Server{
		Addr:              cfg.ControlAddr,
		Handler:           handler.ControlRoutes(hub, rateLimiter),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	log.Println("✓ HTTP routes configured")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("🚀 Upload server listening on http://%s%s", cfg.UploadAddr, pairing.UploadPath)
		return serve(uploadSrv)
	})
	g.Go(func() error {
		log.Printf("📍 Control API available at http://%s/v1", cfg.ControlAddr)
		log.Printf("📺 Live view at ws://%s/v1/live", cfg.ControlAddr)
		return serve(controlSrv)
	})
	g.Go(func() error {
		return screen.Run(gctx)
	})
	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				rateLimiter.Prune(10 * time.Minute)
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("⏳ Shutting down servers gracefully...")

		hub.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return errors.Join(uploadSrv.Shutdown(shutdownCtx), controlSrv.Shutdown(shutdownCtx))
	})

	if cfg.PairOnStart {
		if _, _, err := handler.NewPairing(); err != nil {
			log.Printf("⚠️ Failed to create pairing code: %v", err)
		}
	} else {
		log.Printf("⏸️  Waiting for POST http://%s/v1/pairing", cfg.ControlAddr)
	}

	if err := g.Wait(); err != nil {
		log.Fatalf("Receiver stopped with error: %v", err)
	}

	log.Println("✅ Receiver stopped cleanly")
}

func serve(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server on %s: %w", srv.Addr, err)
	}
	return nil
}

func printPairingCode(code *pairing.Code) {
	fmt.Fprintf(os.Stdout, "\nScan to pair:\n%s\n%s\n\n", code.Terminal(), code.Payload)
}
