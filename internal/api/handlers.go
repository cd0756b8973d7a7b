package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/elnormous/contenttype"

	"github.com/shehryarbajwa/camdroid/internal/framestore"
	"github.com/shehryarbajwa/camdroid/internal/ingest"
	"github.com/shehryarbajwa/camdroid/internal/pairing"
	"github.com/shehryarbajwa/camdroid/internal/session"
	"github.com/shehryarbajwa/camdroid/pkg/models"
)

const (
	// DefaultMaxUploadBytes caps one upload body
	DefaultMaxUploadBytes = 32 << 20

	minQRSize = 64
	maxQRSize = 2048
)

var multipartMediaType = contenttype.NewMediaType("multipart/form-data")

// Config carries the handler settings that come from the environment
type Config struct {
	// AdvertiseAddr is the host:port written into pairing payloads
	AdvertiseAddr  string
	MaxUploadBytes int64
	QRSize         int
	// OnPairing is called after each new pairing code is issued
	OnPairing func(*pairing.Code)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	auth   *session.Authority
	frames *framestore.Store
	ingest *ingest.Endpoint
	cfg    Config
}

// NewHandler creates a new HTTP handler
func NewHandler(auth *session.Authority, frames *framestore.Store, endpoint *ingest.Endpoint, cfg Config) *Handler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.QRSize <= 0 {
		cfg.QRSize = pairing.DefaultCodeSize
	}
	return &Handler{
		auth:   auth,
		frames: frames,
		ingest: endpoint,
		cfg:    cfg,
	}
}

// NewPairing invalidates the current token and returns a code for a fresh one
func (h *Handler) NewPairing() (*pairing.Code, models.Session, error) {
	h.auth.GenerateToken()
	sess := h.auth.Snapshot()

	code, err := pairing.CreatePairingCode(sess, h.cfg.AdvertiseAddr)
	if err != nil {
		return nil, sess, err
	}
	log.Printf("🔗 QR Data: %s", code.Payload)

	if h.cfg.OnPairing != nil {
		h.cfg.OnPairing(code)
	}
	return code, sess, nil
}

// Upload handles POST /upload?token=
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if !h.ingest.Authorized(token) {
		log.Printf("⛔ Upload from %s rejected: stale or missing token", r.RemoteAddr)
		http.Error(w, ingest.Unauthorized.String(), http.StatusForbidden)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)
	payload, err := readFramePayload(r)
	if err != nil {
		http.Error(w, "Bad Input: "+err.Error(), http.StatusBadRequest)
		return
	}

	outcome, err := h.ingest.Ingest(token, payload)
	if err != nil {
		if !errors.Is(err, ingest.ErrUnauthorized) {
			log.Printf("⚠️ Upload from %s rejected: %v", r.RemoteAddr, err)
		}
		http.Error(w, outcome.String(), outcome.StatusCode())
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(outcome.StatusCode())
	io.WriteString(w, outcome.String())
}

// readFramePayload returns the multipart "frame" part, or the whole body for raw uploads
func readFramePayload(r *http.Request) ([]byte, error) {
	ctype, err := contenttype.GetMediaType(r)
	if err != nil || !ctype.Matches(multipartMediaType) {
		return io.ReadAll(r.Body)
	}

	if err := r.ParseMultipartForm(8 << 20); err != nil {
		return nil, fmt.Errorf("invalid multipart body: %w", err)
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile(models.FrameField)
	if err != nil {
		return nil, fmt.Errorf("missing %q field: %w", models.FrameField, err)
	}
	defer file.Close()

	return io.ReadAll(file)
}

// CreatePairing handles POST /v1/pairing
func (h *Handler) CreatePairing(w http.ResponseWriter, r *http.Request) {
	code, sess, err := h.NewPairing()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusCreated, models.PairingResponse{
		Token:      sess.Token,
		ReceiverID: sess.ReceiverID,
		Payload:    code.Payload,
		IssuedAt:   sess.IssuedAt,
	})
}

// GetPairingQR handles GET /v1/pairing/qr.png
func (h *Handler) GetPairingQR(w http.ResponseWriter, r *http.Request) {
	size := h.cfg.QRSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < minQRSize || n > maxQRSize {
			writeError(w, http.StatusBadRequest, fmt.Errorf("size must be between %d and %d", minQRSize, maxQRSize))
			return
		}
		size = n
	}

	code, err := pairing.CreatePairingCode(h.auth.Snapshot(), h.cfg.AdvertiseAddr)
	if errors.Is(err, pairing.ErrNoSession) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	png, err := code.PNG(size)
	if err != nil {
		log.Printf("❌ Failed to render pairing code: %v", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(png)
}

// GetSession handles GET /v1/session
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess := h.auth.Snapshot()

	status := models.SessionStatus{
		Active:     sess.Active(),
		ReceiverID: sess.ReceiverID,
	}
	if sess.Active() {
		issued := sess.IssuedAt
		status.IssuedAt = &issued
	}

	writeJSON(w, http.StatusOK, status)
}

// Disconnect handles POST /v1/disconnect
func (h *Handler) Disconnect(w http.ResponseWriter, r *http.Request) {
	h.auth.Disconnect()
	w.WriteHeader(http.StatusNoContent)
}

// SetReceiverID handles PUT /v1/receiver-id
func (h *Handler) SetReceiverID(w http.ResponseWriter, r *http.Request) {
	var req models.SetReceiverIDRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	if err := h.auth.SetReceiverID(req.ReceiverID); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	h.GetSession(w, r)
}

// GetLatestFrame handles GET /v1/frame
func (h *Handler) GetLatestFrame(w http.ResponseWriter, r *http.Request) {
	frame, ok := h.frames.TakeLatest()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(frame.Encoded))
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Frame-Seq", strconv.FormatUint(frame.Seq, 10))
	w.Write(frame.Encoded)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
	})
}
