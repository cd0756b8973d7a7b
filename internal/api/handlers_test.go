package api

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shehryarbajwa/camdroid/internal/framestore"
	"github.com/shehryarbajwa/camdroid/internal/ingest"
	"github.com/shehryarbajwa/camdroid/internal/live"
	"github.com/shehryarbajwa/camdroid/internal/pairing"
	"github.com/shehryarbajwa/camdroid/internal/ratelimit"
	"github.com/shehryarbajwa/camdroid/internal/session"
	"github.com/shehryarbajwa/camdroid/pkg/models"
)

type fixture struct {
	handler *Handler
	auth    *session.Authority
	frames  *framestore.Store
	upload  http.Handler
	control http.Handler
	hub     *live.Hub
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	if cfg.AdvertiseAddr == "" {
		cfg.AdvertiseAddr = "192.168.1.10:5000"
	}

	frames := framestore.New()
	auth := session.NewAuthority(frames, session.WithReceiverID("Desk"))
	h := NewHandler(auth, frames, ingest.NewEndpoint(auth, frames), cfg)
	hub := live.NewHub()
	t.Cleanup(hub.Close)

	return &fixture{
		handler: h,
		auth:    auth,
		frames:  frames,
		upload:  h.UploadRoutes(),
		control: h.ControlRoutes(hub, ratelimit.NewLimiter(600, 100)),
		hub:     hub,
	}
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("jpeg.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func multipartBody(t *testing.T, field string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, "frame.jpg")
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	part.Write(data)
	mw.Close()
	return &body, mw.FormDataContentType()
}

func uploadRequest(t *testing.T, token string, data []byte) *http.Request {
	t.Helper()
	body, contentType := multipartBody(t, models.FrameField, data)
	req := httptest.NewRequest("POST", "/upload?token="+url.QueryEscape(token), body)
	req.Header.Set("Content-Type", contentType)
	return req
}

func TestUpload(t *testing.T) {
	f := newFixture(t, Config{})
	token := f.auth.GenerateToken()
	frame := jpegBytes(t, 32, 24)

	rr := httptest.NewRecorder()
	f.upload.ServeHTTP(rr, uploadRequest(t, token, frame))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %q)", rr.Code, rr.Body.String())
	}
	got, ok := f.frames.TakeLatest()
	if !ok {
		t.Fatal("frame store is empty after a successful upload")
	}
	if got.Width != 32 || got.Height != 24 {
		t.Errorf("frame is %dx%d, want 32x24", got.Width, got.Height)
	}
	if !bytes.Equal(got.Encoded, frame) {
		t.Error("stored frame does not keep the uploaded bytes")
	}
}

func TestUpload_RawBody(t *testing.T) {
	f := newFixture(t, Config{})
	token := f.auth.GenerateToken()

	req := httptest.NewRequest("POST", "/upload?token="+token, bytes.NewReader(jpegBytes(t, 8, 8)))
	req.Header.Set("Content-Type", "image/jpeg")
	rr := httptest.NewRecorder()
	f.upload.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if _, ok := f.frames.TakeLatest(); !ok {
		t.Error("raw upload was not stored")
	}
}

func TestUpload_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		token    func(current string) string
		data     []byte
		field    string
		wantCode int
	}{
		{name: "missing token", token: func(string) string { return "" }, wantCode: http.StatusForbidden},
		{name: "wrong token", token: func(string) string { return "nope" }, wantCode: http.StatusForbidden},
		{name: "corrupt image", data: []byte("definitely not a jpeg"), wantCode: http.StatusBadRequest},
		{name: "empty image", data: []byte{}, wantCode: http.StatusBadRequest},
		{name: "wrong field", field: "photo", wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{})
			current := f.auth.GenerateToken()

			token := current
			if tt.token != nil {
				token = tt.token(current)
			}
			data := tt.data
			if data == nil {
				data = jpegBytes(t, 8, 8)
			}
			field := tt.field
			if field == "" {
				field = models.FrameField
			}

			body, contentType := multipartBody(t, field, data)
			req := httptest.NewRequest("POST", "/upload?token="+url.QueryEscape(token), body)
			req.Header.Set("Content-Type", contentType)
			rr := httptest.NewRecorder()
			f.upload.ServeHTTP(rr, req)

			if rr.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantCode)
			}
			if _, ok := f.frames.TakeLatest(); ok {
				t.Error("rejected upload reached the frame store")
			}
		})
	}
}

func TestUpload_BodyCap(t *testing.T) {
	f := newFixture(t, Config{MaxUploadBytes: 512})
	token := f.auth.GenerateToken()

	rr := httptest.NewRecorder()
	f.upload.ServeHTTP(rr, uploadRequest(t, token, jpegBytes(t, 128, 128)))

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for an oversized body", rr.Code)
	}
}

func TestUpload_StaleTokenAfterRegenerate(t *testing.T) {
	f := newFixture(t, Config{})
	first := f.auth.GenerateToken()
	f.auth.GenerateToken()

	rr := httptest.NewRecorder()
	f.upload.ServeHTTP(rr, uploadRequest(t, first, jpegBytes(t, 8, 8)))

	if rr.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 for a superseded token", rr.Code)
	}
}

func TestCreatePairing(t *testing.T) {
	var printed *pairing.Code
	f := newFixture(t, Config{OnPairing: func(c *pairing.Code) { printed = c }})

	rr := httptest.NewRecorder()
	f.control.ServeHTTP(rr, httptest.NewRequest("POST", "/v1/pairing", nil))

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rr.Code)
	}

	var resp models.PairingResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !f.auth.ValidateToken(resp.Token) {
		t.Error("returned token is not the live token")
	}
	if resp.ReceiverID != "Desk" {
		t.Errorf("ReceiverID = %q, want Desk", resp.ReceiverID)
	}

	target, err := pairing.ParsePayload(resp.Payload)
	if err != nil {
		t.Fatalf("ParsePayload(%q) error = %v", resp.Payload, err)
	}
	if target.Token != resp.Token || target.Endpoint != "http://192.168.1.10:5000/upload" {
		t.Errorf("payload resolves to %+v", target)
	}
	if printed == nil || printed.Payload != resp.Payload {
		t.Error("OnPairing was not called with the new code")
	}
}

func TestGetPairingQR(t *testing.T) {
	f := newFixture(t, Config{})

	rr := httptest.NewRecorder()
	f.control.ServeHTTP(rr, httptest.NewRequest("GET", "/v1/pairing/qr.png", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status without a session = %d, want 404", rr.Code)
	}

	code, _, err := f.handler.NewPairing()
	if err != nil {
		t.Fatalf("NewPairing() error = %v", err)
	}

	rr = httptest.NewRecorder()
	f.control.ServeHTTP(rr, httptest.NewRequest("GET", "/v1/pairing/qr.png?size=320", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}

	img, err := png.Decode(rr.Body)
	if err != nil {
		t.Fatalf("png.Decode() error = %v", err)
	}
	text, ok := pairing.ScanFrame(img)
	if !ok || text != code.Payload {
		t.Errorf("scanned %q (ok=%v), want %q", text, ok, code.Payload)
	}
}

func TestGetPairingQR_BadSize(t *testing.T) {
	f := newFixture(t, Config{})
	f.handler.NewPairing()

	for _, size := range []string{"abc", "10", "99999"} {
		rr := httptest.NewRecorder()
		f.control.ServeHTTP(rr, httptest.NewRequest("GET", "/v1/pairing/qr.png?size="+size, nil))
		if rr.Code != http.StatusBadRequest {
			t.Errorf("size=%s: status = %d, want 400", size, rr.Code)
		}
	}
}

func TestSessionAndDisconnect(t *testing.T) {
	f := newFixture(t, Config{})

	status := getSession(t, f)
	if status.Active || status.IssuedAt != nil {
		t.Errorf("fresh receiver reports %+v, want inactive", status)
	}

	token := f.auth.GenerateToken()
	f.frames.Put(&models.Frame{Encoded: jpegBytes(t, 4, 4)})

	status = getSession(t, f)
	if !status.Active || status.IssuedAt == nil || status.ReceiverID != "Desk" {
		t.Errorf("paired receiver reports %+v", status)
	}

	rr := httptest.NewRecorder()
	f.control.ServeHTTP(rr, httptest.NewRequest("POST", "/v1/disconnect", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("disconnect status = %d, want 204", rr.Code)
	}

	if f.auth.ValidateToken(token) {
		t.Error("token still valid after disconnect")
	}
	if _, ok := f.frames.TakeLatest(); ok {
		t.Error("frame store not cleared by disconnect")
	}
	if getSession(t, f).Active {
		t.Error("session still active after disconnect")
	}
}

func getSession(t *testing.T, f *fixture) models.SessionStatus {
	t.Helper()
	rr := httptest.NewRecorder()
	f.control.ServeHTTP(rr, httptest.NewRequest("GET", "/v1/session", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /v1/session status = %d", rr.Code)
	}
	var status models.SessionStatus
	if err := json.NewDecoder(rr.Body).Decode(&status); err != nil {
		t.Fatalf("failed to decode session: %v", err)
	}
	return status
}

func TestSetReceiverID(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantID   string
	}{
		{name: "rename", body: `{"receiverId":"  Living Room  "}`, wantCode: http.StatusOK, wantID: "Living Room"},
		{name: "blank", body: `{"receiverId":"   "}`, wantCode: http.StatusBadRequest, wantID: "Desk"},
		{name: "malformed", body: `{`, wantCode: http.StatusBadRequest, wantID: "Desk"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{})
			token := f.auth.GenerateToken()

			req := httptest.NewRequest("PUT", "/v1/receiver-id", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rr := httptest.NewRecorder()
			f.control.ServeHTTP(rr, req)

			if rr.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantCode)
			}
			if got := f.auth.ReceiverID(); got != tt.wantID {
				t.Errorf("ReceiverID() = %q, want %q", got, tt.wantID)
			}
			if !f.auth.ValidateToken(token) {
				t.Error("renaming must not touch the token")
			}
		})
	}
}

func TestGetLatestFrame(t *testing.T) {
	f := newFixture(t, Config{})

	rr := httptest.NewRecorder()
	f.control.ServeHTTP(rr, httptest.NewRequest("GET", "/v1/frame", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204 with an empty store", rr.Code)
	}

	data := jpegBytes(t, 16, 16)
	f.frames.Put(&models.Frame{Encoded: data, Width: 16, Height: 16})

	rr = httptest.NewRecorder()
	f.control.ServeHTTP(rr, httptest.NewRequest("GET", "/v1/frame", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q, want image/jpeg", ct)
	}
	if rr.Header().Get("X-Frame-Seq") != "1" {
		t.Errorf("X-Frame-Seq = %q, want 1", rr.Header().Get("X-Frame-Seq"))
	}
	if !bytes.Equal(rr.Body.Bytes(), data) {
		t.Error("body does not match the stored frame")
	}
}

func TestControl_RateLimited(t *testing.T) {
	frames := framestore.New()
	auth := session.NewAuthority(frames)
	h := NewHandler(auth, frames, ingest.NewEndpoint(auth, frames), Config{AdvertiseAddr: "10.0.0.1:5000"})
	router := h.ControlRoutes(live.NewHub(), ratelimit.NewLimiter(1, 2))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest("POST", "/v1/disconnect", nil))
		codes = append(codes, rr.Code)
	}
	if codes[0] != http.StatusNoContent || codes[1] != http.StatusNoContent || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [204 204 429]", codes)
	}

	// reads are not limited
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/v1/session", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("GET /v1/session status = %d, want 200", rr.Code)
	}
}

func TestControl_CORS(t *testing.T) {
	f := newFixture(t, Config{})

	rr := httptest.NewRecorder()
	f.control.ServeHTTP(rr, httptest.NewRequest("GET", "/v1/session", nil))
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

func TestControl_LiveView(t *testing.T) {
	f := newFixture(t, Config{})
	srv := httptest.NewServer(f.control)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/live"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for f.hub.Viewers() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("viewer never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	f.hub.RenderPlaceholder("Waiting for frames...")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if kind != websocket.TextMessage || string(data) != "Waiting for frames..." {
		t.Errorf("got (%d, %q)", kind, data)
	}
}
