package pairing

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/shehryarbajwa/camdroid/pkg/models"
)

// UploadPath is where the receiver accepts frames
const UploadPath = "/upload"

// ErrParse is returned for payloads that are not a usable upload URL
var ErrParse = errors.New("malformed pairing payload")

// Target is a decoded pairing payload: where to post frames and with which token
type Target struct {
	Endpoint   string // scheme://host:port/path, no query
	Token      string
	ReceiverID string
}

// UploadURL is the URL the sender posts frames to
func (t Target) UploadURL() string {
	return t.Endpoint + "?" + encodeQuery(t.Token, t.ReceiverID)
}

// BuildPayload renders the pairing URL for a session reachable at hostPort
func BuildPayload(sess models.Session, hostPort string) string {
	u := url.URL{
		Scheme:   "http",
		Host:     hostPort,
		Path:     UploadPath,
		RawQuery: encodeQuery(sess.Token, sess.ReceiverID),
	}
	return u.String()
}

// encodeQuery keeps token ahead of id in the query string
func encodeQuery(token, receiverID string) string {
	return "token=" + url.QueryEscape(token) + "&id=" + url.QueryEscape(receiverID)
}

// ParsePayload decodes scanned text into a Target. The receiver id falls back
// to "Unknown" when absent.
func ParsePayload(text string) (Target, error) {
	u, err := url.Parse(strings.TrimSpace(text))
	if err != nil {
		return Target{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Target{}, fmt.Errorf("%w: unsupported scheme %q", ErrParse, u.Scheme)
	}
	if u.Host == "" {
		return Target{}, fmt.Errorf("%w: missing host", ErrParse)
	}
	if u.Path == "" || u.Path == "/" {
		return Target{}, fmt.Errorf("%w: missing path", ErrParse)
	}

	q, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return Target{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	token := q.Get("token")
	if token == "" {
		return Target{}, fmt.Errorf("%w: missing token", ErrParse)
	}
	receiverID := q.Get("id")
	if strings.TrimSpace(receiverID) == "" {
		receiverID = models.UnknownReceiverID
	}

	endpoint := url.URL{Scheme: u.Scheme, Host: u.Host, Path: u.Path}
	return Target{
		Endpoint:   endpoint.String(),
		Token:      token,
		ReceiverID: receiverID,
	}, nil
}
