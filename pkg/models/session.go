package models

import "time"

// UnknownReceiverID is reported until a receiver is given a name
const UnknownReceiverID = "Unknown"

// Session is a point-in-time view of the receiver's pairing state
type Session struct {
	Token      string    `json:"-"`
	ReceiverID string    `json:"receiverId"`
	IssuedAt   time.Time `json:"issuedAt,omitempty"`
}

// Active reports whether a token is currently live
func (s Session) Active() bool {
	return s.Token != ""
}

// SessionStatus is the control API view of the session
type SessionStatus struct {
	Active     bool       `json:"active"`
	ReceiverID string     `json:"receiverId"`
	IssuedAt   *time.Time `json:"issuedAt,omitempty"`
}

// PairingResponse is returned when a new pairing code is generated
type PairingResponse struct {
	Token      string    `json:"token"`
	ReceiverID string    `json:"receiverId"`
	Payload    string    `json:"payload"`
	IssuedAt   time.Time `json:"issuedAt"`
}

// SetReceiverIDRequest is the payload for renaming the receiver
type SetReceiverIDRequest struct {
	ReceiverID string `json:"receiverId"`
}
