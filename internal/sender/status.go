package sender

import "log"

// Phase is what the sender is doing from the user's point of view
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseScanning
	PhaseConnected
	PhaseStreaming
	PhaseStopped
	PhaseDisconnected
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseScanning:
		return "scanning"
	case PhaseConnected:
		return "connected"
	case PhaseStreaming:
		return "streaming"
	case PhaseStopped:
		return "stopped"
	case PhaseDisconnected:
		return "disconnected"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Status is one line for the UI's status label
type Status struct {
	Phase   Phase
	Message string
}

// StatusSink receives status changes. Implementations must be safe for use
// from the streaming goroutine.
type StatusSink interface {
	Report(Status)
}

// StatusFunc adapts a function to StatusSink
type StatusFunc func(Status)

// Report calls f(s)
func (f StatusFunc) Report(s Status) { f(s) }

// LogSink writes status changes to the standard logger
type LogSink struct{}

// Report logs s
func (LogSink) Report(s Status) {
	log.Printf("📱 Status: %s", s.Message)
}
