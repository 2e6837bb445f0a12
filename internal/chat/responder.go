package chat

import (
	"context"
	"time"
)

type Request struct {
	SessionID string
	Text      string
	Language  string
	Device    *DeviceInfo
	Timestamp time.Time
}

type Answer struct {
	Text       string
	Sources    []Source
	Model      string
	Confidence float64
	TokensUsed int
	// OperatorReply marks Text as a reply taken from the operator queue.
	OperatorReply bool
}

// Responder produces the assistant answer for one user message. Upstream
// failures are absorbed; only store faults are returned.
type Responder interface {
	Respond(ctx context.Context, req Request) (Answer, error)
}
