package mqtt

import "errors"

// ErrAckTimeout is returned when no acknowledgment is received before the timeout.
var ErrAckTimeout = errors.New("timeout waiting for ack")

// ErrUnknownMessage is returned when waiting on a message that was never published.
var ErrUnknownMessage = errors.New("unknown message")
