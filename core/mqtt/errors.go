package mqtt

import "errors"

// ErrAckTimeout is returned when a truck does not acknowledge its order in time.
var ErrAckTimeout = errors.New("timeout waiting for ack")
