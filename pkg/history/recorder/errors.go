package recorder

import "errors"

// ErrQueueFull is returned when the write queue has no room.
var ErrQueueFull = errors.New("history queue full")
