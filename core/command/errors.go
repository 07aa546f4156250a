package command

import "errors"

// ErrTooManyRequests is the sentinel wrapped by every throttling rejection,
// so callers can match with errors.Is regardless of which decorator fired.
var ErrTooManyRequests = errors.New("too many requests")
