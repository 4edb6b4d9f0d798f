package publisher

import "errors"

// ErrClosed is returned by Emit after Close.
var ErrClosed = errors.New("audit publisher closed")
