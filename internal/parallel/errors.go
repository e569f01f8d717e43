package parallel

import "sync"

// ErrorCollector records the first non-nil error reported to it. It is safe
// for concurrent use.
type ErrorCollector struct {
	mu  sync.Mutex
	err error
}

// SetError records err if it is the first non-nil error seen.
func (c *ErrorCollector) SetError(err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
}

// Err returns the first recorded error, or nil.
func (c *ErrorCollector) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Reset forgets any recorded error.
func (c *ErrorCollector) Reset() {
	c.mu.Lock()
	c.err = nil
	c.mu.Unlock()
}
