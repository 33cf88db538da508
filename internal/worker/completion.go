package worker

import "sync"

// Completion carries the single outcome of a job. Whichever of the
// operation and its timeout resolves first wins; later results are
// dropped so the lease is released exactly once.
type Completion struct {
	once sync.Once
	done chan struct{}
	err  error
}

// NewCompletion returns an unresolved Completion.
func NewCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

// Resolve records err if the completion is still pending and reports
// whether it did.
func (c *Completion) Resolve(err error) bool {
	resolved := false
	c.once.Do(func() {
		c.err = err
		close(c.done)
		resolved = true
	})
	return resolved
}

// Done is closed once the completion resolves.
func (c *Completion) Done() <-chan struct{} {
	return c.done
}

// Err returns the recorded outcome. Only meaningful after Done.
func (c *Completion) Err() error {
	<-c.done
	return c.err
}
