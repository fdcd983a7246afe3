package winfs

import (
	"errors"
	"sync"

	"github.com/jeffh/ninefs/ninep"
)

type HandleState int

const (
	Unopened HandleState = iota
	Opened
	Closed
)

func (s HandleState) String() string {
	switch s {
	case Unopened:
		return "unopened"
	case Opened:
		return "opened"
	case Closed:
		return "closed"
	}
	return "unknown"
}

var errHandleInUse = errors.New("file context already holds a reference")

// FileContext is the per-open state the driver keeps for one local handle.
// It holds at most one remote reference, which is released exactly once.
// The zero value is an unopened context.
type FileContext struct {
	mu    sync.RWMutex
	state HandleState
	file  ninep.File
	dir   bool
}

func (c *FileContext) State() HandleState {
	if c == nil {
		return Unopened
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsDirectory reports whether the context was opened on a directory.
func (c *FileContext) IsDirectory() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dir
}

func (c *FileContext) attach(f ninep.File) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Unopened {
		return errHandleInUse
	}
	c.state = Opened
	c.file = f
	c.dir = f.Qid().IsDir()
	return nil
}

// release closes the held reference, if any. Later calls do nothing.
func (c *FileContext) release() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Closed {
		return nil
	}
	f := c.file
	c.state = Closed
	c.file = nil
	if f != nil {
		return f.Close()
	}
	return nil
}

// use runs fn with the context's reference, if it has one. The reference
// cannot be released while fn runs.
func (c *FileContext) use(fn func(ninep.File) error) (bool, error) {
	if c == nil {
		return false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != Opened || c.file == nil {
		return false, nil
	}
	return true, fn(c.file)
}

// withFile runs fn against the context's reference or, lacking one, a
// temporary reference opened with mode and closed before returning.
func withFile(clt ninep.Client, fc *FileContext, path string, mode ninep.OpenMode, fn func(ninep.File) error) error {
	if ok, err := fc.use(fn); ok {
		return err
	}
	f, err := clt.Open(path, mode)
	if err != nil {
		return err
	}
	defer f.Close()
	return fn(f)
}
