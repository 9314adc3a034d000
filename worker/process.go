package worker

import "sync"

// Process holds state shared by every job handled by this worker process.
// The prewarm hook populates it once at startup, before any job runs.
type Process struct {
	mu       sync.RWMutex
	userdata map[string]any
}

func newProcess() *Process {
	return &Process{userdata: make(map[string]any)}
}

// Store saves a value under key for later jobs to pick up.
func (p *Process) Store(key string, value any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userdata[key] = value
}

// Value returns the value stored under key, or nil.
func (p *Process) Value(key string) any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.userdata[key]
}
