package jobs

import (
	"context"
	"sync"
)

// State is the progress tracker and cancellation flag of a single job.
// Once cancelled, progress stays at 0 until the next Reset.
type State struct {
	mu          sync.Mutex
	progress    int
	cancelled   bool
	checkpoints []int

	parent context.Context
	ctx    context.Context
	cancel context.CancelFunc
	stop   func() bool
}

// NewState returns a reset state whose context is derived from parent.
// Cancel also cancels that context so in-flight calls can stop early, and a
// cancelled parent (a client that hung up) raises the flag like Cancel does.
func NewState(parent context.Context) *State {
	if parent == nil {
		parent = context.Background()
	}
	s := &State{parent: parent}
	s.ctx, s.cancel = context.WithCancel(parent)
	s.stop = context.AfterFunc(parent, s.Cancel)
	return s
}

// Context is the job-scoped context external calls should run under.
func (s *State) Context() context.Context {
	return s.ctx
}

func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = 0
	s.cancelled = false
	s.checkpoints = nil
}

// Advance moves progress to v, or forces 0 when the job is cancelled.
func (s *State) Advance(v int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observeParentLocked()
	if s.cancelled {
		s.progress = 0
		return
	}
	s.progress = v
	s.checkpoints = append(s.checkpoints, v)
}

func (s *State) Cancel() {
	s.mu.Lock()
	s.cancelled = true
	s.progress = 0
	s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *State) Progress() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

func (s *State) Cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observeParentLocked()
	return s.cancelled
}

// observeParentLocked covers the window between the parent being done and
// its AfterFunc running.
func (s *State) observeParentLocked() {
	if !s.cancelled && s.parent != nil && s.parent.Err() != nil {
		s.cancelled = true
		s.progress = 0
	}
}

// Checkpoints returns the values recorded by Advance since the last Reset.
func (s *State) Checkpoints() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.checkpoints...)
}

// release frees the context once the job is finished.
func (s *State) release() {
	if s.stop != nil {
		s.stop()
	}
	if s.cancel != nil {
		s.cancel()
	}
}
