package jobs

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MimeLyc/voice-translator/pkg/log"
	"github.com/google/uuid"
)

const interruptedMessage = "interrupted by restart"

type entry struct {
	job   *Job
	state *State
}

// Registry keeps one State per job, keyed by job ID, and remembers the most
// recently created job for the single-slot endpoints.
type Registry struct {
	maxJobs int
	store   Store

	mu     sync.RWMutex
	jobs   map[string]*entry
	latest string
}

func NewRegistry(store Store) *Registry {
	r := &Registry{
		maxJobs: 1000,
		store:   store,
		jobs:    make(map[string]*entry),
	}
	r.hydrateFromStore(context.Background())
	return r
}

// Create registers a new pending job with a freshly reset State and makes it
// the latest job. The State's context is derived from parent.
func (r *Registry) Create(parent context.Context, req CreateRequest) (*Job, *State) {
	now := time.Now()
	state := NewState(parent)
	state.Reset()

	job := &Job{
		ID:             uuid.NewString(),
		InputKind:      req.InputKind,
		TargetLanguage: req.TargetLanguage,
		SourceFile:     req.SourceFile,
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	r.mu.Lock()
	r.jobs[job.ID] = &entry{job: job, state: state}
	r.latest = job.ID
	pruned := r.pruneTerminalJobsLocked()
	snapshot := cloneJob(job)
	r.mu.Unlock()

	r.persistJob(snapshot)
	r.deleteJobsFromStore(pruned)
	return snapshot, state
}

func (r *Registry) Get(id string) (*Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.jobs[id]
	if !ok {
		return nil, false
	}
	return e.snapshot(), true
}

// State returns the live tracker of a job still held in memory.
func (r *Registry) State(id string) (*State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.jobs[id]
	if !ok || e.state == nil {
		return nil, false
	}
	return e.state, true
}

// Latest returns the most recently created job.
func (r *Registry) Latest() (*Job, bool) {
	r.mu.RLock()
	id := r.latest
	r.mu.RUnlock()
	if id == "" {
		return nil, false
	}
	return r.Get(id)
}

// List returns all jobs, newest first.
func (r *Registry) List() []*Job {
	r.mu.RLock()
	ret := make([]*Job, 0, len(r.jobs))
	for _, e := range r.jobs {
		ret = append(ret, e.snapshot())
	}
	r.mu.RUnlock()

	sort.Slice(ret, func(i, j int) bool {
		return ret[i].CreatedAt.After(ret[j].CreatedAt)
	})
	return ret
}

// Cancel raises the job's cancellation flag. It reports false for unknown or
// already finished jobs.
func (r *Registry) Cancel(id string) bool {
	r.mu.RLock()
	e, ok := r.jobs[id]
	var state *State
	if ok && !e.job.Status.Terminal() {
		state = e.state
	}
	r.mu.RUnlock()
	if state == nil {
		return false
	}
	state.Cancel()
	log.Info("Job %s: cancellation requested", id)
	return true
}

func (r *Registry) MarkRunning(id string) {
	r.mu.Lock()
	e, ok := r.jobs[id]
	if !ok || e.job.Status != StatusPending {
		r.mu.Unlock()
		return
	}
	e.job.Status = StatusRunning
	e.job.UpdatedAt = time.Now()
	snapshot := e.snapshot()
	r.mu.Unlock()

	r.persistJob(snapshot)
}

// Finish records the outcome of a run and releases the job's context.
func (r *Registry) Finish(id string, out Outcome) (*Job, bool) {
	r.mu.Lock()
	e, ok := r.jobs[id]
	if !ok {
		r.mu.Unlock()
		return nil, false
	}
	job := e.job
	job.Status = out.Status
	job.Transcript = out.Transcript
	job.TranslatedText = out.TranslatedText
	job.ArtifactPath = out.ArtifactPath
	job.ArtifactURL = out.ArtifactURL
	job.Backend = out.Backend
	job.ErrorType = out.ErrorType
	job.Error = out.Error
	if e.state != nil {
		job.Progress = e.state.Progress()
		e.state.release()
	}
	job.UpdatedAt = time.Now()
	snapshot := cloneJob(job)
	r.mu.Unlock()

	r.persistJob(snapshot)
	return snapshot, true
}

// ForgetArtifact clears the artifact path of every job that points at path.
func (r *Registry) ForgetArtifact(path string) {
	var changed []*Job
	r.mu.Lock()
	for _, e := range r.jobs {
		if e.job.ArtifactPath == path {
			e.job.ArtifactPath = ""
			e.job.UpdatedAt = time.Now()
			changed = append(changed, cloneJob(e.job))
		}
	}
	r.mu.Unlock()

	for _, job := range changed {
		r.persistJob(job)
	}
}

func (r *Registry) pruneTerminalJobsLocked() []string {
	if r.maxJobs <= 0 || len(r.jobs) <= r.maxJobs {
		return nil
	}

	type candidate struct {
		id        string
		updatedAt time.Time
	}
	terminal := make([]candidate, 0, len(r.jobs))
	for id, e := range r.jobs {
		if !e.job.Status.Terminal() || id == r.latest {
			continue
		}
		terminal = append(terminal, candidate{id: id, updatedAt: e.job.UpdatedAt})
	}
	if len(terminal) == 0 {
		return nil
	}

	sort.Slice(terminal, func(i, j int) bool {
		return terminal[i].updatedAt.Before(terminal[j].updatedAt)
	})

	toRemove := len(r.jobs) - r.maxJobs
	if toRemove > len(terminal) {
		toRemove = len(terminal)
	}

	pruned := make([]string, 0, toRemove)
	for i := 0; i < toRemove; i++ {
		delete(r.jobs, terminal[i].id)
		pruned = append(pruned, terminal[i].id)
	}
	return pruned
}

func (r *Registry) deleteJobsFromStore(ids []string) {
	if r.store == nil || len(ids) == 0 {
		return
	}
	for _, id := range ids {
		if err := r.store.DeleteJob(context.Background(), id); err != nil {
			log.Error("Failed to delete pruned job %s from store: %v", id, err)
		}
	}
}

// hydrateFromStore loads history. Jobs that were mid-flight when the process
// stopped cannot resume, so they are marked failed.
func (r *Registry) hydrateFromStore(ctx context.Context) {
	if r.store == nil {
		return
	}
	loaded, err := r.store.LoadJobs(ctx)
	if err != nil {
		log.Error("Failed to load jobs from store: %v", err)
		return
	}

	now := time.Now()
	toPersist := make([]*Job, 0)
	var newest *Job
	r.mu.Lock()
	for _, raw := range loaded {
		if raw == nil || raw.ID == "" {
			continue
		}
		job := cloneJob(raw)
		if !job.Status.Terminal() {
			job.Status = StatusFailed
			job.Error = interruptedMessage
			job.Progress = 0
			job.UpdatedAt = now
			toPersist = append(toPersist, cloneJob(job))
		}
		r.jobs[job.ID] = &entry{job: job}
		if newest == nil || job.CreatedAt.After(newest.CreatedAt) {
			newest = job
		}
	}
	if newest != nil {
		r.latest = newest.ID
	}
	r.mu.Unlock()

	for _, job := range toPersist {
		r.persistJob(job)
	}
}

func (r *Registry) persistJob(job *Job) {
	if r.store == nil || job == nil {
		return
	}
	if err := r.store.UpsertJob(context.Background(), job); err != nil {
		log.Error("Failed to persist job %s: %v", job.ID, err)
	}
}

// snapshot copies the record, overlaying live progress while the job runs.
func (e *entry) snapshot() *Job {
	job := cloneJob(e.job)
	if e.state != nil && !job.Status.Terminal() {
		job.Progress = e.state.Progress()
	}
	return job
}

func cloneJob(job *Job) *Job {
	if job == nil {
		return nil
	}
	tmp := *job
	return &tmp
}
