package service

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/MimeLyc/voice-translator/internal/jobs"
	"github.com/MimeLyc/voice-translator/pkg/file"
	"github.com/MimeLyc/voice-translator/pkg/log"
	"github.com/robfig/cron/v3"
)

// Janitor removes uploads and artifacts older than the retention period.
type Janitor struct {
	dirs      []string
	retention time.Duration
	registry  *jobs.Registry
	now       func() time.Time
}

func NewJanitor(retention time.Duration, registry *jobs.Registry, dirs ...string) *Janitor {
	return &Janitor{
		dirs:      dirs,
		retention: retention,
		registry:  registry,
		now:       time.Now,
	}
}

// Sweep deletes expired files and returns how many were removed.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	cutoff := j.now().Add(-j.retention)
	removed := 0
	var errs []error
	for _, dir := range j.dirs {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		paths, err := file.FindOlderThan(dir, cutoff)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, p := range paths {
			if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
				continue
			}
			if j.registry != nil {
				j.registry.ForgetArtifact(p)
			}
			removed++
		}
	}
	if removed > 0 {
		log.Info("Cleanup: removed %d expired files", removed)
	}
	return removed, errors.Join(errs...)
}

type cronEngine interface {
	AddFunc(spec string, cmd func()) (cron.EntryID, error)
}

// CleanupScheduler registers the janitor on a cron schedule.
type CleanupScheduler struct {
	cron    cronEngine
	expr    string
	janitor *Janitor
}

func NewCleanupScheduler(c cronEngine, expr string, janitor *Janitor) *CleanupScheduler {
	return &CleanupScheduler{cron: c, expr: expr, janitor: janitor}
}

// Schedule sweeps once immediately, then on every cron tick until ctx ends.
func (s *CleanupScheduler) Schedule(ctx context.Context) error {
	s.sweep(ctx)
	_, err := s.cron.AddFunc(s.expr, func() { s.sweep(ctx) })
	return err
}

func (s *CleanupScheduler) sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.janitor.Sweep(ctx); err != nil {
		log.Warn("Cleanup sweep: %v", err)
	}
}
