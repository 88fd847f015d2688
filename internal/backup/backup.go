// Package backup writes timestamped full snapshots of the user store.
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	st "stash-bot/internal/storagetypes"
)

const (
	timestampLayout = "20060102_150405"
	partialSuffix   = ".partial"
	checkEvery      = time.Minute
)

// Source provides a consistent point-in-time copy of the store.
type Source interface {
	Name() string
	Snapshot(ctx context.Context) ([]st.Entry, error)
}

// Writer materializes entries into a snapshot file at path.
type Writer interface {
	Write(ctx context.Context, path string, entries []st.Entry) error
}

// Uploader mirrors a committed snapshot somewhere else.
type Uploader interface {
	Upload(ctx context.Context, path string) error
}

// Observer is told about every backup attempt.
type Observer interface {
	ObserveBackup(trigger string, err error)
}

type Options struct {
	Dir      string
	Interval time.Duration
	Writer   Writer
	Mirror   Uploader
	Observer Observer
	Now      func() time.Time
}

// Scheduler performs periodic and forced backups. Attempts never overlap.
type Scheduler struct {
	src      Source
	dir      string
	interval time.Duration
	writer   Writer
	mirror   Uploader
	observer Observer
	now      func() time.Time

	mu         sync.Mutex
	lastBackup time.Time
}

func NewScheduler(src Source, opts Options) *Scheduler {
	if opts.Dir == "" {
		opts.Dir = "backups"
	}
	if opts.Writer == nil {
		opts.Writer = SQLiteWriter{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scheduler{
		src:        src,
		dir:        opts.Dir,
		interval:   opts.Interval,
		writer:     opts.Writer,
		mirror:     opts.Mirror,
		observer:   opts.Observer,
		now:        opts.Now,
		lastBackup: opts.Now(),
	}
}

// LastBackup returns the time of the last successful periodic backup (or construction time).
func (s *Scheduler) LastBackup() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastBackup
}

// MaybeBackup writes a snapshot when at least the interval has passed since the last
// successful one. lastBackup only moves forward on success.
func (s *Scheduler) MaybeBackup(ctx context.Context, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastBackup) < s.interval {
		return false, nil
	}

	path, err := s.writeLocked(ctx)
	s.observe("periodic", err)
	if err != nil {
		return false, err
	}

	s.lastBackup = now
	log.Info().Str("path", path).Msg("Periodic backup created")
	return true, nil
}

// ForceBackup writes a snapshot regardless of the interval and returns its path.
// On failure no snapshot file is left behind.
func (s *Scheduler) ForceBackup(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.writeLocked(ctx)
	s.observe("manual", err)
	if err != nil {
		return "", err
	}

	log.Info().Str("path", path).Msg("Manual backup created")
	return path, nil
}

// Run checks every minute whether a periodic backup is due until ctx is done.
// Failures are logged and retried on the next check.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.CleanPartial(); err != nil {
		log.Warn().Err(err).Msg("Failed to remove stale partial backups")
	}

	ticker := time.NewTicker(checkEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.MaybeBackup(ctx, s.now()); err != nil {
				log.Error().Err(err).Msg("Periodic backup failed")
			}
		}
	}
}

// CleanPartial removes snapshot files left over from an interrupted write.
func (s *Scheduler) CleanPartial() error {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*"+partialSuffix+"*"))
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func (s *Scheduler) writeLocked(ctx context.Context) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("backup: creating dir: %w", err)
	}

	entries, err := s.src.Snapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("backup: snapshot: %w", err)
	}

	final := s.nextPath()
	tmp := final + partialSuffix

	if err := s.writer.Write(ctx, tmp, entries); err != nil {
		removePartial(tmp)
		return "", fmt.Errorf("backup: write: %w", err)
	}

	if err := os.Rename(tmp, final); err != nil {
		removePartial(tmp)
		return "", fmt.Errorf("backup: commit: %w", err)
	}

	if s.mirror != nil {
		if err := s.mirror.Upload(ctx, final); err != nil {
			log.Error().Err(err).Str("path", final).Msg("Failed to mirror backup")
		}
	}

	return final, nil
}

// nextPath names the snapshot after the store and the current time, adding a counter
// when a snapshot with the same second already exists.
func (s *Scheduler) nextPath() string {
	stamp := s.now().Format(timestampLayout)
	base := filepath.Join(s.dir, fmt.Sprintf("%s_backup_%s", s.src.Name(), stamp))

	path := base + ".sqlite"
	for i := 1; fileExists(path); i++ {
		path = fmt.Sprintf("%s_%d.sqlite", base, i)
	}
	return path
}

func (s *Scheduler) observe(trigger string, err error) {
	if s.observer != nil {
		s.observer.ObserveBackup(trigger, err)
	}
}

func removePartial(path string) {
	for _, p := range []string{path, path + "-journal", path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			log.Error().Err(err).Str("path", p).Msg("Failed to remove partial backup")
		}
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
