// Package lifecycle tracks generated artifacts as expiring temporary files:
// an in-memory registry guarded by a mutex, a periodic sweep that evicts
// expired entries, and a filesystem watcher that reconciles externally
// deleted files.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	derrors "git.home.luguber.info/inful/docgen/internal/errors"
	"git.home.luguber.info/inful/docgen/internal/logfields"
	"git.home.luguber.info/inful/docgen/internal/metrics"
)

// Artifact is a generated output file tracked with an expiration time. The
// backing file is owned by the manager from registration until eviction.
type Artifact struct {
	ID         string    `json:"id"`
	FileName   string    `json:"file_name"`
	Path       string    `json:"-"`
	SizeBytes  int64     `json:"size_bytes"`
	Format     string    `json:"format"`
	TemplateID string    `json:"template_id"`
	CreatedBy  string    `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Manager owns the artifact registry. Start/Stop bound the sweep scheduler
// and the directory watcher to the service lifecycle.
type Manager struct {
	mu        sync.Mutex
	artifacts map[string]*Artifact

	dir           string
	retention     time.Duration
	sweepInterval time.Duration

	scheduler gocron.Scheduler
	watcher   *fsnotify.Watcher
	watchDone chan struct{}

	recorder metrics.Recorder
	logger   *slog.Logger
	now      func() time.Time // injectable clock for expiry tests

	// onEvict, when set, observes every eviction after the registry entry
	// is already gone. Must not block.
	onEvict func(a *Artifact, reason metrics.EvictionReason)
}

// NewManager creates a lifecycle manager for artifacts under dir.
func NewManager(dir string, retention, sweepInterval time.Duration, recorder metrics.Recorder, logger *slog.Logger) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("ensure artifacts directory: %w", err)
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		artifacts:     make(map[string]*Artifact),
		dir:           dir,
		retention:     retention,
		sweepInterval: sweepInterval,
		recorder:      recorder,
		logger:        logger,
		now:           time.Now,
	}, nil
}

// OnEvict registers an eviction observer. Call before Start.
func (m *Manager) OnEvict(fn func(*Artifact, metrics.EvictionReason)) {
	m.onEvict = fn
}

func (m *Manager) notifyEvict(a *Artifact, reason metrics.EvictionReason) {
	if m.onEvict != nil {
		m.onEvict(a, reason)
	}
}

// Dir returns the directory the manager owns.
func (m *Manager) Dir() string { return m.dir }

// Retention returns the configured artifact time-to-live.
func (m *Manager) Retention() time.Duration { return m.retention }

// Start launches the periodic sweep and the directory watcher.
func (m *Manager) Start(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create sweep scheduler: %w", err)
	}
	if _, err := scheduler.NewJob(
		gocron.DurationJob(m.sweepInterval),
		gocron.NewTask(m.Sweep),
		gocron.WithName("artifact-sweep"),
	); err != nil {
		return fmt.Errorf("schedule artifact sweep: %w", err)
	}
	m.scheduler = scheduler
	scheduler.Start()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create artifact watcher: %w", err)
	}
	if err := watcher.Add(m.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch artifacts directory: %w", err)
	}
	m.watcher = watcher
	m.watchDone = make(chan struct{})
	go m.watch(ctx)

	m.logger.Info("Artifact lifecycle manager started",
		logfields.Path(m.dir),
		slog.Duration("retention", m.retention),
		slog.Duration("sweep_interval", m.sweepInterval))
	return nil
}

// Stop shuts down the sweep and watcher and purges all remaining artifacts.
func (m *Manager) Stop() error {
	var firstErr error
	if m.scheduler != nil {
		if err := m.scheduler.Shutdown(); err != nil {
			firstErr = err
		}
		m.scheduler = nil
	}
	if m.watcher != nil {
		if err := m.watcher.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		<-m.watchDone
		m.watcher = nil
	}

	m.mu.Lock()
	remaining := make([]*Artifact, 0, len(m.artifacts))
	for _, a := range m.artifacts {
		remaining = append(remaining, a)
	}
	m.artifacts = make(map[string]*Artifact)
	m.mu.Unlock()

	for _, a := range remaining {
		m.removeFile(a)
		m.recorder.IncEviction(metrics.EvictionShutdown)
		m.notifyEvict(a, metrics.EvictionShutdown)
	}
	m.recorder.SetActiveArtifacts(0)
	return firstErr
}

// Register tracks a generated file. The file must already exist at path;
// ownership passes to the manager.
func (m *Manager) Register(path, fileName, format, templateID, createdBy string, sizeBytes int64) *Artifact {
	now := m.now()
	a := &Artifact{
		ID:         uuid.NewString(),
		FileName:   fileName,
		Path:       path,
		SizeBytes:  sizeBytes,
		Format:     format,
		TemplateID: templateID,
		CreatedBy:  createdBy,
		CreatedAt:  now,
		ExpiresAt:  now.Add(m.retention),
	}

	m.mu.Lock()
	m.artifacts[a.ID] = a
	active := len(m.artifacts)
	m.mu.Unlock()

	m.recorder.SetActiveArtifacts(active)
	m.logger.Info("Artifact registered",
		logfields.ArtifactID(a.ID), logfields.File(fileName),
		slog.Time("expires_at", a.ExpiresAt))
	return a
}

// Get returns an unexpired artifact for download. An expired entry is
// evicted immediately and reported as expired; an unknown id is not found.
func (m *Manager) Get(id string) (*Artifact, error) {
	m.mu.Lock()
	a, ok := m.artifacts[id]
	if !ok {
		m.mu.Unlock()
		return nil, derrors.ArtifactNotFound(id)
	}
	if !m.now().Before(a.ExpiresAt) {
		delete(m.artifacts, id)
		active := len(m.artifacts)
		m.mu.Unlock()
		m.removeFile(a)
		m.recorder.IncEviction(metrics.EvictionExpired)
		m.recorder.SetActiveArtifacts(active)
		m.notifyEvict(a, metrics.EvictionExpired)
		return nil, derrors.ArtifactExpired(id)
	}
	m.mu.Unlock()
	return a, nil
}

// Evict removes an artifact explicitly (download-triggered cleanup). The
// registry entry goes first; file deletion failure is tolerated and caught
// by the next sweep at the latest.
func (m *Manager) Evict(id string, reason metrics.EvictionReason) {
	m.mu.Lock()
	a, ok := m.artifacts[id]
	if ok {
		delete(m.artifacts, id)
	}
	active := len(m.artifacts)
	m.mu.Unlock()

	if !ok {
		return
	}
	m.removeFile(a)
	m.recorder.IncEviction(reason)
	m.recorder.SetActiveArtifacts(active)
	m.notifyEvict(a, reason)
}

// Sweep evicts every expired artifact. Errors for one artifact never halt
// the sweep for the others.
func (m *Manager) Sweep() {
	now := m.now()

	m.mu.Lock()
	var expired []*Artifact
	for id, a := range m.artifacts {
		if !now.Before(a.ExpiresAt) {
			expired = append(expired, a)
			delete(m.artifacts, id)
		}
	}
	active := len(m.artifacts)
	m.mu.Unlock()

	for _, a := range expired {
		m.removeFile(a)
		m.recorder.IncEviction(metrics.EvictionExpired)
		m.notifyEvict(a, metrics.EvictionExpired)
		m.logger.Info("Swept expired artifact",
			logfields.ArtifactID(a.ID), logfields.File(a.FileName))
	}
	if len(expired) > 0 {
		m.recorder.SetActiveArtifacts(active)
	}
}

// Len returns the number of registered artifacts.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.artifacts)
}

// watch reconciles the registry when artifact files disappear from disk
// outside the manager's control.
func (m *Manager) watch(ctx context.Context) {
	defer close(m.watchDone)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			m.reconcileRemoved(event.Name)
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn("Artifact watcher error", logfields.Error(err))
		}
	}
}

func (m *Manager) reconcileRemoved(path string) {
	m.mu.Lock()
	var removed *Artifact
	for id, a := range m.artifacts {
		if filepath.Clean(a.Path) == filepath.Clean(path) {
			removed = a
			delete(m.artifacts, id)
			break
		}
	}
	active := len(m.artifacts)
	m.mu.Unlock()

	if removed == nil {
		return
	}
	m.recorder.IncEviction(metrics.EvictionExternal)
	m.recorder.SetActiveArtifacts(active)
	m.notifyEvict(removed, metrics.EvictionExternal)
	m.logger.Warn("Artifact file removed externally, registry entry evicted",
		logfields.ArtifactID(removed.ID), logfields.Path(path))
}

func (m *Manager) removeFile(a *Artifact) {
	if err := os.Remove(a.Path); err != nil && !os.IsNotExist(err) {
		m.logger.Warn("Could not delete artifact file",
			logfields.ArtifactID(a.ID), logfields.Path(a.Path), logfields.Error(err))
	}
}
