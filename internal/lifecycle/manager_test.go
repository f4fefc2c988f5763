package lifecycle

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "git.home.luguber.info/inful/docgen/internal/errors"
	"git.home.luguber.info/inful/docgen/internal/metrics"
)

func newTestManager(t *testing.T, retention time.Duration) *Manager {
	t.Helper()
	m, err := NewManager(t.TempDir(), retention, time.Minute, nil, nil)
	require.NoError(t, err)
	return m
}

func registerFile(t *testing.T, m *Manager, name string) *Artifact {
	t.Helper()
	path := filepath.Join(m.Dir(), name)
	require.NoError(t, os.WriteFile(path, []byte("artifact bytes"), 0o600))
	return m.Register(path, name, "original", "tpl-1", "tester", 14)
}

func TestRegisterAndGet(t *testing.T) {
	m := newTestManager(t, time.Hour)
	a := registerFile(t, m, "out.docx")

	got, err := m.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, "out.docx", got.FileName)
	assert.Equal(t, int64(14), got.SizeBytes)
	assert.True(t, got.ExpiresAt.After(got.CreatedAt))

	// Multiple downloads while unexpired are allowed.
	_, err = m.Get(a.ID)
	assert.NoError(t, err)
}

func TestGetUnknownID(t *testing.T) {
	m := newTestManager(t, time.Hour)
	_, err := m.Get("never-registered")
	assert.True(t, derrors.IsKind(err, derrors.KindArtifactNotFound), "err = %v", err)
}

func TestGetExpiredEvictsImmediately(t *testing.T) {
	m := newTestManager(t, time.Hour)
	a := registerFile(t, m, "out.docx")

	// Advance the clock past expiry.
	m.now = func() time.Time { return a.ExpiresAt }

	_, err := m.Get(a.ID)
	require.True(t, derrors.IsKind(err, derrors.KindArtifactExpired), "err = %v", err)

	// Registry no longer contains the id: a second call reports not-found.
	_, err = m.Get(a.ID)
	assert.True(t, derrors.IsKind(err, derrors.KindArtifactNotFound), "err = %v", err)

	_, statErr := os.Stat(a.Path)
	assert.True(t, os.IsNotExist(statErr), "backing file must be deleted on eviction")
}

func TestDownloadJustBeforeExpirySucceeds(t *testing.T) {
	m := newTestManager(t, time.Hour)
	a := registerFile(t, m, "out.docx")
	m.now = func() time.Time { return a.ExpiresAt.Add(-time.Nanosecond) }

	_, err := m.Get(a.ID)
	assert.NoError(t, err)
}

func TestSweepEvictsOnlyExpired(t *testing.T) {
	m := newTestManager(t, time.Hour)
	expired := registerFile(t, m, "old.docx")
	fresh := registerFile(t, m, "fresh.docx")

	m.now = func() time.Time { return expired.ExpiresAt }
	// Both artifacts share the retention window; pin the fresh one further out.
	m.mu.Lock()
	m.artifacts[fresh.ID].ExpiresAt = expired.ExpiresAt.Add(time.Hour)
	m.mu.Unlock()

	m.Sweep()

	assert.Equal(t, 1, m.Len())
	_, err := m.Get(fresh.ID)
	assert.NoError(t, err)
	_, statErr := os.Stat(expired.Path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestSweepContinuesPastDeletionFailure(t *testing.T) {
	m := newTestManager(t, time.Hour)
	gone := registerFile(t, m, "gone.docx")
	other := registerFile(t, m, "other.docx")
	require.NoError(t, os.Remove(gone.Path)) // file vanishes out of band

	m.now = func() time.Time { return gone.ExpiresAt.Add(time.Hour) }
	m.Sweep()

	assert.Equal(t, 0, m.Len(), "sweep must evict all expired entries even when one file is missing")
	_, statErr := os.Stat(other.Path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestEvictRemovesEntryAndFile(t *testing.T) {
	m := newTestManager(t, time.Hour)
	a := registerFile(t, m, "out.docx")

	m.Evict(a.ID, metrics.EvictionDownloaded)

	_, err := m.Get(a.ID)
	assert.True(t, derrors.IsKind(err, derrors.KindArtifactNotFound))
	_, statErr := os.Stat(a.Path)
	assert.True(t, os.IsNotExist(statErr))

	// Evicting twice is harmless.
	m.Evict(a.ID, metrics.EvictionDownloaded)
}

func TestOnEvictObserverFires(t *testing.T) {
	m := newTestManager(t, time.Hour)
	var gotID string
	var gotReason metrics.EvictionReason
	m.OnEvict(func(a *Artifact, reason metrics.EvictionReason) {
		gotID = a.ID
		gotReason = reason
	})
	a := registerFile(t, m, "out.docx")

	m.Evict(a.ID, metrics.EvictionDownloaded)

	assert.Equal(t, a.ID, gotID)
	assert.Equal(t, metrics.EvictionDownloaded, gotReason)
}

func TestConcurrentRegistryAccess(t *testing.T) {
	m := newTestManager(t, time.Hour)

	var wg sync.WaitGroup
	ids := make([]string, 50)
	for i := range ids {
		ids[i] = registerFile(t, m, filepath.Base(t.Name())+string(rune('a'+i%26))+".docx").ID
	}
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, id := range ids {
				_, _ = m.Get(id)
			}
			m.Sweep()
		}()
	}
	wg.Wait()
	assert.Equal(t, len(ids), m.Len())
}

func TestStartStopLifecycle(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir, time.Hour, 10*time.Millisecond, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, m.Start(ctx))

	a := registerFile(t, m, "out.docx")
	require.NoError(t, m.Stop())

	assert.Equal(t, 0, m.Len(), "Stop must purge remaining artifacts")
	_, statErr := os.Stat(a.Path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestWatcherEvictsExternallyDeletedFile(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir, time.Hour, time.Hour, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, m.Start(ctx))
	defer func() { _ = m.Stop() }()

	a := registerFile(t, m, "out.docx")
	require.NoError(t, os.Remove(a.Path))

	// The watcher delivers asynchronously.
	deadline := time.Now().Add(2 * time.Second)
	for m.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, 0, m.Len(), "externally deleted file must evict the registry entry")
}
