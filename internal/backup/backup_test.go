package backup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stash-bot/internal/storage"
	st "stash-bot/internal/storagetypes"
)

type fakeSource struct {
	entries []st.Entry
	err     error
}

func (f *fakeSource) Name() string { return "stash" }
func (f *fakeSource) Snapshot(context.Context) ([]st.Entry, error) {
	return f.entries, f.err
}

// brokenWriter writes some bytes and then fails, like a disk filling up mid-write.
type brokenWriter struct{}

func (brokenWriter) Write(_ context.Context, path string, _ []st.Entry) error {
	if err := os.WriteFile(path, []byte("SQLite format 3\x00partial"), 0o644); err != nil {
		return err
	}
	return errors.New("disk full")
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingObserver) ObserveBackup(trigger string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.calls = append(r.calls, trigger+":"+status)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func readSnapshot(t *testing.T, path string) []st.Entry {
	t.Helper()
	db, err := storage.Open(path)
	require.NoError(t, err)
	defer db.Close()

	rows, err := db.Query(`SELECT user_id, key, value, created_at, updated_at FROM entries`)
	require.NoError(t, err)
	defer rows.Close()

	var out []st.Entry
	for rows.Next() {
		var e st.Entry
		require.NoError(t, rows.Scan(&e.UserID, &e.Key, &e.Value, &e.CreatedAt, &e.UpdatedAt))
		out = append(out, e)
	}
	require.NoError(t, rows.Err())
	return out
}

func TestForceBackup_MatchesLiveStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := storage.New(filepath.Join(dir, "stash.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Add(ctx, 1, "a", "alpha", false))
	require.NoError(t, store.Add(ctx, 2, "b", "beta\nwith newline", false))
	require.NoError(t, store.Add(ctx, 2, "b", "beta again", true))

	obs := &recordingObserver{}
	s := NewScheduler(store, Options{Dir: filepath.Join(dir, "backups"), Observer: obs,
		Now: fixedClock(time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC))})

	path, err := s.ForceBackup(ctx)
	require.NoError(t, err)
	assert.Equal(t, "stash_backup_20240506_070809.sqlite", filepath.Base(path))

	live, err := store.Snapshot(ctx)
	require.NoError(t, err)
	snap := readSnapshot(t, path)
	require.Len(t, snap, len(live))
	byKey := make(map[string]st.Entry)
	for _, e := range snap {
		byKey[e.Key] = e
	}
	for _, want := range live {
		got := byKey[want.Key]
		assert.Equal(t, want.UserID, got.UserID)
		assert.Equal(t, want.Value, got.Value)
		// timestamps are copied from the live store, not stamped at backup time
		assert.True(t, want.CreatedAt.Equal(got.CreatedAt), want.Key)
		assert.True(t, want.UpdatedAt.Equal(got.UpdatedAt), want.Key)
		assert.False(t, got.CreatedAt.IsZero())
	}
	assert.Equal(t, []string{"manual:ok"}, obs.calls)
}

func TestForceBackup_FailureLeavesNoArtifact(t *testing.T) {
	dir := t.TempDir()
	obs := &recordingObserver{}
	s := NewScheduler(&fakeSource{entries: []st.Entry{{UserID: 1, Key: "k", Value: "v"}}},
		Options{Dir: dir, Writer: brokenWriter{}, Observer: obs})

	path, err := s.ForceBackup(context.Background())
	require.Error(t, err)
	assert.Empty(t, path)

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, files)
	assert.Equal(t, []string{"manual:error"}, obs.calls)
}

func TestForceBackup_SnapshotErrorWritesNothing(t *testing.T) {
	dir := t.TempDir()
	s := NewScheduler(&fakeSource{err: errors.New("db gone")}, Options{Dir: dir})

	_, err := s.ForceBackup(context.Background())
	require.Error(t, err)

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestForceBackup_SameSecondGetsDistinctNames(t *testing.T) {
	dir := t.TempDir()
	s := NewScheduler(&fakeSource{}, Options{Dir: dir, Now: fixedClock(time.Unix(0, 0).UTC())})

	p1, err := s.ForceBackup(context.Background())
	require.NoError(t, err)
	p2, err := s.ForceBackup(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, p1, p2)
	assert.True(t, strings.HasSuffix(p2, "_1.sqlite"))
}

func TestMaybeBackup_Interval(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewScheduler(&fakeSource{}, Options{Dir: t.TempDir(), Interval: time.Hour, Now: fixedClock(start)})

	done, err := s.MaybeBackup(ctx, start.Add(30*time.Minute))
	require.NoError(t, err)
	assert.False(t, done)

	done, err = s.MaybeBackup(ctx, start.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, start.Add(time.Hour), s.LastBackup())
}

func TestMaybeBackup_FailureKeepsLastBackup(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewScheduler(&fakeSource{}, Options{Dir: t.TempDir(), Interval: time.Hour,
		Writer: brokenWriter{}, Now: fixedClock(start)})

	done, err := s.MaybeBackup(ctx, start.Add(2*time.Hour))
	require.Error(t, err)
	assert.False(t, done)
	assert.Equal(t, start, s.LastBackup())
}

func TestCleanPartial(t *testing.T) {
	dir := t.TempDir()
	partial := filepath.Join(dir, "stash_backup_x.sqlite.partial")
	keep := filepath.Join(dir, "stash_backup_y.sqlite")
	require.NoError(t, os.WriteFile(partial, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(keep, []byte("y"), 0o644))

	s := NewScheduler(&fakeSource{}, Options{Dir: dir})
	require.NoError(t, s.CleanPartial())

	assert.NoFileExists(t, partial)
	assert.FileExists(t, keep)
}

type fakeS3 struct {
	keys []string
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.keys = append(f.keys, *in.Bucket+"/"+*in.Key)
	return &s3.PutObjectOutput{}, nil
}

func TestForceBackup_Mirrors(t *testing.T) {
	client := &fakeS3{}
	s := NewScheduler(&fakeSource{}, Options{Dir: t.TempDir(), Mirror: newS3Uploader(client, "bucket", "snapshots"),
		Now: fixedClock(time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC))})

	_, err := s.ForceBackup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"bucket/snapshots/stash_backup_20240506_070809.sqlite"}, client.keys)
}
