package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-o-holic/ai-toolkit-datasets/internal/dataset"
	"github.com/code-o-holic/ai-toolkit-datasets/internal/domain"
)

type fixedRoot string

func (r fixedRoot) DatasetsRoot() string { return string(r) }

type fakeGenerator struct {
	calls   atomic.Int64
	fn      func(imagePath string, cfg domain.CaptionConfig) (string, error)
	release chan struct{}
}

func (g *fakeGenerator) Generate(_ context.Context, imagePath string, cfg domain.CaptionConfig) (string, error) {
	g.calls.Add(1)
	if g.release != nil {
		<-g.release
	}
	if g.fn != nil {
		return g.fn(imagePath, cfg)
	}
	return "caption for " + filepath.Base(imagePath), nil
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.WarnLevel)
	return log
}

func makeDataset(t *testing.T, root, name string, files ...string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, f := range files {
		path := filepath.Join(dir, f)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("img"), 0o644))
	}
	return dir
}

func startRunning(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, dataset.WriteState(dir, domain.CaptionState{
		Status:   domain.CaptionStatusRunning,
		Provider: domain.ProviderOllama,
		Model:    "llava",
		Prompt:   "describe",
		BaseURL:  "http://127.0.0.1:11434",
	}))
}

func TestShoesScenario(t *testing.T) {
	root := t.TempDir()
	dir := makeDataset(t, root, "shoes", "a.jpg", "b.jpg")
	startRunning(t, dir)

	gen := &fakeGenerator{}
	c := NewCaptioner(fixedRoot(root), gen, "", time.Second, testLogger())

	c.Tick(context.Background())
	assert.FileExists(t, filepath.Join(dir, "a.txt"))
	state, ok := dataset.ReadState(dir)
	require.True(t, ok)
	assert.Equal(t, domain.CaptionStatusRunning, state.Status)
	assert.Equal(t, 1, state.Progress)
	assert.Equal(t, 2, state.Total)

	c.Tick(context.Background())
	assert.FileExists(t, filepath.Join(dir, "b.txt"))
	state, ok = dataset.ReadState(dir)
	require.True(t, ok)
	assert.Equal(t, 2, state.Progress)
	assert.Equal(t, 2, state.Total)

	c.Tick(context.Background())
	state, ok = dataset.ReadState(dir)
	require.True(t, ok)
	assert.Equal(t, domain.CaptionStatusCompleted, state.Status)
}

func TestCompletionConvergence(t *testing.T) {
	const n = 5

	root := t.TempDir()
	files := make([]string, 0, n)
	for i := 0; i < n; i++ {
		files = append(files, fmt.Sprintf("img%02d.jpg", i))
	}
	dir := makeDataset(t, root, "set", files...)
	startRunning(t, dir)

	c := NewCaptioner(fixedRoot(root), &fakeGenerator{}, "", time.Second, testLogger())

	for i := 0; i < n; i++ {
		c.Tick(context.Background())
	}

	state, ok := dataset.ReadState(dir)
	require.True(t, ok)
	assert.Equal(t, n, state.Progress)
	assert.Equal(t, n, state.Total)

	// One more tick finds nothing uncaptioned and completes the run.
	c.Tick(context.Background())
	state, _ = dataset.ReadState(dir)
	assert.Equal(t, domain.CaptionStatusCompleted, state.Status)
}

func TestOnePerTickAndEnumerationPriority(t *testing.T) {
	root := t.TempDir()
	dirA := makeDataset(t, root, "aaa", "1.jpg", "2.jpg")
	dirB := makeDataset(t, root, "bbb", "1.jpg")
	startRunning(t, dirA)
	startRunning(t, dirB)

	gen := &fakeGenerator{}
	c := NewCaptioner(fixedRoot(root), gen, "", time.Second, testLogger())

	// Earlier dataset wins every tick until it completes.
	c.Tick(context.Background())
	assert.EqualValues(t, 1, gen.calls.Load())
	assert.NoFileExists(t, filepath.Join(dirB, "1.txt"))

	c.Tick(context.Background())
	assert.NoFileExists(t, filepath.Join(dirB, "1.txt"))

	// aaa completes, and the same tick moves on to bbb's first file.
	c.Tick(context.Background())
	stateA, _ := dataset.ReadState(dirA)
	assert.Equal(t, domain.CaptionStatusCompleted, stateA.Status)
	assert.FileExists(t, filepath.Join(dirB, "1.txt"))
}

func TestGeneratorFailureLeavesFileForRetry(t *testing.T) {
	root := t.TempDir()
	dir := makeDataset(t, root, "set", "a.jpg")
	startRunning(t, dir)

	fail := true
	gen := &fakeGenerator{fn: func(string, domain.CaptionConfig) (string, error) {
		if fail {
			return "", errors.New("backend timeout")
		}
		return "a caption", nil
	}}
	c := NewCaptioner(fixedRoot(root), gen, "", time.Second, testLogger())

	c.Tick(context.Background())
	assert.NoFileExists(t, filepath.Join(dir, "a.txt"))
	state, ok := dataset.ReadState(dir)
	require.True(t, ok)
	assert.Equal(t, domain.CaptionStatusRunning, state.Status, "failure is per-file, never fatal")
	assert.Equal(t, 0, state.Progress)

	// Next tick re-selects the same file.
	fail = false
	c.Tick(context.Background())
	assert.FileExists(t, filepath.Join(dir, "a.txt"))
}

func TestUnknownProviderDoesNotWrite(t *testing.T) {
	root := t.TempDir()
	dir := makeDataset(t, root, "set", "a.jpg")
	require.NoError(t, dataset.WriteState(dir, domain.CaptionState{
		Status:   domain.CaptionStatusRunning,
		Provider: "mystery",
	}))

	gen := &fakeGenerator{fn: func(string, domain.CaptionConfig) (string, error) {
		return "", nil
	}}
	c := NewCaptioner(fixedRoot(root), gen, "", time.Second, testLogger())

	c.Tick(context.Background())
	assert.NoFileExists(t, filepath.Join(dir, "a.txt"))
}

func TestCancelTakesEffectNextTick(t *testing.T) {
	root := t.TempDir()
	dir := makeDataset(t, root, "set", "a.jpg", "b.jpg")
	startRunning(t, dir)

	gen := &fakeGenerator{}
	c := NewCaptioner(fixedRoot(root), gen, "", time.Second, testLogger())

	c.Tick(context.Background())
	require.NoError(t, dataset.DeleteState(dir))

	c.Tick(context.Background())
	assert.EqualValues(t, 1, gen.calls.Load(), "cancelled dataset is skipped")
	assert.NoFileExists(t, filepath.Join(dir, "b.txt"))
}

func TestIdleDatasetIgnored(t *testing.T) {
	root := t.TempDir()
	dir := makeDataset(t, root, "manual", "a.jpg")
	require.NoError(t, dataset.WriteState(dir, domain.CaptionState{Status: domain.CaptionStatusIdle}))

	gen := &fakeGenerator{}
	c := NewCaptioner(fixedRoot(root), gen, "", time.Second, testLogger())

	c.Tick(context.Background())
	assert.Zero(t, gen.calls.Load())
	assert.NoFileExists(t, filepath.Join(dir, "a.txt"))
}

func TestVideoFilesInvisibleToWorker(t *testing.T) {
	root := t.TempDir()
	dir := makeDataset(t, root, "clips", "a.mp4")
	startRunning(t, dir)

	gen := &fakeGenerator{}
	c := NewCaptioner(fixedRoot(root), gen, "", time.Second, testLogger())

	// The loop only recognizes images, so a video-only dataset completes
	// immediately without a backend call.
	c.Tick(context.Background())
	assert.Zero(t, gen.calls.Load())
	state, _ := dataset.ReadState(dir)
	assert.Equal(t, domain.CaptionStatusCompleted, state.Status)
}

func TestSingleFlightOverlappingTicks(t *testing.T) {
	root := t.TempDir()
	dir := makeDataset(t, root, "slow", "a.jpg")
	startRunning(t, dir)

	gen := &fakeGenerator{release: make(chan struct{})}
	c := NewCaptioner(fixedRoot(root), gen, "", 10*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Start(ctx)
		close(done)
	}()

	// Many ticker fires elapse while the first tick is stuck in the
	// backend call; every one of them must be a no-op.
	assert.Eventually(t, func() bool { return gen.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.EqualValues(t, 1, gen.calls.Load(), "overlapping ticks must not start work")
	assert.NoFileExists(t, filepath.Join(dir, "a.txt"), "overlapping ticks must not write")

	close(gen.release)
	assert.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, "a.txt"))
		return err == nil
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
