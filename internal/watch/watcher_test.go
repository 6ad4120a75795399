package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	batches [][]string
}

func (r *recorder) record(files []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, files)
	return nil
}

func (r *recorder) snapshot() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.batches...)
}

func TestWatcher_ReportsWatchedFile(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "model.yaml")
	other := filepath.Join(dir, "other.yaml")
	require.NoError(t, os.WriteFile(model, []byte("elements: []\n"), 0o644))

	rec := &recorder{}
	w, err := New([]string{model}, rec.record, WithDelay(20*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(other, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(model, []byte("elements: []\n# edited\n"), 0o644))

	require.Eventually(t, func() bool { return len(rec.snapshot()) > 0 }, 2*time.Second, 10*time.Millisecond)
	for _, batch := range rec.snapshot() {
		assert.Equal(t, []string{model}, batch)
	}
}

func TestWatcher_Run(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "model.yaml")
	require.NoError(t, os.WriteFile(model, nil, 0o644))

	w, err := New([]string{model}, func([]string) error { return nil })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.NoError(t, w.Stop(), "second stop is a no-op")
}

func TestWatcher_NoFiles(t *testing.T) {
	_, err := New(nil, func([]string) error { return nil })
	require.Error(t, err)
}

func TestDebouncer(t *testing.T) {
	t.Run("collapses duplicates", func(t *testing.T) {
		rec := &recorder{}
		d := NewDebouncer(30 * time.Millisecond)
		d.SetCallback(func(f []string) { rec.record(f) })

		d.Add("b.yaml")
		d.Add("a.yaml")
		d.Add("b.yaml")

		require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
		assert.Equal(t, []string{"a.yaml", "b.yaml"}, rec.snapshot()[0])
	})

	t.Run("separate batches", func(t *testing.T) {
		rec := &recorder{}
		d := NewDebouncer(10 * time.Millisecond)
		d.SetCallback(func(f []string) { rec.record(f) })

		d.Add("a.yaml")
		require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
		d.Add("b.yaml")
		require.Eventually(t, func() bool { return len(rec.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
		assert.Equal(t, [][]string{{"a.yaml"}, {"b.yaml"}}, rec.snapshot())
	})

	t.Run("stop drops pending", func(t *testing.T) {
		rec := &recorder{}
		d := NewDebouncer(20 * time.Millisecond)
		d.SetCallback(func(f []string) { rec.record(f) })

		d.Add("a.yaml")
		d.Stop()
		d.Add("b.yaml")

		time.Sleep(60 * time.Millisecond)
		assert.Empty(t, rec.snapshot())
	})
}
