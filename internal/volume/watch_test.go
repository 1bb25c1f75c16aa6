package volume

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatchDirSignalsOnFileCreate(t *testing.T) {
	dir := t.TempDir()
	w, err := WatchDir(dir)
	require.NoError(t, err)
	defer w.Close()

	go func() {
		time.Sleep(20 * time.Millisecond)
		os.WriteFile(filepath.Join(dir, "DISC_LABEL"), []byte("x"), 0644)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, w.WaitForVolume(ctx))
}

func TestWatchDirTimesOutWithNoEvent(t *testing.T) {
	dir := t.TempDir()
	w, err := WatchDir(dir)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = w.WaitForVolume(ctx)
	require.Error(t, err)
}
