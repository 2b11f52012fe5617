package project

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectWithoutMarker(t *testing.T) {
	dir := t.TempDir()
	p, err := Detect(dir)
	require.NoError(t, err)
	assert.False(t, p.HasMarker)
	assert.Equal(t, filepath.Base(dir), p.Name)
}

func TestDetectWithMarker(t *testing.T) {
	dir := t.TempDir()
	marker := `name "Demo"
main-scene "res://scenes/main.scene"
version "0.3"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, MarkerFile), []byte(marker), 0o644))

	p, err := Detect(dir)
	require.NoError(t, err)
	assert.True(t, p.HasMarker)
	assert.Equal(t, "Demo", p.Name)
	assert.Equal(t, "res://scenes/main.scene", p.MainScene)
	assert.Equal(t, "0.3", p.Version)
}

func TestDetectErrors(t *testing.T) {
	_, err := Detect(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	f := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(f, nil, 0o644))
	_, err = Detect(f)
	assert.ErrorIs(t, err, os.ErrInvalid)
}

func TestAbs(t *testing.T) {
	dir := t.TempDir()
	p, err := Detect(dir)
	require.NoError(t, err)

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"res://scenes/main.scene", filepath.Join(p.Path, "scenes", "main.scene"), false},
		{"scenes/main.scene", filepath.Join(p.Path, "scenes", "main.scene"), false},
		{"res://a/../b.scene", filepath.Join(p.Path, "b.scene"), false},
		{filepath.Join(p.Path, "x.scene"), filepath.Join(p.Path, "x.scene"), false},
		{"res://../escape.scene", "", true},
		{"../../etc/passwd", "", true},
		{"res://", "", true},
		{"/etc/passwd", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := p.Abs(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrOutsideProject)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, mustAbs(t, p, p.Res(got)))
		})
	}
}

func mustAbs(t *testing.T, p *Project, res string) string {
	t.Helper()
	abs, err := p.Abs(res)
	require.NoError(t, err)
	return abs
}

func TestFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "scenes"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".snapshots"), 0o755))
	for _, f := range []string{"scenes/b.scene", "scenes/a.scene", "readme.txt", ".snapshots/x.scene"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), nil, 0o644))
	}
	p, err := Detect(dir)
	require.NoError(t, err)

	files, err := p.Files(".scene")
	require.NoError(t, err)
	assert.Equal(t, []string{"res://scenes/a.scene", "res://scenes/b.scene"}, files)
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	p, err := Detect(dir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := make(chan Change, 16)
	done := make(chan error, 1)
	go func() { done <- p.Watch(ctx, changes, slog.New(slog.NewTextHandler(io.Discard, nil))) }()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.scene"), []byte("x"), 0o644))

	select {
	case c := <-changes:
		assert.Equal(t, "res://main.scene", c.Path)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
