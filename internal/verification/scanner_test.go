package verification

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credify/internal/qr"
)

func TestFileScannerYieldsFramesInOrder(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i, payload := range []string{"first", "second"} {
		png, err := qr.Encode(payload, qr.Options{})
		require.NoError(t, err)
		p := filepath.Join(dir, payload+".png")
		require.NoError(t, os.WriteFile(p, png, 0o600))
		paths = append(paths, p)
		if i == 0 {
			junk := filepath.Join(dir, "junk.png")
			require.NoError(t, os.WriteFile(junk, []byte("not an image"), 0o600))
			paths = append(paths, junk)
		}
	}

	src, err := FileScanner{Paths: paths}.Open(context.Background())
	require.NoError(t, err)
	defer src.Close()

	var got []string
	for img := range src.Frames(context.Background()) {
		text, err := qr.Decode(img)
		require.NoError(t, err)
		got = append(got, text)
	}
	assert.Equal(t, []string{"first", "second"}, got)
}

func TestFileScannerMissingFile(t *testing.T) {
	_, err := FileScanner{Paths: []string{filepath.Join(t.TempDir(), "missing.png")}}.Open(context.Background())
	require.Error(t, err)
}

func TestFileScannerCloseStopsFrames(t *testing.T) {
	png, err := qr.Encode("x", qr.Options{})
	require.NoError(t, err)
	p := filepath.Join(t.TempDir(), "x.png")
	require.NoError(t, os.WriteFile(p, png, 0o600))

	src, err := FileScanner{Paths: []string{p, p, p}}.Open(context.Background())
	require.NoError(t, err)
	frames := src.Frames(context.Background())
	<-frames
	require.NoError(t, src.Close())
	require.NoError(t, src.Close())
	for range frames {
	}
}
