package verification

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"sync"
)

// FileScanner reads frames from image files, in order. It stands in for a
// camera when a holder uploads a picture of their QR code.
type FileScanner struct {
	Paths  []string
	Logger *slog.Logger
}

func (s FileScanner) Open(_ context.Context) (FrameSource, error) {
	if len(s.Paths) == 0 {
		return nil, fmt.Errorf("no image files given")
	}
	for _, p := range s.Paths {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("image file: %w", err)
		}
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &fileFrames{paths: s.Paths, logger: logger, done: make(chan struct{})}, nil
}

type fileFrames struct {
	paths  []string
	logger *slog.Logger
	done   chan struct{}
	once   sync.Once
}

func (f *fileFrames) Frames(ctx context.Context) <-chan image.Image {
	out := make(chan image.Image)
	go func() {
		defer close(out)
		for _, p := range f.paths {
			img, err := decodeFile(p)
			if err != nil {
				f.logger.WarnContext(ctx, "skipping unreadable image", "path", p, "error", err)
				continue
			}
			select {
			case out <- img:
			case <-f.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (f *fileFrames) Close() error {
	f.once.Do(func() { close(f.done) })
	return nil
}

func decodeFile(path string) (image.Image, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	img, _, err := image.Decode(fh)
	return img, err
}
