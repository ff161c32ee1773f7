package imaging

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

var ErrUnsupportedFormat = errors.New("unsupported image format")

// Formats lists the accepted file extensions.
var Formats = []string{"jpg", "jpeg", "png", "bmp", "tif", "tiff"}

// NormalizeFormat lowercases ext, strips a leading dot and checks it against Formats.
func NormalizeFormat(ext string) (string, error) {
	f := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedFormat, ext, strings.Join(Formats, ", "))
}

// Encode writes img to w. Quality (1-100) only affects JPEG; the other
// formats are lossless.
func Encode(w io.Writer, img image.Image, format string, quality int) error {
	if img == nil {
		return errors.New("nil image")
	}
	switch format {
	case "jpg", "jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestSpeed}
		return enc.Encode(w, img)
	case "bmp":
		return bmp.Encode(w, img)
	case "tif", "tiff":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// FileWriter encodes payloads and persists them to disk. It holds no
// mutable state, so consumers may share one instance.
type FileWriter struct {
	Format string
}

func NewFileWriter(format string) (*FileWriter, error) {
	f, err := NormalizeFormat(format)
	if err != nil {
		return nil, err
	}
	return &FileWriter{Format: f}, nil
}

// Persist encodes payload into path and returns the size of the written file.
// A partially written file is removed on failure.
func (fw *FileWriter) Persist(payload image.Image, path string, quality int) (n int64, err error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			os.Remove(path)
		}
	}()

	w := bufio.NewWriterSize(f, 1<<20)
	if err = Encode(w, payload, fw.Format, quality); err != nil {
		f.Close()
		return 0, fmt.Errorf("encode %s: %w", path, err)
	}
	if err = w.Flush(); err != nil {
		f.Close()
		return 0, err
	}
	if err = f.Close(); err != nil {
		return 0, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// EnsureDir creates dir if needed and fails if the path exists but is not a directory.
func EnsureDir(dir string) error {
	info, err := os.Stat(dir)
	switch {
	case err == nil && !info.IsDir():
		return fmt.Errorf("%s exists but is not a directory", dir)
	case err == nil:
		return nil
	case !errors.Is(err, os.ErrNotExist):
		return err
	}
	return os.MkdirAll(dir, 0o755)
}
