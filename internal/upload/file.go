package upload

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var (
	// ErrNotAudio is returned for files whose content is not audio.
	ErrNotAudio = errors.New("file is not an audio recording")
	// ErrTooLarge is returned for files above the configured size limit.
	ErrTooLarge = errors.New("file exceeds the upload size limit")
	// ErrEmptyFile is returned for zero-length files.
	ErrEmptyFile = errors.New("file is empty")
)

// File is a local recording ready to be uploaded.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader

	closer io.Closer
}

// OpenFile opens path and checks it is an audio file no larger than
// maxBytes. A maxBytes of 0 disables the size check. The content type is
// sniffed from the file header, not taken from the extension.
func OpenFile(path string, maxBytes int64) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	file, err := inspect(f, filepath.Base(path), maxBytes)
	if err != nil {
		f.Close()
		return nil, err
	}

	return file, nil
}

func inspect(f *os.File, name string, maxBytes int64) (*File, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", name, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", name)
	}

	size := info.Size()
	if size == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrEmptyFile)
	}
	if maxBytes > 0 && size > maxBytes {
		return nil, fmt.Errorf("%s is %d bytes, limit %d: %w", name, size, maxBytes, ErrTooLarge)
	}

	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to detect type of %s: %w", name, err)
	}
	if !isAudio(mtype) {
		return nil, fmt.Errorf("%s has type %s: %w", name, mtype.String(), ErrNotAudio)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind %s: %w", name, err)
	}

	return &File{
		Name:        name,
		ContentType: mtype.String(),
		Size:        size,
		Body:        f,
		closer:      f,
	}, nil
}

func isAudio(mtype *mimetype.MIME) bool {
	for m := mtype; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "audio/") {
			return true
		}
	}

	return false
}

// Close releases the underlying file.
func (f *File) Close() error {
	if f.closer == nil {
		return nil
	}

	return f.closer.Close()
}
