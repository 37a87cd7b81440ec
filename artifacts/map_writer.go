package artifacts

import (
	"errors"
	"io"
)

var ErrFileAlreadyExists = errors.New("file already exists")

// MapWriter is an in-memory ArtifactWriter used by tests. Contents are
// materialized at write time so callers can inspect them afterwards.
type MapWriter struct {
	files map[string][]byte
}

// NewMapWriter creates an artifact writer backed by a map.
func NewMapWriter() (*MapWriter, error) {
	return &MapWriter{
		files: map[string][]byte{},
	}, nil
}

// WriteFile stores contents under filename. Rewriting an artifact is an
// error so tests catch accidental double writes.
func (w *MapWriter) WriteFile(filename string, contents io.Reader) (string, error) {
	if _, exists := w.files[filename]; exists {
		return "", ErrFileAlreadyExists
	}

	data, err := io.ReadAll(contents)
	if err != nil {
		return "", err
	}

	w.files[filename] = data
	return filename, nil
}

// Contents returns the stored artifact, or nil if it was never written.
func (w *MapWriter) Contents(filename string) []byte {
	return w.files[filename]
}
