// Package artifacts persists the files a push run leaves behind, such
// as digest files and the output report. The active writer travels in
// the context so any component can emit an artifact without the writer
// being threaded through every call.
package artifacts

import (
	"context"
	"io"
)

// DefaultArtifactsDir is the artifacts directory relative to the
// working directory when none is configured.
const DefaultArtifactsDir = "artifacts"

// ArtifactWriter persists one named artifact per call.
type ArtifactWriter interface {
	WriteFile(filename string, contents io.Reader) (fullpathToFile string, err error)
}

type contextKey string

const writerKey contextKey = "ArtifactWriter"

// ContextWithWriter stores w in ctx as the run's artifact writer.
func ContextWithWriter(ctx context.Context, w ArtifactWriter) context.Context {
	return context.WithValue(ctx, writerKey, w)
}

// WriterFromContext returns the stored writer, or nil when none is set.
func WriterFromContext(ctx context.Context) ArtifactWriter {
	if w, ok := ctx.Value(writerKey).(ArtifactWriter); ok {
		return w
	}
	return nil
}
