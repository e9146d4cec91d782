// Package telemetry implements ports.Telemetry on top of
// github.com/vito/progrock, one vertex per scheduled unit build.
package telemetry

import (
	"context"

	"github.com/opencontainers/go-digest"
	"github.com/vito/progrock"
	"go.nozem.dev/nozem/internal/core/ports"
)

// Recorder implements ports.Telemetry using a progrock.Recorder.
type Recorder struct {
	w   progrock.Writer
	rec *progrock.Recorder
}

var _ ports.Telemetry = (*Recorder)(nil)

// New creates a Recorder backed by a fresh in-memory progrock tape.
func New() *Recorder {
	return NewRecorder(progrock.NewTape())
}

// NewRecorder creates a Recorder writing vertices to w.
func NewRecorder(w progrock.Writer) *Recorder {
	return &Recorder{w: w, rec: progrock.NewRecorder(w)}
}

// Vertex implements ports.Telemetry. id seeds the vertex's digest so the
// same unit identifier produces a stable vertex across a run even when the
// scheduler retries it.
func (r *Recorder) Vertex(_ context.Context, id, name string) ports.Vertex {
	d := digest.FromString(id)
	return &Vertex{vertex: r.rec.Vertex(d, name)}
}

// Close flushes and closes the underlying writer, if it supports it.
func (r *Recorder) Close() error {
	if c, ok := r.w.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
