package telemetry

import (
	"io"

	"github.com/vito/progrock"
	"go.nozem.dev/nozem/internal/core/ports"
)

// Vertex implements ports.Vertex wrapping a *progrock.VertexRecorder.
type Vertex struct {
	vertex *progrock.VertexRecorder
}

var _ ports.Vertex = (*Vertex)(nil)

// Stdout implements ports.Vertex.
func (v *Vertex) Stdout() io.Writer { return v.vertex.Stdout() }

// Stderr implements ports.Vertex.
func (v *Vertex) Stderr() io.Writer { return v.vertex.Stderr() }

// Done implements ports.Vertex.
func (v *Vertex) Done(err error) { v.vertex.Done(err) }

// Cached implements ports.Vertex.
func (v *Vertex) Cached() { v.vertex.Cached() }
