package telemetry

import (
	"context"
	"io"

	"go.nozem.dev/nozem/internal/core/ports"
)

// NoOp implements ports.Telemetry by discarding everything, used when the
// NOZEM_QUIET environment variable is set and in tests that don't care about
// progress reporting.
type NoOp struct{}

var _ ports.Telemetry = NoOp{}

// NewNoOp creates a NoOp telemetry sink.
func NewNoOp() NoOp { return NoOp{} }

// Vertex implements ports.Telemetry.
func (NoOp) Vertex(_ context.Context, _, _ string) ports.Vertex { return noOpVertex{} }

type noOpVertex struct{}

var _ ports.Vertex = noOpVertex{}

func (noOpVertex) Stdout() io.Writer { return io.Discard }
func (noOpVertex) Stderr() io.Writer { return io.Discard }
func (noOpVertex) Done(_ error)      {}
func (noOpVertex) Cached()           {}
