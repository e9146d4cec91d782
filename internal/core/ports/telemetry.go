package ports

import (
	"context"
	"io"
)

// Telemetry emits build-vertex progress events, backed by progrock. The
// builder opens one Vertex per unit it builds and closes it with the
// outcome; the scheduler opens a Vertex only for a unit that never became
// buildable, and closes it at once with an error naming its blockers.
//
//go:generate go run go.uber.org/mock/mockgen -source=telemetry.go -destination=mocks/mock_telemetry.go -package=mocks
type Telemetry interface {
	Vertex(ctx context.Context, id, name string) Vertex
}

// Vertex is a single build-graph node's progress handle: a started unit
// build, closed exactly once with its outcome.
type Vertex interface {
	// Stdout and Stderr are where the unit's sandboxed command output should
	// be streamed so a consumer (the progrock UI, or a headless log sink)
	// can show it live.
	Stdout() io.Writer
	Stderr() io.Writer
	// Done closes the vertex, recording success or the causing error.
	Done(err error)
	// Cached marks the vertex as satisfied from a cache tier rather than run.
	Cached()
}
