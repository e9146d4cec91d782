package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.nozem.dev/nozem/internal/adapters/telemetry"
)

func TestRecorder_VertexStdoutStderrDoneAndCached(t *testing.T) {
	rec := telemetry.New()
	ctx := context.Background()

	v := rec.Vertex(ctx, "@acme/core", "build @acme/core")
	_, err := v.Stdout().Write([]byte("building...\n"))
	require.NoError(t, err)
	_, err = v.Stderr().Write([]byte("a warning\n"))
	require.NoError(t, err)

	v.Done(nil)
	require.NoError(t, rec.Close())
}

func TestRecorder_VertexDoneRecordsFailure(t *testing.T) {
	rec := telemetry.New()
	v := rec.Vertex(context.Background(), "@acme/app", "build @acme/app")
	v.Done(errors.New("build failed"))
	require.NoError(t, rec.Close())
}

func TestRecorder_VertexCachedDoesNotPanic(t *testing.T) {
	rec := telemetry.New()
	v := rec.Vertex(context.Background(), "@acme/core", "build @acme/core")
	assert.NotPanics(t, func() { v.Cached() })
}

func TestNoOp_DiscardsEverything(t *testing.T) {
	sink := telemetry.NewNoOp()
	v := sink.Vertex(context.Background(), "x", "build x")

	n, err := v.Stdout().Write([]byte("ignored"))
	require.NoError(t, err)
	assert.Equal(t, len("ignored"), n)

	assert.NotPanics(t, func() {
		v.Done(errors.New("boom"))
		v.Cached()
	})
}
