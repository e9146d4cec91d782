// Package wiring registers every Graft node for the application. Importing
// it for side effects is what makes graft.ExecuteFor able to resolve
// *app.App from cmd/nozem/main.go.
package wiring

import (
	// Register adapter nodes.
	_ "go.nozem.dev/nozem/internal/adapters/cache"
	_ "go.nozem.dev/nozem/internal/adapters/config"
	_ "go.nozem.dev/nozem/internal/adapters/fs"
	_ "go.nozem.dev/nozem/internal/adapters/logger"
	_ "go.nozem.dev/nozem/internal/adapters/ostool"
	_ "go.nozem.dev/nozem/internal/adapters/sandbox"
	_ "go.nozem.dev/nozem/internal/adapters/shell"
	_ "go.nozem.dev/nozem/internal/adapters/telemetry"

	// Register the builder, the scheduler, and the app node that sits atop them.
	_ "go.nozem.dev/nozem/internal/app"
	_ "go.nozem.dev/nozem/internal/build"
	_ "go.nozem.dev/nozem/internal/engine/scheduler"
)
