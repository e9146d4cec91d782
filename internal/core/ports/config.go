package ports

import "go.nozem.dev/nozem/internal/core/domain"

// UnitLoader reads a monorepo's nozem.json unit definitions (and, if
// present, the additive-only nozem.local.yaml override layer) rooted at dir
// and returns a validated Graph.
//
//go:generate go run go.uber.org/mock/mockgen -source=config.go -destination=mocks/mock_config.go -package=mocks
type UnitLoader interface {
	Load(dir string) (*domain.Graph, error)
}
