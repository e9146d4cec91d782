package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"go.nozem.dev/nozem/internal/core/domain"
	"go.nozem.dev/nozem/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// UnitFileName is nozem.json's filename, searched for at or above the
// loader's starting directory.
const UnitFileName = "nozem.json"

// LocalOverrideFileName is the optional, additive-only developer override
// layer merged on top of nozem.json.
const LocalOverrideFileName = "nozem.local.yaml"

// Loader implements ports.UnitLoader using nozem.json plus an optional
// nozem.local.yaml override layer, grounded on the teacher's
// findConfiguration/loadSamefile upward-search pattern.
type Loader struct {
	Logger ports.Logger
}

var _ ports.UnitLoader = (*Loader)(nil)

// NewLoader creates a Loader that logs warnings (missing override targets,
// etc.) through logger.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger}
}

// Load implements ports.UnitLoader.
func (l *Loader) Load(dir string) (*domain.Graph, error) {
	configPath, err := findUpward(dir, UnitFileName)
	if err != nil {
		return nil, err
	}

	var file unitFile
	if err := readAndUnmarshalJSON(configPath, &file); err != nil {
		return nil, err
	}

	root := filepath.Dir(configPath)

	overrides, err := l.loadLocalOverride(root)
	if err != nil {
		return nil, err
	}
	if err := checkOverrideTargets(file, overrides); err != nil {
		return nil, err
	}

	g := domain.NewGraph()
	for _, dto := range file.Units {
		unit, err := l.buildUnit(dto, overrides)
		if err != nil {
			return nil, err
		}
		if err := g.AddUnit(unit); err != nil {
			return nil, err
		}
	}

	if g.TaskCount() == 0 {
		return nil, domain.ErrEmptyGraph
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}

	return g, nil
}

// checkOverrideTargets rejects a nozem.local.yaml that names a unit
// nozem.json never declared: the override layer is additive-only (it may
// only adjust env/nonSources on an existing unit), never a place to
// introduce new units.
func checkOverrideTargets(file unitFile, overrides map[string]unitOverrideDTO) error {
	if len(overrides) == 0 {
		return nil
	}
	declared := make(map[string]struct{}, len(file.Units))
	for _, dto := range file.Units {
		declared[dto.Identifier] = struct{}{}
	}
	for name := range overrides {
		if _, ok := declared[name]; !ok {
			return zerr.With(domain.ErrUnknownOverrideUnit, "unit", name)
		}
	}
	return nil
}

func (l *Loader) buildUnit(dto unitDTO, overrides map[string]unitOverrideDTO) (domain.Unit, error) {
	kind, err := parseUnitKind(dto.Kind)
	if err != nil {
		return domain.Unit{}, zerr.With(err, "unit", dto.Identifier)
	}

	edges := make([]domain.DependencyEdge, 0, len(dto.Dependencies))
	for _, depDTO := range dto.Dependencies {
		edge, err := parseDependencyEdge(depDTO)
		if err != nil {
			return domain.Unit{}, zerr.With(err, "unit", dto.Identifier)
		}
		edges = append(edges, edge)
	}

	env := mergeEnv(dto.Env, overrides[dto.Identifier].Env)
	nonSources := append(append([]string{}, dto.NonSources...), overrides[dto.Identifier].NonSources...)

	return domain.Unit{
		Identifier:      domain.NewInternedString(dto.Identifier),
		Kind:            kind,
		Root:            dto.Root,
		NonSources:      nonSources,
		NonArtifacts:    dto.NonArtifacts,
		BuildCommand:    dto.BuildCommand,
		TestCommand:     dto.TestCommand,
		Dependencies:    edges,
		Env:             env,
		PatchTsconfig:   dto.PatchTsconfig,
		ExtractPatterns: dto.ExtractPatterns,
	}, nil
}

func parseUnitKind(kind string) (domain.UnitKind, error) {
	switch domain.UnitKind(kind) {
	case domain.UnitKindCommand, domain.UnitKindTypeScriptBuild, domain.UnitKindExtract:
		return domain.UnitKind(kind), nil
	default:
		return "", zerr.With(domain.ErrUnknownUnitKind, "kind", kind)
	}
}

func parseDependencyEdge(dto depDTO) (domain.DependencyEdge, error) {
	switch dto.Type {
	case "npm":
		return domain.ExternalNpmEdge{
			Name:             dto.Name,
			ResolvedLocation: dto.ResolvedLocation,
			VersionRange:     dto.VersionRange,
		}, nil
	case "link-npm":
		return domain.LinkNpmEdge{
			NodeID:             domain.NewInternedString(dto.Node),
			IncludeExecutables: dto.Executables,
		}, nil
	case "os":
		return domain.OsToolEdge{
			Executable: dto.Executable,
			RenameTo:   dto.Rename,
		}, nil
	case "copy":
		return domain.CopyEdge{
			NodeID: domain.NewInternedString(dto.Node),
			Subdir: dto.Subdir,
		}, nil
	default:
		return nil, zerr.With(domain.ErrUnknownDependencyKind, "type", dto.Type)
	}
}

func mergeEnv(base, overlay map[string]string) map[string]string {
	if len(base) == 0 && len(overlay) == 0 {
		return nil
	}
	merged := make(map[string]string, len(base)+len(overlay))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overlay {
		merged[k] = v
	}
	return merged
}

func (l *Loader) loadLocalOverride(root string) (map[string]unitOverrideDTO, error) {
	path := filepath.Join(root, LocalOverrideFileName)
	data, err := os.ReadFile(path) //nolint:gosec // path joined from the resolved config root
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, zerr.Wrap(err, domain.ErrConfigReadFailed.Error())
	}

	var override localOverride
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, zerr.Wrap(err, domain.ErrConfigParseFailed.Error())
	}

	if l.Logger != nil {
		for name := range override.Units {
			l.Logger.Debug("applying local override", "unit", name)
		}
	}

	return override.Units, nil
}

// findUpward searches dir and its ancestors for name, returning the first
// match's full path.
func findUpward(dir, name string) (string, error) {
	current := dir
	for {
		candidate := filepath.Join(current, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", zerr.With(domain.ErrConfigNotFound, "searched_from", dir)
		}
		current = parent
	}
}

func readAndUnmarshalJSON[T any](path string, target *T) error {
	data, err := os.ReadFile(path) //nolint:gosec // path resolved by findUpward's own os.Stat walk
	if err != nil {
		return zerr.Wrap(err, domain.ErrConfigReadFailed.Error())
	}
	if err := json.Unmarshal(data, target); err != nil {
		return zerr.Wrap(err, domain.ErrConfigParseFailed.Error())
	}
	return nil
}
