package domain

// Artifact is the set of files produced by one unit's build (or fetched
// from a cache tier), plus the hash of that FileSet. A Unit owns its
// Artifact exclusively once produced; downstream units only ever look it up
// by identifier through the graph.
type Artifact struct {
	Files        *FileSet
	ArtifactHash string
}

// NewArtifact computes ArtifactHash from Files at construction time so the
// two can never drift apart.
func NewArtifact(files *FileSet) Artifact {
	return Artifact{Files: files, ArtifactHash: files.Hash()}
}
