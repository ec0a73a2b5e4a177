// Package graph tracks the source artifacts a page depends on and computes
// the conservative invalidation set for each page.
package graph

import (
	"github.com/nitrosh/nitro-cli/internal/hashing"
)

// ArtifactKind classifies a source artifact.
type ArtifactKind string

const (
	// ArtifactPage is a page-defining source file.
	ArtifactPage ArtifactKind = "page"
	// ArtifactComponent is a shared component file.
	ArtifactComponent ArtifactKind = "component"
	// ArtifactData is a data file under the data root.
	ArtifactData ArtifactKind = "data"
	// ArtifactConfig is the global configuration file.
	ArtifactConfig ArtifactKind = "config"
)

// Artifact is a source file capable of invalidating one or more pages.
type Artifact struct {
	// Path is project-root-relative with forward slashes.
	Path        string
	Kind        ArtifactKind
	Fingerprint hashing.Fingerprint
}
