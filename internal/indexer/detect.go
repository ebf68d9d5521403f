package indexer

import (
	"os"

	"github.com/dshills/docindex/pkg/types"
)

// ArtifactExistsFunc reports whether the converted artifact for a source is
// present on disk
type ArtifactExistsFunc func(src types.SourceFile) bool

// SelectForConversion returns the hashed sources that need converting: those
// with no prior digest, a changed digest, or a missing artifact. Sources that
// failed to hash are never selected. Order follows sources.
func SelectForConversion(sources []types.SourceFile, hashes, prior map[string]string, exists ArtifactExistsFunc) []types.SourceFile {
	var out []types.SourceFile
	for _, src := range sources {
		digest, hashed := hashes[src.RelPath]
		if !hashed {
			continue
		}
		old, known := prior[src.RelPath]
		if !known || old != digest || !exists(src) {
			out = append(out, src)
		}
	}
	return out
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
