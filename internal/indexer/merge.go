package indexer

import (
	"fmt"

	"github.com/dshills/docindex/pkg/types"
)

// FailedConversionPolicy decides what the hash index records for a file
// whose content changed but whose conversion failed
type FailedConversionPolicy int

const (
	// AdvanceOnFailure stores the new digest anyway. The file is not retried
	// until its content changes again or its artifact goes missing, and the
	// existing artifact is treated as current.
	AdvanceOnFailure FailedConversionPolicy = iota
	// RetryOnFailure keeps the previous digest (or no entry), so the next run
	// selects the file again.
	RetryOnFailure
)

func (p FailedConversionPolicy) String() string {
	switch p {
	case AdvanceOnFailure:
		return "advance"
	case RetryOnFailure:
		return "retry"
	default:
		return fmt.Sprintf("FailedConversionPolicy(%d)", int(p))
	}
}

// ParsePolicy maps a policy name to its value
func ParsePolicy(name string) (FailedConversionPolicy, error) {
	switch name {
	case "", "advance":
		return AdvanceOnFailure, nil
	case "retry":
		return RetryOnFailure, nil
	default:
		return 0, fmt.Errorf("unknown failed-conversion policy %q (want advance or retry)", name)
	}
}

// MergeHashes returns the hash index after a conversion stage. Entries whose
// digest is unchanged are kept as they are, converted files advance to their
// new digest, and changed files that failed conversion follow policy. Entries
// for files not hashed this run are carried over untouched; pruning removes
// them later. prior is not modified.
func MergeHashes(prior, hashed map[string]string, converted map[string]string, policy FailedConversionPolicy) map[string]string {
	out := make(map[string]string, len(prior)+len(hashed))
	for k, v := range prior {
		out[k] = v
	}
	for rel, digest := range hashed {
		if old, ok := prior[rel]; ok && old == digest {
			continue
		}
		if _, ok := converted[rel]; ok || policy == AdvanceOnFailure {
			out[rel] = digest
		}
	}
	return out
}

// PruneToLive returns the entries of index whose key is in live. index is not
// modified.
func PruneToLive[V any](index map[string]V, live map[string]struct{}) map[string]V {
	out := make(map[string]V, len(live))
	for k, v := range index {
		if _, ok := live[k]; ok {
			out[k] = v
		}
	}
	return out
}

// KeySet returns the keys of m as a set
func KeySet[V any](m map[string]V) map[string]struct{} {
	out := make(map[string]struct{}, len(m))
	for k := range m {
		out[k] = struct{}{}
	}
	return out
}

// LiveArtifacts returns the artifact paths derivable from the sources in a
// hash index under the given DOCX converter
func LiveArtifacts(hashes map[string]string, conv types.DocxConverter) map[string]struct{} {
	out := make(map[string]struct{}, len(hashes))
	for rel := range hashes {
		artifact, err := types.ArtifactPath(rel, conv)
		if err != nil {
			continue
		}
		out[artifact] = struct{}{}
	}
	return out
}
