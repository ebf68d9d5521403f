// Package hasher computes content digests for source documents.
package hasher

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/blake2b"

	"github.com/dshills/docindex/internal/workerpool"
	"github.com/dshills/docindex/pkg/types"
)

// DigestSize is the length in bytes of a content digest (BLAKE2b-512)
const DigestSize = blake2b.Size

// HashFile returns the hex BLAKE2b-512 digest of a file, streaming its content
func HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = file.Close() }()

	return HashReader(file)
}

// HashReader returns the hex BLAKE2b-512 digest of everything read from r
func HashReader(r io.Reader) (string, error) {
	h, err := blake2b.New512(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashAll hashes every source on a pool of workers. Successes are keyed by
// relative path; a file that cannot be read is reported as a failure and left
// out of the result.
func HashAll(ctx context.Context, workers int, sources []types.SourceFile) (map[string]string, []workerpool.Failure[types.SourceFile]) {
	return workerpool.Run(ctx, workers, sources, func(_ context.Context, src types.SourceFile) (string, string, error) {
		digest, err := HashFile(src.AbsPath)
		if err != nil {
			return "", "", fmt.Errorf("hash %s: %w", src.RelPath, err)
		}
		return src.RelPath, digest, nil
	})
}
