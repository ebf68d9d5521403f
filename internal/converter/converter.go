// Package converter turns source documents into text artifacts by running
// external conversion tools.
package converter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/dshills/docindex/internal/fsutil"
	"github.com/dshills/docindex/internal/workerpool"
	"github.com/dshills/docindex/pkg/types"
)

// DefaultSuperdocScript is the superdoc-redlines entry point, relative to the root
var DefaultSuperdocScript = filepath.Join(".claude", "skills", "superdoc-redlines", "superdoc-redline.mjs")

// Converter produces the artifact for one source file. Implementations must
// leave dest untouched when they fail.
type Converter interface {
	Name() string
	Convert(ctx context.Context, src, dest string) error
}

// ExitError describes a converter process that failed
type ExitError struct {
	Tool   string
	Err    error
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s: %v", e.Tool, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Tool, e.Err, e.Stderr)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Markitdown runs `markitdown SRC -o DEST`, by default through uv
type Markitdown struct {
	Command []string
}

// NewMarkitdown returns a markitdown converter using command, or
// `uv run markitdown` when command is empty
func NewMarkitdown(command []string) *Markitdown {
	if len(command) == 0 {
		command = []string{"uv", "run", "markitdown"}
	}
	return &Markitdown{Command: command}
}

func (m *Markitdown) Name() string { return string(types.DocxMarkitdown) }

// Convert lets markitdown write a temporary sibling and renames it over dest
// once the tool exits cleanly.
func (m *Markitdown) Convert(ctx context.Context, src, dest string) error {
	tmp, err := fsutil.TempSibling(dest)
	if err != nil {
		return fmt.Errorf("failed to reserve output file: %w", err)
	}

	args := append(append([]string{}, m.Command[1:]...), src, "-o", tmp)
	if _, err := run(ctx, m.Name(), m.Command[0], args); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to move artifact into place: %w", err)
	}
	return nil
}

// Superdoc runs `node superdoc-redline.mjs read --input SRC --no-metadata` and
// stores its standard output as the artifact
type Superdoc struct {
	Command []string
}

// NewSuperdoc returns a superdoc-redlines converter running script with node
func NewSuperdoc(script string) *Superdoc {
	return &Superdoc{Command: []string{"node", script}}
}

func (s *Superdoc) Name() string { return string(types.DocxSuperdoc) }

func (s *Superdoc) Convert(ctx context.Context, src, dest string) error {
	args := append(append([]string{}, s.Command[1:]...), "read", "--input", src, "--no-metadata")
	out, err := run(ctx, s.Name(), s.Command[0], args)
	if err != nil {
		return err
	}
	return fsutil.WriteAtomic(dest, 0644, func(w io.Writer) error {
		_, err := w.Write(out)
		return err
	})
}

// run executes a tool and returns its standard output
func run(ctx context.Context, tool, name string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, &ExitError{Tool: tool, Err: err, Stderr: strings.TrimSpace(stderr.String())}
	}
	return stdout.Bytes(), nil
}

// Options configures a Dispatcher
type Options struct {
	Root          string
	DocxConverter types.DocxConverter
	// Markdown handles PDF and email sources, and DOCX under DocxMarkitdown
	Markdown Converter
	// Structured handles DOCX sources under DocxSuperdoc
	Structured Converter
	Workers    int
	Logger     *slog.Logger
}

// Dispatcher routes each source to the converter for its family
type Dispatcher struct {
	root       string
	docx       types.DocxConverter
	markdown   Converter
	structured Converter
	workers    int
	logger     *slog.Logger
}

// NewDispatcher creates a dispatcher, filling in default converters
func NewDispatcher(opts Options) *Dispatcher {
	if opts.DocxConverter == "" {
		opts.DocxConverter = types.DefaultDocxConverter
	}
	if opts.Markdown == nil {
		opts.Markdown = NewMarkitdown(nil)
	}
	if opts.Structured == nil {
		opts.Structured = NewSuperdoc(filepath.Join(opts.Root, DefaultSuperdocScript))
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Dispatcher{
		root:       opts.Root,
		docx:       opts.DocxConverter,
		markdown:   opts.Markdown,
		structured: opts.Structured,
		workers:    opts.Workers,
		logger:     opts.Logger,
	}
}

// DocxConverter returns the active DOCX backend
func (d *Dispatcher) DocxConverter() types.DocxConverter {
	return d.docx
}

// ConverterFor returns the converter that handles a family
func (d *Dispatcher) ConverterFor(fam types.Family) Converter {
	if fam == types.FamilyDOCX && d.docx == types.DocxSuperdoc {
		return d.structured
	}
	return d.markdown
}

// ArtifactPath returns the relative and absolute artifact paths for a source
func (d *Dispatcher) ArtifactPath(src types.SourceFile) (string, string, error) {
	rel, err := types.ArtifactPath(src.RelPath, d.docx)
	if err != nil {
		return "", "", err
	}
	return rel, filepath.Join(d.root, filepath.FromSlash(rel)), nil
}

// ConvertAll converts every source on the worker pool. The result maps each
// successfully converted source path to its artifact path; failures are
// logged and returned.
func (d *Dispatcher) ConvertAll(ctx context.Context, sources []types.SourceFile) (map[string]string, []workerpool.Failure[types.SourceFile]) {
	return workerpool.Run(ctx, d.workers, sources, func(ctx context.Context, src types.SourceFile) (string, string, error) {
		rel, abs, err := d.ArtifactPath(src)
		if err != nil {
			return "", "", err
		}
		conv := d.ConverterFor(src.Family)
		d.logger.Info("converting", "path", src.RelPath, "artifact", filepath.Base(abs), "converter", conv.Name())
		if err := conv.Convert(ctx, src.AbsPath, abs); err != nil {
			return "", "", err
		}
		return src.RelPath, rel, nil
	})
}
