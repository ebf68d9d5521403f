package types

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

// Family groups source suffixes by the converter that handles them
type Family string

const (
	FamilyPDF   Family = "pdf"
	FamilyEmail Family = "email"
	FamilyDOCX  Family = "docx"
)

// DocxConverter selects the backend used for DOCX sources
type DocxConverter string

const (
	DocxMarkitdown DocxConverter = "markitdown"
	DocxSuperdoc   DocxConverter = "superdoc-redlines"

	// DefaultDocxConverter is used when no converter is configured
	DefaultDocxConverter = DocxMarkitdown
)

// EmailSuffixes are the email container formats handed to markitdown
var EmailSuffixes = []string{".eml", ".msg", ".emlx", ".mbox", ".mbx", ".mht", ".mhtml", ".oft"}

var suffixFamilies = func() map[string]Family {
	m := map[string]Family{
		".pdf":  FamilyPDF,
		".docx": FamilyDOCX,
	}
	for _, s := range EmailSuffixes {
		m[s] = FamilyEmail
	}
	return m
}()

// SupportedSuffixes returns every recognised source suffix, sorted
func SupportedSuffixes() []string {
	out := make([]string, 0, len(suffixFamilies))
	for s := range suffixFamilies {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Classify returns the converter family for a path. The suffix match is
// case-insensitive.
func Classify(p string) (Family, error) {
	fam, ok := suffixFamilies[strings.ToLower(path.Ext(p))]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedSource, p)
	}
	return fam, nil
}

// IsSupported reports whether p has a recognised source suffix
func IsSupported(p string) bool {
	_, ok := suffixFamilies[strings.ToLower(path.Ext(p))]
	return ok
}

// ParseDocxConverter validates a converter name
func ParseDocxConverter(name string) (DocxConverter, error) {
	switch DocxConverter(name) {
	case DocxMarkitdown, DocxSuperdoc:
		return DocxConverter(name), nil
	case "":
		return DefaultDocxConverter, nil
	default:
		return "", fmt.Errorf("%w: %q (want %s or %s)", ErrUnknownConverter, name, DocxMarkitdown, DocxSuperdoc)
	}
}

// ArtifactSuffix is the suffix appended to a source name for its converted
// artifact. DOCX artifacts depend on the converter choice.
func (c DocxConverter) ArtifactSuffix() string {
	if c == DocxSuperdoc {
		return ".json"
	}
	return ".md"
}

// ArtifactPath returns the converted artifact path for a source path. The
// result is a pure function of (source, converter): "a/b.pdf" becomes
// "a/b.pdf.md".
func ArtifactPath(source string, conv DocxConverter) (string, error) {
	fam, err := Classify(source)
	if err != nil {
		return "", err
	}
	if fam == FamilyDOCX {
		return source + conv.ArtifactSuffix(), nil
	}
	return source + ".md", nil
}

// SourceFile is a discovered document
type SourceFile struct {
	RelPath string // Slash-separated, relative to the root
	AbsPath string
	Family  Family
}
