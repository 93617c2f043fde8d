package storage

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"unicode"
)

var (
	errInvalidPath  = errors.New("path contains invalid characters")
	errPathEscapes  = errors.New("path escapes the storage root")
	errEmptyRootArg = errors.New("root path cannot be empty")
)

// PathValidator maps slash-separated references onto a root directory and
// refuses anything that would leave it.
type PathValidator struct {
	rootAbs string
}

func NewPathValidator(root string) (*PathValidator, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errEmptyRootArg
	}

	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}

	return &PathValidator{rootAbs: rootAbs}, nil
}

func (v *PathValidator) RootAbs() string {
	return v.rootAbs
}

// Resolve returns the absolute path of ref and its cleaned slash form
// relative to the root ("" for the root itself).
func (v *PathValidator) Resolve(ref string) (string, string, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(ref), `\`, "/")
	if normalized == "" || normalized == "/" || normalized == "." {
		return v.rootAbs, "", nil
	}

	if hasControlCharacters(normalized) {
		return "", "", errInvalidPath
	}

	for segment := range strings.SplitSeq(normalized, "/") {
		if segment == ".." {
			return "", "", errPathEscapes
		}
	}

	rel := path.Clean(strings.TrimPrefix(normalized, "/"))
	if rel == "." {
		return v.rootAbs, "", nil
	}

	resolvedAbs, err := filepath.Abs(filepath.Join(v.rootAbs, filepath.FromSlash(rel)))
	if err != nil {
		return "", "", fmt.Errorf("resolve absolute path: %w", err)
	}

	if !isWithinRoot(v.rootAbs, resolvedAbs) {
		return "", "", errPathEscapes
	}

	return resolvedAbs, rel, nil
}

// Rel converts an absolute path inside the root to its slash form.
func (v *PathValidator) Rel(abs string) (string, error) {
	if !isWithinRoot(v.rootAbs, abs) {
		return "", errPathEscapes
	}
	rel, err := filepath.Rel(v.rootAbs, abs)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

func hasControlCharacters(value string) bool {
	for _, char := range value {
		if unicode.IsControl(char) {
			return true
		}
	}

	return false
}

func isWithinRoot(rootAbs string, candidateAbs string) bool {
	if candidateAbs == rootAbs {
		return true
	}

	rootWithSeparator := rootAbs + string(filepath.Separator)
	return strings.HasPrefix(candidateAbs, rootWithSeparator)
}
