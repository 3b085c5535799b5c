package handlers

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Roots confines the local paths a job submitter may name. An empty root
// disables local paths of that kind.
type Roots struct {
	Assets string
	Output string
}

var errPathsDisabled = errors.New("local paths are not accepted")

// confine resolves p against root and rejects anything that leaves it,
// including through symlinks that already exist.
func confine(root, p string) (string, error) {
	if strings.TrimSpace(root) == "" {
		return "", errPathsDisabled
	}
	root = filepath.Clean(root)
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	p = filepath.Clean(p)
	if !within(root, p) {
		return "", fmt.Errorf("path %q is outside %s", p, root)
	}

	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return p, nil
	}
	// Check the deepest existing ancestor so a symlinked directory cannot
	// redirect a file that does not exist yet.
	for existing := p; ; existing = filepath.Dir(existing) {
		real, err := filepath.EvalSymlinks(existing)
		if err == nil {
			if !within(realRoot, real) {
				return "", fmt.Errorf("path %q resolves outside %s", p, root)
			}
			return p, nil
		}
		if existing == root || existing == filepath.Dir(existing) {
			return p, nil
		}
	}
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
