// internal/app/system/sitefs/safepath.go
package sitefs

import (
	"os"
	"path/filepath"
	"strings"
)

// ResolveWithinVersion maps a request remainder to a file under versionDir.
// It rejects any traversal outside versionDir, including via existing
// symlinks. Every file served to a visitor must pass through here.
func ResolveWithinVersion(versionDir, requestPath string) (string, error) {
	rootAbs, err := filepath.Abs(versionDir)
	if err != nil {
		return "", err
	}
	rootAbs = filepath.Clean(rootAbs)

	// Force a relative path before joining.
	p := strings.TrimLeft(requestPath, "/\\")
	joined := filepath.Clean(filepath.Join(rootAbs, filepath.FromSlash(p)))

	if !isWithin(rootAbs, joined) {
		return "", ErrPathTraversal
	}
	if hasSymlinkComponent(rootAbs, joined) {
		return "", ErrPathTraversal
	}

	// If the nearest existing ancestor is a symlink to outside the root,
	// block it as well.
	if existing := nearestExisting(joined); existing != "" {
		resolved, err := filepath.EvalSymlinks(existing)
		if err != nil {
			return "", err
		}
		if !isWithin(rootAbs, filepath.Clean(resolved)) {
			return "", ErrPathTraversal
		}
	}

	return joined, nil
}

func hasSymlinkComponent(rootAbs, fullPath string) bool {
	rel, err := filepath.Rel(rootAbs, filepath.Clean(fullPath))
	if err != nil {
		return true
	}
	rel = filepath.Clean(rel)
	if rel == "." {
		return false
	}
	cur := rootAbs
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if part == "" || part == "." {
			continue
		}
		cur = filepath.Join(cur, part)
		st, err := os.Lstat(cur)
		if err != nil {
			// Component does not exist (yet): nothing to traverse.
			return false
		}
		if st.Mode()&os.ModeSymlink != 0 {
			return true
		}
	}
	return false
}

func isWithin(root, candidate string) bool {
	root = filepath.Clean(root)
	candidate = filepath.Clean(candidate)
	if root == candidate {
		return true
	}
	sep := string(filepath.Separator)
	if !strings.HasSuffix(root, sep) {
		root += sep
	}
	return strings.HasPrefix(candidate, root)
}

func nearestExisting(p string) string {
	cur := p
	for {
		if _, err := os.Lstat(cur); err == nil {
			return cur
		} else if !os.IsNotExist(err) {
			return ""
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return ""
		}
		cur = parent
	}
}
