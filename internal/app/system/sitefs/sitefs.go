// internal/app/system/sitefs/sitefs.go

// Package sitefs owns the on-disk layout for site content.
//
// Layout under the data root:
//
//	{root}/sites/{dirName}/versions/{versionID}/...
//	{root}/uploads/            staged archives, removed after extraction
//
// dirName is derived from the site path: the leading slash is dropped and
// every remaining slash becomes "__" (/productdocs/9.1 -> productdocs__9.1).
// The root site "/" maps to "_root". Site path validation rejects segments
// containing "__", which keeps the mapping invertible.
package sitefs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrPathTraversal is returned when a requested file would resolve outside
// the version directory it must be served from.
var ErrPathTraversal = errors.New("path escapes version directory")

// RootDirName is the directory name used for the root site "/".
const RootDirName = "_root"

// Store resolves site paths to directories under a single data root.
type Store struct {
	root string
}

// New creates a Store rooted at dataDir, creating the sites and uploads
// directories if they do not exist.
func New(dataDir string) (*Store, error) {
	abs, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, err
	}
	for _, dir := range []string{abs, filepath.Join(abs, "sites"), filepath.Join(abs, "uploads")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir %s: %w", dir, err)
		}
	}
	return &Store{root: abs}, nil
}

// Root returns the absolute data root.
func (s *Store) Root() string {
	return s.root
}

// UploadsDir returns the staging directory for uploaded archives.
func (s *Store) UploadsDir() string {
	return filepath.Join(s.root, "uploads")
}

// PathToDirName converts a canonical site path to its directory name.
func PathToDirName(sitePath string) string {
	if sitePath == "/" || sitePath == "" {
		return RootDirName
	}
	return strings.ReplaceAll(strings.TrimPrefix(sitePath, "/"), "/", "__")
}

// DirNameToPath converts a directory name back to the site path.
func DirNameToPath(dirName string) string {
	if dirName == RootDirName {
		return "/"
	}
	return "/" + strings.ReplaceAll(dirName, "__", "/")
}

// SiteDir returns the directory that holds all content for a site.
func (s *Store) SiteDir(sitePath string) string {
	return filepath.Join(s.root, "sites", PathToDirName(sitePath))
}

// VersionDir returns the directory for one content version of a site.
func (s *Store) VersionDir(sitePath, versionID string) string {
	return filepath.Join(s.SiteDir(sitePath), "versions", versionID)
}

// EnsureVersionDir creates the version directory and returns it.
func (s *Store) EnsureVersionDir(sitePath, versionID string) (string, error) {
	dir := s.VersionDir(sitePath, versionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// VersionExists reports whether the version directory is present on disk.
func (s *Store) VersionExists(sitePath, versionID string) bool {
	info, err := os.Stat(s.VersionDir(sitePath, versionID))
	return err == nil && info.IsDir()
}

// RemoveVersionDir deletes one version's content. Missing directories are
// not an error, so orphaned rows can always be cleaned up.
func (s *Store) RemoveVersionDir(sitePath, versionID string) error {
	return os.RemoveAll(s.VersionDir(sitePath, versionID))
}

// RemoveSiteDir deletes all content for a site.
func (s *Store) RemoveSiteDir(sitePath string) error {
	return os.RemoveAll(s.SiteDir(sitePath))
}

// MoveSiteDir renames a site's directory when its path changes.
// A site with no content yet has no directory; that is not an error.
func (s *Store) MoveSiteDir(oldPath, newPath string) error {
	oldDir := s.SiteDir(oldPath)
	if _, err := os.Stat(oldDir); os.IsNotExist(err) {
		return nil
	}
	return os.Rename(oldDir, s.SiteDir(newPath))
}

// DirSize returns the total size in bytes of all regular files under dir.
// A missing directory has size zero.
func DirSize(dir string) (int64, error) {
	var size int64
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == dir {
				return filepath.SkipAll
			}
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			size += info.Size()
		}
		return nil
	})
	return size, err
}

// FormatBytes renders a byte count for humans: 0 B, 1.5 KB, 12.25 MB.
func FormatBytes(n int64) string {
	if n <= 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB", "TB"}
	size := float64(n)
	i := 0
	for size >= 1024 && i < len(units)-1 {
		size /= 1024
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%d B", n)
	}
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", size), "0"), ".") + " " + units[i]
}
