// internal/app/system/sitefs/extract.go
package sitefs

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ExtractZip extracts archivePath into destDir and flattens a single root
// directory if the archive wraps its content in one (the usual shape of a
// zipped site folder). Entry names that would escape destDir are rejected.
// Returns the total extracted size in bytes.
func ExtractZip(archivePath, destDir string) (int64, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return 0, fmt.Errorf("open archive: %w", err)
	}
	defer r.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return 0, err
	}

	for _, f := range r.File {
		if err := extractEntry(f, destDir); err != nil {
			return 0, err
		}
	}

	if err := flattenSingleRoot(destDir); err != nil {
		return 0, err
	}
	return DirSize(destDir)
}

func extractEntry(f *zip.File, destDir string) error {
	target, err := ResolveWithinVersion(destDir, f.Name)
	if err != nil {
		return fmt.Errorf("archive entry %q: %w", f.Name, err)
	}

	// Symlinks inside archives are never materialized; a link pointing out
	// of the version directory would bypass the serve-time containment check.
	if f.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("archive entry %q: symlinks not allowed", f.Name)
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(target, 0o755)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

// flattenSingleRoot moves content up one level when the archive extracted
// into exactly one directory, so index.html lands at the version root.
func flattenSingleRoot(destDir string) error {
	entries, err := os.ReadDir(destDir)
	if err != nil {
		return err
	}
	if len(entries) != 1 || !entries[0].IsDir() {
		return nil
	}

	inner := filepath.Join(destDir, entries[0].Name())
	children, err := os.ReadDir(inner)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := os.Rename(filepath.Join(inner, child.Name()), filepath.Join(destDir, child.Name())); err != nil {
			return err
		}
	}
	return os.Remove(inner)
}
