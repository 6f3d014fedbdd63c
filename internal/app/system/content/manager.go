// internal/app/system/content/manager.go

// Package content coordinates version records in Mongo with the extracted
// content on disk. Every operation that touches both goes through the
// Manager so the two never drift apart silently.
package content

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ciaranj/piglet/internal/app/store/versions"
	"github.com/ciaranj/piglet/internal/app/system/sitefs"
	"github.com/ciaranj/piglet/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var (
	// ErrVersionActive is returned when deleting the active version.
	ErrVersionActive = errors.New("cannot delete the active version")
	// ErrContentMissing is returned when a version's directory is gone
	// from disk even though its record exists.
	ErrContentMissing = errors.New("version content missing from disk")
)

// Manager owns the content lifecycle for all sites.
type Manager struct {
	versions *versions.Store
	fs       *sitefs.Store
	logger   *zap.Logger

	mu    sync.Mutex
	locks map[primitive.ObjectID]*sync.Mutex
}

// NewManager creates a content Manager.
func NewManager(versions *versions.Store, fs *sitefs.Store, logger *zap.Logger) *Manager {
	return &Manager{
		versions: versions,
		fs:       fs,
		logger:   logger,
		locks:    map[primitive.ObjectID]*sync.Mutex{},
	}
}

// siteLock returns the per-site mutex, creating it on first use. Site
// mutation is rare (admin operations only) so the map never shrinks.
func (m *Manager) siteLock(siteID primitive.ObjectID) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[siteID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[siteID] = l
	}
	return l
}

// UploadResult describes a completed upload.
type UploadResult struct {
	Version          models.ContentVersion
	Activated        bool
	PreviousVersion  *primitive.ObjectID
	HadActiveContent bool
}

// Upload extracts an uploaded archive into a fresh version directory and
// records it. On any failure both the directory and the record are rolled
// back. The staged archive itself is the caller's to clean up.
func (m *Manager) Upload(ctx context.Context, site models.Site, archivePath, description string, uploadedBy primitive.ObjectID, activate bool) (*UploadResult, error) {
	// Captured up front so the result reports what was live before this
	// upload, whether or not it activates.
	var prevActive *primitive.ObjectID
	if cur, err := m.versions.GetActive(ctx, site.ID); err == nil {
		id := cur.ID
		prevActive = &id
	} else if err != versions.ErrNoActive {
		return nil, fmt.Errorf("look up active version: %w", err)
	}

	v, err := m.versions.Create(ctx, site.ID, description, 0, uploadedBy)
	if err != nil {
		return nil, fmt.Errorf("create version record: %w", err)
	}
	versionID := v.ID.Hex()

	destDir, err := m.fs.EnsureVersionDir(site.Path, versionID)
	if err != nil {
		m.rollback(ctx, site, v.ID)
		return nil, fmt.Errorf("create version dir: %w", err)
	}

	size, err := sitefs.ExtractZip(archivePath, destDir)
	if err != nil {
		m.rollback(ctx, site, v.ID)
		return nil, fmt.Errorf("extract archive: %w", err)
	}

	if err := m.versions.SetSize(ctx, site.ID, v.ID, size); err != nil {
		m.rollback(ctx, site, v.ID)
		return nil, fmt.Errorf("record size: %w", err)
	}
	v.SizeBytes = size

	result := &UploadResult{
		Version:          v,
		PreviousVersion:  prevActive,
		HadActiveContent: prevActive != nil,
	}
	if activate {
		if _, err := m.Activate(ctx, site, v.ID); err != nil {
			// The upload itself succeeded; report the activation failure
			// without destroying the extracted content.
			return result, fmt.Errorf("activate uploaded version: %w", err)
		}
		result.Activated = true
		v.IsActive = true
		result.Version = v
	}

	m.logger.Info("content uploaded",
		zap.String("site", site.Path),
		zap.String("version", versionID),
		zap.Int64("size_bytes", size),
		zap.Bool("activated", result.Activated))
	return result, nil
}

// rollback deletes a half-created version's record and directory.
func (m *Manager) rollback(ctx context.Context, site models.Site, versionID primitive.ObjectID) {
	if err := m.versions.Delete(ctx, site.ID, versionID); err != nil && err != versions.ErrNotFound {
		m.logger.Warn("rollback: delete version record failed", zap.Error(err))
	}
	if err := m.fs.RemoveVersionDir(site.Path, versionID.Hex()); err != nil {
		m.logger.Warn("rollback: remove version dir failed", zap.Error(err))
	}
}

// Activate makes a version live. The per-site lock serializes concurrent
// activations; the disk check runs first so a version whose content has
// gone missing is never switched to.
func (m *Manager) Activate(ctx context.Context, site models.Site, versionID primitive.ObjectID) (*primitive.ObjectID, error) {
	lock := m.siteLock(site.ID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := m.versions.GetByID(ctx, site.ID, versionID); err != nil {
		return nil, err
	}
	if !m.fs.VersionExists(site.Path, versionID.Hex()) {
		return nil, ErrContentMissing
	}

	prev, err := m.versions.Activate(ctx, site.ID, versionID)
	if err != nil {
		return nil, err
	}

	m.logger.Info("version activated",
		zap.String("site", site.Path),
		zap.String("version", versionID.Hex()))
	return prev, nil
}

// DeleteVersion removes a version's record and content. The active version
// is refused; deactivate by activating another version first.
func (m *Manager) DeleteVersion(ctx context.Context, site models.Site, versionID primitive.ObjectID) error {
	lock := m.siteLock(site.ID)
	lock.Lock()
	defer lock.Unlock()

	v, err := m.versions.GetByID(ctx, site.ID, versionID)
	if err != nil {
		return err
	}
	if v.IsActive {
		return ErrVersionActive
	}

	if err := m.versions.Delete(ctx, site.ID, versionID); err != nil {
		return err
	}
	if err := m.fs.RemoveVersionDir(site.Path, versionID.Hex()); err != nil {
		return fmt.Errorf("remove version dir: %w", err)
	}
	return nil
}

// DeleteSiteContent removes all version records and the site's directory.
// Part of site deletion, which already cascades in the admin handler.
func (m *Manager) DeleteSiteContent(ctx context.Context, site models.Site) error {
	lock := m.siteLock(site.ID)
	lock.Lock()
	defer lock.Unlock()

	if err := m.versions.DeleteBySite(ctx, site.ID); err != nil {
		return err
	}
	if err := m.fs.RemoveSiteDir(site.Path); err != nil {
		return fmt.Errorf("remove site dir: %w", err)
	}
	return nil
}

// MoveSite relocates a site's content directory after a path change.
func (m *Manager) MoveSite(ctx context.Context, site models.Site, newPath string) error {
	lock := m.siteLock(site.ID)
	lock.Lock()
	defer lock.Unlock()

	if err := m.fs.MoveSiteDir(site.Path, newPath); err != nil {
		return fmt.Errorf("move site dir: %w", err)
	}
	return nil
}

// ActiveVersionDir returns the directory to serve a site from, or
// ErrNoActive / ErrContentMissing.
func (m *Manager) ActiveVersionDir(ctx context.Context, site models.Site) (string, error) {
	v, err := m.versions.GetActive(ctx, site.ID)
	if err != nil {
		return "", err
	}
	dir := m.fs.VersionDir(site.Path, v.ID.Hex())
	if !m.fs.VersionExists(site.Path, v.ID.Hex()) {
		return "", ErrContentMissing
	}
	return dir, nil
}
