// internal/app/system/resolver/resolver.go

// Package resolver maps incoming request paths to sites by longest prefix.
package resolver

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/ciaranj/piglet/internal/domain/models"
)

var (
	// ErrNoSite is returned when no site prefix matches the request path.
	ErrNoSite = errors.New("no site matches path")
	// ErrReservedPath is returned for paths under a reserved "/_" prefix.
	// Those belong to the service itself (/_health, /_auth, /_pigsty)
	// and are never resolved to a site.
	ErrReservedPath = errors.New("reserved path")
)

// SiteLookup finds a site by its exact canonical path.
// A nil site with a nil error means no site has that path.
type SiteLookup interface {
	GetByPath(ctx context.Context, sitePath string) (*models.Site, error)
}

// Match is the result of resolving a request path.
type Match struct {
	Site models.Site

	// Prefix is the site path that matched.
	Prefix string

	// Remainder is the request path below the site prefix, with a leading
	// slash ("" when the request hits the site root exactly).
	Remainder string

	// AtSiteRoot is true when the request path equals the site prefix.
	// The caller uses it to issue the canonical trailing-slash redirect.
	AtSiteRoot bool
}

// Resolver resolves request paths against registered site prefixes.
type Resolver struct {
	sites SiteLookup
}

// New creates a Resolver backed by the given lookup.
func New(sites SiteLookup) *Resolver {
	return &Resolver{sites: sites}
}

// Resolve finds the site owning requestPath. Candidate prefixes are tried
// longest-first, so /productdocs/9.1/page wins over /productdocs when both
// sites exist. The root site "/" is the final fallback.
func (r *Resolver) Resolve(ctx context.Context, requestPath string) (Match, error) {
	cleaned := path.Clean("/" + requestPath)

	if reserved(cleaned) {
		return Match{}, ErrReservedPath
	}

	for _, prefix := range candidatePrefixes(cleaned) {
		site, err := r.sites.GetByPath(ctx, prefix)
		if err != nil {
			return Match{}, err
		}
		if site == nil {
			continue
		}

		remainder := strings.TrimPrefix(cleaned, prefix)
		if prefix == "/" {
			remainder = cleaned
			if remainder == "/" {
				remainder = ""
			}
		}
		return Match{
			Site:       *site,
			Prefix:     prefix,
			Remainder:  remainder,
			AtSiteRoot: remainder == "",
		}, nil
	}

	return Match{}, ErrNoSite
}

// reserved reports whether the first path segment starts with "_".
func reserved(cleaned string) bool {
	seg := strings.TrimPrefix(cleaned, "/")
	if i := strings.IndexByte(seg, '/'); i >= 0 {
		seg = seg[:i]
	}
	return strings.HasPrefix(seg, "_")
}

// candidatePrefixes returns all prefixes of cleaned from longest to
// shortest, ending with "/".
func candidatePrefixes(cleaned string) []string {
	if cleaned == "/" {
		return []string{"/"}
	}
	segs := strings.Split(strings.TrimPrefix(cleaned, "/"), "/")
	out := make([]string, 0, len(segs)+1)
	for i := len(segs); i > 0; i-- {
		out = append(out, "/"+strings.Join(segs[:i], "/"))
	}
	return append(out, "/")
}
