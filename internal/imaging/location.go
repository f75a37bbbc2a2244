package imaging

import (
	"net/url"
	"strings"
)

// storagePrefix is the object-store prefix under which product images
// live. It never appears in marketplace-facing locations.
const storagePrefix = "products/"

// RelativeLocation derives the marketplace-facing location from an
// object URL or key: the bucket and the products/ prefix are stripped,
// and a purely numeric leading segment gains an "img" prefix to match
// the cabinet folder naming convention. The result always starts with
// a slash.
func RelativeLocation(raw string) string {
	path := raw
	if u, err := url.Parse(raw); err == nil && (u.Scheme != "" || u.Host != "") {
		path = u.Path
	}
	path = strings.TrimPrefix(path, "/")

	// Path-style URLs carry the bucket name before the prefix, so cut
	// at the prefix rather than trimming it.
	if i := strings.Index(path, storagePrefix); i >= 0 {
		path = path[i+len(storagePrefix):]
	}

	segments := strings.Split(path, "/")
	if len(segments) > 0 && isDigits(segments[0]) {
		segments[0] = "img" + segments[0]
	}
	return "/" + strings.Join(segments, "/")
}

// StorageKey reverses RelativeLocation: a marketplace-facing location
// becomes the object-store key it was derived from. Locations that did
// not come out of the pipeline are returned cleaned but unprefixed.
func StorageKey(location string) string {
	path := strings.TrimPrefix(strings.TrimSpace(location), "/")
	segments := strings.Split(path, "/")
	if len(segments) == 0 || segments[0] == "" {
		return ""
	}
	if rest, ok := strings.CutPrefix(segments[0], "img"); ok && isDigits(rest) {
		segments[0] = rest
		return storagePrefix + strings.Join(segments, "/")
	}
	return strings.Join(segments, "/")
}
