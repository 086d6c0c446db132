// Package classify decides what an image reference found in a note is:
// already migrated, a local vault file, a direct remote image, a
// CDN-wrapped remote image, or something to leave alone.
package classify

import (
	"net/url"
	"path"
	"strings"
)

type Kind int

const (
	Skip Kind = iota
	AlreadyIPFS
	LocalFile
	RemoteDirect
	RemoteCDN
)

func (k Kind) String() string {
	switch k {
	case AlreadyIPFS:
		return "already-ipfs"
	case LocalFile:
		return "local"
	case RemoteDirect:
		return "remote"
	case RemoteCDN:
		return "remote-cdn"
	default:
		return "skip"
	}
}

// Result carries the classification and, for local references, the
// resolved vault path.
type Result struct {
	Kind      Kind
	LocalPath string
}

// LinkResolver resolves a vault-relative reference against the containing
// note, the way the host application's link resolver does.
type LinkResolver interface {
	ResolveLink(ref, notePath string) (string, bool)
}

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".bmp": true, ".tiff": true, ".svg": true,
}

// IsImagePath reports whether p ends in a known image extension.
func IsImagePath(p string) bool {
	return IsImageExt(path.Ext(p))
}

// IsImageExt reports whether ext (with leading dot) is a known image
// extension.
func IsImageExt(ext string) bool {
	return imageExts[strings.ToLower(ext)]
}

// Classify applies the first-match-wins rules. Any parse failure demotes
// the reference to Skip; classification never fails a document.
func Classify(decoded, notePath string, resolver LinkResolver, serviceHost string) (result Result) {
	defer func() {
		if recover() != nil {
			result = Result{Kind: Skip}
		}
	}()

	if strings.Contains(decoded, "ipfs://") {
		return Result{Kind: AlreadyIPFS}
	}
	if serviceHost != "" && strings.Contains(decoded, serviceHost) {
		return Result{Kind: AlreadyIPFS}
	}

	if u, err := url.Parse(decoded); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		if IsCDNHost(u.Hostname()) {
			return Result{Kind: RemoteCDN}
		}
		if IsImagePath(u.Path) {
			return Result{Kind: RemoteDirect}
		}
		return Result{Kind: Skip}
	}

	if resolver != nil {
		if p, ok := resolver.ResolveLink(decoded, notePath); ok {
			return Result{Kind: LocalFile, LocalPath: p}
		}
	}
	return Result{Kind: Skip}
}
