package rewrite

import (
	"net/url"
	"regexp"
)

// Inline image syntax, matched the way the host app does: a simple
// non-greedy regex, not a Markdown parse. References inside fenced code
// blocks are matched too; that is the observable behavior being kept.
var imagePattern = regexp.MustCompile(`!\[([^\]]*)\]\(([^)]*?)\)`)

// Ref is one image occurrence in a note.
type Ref struct {
	Raw     string // the literal as it appears, e.g. ![alt](path)
	Alt     string
	Path    string // as written
	Decoded string // URL-decoded path
}

// ScanRefs finds every image reference in document order.
func ScanRefs(content string) []Ref {
	matches := imagePattern.FindAllStringSubmatch(content, -1)
	refs := make([]Ref, 0, len(matches))
	for _, m := range matches {
		decoded, err := url.PathUnescape(m[2])
		if err != nil {
			decoded = m[2]
		}
		refs = append(refs, Ref{Raw: m[0], Alt: m[1], Path: m[2], Decoded: decoded})
	}
	return refs
}

// CountRefs is the batch pre-count of image references in a note.
func CountRefs(content string) int {
	return len(imagePattern.FindAllStringIndex(content, -1))
}
