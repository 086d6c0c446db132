// Package resolve translates ipfs:// image references in rendered HTML
// back into loadable gateway URLs at render time.
package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"vaultpin/internal/gateway"
)

var imgSrcPattern = regexp.MustCompile(`(<img\b[^>]*?\bsrc=")ipfs://([^"]+)(")`)

type Resolver struct {
	builder   *gateway.Builder
	refresher *Refresher
}

func New(builder *gateway.Builder, refresher *Refresher) *Resolver {
	return &Resolver{builder: builder, refresher: refresher}
}

// RewriteHTML replaces every <img src="ipfs://…"> with a gateway URL.
// Private-mode images get data attributes identifying them as refreshable;
// the CID is recorded with the refresher. Elements that fail to resolve
// are left untouched.
func (r *Resolver) RewriteHTML(ctx context.Context, html string) string {
	return imgSrcPattern.ReplaceAllStringFunc(html, func(match string) string {
		groups := imgSrcPattern.FindStringSubmatch(match)
		if groups == nil {
			return match
		}
		cid := groups[2]

		var loadable string
		var err error
		if r.builder.Private() && r.refresher != nil {
			loadable, err = r.refresher.URL(ctx, cid)
		} else {
			loadable, err = r.builder.Resolve(ctx, cid)
		}
		if err != nil {
			slog.Warn("resolve image failed", "cid", cid, "err", err)
			return match
		}

		out := groups[1] + escapeAttr(loadable) + groups[3]
		if r.builder.Private() {
			out += fmt.Sprintf(` data-vaultpin-cid="%s" data-vaultpin-private="true"`, escapeAttr(cid))
		}
		return out
	})
}

func escapeAttr(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	return strings.ReplaceAll(s, `"`, "&quot;")
}
