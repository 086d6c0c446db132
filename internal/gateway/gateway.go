// Package gateway composes the HTTPS URL that serves a pinned CID,
// appending gateway-side transformation parameters and, for private mode,
// exchanging the composed URL for a short-lived signed one.
package gateway

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"vaultpin/internal/config"
)

// Signer exchanges a private gateway URL for a signed download URL.
type Signer interface {
	SignDownload(ctx context.Context, rawURL string) (string, error)
}

type Builder struct {
	host      string
	mode      string
	transform config.Transform
	signer    Signer
}

func NewBuilder(cfg *config.Config, signer Signer) *Builder {
	return &Builder{
		host:      CleanHost(cfg.Gateway),
		mode:      cfg.Mode,
		transform: cfg.Transform,
		signer:    signer,
	}
}

// CleanHost strips any scheme and trailing slash from a configured
// gateway value.
func CleanHost(gw string) string {
	gw = strings.TrimPrefix(gw, "https://")
	gw = strings.TrimPrefix(gw, "http://")
	return strings.TrimSuffix(gw, "/")
}

// CleanCID strips a leading ipfs:// scheme.
func CleanCID(cid string) string {
	return strings.TrimPrefix(cid, "ipfs://")
}

// RawURL builds the gateway URL for a CID before any signing: /ipfs/ for
// public mode, /files/ for private mode, plus transform parameters.
func (b *Builder) RawURL(cid string) string {
	cid = CleanCID(cid)
	base := "https://" + b.host + "/ipfs/" + cid
	if b.mode == config.ModePrivate {
		base = "https://" + b.host + "/files/" + cid
	}

	if !b.transform.Enabled {
		return base
	}
	q := url.Values{}
	if b.transform.Width > 0 {
		q.Set("width", strconv.Itoa(b.transform.Width))
	}
	if b.transform.Height > 0 {
		q.Set("height", strconv.Itoa(b.transform.Height))
	}
	if b.transform.Quality > 0 {
		q.Set("quality", strconv.Itoa(b.transform.Quality))
	}
	if b.transform.Format != "" && b.transform.Format != "auto" {
		q.Set("format", b.transform.Format)
	}
	if b.transform.Fit != "" && b.transform.Fit != "cover" {
		q.Set("fit", b.transform.Fit)
	}
	if encoded := q.Encode(); encoded != "" {
		return base + "?" + encoded
	}
	return base
}

// Resolve returns a loadable URL for a CID. Private mode exchanges the raw
// URL for a signed one; the exact transform-bearing URL is what gets
// signed, trusting the service to preserve the query string.
func (b *Builder) Resolve(ctx context.Context, cid string) (string, error) {
	raw := b.RawURL(cid)
	if b.mode != config.ModePrivate {
		return raw, nil
	}
	return b.signer.SignDownload(ctx, raw)
}

func (b *Builder) Private() bool {
	return b.mode == config.ModePrivate
}
