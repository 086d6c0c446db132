package classify

import (
	"net/url"
	"regexp"
	"strings"
)

// Known image-optimization CDNs. A wrapped URL is reduced to its canonical
// source so the original bytes are pinned, not a resized variant.

type cdnRule struct {
	match     func(host string) bool
	normalize func(u *url.URL) string
}

var cdnRules = []cdnRule{
	{hostIs("wsrv.nl", "images.weserv.nl"), normalizeWeserv},
	{hostIs("res.cloudinary.com"), normalizeCloudinary},
	{hostWordPress, normalizeWordPress},
	{hostSuffix(".shopify.com"), normalizeShopify},
	{hostSuffix(".vercel.app"), normalizeVercel},
	{hostIs("ucarecdn.com"), normalizeUploadcare},
	{hostIs("firebasestorage.googleapis.com"), func(u *url.URL) string { return u.String() }},
	{hostGenericCDN, normalizeGenericCDN},
}

func IsCDNHost(host string) bool {
	host = strings.ToLower(host)
	for _, r := range cdnRules {
		if r.match(host) {
			return true
		}
	}
	return false
}

// Normalize reduces a CDN-wrapped URL to its canonical source. On any
// failure the original URL is returned; normalization never fails a
// document.
func Normalize(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	host := strings.ToLower(u.Hostname())
	for _, r := range cdnRules {
		if !r.match(host) {
			continue
		}
		out := r.normalize(u)
		if out == "" {
			return raw
		}
		if parsed, err := url.Parse(out); err != nil || parsed.Host == "" || parsed.Scheme == "" {
			return raw
		}
		return out
	}
	return raw
}

func hostIs(hosts ...string) func(string) bool {
	return func(h string) bool {
		for _, want := range hosts {
			if h == want {
				return true
			}
		}
		return false
	}
}

func hostSuffix(suffix string) func(string) bool {
	return func(h string) bool { return strings.HasSuffix(h, suffix) }
}

var wpHostPattern = regexp.MustCompile(`^i[0-3]\.wp\.com$`)

func hostWordPress(h string) bool {
	return wpHostPattern.MatchString(h) || strings.HasSuffix(h, ".files.wordpress.com")
}

var genericCDNSuffixes = []string{
	".imgix.net", ".imagekit.io", ".akamaized.net", ".fastly.net",
	".b-cdn.net", ".kxcdn.com", ".cloudfront.net", ".sirv.com",
}

func hostGenericCDN(h string) bool {
	if h == "images.ctfassets.net" {
		return true
	}
	for _, s := range genericCDNSuffixes {
		if strings.HasSuffix(h, s) {
			return true
		}
	}
	return false
}

func ensureScheme(raw string) string {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	return "https://" + strings.TrimPrefix(raw, "//")
}

func normalizeWeserv(u *url.URL) string {
	inner := u.Query().Get("url")
	if inner == "" {
		return ""
	}
	return ensureScheme(inner)
}

// Cloudinary path: /<cloud>/<resource-type>/<delivery>/<transforms...>/<rest>.
// Transformation segments sit between the delivery segment and the asset
// path; version markers (v1, v123...) are dropped with them.
var cloudinaryVersion = regexp.MustCompile(`^v\d+$`)

var cloudinaryTransformPrefixes = []string{
	"v_", "w_", "f_", "c_", "e_", "q_", "ar_", "co_",
	"fl_", "l_", "o_", "r_", "u_", "x_", "y_", "z_",
}

func cloudinaryTransformSegment(seg string) bool {
	if strings.Contains(seg, ",") || cloudinaryVersion.MatchString(seg) {
		return true
	}
	for _, p := range cloudinaryTransformPrefixes {
		if strings.HasPrefix(seg, p) {
			return true
		}
	}
	return false
}

func normalizeCloudinary(u *url.URL) string {
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	delivery := -1
	for i, seg := range segs {
		if seg == "upload" || seg == "fetch" {
			delivery = i
			break
		}
	}
	if delivery < 0 || delivery == len(segs)-1 {
		return ""
	}
	rest := segs[delivery+1:]
	for len(rest) > 1 && cloudinaryTransformSegment(rest[0]) {
		rest = rest[1:]
	}
	kept := append(append([]string{}, segs[:delivery+1]...), rest...)
	return "https://res.cloudinary.com/" + strings.Join(kept, "/")
}

var sizeSuffixPattern = regexp.MustCompile(`-\d+x\d+(\.[A-Za-z0-9]+)$`)

func stripSizeSuffix(p string) string {
	return sizeSuffixPattern.ReplaceAllString(p, "$1")
}

func normalizeWordPress(u *url.URL) string {
	if strings.HasPrefix(u.Path, "/http") {
		return ensureScheme(strings.TrimPrefix(u.Path, "/"))
	}
	out := *u
	out.Path = stripSizeSuffix(u.Path)
	out.RawQuery = ""
	return out.String()
}

var shopifySuffixes = regexp.MustCompile(
	`(_(?:small|medium|large|grande|original|pico|icon|thumb|compact|master|progressive)|_\d+x\d+|_v\d+|@[23]x|_crop_[a-z]+|_position_[a-z]+)(\.[A-Za-z0-9]+)$`)

func normalizeShopify(u *url.URL) string {
	out := *u
	p := u.Path
	for {
		next := shopifySuffixes.ReplaceAllString(p, "$2")
		if next == p {
			break
		}
		p = next
	}
	out.Path = p
	return out.String()
}

func normalizeVercel(u *url.URL) string {
	q := u.Query()
	for _, key := range []string{"url", "src", "image"} {
		if inner := q.Get(key); inner != "" {
			return ensureScheme(inner)
		}
	}
	return ""
}

func normalizeUploadcare(u *url.URL) string {
	out := *u
	if i := strings.Index(u.Path, "/-/"); i >= 0 {
		out.Path = u.Path[:i+1]
	}
	out.RawQuery = ""
	return out.String()
}

var optimizationParams = map[string]bool{
	"w": true, "width": true, "h": true, "height": true, "fit": true,
	"size": true, "q": true, "quality": true, "fm": true, "format": true,
	"crop": true, "rect": true, "focal": true, "blur": true, "sharp": true,
	"brightness": true, "contrast": true, "progressive": true,
	"interlace": true, "dpr": true, "device_pixel_ratio": true, "auto": true,
}

func normalizeGenericCDN(u *url.URL) string {
	out := *u
	out.Path = stripSizeSuffix(u.Path)
	q := u.Query()
	for key := range q {
		if optimizationParams[strings.ToLower(key)] {
			q.Del(key)
		}
	}
	out.RawQuery = q.Encode()
	return out.String()
}
