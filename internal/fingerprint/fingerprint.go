// Package fingerprint derives stable content identities for deduplication.
package fingerprint

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"NewsDigest/internal/domain"
)

var reWhitespace = regexp.MustCompile(`\s+`)

// trackingParams are query parameters stripped during URL normalization.
// Any "utm_"-prefixed parameter is stripped as well.
var trackingParams = map[string]struct{}{
	"fbclid":  {},
	"gclid":   {},
	"yclid":   {},
	"igshid":  {},
	"mc_cid":  {},
	"mc_eid":  {},
	"ref":     {},
	"ref_src": {},
}

// Compute maps a candidate to its fingerprint. The identity is the normalized
// canonical URL when the item carries a usable one, otherwise a hash over the
// normalized title and content text. Computation depends only on item content,
// never on source identity or arrival order. An empty fingerprint means the
// fallback chain is exhausted: the item has no usable identity and no text.
func Compute(c domain.Candidate) domain.Fingerprint {
	if u := NormalizeURL(c.URL); u != "" {
		return hash("url", u)
	}
	if t := normalizeText(c.Title + "\n" + c.Content); t != "" {
		return hash("text", t)
	}
	return ""
}

// NormalizeURL canonicalizes a URL for identity comparison: scheme and host
// are lower-cased, tracking parameters, fragments and trailing slashes are
// stripped, remaining query parameters are re-encoded in sorted order.
// Returns "" for anything that does not parse as an absolute URL.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" || parsed.Scheme == "" {
		return ""
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	parsed.RawFragment = ""
	parsed.Path = strings.TrimSuffix(parsed.Path, "/")

	query := parsed.Query()
	for key := range query {
		if isTrackingParam(key) {
			query.Del(key)
		}
	}
	parsed.RawQuery = encodeSorted(query)

	return parsed.String()
}

func isTrackingParam(key string) bool {
	lowered := strings.ToLower(key)
	if strings.HasPrefix(lowered, "utm_") {
		return true
	}
	_, ok := trackingParams[lowered]
	return ok
}

// encodeSorted matches url.Values.Encode, made explicit here because the
// sorted order is what keeps equal URLs byte-identical after normalization.
func encodeSorted(values url.Values) string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		for _, value := range values[key] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(key))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(value))
		}
	}
	return b.String()
}

func normalizeText(text string) string {
	return strings.TrimSpace(reWhitespace.ReplaceAllString(text, " "))
}

func hash(kind, value string) domain.Fingerprint {
	sum := sha256.Sum256([]byte(kind + "\n" + value))
	return domain.Fingerprint(fmt.Sprintf("%x", sum))
}
